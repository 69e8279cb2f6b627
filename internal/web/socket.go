package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/app"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/domain"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// matchEvent is the JSON form of a domain event sent over the socket.
type matchEvent struct {
	Type       string   `json:"type"`
	WinnerName string   `json:"winnerName,omitempty"`
	Board      []string `json:"board"`
	State      string   `json:"state"`
	Message    string   `json:"message"`
}

// newMatchEvent renders ev with the board as it was when ev fired.
func newMatchEvent(ev domain.Event, st app.MatchState) matchEvent {
	cells := make([]string, len(ev.Board))
	for i, m := range ev.Board {
		cells[i] = m.String()
	}
	return matchEvent{
		Type:       string(ev.Type),
		WinnerName: ev.WinnerName,
		Board:      cells,
		State:      st.State.String(),
		Message:    st.Message,
	}
}

// socket streams match events as JSON. The first frame is the current board.
func (h *handlers) socket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("match", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		return
	}
	defer unsub()

	// the client never sends anything useful; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeJSON(conn, newMatchEvent(domain.Event{Type: domain.EventBoard, Board: st.Board}, *st)); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber dropped"),
					time.Now().Add(writeWait))
				return
			}
			for _, ev := range b.Events {
				if err := h.writeJSON(conn, newMatchEvent(ev, b.State)); err != nil {
					h.log.Debug().Err(err).Str("match", id).Msg("websocket write failed")
					return
				}
			}
		}
	}
}

func (h *handlers) writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
