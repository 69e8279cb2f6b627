package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/app"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/domain"
	"github.com/rs/zerolog"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       zerolog.Logger
	heartbeat time.Duration
}

func (h *handlers) renderBoard(st app.MatchState, errMsg string) []byte {
	return renderTemplate(h.tpl.board, newViewData(st, errMsg))
}

func (h *handlers) writeBoard(w http.ResponseWriter, status int, st app.MatchState, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(h.renderBoard(st, errMsg))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, viewData{}))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	st, err := h.svc.CreateMatch()
	if err != nil {
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	if _, err := h.svc.Start(st.ID, r.Form.Get("player1"), r.Form.Get("player2")); err != nil {
		h.log.Error().Err(err).Str("match", st.ID).Msg("start new match")
		http.Error(w, "failed to start", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/match/"+st.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	st, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.match, newViewData(*st, "")))
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	st, err := h.svc.Start(chi.URLParam(r, "id"), r.Form.Get("player1"), r.Form.Get("player2"))
	h.respond(w, r, st, err)
}

func (h *handlers) selectCell(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	idx, err := strconv.Atoi(strings.TrimSpace(r.Form.Get("index")))
	if err != nil {
		http.Error(w, "Invalid cell", http.StatusBadRequest)
		return
	}
	st, err := h.svc.Select(chi.URLParam(r, "id"), idx)
	h.respond(w, r, st, err)
}

func (h *handlers) restart(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Restart(chi.URLParam(r, "id"))
	h.respond(w, r, st, err)
}

// respond writes the board fragment, mapping service errors to an alert and status.
// htmx requests always get 200 so the alert is swapped in.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, st *app.MatchState, err error) {
	if errors.Is(err, app.ErrNotFound) || st == nil {
		http.NotFound(w, r)
		return
	}
	status := http.StatusOK
	var errMsg string
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOutOfRange):
		status, errMsg = http.StatusBadRequest, "Out of range"
	case errors.Is(err, domain.ErrMatchInProgress):
		status, errMsg = http.StatusConflict, "Finish or restart the current match first"
	default:
		h.log.Error().Err(err).Str("match", st.ID).Msg("request failed")
		status, errMsg = http.StatusInternalServerError, "Something went wrong"
	}
	// htmx only swaps 2xx responses; the alert lives in the fragment it swaps in
	if isHTMX(r) && status < http.StatusInternalServerError {
		status = http.StatusOK
	}
	h.writeBoard(w, status, *st, errMsg)
}

func isHTMX(r *http.Request) bool { return r.Header.Get("HX-Request") == "true" }

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			for _, ev := range b.Events {
				writeSSE(w, string(ev.Type), b.Payload)
			}
			flusher.Flush()
		}
	}
}

// writeSSE emits one event; every payload line gets its own data field.
func writeSSE(w io.Writer, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}
