package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/app"
	"github.com/rs/zerolog"
)

// Options configures NewServer. Zero values get defaults.
type Options struct {
	Logger    *zerolog.Logger
	Heartbeat time.Duration
}

// NewServer wires routes and returns an http.Handler. It installs the board
// fragment as the service's broadcast renderer.
func NewServer(s *app.Service, opts Options) http.Handler {
	h := &handlers{svc: s, tpl: loadTemplates(), log: zerolog.Nop(), heartbeat: opts.Heartbeat}
	if opts.Logger != nil {
		h.log = opts.Logger.With().Str("component", "web").Logger()
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 15 * time.Second
	}
	s.SetRenderer(func(st app.MatchState) []byte { return h.renderBoard(st, "") })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/", h.index)
	r.Post("/match", h.create)
	r.Route("/match/{id}", func(r chi.Router) {
		r.Get("/", h.view)
		r.Post("/start", h.start)
		r.Post("/select", h.selectCell)
		r.Post("/restart", h.restart)
		r.Get("/events", h.events)
		r.Get("/ws", h.socket)
	})
	return r
}

func accessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
