package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaminalder/hotseat-tic-tac-toe/internal/app"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/config"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/logging"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/web"
	"github.com/rs/zerolog"
)

func main() {
	conf := config.MustLoad(os.Getenv("CONFIG_PATH"))
	log := logging.New(conf.LogLevel, conf.LogFormat)

	if err := run(log, conf); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(log zerolog.Logger, conf *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := app.NewService(app.Options{
		Logger:           &log,
		Player1Default:   conf.Match.Player1Default,
		Player2Default:   conf.Match.Player2Default,
		SubscriberBuffer: conf.Match.SubscriberBuffer,
	})
	srv := &http.Server{
		Addr:    conf.HTTP.Addr,
		Handler: web.NewServer(svc, web.Options{Logger: &log, Heartbeat: conf.HTTP.SSEHeartbeat}),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", conf.HTTP.Addr).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
