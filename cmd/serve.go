package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/vinyl/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the OAuth callback, the JSON API and /metrics until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(nil)
	if err != nil {
		return err
	}

	router, _, err := server.New(server.Options{
		Session:     app.Session,
		RedirectURI: r.config.Spotify.RedirectURI,
		Metrics:     app.Metrics,
		Logger:      r.logger,
	})
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	httpServer := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	r.writePlain("→ Listening on http://%s (login at /login)\n", addr)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
