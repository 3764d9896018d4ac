package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/vinyl/internal/server"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login runs the PKCE flow: it serves the redirect URI locally, opens the browser and waits for
// the callback.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	var navErr error
	app, err := r.open(func(authURL string) error {
		navErr = r.navigate(authURL)
		return navErr
	})
	if err != nil {
		return err
	}

	handler, err := server.NewOAuthHandler(app.Session, r.config.Spotify.RedirectURI)
	if err != nil {
		return err
	}
	addr, err := callbackAddr(r.config.Spotify.RedirectURI)
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Debug("starting callback server", "addr", addr)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify login...\n")
	authURL, err := app.Session.Login(ctx)
	if authURL == "" {
		return fmt.Errorf("failed to start login: %w", err)
	}
	if navErr != nil {
		r.logger.Warn("failed to open browser automatically", "error", navErr)
		r.writeln(r.palette.Warn("Could not open browser automatically."))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.loginTimeout)

	timeout := time.NewTimer(r.loginTimeout)
	defer timeout.Stop()

	select {
	case result := <-handler.Result():
		if result.Err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Err)
		}
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.loginTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.writeln(r.palette.OK("Logged in"))
}

// callbackAddr returns the host:port the redirect URI points at.
func callbackAddr(redirectURI string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: redirect URI: %v", shared.ErrInvalidConfig, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: redirect URI %q has no host", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		return net.JoinHostPort(u.Hostname(), port), nil
	}
	return u.Host, nil
}

// Logout forgets the saved session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(nil)
	if err != nil {
		return err
	}
	app.Session.Logout()
	return r.writeln(r.palette.OK("Logged out"))
}

// Status reports whether a usable session is stored.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(nil)
	if err != nil {
		return err
	}

	ts := app.Tokens.Load()
	status := struct {
		LoggedIn   bool       `json:"logged_in"`
		CanRefresh bool       `json:"can_refresh"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	}{
		LoggedIn:   app.Session.IsLoggedIn(),
		CanRefresh: ts.HasRefreshToken(),
	}
	if ts != nil {
		status.ExpiresAt = &ts.ExpiresAt
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, false)
	}

	switch {
	case status.LoggedIn:
		r.writeln(r.palette.OK("Logged in"))
		r.writePlain("Token expires: %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	case status.CanRefresh:
		r.writeln(r.palette.Warn("Access token expired; it will be refreshed on next use"))
	default:
		r.writeln(r.palette.Error("Not logged in"))
		r.writeln(r.palette.Help("Run `vinyl login`."))
	}
	return nil
}
