package main

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/auth"
	"github.com/desertthunder/vinyl/internal/metrics"
	"github.com/desertthunder/vinyl/internal/player"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/session"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/storage"
	"github.com/desertthunder/vinyl/internal/tokens"
)

// App is the composed object graph behind every command.
type App struct {
	Session *session.Facade
	Tokens  *tokens.Store
	Metrics *metrics.Recorder
	closers []func() error
}

// Close disconnects the player, waits for background work and releases storage.
func (a *App) Close() error {
	a.Session.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Builder composes an [App] from configuration. Tests substitute their own.
type Builder func(cfg *shared.Config, logger *log.Logger, navigate auth.Navigator) (*App, error)

// BuildApp wires storage, tokens, auth, the Web API client, the Connect player and the session
// facade.
func BuildApp(cfg *shared.Config, logger *log.Logger, navigate auth.Navigator) (*App, error) {
	persistent, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	transient := storage.NewMemoryStore()

	rec := metrics.New()
	store := tokens.NewStore(persistent, transient, logger)

	controller := auth.New(cfg.Spotify, store,
		auth.WithNavigator(navigate),
		auth.WithLogger(logger),
		auth.WithMetrics(rec),
	)
	creds := session.NewCredentials(store, controller, logger)

	apiOpts := services.Options{
		BaseURL:        cfg.Spotify.APIURL,
		Metrics:        rec,
		Logger:         logger,
		OnUnauthorized: creds.Invalidate,
	}
	api := services.NewClient(creds.Token, apiOpts)

	connect := player.NewConnectFactory(func(token player.TokenFunc) player.Remote {
		return services.NewClient(services.TokenFunc(token), apiOpts)
	}, player.ConnectConfig{
		PollInterval: cfg.Player.PollInterval(),
		Logger:       logger,
	})
	adapter := player.NewAdapter(connect, player.Config{
		Name:        cfg.Player.DeviceName,
		Volume:      cfg.Player.Volume,
		InitTimeout: cfg.Player.InitTimeout(),
		Logger:      logger,
		Metrics:     rec,
		OnError:     creds.HandlePlayerError,
	})

	facade := session.New(session.Deps{
		Tokens:      store,
		Credentials: creds,
		Auth:        controller,
		API:         api,
		Player:      adapter,
		CacheSize:   cfg.Cache.TrackMetadataSize,
		Volume:      cfg.Player.Volume,
		Logger:      logger,
	})

	return &App{
		Session: facade,
		Tokens:  store,
		Metrics: rec,
		closers: []func() error{transient.Close, persistent.Close},
	}, nil
}
