package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/storage"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the embedded template when missing and initializes the token
// storage backend, running migrations for SQLite. --client-id rewrites the config and --reset
// empties the store first.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.writeln(r.palette.OK("Config written to " + configPath))
	}

	if id := cmd.String("client-id"); id != "" {
		r.config.Spotify.ClientID = id
		if err := shared.SaveConfig(configPath, r.config); err != nil {
			return err
		}
		r.writeln(r.palette.OK("Client ID saved to " + configPath))
	}

	if cmd.Bool("reset") {
		r.logger.Info("resetting storage", "backend", r.config.Storage.Backend, "path", r.config.Storage.Path)
		if err := storage.Reset(r.config.Storage); err != nil {
			return fmt.Errorf("failed to reset storage: %w", err)
		}
		r.writeln(r.palette.OK("Stored tokens erased"))
	}

	r.logger.Info("initializing storage", "backend", r.config.Storage.Backend, "path", r.config.Storage.Path)

	store, err := storage.Open(r.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	r.writeln(r.palette.OK(fmt.Sprintf("Storage ready (%s)", r.config.Storage.Backend)))

	if err := r.config.Validate(); err != nil {
		r.writeln(r.palette.Warn(err.Error()))
		r.writeln(r.palette.Help("Set spotify.client_id in " + configPath + ", then run `vinyl login`."))
		return nil
	}

	r.writeln(r.palette.Help("Next: run `vinyl login`."))
	return nil
}
