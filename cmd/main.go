package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/vinyl/internal/session"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, runner.palette.Error(err.Error()))
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, runner.palette.Help(hint))
		}
		stop()
		os.Exit(1)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "vinyl",
		Usage:   "Spotify login, browsing and playback from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before:   r.Before,
		After:    r.After,
		Commands: r.register(),
	}
}

// hintFor suggests the next step for a classified failure.
func hintFor(err error) string {
	switch session.KindOf(err) {
	case session.AuthExpired, session.AuthRejected:
		return "Run `vinyl login` to sign in again."
	case session.PremiumRequired:
		return "Playback control requires a Spotify Premium account."
	case session.ContentUnavailable:
		return "That playlist was not found; check `vinyl playlists` for valid ids."
	case session.DeviceNotReady, session.InitializationTimeout:
		return "Open Spotify on a device (or set player.device_name) and try again."
	}
	if errors.Is(err, shared.ErrInvalidConfig) {
		return "Run `vinyl setup` to create a config file."
	}
	return ""
}
