package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/auth"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	logger       *log.Logger
	output       io.Writer
	palette      *ui.Palette
	build        Builder
	navigate     auth.Navigator
	loginTimeout time.Duration
	app          *App
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config       *shared.Config
	Logger       *log.Logger
	Output       io.Writer
	Build        Builder
	Navigate     auth.Navigator
	LoginTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Build == nil {
		opts.Build = BuildApp
	}
	if opts.Navigate == nil {
		opts.Navigate = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 2 * time.Minute
	}

	return &Runner{
		config:       opts.Config,
		logger:       opts.Logger,
		output:       opts.Output,
		palette:      ui.Default,
		build:        opts.Build,
		navigate:     opts.Navigate,
		loginTimeout: opts.LoginTimeout,
	}
}

// Before loads the file named by --config, falling back to defaults when it does not exist, and
// applies the configured log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		path := cmd.String("config")
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
			r.config = shared.DefaultConfig()
		}
	}

	if level := cmd.String("log-level"); level != "" {
		r.config.Logging.Level = level
	}
	if err := shared.SetLogLevel(r.logger, r.config.Logging.Level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// After releases the app built by the command, if any.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

// open validates the configuration and builds the app once per process. Only login passes a
// navigator, so other commands never open a browser on their own.
func (r *Runner) open(navigate auth.Navigator) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run `vinyl setup` and edit config.toml)", err)
	}

	app, err := r.build(r.config, r.logger, navigate)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeln(s string) error {
	return r.writePlain("%s\n", s)
}
