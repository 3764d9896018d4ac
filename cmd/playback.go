package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/vinyl/internal/formatter"
	"github.com/desertthunder/vinyl/internal/session"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/ui"
	"github.com/urfave/cli/v3"
)

// Playlists prints the user's playlists with Liked Songs first, or exports them with --format.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(nil)
	if err != nil {
		return err
	}

	playlists, err := app.Session.GetUserPlaylists(ctx)
	if err != nil {
		return err
	}
	if len(playlists) == 0 && !app.Session.IsLoggedIn() {
		return &session.Error{Kind: session.AuthExpired, Message: "session expired"}
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if name := cmd.String("format"); name != "" {
		format, err := formatter.ParseFormat(name)
		if err != nil {
			return err
		}
		path, err := formatter.WriteExport(format, playlists, cmd.String("output"))
		if err != nil {
			return err
		}
		return r.writeln(r.palette.OK(fmt.Sprintf("Exported %d playlists to %s", len(playlists), path)))
	}

	r.writeln(r.palette.Title(fmt.Sprintf("%d playlists", len(playlists))))
	return r.writePlain("%s", r.palette.PlaylistTable(playlists))
}

// player brings the Connect device up before a transport command.
func (r *Runner) player(ctx context.Context) (*session.Facade, error) {
	app, err := r.open(nil)
	if err != nil {
		return nil, err
	}

	ready, err := app.Session.InitializePlayer(ctx, nil)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, &session.Error{Kind: session.DeviceNotReady, Message: "no playback device became ready"}
	}
	return app.Session, nil
}

// Play starts a playlist on the device.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: playlist id (see `vinyl playlists`)", shared.ErrMissingArgument)
	}

	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	if err := s.PlayPlaylist(ctx, id); err != nil {
		return err
	}
	return r.writeln(r.palette.OK("Playing " + id))
}

// Toggle pauses or resumes playback.
func (r *Runner) Toggle(ctx context.Context, cmd *cli.Command) error {
	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	paused := s.PlaybackState().Paused
	if err := s.TogglePlayback(ctx); err != nil {
		return err
	}
	if paused {
		return r.writeln(r.palette.OK("Resumed"))
	}
	return r.writeln(r.palette.OK("Paused"))
}

// Next skips forward.
func (r *Runner) Next(ctx context.Context, cmd *cli.Command) error {
	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	if err := s.NextTrack(ctx); err != nil {
		return err
	}
	return r.writeln(r.palette.OK("Skipped"))
}

// Previous skips back.
func (r *Runner) Previous(ctx context.Context, cmd *cli.Command) error {
	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	if err := s.PreviousTrack(ctx); err != nil {
		return err
	}
	return r.writeln(r.palette.OK("Back one track"))
}

// Volume sets the volume from a 0 to 100 percentage.
func (r *Runner) Volume(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("percent")
	if raw == "" {
		return fmt.Errorf("%w: volume percent", shared.ErrMissingArgument)
	}
	percent, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
	if err != nil || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100, got %q", shared.ErrInvalidArgument, raw)
	}

	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	if err := s.SetVolume(ctx, float64(percent)/100); err != nil {
		return err
	}
	return r.writeln(ui.VolumeBar(s.Volume(), false))
}

// Mute toggles mute and waits for the device to apply it.
func (r *Runner) Mute(ctx context.Context, cmd *cli.Command) error {
	s, err := r.player(ctx)
	if err != nil {
		return err
	}
	muted := s.ToggleMute(ctx)
	s.Wait()
	return r.writeln(ui.VolumeBar(s.Volume(), muted))
}
