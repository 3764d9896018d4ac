package main

import "github.com/urfave/cli/v3"

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, logoutCommand, statusCommand, playlistsCommand,
		playCommand, toggleCommand, nextCommand, previousCommand, volumeCommand, muteCommand,
		serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a config file and initialize token storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "client-id",
				Usage: "Spotify client ID to save in the config file",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Erase stored tokens before initializing storage",
			},
		},
		Action: r.Setup,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in to Spotify in the browser",
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget saved tokens; the next login asks for credentials again",
		Action: r.Logout,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show login state",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List your playlists, Liked Songs first",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export as csv, markdown or text instead of printing",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Export file path (default playlists.<ext>)",
			},
		},
		Action: r.Playlists,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a playlist by id, or liked-songs",
		ArgsUsage: "<playlist-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Action: r.Play,
	}
}

func toggleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "toggle",
		Usage:  "Pause or resume playback",
		Action: r.Toggle,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "next",
		Usage:  "Skip to the next track",
		Action: r.Next,
	}
}

func previousCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "previous",
		Aliases: []string{"prev"},
		Usage:   "Go back to the previous track",
		Action:  r.Previous,
	}
}

func volumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "volume",
		Aliases:   []string{"vol"},
		Usage:     "Set the volume in percent",
		ArgsUsage: "<0-100>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "percent",
			},
		},
		Action: r.Volume,
	}
}

func muteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "mute",
		Usage:  "Mute or unmute playback",
		Action: r.Mute,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the OAuth callback, a JSON API and metrics over HTTP",
		Action: r.Serve,
	}
}
