// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles Spotify OAuth2 authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Auth,
	}
}

// libraryCommand handles library analysis operations.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Analyze your saved-track library",
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Fetch saved tracks and cluster them by audio features",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "tracks",
						Usage: "Maximum number of saved tracks to fetch (0 uses the configured default)",
					},
					&cli.BoolFlag{
						Name:    "watch",
						Aliases: []string{"w"},
						Usage:   "Follow analysis progress until it finishes",
						Value:   true,
					},
				},
				Action: r.LibraryAnalyze,
			},
			{
				Name:  "progress",
				Usage: "Show the current analysis progress",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryProgress,
			},
			{
				Name:   "clear-error",
				Usage:  "Reset a failed analysis so it can be retried",
				Action: r.LibraryClearError,
			},
			{
				Name:  "summary",
				Usage: "Show library size and analysis state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibrarySummary,
			},
			{
				Name:  "clusters",
				Usage: "Show the taste clusters from the last analysis",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Output Markdown",
					},
				},
				Action: r.LibraryClusters,
			},
		},
	}
}

// recommendCommand handles recommendation operations.
func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recommend",
		Aliases: []string{"rec"},
		Usage:   "Generate and review recommendations",
		Commands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Generate a new recommendation batch",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Batch kind: cluster, nostalgia, or forgotten",
						Value:   "cluster",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of recommendations (0 uses the default batch size)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv, or markdown",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file base path (csv) or directory (markdown)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.RecommendNew,
			},
			{
				Name:  "history",
				Usage: "Show previously issued recommendations, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RecommendHistory,
			},
			{
				Name:  "feedback",
				Usage: "Record feedback on a recommendation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Recommendation ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "liked",
						Usage: "Mark the recommendation as liked (saves the track to your library)",
					},
					&cli.BoolFlag{
						Name:  "disliked",
						Usage: "Mark the recommendation as disliked",
					},
					&cli.BoolFlag{
						Name:  "knew",
						Usage: "Mark the track as one you already knew",
					},
				},
				Action: r.RecommendFeedback,
			},
			{
				Name:   "quota",
				Usage:  "Show how many recommendation batches remain today",
				Action: r.RecommendQuota,
			},
		},
	}
}

// profileCommand handles user profile operations.
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "View and update your profile",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the authenticated profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ProfileShow,
			},
			{
				Name:  "birthdate",
				Usage: "Set your date of birth (YYYY-MM-DD), required for nostalgia recommendations",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "date",
					},
				},
				Action: r.ProfileBirthdate,
			},
		},
	}
}

// serveCommand runs the HTTP API server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the recommendation HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to bind (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive use.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal UI",
		Action:  r.TUI,
	}
}
