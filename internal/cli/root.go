// Package cli implements the linkdump command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdump/internal/app"
	"github.com/MrSnakeDoc/linkdump/internal/config"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/version"
)

// Execute loads .env files and runs the root command.
func Execute() error {
	if err := config.LoadDotenv(); err != nil {
		return err
	}
	return NewRootCommand().ExecuteContext(context.Background())
}

// runner carries the global flags and opens the app on demand, so
// commands like version never touch the store.
type runner struct {
	db       string
	logLevel string
}

type appFunc func(cmd *cobra.Command, args []string, a *app.App) error

func (r *runner) withApp(fn appFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if r.db != "" {
			cfg.DB = r.db
		}
		if r.logLevel != "" {
			cfg.LogLevel = r.logLevel
		}

		log := logger.New(cfg.LogLevel, cfg.PrettyLog)
		defer func() { _ = log.Sync() }()

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, args, a)
	}
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	r := &runner{}

	root := &cobra.Command{
		Use:   "linkdump",
		Short: "Import markdown link dumps and enrich every link",
		Long: `linkdump parses nested markdown lists of links, merges them into a
SQLite database and enriches each link with its fetched body, title,
publication date, image, meta tags and readable text.

Example link dump:

  - some link: https://foo.bar/baz
    - notes:
      - # heading
      - some more text
    - tags:
      - a
      - b`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&r.db, "db", "",
		`sqlite database path or DSN, or "memory" (default $LINKDUMP_DB or linkdump.db)`)
	root.PersistentFlags().StringVar(&r.logLevel, "log-level", "",
		"debug, info, warn or error (default $LINKDUMP_LOG_LEVEL or info)")

	root.AddCommand(
		newImportCommand(r),
		newRebuildCommand(r),
		newRefetchCommand(r),
		newShowCommand(r),
		newTagsCommand(r),
		newListCommand(r),
		newHideCommand(r, true),
		newHideCommand(r, false),
		newServeCommand(r),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkdump %s (commit=%s, built=%s, go=%s)\n",
				version.Version, version.Commit, version.BuildDate, version.GoVersion)
		},
	}
}

func newServeCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Re-import watched link dumps periodically and expose status over HTTP",
		Args:  cobra.NoArgs,
		RunE: r.withApp(func(cmd *cobra.Command, _ []string, a *app.App) error {
			return a.Serve(cmd.Context())
		}),
	}
}
