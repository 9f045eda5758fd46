package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/di"
	"github.com/listenupapp/tagnotes/internal/di/providers"
	"github.com/listenupapp/tagnotes/internal/logger"
	"github.com/listenupapp/tagnotes/internal/service"
)

// app carries the state shared by every command of one invocation.
type app struct {
	flags    config.Flags
	output   string
	injector *do.RootScope
}

// run executes one command line. The container is shut down afterwards,
// whether or not the command failed.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	a.shutdown()
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tagnotes",
		Short: "Notes with colored tags, kept in sync with a hosted or local backend",
		Long: `tagnotes keeps short notes labelled with colored tags.

Notes live in a hosted Supabase-compatible backend or in a local SQLite
database. Changes show up immediately and are rolled back if the backend
rejects them. Deleted notes can be restored during a short grace period.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := newPrinter(cmd.OutOrStdout(), a.output); err != nil {
				return err
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.EnvFile, "env-file", "", "path to a .env file (default .env)")
	pf.StringVar(&a.flags.Env, "env", "", "environment: development, staging or production")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.flags.DataDir, "data-dir", "", "directory for the session and the local database (default ~/.tagnotes)")
	pf.StringVar(&a.flags.BackendKind, "backend", "", "backend kind: rest or local")
	pf.StringVar(&a.flags.BackendURL, "backend-url", "", "hosted backend project URL")
	pf.StringVar(&a.flags.AnonKey, "anon-key", "", "hosted backend public API key")
	pf.StringVar(&a.flags.LocalPath, "db", "", "local SQLite database path")
	pf.StringVar(&a.flags.BackendTimeout, "timeout", "", "backend request timeout, e.g. 30s")
	pf.StringVar(&a.flags.DeleteGrace, "delete-grace", "", "undo window for deletes, e.g. 5s")
	pf.StringVar(&a.flags.SessionPath, "session-dir", "", "session database directory")
	pf.StringVarP(&a.output, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newNotesCmd(a),
		newTagsCmd(a),
	)
	return root
}

// container builds the DI container on first use. Commands that never call it
// open nothing.
func (a *app) container() (*do.RootScope, error) {
	if a.injector != nil {
		return a.injector, nil
	}
	// CLI commands stay quiet unless asked.
	flags := a.flags
	if flags.LogLevel == "" && os.Getenv("LOG_LEVEL") == "" {
		flags.LogLevel = "warn"
	}
	injector := di.NewContainer(flags)
	if err := di.Bootstrap(injector); err != nil {
		_ = injector.Shutdown()
		return nil, err
	}
	a.injector = injector
	return injector, nil
}

func (a *app) shutdown() {
	if a.injector == nil {
		return
	}
	injector := a.injector
	a.injector = nil

	log := slog.Default()
	if l, err := do.Invoke[*logger.Logger](injector); err == nil {
		log = l.Logger
	}
	if err := injector.Shutdown(); err != nil {
		log.Warn("Shutdown error", "error", err)
	}
}

// services gives a command the wired services.
func (a *app) services() (*clientServices, error) {
	injector, err := a.container()
	if err != nil {
		return nil, err
	}
	return &clientServices{
		auth:  do.MustInvoke[*service.AuthService](injector),
		notes: do.MustInvoke[*providers.NoteServiceHandle](injector).NoteService,
		tags:  do.MustInvoke[*service.TagService](injector),
	}, nil
}

func (a *app) printer(cmd *cobra.Command) *printer {
	p, _ := newPrinter(cmd.OutOrStdout(), a.output)
	return p
}

type clientServices struct {
	auth  *service.AuthService
	notes *service.NoteService
	tags  *service.TagService
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
