package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagnotes/internal/config"
	"github.com/listenupapp/tagnotes/internal/di"
	"github.com/listenupapp/tagnotes/internal/logger"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API with live updates over SSE",
		Long: `Run the local HTTP API. It signs in to the backend on behalf of its
callers, keeps the optimistic cache, and streams cache and delete changes
to /api/v1/events. With the local backend, edits made to the database by
other processes are picked up as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			injector := di.NewContainer(a.flags)
			a.injector = injector
			if err := di.BootstrapServer(injector); err != nil {
				return err
			}

			log := do.MustInvoke[*logger.Logger](injector)
			cfg := do.MustInvoke[*config.Config](injector)
			log.Info("Server running", "addr", cfg.ListenAddr(), "backend", cfg.Backend.Kind)

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			log.Info("Shutting down server gracefully...")
			return nil
		},
	}

	cmd.Flags().StringVar(&a.flags.Port, "port", "", "listen port (default 8080)")
	cmd.Flags().StringVar(&a.flags.CORSOrigins, "cors-origins", "", "comma-separated allowed browser origins")
	return cmd
}
