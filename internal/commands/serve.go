package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"bank-dashboard/pkg/api"
	"bank-dashboard/pkg/config"
	"bank-dashboard/pkg/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd, func(c *config.Config) {
				if cmd.Flags().Changed("addr") {
					c.Server.Address = addr
				}
			})
			if err != nil {
				return err
			}
			defer logger.Sync()

			ln, err := net.Listen("tcp", cfg.Server.Address)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Server.Address, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")

	return cmd
}

// serve runs the dashboard on ln until ctx is cancelled. The first
// transaction load starts alongside the listener.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger, ln net.Listener) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer a.Close()

	srv := api.NewServer(api.Dependencies{
		Store:    a.store,
		Flow:     a.flow,
		Widget:   a.widget,
		Metrics:  a.collector,
		Registry: a.registry,
		Logger:   logger,
	}, cfg.Server)

	logger.Info("starting bank dashboard",
		zap.String("address", ln.Addr().String()),
		zap.String("backend", a.client.BaseURL()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ln)
	})

	g.Go(func() error {
		// Failures are logged by the store and leave the list empty.
		_ = a.store.Refresh(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
