package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/runmesh/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the orchestration tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rm, cfg, logger, err := o.mesh(ctx)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := server.New(rm.Engine(), rm.Tools(), rm.Bus(), func(so *server.Options) {
				so.Catalog = rm.Catalog()
				so.Logger = logger
			})

			g, gctx := errgroup.WithContext(ctx)
			rm.Start(gctx)

			g.Go(func() error { return srv.Start(addr) })
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("listening on %s", addr), color.FgGreen)

			serveErr := g.Wait()

			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return errors.Join(serveErr, rm.Close(closeCtx))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}
