package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/choigod1023/american-stock-news-discord-bot/api"
)

// --- Run Command ---

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot (and the status server when enabled)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if serve, _ := cmd.Flags().GetBool("serve"); serve {
				cfg.API.Enabled = true
			}

			a := newApp(cfg, logger)
			if err := a.addDiscord(); err != nil {
				return err
			}
			orch, err := a.orchestrator()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			if cfg.API.Enabled {
				srv := api.NewServer(api.Options{
					Config:     cfg,
					Bot:        orch,
					Cache:      a.cache,
					Classifier: a.classifier,
					Metrics:    a.metrics,
					Logger:     logger,
					Version:    version,
				})
				a.dispatcher.Add(srv.Hub())
				g.Go(func() error { return srv.ListenAndServe(ctx, cfg.API.Addr()) })
			}
			g.Go(func() error { return orch.Run(ctx) })

			logger.Info("newsbot started",
				"version", version,
				"destinations", a.dispatcher.Destinations(),
				"status_server", cfg.API.Enabled,
			)
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("newsbot stopped: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Bool("serve", false, "also start the HTTP status server")
	return cmd
}
