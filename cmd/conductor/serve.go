package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/conductor/internal/api"
	"github.com/seantiz/conductor/internal/catalog"
	"github.com/seantiz/conductor/internal/config"
	"github.com/seantiz/conductor/internal/engine"
	"github.com/seantiz/conductor/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return serve(cmd, cfg)
		},
	}
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("conductor: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"applications_dir", cfg.ApplicationsDir,
		"max_concurrent", cfg.MaxConcurrent,
	)

	history, err := store.NewSQLiteStore(cfg.DBPath, cfg.HistoryCapacity)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer history.Close()

	cat, err := catalog.NewFS(cfg.ApplicationsDir, logger)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	runners, err := buildRunners(cfg)
	if err != nil {
		return err
	}

	eng := engine.NewEngine(engine.Options{
		MaxConcurrent:     cfg.MaxConcurrent,
		KeepAliveInterval: cfg.KeepAliveInterval,
	}, cat, history, runners, logger)

	srv := api.NewServer(cfg.ListenAddr, eng, history, cat, runners, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if cfg.WatchCatalog {
		g.Go(func() error {
			return cat.Watch(ctx, 0, nil)
		})
	}
	return g.Wait()
}
