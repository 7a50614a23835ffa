package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vidstat-lab/vidstat/internal/answer"
	"github.com/vidstat-lab/vidstat/internal/bot"
	"github.com/vidstat-lab/vidstat/internal/config"
	"github.com/vidstat-lab/vidstat/internal/dataset"
	"github.com/vidstat-lab/vidstat/internal/intent"
	"github.com/vidstat-lab/vidstat/internal/migrations"
	"github.com/vidstat-lab/vidstat/internal/server"
	"github.com/vidstat-lab/vidstat/internal/storage/postgres"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var configPath string

	root := &cobra.Command{
		Use:           "vidstat",
		Short:         "Answers natural-language analytics questions about videos",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "vidstat.yaml", "Path to configuration file")

	root.AddCommand(serveCommand(&configPath))
	root.AddCommand(migrateCommand(&configPath))
	root.AddCommand(loadCommand(&configPath))

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Load Configuration
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// 2. Initialize Storage (PostgreSQL)
			dbAdapter, err := postgres.NewAdapter(
				cfg.Database.DSN,
				cfg.Database.MaxOpenConns,
				cfg.Database.MaxIdleConns,
			)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbAdapter.Close()

			// 2.1. Run Database Migrations
			if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
				return fmt.Errorf("failed to run database migrations: %w", err)
			}

			// 3. Initialize the question pipeline
			parser, err := intent.NewParser(intent.LLMConfig{
				Enabled:     cfg.LLM.Enabled,
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				BaseURL:     cfg.LLM.BaseURL,
				Timeout:     cfg.LLM.Timeout(),
				Temperature: cfg.LLM.Temperature,
			}, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to initialize parser: %w", err)
			}
			answers := answer.NewService(parser, dbAdapter, slog.Default())

			// 4. Initialize Transports
			srv := server.New(
				fmtAddr(cfg.Server.Host, cfg.Server.Port),
				dbAdapter.DB(),
				cfg.Server.Mode,
				answers,
			)

			var tgBot *bot.Bot
			if cfg.Telegram.Token != "" {
				tgBot, err = bot.New(bot.Config{
					Token:          cfg.Telegram.Token,
					PollTimeoutSec: cfg.Telegram.PollTimeoutSec,
					Debug:          cfg.Telegram.Debug,
				}, answers, slog.Default())
				if err != nil {
					return fmt.Errorf("failed to initialize telegram bot: %w", err)
				}
			} else {
				slog.Info("Telegram bot disabled: no token configured")
			}

			// 5. Start Services
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Signal handler triggers the shutdown sequence below.
			go func() {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
				<-quit
				slog.Info("Signal received, shutting down...")
				cancel()
			}()

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return srv.Run(groupCtx)
			})
			if tgBot != nil {
				group.Go(func() error {
					return tgBot.Run(groupCtx)
				})
			}

			if err := group.Wait(); err != nil {
				return err
			}
			slog.Info("Shutdown complete")
			return nil
		},
	}
}

func migrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			dbAdapter, err := postgres.NewAdapter(
				cfg.Database.DSN,
				cfg.Database.MaxOpenConns,
				cfg.Database.MaxIdleConns,
			)
			if err != nil {
				// The adapter refuses to start without the schema; open a
				// bare pool instead so first-run migrations can create it.
				return migrateFresh(cfg)
			}
			defer dbAdapter.Close()

			return migrations.RunMigrations(dbAdapter.DB(), true)
		},
	}
}

// migrateFresh applies migrations against a database that has no schema yet.
func migrateFresh(cfg *config.Config) error {
	db, err := postgres.OpenBare(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.RunMigrations(db, true)
}

func loadCommand(configPath *string) *cobra.Command {
	var (
		path     string
		url      string
		truncate bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the videos.json dataset into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if path != "" && url != "" {
				return fmt.Errorf("only one of --path or --url may be provided")
			}
			if path == "" && url == "" {
				path = cfg.Dataset.Path
			}

			dbAdapter, err := postgres.NewAdapter(
				cfg.Database.DSN,
				cfg.Database.MaxOpenConns,
				cfg.Database.MaxIdleConns,
			)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer dbAdapter.Close()

			loader := dataset.NewLoader(dbAdapter.DB(), slog.Default())
			opts := dataset.Options{
				Truncate:  truncate || cfg.Dataset.Truncate,
				BatchSize: cfg.Dataset.BatchSize,
			}

			if path != "" {
				return loader.LoadFile(cmd.Context(), path, opts)
			}
			return loader.LoadURL(cmd.Context(), url, opts)
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Path to the dataset JSON file (e.g. videos.json)")
	cmd.Flags().StringVar(&url, "url", "", "URL to download the dataset JSON")
	cmd.Flags().BoolVar(&truncate, "truncate", false, "TRUNCATE target tables before loading (destructive)")

	return cmd
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
