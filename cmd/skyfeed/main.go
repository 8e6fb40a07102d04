package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"skyfeed/internal/config"
	"skyfeed/internal/generate"
	"skyfeed/internal/ingest"
	"skyfeed/internal/publish"
	"skyfeed/internal/server"
	"skyfeed/internal/store"
	"skyfeed/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "skyfeed",
	Short: "skyfeed - aviation news ingestion and generation pipeline",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trigger API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateForServe(); err != nil {
			return err
		}

		st, err := store.NewHybridStore(cfg.Redis.Addr, cfg.Badger.Path)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer st.Close()

		ing := ingest.NewDefaultIngestor(st, cfg, logger)
		dr := worker.NewDrainer(st, generate.NewClient(cfg.Generator), logger)
		pub := publish.NewPublisher(st, logger)

		srv := server.NewServer(st, ing, dr, pub, cfg.Server.Secret, cfg.Generator.MaxBatch, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("Shutting down...")
			srv.Stop(context.Background())
			cancel()
		}()

		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one fetch cycle over the configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := loadStore()
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := ingest.NewDefaultIngestor(st, cfg, logger).Run(cmd.Context())
		if err != nil {
			return err
		}

		logger.Info("Fetch cycle finished",
			zap.Int("sources", report.Sources),
			zap.Int("inserted", report.Inserted))
		return nil
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Drain pending queue entries through the generator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, st, err := loadStore()
		if err != nil {
			return err
		}
		defer st.Close()

		dr := worker.NewDrainer(st, generate.NewClient(cfg.Generator), logger)
		result, err := dr.Drain(cmd.Context(), cfg.Generator.MaxBatch)
		if err != nil {
			return err
		}

		logger.Info("Drain finished",
			zap.Int("done", result.Done),
			zap.Int("failed", result.Failed))
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish [draftID]",
	Short: "Promote a draft to a published article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := loadStore()
		if err != nil {
			return err
		}
		defer st.Close()

		article, err := publish.NewPublisher(st, logger).Publish(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		logger.Info("Published",
			zap.String("article_id", article.ID),
			zap.String("slug", article.Slug))
		return nil
	},
}

var requeueCmd = &cobra.Command{
	Use:   "requeue [entryKey]",
	Short: "Reset an errored queue entry to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := loadStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RequeueEntry(cmd.Context(), args[0]); err != nil {
			return err
		}

		logger.Info("Entry requeued", zap.String("key", args[0]))
		return nil
	},
}

func loadStore() (config.Config, *store.HybridStore, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}

	st, err := store.NewHybridStore(cfg.Redis.Addr, cfg.Badger.Path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init store: %w", err)
	}
	return cfg, st, nil
}

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "skyfeed.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(requeueCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
