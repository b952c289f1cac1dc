package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zfogg/recipebook/internal/config"
	"github.com/zfogg/recipebook/internal/container"
	"github.com/zfogg/recipebook/internal/logger"
	"go.uber.org/zap"
)

var (
	batchSize  int
	recreate   bool
	ifOutdated bool
)

var rootCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the recipe search index from the database",
	Long: `Reindex walks every recipe in the database and writes its search document
in bulk batches. With --recreate the recipe index is dropped and recreated
with the current mapping first; with --if-outdated that only happens when the
stored mapping version is older than the current one.`,
	SilenceUsage: true,
	RunE:         runReindex,
}

func init() {
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Recipes per bulk request (defaults to BACKFILL_BATCH_SIZE)")
	rootCmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the recipe index before backfilling")
	rootCmd.Flags().BoolVar(&ifOutdated, "if-outdated", false, "Recreate only when the index mapping is outdated")
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := logger.Initialize(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  !cfg.IsDevelopment(),
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	if batchSize <= 0 {
		batchSize = cfg.BackfillBatchSize
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := container.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Cleanup(context.Background()); err != nil {
			logger.ErrorWithFields("Cleanup incomplete", err)
		}
	}()

	client := deps.SearchClient()

	if ifOutdated && !recreate {
		outdated, err := client.IndexOutdated(ctx)
		if err != nil {
			return fmt.Errorf("failed to check index version: %w", err)
		}
		recreate = outdated
		if !outdated {
			logger.Log.Info("Index mapping is current", logger.WithIndex(client.RecipeIndex()))
		}
	}

	if recreate {
		logger.Log.Info("Recreating recipe index", logger.WithIndex(client.RecipeIndex()))
		if err := client.RecreateIndex(ctx); err != nil {
			return fmt.Errorf("failed to recreate index: %w", err)
		}
	}

	start := time.Now()
	indexed, err := deps.Coordinator().Backfill(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("backfill stopped after %d recipes: %w", indexed, err)
	}

	logger.Log.Info("Reindex completed",
		zap.Int("recipes", indexed),
		zap.Int("batch_size", batchSize),
		logger.WithDuration(time.Since(start)),
	)
	return nil
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
