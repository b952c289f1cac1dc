package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/recipebook/internal/config"
	"github.com/zfogg/recipebook/internal/container"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/seed"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Parse command
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var run func(*seed.Seeder, context.Context) error
	switch command {
	case "dev":
		run = (*seed.Seeder).SeedDev
	case "test":
		run = (*seed.Seeder).SeedTest
	case "clean":
		run = func(s *seed.Seeder, _ context.Context) error { return s.Clean() }
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := logger.Initialize(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  !cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	ctx := context.Background()
	deps, err := container.Build(ctx, cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize dependencies", err)
	}

	seeder := seed.NewSeeder(deps.DB(), deps.Recipes())
	err = run(seeder, ctx)
	if cleanupErr := deps.Cleanup(ctx); cleanupErr != nil {
		logger.ErrorWithFields("Cleanup incomplete", cleanupErr)
	}
	if err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}

	logger.Log.Info("Seeding completed")
}
