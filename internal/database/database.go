package database

import (
	"fmt"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures the primary-store connection pool
type Options struct {
	URL             string
	Debug           bool
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	// Tracing registers the OpenTelemetry GORM plugin
	Tracing bool
}

// Open creates a pooled PostgreSQL connection. The returned handle is shared
// by every repository; callers own its lifetime and must Close it.
func Open(opts Options) (*gorm.DB, error) {
	gormLog := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Debug {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(opts.URL), &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(valueOr(opts.MaxIdleConns, 10))
	sqlDB.SetMaxOpenConns(valueOr(opts.MaxOpenConns, 100))
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logger.Log.Info("Database connected")
	return db, nil
}

// Migrate runs auto-migration for the recipe domain
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.Instruction{},
		&models.Rating{},
		&models.Comment{},
		&models.SearchEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db)

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes creates indexes AutoMigrate can't express. Failures are
// logged only; the indexes are performance aids.
func createIndexes(db *gorm.DB) {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_recipes_created ON recipes (created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe_position ON recipe_ingredients (recipe_id, position)",
		"CREATE INDEX IF NOT EXISTS idx_comments_recipe_created ON comments (recipe_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_search_events_created ON search_events (\"timestamp\" DESC)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
