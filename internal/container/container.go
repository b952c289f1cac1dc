// Package container wires the recipe service and the search engine
// together. The server, seed and reindex commands all build from it.
package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/zfogg/recipebook/internal/cache"
	"github.com/zfogg/recipebook/internal/config"
	"github.com/zfogg/recipebook/internal/database"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/recipes"
	"github.com/zfogg/recipebook/internal/repository"
	"github.com/zfogg/recipebook/internal/search"
	"github.com/zfogg/recipebook/internal/users"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds the application's dependencies and their shutdown hooks
type Container struct {
	cfg *config.Config

	// Core infrastructure
	db    *gorm.DB
	index *search.Client
	redis *cache.RedisClient

	// Search
	resultCache *search.ResultCache
	coordinator *search.Coordinator
	recorder    *search.Recorder
	engine      *search.Engine
	reconciler  *search.ReconciliationService

	recipes *recipes.Service
	users   *users.Service

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// Option customises Build
type Option func(*buildOptions)

type buildOptions struct {
	db        *gorm.DB
	transport http.RoundTripper
}

// WithDB uses an already opened database instead of connecting to
// cfg.DatabaseURL. The caller keeps ownership of db.
func WithDB(db *gorm.DB) Option {
	return func(o *buildOptions) { o.db = db }
}

// WithTransport overrides the Elasticsearch HTTP transport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *buildOptions) { o.transport = rt }
}

// New creates an empty container
func New(cfg *config.Config) *Container {
	return &Container{
		cfg:          cfg,
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// Build connects to every backing service and assembles the search engine
// and recipe service. Elasticsearch and Redis being unreachable is not
// fatal; the database is.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := New(cfg)

	// Database
	db := o.db
	if db == nil {
		var err error
		db, err = database.Open(database.Options{
			URL:     cfg.DatabaseURL,
			Tracing: cfg.OTelEnabled,
		})
		if err != nil {
			return nil, err
		}
		c.OnCleanup(func(context.Context) error { return database.Close(db) })
	}
	if err := database.Migrate(db); err != nil {
		_ = c.Cleanup(ctx)
		return nil, err
	}
	c.db = db

	// Elasticsearch
	transport := o.transport
	if transport == nil && cfg.OTelEnabled {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	index, err := search.NewClient(search.ClientConfig{
		Addresses:      []string{cfg.ElasticsearchURL},
		Username:       cfg.ElasticsearchUsername,
		Password:       cfg.ElasticsearchPassword,
		RecipeIndex:    cfg.SearchIndex,
		AnalyticsIndex: cfg.AnalyticsIndex,
		Timeout:        cfg.SearchTimeout,
		Transport:      transport,
	})
	if err != nil {
		_ = c.Cleanup(ctx)
		return nil, err
	}
	if err := index.EnsureIndex(ctx); err != nil {
		logger.WarnWithFields("Search indices not ready; search will report unavailable until the cluster answers", err)
	}
	c.index = index

	// Redis is optional
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.WarnWithFields("Redis unavailable, search results will not be cached", err)
		} else {
			c.redis = redisClient
			c.resultCache = search.NewResultCache(redisClient, cfg.SearchCacheTTL)
			c.OnCleanup(func(context.Context) error { return redisClient.Close() })
		}
	}

	recipeRepo := repository.NewRecipeRepository(db)

	c.coordinator = search.NewCoordinator(recipeRepo, index,
		search.WithCacheInvalidator(c.resultCache),
		search.WithSyncTimeout(cfg.SyncTimeout),
	)

	var sink search.AnalyticsSink = index
	if cfg.AnalyticsSink == config.AnalyticsSinkDatabase {
		sink = search.NewDatabaseSink(repository.NewSearchEventRepository(db))
	}
	c.recorder = search.NewRecorder(sink, cfg.SearchTimeout)
	c.OnCleanup(func(context.Context) error {
		c.recorder.Wait()
		return nil
	})

	c.engine = search.NewEngine(index,
		search.WithRecorder(c.recorder),
		search.WithResultCache(c.resultCache),
	)

	c.reconciler = search.NewReconciliationService(recipeRepo, c.coordinator, cfg.ReconcileInterval, cfg.ReconcileSampleSize,
		search.WithOrphanSweep(recipeRepo, c.index, c.coordinator),
	)
	c.recipes = recipes.NewService(recipeRepo, c.coordinator)
	c.users = users.NewService(repository.NewUserRepository(db), c.coordinator)

	logger.Log.Info("Dependencies initialized",
		zap.String("search_index", index.RecipeIndex()),
		zap.String("analytics_sink", cfg.AnalyticsSink),
		zap.Bool("result_cache", c.redis != nil),
	)

	if err := c.Validate(); err != nil {
		_ = c.Cleanup(ctx)
		return nil, err
	}
	return c, nil
}

// Config returns the configuration the container was built from
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB returns the database connection
func (c *Container) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SearchClient returns the Elasticsearch client
func (c *Container) SearchClient() *search.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Coordinator returns the index sync coordinator
func (c *Container) Coordinator() *search.Coordinator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coordinator
}

// Engine returns the query engine
func (c *Container) Engine() *search.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Recorder returns the analytics recorder
func (c *Container) Recorder() *search.Recorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recorder
}

// Reconciler returns the periodic reconciliation service
func (c *Container) Reconciler() *search.ReconciliationService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconciler
}

// Recipes returns the recipe service
func (c *Container) Recipes() *recipes.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recipes
}

// Users returns the profile service
func (c *Container) Users() *users.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions run in LIFO order.
func (c *Container) OnCleanup(fn func(context.Context) error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs every registered cleanup function in reverse order of
// registration and returns their joined errors. It is safe to call twice.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			errs = append(errs, fmt.Errorf("cleanup %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks that all required dependencies are registered
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	if c.db == nil {
		missingDeps = append(missingDeps, "database")
	}
	if c.index == nil {
		missingDeps = append(missingDeps, "search client")
	}
	if c.engine == nil {
		missingDeps = append(missingDeps, "query engine")
	}
	if c.recipes == nil {
		missingDeps = append(missingDeps, "recipe service")
	}

	if len(missingDeps) > 0 {
		return &MissingDependenciesError{Missing: missingDeps}
	}
	return nil
}

// MissingDependenciesError lists the dependencies Validate found unset
type MissingDependenciesError struct {
	Missing []string
}

func (e *MissingDependenciesError) Error() string {
	return "missing required dependencies: " + strings.Join(e.Missing, ", ")
}
