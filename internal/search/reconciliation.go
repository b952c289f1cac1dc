package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"go.uber.org/zap"
)

// RecipeSampler picks recipe IDs for reconciliation
type RecipeSampler interface {
	SampleRecipeIDs(ctx context.Context, limit int) ([]string, error)
}

// RecipeSyncer re-syncs one recipe. *Coordinator implements it.
type RecipeSyncer interface {
	Sync(ctx context.Context, recipeID string) error
}

// RecipeCatalog answers which recipes the primary store holds
type RecipeCatalog interface {
	CountRecipes(ctx context.Context) (int64, error)
	ExistingRecipeIDs(ctx context.Context, ids []string) ([]string, error)
}

// IndexScanner enumerates the recipe index. *Client implements it.
type IndexScanner interface {
	Count(ctx context.Context) (int64, error)
	ScanIDs(ctx context.Context, batchSize int, fn func(ids []string) error) error
}

// DocumentRemover drops one recipe's document. *Coordinator implements it.
type DocumentRemover interface {
	Remove(ctx context.Context, recipeID string) error
}

// ReconciliationService periodically resyncs a random sample of recipes so
// documents whose sync failed after a mutation converge again. With an
// orphan sweep configured it also removes documents whose recipe is gone.
type ReconciliationService struct {
	sampler    RecipeSampler
	syncer     RecipeSyncer
	interval   time.Duration
	sampleSize int
	stopChan   chan struct{}
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.Mutex

	catalog RecipeCatalog
	index   IndexScanner
	remover DocumentRemover
}

// ReconciliationOption configures a ReconciliationService
type ReconciliationOption func(*ReconciliationService)

// WithOrphanSweep compares the index and store counts on every run and, when
// they differ, scans the index for documents whose recipe no longer exists
// and removes them
func WithOrphanSweep(catalog RecipeCatalog, index IndexScanner, remover DocumentRemover) ReconciliationOption {
	return func(rs *ReconciliationService) {
		rs.catalog = catalog
		rs.index = index
		rs.remover = remover
	}
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(sampler RecipeSampler, syncer RecipeSyncer, interval time.Duration, sampleSize int, opts ...ReconciliationOption) *ReconciliationService {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	rs := &ReconciliationService{
		sampler:    sampler,
		syncer:     syncer,
		interval:   interval,
		sampleSize: sampleSize,
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Start begins the periodic reconciliation loop. A non-positive interval
// leaves the service disabled.
func (rs *ReconciliationService) Start() {
	if rs.interval <= 0 {
		return
	}

	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting search index reconciliation",
		zap.Duration("interval", rs.interval),
		zap.Int("sample_size", rs.sampleSize),
	)

	rs.wg.Add(1)
	go rs.reconciliationLoop()
}

// Stop gracefully stops the reconciliation service
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Search index reconciliation stopped")
}

func (rs *ReconciliationService) reconciliationLoop() {
	defer rs.wg.Done()

	// Run once immediately on startup
	rs.runWithTimeout()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			rs.runWithTimeout()
		}
	}
}

func (rs *ReconciliationService) runWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	rs.RunOnce(ctx)
}

// RunOnce resyncs one random sample, then sweeps orphans when configured.
// It returns how many recipes were resynced successfully.
func (rs *ReconciliationService) RunOnce(ctx context.Context) int {
	startTime := time.Now()
	metrics.ReconciliationRuns.Inc()

	defer func() {
		if _, err := rs.SweepOrphans(ctx); err != nil {
			logger.Log.Warn("Orphan sweep failed", zap.Error(err))
		}
	}()

	ids, err := rs.sampler.SampleRecipeIDs(ctx, rs.sampleSize)
	if err != nil {
		logger.Log.Warn("Failed to sample recipes for reconciliation", zap.Error(err))
		return 0
	}

	resynced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := rs.syncer.Sync(ctx, id); err != nil {
			logger.Log.Warn("Failed to reconcile recipe",
				logger.WithRecipeID(id),
				zap.Error(err),
			)
			continue
		}
		resynced++
	}

	duration := time.Since(startTime)
	metrics.ReconciliationResynced.Set(float64(resynced))
	metrics.ReconciliationDuration.Observe(duration.Seconds())
	logger.Log.Info("Search index reconciliation completed",
		zap.Int("sampled", len(ids)),
		zap.Int("resynced", resynced),
		logger.WithDuration(duration),
	)

	return resynced
}

// SweepOrphans removes index documents whose recipe no longer exists in the
// primary store, such as those left by a failed delete sync. The index is
// only scanned when its document count differs from the store's recipe
// count. It returns the number of documents removed.
func (rs *ReconciliationService) SweepOrphans(ctx context.Context) (int, error) {
	if rs.catalog == nil || rs.index == nil || rs.remover == nil {
		return 0, nil
	}

	stored, err := rs.catalog.CountRecipes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count stored recipes: %w", err)
	}
	indexed, err := rs.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count indexed documents: %w", err)
	}
	if indexed == stored {
		return 0, nil
	}

	logger.Log.Info("Index and store counts differ, scanning for orphans",
		zap.Int64("stored", stored),
		zap.Int64("indexed", indexed),
	)

	removed := 0
	err = rs.index.ScanIDs(ctx, rs.sampleSize, func(ids []string) error {
		existing, err := rs.catalog.ExistingRecipeIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to look up recipes: %w", err)
		}
		live := make(map[string]bool, len(existing))
		for _, id := range existing {
			live[id] = true
		}

		for _, id := range ids {
			if live[id] {
				continue
			}
			if err := rs.remover.Remove(ctx, id); err != nil {
				logger.Log.Warn("Failed to remove orphaned document",
					logger.WithRecipeID(id),
					zap.Error(err),
				)
				continue
			}
			removed++
			metrics.ReconciliationOrphansRemoved.Inc()
		}
		return nil
	})

	if removed > 0 {
		logger.Log.Info("Removed orphaned documents", zap.Int("removed", removed))
	}
	return removed, err
}
