package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/repository"
	"go.uber.org/zap"
)

// Operation names the mutation that triggered a sync
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpRate    Operation = "rate"
	OpComment Operation = "comment"
	OpDelete  Operation = "delete"
)

// DefaultBackfillBatchSize is used when Backfill gets a non-positive size
const DefaultBackfillBatchSize = 500

// AggregateReader reads recipe aggregates from the primary store.
// GetAggregate returns repository.ErrRecipeNotFound for missing recipes.
type AggregateReader interface {
	GetAggregate(ctx context.Context, recipeID string) (*models.Recipe, error)
	EachAggregateBatch(ctx context.Context, batchSize int, fn func([]models.Recipe) error) error
}

// DocumentWriter writes recipe documents to the index. *Client implements it.
type DocumentWriter interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, recipeID string) error
	BulkUpsert(ctx context.Context, docs []Document) error
}

// CacheInvalidator drops cached search results after the index changes
type CacheInvalidator interface {
	InvalidateSearchCache(ctx context.Context) error
}

// Coordinator keeps the index in step with the primary store: after each
// committed mutation it re-reads the whole aggregate and replaces the
// document. Sync failures never reach the mutation's caller.
type Coordinator struct {
	reader      AggregateReader
	writer      DocumentWriter
	invalidator CacheInvalidator
	timeout     time.Duration
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithCacheInvalidator invalidates cached results after each index write
func WithCacheInvalidator(inv CacheInvalidator) CoordinatorOption {
	return func(c *Coordinator) { c.invalidator = inv }
}

// WithSyncTimeout bounds one AfterMutation run (re-read plus write)
func WithSyncTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewCoordinator creates a sync coordinator
func NewCoordinator(reader AggregateReader, writer DocumentWriter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		reader:  reader,
		writer:  writer,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync rebuilds the recipe's document from a fresh aggregate read and
// upserts it. A recipe that no longer exists is skipped without error.
// Applying it twice leaves the same document.
func (c *Coordinator) Sync(ctx context.Context, recipeID string) error {
	recipe, err := c.reader.GetAggregate(ctx, recipeID)
	if errors.Is(err, repository.ErrRecipeNotFound) {
		logger.Log.Debug("Recipe gone before sync, skipping", logger.WithRecipeID(recipeID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load recipe aggregate: %w", err)
	}

	if err := c.writer.Upsert(ctx, ToDocument(*recipe)); err != nil {
		return fmt.Errorf("failed to upsert recipe document: %w", err)
	}

	return c.invalidate(ctx)
}

// Remove deletes the recipe's document
func (c *Coordinator) Remove(ctx context.Context, recipeID string) error {
	if err := c.writer.Delete(ctx, recipeID); err != nil {
		return fmt.Errorf("failed to delete recipe document: %w", err)
	}

	return c.invalidate(ctx)
}

// AfterMutation makes exactly one sync attempt for a committed mutation.
// It runs detached from ctx's cancellation, bounded by the sync timeout,
// and only logs failures.
func (c *Coordinator) AfterMutation(ctx context.Context, op Operation, recipeID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	var err error
	if op == OpDelete {
		err = c.Remove(ctx, recipeID)
	} else {
		err = c.Sync(ctx, recipeID)
	}

	if err != nil {
		metrics.IndexSyncTotal.WithLabelValues(string(op), "failed").Inc()
		logger.Log.Warn("Recipe index sync failed",
			logger.WithRecipeID(recipeID),
			logger.WithOperation(string(op)),
			logger.WithDuration(time.Since(start)),
			zap.Error(err),
		)
		return
	}

	metrics.IndexSyncTotal.WithLabelValues(string(op), "ok").Inc()
	logger.Log.Debug("Recipe index synced",
		logger.WithRecipeID(recipeID),
		logger.WithOperation(string(op)),
		logger.WithDuration(time.Since(start)),
	)
}

// Backfill regenerates every document from the primary store in batches of
// batchSize. It returns the number of documents written; unlike
// AfterMutation, failures are returned to the caller.
func (c *Coordinator) Backfill(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}

	total := 0
	err := c.reader.EachAggregateBatch(ctx, batchSize, func(batch []models.Recipe) error {
		docs := make([]Document, len(batch))
		for i := range batch {
			docs[i] = ToDocument(batch[i])
		}

		if err := c.writer.BulkUpsert(ctx, docs); err != nil {
			return fmt.Errorf("batch starting at document %d: %w", total, err)
		}

		total += len(docs)
		metrics.BackfillDocumentsTotal.Add(float64(len(docs)))
		logger.Log.Info("Backfill progress", zap.Int("indexed", total))
		return nil
	})

	if total > 0 {
		err = errors.Join(err, c.invalidate(ctx))
	}
	return total, err
}

// invalidate retires cached results after an index write. A failure means
// cached pages may predate the write, so it fails the sync.
func (c *Coordinator) invalidate(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	if err := c.invalidator.InvalidateSearchCache(ctx); err != nil {
		return fmt.Errorf("index written but search cache not invalidated: %w", err)
	}
	return nil
}
