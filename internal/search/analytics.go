package search

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/models"
	"go.uber.org/zap"
)

// SearchEvent is one recorded search
type SearchEvent struct {
	UserID      *string   `json:"user_id"`
	Query       *string   `json:"query"`
	Ingredients []string  `json:"ingredients"`
	Timestamp   time.Time `json:"timestamp"`
}

// AnalyticsSink stores search events. *Client writes to the analytics
// index; DatabaseSink writes to the search_events table.
type AnalyticsSink interface {
	WriteSearchEvent(ctx context.Context, event SearchEvent) error
}

// SearchEventStore is the persistence side of DatabaseSink
type SearchEventStore interface {
	CreateSearchEvent(ctx context.Context, event *models.SearchEvent) error
}

// DatabaseSink adapts a SearchEventStore to AnalyticsSink
type DatabaseSink struct {
	store SearchEventStore
}

// NewDatabaseSink creates a sink that writes events through store
func NewDatabaseSink(store SearchEventStore) *DatabaseSink {
	return &DatabaseSink{store: store}
}

func (s *DatabaseSink) WriteSearchEvent(ctx context.Context, event SearchEvent) error {
	return s.store.CreateSearchEvent(ctx, &models.SearchEvent{
		UserID:      event.UserID,
		Query:       event.Query,
		Ingredients: event.Ingredients,
		Timestamp:   event.Timestamp,
	})
}

// Recorder writes search events in the background. Record never blocks on
// the sink and never reports its failures; they are logged and counted.
type Recorder struct {
	sink    AnalyticsSink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder; timeout <= 0 uses DefaultTimeout
func NewRecorder(sink AnalyticsSink, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Recorder{sink: sink, timeout: timeout}
}

// Record queues event for writing. A zero timestamp becomes now. The write
// runs detached from ctx, so a finished request does not cancel it.
// A nil Recorder discards events.
func (r *Recorder) Record(ctx context.Context, event SearchEvent) {
	if r == nil || r.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Ingredients == nil {
		event.Ingredients = []string{}
	}

	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Error("Search event write panicked", zap.Any("panic", rec))
				metrics.AnalyticsEventsTotal.WithLabelValues("failed").Inc()
			}
		}()

		writeCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		if err := r.sink.WriteSearchEvent(writeCtx, event); err != nil {
			logger.Log.Debug("Failed to record search event", zap.Error(err))
			metrics.AnalyticsEventsTotal.WithLabelValues("failed").Inc()
			return
		}
		metrics.AnalyticsEventsTotal.WithLabelValues("recorded").Inc()
	}()
}

// Wait blocks until every queued write has finished
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
