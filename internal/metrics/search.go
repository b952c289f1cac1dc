package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query types used as the "type" label
const (
	QueryTypeSearch       = "search"
	QueryTypeCookWith     = "cook_with"
	QueryTypeAutocomplete = "autocomplete"
)

// Search metrics exported to Prometheus
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_search_queries_total",
			Help: "Total number of recipe search queries",
		},
		[]string{"type"},
	)

	SearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_search_query_duration_seconds",
			Help:    "Recipe search query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	SearchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_search_results_total",
			Help: "Total number of search results returned",
		},
		[]string{"type"},
	)

	SearchCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_search_cache_hits_total",
			Help: "Total number of search cache hits",
		},
	)

	SearchCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_search_cache_misses_total",
			Help: "Total number of search cache misses",
		},
	)

	SearchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_search_errors_total",
			Help: "Total number of search errors",
		},
		[]string{"type", "error_type"},
	)
)

// SearchMetrics keeps in-process query statistics for the stats endpoint.
// Prometheus counters are updated alongside.
type SearchMetrics struct {
	QueryCount        int64
	SearchQueries     int64
	CookWithQueries   int64
	AutocompleteCalls int64

	CacheHits   int64
	CacheMisses int64

	// milliseconds
	TotalQueryTime int64
	MaxQueryTime   int64

	ErrorCount   int64
	TimeoutCount int64

	TotalResults int64

	mu             sync.RWMutex
	queryTimings   []int64
	maxTimingsSize int
}

// QueryMetric represents a single search query's metrics
type QueryMetric struct {
	Type        string
	ResultCount int
	Duration    time.Duration
	CacheHit    bool
	Error       bool
	Timeout     bool
}

// NewSearchMetrics creates a new search metrics tracker
func NewSearchMetrics() *SearchMetrics {
	return &SearchMetrics{
		queryTimings:   make([]int64, 0, 1024),
		maxTimingsSize: 10000,
	}
}

// RecordQuery records a search query metric
func (sm *SearchMetrics) RecordQuery(metric QueryMetric) {
	atomic.AddInt64(&sm.QueryCount, 1)

	switch metric.Type {
	case QueryTypeSearch:
		atomic.AddInt64(&sm.SearchQueries, 1)
	case QueryTypeCookWith:
		atomic.AddInt64(&sm.CookWithQueries, 1)
	case QueryTypeAutocomplete:
		atomic.AddInt64(&sm.AutocompleteCalls, 1)
	}

	atomic.AddInt64(&sm.TotalResults, int64(metric.ResultCount))

	if metric.CacheHit {
		atomic.AddInt64(&sm.CacheHits, 1)
		SearchCacheHitsTotal.Inc()
	} else {
		atomic.AddInt64(&sm.CacheMisses, 1)
		SearchCacheMissesTotal.Inc()
	}

	if metric.Error {
		atomic.AddInt64(&sm.ErrorCount, 1)
		errorType := "query_failed"
		if metric.Timeout {
			atomic.AddInt64(&sm.TimeoutCount, 1)
			errorType = "timeout"
		}
		SearchErrorsTotal.WithLabelValues(metric.Type, errorType).Inc()
	}

	durationMs := metric.Duration.Milliseconds()
	atomic.AddInt64(&sm.TotalQueryTime, durationMs)
	for {
		oldMax := atomic.LoadInt64(&sm.MaxQueryTime)
		if durationMs <= oldMax || atomic.CompareAndSwapInt64(&sm.MaxQueryTime, oldMax, durationMs) {
			break
		}
	}

	sm.mu.Lock()
	if len(sm.queryTimings) < sm.maxTimingsSize {
		sm.queryTimings = append(sm.queryTimings, durationMs)
	}
	sm.mu.Unlock()

	SearchQueriesTotal.WithLabelValues(metric.Type).Inc()
	SearchQueryDuration.WithLabelValues(metric.Type).Observe(metric.Duration.Seconds())
	SearchResultsTotal.WithLabelValues(metric.Type).Add(float64(metric.ResultCount))
}

// GetStats returns current metrics as a map
func (sm *SearchMetrics) GetStats() map[string]interface{} {
	queryCount := atomic.LoadInt64(&sm.QueryCount)
	cacheHits := atomic.LoadInt64(&sm.CacheHits)
	cacheMisses := atomic.LoadInt64(&sm.CacheMisses)
	totalTime := atomic.LoadInt64(&sm.TotalQueryTime)
	errorCount := atomic.LoadInt64(&sm.ErrorCount)

	var avgTime, errorRate float64
	if queryCount > 0 {
		avgTime = float64(totalTime) / float64(queryCount)
		errorRate = float64(errorCount) / float64(queryCount) * 100
	}

	var cacheHitRate float64
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	sm.mu.RLock()
	p50, p95, p99 := sm.calculatePercentiles()
	sm.mu.RUnlock()

	return map[string]interface{}{
		"total_queries":      queryCount,
		"search_queries":     atomic.LoadInt64(&sm.SearchQueries),
		"cook_with_queries":  atomic.LoadInt64(&sm.CookWithQueries),
		"autocomplete_calls": atomic.LoadInt64(&sm.AutocompleteCalls),
		"cache_hits":         cacheHits,
		"cache_misses":       cacheMisses,
		"cache_hit_rate":     cacheHitRate,
		"total_results":      atomic.LoadInt64(&sm.TotalResults),
		"error_count":        errorCount,
		"error_rate":         errorRate,
		"timeout_count":      atomic.LoadInt64(&sm.TimeoutCount),
		"avg_query_time_ms":  avgTime,
		"max_query_time_ms":  atomic.LoadInt64(&sm.MaxQueryTime),
		"p50_query_time_ms":  p50,
		"p95_query_time_ms":  p95,
		"p99_query_time_ms":  p99,
		"timestamp":          time.Now().Unix(),
	}
}

// calculatePercentiles expects mu to be held
func (sm *SearchMetrics) calculatePercentiles() (p50, p95, p99 int64) {
	if len(sm.queryTimings) == 0 {
		return 0, 0, 0
	}

	timings := make([]int64, len(sm.queryTimings))
	copy(timings, sm.queryTimings)
	sort.Slice(timings, func(i, j int) bool { return timings[i] < timings[j] })

	n := len(timings)
	return timings[(n*50)/100], timings[(n*95)/100], timings[(n*99)/100]
}

// Reset clears all metrics
func (sm *SearchMetrics) Reset() {
	atomic.StoreInt64(&sm.QueryCount, 0)
	atomic.StoreInt64(&sm.SearchQueries, 0)
	atomic.StoreInt64(&sm.CookWithQueries, 0)
	atomic.StoreInt64(&sm.AutocompleteCalls, 0)
	atomic.StoreInt64(&sm.CacheHits, 0)
	atomic.StoreInt64(&sm.CacheMisses, 0)
	atomic.StoreInt64(&sm.TotalQueryTime, 0)
	atomic.StoreInt64(&sm.MaxQueryTime, 0)
	atomic.StoreInt64(&sm.ErrorCount, 0)
	atomic.StoreInt64(&sm.TimeoutCount, 0)
	atomic.StoreInt64(&sm.TotalResults, 0)

	sm.mu.Lock()
	sm.queryTimings = sm.queryTimings[:0]
	sm.mu.Unlock()
}
