package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"go.uber.org/zap"
)

// ErrSearchUnavailable is returned when the search engine cannot answer.
// An empty result set is never reported as this error.
var ErrSearchUnavailable = errors.New("search unavailable")

// SortBy selects the result ordering
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortRating    SortBy = "rating"
	SortNewest    SortBy = "newest"
)

const (
	DefaultPerPage          = 10
	DefaultCookWithLimit    = 20
	DefaultAutocompleteSize = 10
)

// ParseSortBy maps user input to a SortBy; anything unknown is relevance
func ParseSortBy(s string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortRating:
		return SortRating
	case SortNewest:
		return SortNewest
	default:
		return SortRelevance
	}
}

// SearchParams are the inputs of a recipe search
type SearchParams struct {
	Query          string   `json:"q,omitempty"`
	Ingredients    []string `json:"ingredients,omitempty"`
	Cuisine        string   `json:"cuisine,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	CookingTimeMin *int     `json:"min_time,omitempty"`
	CookingTimeMax *int     `json:"max_time,omitempty"`
	SortBy         SortBy   `json:"sort_by,omitempty"`
	Page           int      `json:"page"`
	PerPage        int      `json:"per_page"`
	// UserID only feeds analytics; it never changes the results
	UserID string `json:"-"`
}

// Normalize applies defaults and clamps: page >= 1, perPage defaulting to
// 10, a known sort order, lowercased cuisine and difficulty (as stored), and
// trimmed, lowercased, de-duplicated ingredients
func (p SearchParams) Normalize() SearchParams {
	p.Query = strings.TrimSpace(p.Query)
	p.Cuisine = strings.ToLower(strings.TrimSpace(p.Cuisine))
	p.Difficulty = strings.ToLower(strings.TrimSpace(p.Difficulty))
	p.SortBy = ParseSortBy(string(p.SortBy))
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	p.Ingredients = normalizeIngredients(p.Ingredients)
	return p
}

// Offset is the index of the first hit on the page
func (p SearchParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func normalizeIngredients(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, name := range in {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Hit is a matched document with its relevance score
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// SearchResult is one page of hits plus the unpaginated match count
type SearchResult struct {
	Total   int   `json:"total"`
	Results []Hit `json:"results"`
}

// BuildSearchQuery renders params as an Elasticsearch request body
func BuildSearchQuery(params SearchParams) map[string]interface{} {
	p := params.Normalize()

	boolQuery := map[string]interface{}{}
	if p.Query == "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	} else {
		// Ingredients are nested, so their free text needs its own clause
		boolQuery["should"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     p.Query,
					"fields":    []string{"title^3", "description", "instructions"},
					"fuzziness": "AUTO",
				},
			},
			map[string]interface{}{
				"nested": map[string]interface{}{
					"path":       "ingredients",
					"score_mode": "max",
					"query": map[string]interface{}{
						"match": map[string]interface{}{
							"ingredients.name_text": map[string]interface{}{
								"query":     p.Query,
								"fuzziness": "AUTO",
							},
						},
					},
				},
			},
		}
		boolQuery["minimum_should_match"] = 1
	}

	filters := make([]interface{}, 0, len(p.Ingredients)+3)
	// One nested clause per ingredient: every one must be present
	for _, name := range p.Ingredients {
		filters = append(filters, map[string]interface{}{
			"nested": map[string]interface{}{
				"path": "ingredients",
				"query": map[string]interface{}{
					"term": map[string]interface{}{"ingredients.name": name},
				},
			},
		})
	}
	if p.Cuisine != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"cuisine": p.Cuisine},
		})
	}
	if p.Difficulty != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"difficulty": p.Difficulty},
		})
	}
	if p.CookingTimeMin != nil || p.CookingTimeMax != nil {
		bounds := map[string]interface{}{}
		if p.CookingTimeMin != nil {
			bounds["gte"] = *p.CookingTimeMin
		}
		if p.CookingTimeMax != nil {
			bounds["lte"] = *p.CookingTimeMax
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"cooking_time_minutes": bounds},
		})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]interface{}{
		"query":            map[string]interface{}{"bool": boolQuery},
		"sort":             sortClause(p.SortBy),
		"from":             p.Offset(),
		"size":             p.PerPage,
		"track_total_hits": true,
		"track_scores":     true,
	}
}

func sortClause(sortBy SortBy) []interface{} {
	switch sortBy {
	case SortRating:
		return []interface{}{
			map[string]interface{}{"avg_rating": map[string]interface{}{"order": "desc"}},
		}
	case SortNewest:
		return []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		}
	default:
		return []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		}
	}
}

// autocompleteAgg and autocompleteTerms name the aggregation path
const (
	autocompleteAgg   = "ingredients"
	autocompleteTerms = "names"
)

// BuildAutocompleteQuery renders a frequency-ranked prefix lookup over the
// ingredient exact-match keys. prefix must already be trimmed and lowercased.
func BuildAutocompleteQuery(prefix string, size int) map[string]interface{} {
	return map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			autocompleteAgg: map[string]interface{}{
				"nested": map[string]interface{}{"path": "ingredients"},
				"aggs": map[string]interface{}{
					autocompleteTerms: map[string]interface{}{
						"terms": map[string]interface{}{
							"field":   "ingredients.name",
							"include": escapeRegexp(prefix) + ".*",
							"size":    size,
							"order":   map[string]interface{}{"_count": "desc"},
						},
					},
				},
			},
		},
	}
}

// escapeRegexp escapes the Lucene regular expression operators so user
// input only ever matches literally
func escapeRegexp(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`.?+*|{}[]()"\#@&<>~^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Searcher executes raw queries. *Client implements it.
type Searcher interface {
	Search(ctx context.Context, body map[string]interface{}) (*RawSearchResult, error)
	Aggregate(ctx context.Context, body map[string]interface{}, path ...string) ([]string, error)
}

// Engine answers recipe searches, cook-with lookups and ingredient
// autocomplete
type Engine struct {
	searcher Searcher
	recorder *Recorder
	cache    *ResultCache
	stats    *metrics.SearchMetrics
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithRecorder records an analytics event for every SearchRecipes call
func WithRecorder(r *Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithResultCache caches results. Index writers must invalidate the same cache.
func WithResultCache(c *ResultCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithSearchMetrics overrides the in-process stats tracker
func WithSearchMetrics(m *metrics.SearchMetrics) EngineOption {
	return func(e *Engine) { e.stats = m }
}

// NewEngine creates a query engine over searcher
func NewEngine(searcher Searcher, opts ...EngineOption) *Engine {
	e := &Engine{
		searcher: searcher,
		stats:    metrics.GetManager().Search,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchRecipes runs a full search. An analytics event is recorded whether
// or not the search succeeds; recording never delays or fails the search.
func (e *Engine) SearchRecipes(ctx context.Context, params SearchParams) (*SearchResult, error) {
	p := params.Normalize()

	e.recorder.Record(ctx, SearchEvent{
		UserID:      optionalString(p.UserID),
		Query:       optionalString(p.Query),
		Ingredients: p.Ingredients,
	})

	return e.search(ctx, metrics.QueryTypeSearch, p)
}

// CookWith finds the best-rated recipes containing every listed ingredient.
// limit <= 0 means 20. No analytics event is recorded.
func (e *Engine) CookWith(ctx context.Context, ingredients []string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = DefaultCookWithLimit
	}
	p := SearchParams{
		Ingredients: ingredients,
		SortBy:      SortRating,
		Page:        1,
		PerPage:     limit,
	}.Normalize()

	return e.search(ctx, metrics.QueryTypeCookWith, p)
}

func (e *Engine) search(ctx context.Context, queryType string, p SearchParams) (*SearchResult, error) {
	start := time.Now()

	gen := e.cache.Current(ctx)
	if cached, ok := gen.GetSearch(ctx, queryType, p); ok {
		e.observe(queryType, start, len(cached.Results), true, nil)
		return cached, nil
	}

	raw, err := e.searcher.Search(ctx, BuildSearchQuery(p))
	if err != nil {
		e.observe(queryType, start, 0, false, err)
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	result := &SearchResult{
		Total:   raw.Total,
		Results: make([]Hit, 0, len(raw.Hits)),
	}
	for _, h := range raw.Hits {
		var doc Document
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			e.observe(queryType, start, 0, false, err)
			return nil, fmt.Errorf("%w: failed to decode document %s: %w", ErrSearchUnavailable, h.ID, err)
		}
		doc.ID = h.ID
		result.Results = append(result.Results, Hit{Document: doc, Score: h.Score})
	}

	gen.SetSearch(ctx, queryType, p, result)
	e.observe(queryType, start, len(result.Results), false, nil)
	return result, nil
}

// AutocompleteIngredient returns up to size (default 10) ingredient keys
// starting with prefix, most frequent first. A blank prefix returns an empty
// slice without querying the engine.
func (e *Engine) AutocompleteIngredient(ctx context.Context, prefix string, size int) ([]string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}
	if size <= 0 {
		size = DefaultAutocompleteSize
	}

	start := time.Now()
	gen := e.cache.Current(ctx)
	if cached, ok := gen.GetAutocomplete(ctx, prefix, size); ok {
		e.observe(metrics.QueryTypeAutocomplete, start, len(cached), true, nil)
		return cached, nil
	}

	keys, err := e.searcher.Aggregate(ctx, BuildAutocompleteQuery(prefix, size), autocompleteAgg, autocompleteTerms)
	if err != nil {
		e.observe(metrics.QueryTypeAutocomplete, start, 0, false, err)
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	gen.SetAutocomplete(ctx, prefix, size, keys)
	e.observe(metrics.QueryTypeAutocomplete, start, len(keys), false, nil)
	return keys, nil
}

func (e *Engine) observe(queryType string, start time.Time, results int, cacheHit bool, err error) {
	if err != nil {
		logger.Log.Warn("Search query failed",
			zap.String("type", queryType),
			zap.Error(err),
		)
	}
	if e.stats == nil {
		return
	}
	e.stats.RecordQuery(metrics.QueryMetric{
		Type:        queryType,
		ResultCount: results,
		Duration:    time.Since(start),
		CacheHit:    cacheHit,
		Error:       err != nil,
		Timeout:     errors.Is(err, context.DeadlineExceeded),
	})
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
