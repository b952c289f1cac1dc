package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Default index names and per-call timeout
const (
	DefaultRecipeIndex    = "recipes"
	DefaultAnalyticsIndex = "search_analytics"
	DefaultTimeout        = 4 * time.Second
)

// ClientConfig configures the Elasticsearch client
type ClientConfig struct {
	Addresses      []string
	Username       string
	Password       string
	RecipeIndex    string
	AnalyticsIndex string
	// Timeout bounds every request made by the client
	Timeout time.Duration
	// Transport overrides the HTTP transport (tests)
	Transport http.RoundTripper
}

// Client wraps the Elasticsearch client with recipe-specific functionality.
// It is safe for concurrent use and shared by every component.
type Client struct {
	es             *elasticsearch.Client
	recipeIndex    string
	analyticsIndex string
	timeout        time.Duration
}

// RawHit is one search hit before decoding the document source
type RawHit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// RawSearchResult is the decoded envelope of a search response
type RawSearchResult struct {
	Total int
	Hits  []RawHit
}

// NewClient creates a new Elasticsearch client. No request is made until
// the first call, so an unreachable cluster never blocks startup.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.RecipeIndex == "" {
		cfg.RecipeIndex = DefaultRecipeIndex
	}
	if cfg.AnalyticsIndex == "" {
		cfg.AnalyticsIndex = DefaultAnalyticsIndex
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &Client{
		es:             es,
		recipeIndex:    cfg.RecipeIndex,
		analyticsIndex: cfg.AnalyticsIndex,
		timeout:        cfg.Timeout,
	}, nil
}

// RecipeIndex returns the name of the recipe index
func (c *Client) RecipeIndex() string {
	return c.recipeIndex
}

// begin starts a bounded, traced call. finish must be called exactly once.
func (c *Client) begin(ctx context.Context, call telemetry.SearchCall) (context.Context, func(error)) {
	operation, index := call.Operation, call.Index

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	ctx, span := telemetry.TraceSearchCall(ctx, call)
	start := time.Now()

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			telemetry.RecordServiceError(span, err)
			metrics.ElasticsearchErrorsTotal.WithLabelValues(index, operation).Inc()
		} else {
			span.SetStatus(codes.Ok, "")
		}
		metrics.ElasticsearchQueryDuration.WithLabelValues(index, operation, status).Observe(time.Since(start).Seconds())
		span.End()
		cancel()
	}
}

// responseError builds an error from a non-2xx response body
func responseError(res *esapi.Response, action string) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("error %s: [%s]", action, res.Status())
	}
	return fmt.Errorf("error %s: [%s] %v", action, res.Status(), errResp["error"])
}

// EnsureIndex creates the recipe and analytics indices when missing.
// Failures are logged per index and returned joined; callers should log
// and keep starting up.
func (c *Client) EnsureIndex(ctx context.Context) error {
	var errs []error

	if err := c.createIndex(ctx, c.recipeIndex, recipeMapping()); err != nil {
		logger.Log.Warn("Failed to ensure recipe index", logger.WithIndex(c.recipeIndex), zap.Error(err))
		errs = append(errs, err)
	}
	if err := c.createIndex(ctx, c.analyticsIndex, analyticsMapping()); err != nil {
		logger.Log.Warn("Failed to ensure analytics index", logger.WithIndex(c.analyticsIndex), zap.Error(err))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// createIndex creates an index with the given mapping unless it exists
func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) (err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "ensure_index", Index: indexName})
	defer func() { finish(err) }()

	res, err := c.es.Indices.Exists([]string{indexName},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error checking index %s: [%s]", indexName, res.Status())
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(mappingJSON)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		// Another instance won the race
		if res.StatusCode == http.StatusBadRequest && strings.Contains(readAll(res), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("error creating index %s: [%s]", indexName, res.Status())
	}

	logger.Log.Info("Created search index", logger.WithIndex(indexName))
	return nil
}

func readAll(res *esapi.Response) string {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	return buf.String()
}

// Upsert creates or replaces the document keyed by its recipe ID. The call
// returns after the change is visible to search.
func (c *Client) Upsert(ctx context.Context, doc Document) (err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "index", Index: c.recipeIndex, DocID: doc.ID})
	defer func() { finish(err) }()

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe document: %w", err)
	}

	res, err := c.es.Index(c.recipeIndex, bytes.NewReader(body),
		c.es.Index.WithDocumentID(doc.ID),
		c.es.Index.WithRefresh("wait_for"),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index recipe: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "indexing recipe")
	}

	return nil
}

// Delete removes a recipe document. A missing document is not an error.
func (c *Client) Delete(ctx context.Context, recipeID string) (err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "delete", Index: c.recipeIndex, DocID: recipeID})
	defer func() { finish(err) }()

	res, err := c.es.Delete(c.recipeIndex, recipeID,
		c.es.Delete.WithRefresh("wait_for"),
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	defer res.Body.Close()

	// 404 is OK - document doesn't exist
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError(res, "deleting recipe")
	}

	return nil
}

// BulkUpsert writes docs in a single _bulk round trip. Per-item failures are
// reported as one error naming the failed IDs.
func (c *Client) BulkUpsert(ctx context.Context, docs []Document) (err error) {
	if len(docs) == 0 {
		return nil
	}

	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "bulk", Index: c.recipeIndex, BulkSize: len(docs)})
	defer func() { finish(err) }()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": c.recipeIndex, "_id": doc.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode recipe document: %w", err)
		}
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(c.recipeIndex),
		c.es.Bulk.WithRefresh("wait_for"),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "executing bulk request")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string      `json:"_id"`
			Status int         `json:"status"`
			Error  interface{} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !bulkResp.Errors {
		return nil
	}

	var failed []string
	for _, item := range bulkResp.Items {
		for _, result := range item {
			if result.Status >= 300 || result.Error != nil {
				failed = append(failed, result.ID)
			}
		}
	}
	return fmt.Errorf("bulk upsert failed for %d of %d documents: %s",
		len(failed), len(docs), strings.Join(failed, ", "))
}

// Search executes a query body against the recipe index
func (c *Client) Search(ctx context.Context, body map[string]interface{}) (result *RawSearchResult, err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "search", Index: c.recipeIndex})
	defer func() { finish(err) }()

	queryJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.recipeIndex),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "searching recipes")
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Score  *float64        `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result = &RawSearchResult{
		Total: searchResp.Hits.Total.Value,
		Hits:  make([]RawHit, 0, len(searchResp.Hits.Hits)),
	}
	for _, hit := range searchResp.Hits.Hits {
		raw := RawHit{ID: hit.ID, Source: hit.Source}
		if hit.Score != nil {
			raw.Score = *hit.Score
		}
		result.Hits = append(result.Hits, raw)
	}

	return result, nil
}

// Aggregate executes an aggregation body and returns the bucket keys found
// by following path through the (possibly nested) aggregation results
func (c *Client) Aggregate(ctx context.Context, body map[string]interface{}, path ...string) (keys []string, err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "aggregate", Index: c.recipeIndex})
	defer func() { finish(err) }()

	if len(path) == 0 {
		return nil, errors.New("aggregation path is required")
	}

	queryJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal aggregation: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.recipeIndex),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute aggregation: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "aggregating recipes")
	}

	var aggResp struct {
		Aggregations map[string]json.RawMessage `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&aggResp); err != nil {
		return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
	}

	node := aggResp.Aggregations
	var raw json.RawMessage
	for i, name := range path {
		var ok bool
		if raw, ok = node[name]; !ok {
			return []string{}, nil
		}
		if i < len(path)-1 {
			node = nil
			if err := json.Unmarshal(raw, &node); err != nil {
				return nil, fmt.Errorf("failed to decode aggregation %q: %w", name, err)
			}
		}
	}

	var terms struct {
		Buckets []struct {
			Key interface{} `json:"key"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &terms); err != nil {
		return nil, fmt.Errorf("failed to decode buckets: %w", err)
	}

	keys = make([]string, 0, len(terms.Buckets))
	for _, b := range terms.Buckets {
		if s, ok := b.Key.(string); ok {
			keys = append(keys, s)
		} else {
			keys = append(keys, fmt.Sprint(b.Key))
		}
	}
	return keys, nil
}

// Count returns the number of documents in the recipe index
func (c *Client) Count(ctx context.Context) (count int64, err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "count", Index: c.recipeIndex})
	defer func() { finish(err) }()

	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.recipeIndex),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, responseError(res, "counting recipes")
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return countResp.Count, nil
}

// scrollKeepAlive is how long the cluster keeps a scroll context between pages
const scrollKeepAlive = time.Minute

// ScanIDs walks every document ID in the recipe index with a scroll, passing
// batches of at most batchSize IDs to fn. An error from fn stops the scan.
// Each page request is bounded by the client timeout; fn is not.
func (c *Client) ScanIDs(ctx context.Context, batchSize int, fn func(ids []string) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}

	body, err := json.Marshal(map[string]interface{}{
		"_source": false,
		"sort":    []string{"_doc"},
		"query":   map[string]interface{}{"match_all": map[string]interface{}{}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal scan query: %w", err)
	}

	page, err := c.scrollPage(ctx, func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.recipeIndex),
			c.es.Search.WithBody(bytes.NewReader(body)),
			c.es.Search.WithSize(batchSize),
			c.es.Search.WithScroll(scrollKeepAlive),
		)
	})
	if err != nil {
		return err
	}

	scrollID := page.ScrollID
	defer func() {
		if scrollID != "" {
			c.clearScroll(ctx, scrollID)
		}
	}()

	for len(page.Hits.Hits) > 0 {
		ids := make([]string, len(page.Hits.Hits))
		for i, h := range page.Hits.Hits {
			ids[i] = h.ID
		}
		if err := fn(ids); err != nil {
			return err
		}

		page, err = c.scrollPage(ctx, func(ctx context.Context) (*esapi.Response, error) {
			return c.es.Scroll(
				c.es.Scroll.WithContext(ctx),
				c.es.Scroll.WithScrollID(scrollID),
				c.es.Scroll.WithScroll(scrollKeepAlive),
			)
		})
		if err != nil {
			return err
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	return nil
}

// scrollPage runs one bounded, traced page request of a scan
func (c *Client) scrollPage(ctx context.Context, do func(context.Context) (*esapi.Response, error)) (page *scrollResponse, err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "scan", Index: c.recipeIndex})
	defer func() { finish(err) }()

	res, err := do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recipes: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res, "scanning recipes")
	}

	page = &scrollResponse{}
	if err := json.NewDecoder(res.Body).Decode(page); err != nil {
		return nil, fmt.Errorf("failed to decode scan page: %w", err)
	}
	return page, nil
}

type scrollResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) clearScroll(ctx context.Context, scrollID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	res, err := c.es.ClearScroll(
		c.es.ClearScroll.WithContext(ctx),
		c.es.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		logger.Log.Debug("Failed to clear scroll", zap.Error(err))
		return
	}
	res.Body.Close()
}

// Ping reports whether the cluster answers. It never returns an error;
// any transport failure is reported as unhealthy.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		logger.Log.Debug("Elasticsearch ping failed", zap.Error(err))
		return false
	}
	defer res.Body.Close()

	return !res.IsError()
}

// WriteSearchEvent stores one analytics event. No refresh is requested;
// events are never read back on the request path.
func (c *Client) WriteSearchEvent(ctx context.Context, event SearchEvent) (err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "index", Index: c.analyticsIndex})
	defer func() { finish(err) }()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal search event: %w", err)
	}

	res, err := c.es.Index(c.analyticsIndex, bytes.NewReader(body),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to write search event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "writing search event")
	}
	return nil
}
