package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/telemetry"
)

// IndexVersion tracks the recipe mapping schema, stored in the mapping _meta.
// Increment this whenever the recipe mapping changes.
// v1: initial
const IndexVersion = 1

// IndexOutdated reports whether the recipe index is missing or was created
// from an older mapping and needs a recreate + backfill
func (c *Client) IndexOutdated(ctx context.Context) (outdated bool, err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "get_mapping", Index: c.recipeIndex})
	defer func() { finish(err) }()

	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithIndex(c.recipeIndex),
		c.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to get index mapping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return true, nil
		}
		return false, fmt.Errorf("error getting index mapping: %s", res.Status())
	}

	// Keyed by concrete index name, which differs from recipeIndex behind an alias
	var mappingResp map[string]struct {
		Mappings struct {
			Meta struct {
				Version int `json:"version"`
			} `json:"_meta"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mappingResp); err != nil {
		return true, nil
	}

	for _, index := range mappingResp {
		if index.Mappings.Meta.Version < IndexVersion {
			return true, nil
		}
	}
	return false, nil
}

// DeleteIndex deletes an index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context, indexName string) (err error) {
	ctx, finish := c.begin(ctx, telemetry.SearchCall{Operation: "delete_index", Index: indexName})
	defer func() { finish(err) }()

	res, err := c.es.Indices.Delete(
		[]string{indexName},
		c.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting index: %s", res.Status())
	}

	return nil
}

// RecreateIndex drops the recipe index and creates it from the current
// mapping. The index is empty afterwards until a backfill runs.
func (c *Client) RecreateIndex(ctx context.Context) error {
	if err := c.DeleteIndex(ctx, c.recipeIndex); err != nil {
		return err
	}
	if err := c.createIndex(ctx, c.recipeIndex, recipeMapping()); err != nil {
		return err
	}
	logger.Log.Info("Recreated recipe index", logger.WithIndex(c.recipeIndex))
	return nil
}
