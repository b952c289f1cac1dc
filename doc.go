// Package recipebook provides the recipe platform API and its search engine.

// This package holds no code. The service is organized into subpackages:

// - internal/recipes: Recipe, rating and comment writes with their validation rules
// - internal/users: Author profiles; renames re-sync the author's recipes
// - internal/search: Document mapping, Elasticsearch client, index sync, queries and analytics
// - internal/handlers: HTTP request handlers for the /api/v1 endpoints
// - internal/repository: GORM repositories over the primary store
// - internal/models: Data models and database schemas
// - internal/database: Database connection and migrations
// - internal/cache: Redis client backing the search result cache
// - internal/container: Dependency wiring shared by the commands
// - internal/middleware: HTTP middleware (request IDs, identity, metrics, tracing)
// - internal/metrics: Prometheus collectors and in-process search stats
// - internal/telemetry: OpenTelemetry tracing
// - internal/seed: Development and test fixtures

// Commands:

// - cmd/server: API server
// - cmd/seed: Seed or clean the database
// - cmd/reindex: Rebuild the recipe index from the database
package recipebook
