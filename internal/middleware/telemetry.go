package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware wraps otelgin and annotates the server span with the
// caller, the recipe and the search parameters of the request
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	base := otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return !quietRoutes[r.URL.Path]
		}),
	)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		span.SetAttributes(searchAttributes(c)...)

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err)
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}

func searchAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if requestID := RequestID(c); requestID != "" {
		attrs = append(attrs, attribute.String("http.request_id", requestID))
	}
	if userID := util.OptionalUserID(c); userID != "" {
		attrs = append(attrs, attribute.String("user.id", userID))
	}
	if recipeID := c.Param("id"); recipeID != "" {
		attrs = append(attrs, attribute.String("recipe.id", recipeID))
	}

	// Query text itself is left out of spans
	if q := c.Query("q"); q != "" {
		attrs = append(attrs, attribute.Int("search.query_length", len(q)))
	}
	if ingredients := util.ParseList(c.QueryArray("ingredients")); len(ingredients) > 0 {
		attrs = append(attrs, attribute.Int("search.ingredient_count", len(ingredients)))
	}
	if sortBy := c.Query("sort_by"); sortBy != "" {
		attrs = append(attrs, attribute.String("search.sort_by", sortBy))
	}
	if page := c.Query("page"); page != "" {
		attrs = append(attrs, attribute.String("search.page", page))
	}
	if prefix := c.Query("prefix"); prefix != "" {
		attrs = append(attrs, attribute.Int("search.prefix_length", len(prefix)))
	}

	return attrs
}
