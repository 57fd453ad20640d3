package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiRoutePatternOrPath labels metrics with the matched chi pattern
// (e.g. /products/{id}) so per-id paths do not explode cardinality.
// Requests that never matched a route fall back to the raw path.
func ChiRoutePatternOrPath(r *http.Request) string {
	if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}
