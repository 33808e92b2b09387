package api

import (
	"net/http"

	"github.com/korjavin/platecal/internal/auth"
	"github.com/korjavin/platecal/internal/metrics"
)

// RegisterRoutes registers all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, apiKeys []string, h *Handler, reg *metrics.Registry) {
	if reg != nil {
		h.PredictHist = reg.Register("predict", metrics.BucketsPredict)
		h.SearchHist = reg.Register("search", metrics.BucketsRemote)
		h.SuggestHist = reg.Register("suggest", metrics.BucketsLocal)
	}
	protected := auth.APIKeyMiddleware(apiKeys)

	// Public
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /metrics", h.Metrics(reg))

	// Protected: X-API-Key header or api_key query param
	mux.Handle("POST /predict", protected(http.HandlerFunc(h.Predict)))
	mux.Handle("GET /search", protected(http.HandlerFunc(h.Search)))
	mux.Handle("POST /api/v1/predict", protected(http.HandlerFunc(h.Predict)))
	mux.Handle("GET /api/v1/search", protected(http.HandlerFunc(h.Search)))
	mux.Handle("GET /api/v1/suggest", protected(http.HandlerFunc(h.Suggest)))
	mux.Handle("POST /api/v1/mcp", protected(http.HandlerFunc(h.CallTool)))
}
