package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/korjavin/platecal/internal/metrics"
	"github.com/korjavin/platecal/internal/middleware"
	"github.com/korjavin/platecal/internal/nutrition"
	"github.com/korjavin/platecal/internal/store"
	"github.com/korjavin/platecal/internal/suggest"
)

const defaultMaxUpload = 10 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service      *nutrition.Service
	Suggestions  *suggest.Index  // nil disables /api/v1/suggest
	Manifest     *store.Manifest // set when the index came from a snapshot
	LocalEntries int
	MaxUpload    int64
	Logger       *slog.Logger // nil means slog.Default()

	PredictHist *metrics.Histogram
	SearchHist  *metrics.Histogram
	SuggestHist *metrics.Histogram
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Health returns a liveness check with dataset metadata.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":        "ok",
		"local_entries": h.LocalEntries,
		"classifier":    h.Service.CanPredict(),
	}
	if h.Manifest != nil {
		resp["schema_version"] = h.Manifest.SchemaVersion
		resp["build_time"] = h.Manifest.BuildTime
		resp["dataset_source"] = h.Manifest.DatasetSource
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Metrics returns latency snapshots for every registered histogram.
func (h *Handler) Metrics(reg *metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg == nil {
			h.writeJSON(w, http.StatusOK, map[string]metrics.Snapshot{})
			return
		}
		h.writeJSON(w, http.StatusOK, reg.Snapshot())
	}
}

// Predict classifies an uploaded image and resolves its nutrition. The image
// is either the multipart field "file" or the raw request body.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	defer observe(h.PredictHist, time.Now())

	image, status, msg := h.readImage(w, r)
	if status != 0 {
		h.writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	rec, err := h.Service.Predict(r.Context(), image)
	if err != nil {
		h.writeFailure(w, r, "predict", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, int, string) {
	limit := h.MaxUpload
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, readStatus(err), err.Error()
		}
		if len(data) == 0 {
			return nil, http.StatusBadRequest, "No file part"
		}
		return data, 0, ""
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, readStatus(err), err.Error()
	}
	f, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// A part without a filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return nil, http.StatusBadRequest, "No selected file"
		}
		return nil, http.StatusBadRequest, "No file part"
	}
	if err != nil {
		return nil, http.StatusBadRequest, err.Error()
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, http.StatusInternalServerError, err.Error()
	}
	return data, 0, ""
}

func readStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// Search resolves nutrition for a free-text query. The query parameter is
// "query" ("q" is accepted too) and is trimmed before resolution.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	defer observe(h.SearchHist, time.Now())

	q := r.URL.Query().Get("query")
	if q == "" {
		q = r.URL.Query().Get("q")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No query provided"})
		return
	}

	rec, err := h.Service.Search(r.Context(), q)
	if err != nil {
		h.writeFailure(w, r, "search", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// Suggest lists raw dataset names resembling q.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	defer observe(h.SuggestHist, time.Now())

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter 'q'"})
		return
	}

	limit := 10
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if n, err := strconv.Atoi(ls); err == nil && n > 0 {
			limit = n
		}
	}

	names := []string{}
	if h.Suggestions != nil {
		found, err := h.Suggestions.Suggest(q, limit)
		if err != nil {
			h.logger().Error("suggest failed", "query", q, "error", err)
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}
		names = append(names, found...)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": names})
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := nutrition.KindOf(err)
	status := statusFor(kind)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError && kind == nutrition.KindInternal {
		level = slog.LevelError
	}
	h.logger().Log(r.Context(), level, op+" failed",
		"kind", kind.String(),
		"error", err,
		"request_id", middleware.RequestIDFrom(r.Context()),
	)
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusFor(k nutrition.Kind) int {
	switch k {
	case nutrition.KindInvalidInput:
		return http.StatusBadRequest
	case nutrition.KindClassifierUnavailable, nutrition.KindMalformedClassification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func observe(h *metrics.Histogram, start time.Time) {
	if h != nil {
		h.Since(start)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger().Error("failed to encode response", "error", err)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
