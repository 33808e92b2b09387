package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korjavin/platecal/internal/api"
	"github.com/korjavin/platecal/internal/auth"
	"github.com/korjavin/platecal/internal/classifier"
	"github.com/korjavin/platecal/internal/config"
	"github.com/korjavin/platecal/internal/localindex"
	"github.com/korjavin/platecal/internal/metrics"
	"github.com/korjavin/platecal/internal/middleware"
	"github.com/korjavin/platecal/internal/nutrition"
	"github.com/korjavin/platecal/internal/store"
	"github.com/korjavin/platecal/internal/suggest"
	"github.com/korjavin/platecal/internal/usda"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("ignoring .env", "error", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	apiKeys := auth.ParseAPIKeys(cfg.APIKeys)
	if len(apiKeys) == 0 {
		slog.Warn("API_KEYS not set, all requests will be accepted without authentication")
	}
	if cfg.USDAAPIKey == "" {
		slog.Warn("USDA_API_KEY not set, remote lookups will be rejected upstream")
	}

	index, manifest := loadIndex(cfg, logger)

	reg := metrics.NewRegistry()
	remote := usda.New(usda.Config{
		BaseURL: cfg.USDAURL,
		APIKey:  cfg.USDAAPIKey,
		Timeout: cfg.USDATimeout,
		RPS:     cfg.USDARPS,
		Burst:   cfg.USDABurst,
	}, reg.Register("usda_query", metrics.BucketsRemote), logger)

	cls, err := newClassifier(cfg)
	if err != nil {
		slog.Error("classifier unavailable, /predict will fail", "backend", cfg.Classifier, "error", err)
	}

	resolver := nutrition.NewResolver(index, remote, logger)
	var limited nutrition.Classifier
	if cls != nil {
		limited = classifier.Limit(cls, cfg.ClassifierConcurrency)
	}
	svc := nutrition.NewService(limited, resolver, logger)

	suggestions, err := suggest.Build(index.Names())
	if err != nil {
		slog.Warn("suggestion index unavailable", "error", err)
		suggestions = nil
	} else {
		defer suggestions.Close()
	}

	h := &api.Handler{
		Service:      svc,
		Suggestions:  suggestions,
		Manifest:     manifest,
		LocalEntries: index.Len(),
		MaxUpload:    cfg.MaxUploadBytes,
		Logger:       logger,
	}
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, apiKeys, h, reg)

	// Middleware chain (outer to inner): Logging → RequestID → CORS → RateLimit → mux
	handler := middleware.Chain(
		mux,
		middleware.Logging(logger),
		middleware.RequestID,
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "local_entries", index.Len(), "classifier", cfg.Classifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

// loadIndex prefers an imported snapshot in DATA_DIR and falls back to the
// CSV. Either source may be missing; the index is then empty.
func loadIndex(cfg *config.Config, logger *slog.Logger) (*localindex.Index, *store.Manifest) {
	if cfg.DataDir != "" {
		manifest, err := store.ReadManifest(cfg.DataDir)
		if err != nil {
			slog.Warn("manifest not found or unreadable", "error", err)
			manifest = nil
		} else {
			slog.Info("manifest loaded",
				"schema_version", manifest.SchemaVersion,
				"entry_count", manifest.EntryCount,
				"build_time", manifest.BuildTime,
			)
			if manifest.SchemaVersion != store.SchemaVersion() {
				slog.Warn("snapshot schema mismatch, re-run the importer",
					"have", manifest.SchemaVersion, "want", store.SchemaVersion())
			}
		}
		return localindex.LoadSnapshot(cfg.DataDir, logger), manifest
	}
	return localindex.Load(cfg.LocalCaloriesCSV, logger), nil
}

func newClassifier(cfg *config.Config) (nutrition.Classifier, error) {
	switch cfg.Classifier {
	case config.ClassifierHTTP:
		names, err := classifier.LoadClassNames(cfg.ClassNamesFile)
		if err != nil {
			return nil, err
		}
		return classifier.NewHTTPModel(cfg.ClassifierURL, names, cfg.ClassifierTimeout), nil
	case config.ClassifierRekognition:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rk, err := classifier.NewRekognitionFromEnv(ctx, cfg.AWSRegion, cfg.RekognitionMaxLabels, cfg.RekognitionMinConf)
		if err != nil {
			return nil, err
		}
		return rk, nil
	default:
		return nil, nil
	}
}
