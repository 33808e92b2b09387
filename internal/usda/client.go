// Package usda queries the USDA FoodData Central search API.
package usda

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/korjavin/platecal/internal/metrics"
	"github.com/korjavin/platecal/internal/nutrition"
)

const (
	// DefaultURL is the FoodData Central search endpoint.
	DefaultURL = "https://api.nal.usda.gov/fdc/v1/foods/search"

	// SourceName labels observations returned by this client.
	SourceName = "USDA FoodData Central"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPS and Burst bound outgoing requests. RPS <= 0 disables the limiter.
	RPS   float64
	Burst int
}

var _ nutrition.Provider = (*Client)(nil)

// Client is a nutrition.Provider backed by FoodData Central. It is safe
// for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	hist    *metrics.Histogram
	logger  *slog.Logger
}

// New creates a Client. hist may be nil.
func New(cfg Config, hist *metrics.Histogram, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		hist:    hist,
		logger:  logger,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c
}

// Query searches for foodName and returns the nutrients of the single best
// match. Any failure yields an empty slice.
func (c *Client) Query(ctx context.Context, foodName string) []nutrition.Observation {
	start := time.Now()
	defer func() {
		if c.hist != nil {
			c.hist.Observe(time.Since(start))
		}
	}()

	body, err := c.search(ctx, foodName)
	if err != nil {
		c.logger.Warn("usda query failed", "query", foodName, "error", err)
		return []nutrition.Observation{}
	}
	obs := parseNutrients(body)
	c.logger.Debug("usda query", "query", foodName, "nutrients", len(obs), "duration", time.Since(start))
	return obs
}

func (c *Client) search(ctx context.Context, foodName string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	q := url.Values{}
	q.Set("query", foodName)
	q.Set("api_key", c.apiKey)
	q.Set("pageSize", strconv.Itoa(1))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}

// parseNutrients extracts foods[0].foodNutrients, keeping only entries with
// a name, a numeric value and a unit.
func parseNutrients(body []byte) []nutrition.Observation {
	out := []nutrition.Observation{}
	if !gjson.ValidBytes(body) {
		return out
	}
	nutrients := gjson.GetBytes(body, "foods.0.foodNutrients")
	if !nutrients.IsArray() {
		return out
	}
	nutrients.ForEach(func(_, n gjson.Result) bool {
		name := n.Get("nutrientName")
		value := n.Get("value")
		unit := n.Get("unitName")
		if name.Type != gjson.String || name.Str == "" {
			return true
		}
		if value.Type != gjson.Number {
			return true
		}
		if unit.Type != gjson.String || unit.Str == "" {
			return true
		}
		out = append(out, nutrition.Observation{
			NutrientName: name.Str,
			Value:        value.Num,
			UnitName:     unit.Str,
			Source:       SourceName,
		})
		return true
	})
	return out
}
