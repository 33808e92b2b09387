package usda

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/korjavin/platecal/internal/metrics"
	"github.com/korjavin/platecal/internal/nutrition"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sushiResponse = `{
  "totalHits": 2,
  "foods": [
    {
      "fdcId": 1,
      "description": "Sushi roll",
      "foodNutrients": [
        {"nutrientId": 1008, "nutrientName": "Energy", "unitName": "KCAL", "value": 200.0},
        {"nutrientId": 1003, "nutrientName": "Protein", "unitName": "G", "value": 0},
        {"nutrientId": 1004, "nutrientName": "Total lipid (fat)", "unitName": "G"},
        {"nutrientId": 1005, "nutrientName": "Carbohydrate, by difference", "value": 38.5},
        {"nutrientId": 1079, "unitName": "G", "value": 1.1},
        {"nutrientId": 2000, "nutrientName": "Sugars", "unitName": "G", "value": "3.2"},
        {"nutrientId": 1093, "nutrientName": "Sodium, Na", "unitName": "MG", "value": null},
        {"nutrientId": 1087, "nutrientName": "Calcium, Ca", "unitName": "", "value": 10}
      ]
    },
    {
      "fdcId": 2,
      "foodNutrients": [{"nutrientName": "Energy", "unitName": "KCAL", "value": 999}]
    }
  ]
}`

func TestQuery(t *testing.T) {
	var gotQuery, gotKey, gotPageSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotKey = r.URL.Query().Get("api_key")
		gotPageSize = r.URL.Query().Get("pageSize")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, sushiResponse)
	}))
	defer srv.Close()

	hist := metrics.NewHistogram(metrics.BucketsRemote)
	c := New(Config{BaseURL: srv.URL, APIKey: "secret"}, hist, quietLogger())
	got := c.Query(context.Background(), "sushi roll")

	want := []nutrition.Observation{
		{NutrientName: "Energy", Value: 200, UnitName: "KCAL", Source: SourceName},
		{NutrientName: "Protein", Value: 0, UnitName: "G", Source: SourceName},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Query = %+v; want %+v", got, want)
	}
	if gotQuery != "sushi roll" || gotKey != "secret" || gotPageSize != "1" {
		t.Errorf("request params query=%q api_key=%q pageSize=%q", gotQuery, gotKey, gotPageSize)
	}
	if hist.Snapshot().Total != 1 {
		t.Errorf("histogram Total = %d; want 1", hist.Snapshot().Total)
	}
}

func TestQuery_FailuresCollapseToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-success status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"foods": [`)
		}},
		{"no foods", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"totalHits": 0, "foods": []}`)
		}},
		{"foods missing", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"totalHits": 0}`)
		}},
		{"nutrients not a list", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"foods": [{"foodNutrients": {"a": 1}}]}`)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL}, nil, quietLogger())
			got := c.Query(context.Background(), "unknown dish")
			if got == nil || len(got) != 0 {
				t.Errorf("Query = %#v; want empty non-nil slice", got)
			}
		})
	}
}

func TestQuery_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, quietLogger())
	if got := c.Query(context.Background(), "slow"); len(got) != 0 {
		t.Errorf("Query after timeout = %+v; want empty", got)
	}
}

func TestQuery_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url}, nil, quietLogger())
	if got := c.Query(context.Background(), "pizza"); len(got) != 0 {
		t.Errorf("Query = %+v; want empty", got)
	}
}

func TestQuery_RateLimitedCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, sushiResponse)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RPS: 0.001, Burst: 1}, nil, quietLogger())
	if got := c.Query(context.Background(), "first"); len(got) == 0 {
		t.Fatal("first query should use the burst token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if got := c.Query(ctx, "second"); len(got) != 0 {
		t.Errorf("rate limited query = %+v; want empty", got)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls; want 1", calls.Load())
	}
}
