package nutrition

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
)

// topLabelCount is how many classifier labels are logged per prediction.
const topLabelCount = 5

// LocalIndex answers exact raw-label lookups against the bundled dataset.
type LocalIndex interface {
	Lookup(rawLabel string) (float64, bool)
}

// Provider queries a remote nutrition database. Implementations never fail:
// any fault is reported as an empty result.
type Provider interface {
	Query(ctx context.Context, foodName string) []Observation
}

// Resolver decides where a calorie figure comes from and assembles the
// Record. It keeps no state between calls.
type Resolver struct {
	local  LocalIndex
	remote Provider
	logger *slog.Logger
}

// NewResolver wires a Resolver. A nil local index never hits; a nil provider
// always answers with no observations.
func NewResolver(local LocalIndex, remote Provider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{local: local, remote: remote, logger: logger}
}

// ResolveClassification resolves the label of a classifier result. The only
// error it returns is a KindMalformedClassification *Error.
func (r *Resolver) ResolveClassification(ctx context.Context, c Classification) (Record, error) {
	if err := validateClassification(c); err != nil {
		return Record{}, &Error{Kind: KindMalformedClassification, Err: err}
	}

	normalized := Normalize(c.Label)
	top := TopLabels(c.Distribution, topLabelCount)
	attrs := make([]any, 0, len(top))
	for i, ls := range top {
		attrs = append(attrs, slog.Group(fmt.Sprintf("top%d", i+1),
			"label", ls.Label,
			"probability", ls.Probability,
		))
	}
	r.logger.Info("classification",
		append(attrs, "raw_name", c.Label, "normalized_name", normalized, "confidence", c.Confidence)...,
	)

	rec := r.resolve(ctx, c.Label, normalized)
	confidence := c.Confidence
	rec.Confidence = &confidence
	return rec, nil
}

// ResolveQuery resolves a search string. The query is used as the raw name
// exactly as given.
func (r *Resolver) ResolveQuery(ctx context.Context, rawQuery string) Record {
	return r.resolve(ctx, rawQuery, Normalize(rawQuery))
}

func (r *Resolver) resolve(ctx context.Context, rawName, normalized string) Record {
	rec := Record{Prediction: rawName}

	if r.local != nil {
		if kcal, ok := r.local.Lookup(rawName); ok {
			r.logger.Debug("local calorie hit", "raw_name", rawName, "calories", kcal)
			rec.Calories = KnownCalories(kcal)
			rec.Nutrition = []Observation{{
				NutrientName: energyName,
				Value:        kcal,
				UnitName:     energyUnit,
				Source:       SourceLocal,
			}}
			return rec
		}
	}

	var obs []Observation
	if r.remote != nil {
		obs = r.remote.Query(ctx, normalized)
	}
	if obs == nil {
		obs = []Observation{}
	}
	rec.Nutrition = obs
	if e, ok := EnergyOf(obs); ok {
		rec.Calories = KnownCalories(e.Value)
	}
	r.logger.Debug("remote calorie lookup",
		"raw_name", rawName,
		"query", normalized,
		"observations", len(obs),
		"calories", rec.Calories.String(),
	)
	return rec
}

// EnergyOf returns the first observation whose name contains "energy",
// ignoring case.
func EnergyOf(obs []Observation) (Observation, bool) {
	for _, o := range obs {
		if strings.Contains(strings.ToLower(o.NutrientName), "energy") {
			return o, true
		}
	}
	return Observation{}, false
}

// TopLabels returns up to k entries of dist ordered by descending
// probability. Equal probabilities keep their distribution order.
func TopLabels(dist []LabelScore, k int) []LabelScore {
	out := slices.Clone(dist)
	slices.SortStableFunc(out, func(a, b LabelScore) int {
		return cmp.Compare(b.Probability, a.Probability)
	})
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func validateClassification(c Classification) error {
	if c.Label == "" {
		return errors.New("classifier returned an empty label")
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("classifier confidence %v outside [0,1]", c.Confidence)
	}
	return nil
}
