package nutrition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
)

type mapIndex map[string]float64

func (m mapIndex) Lookup(raw string) (float64, bool) {
	v, ok := m[raw]
	return v, ok
}

// fakeProvider returns fixed observations per query and records calls.
type fakeProvider struct {
	results map[string][]Observation
	queries []string
}

func (f *fakeProvider) Query(_ context.Context, name string) []Observation {
	f.queries = append(f.queries, name)
	return f.results[name]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveClassification_LocalHit(t *testing.T) {
	remote := &fakeProvider{results: map[string][]Observation{
		"Pizza": {{NutrientName: "Energy", Value: 999, UnitName: "kcal"}},
	}}
	r := NewResolver(mapIndex{"Pizza": 266.0}, remote, quietLogger())

	rec, err := r.ResolveClassification(context.Background(), Classification{
		Label:      "Pizza",
		Confidence: 0.91,
		Distribution: []LabelScore{
			{Label: "Pizza", Probability: 0.91},
			{Label: "Flatbread", Probability: 0.09},
		},
	})
	if err != nil {
		t.Fatalf("ResolveClassification: %v", err)
	}

	want := []Observation{{NutrientName: "Energy", Value: 266.0, UnitName: "kcal", Source: SourceLocal}}
	if !reflect.DeepEqual(rec.Nutrition, want) {
		t.Errorf("Nutrition = %+v; want %+v", rec.Nutrition, want)
	}
	if rec.Calories != KnownCalories(266.0) {
		t.Errorf("Calories = %v; want 266", rec.Calories)
	}
	if rec.Confidence == nil || *rec.Confidence != 0.91 {
		t.Errorf("Confidence = %v; want 0.91", rec.Confidence)
	}
	if rec.Prediction != "Pizza" {
		t.Errorf("Prediction = %q; want %q", rec.Prediction, "Pizza")
	}
	if len(remote.queries) != 0 {
		t.Errorf("remote provider queried on local hit: %v", remote.queries)
	}
}

func TestResolveClassification_LocalHitWithoutRemote(t *testing.T) {
	r := NewResolver(mapIndex{"Apple_Pie": 237}, nil, quietLogger())
	rec, err := r.ResolveClassification(context.Background(), Classification{Label: "Apple_Pie", Confidence: 0.5})
	if err != nil {
		t.Fatalf("ResolveClassification: %v", err)
	}
	if rec.Calories != KnownCalories(237) || rec.Nutrition[0].Source != SourceLocal {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestResolveClassification_RemoteFallbackUsesNormalizedName(t *testing.T) {
	remote := &fakeProvider{results: map[string][]Observation{
		"sushi roll": {{NutrientName: "Energy", Value: 200.0, UnitName: "kcal"}},
	}}
	r := NewResolver(mapIndex{"Pizza": 266}, remote, quietLogger())

	rec, err := r.ResolveClassification(context.Background(), Classification{Label: "sushi_roll", Confidence: 0.7})
	if err != nil {
		t.Fatalf("ResolveClassification: %v", err)
	}
	if rec.Calories != KnownCalories(200.0) {
		t.Errorf("Calories = %v; want 200", rec.Calories)
	}
	if !reflect.DeepEqual(remote.queries, []string{"sushi roll"}) {
		t.Errorf("remote queries = %v; want [sushi roll]", remote.queries)
	}
	if rec.Prediction != "sushi_roll" {
		t.Errorf("Prediction = %q; want raw label", rec.Prediction)
	}
}

func TestResolve_LocalIndexKeyedByRawLabel(t *testing.T) {
	// The dataset holds the normalized spelling only; the raw label misses.
	remote := &fakeProvider{}
	r := NewResolver(mapIndex{"Grilled Chicken": 165}, remote, quietLogger())

	rec := r.ResolveQuery(context.Background(), "Grilled_Chicken_(Skinless)")
	if rec.Calories.Available {
		t.Errorf("Calories = %v; want Not available", rec.Calories)
	}
	if !reflect.DeepEqual(remote.queries, []string{"Grilled Chicken"}) {
		t.Errorf("remote queries = %v; want [Grilled Chicken]", remote.queries)
	}
}

func TestResolveQuery_EmptyRemote(t *testing.T) {
	remote := &fakeProvider{}
	r := NewResolver(mapIndex{}, remote, quietLogger())

	rec := r.ResolveQuery(context.Background(), "unknown dish")
	if rec.Calories.Available {
		t.Errorf("Calories = %v; want Not available", rec.Calories)
	}
	if rec.Nutrition == nil || len(rec.Nutrition) != 0 {
		t.Errorf("Nutrition = %#v; want empty non-nil slice", rec.Nutrition)
	}
	if rec.Confidence != nil {
		t.Errorf("Confidence = %v; want nil on the text path", *rec.Confidence)
	}
}

func TestResolveQuery_NoEnergyObservation(t *testing.T) {
	obs := []Observation{
		{NutrientName: "Protein", Value: 3.1, UnitName: "G"},
		{NutrientName: "Total lipid (fat)", Value: 1.2, UnitName: "G"},
	}
	r := NewResolver(nil, &fakeProvider{results: map[string][]Observation{"tofu": obs}}, quietLogger())

	rec := r.ResolveQuery(context.Background(), "tofu")
	if rec.Calories.Available {
		t.Errorf("Calories = %v; want Not available", rec.Calories)
	}
	if !reflect.DeepEqual(rec.Nutrition, obs) {
		t.Errorf("Nutrition = %+v; want full remote list", rec.Nutrition)
	}
}

func TestResolveQuery_FirstEnergyWins(t *testing.T) {
	obs := []Observation{
		{NutrientName: "Protein", Value: 5, UnitName: "G"},
		{NutrientName: "Energy", Value: 120, UnitName: "KCAL"},
		{NutrientName: "ENERGY (Atwater General Factors)", Value: 118, UnitName: "KCAL"},
		{NutrientName: "Energy", Value: 502, UnitName: "kJ"},
	}
	r := NewResolver(nil, &fakeProvider{results: map[string][]Observation{"bagel": obs}}, quietLogger())

	rec := r.ResolveQuery(context.Background(), "bagel")
	if rec.Calories != KnownCalories(120) {
		t.Errorf("Calories = %v; want 120", rec.Calories)
	}
	if len(rec.Nutrition) != len(obs) {
		t.Errorf("Nutrition has %d entries; want %d", len(rec.Nutrition), len(obs))
	}
}

func TestResolveQuery_Idempotent(t *testing.T) {
	remote := &fakeProvider{results: map[string][]Observation{
		"plain rice": {{NutrientName: "Energy", Value: 130, UnitName: "KCAL"}},
	}}
	r := NewResolver(mapIndex{"Pizza": 266}, remote, quietLogger())

	for _, q := range []string{"plain_rice", "Pizza", "nothing"} {
		a := r.ResolveQuery(context.Background(), q)
		b := r.ResolveQuery(context.Background(), q)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("ResolveQuery(%q) not idempotent: %+v vs %+v", q, a, b)
		}
	}
}

func TestResolveQuery_RawQueryUnmodified(t *testing.T) {
	remote := &fakeProvider{}
	r := NewResolver(mapIndex{"Pizza": 266}, remote, quietLogger())

	rec := r.ResolveQuery(context.Background(), " Pizza ")
	if rec.Calories.Available {
		t.Error("padded query should not hit the raw-keyed local index")
	}
	if rec.Prediction != " Pizza " {
		t.Errorf("Prediction = %q; want the query unchanged", rec.Prediction)
	}
	if !reflect.DeepEqual(remote.queries, []string{"Pizza"}) {
		t.Errorf("remote queries = %v; want [Pizza]", remote.queries)
	}
}

func TestResolveClassification_Malformed(t *testing.T) {
	r := NewResolver(mapIndex{}, &fakeProvider{}, quietLogger())

	tests := []struct {
		name string
		c    Classification
	}{
		{"empty label", Classification{Label: "", Confidence: 0.5}},
		{"negative confidence", Classification{Label: "x", Confidence: -0.1}},
		{"confidence above one", Classification{Label: "x", Confidence: 1.5}},
		{"NaN confidence", Classification{Label: "x", Confidence: math.NaN()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.ResolveClassification(context.Background(), tc.c)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *Error
			if !errors.As(err, &e) || e.Kind != KindMalformedClassification {
				t.Errorf("error = %v; want KindMalformedClassification", err)
			}
		})
	}
}

func TestTopLabels(t *testing.T) {
	dist := []LabelScore{
		{"a", 0.1}, {"b", 0.3}, {"c", 0.3}, {"d", 0.05}, {"e", 0.2}, {"f", 0.04}, {"g", 0.01},
	}
	got := TopLabels(dist, 5)
	want := []LabelScore{{"b", 0.3}, {"c", 0.3}, {"e", 0.2}, {"a", 0.1}, {"d", 0.05}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopLabels = %v; want %v", got, want)
	}
	if dist[0].Label != "a" {
		t.Error("TopLabels must not reorder its input")
	}
	if got := TopLabels(dist[:2], 5); len(got) != 2 {
		t.Errorf("TopLabels on short input returned %d entries; want 2", len(got))
	}
}
