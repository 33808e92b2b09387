package classifier

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/korjavin/platecal/internal/nutrition"
)

func TestFromProbabilities(t *testing.T) {
	names := []string{"apple_pie", "Pizza", "sushi_roll"}
	c, err := FromProbabilities(names, []float64{0.05, 0.91, 0.04})
	if err != nil {
		t.Fatalf("FromProbabilities: %v", err)
	}
	if c.Label != "Pizza" || c.Confidence != 0.91 {
		t.Errorf("got label=%q confidence=%v; want Pizza 0.91", c.Label, c.Confidence)
	}
	want := []nutrition.LabelScore{
		{Label: "apple_pie", Probability: 0.05},
		{Label: "Pizza", Probability: 0.91},
		{Label: "sushi_roll", Probability: 0.04},
	}
	if !reflect.DeepEqual(c.Distribution, want) {
		t.Errorf("Distribution = %v; want %v", c.Distribution, want)
	}
}

func TestFromProbabilities_Edges(t *testing.T) {
	// Argmax beyond the class list maps to Unknown.
	c, err := FromProbabilities([]string{"a"}, []float64{0.1, 0.9})
	if err != nil {
		t.Fatalf("FromProbabilities: %v", err)
	}
	if c.Label != UnknownLabel {
		t.Errorf("Label = %q; want %q", c.Label, UnknownLabel)
	}

	// Ties keep the first index.
	c, _ = FromProbabilities([]string{"a", "b"}, []float64{0.5, 0.5})
	if c.Label != "a" {
		t.Errorf("Label = %q; want a", c.Label)
	}

	if _, err := FromProbabilities([]string{"a"}, nil); err == nil {
		t.Error("expected error for empty vector")
	}
}

func TestLoadClassNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "class_names.txt")
	if err := os.WriteFile(path, []byte("apple_pie\n Pizza \n\nsushi_roll"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadClassNames(path)
	if err != nil {
		t.Fatalf("LoadClassNames: %v", err)
	}
	want := []string{"apple_pie", "Pizza", "", "sushi_roll"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadClassNames = %q; want %q", got, want)
	}

	if _, err := LoadClassNames(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

// slowClassifier tracks the peak number of concurrent calls.
type slowClassifier struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (s *slowClassifier) Classify(context.Context, []byte) (nutrition.Classification, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return nutrition.Classification{Label: "x", Confidence: 1}, nil
}

func TestLimit(t *testing.T) {
	inner := &slowClassifier{}
	l := Limit(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Classify(context.Background(), []byte("img")); err != nil {
				t.Errorf("Classify: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := inner.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d; want <= 2", p)
	}
}

func TestLimit_ContextDone(t *testing.T) {
	l := Limit(&slowClassifier{}, 1)
	l.slots <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Classify(ctx, []byte("img")); err == nil {
		t.Error("expected context error while waiting for a slot")
	}
}
