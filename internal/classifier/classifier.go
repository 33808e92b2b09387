// Package classifier adapts image classifiers to nutrition.Classifier.
package classifier

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/korjavin/platecal/internal/nutrition"
)

// UnknownLabel is used when the argmax index has no class name.
const UnknownLabel = "Unknown"

// FromProbabilities maps a model's output vector onto class names. The
// label is the argmax (first on ties); the distribution keeps class order.
func FromProbabilities(classNames []string, probs []float64) (nutrition.Classification, error) {
	if len(probs) == 0 {
		return nutrition.Classification{}, fmt.Errorf("empty probability vector")
	}

	best := 0
	dist := make([]nutrition.LabelScore, len(probs))
	for i, p := range probs {
		dist[i] = nutrition.LabelScore{Label: className(classNames, i), Probability: p}
		if p > probs[best] {
			best = i
		}
	}
	return nutrition.Classification{
		Label:        className(classNames, best),
		Confidence:   probs[best],
		Distribution: dist,
	}, nil
}

func className(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return UnknownLabel
}

// LoadClassNames reads one class name per line. Names are trimmed; blank
// lines are kept so indices stay aligned with the model output.
func LoadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class names: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		names = append(names, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read class names: %w", err)
	}
	return names, nil
}

// Limited bounds the number of concurrent Classify calls on a classifier
// that is not safe for (or not fast under) concurrent use.
type Limited struct {
	next  nutrition.Classifier
	slots chan struct{}
}

// Limit wraps c so that at most n calls run at once. n < 1 is treated as 1.
func Limit(c nutrition.Classifier, n int) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{next: c, slots: make(chan struct{}, n)}
}

// Classify waits for a free slot or for ctx to be done.
func (l *Limited) Classify(ctx context.Context, image []byte) (nutrition.Classification, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nutrition.Classification{}, ctx.Err()
	}
	defer func() { <-l.slots }()
	return l.next.Classify(ctx, image)
}
