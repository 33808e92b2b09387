// Package suggest offers full-text suggestions over the raw names of the
// local calorie dataset, so clients can search with an exact raw label.
package suggest

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	defaultLimit = 10
	maxLimit     = 50
	batchSize    = 1000
)

type doc struct {
	NameFolded string `json:"name_folded"`
}

// Index is an in-memory Bleve index whose document IDs are raw names.
type Index struct {
	index bleve.Index
}

// Build indexes names. Empty names are ignored.
func Build(names []string) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	b := idx.NewBatch()
	for _, name := range names {
		folded := FoldName(name)
		if folded == "" {
			continue
		}
		if err := b.Index(name, doc{NameFolded: folded}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("bleve index %q: %w", name, err)
		}
		if b.Size() >= batchSize {
			if err := idx.Batch(b); err != nil {
				_ = idx.Close()
				return nil, fmt.Errorf("bleve batch: %w", err)
			}
			b = idx.NewBatch()
		}
	}
	if err := idx.Batch(b); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("bleve batch: %w", err)
	}
	return &Index{index: idx}, nil
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

// Suggest returns up to limit raw names matching q, best first.
func (ix *Index) Suggest(q string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	folded := FoldName(q)
	if folded == "" {
		return nil, nil
	}

	boolQ := bleve.NewBooleanQuery()

	// Exact phrase and prefix, boosted
	phraseQ := bleve.NewMatchPhraseQuery(folded)
	phraseQ.SetField("name_folded")
	phraseQ.SetBoost(10)
	boolQ.AddShould(phraseQ)

	prefixQ := bleve.NewPrefixQuery(folded)
	prefixQ.SetField("name_folded")
	prefixQ.SetBoost(5)
	boolQ.AddShould(prefixQ)

	// Per-token prefix and fuzzy matching
	for _, token := range strings.Fields(folded) {
		tp := bleve.NewPrefixQuery(token)
		tp.SetField("name_folded")
		tp.SetBoost(2)
		boolQ.AddShould(tp)

		if len(token) < 4 {
			continue
		}
		fuzz := 1
		if len(token) >= 8 {
			fuzz = 2
		}
		fuzzyQ := bleve.NewFuzzyQuery(token)
		fuzzyQ.SetField("name_folded")
		fuzzyQ.Fuzziness = fuzz
		boolQ.AddShould(fuzzyQ)
	}

	req := bleve.NewSearchRequestOptions(boolQ, limit, 0, false)
	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	names := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		names = append(names, hit.ID)
	}
	return names, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = simple.Name
	textField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name_folded", textField)

	im.DefaultMapping = docMapping
	return im
}
