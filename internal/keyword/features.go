package keyword

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const defaultLimit = 20

type featureDoc struct {
	Name  string `json:"name"`
	Terms string `json:"terms"`
}

// FeatureIndex is an in-memory Bleve index over a snapshot of registry feature names.
type FeatureIndex struct {
	index bleve.Index
}

// NewFeatureIndex indexes names. Duplicate names collapse to one document.
func NewFeatureIndex(names []string) (*FeatureIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	termsMapping := bleve.NewTextFieldMapping()
	termsMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("terms", termsMapping)
	docMapping.AddFieldMappingsAt("name", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("feature", docMapping)
	im.DefaultType = "feature"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature index: %w", err)
	}
	batch := index.NewBatch()
	for _, name := range names {
		doc := featureDoc{Name: name, Terms: strings.Join(SplitTerms(name), " ")}
		if err := batch.Index(name, doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index feature %q: %w", name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index features: %w", err)
	}
	return &FeatureIndex{index: index}, nil
}

// Search returns features sharing terms with query, best first. Features matching more of the
// query terms rank higher. A query with no terms yields no hits.
func (f *FeatureIndex) Search(query string, opts *SearchOptions) ([]Hit, error) {
	terms := SplitTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	limit := defaultLimit
	fuzzy, fuzziness := false, 1
	if opts != nil {
		fuzzy = opts.Fuzzy
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		if opts.Limit > 0 {
			limit = opts.Limit
		}
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if fuzzy {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(fuzziness)
			fq.SetField("terms")
			queries = append(queries, fq)
			continue
		}
		tq := bleve.NewTermQuery(term)
		tq.SetField("terms")
		queries = append(queries, tq)
	}
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	results, err := f.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("feature search failed: %w", err)
	}
	hits := make([]Hit, len(results.Hits))
	for i, h := range results.Hits {
		hits[i] = Hit{Name: h.ID, Score: h.Score}
	}
	return hits, nil
}

// Len returns the number of indexed features.
func (f *FeatureIndex) Len() (int, error) {
	n, err := f.index.DocCount()
	return int(n), err
}

// Close releases the index.
func (f *FeatureIndex) Close() error {
	return f.index.Close()
}

// SearchNames indexes names, runs one query and releases the index.
func SearchNames(names []string, query string, opts *SearchOptions) ([]Hit, error) {
	idx, err := NewFeatureIndex(names)
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	return idx.Search(query, opts)
}
