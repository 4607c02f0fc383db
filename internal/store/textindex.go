package store

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// TextDirName is the bleve index directory inside an index directory
const TextDirName = "text.bleve"

// TextDoc is the keyword-searchable view of a chunk
type TextDoc struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// KeywordHit is a keyword match for a chunk
type KeywordHit struct {
	ChunkID string
	Score   float64
}

// TextIndex is a bleve full-text index over chunk content
type TextIndex struct {
	index bleve.Index
}

// CreateTextIndex discards any index at dir and creates an empty one
func CreateTextIndex(dir string) (*TextIndex, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset text index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &TextIndex{index: index}, nil
}

// OpenTextIndex opens an existing index
func OpenTextIndex(dir string) (*TextIndex, error) {
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &TextIndex{index: index}, nil
}

// IndexChunks adds chunks in one batch
func (t *TextIndex) IndexChunks(chunks []Chunk) error {
	batch := t.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, TextDoc{Source: c.Source, Content: c.Content}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := t.index.Batch(batch); err != nil {
		return fmt.Errorf("commit text batch: %w", err)
	}
	return nil
}

// Search returns up to limit chunk ids matching query, best first
func (t *TextIndex) Search(query string, limit int) ([]KeywordHit, error) {
	if limit <= 0 || query == "" {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := t.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, KeywordHit{ChunkID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed documents
func (t *TextIndex) Count() (uint64, error) {
	return t.index.DocCount()
}

func (t *TextIndex) Close() error {
	return t.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Store = true
	sourceField.Index = true
	docMapping.AddFieldMappingsAt("source", sourceField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
