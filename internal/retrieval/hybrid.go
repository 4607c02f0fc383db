// Package retrieval finds the indexed chunks most relevant to a question.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/store"
)

// Embedder turns the question into a query vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KeywordSearcher is the keyword side of the search, normally a store.TextIndex
type KeywordSearcher interface {
	Search(query string, limit int) ([]store.KeywordHit, error)
}

// HybridRetriever combines vector similarity with keyword matches
type HybridRetriever struct {
	embedder      Embedder
	vectors       *store.VectorStore
	chunks        *store.ChunkStore
	keywords      KeywordSearcher
	keywordWeight float32
}

// NewHybridRetriever creates a retriever. keywords may be nil, which is the
// same as a keyword weight of zero.
func NewHybridRetriever(
	embedder Embedder,
	vectors *store.VectorStore,
	chunks *store.ChunkStore,
	keywords KeywordSearcher,
	keywordWeight float64,
) *HybridRetriever {
	if keywordWeight < 0 {
		keywordWeight = 0
	}
	if keywordWeight > 1 {
		keywordWeight = 1
	}
	if keywords == nil {
		keywordWeight = 0
	}
	return &HybridRetriever{
		embedder:      embedder,
		vectors:       vectors,
		chunks:        chunks,
		keywords:      keywords,
		keywordWeight: float32(keywordWeight),
	}
}

// Result is a retrieved chunk with its scores
type Result struct {
	Chunk        store.Chunk
	VectorScore  float32
	KeywordScore float32
	Score        float32
}

type combined struct {
	vectorScore  float32
	keywordScore float32
	chunk        *store.Chunk
}

// Retrieve returns up to topK chunks most relevant to question, best first
func (h *HybridRetriever) Retrieve(ctx context.Context, question string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}

	queryVector, err := h.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	candidates := make(map[string]*combined)

	vResults, err := h.vectors.Search(queryVector, topK*2, h.chunks)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	for _, r := range vResults {
		candidates[r.ChunkID] = &combined{vectorScore: r.Score, chunk: r.Chunk}
	}

	if h.keywordWeight > 0 {
		hits, err := h.keywords.Search(question, topK*2)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
		var missing []string
		for i, hit := range hits {
			// rank-based so bleve's unbounded scores mix with cosine
			score := float32(1.0 - float64(i)/float64(len(hits)))
			if c, ok := candidates[hit.ChunkID]; ok {
				c.keywordScore = score
				continue
			}
			candidates[hit.ChunkID] = &combined{keywordScore: score}
			missing = append(missing, hit.ChunkID)
		}
		if len(missing) > 0 {
			loaded, err := h.chunks.GetByIDs(missing)
			if err != nil {
				return nil, fmt.Errorf("failed to load keyword matches: %w", err)
			}
			for _, id := range missing {
				candidates[id].chunk = loaded[id]
			}
		}
	}

	results := make([]Result, 0, len(candidates))
	for id, c := range candidates {
		if c.chunk == nil {
			logging.Warn("retrieved chunk missing from store", logging.Fields{"chunk_id": id})
			continue
		}
		results = append(results, Result{
			Chunk:        *c.chunk,
			VectorScore:  c.vectorScore,
			KeywordScore: c.keywordScore,
			Score:        (1-h.keywordWeight)*c.vectorScore + h.keywordWeight*c.keywordScore,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Source != results[j].Chunk.Source {
			return results[i].Chunk.Source < results[j].Chunk.Source
		}
		return results[i].Chunk.Seq < results[j].Chunk.Seq
	})
	if len(results) > topK {
		results = results[:topK]
	}

	logging.Debug("retrieved chunks", logging.Fields{"question_len": len(question), "results": len(results)})
	return results, nil
}

// Sources returns the distinct sources of results in rank order
func Sources(results []Result) []string {
	seen := make(map[string]bool, len(results))
	var out []string
	for _, r := range results {
		if seen[r.Chunk.Source] {
			continue
		}
		seen[r.Chunk.Source] = true
		out = append(out, r.Chunk.Source)
	}
	return out
}
