package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/DreamCats/talk-codebase/internal/config"
)

// Service provides embedding generation functionality
type Service struct {
	client    Client
	model     string
	batchSize int
}

// Client is the interface for embedding API clients
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// NewService creates an embedding service backed by the OpenAI API
func NewService(cfg *config.Config) (*Service, error) {
	client, err := NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Embedding.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return NewServiceWithClient(client, cfg.Embedding.Model, cfg.Embedding.BatchSize), nil
}

// NewServiceWithClient wraps an existing client
func NewServiceWithClient(client Client, model string, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	return &Service{client: client, model: model, batchSize: batchSize}
}

// Model returns the embedding model name recorded alongside stored vectors
func (s *Service) Model() string {
	return s.model
}

// Embed generates an embedding for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	return s.client.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts. Empty texts get a nil
// vector. progress, if set, is called with the number of texts done after
// each batch.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, progress func(done int)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Filter out empty texts
	validTexts := make([]string, 0, len(texts))
	validIndices := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			validTexts = append(validTexts, text)
			validIndices = append(validIndices, i)
		}
	}

	if len(validTexts) == 0 {
		return nil, fmt.Errorf("no valid texts to embed")
	}

	results := make([][]float32, len(texts))

	for i := 0; i < len(validTexts); i += s.batchSize {
		end := i + s.batchSize
		if end > len(validTexts) {
			end = len(validTexts)
		}

		embeddings, err := s.client.EmbedBatch(ctx, validTexts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", i, end, err)
		}
		if len(embeddings) != end-i {
			return nil, fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", i, end, end-i, len(embeddings))
		}

		// Map results back to original indices
		for j, emb := range embeddings {
			results[validIndices[i+j]] = emb
		}
		if progress != nil {
			progress(end)
		}
	}

	return results, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.client.Dimensions()
}

// Similarity computes cosine similarity between two vectors
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// L2Distance computes L2 (Euclidean) distance between two vectors
func L2Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return float32(math.Sqrt(float64(sum)))
}
