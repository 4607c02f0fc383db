package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/DreamCats/talk-codebase/internal/llm"
)

// Known output sizes; other models report theirs on the first call
var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIClient implements Client for OpenAI's embedding API
type OpenAIClient struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIClient creates a new OpenAI embedding client. baseURL may be
// empty to use the public endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("embedding client: %w", llm.ErrUnauthorized)
	}
	if model == "" {
		model = "text-embedding-ada-002"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(60 * time.Second),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIClient{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		dimensions: modelDimensions[model],
	}, nil
}

// Embed generates an embedding for a single text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", llm.ClassifyError(err))
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || int(data.Index) >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		embeddings[data.Index] = vector
	}

	if c.dimensions == 0 && len(embeddings[0]) > 0 {
		c.dimensions = len(embeddings[0])
	}
	return embeddings, nil
}

// Model returns the embedding model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimensions returns the dimension of the embeddings, or 0 if not yet known
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}
