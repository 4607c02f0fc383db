package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModelName      = "gpt-3.5-turbo"
	DefaultEmbeddingModel = "text-embedding-ada-002"

	// DefaultPricePer1K is the embedding price in USD per 1000 tokens
	DefaultPricePer1K = 0.0004

	DefaultChunkSize     = 500
	DefaultChunkOverlap  = 50
	DefaultTopK          = 4
	DefaultKeywordWeight = 0.3
	DefaultBatchSize     = 100
	DefaultMaxFileBytes  = 1 << 20
)

// Config holds the application configuration
type Config struct {
	APIKey    string `yaml:"api_key,omitempty"`
	ModelName string `yaml:"model_name,omitempty"`

	// BaseURL overrides the OpenAI-compatible endpoint (optional)
	BaseURL string `yaml:"base_url,omitempty"`

	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	Splitter  SplitterConfig  `yaml:"splitter,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Index     IndexConfig     `yaml:"index,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Model            string  `yaml:"model,omitempty"`
	BatchSize        int     `yaml:"batch_size,omitempty"`
	PricePer1KTokens float64 `yaml:"price_per_1k_tokens,omitempty"`
}

// SplitterConfig holds chunking parameters, measured in characters
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap *int `yaml:"chunk_overlap,omitempty"` // 0 disables overlap
}

// RetrievalConfig holds retrieval and answer presentation options
type RetrievalConfig struct {
	TopK           int      `yaml:"top_k,omitempty"`
	KeywordWeight  *float64 `yaml:"keyword_weight,omitempty"` // 0 disables keyword search
	ShowSources    *bool    `yaml:"show_sources,omitempty"`
	RenderMarkdown bool     `yaml:"render_markdown,omitempty"`
}

// IndexConfig holds index location and file selection options
type IndexConfig struct {
	// Dir replaces ~/.talk-codebase/index as the parent of per-repository indexes
	Dir          string   `yaml:"dir,omitempty"`
	Exclude      []string `yaml:"exclude,omitempty"` // doublestar patterns
	MaxFileBytes int64    `yaml:"max_file_bytes,omitempty"`
}

// DefaultPath returns ~/.talk-codebase.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".talk-codebase.yaml"), nil
}

// Load reads the configuration at path. A missing file yields an empty
// configuration so that `configure` can create it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to path, creating parent directories
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file holds an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// IsComplete reports whether credentials needed to chat are present
func (c *Config) IsComplete() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.ModelName) != ""
}

// WithDefaults returns a copy with default values applied.
// The receiver is left untouched so saving it does not persist defaults.
func (c *Config) WithDefaults() *Config {
	out := *c
	out.Index.Exclude = append([]string(nil), c.Index.Exclude...)

	if out.ModelName == "" {
		out.ModelName = DefaultModelName
	}
	if out.Embedding.Model == "" {
		out.Embedding.Model = DefaultEmbeddingModel
	}
	if out.Embedding.BatchSize == 0 {
		out.Embedding.BatchSize = DefaultBatchSize
	}
	if out.Embedding.PricePer1KTokens == 0 {
		out.Embedding.PricePer1KTokens = DefaultPricePer1K
	}
	if out.Splitter.ChunkSize == 0 {
		out.Splitter.ChunkSize = DefaultChunkSize
	}
	if out.Splitter.ChunkOverlap == nil {
		overlap := DefaultChunkOverlap
		out.Splitter.ChunkOverlap = &overlap
	}
	if out.Retrieval.TopK == 0 {
		out.Retrieval.TopK = DefaultTopK
	}
	if out.Retrieval.KeywordWeight == nil {
		w := DefaultKeywordWeight
		out.Retrieval.KeywordWeight = &w
	}
	if out.Retrieval.ShowSources == nil {
		show := true
		out.Retrieval.ShowSources = &show
	}
	if out.Index.MaxFileBytes == 0 {
		out.Index.MaxFileBytes = DefaultMaxFileBytes
	}
	if out.Index.Dir != "" {
		out.Index.Dir = expandPath(out.Index.Dir)
	}
	return &out
}

// Validate validates the configuration. Call it on a config with defaults applied.
func (c *Config) Validate() error {
	if c.Splitter.ChunkSize <= 1 {
		return fmt.Errorf("splitter.chunk_size must be greater than 1, got: %d", c.Splitter.ChunkSize)
	}
	if o := c.ChunkOverlap(); o < 0 || o >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter.chunk_overlap must be in [0, %d), got: %d", c.Splitter.ChunkSize, o)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got: %d", c.Retrieval.TopK)
	}
	if w := c.KeywordWeight(); w < 0 || w > 1 {
		return fmt.Errorf("retrieval.keyword_weight must be between 0 and 1, got: %v", w)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("embedding.batch_size must be between 1 and 2048, got: %d", c.Embedding.BatchSize)
	}
	if c.Embedding.PricePer1KTokens < 0 {
		return fmt.Errorf("embedding.price_per_1k_tokens must not be negative")
	}
	return nil
}

// ChunkOverlap returns the splitter overlap, or 0 when unset
func (c *Config) ChunkOverlap() int {
	if c.Splitter.ChunkOverlap == nil {
		return 0
	}
	return *c.Splitter.ChunkOverlap
}

// KeywordWeight returns the keyword weight, or 0 when unset
func (c *Config) KeywordWeight() float64 {
	if c.Retrieval.KeywordWeight == nil {
		return 0
	}
	return *c.Retrieval.KeywordWeight
}

// ShowSources reports whether answer sources should be printed
func (c *Config) ShowSources() bool {
	return c.Retrieval.ShowSources == nil || *c.Retrieval.ShowSources
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	for _, prefix := range []string{"~", "$HOME"} {
		if path != prefix && !strings.HasPrefix(path, prefix+"/") {
			continue
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, prefix))
	}
	return path
}
