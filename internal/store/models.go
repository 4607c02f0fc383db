package store

import "time"

// Chunk is a stored slice of a source file
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"` // path relative to the indexed root
	Seq     int    `json:"seq"`
	Content string `json:"content"`
}

// Meta describes how and when an index was built
type Meta struct {
	RootDir        string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
	ChunkCount     int
	CreatedAt      time.Time
}

// ScoredChunk is a chunk with a retrieval score
type ScoredChunk struct {
	ChunkID string
	Score   float32
	Chunk   *Chunk
}
