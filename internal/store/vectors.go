package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/DreamCats/talk-codebase/internal/embedding"
)

// VectorStore provides vector storage and similarity search operations
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new vector store
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

// InsertBatch inserts multiple vectors in a transaction. Empty vectors are skipped.
func (v *VectorStore) InsertBatch(chunkIDs []string, vectors [][]float32, model string) error {
	if len(chunkIDs) != len(vectors) {
		return fmt.Errorf("chunkIDs and vectors length mismatch")
	}

	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO embeddings (chunk_id, vector, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for i, vector := range vectors {
		if len(vector) == 0 {
			continue
		}
		if _, err := stmt.Exec(chunkIDs[i], vectorToBlob(vector), len(vector), model, now); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// Search performs brute-force cosine similarity search and fills in chunks
// when chunkStore is non-nil.
func (v *VectorStore) Search(queryVector []float32, topK int, chunkStore *ChunkStore) ([]ScoredChunk, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := v.db.sqlDB.Query("SELECT chunk_id, vector, dimension FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var chunkID string
		var blob []byte
		var dimension int

		if err := rows.Scan(&chunkID, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		vector, err := blobToVector(blob)
		if err != nil || len(vector) != len(queryVector) {
			continue // Skip malformed vectors or another model's dimensions
		}

		score := embedding.Similarity(queryVector, vector)
		results = append(results, ScoredChunk{ChunkID: chunkID, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}

	if chunkStore != nil && len(results) > 0 {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ChunkID
		}
		chunks, err := chunkStore.GetByIDs(ids)
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Chunk = chunks[results[i].ChunkID]
		}
	}

	return results, nil
}

// Count returns the number of vectors stored
func (v *VectorStore) Count() (int, error) {
	var count int
	err := v.db.sqlDB.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}

	return vector, nil
}
