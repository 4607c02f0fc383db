package store

import (
	"fmt"
	"strconv"
	"time"
)

const (
	metaRootDir        = "root_dir"
	metaEmbeddingModel = "embedding_model"
	metaChunkSize      = "chunk_size"
	metaChunkOverlap   = "chunk_overlap"
	metaChunkCount     = "chunk_count"
	metaCreatedAt      = "created_at"
)

// SaveMeta records how the index was built
func (db *DB) SaveMeta(m Meta) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	values := map[string]string{
		metaRootDir:        m.RootDir,
		metaEmbeddingModel: m.EmbeddingModel,
		metaChunkSize:      strconv.Itoa(m.ChunkSize),
		metaChunkOverlap:   strconv.Itoa(m.ChunkOverlap),
		metaChunkCount:     strconv.Itoa(m.ChunkCount),
		metaCreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}

	tx, err := db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if _, err := tx.Exec("INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to save meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meta: %w", err)
	}
	return nil
}

// LoadMeta returns the index metadata, or nil if none was recorded
func (db *DB) LoadMeta() (*Meta, error) {
	rows, err := db.sqlDB.Query("SELECT key, value FROM index_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	createdAt, err := parseTimeString(values[metaCreatedAt])
	if err != nil {
		return nil, err
	}
	return &Meta{
		RootDir:        values[metaRootDir],
		EmbeddingModel: values[metaEmbeddingModel],
		ChunkSize:      atoi(values[metaChunkSize]),
		ChunkOverlap:   atoi(values[metaChunkOverlap]),
		ChunkCount:     atoi(values[metaChunkCount]),
		CreatedAt:      createdAt,
	}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
