package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// ChunkStore persists chunk text and provenance
type ChunkStore struct {
	db *DB
}

func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// InsertBatch inserts chunks in a single transaction
func (s *ChunkStore) InsertBatch(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO chunks (id, source, seq, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk from %s has no id", c.Source)
		}
		if _, err := stmt.Exec(c.ID, c.Source, c.Seq, c.Content); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetByID loads a single chunk
func (s *ChunkStore) GetByID(id string) (*Chunk, error) {
	var c Chunk
	err := s.db.sqlDB.QueryRow("SELECT id, source, seq, content FROM chunks WHERE id = ?", id).
		Scan(&c.ID, &c.Source, &c.Seq, &c.Content)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chunk not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &c, nil
}

// GetByIDs loads chunks keyed by id; unknown ids are skipped
func (s *ChunkStore) GetByIDs(ids []string) (map[string]*Chunk, error) {
	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.sqlDB.Query("SELECT id, source, seq, content FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Seq, &c.Content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored chunks
func (s *ChunkStore) Count() (int, error) {
	var count int
	if err := s.db.sqlDB.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Sources returns the distinct source paths, sorted
func (s *ChunkStore) Sources() ([]string, error) {
	rows, err := s.db.sqlDB.Query("SELECT DISTINCT source FROM chunks ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
