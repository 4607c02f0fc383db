package indexer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/DreamCats/talk-codebase/internal/config"
	"github.com/DreamCats/talk-codebase/internal/cost"
	"github.com/DreamCats/talk-codebase/internal/embedding"
	"github.com/DreamCats/talk-codebase/internal/loader"
	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/progress"
	"github.com/DreamCats/talk-codebase/internal/retrieval"
	"github.com/DreamCats/talk-codebase/internal/splitter"
	"github.com/DreamCats/talk-codebase/internal/store"
)

var (
	// ErrNoDocuments means the root holds no loadable files
	ErrNoDocuments = errors.New("no documents found")
	// ErrDeclined means the user refused the estimated embedding cost
	ErrDeclined = errors.New("index build declined")
)

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Index is an opened, complete index for one root directory
type Index struct {
	Dir     string
	Meta    store.Meta
	db      *store.DB
	chunks  *store.ChunkStore
	vectors *store.VectorStore
	text    *store.TextIndex
}

// Retriever returns a hybrid retriever over the index
func (ix *Index) Retriever(embedder retrieval.Embedder, keywordWeight float64) *retrieval.HybridRetriever {
	var keywords retrieval.KeywordSearcher
	if ix.text != nil {
		keywords = ix.text
	}
	return retrieval.NewHybridRetriever(embedder, ix.vectors, ix.chunks, keywords, keywordWeight)
}

// Stats returns row counts for the index
func (ix *Index) Stats() (*store.DBStats, error) {
	return ix.db.Stats()
}

// DBPath returns the SQLite file of the index
func (ix *Index) DBPath() string {
	return ix.db.Path()
}

func (ix *Index) Close() error {
	var errs []error
	if ix.text != nil {
		errs = append(errs, ix.text.Close())
	}
	errs = append(errs, ix.db.Close())
	return errors.Join(errs...)
}

// DirFor returns the index directory for root under base. Roots with the
// same name in different places get different directories.
func DirFor(base, root string) string {
	sum := sha1.Sum([]byte(root))
	name := logging.SanitizeName(filepath.Base(root))
	return filepath.Join(base, fmt.Sprintf("%s-%s", name, hex.EncodeToString(sum[:])[:12]))
}

// Open opens the index in dir. It returns nil without error when dir holds
// no finished index for root.
func Open(dir, root string) (*Index, error) {
	dbPath := filepath.Join(dir, store.DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat index: %w", err)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	meta, err := db.LoadMeta()
	if err != nil {
		db.Close()
		return nil, err
	}
	if meta == nil || meta.RootDir != root {
		db.Close()
		return nil, nil
	}

	ix := &Index{
		Dir:     dir,
		Meta:    *meta,
		db:      db,
		chunks:  store.NewChunkStore(db),
		vectors: store.NewVectorStore(db),
	}
	text, err := store.OpenTextIndex(filepath.Join(dir, store.TextDirName))
	if err != nil {
		// vector search still works without the keyword index
		logging.Warn("keyword index unavailable", logging.Fields{"dir": dir, "error": err})
	} else {
		ix.text = text
	}
	return ix, nil
}

// Indexer builds and reuses per-root indexes
type Indexer struct {
	cfg      *config.Config
	embedder *embedding.Service
	confirm  Confirmer
	progress progress.Reporter
	out      io.Writer
}

// Option configures an Indexer
type Option func(*Indexer)

// WithProgress reports embedding progress to r
func WithProgress(r progress.Reporter) Option {
	return func(x *Indexer) { x.progress = r }
}

// WithOutput sets where status lines are written
func WithOutput(w io.Writer) Option {
	return func(x *Indexer) { x.out = w }
}

// New creates an indexer. cfg must have defaults applied.
func New(cfg *config.Config, embedder *embedding.Service, confirm Confirmer, opts ...Option) *Indexer {
	x := &Indexer{
		cfg:      cfg,
		embedder: embedder,
		confirm:  confirm,
		progress: progress.Nop{},
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Ensure returns the index for root, offering to reuse an existing one and
// building a new one otherwise. An index embedded with a different model is
// always rebuilt.
func (x *Indexer) Ensure(ctx context.Context, root, dir string) (*Index, error) {
	existing, err := Open(dir, root)
	if err != nil {
		logging.Warn("existing index unreadable, rebuilding", logging.Fields{"dir": dir, "error": err})
	}
	if existing != nil && existing.Meta.EmbeddingModel != x.embedder.Model() {
		// vectors from another model are not comparable with query vectors
		color.New(color.FgYellow).Fprintf(x.out, "Existing vector store was built with %s, rebuilding it for %s.\n",
			existing.Meta.EmbeddingModel, x.embedder.Model())
		logging.Warn("index embedding model changed", logging.Fields{
			"dir":   dir,
			"built": existing.Meta.EmbeddingModel,
			"model": x.embedder.Model(),
		})
		if err := existing.Close(); err != nil {
			return nil, fmt.Errorf("close existing index: %w", err)
		}
		existing = nil
	}
	if existing != nil {
		reuse, err := x.confirm.Confirm(ctx, "Found existing vector store. Do you want to use it?", true)
		if err != nil {
			existing.Close()
			return nil, err
		}
		if reuse {
			logging.Info("reusing index", logging.Fields{"dir": dir, "chunks": existing.Meta.ChunkCount})
			return existing, nil
		}
		if err := existing.Close(); err != nil {
			return nil, fmt.Errorf("close existing index: %w", err)
		}
	}
	return x.Build(ctx, root, dir, false)
}

// Build indexes root into dir, replacing whatever was there. Unless
// assumeYes is set the user must accept the estimated cost first.
func (x *Indexer) Build(ctx context.Context, root, dir string, assumeYes bool) (*Index, error) {
	start := time.Now()

	opts := loader.DefaultOptions()
	opts.Exclude = x.cfg.Index.Exclude
	if x.cfg.Index.MaxFileBytes != 0 {
		opts.MaxFileBytes = x.cfg.Index.MaxFileBytes
	}
	docs, err := loader.Load(ctx, root, opts)
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	split, err := splitter.New(x.cfg.Splitter.ChunkSize, x.cfg.ChunkOverlap())
	if err != nil {
		return nil, err
	}
	chunks := split.SplitDocuments(docs)
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	tokens, err := cost.CountTokens(x.embedder.Model(), contents)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	usd := cost.Estimate(tokens, x.cfg.Embedding.PricePer1KTokens)
	logging.Info("index cost estimated", logging.Fields{"documents": len(docs), "chunks": len(chunks), "tokens": tokens, "usd": usd})

	if !assumeYes {
		question := fmt.Sprintf("Creating a vector store for %d documents will cost ~%s. Do you want to continue?",
			len(chunks), cost.Format(usd))
		ok, err := x.confirm.Confirm(ctx, question, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	x.progress.Start(len(texts))
	vectors, err := x.embedder.EmbedBatch(ctx, texts, x.progress.Set)
	x.progress.Finish()
	if err != nil {
		return nil, err
	}

	ix, err := x.persist(root, dir, chunks, vectors)
	if err != nil {
		return nil, err
	}

	color.New(color.FgGreen).Fprintf(x.out, "✔ Created vector store with %d documents\n", len(chunks))
	logging.Info("index built", logging.Fields{
		"root":     root,
		"dir":      dir,
		"chunks":   len(chunks),
		"duration": time.Since(start).String(),
	})
	return ix, nil
}

func (x *Indexer) persist(root, dir string, chunks []splitter.Chunk, vectors [][]float32) (*Index, error) {
	db, err := store.Open(filepath.Join(dir, store.DBFileName))
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	if err := db.Clear(); err != nil {
		return nil, err
	}

	rows := make([]store.Chunk, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		rows[i] = store.Chunk{ID: c.ID, Source: c.Source, Seq: c.Seq, Content: c.Content}
		ids[i] = c.ID
	}

	chunkStore := store.NewChunkStore(db)
	if err := chunkStore.InsertBatch(rows); err != nil {
		return nil, err
	}
	vectorStore := store.NewVectorStore(db)
	if err := vectorStore.InsertBatch(ids, vectors, x.embedder.Model()); err != nil {
		return nil, err
	}

	text, err := store.CreateTextIndex(filepath.Join(dir, store.TextDirName))
	if err != nil {
		return nil, err
	}
	if err := text.IndexChunks(rows); err != nil {
		text.Close()
		return nil, err
	}

	// written last: an index without metadata is treated as absent
	meta := store.Meta{
		RootDir:        root,
		EmbeddingModel: x.embedder.Model(),
		ChunkSize:      x.cfg.Splitter.ChunkSize,
		ChunkOverlap:   x.cfg.ChunkOverlap(),
		ChunkCount:     len(rows),
		CreatedAt:      time.Now(),
	}
	if err := db.SaveMeta(meta); err != nil {
		text.Close()
		return nil, err
	}

	ok = true
	return &Index{
		Dir:     dir,
		Meta:    meta,
		db:      db,
		chunks:  chunkStore,
		vectors: vectorStore,
		text:    text,
	}, nil
}
