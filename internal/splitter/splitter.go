// Package splitter cuts documents into overlapping chunks of bounded size.
package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/DreamCats/talk-codebase/internal/loader"
	"github.com/DreamCats/talk-codebase/internal/logging"
)

// DefaultSeparators are tried in order, coarsest first. The empty
// separator splits into single characters so every piece can fit.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is a bounded slice of a document's text
type Chunk struct {
	ID      string
	Source  string
	Seq     int // position within the source document
	Content string
}

// Splitter is a recursive character text splitter. Sizes count runes.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// Option configures a Splitter
type Option func(*Splitter)

// WithSeparators replaces the separator list
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = seps
		}
	}
}

// New creates a splitter. chunkOverlap must be smaller than chunkSize.
func New(chunkSize, chunkOverlap int, opts ...Option) (*Splitter, error) {
	if chunkSize <= 1 {
		return nil, fmt.Errorf("chunk size must be greater than 1, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}

	s := &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChunkSize returns the maximum chunk length in runes
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// SplitDocuments splits every document, stamping chunks with their source
func (s *Splitter) SplitDocuments(docs []loader.Document) []Chunk {
	var chunks []Chunk
	for _, doc := range docs {
		for i, text := range s.SplitText(doc.Content) {
			chunks = append(chunks, Chunk{
				ID:      uuid.New().String(),
				Source:  doc.Source,
				Seq:     i,
				Content: text,
			})
		}
	}
	logging.Info("documents split", logging.Fields{
		"documents":     len(docs),
		"chunks":        len(chunks),
		"chunk_size":    s.chunkSize,
		"chunk_overlap": s.chunkOverlap,
	})
	return chunks
}

// SplitText splits text into chunks no longer than the chunk size
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text.
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if separator == "" {
		splits = strings.Split(text, "")
	} else {
		splits = strings.Split(text, separator)
	}

	var final []string
	var good []string
	for _, piece := range splits {
		if piece == "" {
			continue
		}
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			// Only reachable with a custom separator list lacking "".
			final = append(final, s.hardSplit(piece)...)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge packs pieces into chunks, carrying up to chunkOverlap runes of
// trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := runeLen(separator)

	var docs []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost(current, sepLen) > s.chunkSize && len(current) > 0 {
			if doc := join(current, separator); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.chunkOverlap || (total > 0 && total+n+joinCost(current, sepLen) > s.chunkSize) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if doc := join(current, separator); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// hardSplit cuts text into chunkSize-rune windows
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func joinCost(current []string, sepLen int) int {
	if len(current) > 0 {
		return sepLen
	}
	return 0
}

func join(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
