// Package chat runs the question and answer loop over an indexed codebase.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/DreamCats/talk-codebase/internal/llm"
	"github.com/DreamCats/talk-codebase/internal/logging"
	"github.com/DreamCats/talk-codebase/internal/progress"
	"github.com/DreamCats/talk-codebase/internal/retrieval"
)

// Completer is the chat model
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	Stream(ctx context.Context, messages []llm.Message, onToken func(string)) (string, error)
}

// Retriever finds the chunks relevant to a question
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]retrieval.Result, error)
}

// LineReader supplies user input one line at a time
type LineReader interface {
	ReadLine(ctx context.Context, label string) (string, error)
}

// Options controls how answers are produced and shown
type Options struct {
	TopK           int
	ShowSources    bool
	RenderMarkdown bool
	MarkdownStyle  string // glamour standard style, "dark" when empty
	Spinner        bool   // show a spinner while a rendered answer is generated
	Out            io.Writer
}

// Session answers questions about one root directory
type Session struct {
	model     Completer
	retriever Retriever
	root      string
	history   History
	opts      Options
	renderer  *glamour.TermRenderer
}

// NewSession creates a session. root is used to print absolute source paths.
func NewSession(model Completer, retriever Retriever, root string, opts Options) (*Session, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", opts.TopK)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	s := &Session{model: model, retriever: retriever, root: root, opts: opts}
	if opts.RenderMarkdown {
		style := opts.MarkdownStyle
		if style == "" {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return nil, fmt.Errorf("create markdown renderer: %w", err)
		}
		s.renderer = r
	}
	return s, nil
}

// History returns the session's conversation history
func (s *Session) History() *History {
	return &s.history
}

// SendQuestion answers question, printing the answer and its sources, and
// records exactly one turn on success.
func (s *Session) SendQuestion(ctx context.Context, question string) (string, error) {
	query := question
	if s.history.Len() > 0 {
		standalone, err := s.model.Complete(ctx, condenseMessages(&s.history, question))
		if err != nil {
			return "", err
		}
		if standalone = strings.TrimSpace(standalone); standalone != "" {
			query = standalone
		}
		logging.Debug("question condensed", logging.Fields{"question": question, "standalone": query})
	}

	results, err := s.retriever.Retrieve(ctx, query, s.opts.TopK)
	if err != nil {
		return "", err
	}

	messages := answerMessages(&s.history, results, query)
	answer, err := s.answer(ctx, messages)
	if err != nil {
		return "", err
	}

	if s.opts.ShowSources {
		s.printSources(results)
	}

	s.history.Add(question, answer)
	logging.Info("question answered", logging.Fields{
		"chunks":     len(results),
		"answer_len": len(answer),
		"turns":      s.history.Len(),
	})
	return answer, nil
}

func (s *Session) answer(ctx context.Context, messages []llm.Message) (string, error) {
	out := s.opts.Out
	if s.renderer == nil {
		answer, err := s.model.Stream(ctx, messages, func(tok string) {
			fmt.Fprint(out, tok)
		})
		fmt.Fprintln(out)
		return answer, err
	}

	stop := progress.StartSpinner(s.opts.Spinner, nil, "thinking")
	answer, err := s.model.Stream(ctx, messages, nil)
	stop()
	if err != nil {
		return "", err
	}
	rendered, err := s.renderer.Render(answer)
	if err != nil {
		logging.Warn("markdown render failed", logging.Fields{"error": err})
		rendered = answer + "\n"
	}
	fmt.Fprint(out, rendered)
	return answer, nil
}

func (s *Session) printSources(results []retrieval.Result) {
	sources := retrieval.Sources(results)
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(s.opts.Out, "\nSources:")
	for _, src := range sources {
		abs := filepath.Join(s.root, filepath.FromSlash(src))
		fmt.Fprintf(s.opts.Out, "📄 %s in %s:\n", src, abs)
	}
}

// Loop reads questions until the user quits or input ends. Errors from
// answering a question end the loop and are returned.
func (s *Session) Loop(ctx context.Context, in LineReader) error {
	notice := color.New(color.FgYellow)
	for {
		question, err := in.ReadLine(ctx, "👉 ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(question) {
		case "":
			notice.Fprintln(s.opts.Out, "🤖 Please enter a question.")
			continue
		case "exit", "quit":
			return nil
		case "reset", "clear":
			s.history.Reset()
			notice.Fprintln(s.opts.Out, "🤖 Conversation history cleared.")
			continue
		}

		if _, err := s.SendQuestion(ctx, question); err != nil {
			return err
		}
	}
}
