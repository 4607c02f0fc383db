package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/talk-codebase/internal/llm"
	"github.com/DreamCats/talk-codebase/internal/retrieval"
	"github.com/DreamCats/talk-codebase/internal/store"
)

type fakeModel struct {
	answer     string
	standalone string
	err        error
	completed  [][]llm.Message
	streamed   [][]llm.Message
}

func (f *fakeModel) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.completed = append(f.completed, msgs)
	return f.standalone, f.err
}

func (f *fakeModel) Stream(_ context.Context, msgs []llm.Message, onToken func(string)) (string, error) {
	f.streamed = append(f.streamed, msgs)
	if f.err != nil {
		return "", f.err
	}
	if onToken != nil {
		for _, word := range strings.SplitAfter(f.answer, " ") {
			onToken(word)
		}
	}
	return f.answer, nil
}

type fakeRetriever struct {
	queries []string
	topK    int
}

func (f *fakeRetriever) Retrieve(_ context.Context, question string, topK int) ([]retrieval.Result, error) {
	f.queries = append(f.queries, question)
	f.topK = topK
	return []retrieval.Result{
		{Chunk: store.Chunk{Source: "pkg/server.go", Content: "func Serve() {}"}, Score: 0.9},
		{Chunk: store.Chunk{Source: "pkg/server.go", Seq: 1, Content: "func stop() {}"}, Score: 0.8},
		{Chunk: store.Chunk{Source: "README.md", Content: "# server"}, Score: 0.5},
	}, nil
}

type scriptedLines struct {
	lines []string
	err   error
}

func (s *scriptedLines) ReadLine(context.Context, string) (string, error) {
	if len(s.lines) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newTestSession(t *testing.T, model *fakeModel, opts Options) (*Session, *fakeRetriever, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	if opts.TopK == 0 {
		opts.TopK = 4
	}
	r := &fakeRetriever{}
	s, err := NewSession(model, r, "/work/project", opts)
	require.NoError(t, err)
	return s, r, &out
}

func TestSendQuestionStreamsAndRecordsOneTurn(t *testing.T) {
	model := &fakeModel{answer: "Serve starts the server."}
	s, r, out := newTestSession(t, model, Options{ShowSources: true})

	answer, err := s.SendQuestion(context.Background(), "What does Serve do?")
	require.NoError(t, err)
	assert.Equal(t, "Serve starts the server.", answer)
	assert.Equal(t, 1, s.History().Len())
	assert.Empty(t, model.completed, "first question needs no condensing")
	assert.Equal(t, []string{"What does Serve do?"}, r.queries)
	assert.Equal(t, 4, r.topK)

	text := out.String()
	assert.Contains(t, text, "Serve starts the server.\n")
	assert.Contains(t, text, "📄 pkg/server.go in "+filepath.Join("/work/project", "pkg", "server.go")+":")
	assert.Contains(t, text, "📄 README.md in ")
	assert.Equal(t, 1, strings.Count(text, "📄 pkg/server.go"))

	require.Len(t, model.streamed, 1)
	system := model.streamed[0][0]
	assert.Equal(t, llm.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "--- pkg/server.go\nfunc Serve() {}")
}

func TestFollowUpIsCondensed(t *testing.T) {
	model := &fakeModel{answer: "ok", standalone: "How is the server stopped?"}
	s, r, _ := newTestSession(t, model, Options{})
	ctx := context.Background()

	_, err := s.SendQuestion(ctx, "What does Serve do?")
	require.NoError(t, err)
	_, err = s.SendQuestion(ctx, "and stopping it?")
	require.NoError(t, err)

	require.Len(t, model.completed, 1)
	assert.Contains(t, model.completed[0][1].Content, "User: What does Serve do?\nAssistant: ok\nUser: and stopping it?")
	assert.Equal(t, "How is the server stopped?", r.queries[1])

	turns := s.History().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "and stopping it?", turns[1].Question)

	// system, previous turn, question
	require.Len(t, model.streamed[1], 4)
	assert.Equal(t, llm.RoleAssistant, model.streamed[1][2].Role)
}

func TestSendQuestionErrorLeavesHistory(t *testing.T) {
	model := &fakeModel{err: llm.ErrUnauthorized}
	s, _, _ := newTestSession(t, model, Options{})

	_, err := s.SendQuestion(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrUnauthorized)
	assert.Zero(t, s.History().Len())
}

func TestLoop(t *testing.T) {
	model := &fakeModel{answer: "answer", standalone: "q"}
	s, _, out := newTestSession(t, model, Options{})

	in := &scriptedLines{lines: []string{"", "first", "", "second", "RESET", "third", "exit", "never"}}
	require.NoError(t, s.Loop(context.Background(), in))

	assert.Equal(t, 2, strings.Count(out.String(), "🤖 Please enter a question."))
	assert.Contains(t, out.String(), "history cleared")
	assert.Equal(t, 1, s.History().Len())
	assert.Equal(t, "third", s.History().Turns()[0].Question)
	assert.Equal(t, []string{"never"}, in.lines)
	assert.Len(t, model.streamed, 3)
}

func TestLoopEndsOnEOFAndPropagatesErrors(t *testing.T) {
	s, _, _ := newTestSession(t, &fakeModel{answer: "a"}, Options{})
	require.NoError(t, s.Loop(context.Background(), &scriptedLines{lines: []string{"q"}}))
	assert.Equal(t, 1, s.History().Len())

	interrupted := errors.New("interrupted")
	err := s.Loop(context.Background(), &scriptedLines{err: interrupted})
	assert.ErrorIs(t, err, interrupted)

	s, _, _ = newTestSession(t, &fakeModel{err: llm.ErrUnauthorized}, Options{})
	err = s.Loop(context.Background(), &scriptedLines{lines: []string{"q"}})
	assert.ErrorIs(t, err, llm.ErrUnauthorized)
}

func TestRenderedAnswer(t *testing.T) {
	model := &fakeModel{answer: "# Title\n\nSome **bold** text."}
	s, _, out := newTestSession(t, model, Options{RenderMarkdown: true, MarkdownStyle: "notty"})

	answer, err := s.SendQuestion(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, model.answer, answer)
	assert.Contains(t, out.String(), "Title")
	assert.Contains(t, out.String(), "bold")
	assert.NotContains(t, out.String(), "📄", "sources are off")
}

func TestNewSessionRejectsZeroTopK(t *testing.T) {
	_, err := NewSession(&fakeModel{}, &fakeRetriever{}, "/", Options{TopK: -1})
	assert.Error(t, err)
}
