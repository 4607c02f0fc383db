package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, tokens []string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
			return
		}

		if !got.Stream {
			w.Header().Set("Content-Type", "application/json")
			content := ""
			for _, tok := range tokens {
				content += tok
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "cmpl-1",
				"object":  "chat.completion",
				"created": 1,
				"model":   got.Model,
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": content},
				}},
			})
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, tok := range tokens {
			chunk, _ := json.Marshal(map[string]any{
				"id":      "cmpl-1",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   got.Model,
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]any{"content": tok},
				}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestClientStream(t *testing.T) {
	srv, req := newChatServer(t, http.StatusOK, []string{"Hel", "lo", " there"})

	client, err := NewClient("sk-test", srv.URL+"/", "gpt-3.5-turbo")
	require.NoError(t, err)

	var seen []string
	answer, err := client.Stream(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "again"},
	}, func(tok string) { seen = append(seen, tok) })
	require.NoError(t, err)

	assert.Equal(t, "Hello there", answer)
	assert.Equal(t, []string{"Hel", "lo", " there"}, seen)
	assert.True(t, req.Stream)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Zero(t, req.Temperature)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "again", req.Messages[3].Content)
}

func TestClientComplete(t *testing.T) {
	srv, req := newChatServer(t, http.StatusOK, []string{"standalone ", "question"})

	client, err := NewClient("sk-test", srv.URL+"/", "gpt-4")
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "rephrase"}})
	require.NoError(t, err)
	assert.Equal(t, "standalone question", out)
	assert.False(t, req.Stream)
}

func TestClientUnauthorized(t *testing.T) {
	srv, _ := newChatServer(t, http.StatusUnauthorized, nil)

	client, err := NewClient("sk-bad", srv.URL+"/", "gpt-3.5-turbo")
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "", "gpt-3.5-turbo")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewClient("sk-test", "", "")
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
	plain := fmt.Errorf("boom")
	assert.Equal(t, plain, ClassifyError(plain))
}
