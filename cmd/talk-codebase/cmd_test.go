package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/talk-codebase/internal/config"
)

// runCLI executes the root command with args and stdin, returning stdout
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	chatFlags.render, chatFlags.noSources, chatFlags.topK = false, false, 0
	indexFlags.force, indexFlags.yes = false, false
	statsJSON = false
	configPath, verbose = "", false

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// fakeOpenAI serves embeddings and streamed chat completions, accepting
// only the key goodKey.
func fakeOpenAI(t *testing.T, goodKey, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+goodKey {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
			return
		}

		switch r.URL.Path {
		case "/embeddings":
			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			data := make([]map[string]any, len(req.Input))
			for i, in := range req.Input {
				v := []float64{1, 0}
				if strings.Contains(in, "main") {
					v = []float64{0, 1}
				}
				data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "text-embedding-ada-002"})
		case "/chat/completions":
			w.Header().Set("Content-Type", "text/event-stream")
			for _, tok := range strings.SplitAfter(answer, " ") {
				chunk, _ := json.Marshal(map[string]any{
					"id": "c", "object": "chat.completion.chunk", "created": 1, "model": "gpt-3.5-turbo",
					"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": tok}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", chunk)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, cfg config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk-codebase.yaml")
	require.NoError(t, cfg.Save(path))
	return path
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() { run() }\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "run.go"), []byte("package main\n\nfunc run() {}\n"), 0644))
	return root
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "1.2.3"
	defer func() { version = original }()

	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "talk-codebase version 1.2.3\n", out)
}

func TestConfigureSavesKeyAndDefaultModel(t *testing.T) {
	setupHome(t)
	path := writeConfig(t, config.Config{Retrieval: config.RetrievalConfig{TopK: 6}})

	out, err := runCLI(t, "sk-new\n\n", "--config", path, "configure")
	require.NoError(t, err)
	assert.Contains(t, out, "Enter your OpenAI API key")
	assert.Contains(t, out, "Enter your model name (default: gpt-3.5-turbo)")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-new", cfg.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", cfg.ModelName)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
}

func TestChatEndToEnd(t *testing.T) {
	setupHome(t)
	srv := fakeOpenAI(t, "sk-good", "main calls run.")
	path := writeConfig(t, config.Config{APIKey: "sk-good", ModelName: "gpt-3.5-turbo", BaseURL: srv.URL + "/"})
	root := writeProject(t)

	stdin := "y\n\nwhat does main do?\nreset\nexit\n"
	out, err := runCLI(t, stdin, "--config", path, "chat", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Creating a vector store for 2 documents will cost ~$")
	assert.Contains(t, out, "Created vector store with 2 documents")
	assert.Contains(t, out, "🤖 Please enter a question.")
	assert.Contains(t, out, "main calls run.")
	assert.Contains(t, out, "📄 main.go in ")

	// second run offers the existing index
	out, err = runCLI(t, "y\nexit\n", "--config", path, "chat", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Found existing vector store. Do you want to use it?")
	assert.NotContains(t, out, "Creating a vector store")
}

func TestChatReconfiguresOnRejectedKey(t *testing.T) {
	setupHome(t)
	srv := fakeOpenAI(t, "sk-good", "fine.")
	path := writeConfig(t, config.Config{APIKey: "sk-bad", ModelName: "gpt-4", BaseURL: srv.URL + "/"})
	root := writeProject(t)

	stdin := "y\nsk-good\n\ny\nwhat does main do?\n"
	out, err := runCLI(t, stdin, "--config", path, "chat", root)
	require.NoError(t, err)

	assert.Contains(t, out, "🤖 Please configure your API key.")
	assert.Contains(t, out, "fine.")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-good", cfg.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", cfg.ModelName)
	assert.Equal(t, srv.URL+"/", cfg.BaseURL)
}

func TestChatWithoutConfigAsksForItAndSaysBye(t *testing.T) {
	setupHome(t)
	path := filepath.Join(t.TempDir(), "missing.yaml")

	out, err := runCLI(t, "", "--config", path, "chat", writeProject(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Enter your OpenAI API key")
	assert.Contains(t, out, "🤖 Bye!")
}

func TestChatNoDocuments(t *testing.T) {
	setupHome(t)
	path := writeConfig(t, config.Config{APIKey: "sk-good", ModelName: "gpt-3.5-turbo", BaseURL: "http://127.0.0.1:1/"})

	out, err := runCLI(t, "", "--config", path, "chat", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "✘ No documents found")
}

func TestChatFailureIsLoggedWithChainAndStack(t *testing.T) {
	home := setupHome(t)
	path := writeConfig(t, config.Config{
		APIKey:    "sk-good",
		ModelName: "gpt-3.5-turbo",
		Splitter:  config.SplitterConfig{ChunkSize: 1},
	})

	out, err := runCLI(t, "", "--config", path, "chat", writeProject(t))
	require.Error(t, err)
	assert.Contains(t, out, "🤖 Error: splitter.chunk_size must be greater than 1")

	logs, err := filepath.Glob(filepath.Join(home, ".talk-codebase", "logs", "talk-codebase-chat-*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat failed")
	assert.Contains(t, string(data), "chain=")
	assert.Contains(t, string(data), "runtime/debug.Stack")
}

func TestErrorChain(t *testing.T) {
	inner := errors.New("connection refused")
	err := fmt.Errorf("embed question: %w", fmt.Errorf("post: %w", inner))

	chain := errorChain(err)
	require.Len(t, chain, 3)
	assert.Contains(t, chain[0], "embed question: post: connection refused")
	assert.Equal(t, "*errors.errorString: connection refused", chain[2])

	joined := errorChain(errors.Join(inner, errors.New("closed")))
	assert.Len(t, joined, 3)
	assert.Empty(t, errorChain(nil))
}

func TestChatRequiresRoot(t *testing.T) {
	_, err := runCLI(t, "", "chat")
	assert.Error(t, err)
}

func TestIndexAndStats(t *testing.T) {
	setupHome(t)
	srv := fakeOpenAI(t, "sk-good", "")
	path := writeConfig(t, config.Config{APIKey: "sk-good", ModelName: "gpt-3.5-turbo", BaseURL: srv.URL + "/"})
	root := writeProject(t)

	out, err := runCLI(t, "", "--config", path, "stats", root)
	require.NoError(t, err)
	assert.Contains(t, out, "No index for")

	out, err = runCLI(t, "", "--config", path, "index", "--yes", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Created vector store with 2 documents")
	assert.NotContains(t, out, "Do you want to continue?")

	out, err = runCLI(t, "", "--config", path, "index", root)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists (2 chunks")

	out, err = runCLI(t, "", "--config", path, "stats", "--json", root)
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, float64(2), stats["chunks"])
	assert.Equal(t, float64(2), stats["sources"])
	assert.Equal(t, "text-embedding-ada-002", stats["embedding_model"])
	dbPath, _ := stats["db_path"].(string)
	assert.Equal(t, "index.db", filepath.Base(dbPath))
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)

	out, err = runCLI(t, "", "--config", path, "stats", root)
	require.NoError(t, err)
	assert.Contains(t, out, "📊 Index Statistics")
	assert.Contains(t, out, "Database:   "+dbPath)
}
