//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brbranch/promptchain/internal/bootstrap"
	"github.com/brbranch/promptchain/internal/jsonrpc"
	"github.com/brbranch/promptchain/internal/model"
)

// storeTypes はネットワーク不要で全フローを検証できるストア
var storeTypes = []string{model.StoreTypeMemory, model.StoreTypeSQLite}

// setupTestHandler はecho LLMとローカルembedderで全コンポーネントを組み立てる
func setupTestHandler(t *testing.T, storeType string) *jsonrpc.Handler {
	t.Helper()

	for _, key := range []string{
		"OPENAI_API_KEY",
		"PROMPTCHAIN_LLM_PROVIDER",
		"PROMPTCHAIN_LLM_MODEL",
		"PROMPTCHAIN_EMBEDDER_PROVIDER",
		"PROMPTCHAIN_STORE_TYPE",
		"PROMPTCHAIN_LOG_LEVEL",
		"OLLAMA_HOST",
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	cfg := map[string]any{
		"llm":      map[string]any{"provider": "echo", "model": "echo-1", "temperature": 0.7},
		"embedder": map[string]any{"provider": "local", "model": "hash", "dim": 256},
		"store": map[string]any{
			"type": storeType,
			"path": filepath.Join(dir, "chunks.db"),
		},
		"splitter": map[string]any{"chunkSize": 200, "chunkOverlap": 20},
		"prompts": map[string]any{
			"joke": map[string]any{
				"template":       "Tell me a {adjective} joke about {content}.",
				"inputVariables": []string{"adjective", "content"},
			},
		},
		"paths": map[string]any{"dataDir": dir},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	manager, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	app, cleanup, err := bootstrap.Initialize(context.Background(), manager)
	if err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	t.Cleanup(cleanup)

	return app.Handler
}

// writeDocs はテスト用ドキュメントを作成し、パスを返す
func writeDocs(t *testing.T) (goDoc, pythonDoc string) {
	t.Helper()
	dir := t.TempDir()

	goDoc = filepath.Join(dir, "go.md")
	pythonDoc = filepath.Join(dir, "python.txt")

	files := map[string]string{
		goDoc:     "# Go\n\nGoroutines and channels make concurrency simple in Go.\n",
		pythonDoc: "Python uses indentation and has a large standard library.\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return goDoc, pythonDoc
}

// callRaw はメソッドを呼び出して生のレスポンスを返す
func callRaw(t *testing.T, h *jsonrpc.Handler, method string, params any) *RawResponse {
	t.Helper()

	reqBytes, err := json.Marshal(model.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	respBytes := h.Handle(context.Background(), reqBytes)

	var resp RawResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return &resp
}

// call はメソッドを呼び出し、成功結果をoutにデコードする
func call(t *testing.T, h *jsonrpc.Handler, method string, params any, out any) {
	t.Helper()

	resp := callRaw(t, h, method, params)
	if resp.Error != nil {
		t.Fatalf("%s failed: %d %s", method, resp.Error.Code, resp.Error.Message)
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		t.Fatalf("failed to unmarshal %s result: %v", method, err)
	}
}

// レスポンス型定義

type RawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *model.RPCError `json:"error,omitempty"`
}

type IngestResult struct {
	Collection string `json:"collection"`
	Namespace  string `json:"namespace"`
	Documents  []struct {
		DocumentID string `json:"documentId"`
		Source     string `json:"source"`
		ChunkCount int    `json:"chunkCount"`
	} `json:"documents"`
	ChunkCount int `json:"chunkCount"`
}

type SourceChunk struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	Source     string  `json:"source"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type AskResult struct {
	Answer  string        `json:"answer"`
	Sources []SourceChunk `json:"sources"`
}

type SearchResult struct {
	Namespace string        `json:"namespace"`
	Results   []SourceChunk `json:"results"`
}

type ListResult struct {
	Collection string                  `json:"collection"`
	Documents  []model.DocumentSummary `json:"documents"`
}

type ChatResult struct {
	SessionID string `json:"sessionId"`
	Reply     string `json:"reply"`
	Turns     int    `json:"turns"`
}
