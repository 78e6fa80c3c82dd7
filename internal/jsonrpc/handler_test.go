package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/metrics"
	"github.com/brbranch/promptchain/internal/model"
	"github.com/brbranch/promptchain/internal/prompt"
	"github.com/brbranch/promptchain/internal/service"
)

// === モックサービス ===

type mockPromptService struct {
	formatFunc func(ctx context.Context, req *service.FormatPromptRequest) (*service.FormatPromptResponse, error)
}

func (m *mockPromptService) ListPrompts(ctx context.Context) (*service.ListPromptsResponse, error) {
	return &service.ListPromptsResponse{Prompts: []service.PromptInfo{
		{Name: "qa", Template: "{context} {question}", InputVariables: []string{"context", "question"}, Format: "fstring", Builtin: true},
	}}, nil
}

func (m *mockPromptService) FormatPrompt(ctx context.Context, req *service.FormatPromptRequest) (*service.FormatPromptResponse, error) {
	if m.formatFunc != nil {
		return m.formatFunc(ctx, req)
	}
	return &service.FormatPromptResponse{Text: "formatted"}, nil
}

type mockChainService struct {
	runFunc      func(ctx context.Context, req *service.RunChainRequest) (*service.RunChainResponse, error)
	sequenceFunc func(ctx context.Context, req *service.RunSequenceRequest) (*service.RunSequenceResponse, error)
}

func (m *mockChainService) RunChain(ctx context.Context, req *service.RunChainRequest) (*service.RunChainResponse, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, req)
	}
	return &service.RunChainResponse{Prompt: "p", Output: "o", Provider: "echo", Model: "echo"}, nil
}

func (m *mockChainService) RunSequence(ctx context.Context, req *service.RunSequenceRequest) (*service.RunSequenceResponse, error) {
	if m.sequenceFunc != nil {
		return m.sequenceFunc(ctx, req)
	}
	return &service.RunSequenceResponse{Output: "last", Steps: []string{"first", "last"}}, nil
}

type mockDocumentService struct {
	ingestFunc func(ctx context.Context, req *service.IngestRequest) (*service.IngestResponse, error)
	askFunc    func(ctx context.Context, req *service.AskRequest) (*service.AskResponse, error)
	searchFunc func(ctx context.Context, req *service.SearchRequest) (*service.SearchResponse, error)
	listFunc   func(ctx context.Context, req *service.ListDocumentsRequest) (*service.ListDocumentsResponse, error)
	deleteFunc func(ctx context.Context, collection, documentID string) (*service.DeleteDocumentResponse, error)
}

func (m *mockDocumentService) Ingest(ctx context.Context, req *service.IngestRequest) (*service.IngestResponse, error) {
	if m.ingestFunc != nil {
		return m.ingestFunc(ctx, req)
	}
	return &service.IngestResponse{Collection: "default", Namespace: "test-ns"}, nil
}

func (m *mockDocumentService) Ask(ctx context.Context, req *service.AskRequest) (*service.AskResponse, error) {
	if m.askFunc != nil {
		return m.askFunc(ctx, req)
	}
	return &service.AskResponse{Answer: "42"}, nil
}

func (m *mockDocumentService) Search(ctx context.Context, req *service.SearchRequest) (*service.SearchResponse, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, req)
	}
	return &service.SearchResponse{Namespace: "test-ns"}, nil
}

func (m *mockDocumentService) ListDocuments(ctx context.Context, req *service.ListDocumentsRequest) (*service.ListDocumentsResponse, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, req)
	}
	return &service.ListDocumentsResponse{Collection: "default", Documents: []model.DocumentSummary{}}, nil
}

func (m *mockDocumentService) DeleteDocument(ctx context.Context, collection, documentID string) (*service.DeleteDocumentResponse, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, collection, documentID)
	}
	return &service.DeleteDocumentResponse{Deleted: 1}, nil
}

type mockConversationService struct {
	chatFunc func(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error)
}

func (m *mockConversationService) Chat(ctx context.Context, req *service.ChatRequest) (*service.ChatResponse, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return &service.ChatResponse{SessionID: "s-1", Reply: "hello", Turns: 1}, nil
}

func (m *mockConversationService) ClearSession(ctx context.Context, sessionID string) (*service.ClearSessionResponse, error) {
	if sessionID == "" {
		return nil, service.ErrSessionIDRequired
	}
	return &service.ClearSessionResponse{Cleared: true}, nil
}

type mockConfigService struct {
	setConfigFunc func(ctx context.Context, req *service.SetConfigRequest) (*service.SetConfigResponse, error)
}

func (m *mockConfigService) GetConfig(ctx context.Context) (*service.GetConfigResponse, error) {
	return &service.GetConfigResponse{
		TransportDefaults: model.TransportDefaults{DefaultTransport: "stdio"},
		LLM:               model.LLMConfig{Provider: "echo", Model: "echo", Temperature: 0.7},
		Embedder:          model.EmbedderConfig{Provider: "local", Model: "hash", Dim: 256},
		Store:             model.StoreConfig{Type: "memory"},
	}, nil
}

func (m *mockConfigService) SetConfig(ctx context.Context, req *service.SetConfigRequest) (*service.SetConfigResponse, error) {
	if m.setConfigFunc != nil {
		return m.setConfigFunc(ctx, req)
	}
	return &service.SetConfigResponse{OK: true, EffectiveNamespace: "local:hash:256"}, nil
}

// === ヘルパー関数 ===

func makeRequest(method string, params any) []byte {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	b, _ := json.Marshal(req)
	return b
}

func parseResponse(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func parseResult(t *testing.T, data []byte) map[string]any {
	t.Helper()
	resp := parseResponse(t, data)
	if resp["error"] != nil {
		t.Fatalf("unexpected error: %v", resp["error"])
	}
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("result is not an object: %v", resp["result"])
	}
	return result
}

func parseErrorResponse(t *testing.T, data []byte) *model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	return &resp
}

type testServices struct {
	prompt       *mockPromptService
	chain        *mockChainService
	document     *mockDocumentService
	conversation *mockConversationService
	config       *mockConfigService
}

func newTestHandler() (*Handler, *testServices) {
	ts := &testServices{
		prompt:       &mockPromptService{},
		chain:        &mockChainService{},
		document:     &mockDocumentService{},
		conversation: &mockConversationService{},
		config:       &mockConfigService{},
	}
	h := New(Services{
		Prompt:       ts.prompt,
		Chain:        ts.chain,
		Document:     ts.document,
		Conversation: ts.conversation,
		Config:       ts.config,
	}, nil)
	return h, ts
}

// === 1. パース系テスト ===

func TestHandle_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		wantCode int
	}{
		{"invalid json", `{invalid`, model.ErrCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"prompt.list"}`, model.ErrCodeInvalidRequest},
		{"no method", `{"jsonrpc":"2.0","id":1}`, model.ErrCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"unknown.method"}`, model.ErrCodeMethodNotFound},
		{"params wrong type", `{"jsonrpc":"2.0","id":1,"method":"docs.ingest","params":{"sources":"not-a-list"}}`, model.ErrCodeInvalidParams},
	}

	h, _ := newTestHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := parseErrorResponse(t, h.Handle(context.Background(), []byte(tt.request)))
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d (%s)", tt.wantCode, resp.Error.Code, resp.Error.Message)
			}
		})
	}
}

func TestHandle_PreservesStringID(t *testing.T) {
	h, _ := newTestHandler()

	resp := parseResponse(t, h.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":"abc","method":"prompt.list"}`)))
	if resp["id"] != "abc" {
		t.Errorf("expected id abc, got %v", resp["id"])
	}
}

// === 2. メソッド別テスト ===

func TestHandle_PromptList(t *testing.T) {
	h, _ := newTestHandler()

	result := parseResult(t, h.Handle(context.Background(), makeRequest("prompt.list", nil)))
	prompts, ok := result["prompts"].([]any)
	if !ok || len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %v", result["prompts"])
	}
	first := prompts[0].(map[string]any)
	if first["name"] != "qa" || first["builtin"] != true {
		t.Errorf("unexpected prompt: %v", first)
	}
}

func TestHandle_PromptFormat(t *testing.T) {
	h, ts := newTestHandler()
	var got *service.FormatPromptRequest
	ts.prompt.formatFunc = func(ctx context.Context, req *service.FormatPromptRequest) (*service.FormatPromptResponse, error) {
		got = req
		return &service.FormatPromptResponse{Text: "Tell me a joke", InputVariables: []string{"adjective"}}, nil
	}

	result := parseResult(t, h.Handle(context.Background(), makeRequest("prompt.format", map[string]any{
		"template":         "Tell me a {adjective} joke about {topic}",
		"partialVariables": map[string]string{"topic": "ducks"},
		"values":           map[string]any{"adjective": "dry"},
	})))

	if result["text"] != "Tell me a joke" {
		t.Errorf("unexpected text: %v", result["text"])
	}
	if got.Prompt.Template == nil || *got.Prompt.Template != "Tell me a {adjective} joke about {topic}" {
		t.Errorf("template not passed through: %+v", got.Prompt)
	}
	if got.Prompt.PartialVariables["topic"] != "ducks" {
		t.Errorf("partials not passed through: %+v", got.Prompt.PartialVariables)
	}
	if got.Values["adjective"] != "dry" {
		t.Errorf("values not passed through: %+v", got.Values)
	}
}

func TestHandle_ChainRun(t *testing.T) {
	h, ts := newTestHandler()
	var got *service.RunChainRequest
	ts.chain.runFunc = func(ctx context.Context, req *service.RunChainRequest) (*service.RunChainResponse, error) {
		got = req
		return &service.RunChainResponse{
			Prompt:   "Tell me a joke",
			Output:   "Why did the duck...",
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Usage:    llm.Usage{PromptTokens: 4, CompletionTokens: 5},
		}, nil
	}

	result := parseResult(t, h.Handle(context.Background(), makeRequest("chain.run", map[string]any{
		"name":        "joke",
		"values":      map[string]any{"adjective": "funny"},
		"temperature": 0.2,
		"maxTokens":   64,
	})))

	if result["output"] != "Why did the duck..." {
		t.Errorf("unexpected output: %v", result["output"])
	}
	usage := result["usage"].(map[string]any)
	if usage["completionTokens"] != float64(5) {
		t.Errorf("unexpected usage: %v", usage)
	}
	if got.Prompt.Name == nil || *got.Prompt.Name != "joke" {
		t.Errorf("name not passed through: %+v", got.Prompt)
	}
	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("temperature not passed through: %v", got.Temperature)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 64 {
		t.Errorf("maxTokens not passed through: %v", got.MaxTokens)
	}
}

func TestHandle_ChainSequence(t *testing.T) {
	h, ts := newTestHandler()
	var got *service.RunSequenceRequest
	ts.chain.sequenceFunc = func(ctx context.Context, req *service.RunSequenceRequest) (*service.RunSequenceResponse, error) {
		got = req
		return &service.RunSequenceResponse{Output: "slogan", Steps: []string{"name", "slogan"}}, nil
	}

	result := parseResult(t, h.Handle(context.Background(), makeRequest("chain.sequence", map[string]any{
		"steps": []map[string]any{
			{"template": "name for {product}"},
			{"name": "slogan"},
		},
		"input": "socks",
	})))

	if result["output"] != "slogan" {
		t.Errorf("unexpected output: %v", result["output"])
	}
	if len(got.Steps) != 2 || got.Input != "socks" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Steps[1].Name == nil || *got.Steps[1].Name != "slogan" {
		t.Errorf("step name not passed through: %+v", got.Steps[1])
	}
}

func TestHandle_DocsIngest(t *testing.T) {
	h, ts := newTestHandler()
	title := "Go"
	ts.document.ingestFunc = func(ctx context.Context, req *service.IngestRequest) (*service.IngestResponse, error) {
		if req.Collection != "langs" || len(req.Sources) != 2 || req.Metadata["team"] != "docs" {
			return nil, fmt.Errorf("unexpected request: %+v", req)
		}
		return &service.IngestResponse{
			Collection: "langs",
			Namespace:  "local:hash:256",
			Documents:  []service.IngestedDocument{{DocumentID: "d1", Source: "/tmp/go.md", Title: &title, ChunkCount: 3}},
			ChunkCount: 3,
		}, nil
	}

	result := parseResult(t, h.Handle(context.Background(), makeRequest("docs.ingest", map[string]any{
		"collection": "langs",
		"sources":    []string{"/tmp/go.md", "https://go.dev"},
		"metadata":   map[string]any{"team": "docs"},
	})))

	if result["chunkCount"] != float64(3) {
		t.Errorf("unexpected chunkCount: %v", result["chunkCount"])
	}
	docs := result["documents"].([]any)
	if docs[0].(map[string]any)["title"] != "Go" {
		t.Errorf("unexpected document: %v", docs[0])
	}
}

func TestHandle_DocsAskAndSearch(t *testing.T) {
	h, ts := newTestHandler()
	source := service.SourceChunk{ChunkID: "c1", DocumentID: "d1", Source: "/tmp/go.md", Index: 0, Text: "Go is fun", Score: 0.9}
	ts.document.askFunc = func(ctx context.Context, req *service.AskRequest) (*service.AskResponse, error) {
		if req.TopK == nil || *req.TopK != 2 || req.DocumentID == nil || *req.DocumentID != "d1" {
			return nil, fmt.Errorf("unexpected request: %+v", req)
		}
		return &service.AskResponse{Answer: "Go is fun", Sources: []service.SourceChunk{source}}, nil
	}
	ts.document.searchFunc = func(ctx context.Context, req *service.SearchRequest) (*service.SearchResponse, error) {
		return &service.SearchResponse{Namespace: "ns", Results: []service.SourceChunk{source}}, nil
	}

	ask := parseResult(t, h.Handle(context.Background(), makeRequest("docs.ask", map[string]any{
		"question":   "Is Go fun?",
		"topK":       2,
		"documentId": "d1",
	})))
	if ask["answer"] != "Go is fun" {
		t.Errorf("unexpected answer: %v", ask["answer"])
	}
	sources := ask["sources"].([]any)
	if sources[0].(map[string]any)["chunkId"] != "c1" {
		t.Errorf("unexpected source: %v", sources[0])
	}

	search := parseResult(t, h.Handle(context.Background(), makeRequest("docs.search", map[string]any{"query": "Go"})))
	results := search["results"].([]any)
	if len(results) != 1 || results[0].(map[string]any)["score"] != 0.9 {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestHandle_DocsListAndDelete(t *testing.T) {
	h, ts := newTestHandler()
	var deleted [2]string
	ts.document.listFunc = func(ctx context.Context, req *service.ListDocumentsRequest) (*service.ListDocumentsResponse, error) {
		if req.Limit == nil || *req.Limit != 5 {
			return nil, fmt.Errorf("unexpected limit: %v", req.Limit)
		}
		return &service.ListDocumentsResponse{
			Collection: "default",
			Documents:  []model.DocumentSummary{{DocumentID: "d1", Collection: "default", Source: "/tmp/a.md", ChunkCount: 2}},
		}, nil
	}
	ts.document.deleteFunc = func(ctx context.Context, collection, documentID string) (*service.DeleteDocumentResponse, error) {
		deleted = [2]string{collection, documentID}
		return &service.DeleteDocumentResponse{Deleted: 2}, nil
	}

	list := parseResult(t, h.Handle(context.Background(), makeRequest("docs.list", map[string]any{"limit": 5})))
	docs := list["documents"].([]any)
	if len(docs) != 1 || docs[0].(map[string]any)["chunkCount"] != float64(2) {
		t.Errorf("unexpected documents: %v", docs)
	}

	del := parseResult(t, h.Handle(context.Background(), makeRequest("docs.delete", map[string]any{
		"collection": "team",
		"documentId": "d1",
	})))
	if del["deleted"] != float64(2) {
		t.Errorf("unexpected deleted: %v", del["deleted"])
	}
	if deleted != [2]string{"team", "d1"} {
		t.Errorf("unexpected delete args: %v", deleted)
	}
}

func TestHandle_Chat(t *testing.T) {
	h, _ := newTestHandler()

	send := parseResult(t, h.Handle(context.Background(), makeRequest("chat.send", map[string]any{"message": "hi"})))
	if send["sessionId"] != "s-1" || send["reply"] != "hello" {
		t.Errorf("unexpected chat result: %v", send)
	}

	cleared := parseResult(t, h.Handle(context.Background(), makeRequest("chat.clear", map[string]any{"sessionId": "s-1"})))
	if cleared["cleared"] != true {
		t.Errorf("unexpected clear result: %v", cleared)
	}

	resp := parseErrorResponse(t, h.Handle(context.Background(), makeRequest("chat.clear", map[string]any{})))
	if resp.Error.Code != model.ErrCodeInvalidParams {
		t.Errorf("expected invalid params, got %d", resp.Error.Code)
	}
}

func TestHandle_Config(t *testing.T) {
	h, ts := newTestHandler()
	var got *service.SetConfigRequest
	ts.config.setConfigFunc = func(ctx context.Context, req *service.SetConfigRequest) (*service.SetConfigResponse, error) {
		got = req
		return &service.SetConfigResponse{OK: true, EffectiveNamespace: "ollama:nomic-embed-text:0"}, nil
	}

	cfg := parseResult(t, h.Handle(context.Background(), makeRequest("config.get", nil)))
	llmCfg := cfg["llm"].(map[string]any)
	if llmCfg["provider"] != "echo" {
		t.Errorf("unexpected llm config: %v", llmCfg)
	}
	if _, exists := llmCfg["apiKey"]; exists {
		t.Error("apiKey must not be returned")
	}

	set := parseResult(t, h.Handle(context.Background(), makeRequest("config.set", map[string]any{
		"embedder": map[string]any{"provider": "ollama", "model": "nomic-embed-text"},
		"llm":      map[string]any{"temperature": 0.1},
	})))
	if set["effectiveNamespace"] != "ollama:nomic-embed-text:0" {
		t.Errorf("unexpected namespace: %v", set["effectiveNamespace"])
	}
	if got.Embedder == nil || *got.Embedder.Provider != "ollama" {
		t.Errorf("embedder patch not passed through: %+v", got.Embedder)
	}
	if got.LLM == nil || got.LLM.Provider != nil || *got.LLM.Temperature != 0.1 {
		t.Errorf("llm patch not passed through: %+v", got.LLM)
	}
}

// === 3. エラーマッピング ===

func TestHandle_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"missing prompt source", service.ErrPromptSourceRequired, model.ErrCodeInvalidParams},
		{"invalid collection", fmt.Errorf("%w: bad", service.ErrInvalidCollection), model.ErrCodeInvalidParams},
		{"invalid config", fmt.Errorf("%w: bad", config.ErrInvalidConfig), model.ErrCodeInvalidParams},
		{"prompt not found", service.ErrPromptNotFound, model.ErrCodeNotFound},
		{"document not found", service.ErrDocumentNotFound, model.ErrCodeNotFound},
		{"missing value", fmt.Errorf("%w: topic", prompt.ErrMissingValue), model.ErrCodeTemplateError},
		{"invalid template", prompt.ErrInvalidTemplate, model.ErrCodeTemplateError},
		{"api key", llm.ErrAPIKeyRequired, model.ErrCodeAPIKeyMissing},
		{"provider error", &llm.APIError{StatusCode: 500, Message: "boom"}, model.ErrCodeProviderError},
		{"circuit open", fmt.Errorf("%w: open", llm.ErrUnavailable), model.ErrCodeProviderUnavailable},
		{"unexpected", errors.New("disk on fire"), model.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ts := newTestHandler()
			ts.chain.runFunc = func(ctx context.Context, req *service.RunChainRequest) (*service.RunChainResponse, error) {
				return nil, tt.err
			}

			resp := parseErrorResponse(t, h.Handle(context.Background(), makeRequest("chain.run", map[string]any{"template": "x"})))
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d (%s)", tt.wantCode, resp.Error.Code, resp.Error.Message)
			}
			if resp.ID != float64(1) {
				t.Errorf("expected id 1, got %v", resp.ID)
			}
		})
	}
}

func TestHandle_Metrics(t *testing.T) {
	collector := metrics.NewCollector("test")
	_, ts := newTestHandler()
	h := New(Services{
		Prompt:       ts.prompt,
		Chain:        ts.chain,
		Document:     ts.document,
		Conversation: ts.conversation,
		Config:       ts.config,
	}, collector)

	h.Handle(context.Background(), makeRequest("prompt.list", nil))
	h.Handle(context.Background(), makeRequest("chat.clear", map[string]any{}))

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("prompt.list", metrics.StatusOK)); got != 1 {
		t.Errorf("prompt.list ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("chat.clear", metrics.StatusError)); got != 1 {
		t.Errorf("chat.clear error = %v, want 1", got)
	}
}
