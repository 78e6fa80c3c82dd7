package service

import (
	"context"
	"sync"
	"testing"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/model"
)

// newTestManager はネットワークを使わないプロバイダー構成のManagerを返す
func newTestManager(t *testing.T) *config.Manager {
	t.Helper()

	cfg := config.DefaultConfig("", t.TempDir())
	cfg.LLM.Provider = model.ProviderEcho
	cfg.LLM.Model = "echo-1"
	cfg.Embedder.Provider = model.ProviderLocal
	cfg.Embedder.Model = "hash"
	cfg.Embedder.Dim = 64
	cfg.Store.Type = model.StoreTypeMemory
	cfg.Prompts = map[string]model.PromptConfig{
		"joke": {Template: "Tell me a {adjective} joke about {topic}"},
		"greet": {
			Template:         "Hello {name}, today is {day}",
			PartialVariables: map[string]string{"day": "Monday"},
		},
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return config.NewManagerWithConfig(cfg)
}

// mockLLM は呼び出しを記録するLLM
type mockLLM struct {
	mu    sync.Mutex
	calls []llm.Options
	reply func(messages []llm.Message) (*llm.Response, error)
}

func (m *mockLLM) Name() string  { return "mock" }
func (m *mockLLM) Model() string { return "mock-1" }

func (m *mockLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()

	if m.reply != nil {
		return m.reply(messages)
	}
	return &llm.Response{Content: "ok"}, nil
}

func (m *mockLLM) lastOptions() llm.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
