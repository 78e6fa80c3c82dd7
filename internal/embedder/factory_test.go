package embedder

import (
	"errors"
	"testing"

	"github.com/brbranch/promptchain/internal/model"
)

func TestNewEmbedder_OpenAI_APIKeyResolution(t *testing.T) {
	cfgKey := "cfg-api-key"

	tests := []struct {
		name    string
		cfgKey  *string
		envKey  string
		wantKey string
		wantErr error
	}{
		{"config wins", &cfgKey, "env-api-key", "cfg-api-key", nil},
		{"env fallback", nil, "env-api-key", "env-api-key", nil},
		{"missing", nil, "", "", ErrAPIKeyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &model.EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small", APIKey: tt.cfgKey}
			emb, err := NewEmbedder(cfg, tt.envKey, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := emb.(*OpenAIEmbedder).apiKey; got != tt.wantKey {
				t.Errorf("apiKey = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestNewEmbedder_OpenAI_Options(t *testing.T) {
	baseURL := "https://proxy.example.com/v1"
	cfg := &model.EmbedderConfig{
		Provider: "openai",
		Model:    "text-embedding-3-large",
		Dim:      3072,
		BaseURL:  &baseURL,
	}

	emb, err := NewEmbedder(cfg, "key", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := emb.(*OpenAIEmbedder)
	if o.baseURL != baseURL || o.model != "text-embedding-3-large" || o.GetDimension() != 3072 {
		t.Errorf("embedder = (%s, %s, %d)", o.baseURL, o.model, o.GetDimension())
	}
}

func TestNewEmbedder_OtherProviders(t *testing.T) {
	emb, err := NewEmbedder(&model.EmbedderConfig{Provider: "ollama", Model: "nomic-embed-text"}, "", nil)
	if err != nil {
		t.Fatalf("ollama: unexpected error: %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("expected *OllamaEmbedder, got %T", emb)
	}

	emb, err = NewEmbedder(&model.EmbedderConfig{Provider: "local", Model: "hash", Dim: 128}, "", nil)
	if err != nil {
		t.Fatalf("local: unexpected error: %v", err)
	}
	if emb.GetDimension() != 128 {
		t.Errorf("local dim = %d, want 128", emb.GetDimension())
	}

	if _, err := NewEmbedder(&model.EmbedderConfig{Provider: "unknown"}, "", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
