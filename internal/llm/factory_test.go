package llm

import (
	"errors"
	"testing"

	"github.com/brbranch/promptchain/internal/model"
)

func TestNewLLM(t *testing.T) {
	cfgKey := "cfg-key"
	baseURL := "http://localhost:11434"

	tests := []struct {
		name      string
		cfg       model.LLMConfig
		envKey    string
		wantName  string
		wantModel string
		wantErr   error
	}{
		{
			name:      "openai with env key",
			cfg:       model.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.7},
			envKey:    "env-key",
			wantName:  "openai",
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "openai with config key",
			cfg:       model.LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: &cfgKey},
			wantName:  "openai",
			wantModel: "gpt-4o",
		},
		{
			name:    "openai without key",
			cfg:     model.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
			wantErr: ErrAPIKeyRequired,
		},
		{
			name:      "ollama",
			cfg:       model.LLMConfig{Provider: "ollama", Model: "llama3", BaseURL: &baseURL},
			wantName:  "ollama",
			wantModel: "llama3",
		},
		{
			name:      "echo",
			cfg:       model.LLMConfig{Provider: "echo", Model: "echo-1"},
			wantName:  "echo",
			wantModel: "echo-1",
		},
		{
			name:    "unknown",
			cfg:     model.LLMConfig{Provider: "bard", Model: "x"},
			wantErr: ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLLM(&tt.cfg, tt.envKey)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l.Name() != tt.wantName || l.Model() != tt.wantModel {
				t.Errorf("got %s/%s, want %s/%s", l.Name(), l.Model(), tt.wantName, tt.wantModel)
			}
		})
	}
}
