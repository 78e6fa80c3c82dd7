package config

import (
	"testing"

	"github.com/brbranch/promptchain/internal/model"
)

func TestGenerateNamespace(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		dim      int
		want     string
	}{
		{"openai", "text-embedding-3-small", 1536, "openai:text-embedding-3-small:1536"},
		{"ollama", "nomic-embed-text", 768, "ollama:nomic-embed-text:768"},
		{"local", "hash", 0, "local:hash:0"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := GenerateNamespace(tt.provider, tt.model, tt.dim); got != tt.want {
				t.Errorf("GenerateNamespace = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNamespace(t *testing.T) {
	tests := []struct {
		in   string
		want Namespace
	}{
		{"ollama:nomic-embed-text:768", Namespace{"ollama", "nomic-embed-text", 768}},
		{"ollama:nomic-embed-text:latest:768", Namespace{"ollama", "nomic-embed-text:latest", 768}},
		{"local:hash:0", Namespace{"local", "hash", 0}},
	}
	for _, tt := range tests {
		got, err := ParseNamespace(tt.in)
		if err != nil {
			t.Fatalf("ParseNamespace(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseNamespace(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}

	invalid := []string{"", "openai", "a:b", "a:b:c", "a:b:-1", ":b:1", "a::1"}
	for _, ns := range invalid {
		if _, err := ParseNamespace(ns); err == nil {
			t.Errorf("ParseNamespace(%q) expected error", ns)
		}
	}
}

// TestNamespaceFor は実際の次元数が設定値より優先されることをテスト
func TestNamespaceFor(t *testing.T) {
	cfg := &model.EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small", Dim: 0}

	if got := NamespaceFor(cfg, 0); got != "openai:text-embedding-3-small:0" {
		t.Errorf("NamespaceFor(dim=0) = %q", got)
	}
	if got := NamespaceFor(cfg, 1536); got != "openai:text-embedding-3-small:1536" {
		t.Errorf("NamespaceFor(dim=1536) = %q", got)
	}

	cfg.Dim = 256
	if got := NamespaceFor(cfg, 0); got != "openai:text-embedding-3-small:256" {
		t.Errorf("NamespaceFor(config dim) = %q", got)
	}
}
