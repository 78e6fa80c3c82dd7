package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/model"
)

// clearEnv は設定を上書きする環境変数を無効化する
func clearEnv(t *testing.T) {
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
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestInitialize_MemoryStore(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, `{
		"llm": {"provider": "echo", "model": "echo-1"},
		"embedder": {"provider": "local", "model": "hash", "dim": 64},
		"store": {"type": "memory"}
	}`)

	manager, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	app, cleanup, err := Initialize(context.Background(), manager)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer cleanup()

	if app.Namespace != "local:hash:64" {
		t.Errorf("Namespace = %q, want %q", app.Namespace, "local:hash:64")
	}
	if app.Handler == nil || app.Collector == nil {
		t.Fatal("expected handler and collector to be non-nil")
	}
	if app.Services.Prompt == nil || app.Services.Chain == nil || app.Services.Document == nil ||
		app.Services.Conversation == nil || app.Services.Config == nil {
		t.Errorf("expected all services to be non-nil: %+v", app.Services)
	}

	raw := app.Handler.Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"chain.run","params":{"template":"Say {word}","values":{"word":"hi"}}}`))

	var resp model.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected response: %s", raw)
	}
	if result["output"] != "[echo] Say hi" {
		t.Errorf("output = %v, want %q", result["output"], "[echo] Say hi")
	}
}

func TestInitialize_SQLiteStore(t *testing.T) {
	clearEnv(t)
	dbPath := filepath.Join(t.TempDir(), "nested", "chunks.db")
	configPath := writeConfig(t, `{
		"llm": {"provider": "echo", "model": "echo-1"},
		"embedder": {"provider": "local", "model": "hash"},
		"store": {"type": "sqlite", "path": "`+filepath.ToSlash(dbPath)+`"}
	}`)

	manager, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	_, cleanup, err := Initialize(context.Background(), manager)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer cleanup()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected sqlite file to be created: %v", err)
	}
}

func TestInitialize_MissingAPIKey(t *testing.T) {
	clearEnv(t)
	configPath := writeConfig(t, `{"store": {"type": "memory"}}`)

	manager, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	_, _, err = Initialize(context.Background(), manager)
	if !errors.Is(err, llm.ErrAPIKeyRequired) {
		t.Errorf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"broken json", `{"llm": `, "failed to parse config file"},
		{"invalid provider", `{"llm": {"provider": "unknown", "model": "x"}}`, "invalid"},
		{"overlap too large", `{"splitter": {"chunkSize": 100, "chunkOverlap": 100}}`, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}
