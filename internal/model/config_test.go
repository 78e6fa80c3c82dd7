package model

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestConfig_JSONUnmarshal はJSONからConfigが正しくデシリアライズされることをテスト
func TestConfig_JSONUnmarshal(t *testing.T) {
	jsonData := `{
		"transportDefaults": {"defaultTransport": "http"},
		"llm": {"provider": "ollama", "model": "llama3", "temperature": 0.2, "baseUrl": "http://localhost:11434"},
		"embedder": {"provider": "ollama", "model": "nomic-embed-text", "dim": 768},
		"store": {"type": "qdrant", "url": "http://localhost:6333"},
		"splitter": {"chunkSize": 500, "chunkOverlap": 50},
		"qa": {"topK": 3, "temperature": 0, "defaultCollection": "docs"},
		"prompts": {
			"joke": {"template": "Tell me a {adjective} joke about {topic}", "inputVariables": ["adjective", "topic"]}
		}
	}`

	var config Config
	if err := json.Unmarshal([]byte(jsonData), &config); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if config.TransportDefaults.DefaultTransport != TransportHTTP {
		t.Errorf("DefaultTransport = %q, want %q", config.TransportDefaults.DefaultTransport, TransportHTTP)
	}
	if config.LLM.Provider != ProviderOllama {
		t.Errorf("LLM.Provider = %q, want %q", config.LLM.Provider, ProviderOllama)
	}
	if config.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature = %v, want 0.2", config.LLM.Temperature)
	}
	if config.LLM.BaseURL == nil || *config.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("LLM.BaseURL = %v, want http://localhost:11434", config.LLM.BaseURL)
	}
	if config.Embedder.Dim != 768 {
		t.Errorf("Embedder.Dim = %d, want 768", config.Embedder.Dim)
	}
	if config.Store.Type != StoreTypeQdrant {
		t.Errorf("Store.Type = %q, want %q", config.Store.Type, StoreTypeQdrant)
	}
	if config.Splitter.ChunkSize != 500 || config.Splitter.ChunkOverlap != 50 {
		t.Errorf("Splitter = %+v, want {500 50}", config.Splitter)
	}
	if config.QA.DefaultCollection != "docs" {
		t.Errorf("QA.DefaultCollection = %q, want %q", config.QA.DefaultCollection, "docs")
	}

	joke, ok := config.Prompts["joke"]
	if !ok {
		t.Fatal("expected prompt 'joke' to exist")
	}
	if len(joke.InputVariables) != 2 {
		t.Errorf("len(InputVariables) = %d, want 2", len(joke.InputVariables))
	}
}

// TestConfig_YAMLUnmarshal はYAMLでも同じキーで読めることをテスト
func TestConfig_YAMLUnmarshal(t *testing.T) {
	yamlData := `
llm:
  provider: echo
  model: echo-1
  temperature: 0.7
embedder:
  provider: local
  model: hash
  dim: 128
store:
  type: memory
prompts:
  greet:
    template: "Hello {name}, today is {day}"
    partialVariables:
      day: Monday
log:
  level: debug
  format: console
`

	var config Config
	if err := yaml.Unmarshal([]byte(yamlData), &config); err != nil {
		t.Fatalf("failed to unmarshal YAML: %v", err)
	}

	if config.LLM.Provider != ProviderEcho {
		t.Errorf("LLM.Provider = %q, want %q", config.LLM.Provider, ProviderEcho)
	}
	if config.Embedder.Dim != 128 {
		t.Errorf("Embedder.Dim = %d, want 128", config.Embedder.Dim)
	}
	if config.Store.Type != StoreTypeMemory {
		t.Errorf("Store.Type = %q, want %q", config.Store.Type, StoreTypeMemory)
	}
	if got := config.Prompts["greet"].PartialVariables["day"]; got != "Monday" {
		t.Errorf("partial day = %q, want %q", got, "Monday")
	}
	if config.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", config.Log.Level, "debug")
	}
}

// TestLLMConfig_OmitEmpty は空のBaseURL/APIKeyがJSON出力で省略されることをテスト
func TestLLMConfig_OmitEmpty(t *testing.T) {
	config := &LLMConfig{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
	}

	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal LLMConfig: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}

	if _, exists := result["baseUrl"]; exists {
		t.Error("expected baseUrl to be omitted")
	}
	if _, exists := result["apiKey"]; exists {
		t.Error("expected apiKey to be omitted")
	}
	if _, exists := result["temperature"]; !exists {
		t.Error("expected temperature to exist in JSON")
	}
}

func TestStringValue(t *testing.T) {
	empty, key := "", "sk-config"
	tests := []struct {
		name string
		p    *string
		want string
	}{
		{"nil", nil, "sk-env"},
		{"empty", &empty, "sk-env"},
		{"set", &key, "sk-config"},
	}
	for _, tt := range tests {
		if got := StringValue(tt.p, "sk-env"); got != tt.want {
			t.Errorf("%s: StringValue = %q, want %q", tt.name, got, tt.want)
		}
	}
}
