package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/brbranch/promptchain/internal/model"
)

// 環境変数名の定数
const (
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvLLMProvider      = "PROMPTCHAIN_LLM_PROVIDER"
	EnvLLMModel         = "PROMPTCHAIN_LLM_MODEL"
	EnvEmbedderProvider = "PROMPTCHAIN_EMBEDDER_PROVIDER"
	EnvStoreType        = "PROMPTCHAIN_STORE_TYPE"
	EnvLogLevel         = "PROMPTCHAIN_LOG_LEVEL"
	EnvOllamaHost       = "OLLAMA_HOST"
)

// LoadDotEnv は.envファイルを環境変数に読み込む
// ファイルが存在しない場合は何もしない。既存の環境変数は上書きしない
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides は環境変数による設定上書きを適用する
// config を直接変更する
func ApplyEnvOverrides(config *model.Config) {
	if apiKey := os.Getenv(EnvOpenAIAPIKey); apiKey != "" {
		config.LLM.APIKey = &apiKey
		config.Embedder.APIKey = &apiKey
	}
	if v := os.Getenv(EnvLLMProvider); v != "" {
		config.LLM.Provider = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		config.LLM.Model = v
	}
	if v := os.Getenv(EnvEmbedderProvider); v != "" {
		config.Embedder.Provider = v
	}
	if v := os.Getenv(EnvStoreType); v != "" {
		config.Store.Type = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	if host := os.Getenv(EnvOllamaHost); host != "" {
		if config.LLM.Provider == model.ProviderOllama && config.LLM.BaseURL == nil {
			config.LLM.BaseURL = &host
		}
		if config.Embedder.Provider == model.ProviderOllama && config.Embedder.BaseURL == nil {
			config.Embedder.BaseURL = &host
		}
	}
}

// GetOpenAIAPIKey は環境変数からOpenAI APIキーを取得する
// 設定ファイルの値より環境変数を優先
func GetOpenAIAPIKey(config *model.Config) string {
	if apiKey := os.Getenv(EnvOpenAIAPIKey); apiKey != "" {
		return apiKey
	}
	if config.LLM.APIKey != nil {
		return *config.LLM.APIKey
	}
	if config.Embedder.APIKey != nil {
		return *config.Embedder.APIKey
	}
	return ""
}
