package llm

import (
	"net/http"
	"time"

	"github.com/brbranch/promptchain/internal/model"
)

// NewLLM はLLMConfigからLLMを作成する
// APIKey解決: cfg.APIKey > envAPIKey
func NewLLM(cfg *model.LLMConfig, envAPIKey string) (LLM, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	temperature := cfg.Temperature

	switch cfg.Provider {
	case model.ProviderOpenAI:
		apiKey := model.StringValue(cfg.APIKey, envAPIKey)
		opts := []OpenAIOption{
			WithHTTPClient(httpClient),
			WithDefaultTemperature(temperature),
		}
		if baseURL := model.StringValue(cfg.BaseURL, ""); baseURL != "" {
			opts = append(opts, WithBaseURL(baseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, WithDefaultMaxTokens(cfg.MaxTokens))
		}
		return NewOpenAILLM(apiKey, opts...)

	case model.ProviderOllama:
		l, err := NewOllamaLLM(model.StringValue(cfg.BaseURL, ""), cfg.Model, httpClient)
		if err != nil {
			return nil, err
		}
		l.SetDefaults(&temperature, cfg.MaxTokens)
		return l, nil

	case model.ProviderEcho:
		return NewEchoLLM(cfg.Model), nil

	default:
		return nil, ErrUnknownProvider
	}
}
