package embedder

import (
	"net/http"
	"time"

	"github.com/brbranch/promptchain/internal/model"
)

const defaultHTTPTimeout = 60 * time.Second

// NewEmbedder はEmbedderConfigからEmbedderを作成する
// APIKeyは設定ファイルの値を環境変数より優先する
// dimUpdaterには次元数が確定したときに設定へ書き戻す先を渡す（nil可）
func NewEmbedder(cfg *model.EmbedderConfig, envAPIKey string, dimUpdater DimUpdater) (Embedder, error) {
	switch cfg.Provider {
	case model.ProviderOpenAI:
		return newOpenAIFromConfig(cfg, model.StringValue(cfg.APIKey, envAPIKey), dimUpdater)
	case model.ProviderOllama:
		baseURL := model.StringValue(cfg.BaseURL, DefaultOllamaBaseURL)
		return NewOllamaEmbedder(baseURL, cfg.Model, cfg.Dim, dimUpdater, nil)
	case model.ProviderLocal:
		return NewLocalEmbedder(cfg.Dim), nil
	}
	return nil, ErrUnknownProvider
}

func newOpenAIFromConfig(cfg *model.EmbedderConfig, apiKey string, dimUpdater DimUpdater) (*OpenAIEmbedder, error) {
	opts := []OpenAIOption{WithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout})}
	if baseURL := model.StringValue(cfg.BaseURL, ""); baseURL != "" {
		opts = append(opts, WithBaseURL(baseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.Dim > 0 {
		opts = append(opts, WithDim(cfg.Dim))
	}
	if dimUpdater != nil {
		opts = append(opts, WithDimUpdater(dimUpdater))
	}
	return NewOpenAIEmbedder(apiKey, opts...)
}
