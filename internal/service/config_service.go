package service

import (
	"context"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/model"
)

// configService はConfigServiceの実装
type configService struct {
	manager *config.Manager
}

// NewConfigService はConfigServiceの新しいインスタンスを作成
func NewConfigService(mgr *config.Manager) ConfigService {
	return &configService{
		manager: mgr,
	}
}

// GetConfig は現在の設定を取得する（APIキーは返さない）
func (s *configService) GetConfig(ctx context.Context) (*GetConfigResponse, error) {
	cfg := s.manager.GetConfig()

	llmCfg := cfg.LLM
	llmCfg.APIKey = nil
	embCfg := cfg.Embedder
	embCfg.APIKey = nil

	return &GetConfigResponse{
		TransportDefaults: cfg.TransportDefaults,
		LLM:               llmCfg,
		Embedder:          embCfg,
		Store:             cfg.Store,
		Splitter:          cfg.Splitter,
		QA:                cfg.QA,
		Memory:            cfg.Memory,
		Paths:             cfg.Paths,
	}, nil
}

// SetConfig はembedderとllmの設定を変更する
// 両方のパッチをまとめて検証し、どちらかが不正なら何も変えない
// embedderのprovider/modelが変わった場合はdimを0に戻す
func (s *configService) SetConfig(ctx context.Context, req *SetConfigRequest) (*SetConfigResponse, error) {
	if req.Embedder != nil || req.LLM != nil {
		if err := s.manager.Update(func(cfg *model.Config) error {
			if req.Embedder != nil {
				config.PatchEmbedder(&cfg.Embedder, embedderPatch(req.Embedder))
			}
			if req.LLM != nil {
				config.PatchLLM(&cfg.LLM, model.StringValue(req.LLM.Provider, ""), model.StringValue(req.LLM.Model, ""), req.LLM.Temperature)
			}
			return nil
		}); err != nil {
			return nil, err
		}

		if s.manager.GetConfigPath() != "" {
			if err := s.manager.Save(); err != nil {
				return nil, err
			}
		}
	}

	cfg := s.manager.GetConfig()
	return &SetConfigResponse{
		OK:                 true,
		EffectiveNamespace: config.NamespaceFor(&cfg.Embedder, 0),
	}, nil
}

func embedderPatch(p *EmbedderPatch) *model.EmbedderConfig {
	return &model.EmbedderConfig{
		Provider: model.StringValue(p.Provider, ""),
		Model:    model.StringValue(p.Model, ""),
		BaseURL:  p.BaseURL,
		APIKey:   p.APIKey,
	}
}
