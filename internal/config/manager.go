package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/brbranch/promptchain/internal/model"
)

// Manager は設定の読み書きを管理する
// fileは設定ファイル由来の値（環境変数の上書きを含まない）で、Saveはこちらだけを書き出す
// configはfileに環境変数を適用した実効設定
type Manager struct {
	mu         sync.RWMutex
	file       *model.Config
	config     *model.Config
	configPath string
	applyEnv   bool
}

// NewManager は新しいManagerを作成する
// configPathが空文字の場合、デフォルトパス（~/.promptchain/config.json）を使用
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	}

	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get default data dir: %w", err)
	}

	cfg := DefaultConfig(configPath, dataDir)
	return &Manager{
		file:       cloneConfig(cfg),
		config:     cfg,
		configPath: configPath,
		applyEnv:   true,
	}, nil
}

// Load は設定ファイルを読み込み、環境変数の上書きとバリデーションを行う
// ファイルが存在しない場合はデフォルト設定を使用（エラーなし）
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := DefaultConfig(m.configPath, m.config.Paths.DataDir)

	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		// デフォルトのまま
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := unmarshalConfig(m.configPath, data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// ファイルにパス設定がなければ実際のパスで埋める
	if cfg.Paths.ConfigPath == "" {
		cfg.Paths.ConfigPath = m.configPath
	}

	effective := m.effective(cfg)
	if err := Validate(effective); err != nil {
		return err
	}

	m.file = cfg
	m.config = effective
	return nil
}

// Save は設定ファイルを保存する（拡張子に応じてJSON/YAML）
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := marshalConfig(m.configPath, m.file)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := EnsureDir(filepath.Dir(m.configPath)); err != nil {
		return err
	}

	// 一時ファイルに書き込んでからリネーム（atomicな保存）
	tmpFile := m.configPath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := os.Rename(tmpFile, m.configPath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	return nil
}

// GetConfig は現在の設定を返す
func (m *Manager) GetConfig() *model.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath は設定ファイルパスを返す
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Update はファイル由来の設定のコピーにapplyを適用し、
// 環境変数を重ねた実効設定が妥当なときだけ両方を差し替える
// applyがエラーを返すかバリデーションに失敗した場合は何も変わらない
func (m *Manager) Update(apply func(cfg *model.Config) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := cloneConfig(m.file)
	if err := apply(next); err != nil {
		return err
	}
	effective := m.effective(next)
	if err := Validate(effective); err != nil {
		return err
	}

	m.file = next
	m.config = effective
	return nil
}

// UpdateEmbedder はembedder設定のうち指定されたフィールドのみ更新する
func (m *Manager) UpdateEmbedder(patch *model.EmbedderConfig) error {
	return m.Update(func(cfg *model.Config) error {
		PatchEmbedder(&cfg.Embedder, patch)
		return nil
	})
}

// UpdateLLM はLLM設定のうち指定されたフィールドのみ更新する
func (m *Manager) UpdateLLM(provider, modelName string, temperature *float64) error {
	return m.Update(func(cfg *model.Config) error {
		PatchLLM(&cfg.LLM, provider, modelName, temperature)
		return nil
	})
}

// PatchEmbedder はpatchの空でないフィールドをdstに反映する
// provider/modelが変わった場合はdimをリセットする
func PatchEmbedder(dst *model.EmbedderConfig, patch *model.EmbedderConfig) {
	changed := false
	if patch.Provider != "" && patch.Provider != dst.Provider {
		dst.Provider = patch.Provider
		changed = true
	}
	if patch.Model != "" && patch.Model != dst.Model {
		dst.Model = patch.Model
		changed = true
	}
	if changed {
		dst.Dim = 0
	}
	if patch.Dim != 0 {
		dst.Dim = patch.Dim
	}
	if patch.BaseURL != nil {
		dst.BaseURL = patch.BaseURL
	}
	if patch.APIKey != nil {
		dst.APIKey = patch.APIKey
	}
}

// PatchLLM は空でない値だけをdstに反映する
func PatchLLM(dst *model.LLMConfig, provider, modelName string, temperature *float64) {
	if provider != "" {
		dst.Provider = provider
	}
	if modelName != "" {
		dst.Model = modelName
	}
	if temperature != nil {
		dst.Temperature = *temperature
	}
}

// UpdateDim は埋め込み次元を更新する（初回埋め込み時に使用）
// 環境変数で別のembedderに切り替えている間はファイル側に書き込まない
func (m *Manager) UpdateDim(dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file.Embedder.Provider == m.config.Embedder.Provider && m.file.Embedder.Model == m.config.Embedder.Model {
		m.file.Embedder.Dim = dim
	}
	m.config.Embedder.Dim = dim
	return nil
}

// NewManagerWithConfig は指定した設定でManagerを作成する（テスト用）
// cfgは実効設定としてそのまま使い、環境変数は適用しない
func NewManagerWithConfig(cfg *model.Config) *Manager {
	return &Manager{
		file:       cloneConfig(cfg),
		config:     cfg,
		configPath: cfg.Paths.ConfigPath,
	}
}

// cloneConfig はパッチと環境変数の適用で共有されない程度にコピーする
// ポインタのフィールドは差し替えるだけで中身を書き換えないので共有してよい
func cloneConfig(cfg *model.Config) *model.Config {
	c := *cfg
	c.TransportDefaults.CORSOrigins = slices.Clone(cfg.TransportDefaults.CORSOrigins)
	if cfg.Prompts != nil {
		c.Prompts = make(map[string]model.PromptConfig, len(cfg.Prompts))
		for k, v := range cfg.Prompts {
			c.Prompts[k] = v
		}
	}
	return &c
}

// effective はファイル由来の設定に環境変数を重ねたコピーを返す
func (m *Manager) effective(cfg *model.Config) *model.Config {
	c := cloneConfig(cfg)
	if m.applyEnv {
		ApplyEnvOverrides(c)
	}
	return c
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(configPath, dataDir string) *model.Config {
	return &model.Config{
		TransportDefaults: model.TransportDefaults{
			DefaultTransport: model.TransportStdio,
		},
		LLM: model.LLMConfig{
			Provider:       model.ProviderOpenAI,
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			TimeoutSeconds: 60,
			Breaker: model.BreakerConfig{
				MaxRequests:      1,
				IntervalSeconds:  60,
				TimeoutSeconds:   30,
				FailureThreshold: 0.6,
				MinRequests:      5,
			},
		},
		Embedder: model.EmbedderConfig{
			Provider: model.ProviderOpenAI,
			Model:    "text-embedding-3-small",
			Dim:      0, // 初回埋め込み時に設定
		},
		Store: model.StoreConfig{
			Type: model.StoreTypeSQLite,
		},
		Splitter: model.SplitterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		QA: model.QAConfig{
			TopK:              4,
			Temperature:       0,
			DefaultCollection: model.DefaultCollection,
		},
		Memory: model.MemoryConfig{
			MaxTurns: 10,
		},
		Log: model.LogConfig{
			Level:  "info",
			Format: "json",
		},
		Paths: model.PathsConfig{
			ConfigPath: configPath,
			DataDir:    dataDir,
		},
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshalConfig(path string, data []byte, cfg *model.Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshalConfig(path string, cfg *model.Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}
