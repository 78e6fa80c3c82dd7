// Package bootstrap provides common initialization logic for promptchain.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/embedder"
	"github.com/brbranch/promptchain/internal/jsonrpc"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/loader"
	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/memory"
	"github.com/brbranch/promptchain/internal/metrics"
	"github.com/brbranch/promptchain/internal/model"
	"github.com/brbranch/promptchain/internal/service"
	"github.com/brbranch/promptchain/internal/splitter"
	"github.com/brbranch/promptchain/internal/store"
)

// MetricsNamespace はPrometheusメトリクスの接頭辞
const MetricsNamespace = "promptchain"

// デフォルトの接続先
const (
	DefaultQdrantURL = "http://localhost:6333"
	urlFetchTimeout  = 30 * time.Second
)

// App は初期化されたアプリケーション全体を保持
type App struct {
	Config    *model.Config
	Manager   *config.Manager
	Namespace string
	Collector *metrics.Collector
	Services  jsonrpc.Services
	Handler   *jsonrpc.Handler
}

// LoadConfig は設定ファイルを読み込んだManagerを返す
// configPathが空ならデフォルトパスを使う
func LoadConfig(configPath string) (*config.Manager, error) {
	manager, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return manager, nil
}

// Initialize は読み込み済みの設定から全コンポーネントを組み立てる
// 戻り値のcleanupはストアを閉じる
func Initialize(ctx context.Context, manager *config.Manager) (*App, func(), error) {
	cfg := manager.GetConfig()
	apiKey := config.GetOpenAIAPIKey(cfg)
	collector := metrics.NewCollector(MetricsNamespace)

	// 1. LLM（ブレーカーとメトリクスで包む）
	base, err := llm.NewLLM(&cfg.LLM, apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm: %w", err)
	}
	chatModel := llm.Instrument(llm.WithBreaker(base, cfg.LLM.Breaker), collector)

	// 2. Embedder
	emb, err := embedder.NewEmbedder(&cfg.Embedder, apiKey, manager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	dim := emb.GetDimension()
	if dim == 0 && cfg.Store.Type == model.StoreTypeQdrant {
		// Qdrantはコレクション作成時にベクトル長が必要
		if dim, err = embedder.ResolveDimension(ctx, emb); err != nil {
			return nil, nil, err
		}
	}
	namespace := config.NamespaceFor(&cfg.Embedder, dim)

	// 3. Store
	st, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Initialize(ctx, namespace); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// 4. Loader / Splitter
	fileLoader, err := loader.NewFileLoader(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	urlLoader, err := loader.NewURLLoader(ctx, &http.Client{Timeout: urlFetchTimeout})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	split, err := splitter.New(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to create splitter: %w", err)
	}

	// 5. Services
	services := jsonrpc.Services{
		Prompt: service.NewPromptService(manager),
		Chain:  service.NewChainService(chatModel, manager, collector),
		Document: service.NewDocumentService(service.DocumentDeps{
			Loader:    loader.NewMultiLoader(fileLoader, urlLoader),
			Splitter:  split,
			Embedder:  emb,
			Store:     st,
			LLM:       chatModel,
			Manager:   manager,
			Namespace: namespace,
			Collector: collector,
		}),
		Conversation: service.NewConversationService(chatModel, memory.NewBuffer(cfg.Memory.MaxTurns), manager, collector),
		Config:       service.NewConfigService(manager),
	}

	logger.Zlog.Info("initialized",
		zap.String("llm", chatModel.Name()+"/"+chatModel.Model()),
		zap.String("namespace", namespace),
		zap.String("store", cfg.Store.Type))

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Zlog.Warn("failed to close store", zap.Error(err))
		}
	}

	return &App{
		Config:    cfg,
		Manager:   manager,
		Namespace: namespace,
		Collector: collector,
		Services:  services,
		Handler:   jsonrpc.New(services, collector),
	}, cleanup, nil
}

// newStore は設定に応じたストアを作成する
func newStore(cfg *model.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case model.StoreTypeSQLite:
		dbPath := config.DefaultSQLitePath(cfg.Paths.DataDir)
		if cfg.Store.Path != nil && *cfg.Store.Path != "" {
			expanded, err := config.ExpandTilde(*cfg.Store.Path)
			if err != nil {
				return nil, err
			}
			dbPath = expanded
		}
		// DBファイルの親ディレクトリを作成
		if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
		return st, nil

	case model.StoreTypeQdrant:
		url := DefaultQdrantURL
		if cfg.Store.URL != nil && *cfg.Store.URL != "" {
			url = *cfg.Store.URL
		}
		st, err := store.NewQdrantStore(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create qdrant store: %w", err)
		}
		return st, nil

	default:
		return store.NewMemoryStore(), nil
	}
}
