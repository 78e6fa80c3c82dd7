package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/logger"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
)

// OllamaEmbedder はOllamaの埋め込みAPIを使用するEmbedder実装
type OllamaEmbedder struct {
	client     *api.Client
	model      string
	mu         sync.Mutex
	dim        int
	dimUpdater DimUpdater
}

// NewOllamaEmbedder は新しいOllamaEmbedderを作成
func NewOllamaEmbedder(baseURL, model string, dim int, dimUpdater DimUpdater, httpClient *http.Client) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}

	return &OllamaEmbedder{
		client:     api.NewClient(u, httpClient),
		model:      model,
		dim:        dim,
		dimUpdater: dimUpdater,
	}, nil
}

// Embed はテキストを埋め込みベクトルに変換
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se api.StatusError
		if errors.As(err, &se) {
			return nil, &APIError{StatusCode: se.StatusCode, Message: se.Error()}
		}
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}

	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}

	e.mu.Lock()
	first := e.dim == 0
	if first {
		e.dim = len(embedding)
	}
	e.mu.Unlock()
	if first && e.dimUpdater != nil {
		if err := e.dimUpdater.UpdateDim(len(embedding)); err != nil {
			logger.Zlog.Warn("failed to update embedding dim", zap.Int("dim", len(embedding)), zap.Error(err))
		}
	}

	return embedding, nil
}

// GetDimension は次元を返す（未確定なら0）
func (e *OllamaEmbedder) GetDimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}
