package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/logger"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"

	// /embeddings が1リクエストで受け付けるinputの上限
	maxBatchInputs = 2048
)

// OpenAIEmbedder はOpenAI互換の /embeddings エンドポイントを使うBatchEmbedder
type OpenAIEmbedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	mu         sync.Mutex
	dim        int
	dimOnce    sync.Once
	dimUpdater DimUpdater
}

// OpenAIOption はOpenAIEmbedderのオプション
type OpenAIOption func(*OpenAIEmbedder)

// WithBaseURL はベースURLを設定
func WithBaseURL(url string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.baseURL = url
	}
}

// WithModel はモデルを設定
func WithModel(model string) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.model = model
	}
}

// WithDim は既知の次元を設定
func WithDim(dim int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.dim = dim
	}
}

// WithDimUpdater は次元更新コールバックを設定
func WithDimUpdater(updater DimUpdater) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.dimUpdater = updater
	}
}

// WithHTTPClient はHTTPクライアントを設定
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.httpClient = client
	}
}

// NewOpenAIEmbedder は新しいOpenAIEmbedderを作成
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	e := &OpenAIEmbedder{
		httpClient: http.DefaultClient,
		baseURL:    DefaultOpenAIBaseURL,
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// embeddingRequest は /embeddings へのリクエスト（inputは配列で送る）
type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed は1件のテキストを埋め込む
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}

	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if vecs[0] == nil {
		return nil, ErrEmptyEmbedding
	}
	return vecs[0], nil
}

// EmbedBatch はチャンク群をまとめて埋め込む
// 1リクエストあたり最大maxBatchInputs件に分けて送る
// レスポンスのindexで並べ直し、空文字や空ベクトルの位置はnilのまま返す
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// APIは空文字を受け付けないので送る分だけ詰める
	positions := make([]int, 0, len(texts))
	input := make([]string, 0, len(texts))
	for i, text := range texts {
		if text == "" {
			continue
		}
		positions = append(positions, i)
		input = append(input, text)
	}

	for start := 0; start < len(input); start += maxBatchInputs {
		end := min(start+maxBatchInputs, len(input))
		vecs, err := e.embedRequest(ctx, input[start:end])
		if err != nil {
			return nil, err
		}
		for i, vec := range vecs {
			out[positions[start+i]] = vec
		}
	}

	return out, nil
}

// embedRequest は1回の /embeddings 呼び出しを行い、input順のベクトルを返す
func (e *OpenAIEmbedder) embedRequest(ctx context.Context, input []string) ([][]float32, error) {
	reqJSON, err := json.Marshal(embeddingRequest{
		Model:          e.model,
		Input:          input,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrAPIRequestFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(embResp.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vecs := make([][]float32, len(input))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrInvalidResponse, d.Index)
		}
		if len(d.Embedding) == 0 {
			continue
		}
		vecs[d.Index] = d.Embedding
		e.recordDim(len(d.Embedding))
	}

	return vecs, nil
}

// recordDim は初回埋め込み時に次元を確定し、DimUpdaterに通知する
func (e *OpenAIEmbedder) recordDim(dim int) {
	e.mu.Lock()
	known := e.dim
	e.mu.Unlock()
	if known != 0 {
		return
	}

	e.dimOnce.Do(func() {
		e.mu.Lock()
		e.dim = dim
		e.mu.Unlock()
		if e.dimUpdater != nil {
			if err := e.dimUpdater.UpdateDim(dim); err != nil {
				logger.Zlog.Warn("failed to update embedding dim", zap.Int("dim", dim), zap.Error(err))
			}
		}
	})
}

// GetDimension は次元を返す（未確定なら0）
func (e *OpenAIEmbedder) GetDimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}
