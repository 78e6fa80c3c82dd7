// Package embedder converts text into vectors for similarity search.
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// Embedder はテキストから埋め込みベクトルを生成するインターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// GetDimension は生成するベクトルの次元数（初回埋め込み前は0）
	GetDimension() int
}

// BatchEmbedder は複数テキストを1回の呼び出しで埋め込める
// 戻り値はtextsと同じ順序で、ベクトルにならなかった位置はnil
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DimUpdater は次元数が確定した際に呼び出されるコールバック
type DimUpdater interface {
	UpdateDim(dim int) error
}

var (
	ErrAPIKeyRequired   = errors.New("api key is required")
	ErrEmptyInput       = errors.New("text to embed is empty")
	ErrAPIRequestFailed = errors.New("API request failed")
	ErrInvalidResponse  = errors.New("invalid API response")
	ErrEmptyEmbedding   = errors.New("empty embedding returned")
	ErrUnknownProvider  = errors.New("unknown embedder provider")
)

// APIError はプロバイダーが返した非200レスポンス
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequestFailed
}

// EmbedAll はtextsをまとめて埋め込む
// BatchEmbedderならバッチで送り、そうでなければ1件ずつ呼ぶ
// ベクトルにならないテキスト（記号だけのチャンクなど）の位置はnilになる
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b, ok := e.(BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if errors.Is(err, ErrEmptyEmbedding) || errors.Is(err, ErrEmptyInput) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// dimensionSample は次元数を確かめるために埋め込むテキスト
const dimensionSample = "dimension check"

// ResolveDimension は次元数を返す。まだ分からなければ1回埋め込んで確定させる
func ResolveDimension(ctx context.Context, e Embedder) (int, error) {
	if dim := e.GetDimension(); dim > 0 {
		return dim, nil
	}
	vec, err := e.Embed(ctx, dimensionSample)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve embedding dimension: %w", err)
	}
	if len(vec) == 0 {
		return 0, ErrEmptyEmbedding
	}
	return len(vec), nil
}
