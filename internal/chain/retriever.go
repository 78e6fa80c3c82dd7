package chain

import (
	"context"
	"fmt"

	"github.com/brbranch/promptchain/internal/embedder"
	"github.com/brbranch/promptchain/internal/store"
)

// Retriever はクエリに関連するチャンクを返す
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]store.SearchResult, error)
}

// VectorRetriever はクエリを埋め込んでベクトルストアを検索する
type VectorRetriever struct {
	Embedder   embedder.Embedder
	Store      store.Store
	Collection string
	TopK       int
	DocumentID *string
	MinScore   float64
}

// Retrieve はクエリを埋め込みに変換し、上位TopK件を返す
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]store.SearchResult, error) {
	if r.Embedder == nil || r.Store == nil {
		return nil, ErrNilComponent
	}

	embedding, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.Store.Search(ctx, embedding, store.SearchOptions{
		Collection: r.Collection,
		DocumentID: r.DocumentID,
		TopK:       r.TopK,
		MinScore:   r.MinScore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search store: %w", err)
	}

	return results, nil
}
