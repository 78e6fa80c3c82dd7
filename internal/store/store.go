// Package store provides vector storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/brbranch/promptchain/internal/model"
)

// Store はチャンクを保存するベクトルストアの抽象インターフェース
// 1つのStoreは1つのnamespace（埋め込み空間）だけを扱う
type Store interface {
	// AddChunks はチャンクと埋め込みを同じ順序で保存する（同一IDは上書き）
	AddChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error
	Get(ctx context.Context, id string) (*model.Chunk, error)

	// ベクトル検索（スコア降順）
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error)

	// コレクション内のドキュメント一覧（createdAt降順）
	ListDocuments(ctx context.Context, opts ListOptions) ([]model.DocumentSummary, error)
	// DeleteDocument はドキュメントの全チャンクを削除し、削除件数を返す
	DeleteDocument(ctx context.Context, collection, documentID string) (int, error)
	// DeleteStaleChunks はドキュメントのチャンクのうちkeepに含まれないものを削除する
	// 再取り込みで新しいチャンクを保存した後に、残った古いチャンクを消すために使う
	DeleteStaleChunks(ctx context.Context, collection, documentID string, keep []string) (int, error)

	Initialize(ctx context.Context, namespace string) error
	Close() error
}

var (
	ErrNotFound         = errors.New("resource not found")
	ErrNotInitialized   = errors.New("store not initialized")
	ErrConnectionFailed = errors.New("failed to connect to store")
	ErrLengthMismatch   = errors.New("chunks and embeddings length mismatch")
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// SearchOptions は検索条件
// Collectionは必須。DocumentIDがnilなら全ドキュメント、MinScoreが0ならスコアで絞らない
type SearchOptions struct {
	Collection string
	DocumentID *string
	TopK       int
	MinScore   float64
}

// DefaultSearchOptions はdefaultコレクションから4件
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Collection: model.DefaultCollection, TopK: 4}
}

// ListOptions はドキュメント一覧の条件（Limitが0以下なら全件）
type ListOptions struct {
	Collection string
	Limit      int
}

func DefaultListOptions() ListOptions {
	return ListOptions{Collection: model.DefaultCollection, Limit: 20}
}

// SearchResult はチャンクと0-1に正規化した類似度（1が最も近い）
type SearchResult struct {
	Chunk *model.Chunk `json:"chunk"`
	Score float64      `json:"score"`
}
