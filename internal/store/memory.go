package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/brbranch/promptchain/internal/model"
)

// MemoryStore はプロセス内で完結するStore実装（テスト・単発実行用）
type MemoryStore struct {
	mu          sync.RWMutex
	chunks      map[string]*chunkEntry // key: chunk.ID
	initialized bool
	namespace   string
}

type chunkEntry struct {
	chunk     *model.Chunk
	embedding []float32
}

// NewMemoryStore はMemoryStoreを作成する
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks: make(map[string]*chunkEntry),
	}
}

// Initialize はストアを初期化する
func (s *MemoryStore) Initialize(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.namespace = namespace
	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]*chunkEntry)
	s.initialized = false
	return nil
}

// AddChunks はチャンクを追加する
func (s *MemoryStore) AddChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}

	for i, c := range chunks {
		embeddingCopy := make([]float32, len(embeddings[i]))
		copy(embeddingCopy, embeddings[i])

		s.chunks[c.ID] = &chunkEntry{
			chunk:     copyChunk(c),
			embedding: embeddingCopy,
		}
	}

	return nil
}

// Get はIDでチャンクを取得する
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	entry, ok := s.chunks[id]
	if !ok {
		return nil, ErrNotFound
	}

	return copyChunk(entry.chunk), nil
}

// Search はベクトル検索を実行する
func (s *MemoryStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	var results []SearchResult
	for _, entry := range s.chunks {
		if entry.chunk.Collection != opts.Collection {
			continue
		}
		if opts.DocumentID != nil && entry.chunk.DocumentID != *opts.DocumentID {
			continue
		}

		results = append(results, SearchResult{
			Chunk: copyChunk(entry.chunk),
			Score: Score(embedding, entry.embedding),
		})
	}

	return rankResults(results, opts), nil
}

// ListDocuments はコレクション内のドキュメント一覧を取得する
func (s *MemoryStore) ListDocuments(ctx context.Context, opts ListOptions) ([]model.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	var chunks []*model.Chunk
	for _, entry := range s.chunks {
		if entry.chunk.Collection == opts.Collection {
			chunks = append(chunks, entry.chunk)
		}
	}

	return summarize(chunks, opts.Limit), nil
}

// DeleteDocument はドキュメントの全チャンクを削除する
func (s *MemoryStore) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	deleted := 0
	for id, entry := range s.chunks {
		if entry.chunk.Collection == collection && entry.chunk.DocumentID == documentID {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteStaleChunks はkeepにないチャンクだけを削除する
func (s *MemoryStore) DeleteStaleChunks(ctx context.Context, collection, documentID string, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	kept := idSet(keep)
	deleted := 0
	for id, entry := range s.chunks {
		if entry.chunk.Collection != collection || entry.chunk.DocumentID != documentID {
			continue
		}
		if _, ok := kept[id]; ok {
			continue
		}
		delete(s.chunks, id)
		deleted++
	}
	return deleted, nil
}

func copyChunk(c *model.Chunk) *model.Chunk {
	chunkCopy := *c

	if c.CreatedAt != nil {
		createdAt := *c.CreatedAt
		chunkCopy.CreatedAt = &createdAt
	}

	if c.Metadata != nil {
		// JSON経由でディープコピー
		b, _ := json.Marshal(c.Metadata)
		var metadata map[string]any
		json.Unmarshal(b, &metadata)
		chunkCopy.Metadata = metadata
	}

	return &chunkCopy
}
