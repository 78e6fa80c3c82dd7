package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/model"
)

const (
	// chunkCountWarningThreshold は警告を出すチャンク件数の閾値
	chunkCountWarningThreshold = 20000
)

// SQLiteStore はSQLiteを使用したStore実装
type SQLiteStore struct {
	mu          sync.RWMutex
	db          *sql.DB
	dbPath      string
	namespace   string
	initialized bool
}

// NewSQLiteStore はSQLiteStoreを作成する
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WALモードを有効化
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Initialize はストアを初期化する
func (s *SQLiteStore) Initialize(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunksSQL := `
	CREATE TABLE IF NOT EXISTS chunks (
		namespace TEXT NOT NULL,
		id TEXT NOT NULL,
		collection TEXT NOT NULL,
		document_id TEXT NOT NULL,
		source TEXT NOT NULL,
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT,
		created_at TEXT,
		embedding BLOB,
		PRIMARY KEY (namespace, id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(namespace, collection);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(namespace, collection, document_id);
	`

	if _, err := s.db.ExecContext(ctx, chunksSQL); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	s.namespace = namespace
	s.initialized = true
	return nil
}

// Close はストアをクローズする
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AddChunks はチャンクを1トランザクションで追加する
func (s *SQLiteStore) AddChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (namespace, id, collection, document_id, source, idx, text, metadata, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		var metadataJSON []byte
		if c.Metadata != nil {
			metadataJSON, err = json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}
		}

		if _, err := stmt.ExecContext(ctx, s.namespace, c.ID, c.Collection, c.DocumentID, c.Source,
			c.Index, c.Text, metadataJSON, c.CreatedAt, encodeEmbedding(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	// 件数チェックと警告
	count, _ := s.countChunks(ctx)
	if count >= chunkCountWarningThreshold {
		logger.Zlog.Warn("chunk count exceeded threshold",
			zap.Int("count", count),
			zap.Int("threshold", chunkCountWarningThreshold),
			zap.String("recommendation", "consider using the qdrant store for better performance"))
	}

	return nil
}

// Get はIDでチャンクを取得する
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection, document_id, source, idx, text, metadata, created_at, embedding
		FROM chunks
		WHERE namespace = ? AND id = ?
	`, s.namespace, id)

	chunk, _, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	return chunk, nil
}

// Search はベクトル検索を実行する（コレクション内を全件スキャン）
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT id, collection, document_id, source, idx, text, metadata, created_at, embedding
		FROM chunks
		WHERE namespace = ? AND collection = ?`
	args := []any{s.namespace, opts.Collection}
	if opts.DocumentID != nil {
		query += ` AND document_id = ?`
		args = append(args, *opts.DocumentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		chunk, chunkEmbedding, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		results = append(results, SearchResult{
			Chunk: chunk,
			Score: Score(embedding, chunkEmbedding),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rankResults(results, opts), nil
}

// ListDocuments はコレクション内のドキュメント一覧を取得する
func (s *SQLiteStore) ListDocuments(ctx context.Context, opts ListOptions) ([]model.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, MIN(source), COUNT(*), MAX(created_at)
		FROM chunks
		WHERE namespace = ? AND collection = ?
		GROUP BY document_id
	`, s.namespace, opts.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var summaries []model.DocumentSummary
	for rows.Next() {
		var (
			summary   model.DocumentSummary
			createdAt sql.NullString
		)
		if err := rows.Scan(&summary.DocumentID, &summary.Source, &summary.ChunkCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		summary.Collection = opts.Collection
		if createdAt.Valid {
			summary.CreatedAt = &createdAt.String
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sortSummaries(summaries)
	if opts.Limit > 0 && len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}

	return summaries, nil
}

// DeleteDocument はドキュメントの全チャンクを削除する
func (s *SQLiteStore) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM chunks WHERE namespace = ? AND collection = ? AND document_id = ?
	`, s.namespace, collection, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// DeleteStaleChunks はkeepにないチャンクを1トランザクションで削除する
func (s *SQLiteStore) DeleteStaleChunks(ctx context.Context, collection, documentID string, keep []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, ErrNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM chunks WHERE namespace = ? AND collection = ? AND document_id = ?
	`, s.namespace, collection, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to query chunks: %w", err)
	}
	kept := idSet(keep)
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		if _, ok := kept[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate chunks: %w", err)
	}
	rows.Close()

	if len(stale) == 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE namespace = ? AND id = ?`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range stale {
		if _, err := stmt.ExecContext(ctx, s.namespace, id); err != nil {
			return 0, fmt.Errorf("failed to delete chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return len(stale), nil
}

func (s *SQLiteStore) countChunks(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks WHERE namespace = ?
	`, s.namespace).Scan(&count)
	return count, err
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*model.Chunk, []float32, error) {
	var (
		chunk         model.Chunk
		metadataJSON  sql.NullString
		createdAt     sql.NullString
		embeddingBlob []byte
	)

	if err := row.Scan(&chunk.ID, &chunk.Collection, &chunk.DocumentID, &chunk.Source, &chunk.Index,
		&chunk.Text, &metadataJSON, &createdAt, &embeddingBlob); err != nil {
		return nil, nil, err
	}

	if createdAt.Valid {
		chunk.CreatedAt = &createdAt.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata)
	}

	return &chunk, decodeEmbedding(embeddingBlob), nil
}

// encodeEmbedding はfloat32配列をリトルエンディアンのバイト配列に変換する
func encodeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding はバイト配列をfloat32配列に変換する
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
