package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/model"
)

const (
	// qdrantScrollPage はListDocumentsで1回に取得するポイント数
	qdrantScrollPage = 256
)

// sanitizeCollectionName はQdrantのコレクション名として使用できる文字列に変換する
// Qdrantは ":" などの特殊文字をコレクション名に使用できないため
func sanitizeCollectionName(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}

// QdrantStore はQdrantを使用したStore実装
// namespaceごとに1つのQdrantコレクションを持ち、論理コレクションはpayloadで区別する
type QdrantStore struct {
	client      *qdrant.Client
	url         string
	namespace   string
	vectorDim   uint64
	initialized bool
	mu          sync.RWMutex // initializedフラグの保護
}

// NewQdrantStore はQdrantStoreを作成する
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, ErrConnectionFailed
	}

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, ErrConnectionFailed
	}

	return &QdrantStore{
		client: client,
		url:    urlStr,
	}, nil
}

// parseQdrantURL はURLからgRPC接続先を取り出す（HTTPポート6333は6334に読み替える）
func parseQdrantURL(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Hostname() == "" {
		return "", 0, fmt.Errorf("failed to parse URL: missing host in %q", urlStr)
	}

	port := 6334
	if p, err := strconv.Atoi(parsedURL.Port()); err == nil && p != 6333 {
		port = p
	}
	return parsedURL.Hostname(), port, nil
}

// parseVectorDim はnamespaceのdim部分をベクトル次元数として使う
// コレクションのベクトル長は作成後に変えられないので、dimが分からない場合はエラーにする
func parseVectorDim(namespace string) (uint64, error) {
	ns, err := config.ParseNamespace(namespace)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidNamespace, err)
	}
	if ns.Dim <= 0 {
		return 0, fmt.Errorf("%w: dimension is unknown in %q", ErrInvalidNamespace, namespace)
	}
	return uint64(ns.Dim), nil
}

// Initialize はnamespace用のコレクションを作成する（冪等）
func (s *QdrantStore) Initialize(ctx context.Context, namespace string) error {
	vectorDim, err := parseVectorDim(namespace)
	if err != nil {
		return err
	}
	if s.client == nil {
		return ErrConnectionFailed
	}
	collectionName := sanitizeCollectionName(namespace)

	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorDim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	s.mu.Lock()
	s.namespace = namespace
	s.vectorDim = vectorDim
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// Close はストアをクローズする
func (s *QdrantStore) Close() error {
	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// isInitialized は初期化状態とコレクション名を安全に取得する
func (s *QdrantStore) isInitialized() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sanitizeCollectionName(s.namespace), s.initialized
}

// AddChunks はチャンクをポイントとしてupsertする
func (s *QdrantStore) AddChunks(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	collectionName, ok := s.isInitialized()
	if !ok {
		return ErrNotInitialized
	}
	if err := checkBatch(chunks, embeddings); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: buildPayload(c),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Get はIDでチャンクを取得する
func (s *QdrantStore) Get(ctx context.Context, id string) (*model.Chunk, error) {
	collectionName, ok := s.isInitialized()
	if !ok {
		return nil, ErrNotInitialized
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collectionName,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}

	if len(points) == 0 {
		return nil, ErrNotFound
	}

	return payloadToChunk(points[0].Payload), nil
}

// Search はベクトル検索を実行する
func (s *QdrantStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error) {
	collectionName, ok := s.isInitialized()
	if !ok {
		return nil, ErrNotInitialized
	}

	req := &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         buildFilter(opts.Collection, opts.DocumentID),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.TopK > 0 {
		req.Limit = qdrant.PtrOf(uint64(opts.TopK))
	}

	queryResp, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	results := make([]SearchResult, 0, len(queryResp))
	for _, point := range queryResp {
		results = append(results, SearchResult{
			Chunk: payloadToChunk(point.Payload),
			// Qdrantのcosineは-1〜1なので (score+1)/2
			Score: float64((point.Score + 1.0) / 2.0),
		})
	}

	return rankResults(results, opts), nil
}

// ListDocuments はコレクション内の全ポイントをスクロールしてドキュメント単位に集約する
func (s *QdrantStore) ListDocuments(ctx context.Context, opts ListOptions) ([]model.DocumentSummary, error) {
	collectionName, ok := s.isInitialized()
	if !ok {
		return nil, ErrNotInitialized
	}

	filter := buildFilter(opts.Collection, nil)

	var (
		chunks []*model.Chunk
		offset *qdrant.PointId
	)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collectionName,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(qdrantScrollPage)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, point := range points {
			chunks = append(chunks, payloadToChunk(point.Payload))
		}

		// Offsetは境界を含むので、次ページの先頭は最後のポイントの次から
		if len(points) < qdrantScrollPage {
			break
		}
		last := points[len(points)-1].Id
		if offset != nil && offset.String() == last.String() {
			break
		}
		offset = last
		chunks = chunks[:len(chunks)-1]
	}

	return summarize(chunks, opts.Limit), nil
}

// DeleteDocument はdocumentIdのpayloadフィルタでポイントを削除する
func (s *QdrantStore) DeleteDocument(ctx context.Context, collection, documentID string) (int, error) {
	collectionName, ok := s.isInitialized()
	if !ok {
		return 0, ErrNotInitialized
	}
	return s.deleteByFilter(ctx, collectionName, buildFilter(collection, &documentID))
}

// DeleteStaleChunks はkeepのIDを除外したフィルタで古いポイントを削除する
func (s *QdrantStore) DeleteStaleChunks(ctx context.Context, collection, documentID string, keep []string) (int, error) {
	collectionName, ok := s.isInitialized()
	if !ok {
		return 0, ErrNotInitialized
	}

	filter := buildFilter(collection, &documentID)
	if len(keep) > 0 {
		ids := make([]*qdrant.PointId, len(keep))
		for i, id := range keep {
			ids[i] = qdrant.NewID(id)
		}
		filter.MustNot = []*qdrant.Condition{qdrant.NewHasID(ids...)}
	}
	return s.deleteByFilter(ctx, collectionName, filter)
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, collectionName string, filter *qdrant.Filter) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete points: %w", err)
	}

	return int(count), nil
}

// buildFilter はcollection（必須）とdocumentId（任意）の一致条件を構築する
func buildFilter(collection string, documentID *string) *qdrant.Filter {
	conditions := []*qdrant.Condition{
		qdrant.NewMatch("collection", collection),
	}
	if documentID != nil {
		conditions = append(conditions, qdrant.NewMatch("documentId", *documentID))
	}
	return &qdrant.Filter{Must: conditions}
}

// buildPayload はChunkからQdrantのpayloadを構築する
func buildPayload(c *model.Chunk) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"id":         qdrant.NewValueString(c.ID),
		"collection": qdrant.NewValueString(c.Collection),
		"documentId": qdrant.NewValueString(c.DocumentID),
		"source":     qdrant.NewValueString(c.Source),
		"index":      qdrant.NewValueInt(int64(c.Index)),
		"text":       qdrant.NewValueString(c.Text),
	}

	if c.CreatedAt != nil {
		payload["createdAt"] = qdrant.NewValueString(*c.CreatedAt)
	}

	// metadataはJSON文字列で保持して型を保つ
	if c.Metadata != nil {
		if b, err := json.Marshal(c.Metadata); err == nil {
			payload["metadata"] = qdrant.NewValueString(string(b))
		}
	}

	return payload
}

// payloadToChunk はQdrantのpayloadからChunkを構築する
func payloadToChunk(payload map[string]*qdrant.Value) *model.Chunk {
	c := &model.Chunk{
		ID:         payload["id"].GetStringValue(),
		Collection: payload["collection"].GetStringValue(),
		DocumentID: payload["documentId"].GetStringValue(),
		Source:     payload["source"].GetStringValue(),
		Index:      int(payload["index"].GetIntegerValue()),
		Text:       payload["text"].GetStringValue(),
	}

	if v := payload["createdAt"].GetStringValue(); v != "" {
		c.CreatedAt = &v
	}
	if v := payload["metadata"].GetStringValue(); v != "" {
		json.Unmarshal([]byte(v), &c.Metadata)
	}

	return c
}
