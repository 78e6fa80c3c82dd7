package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/chain"
	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/embedder"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/loader"
	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/metrics"
	"github.com/brbranch/promptchain/internal/model"
	"github.com/brbranch/promptchain/internal/prompt"
	"github.com/brbranch/promptchain/internal/splitter"
	"github.com/brbranch/promptchain/internal/store"
)

// DefaultListLimit はドキュメント一覧のデフォルト件数
const DefaultListLimit = 20

// DocumentDeps はDocumentServiceの依存
type DocumentDeps struct {
	Loader    loader.Loader
	Splitter  *splitter.Splitter
	Embedder  embedder.Embedder
	Store     store.Store
	LLM       llm.LLM
	Manager   *config.Manager
	Namespace string
	Collector *metrics.Collector
	QAPrompt  *prompt.Template // nilなら設定の"qa"、それもなければ組み込み
}

// documentService はDocumentServiceの実装
type documentService struct {
	deps DocumentDeps
}

// NewDocumentService はDocumentServiceの新しいインスタンスを作成
func NewDocumentService(deps DocumentDeps) DocumentService {
	return &documentService{deps: deps}
}

// Ingest はソースを読み込み、分割・埋め込みしてストアに保存する
// 同じドキュメントの既存チャンクは置き換える
func (s *documentService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error) {
	collection, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if len(req.Sources) == 0 {
		return nil, ErrSourcesRequired
	}

	resp := &IngestResponse{
		Collection: collection,
		Namespace:  s.deps.Namespace,
		Documents:  []IngestedDocument{},
	}

	for _, source := range req.Sources {
		docs, err := s.deps.Loader.Load(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", source, err)
		}

		for _, doc := range docs {
			n, err := s.ingestDocument(ctx, collection, doc, req.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to ingest %s: %w", doc.Source, err)
			}
			resp.Documents = append(resp.Documents, IngestedDocument{
				DocumentID: doc.ID,
				Source:     doc.Source,
				Title:      doc.Title,
				ChunkCount: n,
			})
			resp.ChunkCount += n
		}
	}

	s.deps.Collector.ObserveIngest(len(resp.Documents), resp.ChunkCount)
	logger.Zlog.Info("documents ingested",
		zap.String("collection", collection),
		zap.Int("documents", len(resp.Documents)),
		zap.Int("chunks", resp.ChunkCount))

	return resp, nil
}

func (s *documentService) ingestDocument(ctx context.Context, collection string, doc *model.Document, metadata map[string]any) (int, error) {
	chunks, err := s.deps.Splitter.Split(ctx, collection, doc)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedAll(ctx, s.deps.Embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	kept := make([]*model.Chunk, 0, len(chunks))
	embeddings := make([][]float32, 0, len(chunks))
	for i, c := range chunks {
		if vectors[i] == nil {
			// 記号だけのチャンクなどはベクトルにならないので保存しない
			logger.Zlog.Debug("skip chunk without embedding", zap.String("chunkId", c.ID))
			continue
		}

		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
		kept = append(kept, c)
		embeddings = append(embeddings, vectors[i])
	}

	// 新しいチャンクを保存してから古いチャンクを消す
	// 保存に失敗しても以前の取り込み結果は残る
	keep := make([]string, len(kept))
	for i, c := range kept {
		keep[i] = c.ID
	}
	if len(kept) > 0 {
		if err := s.deps.Store.AddChunks(ctx, kept, embeddings); err != nil {
			return 0, err
		}
	}
	if _, err := s.deps.Store.DeleteStaleChunks(ctx, collection, doc.ID, keep); err != nil {
		return 0, fmt.Errorf("failed to remove stale chunks: %w", err)
	}
	return len(kept), nil
}

// Ask はコレクションを検索し、根拠チャンクを詰めたプロンプトで回答する
func (s *documentService) Ask(ctx context.Context, req *AskRequest) (resp *AskResponse, err error) {
	defer func() { s.deps.Collector.ObserveChain(chainRetrievalQA, err) }()

	collection, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrQuestionRequired
	}
	if err := validateTemperature(req.Temperature); err != nil {
		return nil, err
	}

	qa := s.qaConfig()
	temperature := qa.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	retriever := &chain.VectorRetriever{
		Embedder:   s.deps.Embedder,
		Store:      s.deps.Store,
		Collection: collection,
		TopK:       s.topK(req.TopK, qa.TopK),
		DocumentID: req.DocumentID,
	}
	qaPrompt := s.deps.QAPrompt
	if qaPrompt == nil {
		if qaPrompt, err = configuredPrompt(s.deps.Manager, prompt.NameQA); err != nil {
			return nil, err
		}
	}
	rqa, err := chain.NewRetrievalQA(retriever, s.deps.LLM, qaPrompt, llm.Options{
		Temperature: llm.Float64(temperature),
	})
	if err != nil {
		return nil, err
	}

	result, err := rqa.Call(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	return &AskResponse{
		Answer:  result.Answer,
		Sources: toSourceChunks(result.Sources),
	}, nil
}

// Search はクエリに近いチャンクを返す
func (s *documentService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	collection, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrQueryRequired
	}

	retriever := &chain.VectorRetriever{
		Embedder:   s.deps.Embedder,
		Store:      s.deps.Store,
		Collection: collection,
		TopK:       s.topK(req.TopK, s.qaConfig().TopK),
		DocumentID: req.DocumentID,
	}
	results, err := retriever.Retrieve(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Namespace: s.deps.Namespace,
		Results:   toSourceChunks(results),
	}, nil
}

// ListDocuments はコレクション内のドキュメントを新しい順に返す
func (s *documentService) ListDocuments(ctx context.Context, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	collection, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}

	limit := DefaultListLimit
	if req.Limit != nil && *req.Limit > 0 {
		limit = *req.Limit
	}

	docs, err := s.deps.Store.ListDocuments(ctx, store.ListOptions{
		Collection: collection,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.DocumentSummary{}
	}

	return &ListDocumentsResponse{Collection: collection, Documents: docs}, nil
}

// DeleteDocument はドキュメントの全チャンクを削除する
func (s *documentService) DeleteDocument(ctx context.Context, collection, documentID string) (*DeleteDocumentResponse, error) {
	collection, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if documentID == "" {
		return nil, ErrDocumentIDRequired
	}

	n, err := s.deps.Store.DeleteDocument(ctx, collection, documentID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	logger.Zlog.Info("document deleted",
		zap.String("collection", collection),
		zap.String("documentId", documentID),
		zap.Int("chunks", n))

	return &DeleteDocumentResponse{Deleted: n}, nil
}

// collection は未指定ならデフォルトを返し、名前を検証する
func (s *documentService) collection(name string) (string, error) {
	if name == "" {
		name = s.qaConfig().DefaultCollection
	}
	if err := model.ValidateCollection(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCollection, err)
	}
	return name, nil
}

func (s *documentService) qaConfig() model.QAConfig {
	qa := model.QAConfig{TopK: 4, DefaultCollection: model.DefaultCollection}
	if s.deps.Manager != nil {
		cfg := s.deps.Manager.GetConfig().QA
		if cfg.TopK > 0 {
			qa.TopK = cfg.TopK
		}
		if cfg.DefaultCollection != "" {
			qa.DefaultCollection = cfg.DefaultCollection
		}
		qa.Temperature = cfg.Temperature
	}
	return qa
}

func (s *documentService) topK(requested *int, fallback int) int {
	if requested != nil && *requested > 0 {
		return *requested
	}
	return fallback
}

func toSourceChunks(results []store.SearchResult) []SourceChunk {
	out := make([]SourceChunk, 0, len(results))
	for _, r := range results {
		out = append(out, SourceChunk{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Source:     r.Chunk.Source,
			Index:      r.Chunk.Index,
			Text:       r.Chunk.Text,
			Score:      r.Score,
			Metadata:   r.Chunk.Metadata,
		})
	}
	return out
}
