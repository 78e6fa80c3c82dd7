package service

import (
	"context"
	"errors"
)

// PromptService は名前付きプロンプトの一覧と整形を提供
type PromptService interface {
	ListPrompts(ctx context.Context) (*ListPromptsResponse, error)
	FormatPrompt(ctx context.Context, req *FormatPromptRequest) (*FormatPromptResponse, error)
}

// ChainService はLLMChainとSequentialChainの実行を提供
type ChainService interface {
	RunChain(ctx context.Context, req *RunChainRequest) (*RunChainResponse, error)
	RunSequence(ctx context.Context, req *RunSequenceRequest) (*RunSequenceResponse, error)
}

// DocumentService はドキュメントの取り込み・検索・QAを提供
type DocumentService interface {
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResponse, error)
	Ask(ctx context.Context, req *AskRequest) (*AskResponse, error)
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
	ListDocuments(ctx context.Context, req *ListDocumentsRequest) (*ListDocumentsResponse, error)
	DeleteDocument(ctx context.Context, collection, documentID string) (*DeleteDocumentResponse, error)
}

// ConversationService はメモリ付きの会話を提供
type ConversationService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	ClearSession(ctx context.Context, sessionID string) (*ClearSessionResponse, error)
}

// ConfigService は設定の取得・変更を提供
type ConfigService interface {
	GetConfig(ctx context.Context) (*GetConfigResponse, error)
	SetConfig(ctx context.Context, req *SetConfigRequest) (*SetConfigResponse, error)
}

// エラー定義
var (
	ErrPromptSourceRequired = errors.New("exactly one of name or template is required")
	ErrPromptNotFound       = errors.New("prompt not found")
	ErrInvalidCollection    = errors.New("collection contains invalid characters")
	ErrSourcesRequired      = errors.New("sources are required")
	ErrQuestionRequired     = errors.New("question is required")
	ErrQueryRequired        = errors.New("query is required")
	ErrMessageRequired      = errors.New("message is required")
	ErrDocumentIDRequired   = errors.New("documentId is required")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrSessionIDRequired    = errors.New("sessionId is required")
	ErrStepsRequired        = errors.New("steps are required")
	ErrInvalidTemperature   = errors.New("temperature must be between 0 and 2")
)
