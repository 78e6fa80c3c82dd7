package service

import (
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/model"
)

// PromptSpec はプロンプトの指定（NameかTemplateのどちらか一方）
type PromptSpec struct {
	Name             *string
	Template         *string
	InputVariables   []string          // 空ならテンプレートから推論
	PartialVariables map[string]string // 名前付きプロンプトにも上書き適用
	Format           string            // fstring | jinja2
}

// PromptInfo はプロンプト一覧の1件
type PromptInfo struct {
	Name             string
	Template         string
	InputVariables   []string
	PartialVariables map[string]string
	Format           string
	Builtin          bool
}

// ListPromptsResponse はプロンプト一覧レスポンス
type ListPromptsResponse struct {
	Prompts []PromptInfo
}

// FormatPromptRequest はプロンプト整形リクエスト
type FormatPromptRequest struct {
	Prompt PromptSpec
	Values map[string]any
}

// FormatPromptResponse はプロンプト整形レスポンス
type FormatPromptResponse struct {
	Text           string
	InputVariables []string
}

// RunChainRequest はLLMChain実行リクエスト
type RunChainRequest struct {
	Prompt      PromptSpec
	Values      map[string]any
	Temperature *float64 // nilなら設定値
	MaxTokens   *int
}

// RunChainResponse はLLMChain実行レスポンス
type RunChainResponse struct {
	Prompt   string // 整形済みプロンプト
	Output   string
	Provider string
	Model    string
	Usage    llm.Usage
}

// RunSequenceRequest はSequentialChain実行リクエスト
type RunSequenceRequest struct {
	Steps       []PromptSpec
	Input       string
	Temperature *float64
}

// RunSequenceResponse はSequentialChain実行レスポンス
type RunSequenceResponse struct {
	Output string
	Steps  []string
}

// IngestRequest はドキュメント取り込みリクエスト
type IngestRequest struct {
	Collection string   // 空なら設定のdefaultCollection
	Sources    []string // ファイル・ディレクトリ・URL
	Metadata   map[string]any
}

// IngestResponse はドキュメント取り込みレスポンス
type IngestResponse struct {
	Collection string
	Namespace  string
	Documents  []IngestedDocument
	ChunkCount int
}

// IngestedDocument は取り込んだドキュメント1件
type IngestedDocument struct {
	DocumentID string
	Source     string
	Title      *string
	ChunkCount int
}

// AskRequest はドキュメントQAリクエスト
type AskRequest struct {
	Collection  string
	Question    string
	TopK        *int // default: qa.topK
	DocumentID  *string
	Temperature *float64 // default: qa.temperature
}

// AskResponse はドキュメントQAレスポンス
type AskResponse struct {
	Answer  string
	Sources []SourceChunk
}

// SourceChunk は回答・検索の根拠チャンク
type SourceChunk struct {
	ChunkID    string
	DocumentID string
	Source     string
	Index      int
	Text       string
	Score      float64
	Metadata   map[string]any
}

// SearchRequest は類似チャンク検索リクエスト
type SearchRequest struct {
	Collection string
	Query      string
	TopK       *int
	DocumentID *string
}

// SearchResponse は類似チャンク検索レスポンス
type SearchResponse struct {
	Namespace string
	Results   []SourceChunk
}

// ListDocumentsRequest はドキュメント一覧リクエスト
type ListDocumentsRequest struct {
	Collection string
	Limit      *int // default 20
}

// ListDocumentsResponse はドキュメント一覧レスポンス
type ListDocumentsResponse struct {
	Collection string
	Documents  []model.DocumentSummary
}

// DeleteDocumentResponse はドキュメント削除レスポンス
type DeleteDocumentResponse struct {
	Deleted int
}

// ChatRequest は会話リクエスト
type ChatRequest struct {
	SessionID *string // nilなら新規セッション
	Message   string
}

// ChatResponse は会話レスポンス
type ChatResponse struct {
	SessionID string
	Reply     string
	Turns     int
}

// ClearSessionResponse はセッション削除レスポンス
type ClearSessionResponse struct {
	Cleared bool
}

// GetConfigResponse は設定取得レスポンス（APIキーは含めない）
type GetConfigResponse struct {
	TransportDefaults model.TransportDefaults
	LLM               model.LLMConfig
	Embedder          model.EmbedderConfig
	Store             model.StoreConfig
	Splitter          model.SplitterConfig
	QA                model.QAConfig
	Memory            model.MemoryConfig
	Paths             model.PathsConfig
}

// SetConfigRequest は設定変更リクエスト
type SetConfigRequest struct {
	Embedder *EmbedderPatch
	LLM      *LLMPatch
}

// EmbedderPatch はEmbedder設定パッチ
type EmbedderPatch struct {
	Provider *string
	Model    *string
	BaseURL  *string
	APIKey   *string
}

// LLMPatch はLLM設定パッチ
type LLMPatch struct {
	Provider    *string
	Model       *string
	Temperature *float64
}

// SetConfigResponse は設定変更レスポンス
// 変更は保存されるが、稼働中のプロバイダーには再起動後に反映される
type SetConfigResponse struct {
	OK                 bool
	EffectiveNamespace string
}
