package jsonrpc

import (
	"encoding/json"

	"github.com/brbranch/promptchain/internal/service"
)

// PromptParams はプロンプト指定（nameかtemplateのどちらか）
type PromptParams struct {
	Name             *string           `json:"name"`
	Template         *string           `json:"template"`
	InputVariables   []string          `json:"inputVariables"`
	PartialVariables map[string]string `json:"partialVariables"`
	Format           string            `json:"format"`
}

// ToSpec はサービスのPromptSpecに変換
func (p *PromptParams) ToSpec() service.PromptSpec {
	return service.PromptSpec{
		Name:             p.Name,
		Template:         p.Template,
		InputVariables:   p.InputVariables,
		PartialVariables: p.PartialVariables,
		Format:           p.Format,
	}
}

// PromptFormatParams は prompt.format のパラメータ
type PromptFormatParams struct {
	PromptParams
	Values map[string]any `json:"values"`
}

// ToRequest はサービスリクエストに変換
func (p *PromptFormatParams) ToRequest() *service.FormatPromptRequest {
	return &service.FormatPromptRequest{
		Prompt: p.ToSpec(),
		Values: p.Values,
	}
}

// ChainRunParams は chain.run のパラメータ
type ChainRunParams struct {
	PromptParams
	Values      map[string]any `json:"values"`
	Temperature *float64       `json:"temperature"`
	MaxTokens   *int           `json:"maxTokens"`
}

// ToRequest はサービスリクエストに変換
func (p *ChainRunParams) ToRequest() *service.RunChainRequest {
	return &service.RunChainRequest{
		Prompt:      p.ToSpec(),
		Values:      p.Values,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// ChainSequenceParams は chain.sequence のパラメータ
type ChainSequenceParams struct {
	Steps       []PromptParams `json:"steps"`
	Input       string         `json:"input"`
	Temperature *float64       `json:"temperature"`
}

// ToRequest はサービスリクエストに変換
func (p *ChainSequenceParams) ToRequest() *service.RunSequenceRequest {
	steps := make([]service.PromptSpec, len(p.Steps))
	for i := range p.Steps {
		steps[i] = p.Steps[i].ToSpec()
	}
	return &service.RunSequenceRequest{
		Steps:       steps,
		Input:       p.Input,
		Temperature: p.Temperature,
	}
}

// DocsIngestParams は docs.ingest のパラメータ
type DocsIngestParams struct {
	Collection string         `json:"collection"`
	Sources    []string       `json:"sources"`
	Metadata   map[string]any `json:"metadata"`
}

// ToRequest はサービスリクエストに変換
func (p *DocsIngestParams) ToRequest() *service.IngestRequest {
	return &service.IngestRequest{
		Collection: p.Collection,
		Sources:    p.Sources,
		Metadata:   p.Metadata,
	}
}

// DocsAskParams は docs.ask のパラメータ
type DocsAskParams struct {
	Collection  string   `json:"collection"`
	Question    string   `json:"question"`
	TopK        *int     `json:"topK"`
	DocumentID  *string  `json:"documentId"`
	Temperature *float64 `json:"temperature"`
}

// ToRequest はサービスリクエストに変換
func (p *DocsAskParams) ToRequest() *service.AskRequest {
	return &service.AskRequest{
		Collection:  p.Collection,
		Question:    p.Question,
		TopK:        p.TopK,
		DocumentID:  p.DocumentID,
		Temperature: p.Temperature,
	}
}

// DocsSearchParams は docs.search のパラメータ
type DocsSearchParams struct {
	Collection string  `json:"collection"`
	Query      string  `json:"query"`
	TopK       *int    `json:"topK"`
	DocumentID *string `json:"documentId"`
}

// ToRequest はサービスリクエストに変換
func (p *DocsSearchParams) ToRequest() *service.SearchRequest {
	return &service.SearchRequest{
		Collection: p.Collection,
		Query:      p.Query,
		TopK:       p.TopK,
		DocumentID: p.DocumentID,
	}
}

// DocsListParams は docs.list のパラメータ
type DocsListParams struct {
	Collection string `json:"collection"`
	Limit      *int   `json:"limit"`
}

// DocsDeleteParams は docs.delete のパラメータ
type DocsDeleteParams struct {
	Collection string `json:"collection"`
	DocumentID string `json:"documentId"`
}

// ChatSendParams は chat.send のパラメータ
type ChatSendParams struct {
	SessionID *string `json:"sessionId"`
	Message   string  `json:"message"`
}

// ChatClearParams は chat.clear のパラメータ
type ChatClearParams struct {
	SessionID string `json:"sessionId"`
}

// SetConfigParams は config.set のパラメータ
type SetConfigParams struct {
	Embedder *EmbedderPatchParams `json:"embedder"`
	LLM      *LLMPatchParams      `json:"llm"`
}

// EmbedderPatchParams はembedder設定のパッチ
type EmbedderPatchParams struct {
	Provider *string `json:"provider"`
	Model    *string `json:"model"`
	BaseURL  *string `json:"baseUrl"`
	APIKey   *string `json:"apiKey"`
}

// LLMPatchParams はllm設定のパッチ
type LLMPatchParams struct {
	Provider    *string  `json:"provider"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// ToRequest はサービスリクエストに変換
func (p *SetConfigParams) ToRequest() *service.SetConfigRequest {
	req := &service.SetConfigRequest{}
	if p.Embedder != nil {
		req.Embedder = &service.EmbedderPatch{
			Provider: p.Embedder.Provider,
			Model:    p.Embedder.Model,
			BaseURL:  p.Embedder.BaseURL,
			APIKey:   p.Embedder.APIKey,
		}
	}
	if p.LLM != nil {
		req.LLM = &service.LLMPatch{
			Provider:    p.LLM.Provider,
			Model:       p.LLM.Model,
			Temperature: p.LLM.Temperature,
		}
	}
	return req
}

// mapParams はanyをターゲット構造体にマッピング
func mapParams(params any, target any) error {
	if params == nil {
		return nil
	}

	// anyをJSONに変換してから構造体にアンマーシャル
	b, err := json.Marshal(params)
	if err != nil {
		return &invalidParamsError{err: err}
	}
	if err := json.Unmarshal(b, target); err != nil {
		return &invalidParamsError{err: err}
	}
	return nil
}
