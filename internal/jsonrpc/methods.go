package jsonrpc

import (
	"context"

	"github.com/brbranch/promptchain/internal/service"
)

// handlePromptList は prompt.list を処理
func (h *Handler) handlePromptList(ctx context.Context) (any, error) {
	resp, err := h.services.Prompt.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}

	prompts := make([]map[string]any, len(resp.Prompts))
	for i, p := range resp.Prompts {
		prompts[i] = map[string]any{
			"name":             p.Name,
			"template":         p.Template,
			"inputVariables":   p.InputVariables,
			"partialVariables": p.PartialVariables,
			"format":           p.Format,
			"builtin":          p.Builtin,
		}
	}

	return map[string]any{"prompts": prompts}, nil
}

// handlePromptFormat は prompt.format を処理
func (h *Handler) handlePromptFormat(ctx context.Context, params any) (any, error) {
	var p PromptFormatParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Prompt.FormatPrompt(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"text":           resp.Text,
		"inputVariables": resp.InputVariables,
	}, nil
}

// handleChainRun は chain.run を処理
func (h *Handler) handleChainRun(ctx context.Context, params any) (any, error) {
	var p ChainRunParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Chain.RunChain(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"prompt":   resp.Prompt,
		"output":   resp.Output,
		"provider": resp.Provider,
		"model":    resp.Model,
		"usage":    resp.Usage,
	}, nil
}

// handleChainSequence は chain.sequence を処理
func (h *Handler) handleChainSequence(ctx context.Context, params any) (any, error) {
	var p ChainSequenceParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Chain.RunSequence(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"output": resp.Output,
		"steps":  resp.Steps,
	}, nil
}

// handleDocsIngest は docs.ingest を処理
func (h *Handler) handleDocsIngest(ctx context.Context, params any) (any, error) {
	var p DocsIngestParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Document.Ingest(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, len(resp.Documents))
	for i, d := range resp.Documents {
		docs[i] = map[string]any{
			"documentId": d.DocumentID,
			"source":     d.Source,
			"title":      d.Title,
			"chunkCount": d.ChunkCount,
		}
	}

	return map[string]any{
		"collection": resp.Collection,
		"namespace":  resp.Namespace,
		"documents":  docs,
		"chunkCount": resp.ChunkCount,
	}, nil
}

// handleDocsAsk は docs.ask を処理
func (h *Handler) handleDocsAsk(ctx context.Context, params any) (any, error) {
	var p DocsAskParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Document.Ask(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"answer":  resp.Answer,
		"sources": sourceMaps(resp.Sources),
	}, nil
}

// handleDocsSearch は docs.search を処理
func (h *Handler) handleDocsSearch(ctx context.Context, params any) (any, error) {
	var p DocsSearchParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Document.Search(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"namespace": resp.Namespace,
		"results":   sourceMaps(resp.Results),
	}, nil
}

// handleDocsList は docs.list を処理
func (h *Handler) handleDocsList(ctx context.Context, params any) (any, error) {
	var p DocsListParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Document.ListDocuments(ctx, &service.ListDocumentsRequest{
		Collection: p.Collection,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"collection": resp.Collection,
		"documents":  resp.Documents,
	}, nil
}

// handleDocsDelete は docs.delete を処理
func (h *Handler) handleDocsDelete(ctx context.Context, params any) (any, error) {
	var p DocsDeleteParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Document.DeleteDocument(ctx, p.Collection, p.DocumentID)
	if err != nil {
		return nil, err
	}

	return map[string]any{"deleted": resp.Deleted}, nil
}

// handleChatSend は chat.send を処理
func (h *Handler) handleChatSend(ctx context.Context, params any) (any, error) {
	var p ChatSendParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Conversation.Chat(ctx, &service.ChatRequest{
		SessionID: p.SessionID,
		Message:   p.Message,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"sessionId": resp.SessionID,
		"reply":     resp.Reply,
		"turns":     resp.Turns,
	}, nil
}

// handleChatClear は chat.clear を処理
func (h *Handler) handleChatClear(ctx context.Context, params any) (any, error) {
	var p ChatClearParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Conversation.ClearSession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	return map[string]any{"cleared": resp.Cleared}, nil
}

// handleGetConfig は config.get を処理
func (h *Handler) handleGetConfig(ctx context.Context) (any, error) {
	resp, err := h.services.Config.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"transportDefaults": resp.TransportDefaults,
		"llm":               resp.LLM,
		"embedder":          resp.Embedder,
		"store":             resp.Store,
		"splitter":          resp.Splitter,
		"qa":                resp.QA,
		"memory":            resp.Memory,
		"paths":             resp.Paths,
	}, nil
}

// handleSetConfig は config.set を処理
func (h *Handler) handleSetConfig(ctx context.Context, params any) (any, error) {
	var p SetConfigParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	resp, err := h.services.Config.SetConfig(ctx, p.ToRequest())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"ok":                 resp.OK,
		"effectiveNamespace": resp.EffectiveNamespace,
	}, nil
}

func sourceMaps(sources []service.SourceChunk) []map[string]any {
	out := make([]map[string]any, len(sources))
	for i, s := range sources {
		out[i] = map[string]any{
			"chunkId":    s.ChunkID,
			"documentId": s.DocumentID,
			"source":     s.Source,
			"index":      s.Index,
			"text":       s.Text,
			"score":      s.Score,
			"metadata":   s.Metadata,
		}
	}
	return out
}
