package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brbranch/promptchain/internal/model"
)

// ServerName はMCPのserverInfoに返す名前
const ServerName = "promptchain"

// ServerVersion はサーバーのバージョン（ビルド時に -ldflags で上書き可能）
var ServerVersion = "0.1.0"

// toolNameToMethod はMCPツール名と内部メソッドの対応
var toolNameToMethod = map[string]string{
	"prompt_format": "prompt.format",
	"chain_run":     "chain.run",
	"docs_ingest":   "docs.ingest",
	"docs_ask":      "docs.ask",
	"docs_search":   "docs.search",
	"docs_list":     "docs.list",
	"docs_delete":   "docs.delete",
	"chat_send":     "chat.send",
}

// handleInitialize は initialize メソッドを処理
func (h *Handler) handleInitialize(ctx context.Context, params any) (any, error) {
	// クライアントのバージョンは問わない
	var p model.InitializeParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	return &model.InitializeResult{
		ProtocolVersion: model.MCPProtocolVersion,
		ServerInfo: model.ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Capabilities: model.Capabilities{
			Tools: &model.ToolsCapability{},
		},
	}, nil
}

// handleToolsList は tools/list メソッドを処理
func (h *Handler) handleToolsList(ctx context.Context, params any) (any, error) {
	return &model.ToolsListResult{Tools: mcpTools}, nil
}

// handleToolsCall は tools/call メソッドを処理
// ツールの失敗はJSON-RPCエラーにせず、isErrorつきの結果として返す
func (h *Handler) handleToolsCall(ctx context.Context, params any) (any, error) {
	var p model.ToolsCallParams
	if err := mapParams(params, &p); err != nil {
		return nil, err
	}

	if p.Name == "" {
		return model.NewToolError("Error: tool name is required"), nil
	}

	method, ok := toolNameToMethod[p.Name]
	if !ok {
		return model.NewToolError(fmt.Sprintf("Tool not found: %s", p.Name)), nil
	}

	var args any
	if p.Arguments != nil {
		args = p.Arguments
	}
	result, err := h.dispatchInternal(ctx, method, args)
	if err != nil {
		return model.NewToolError(fmt.Sprintf("Error: %s", err.Error())), nil
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return model.NewToolError(fmt.Sprintf("Error serializing result: %s", err.Error())), nil
	}

	return model.NewToolResult(string(resultJSON)), nil
}

var (
	stringSchema = model.JSONSchema{Type: "string"}
	valuesSchema = model.JSONSchema{
		Type:        "object",
		Description: "Values for the prompt's input variables",
	}
	collectionSchema = model.JSONSchema{
		Type:        "string",
		Description: "Collection name (^[a-zA-Z0-9_-]+$). Defaults to the configured collection",
	}
	topKSchema = model.JSONSchema{Type: "integer", Description: "Number of chunks to retrieve"}
)

// promptProperties はname/template指定の共通プロパティを返す
func promptProperties() map[string]model.JSONSchema {
	return map[string]model.JSONSchema{
		"name":     {Type: "string", Description: "Name of a configured or builtin prompt"},
		"template": {Type: "string", Description: "Inline template using {variable} placeholders"},
		"partialVariables": {
			Type:                 "object",
			Description:          "Variables to pre-fill",
			AdditionalProperties: &stringSchema,
		},
		"format": {Type: "string", Enum: []string{"fstring", "jinja2"}, Default: "fstring"},
		"values": valuesSchema,
	}
}

// mcpTools はtools/listで公開するツール
var mcpTools = []model.Tool{
	{
		Name:        "prompt_format",
		Description: "Render a prompt template with values without calling the model",
		InputSchema: model.JSONSchema{Type: "object", Properties: promptProperties()},
	},
	{
		Name:        "chain_run",
		Description: "Render a prompt and send it to the configured language model",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: func() map[string]model.JSONSchema {
				props := promptProperties()
				props["temperature"] = model.JSONSchema{Type: "number", Description: "Sampling temperature (0-2)"}
				props["maxTokens"] = model.JSONSchema{Type: "integer"}
				return props
			}(),
		},
	},
	{
		Name:        "docs_ingest",
		Description: "Load files, directories or URLs, split them into chunks and store their embeddings",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"collection": collectionSchema,
				"sources":    {Type: "array", Items: &stringSchema, Description: "Paths or http(s) URLs"},
				"metadata":   {Type: "object", Description: "Metadata attached to every chunk"},
			},
			Required: []string{"sources"},
		},
	},
	{
		Name:        "docs_ask",
		Description: "Answer a question using the most relevant chunks of a collection",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"collection":  collectionSchema,
				"question":    stringSchema,
				"topK":        topKSchema,
				"documentId":  {Type: "string", Description: "Restrict retrieval to one document"},
				"temperature": {Type: "number"},
			},
			Required: []string{"question"},
		},
	},
	{
		Name:        "docs_search",
		Description: "Find the chunks most similar to a query",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"collection": collectionSchema,
				"query":      stringSchema,
				"topK":       topKSchema,
				"documentId": {Type: "string"},
			},
			Required: []string{"query"},
		},
	},
	{
		Name:        "docs_list",
		Description: "List ingested documents, newest first",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"collection": collectionSchema,
				"limit":      {Type: "integer", Default: 20},
			},
		},
	},
	{
		Name:        "docs_delete",
		Description: "Delete every chunk of a document",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"collection": collectionSchema,
				"documentId": stringSchema,
			},
			Required: []string{"documentId"},
		},
	},
	{
		Name:        "chat_send",
		Description: "Send a message in a conversation that remembers previous turns",
		InputSchema: model.JSONSchema{
			Type: "object",
			Properties: map[string]model.JSONSchema{
				"sessionId": {Type: "string", Description: "Omit to start a new session"},
				"message":   stringSchema,
			},
			Required: []string{"message"},
		},
	},
}
