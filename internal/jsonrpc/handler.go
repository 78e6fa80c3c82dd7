// Package jsonrpc implements JSON-RPC 2.0 and MCP handlers for promptchain.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/brbranch/promptchain/internal/service"
	"github.com/brbranch/promptchain/internal/store"
)

// Services はHandlerが呼び出すサービス群
type Services struct {
	Prompt       service.PromptService
	Chain        service.ChainService
	Document     service.DocumentService
	Conversation service.ConversationService
	Config       service.ConfigService
}

// Handler はJSON-RPCリクエストを処理する
type Handler struct {
	services  Services
	collector *metrics.Collector
}

// New は新しいHandlerを生成（collectorはnil可）
func New(services Services, collector *metrics.Collector) *Handler {
	return &Handler{
		services:  services,
		collector: collector,
	}
}

// Handle はJSON-RPCリクエストをパースしてディスパッチ
// 戻り値は *model.Response または *model.ErrorResponse のJSON bytes
// 通知（idなし）の場合はnilを返す
func (h *Handler) Handle(ctx context.Context, requestBytes []byte) []byte {
	var req model.Request
	if err := json.Unmarshal(requestBytes, &req); err != nil {
		return h.encode(model.NewParseError(err.Error()))
	}

	if req.JSONRPC != model.Version {
		return h.encode(model.NewInvalidRequest(req.ID, "jsonrpc must be 2.0"))
	}
	if req.Method == "" {
		return h.encode(model.NewInvalidRequest(req.ID, "method is required"))
	}

	if req.IsNotification() {
		h.notify(ctx, req.Method, req.Params)
		return nil
	}

	result, err := h.dispatch(ctx, req.Method, req.Params)
	h.collector.ObserveRPC(req.Method, err == nil)
	if err != nil {
		rpcErr := h.mapError(req.ID, err)
		if rpcErr.Error.Code == model.ErrCodeInternalError {
			logger.Zlog.Error("rpc failed", zap.String("method", req.Method), zap.Error(err))
		}
		return h.encode(rpcErr)
	}

	return h.encode(model.NewResponse(req.ID, result))
}

// notify は通知を処理する（応答は返さない）
func (h *Handler) notify(ctx context.Context, method string, params any) {
	if strings.HasPrefix(method, "notifications/") {
		logger.Zlog.Debug("notification received", zap.String("method", method))
		return
	}

	_, err := h.dispatch(ctx, method, params)
	h.collector.ObserveRPC(method, err == nil)
	if err != nil {
		logger.Zlog.Warn("notification failed", zap.String("method", method), zap.Error(err))
	}
}

// dispatch はメソッドに応じて適切なハンドラーを呼び出す
func (h *Handler) dispatch(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case "initialize":
		return h.handleInitialize(ctx, params)
	case "tools/list":
		return h.handleToolsList(ctx, params)
	case "tools/call":
		return h.handleToolsCall(ctx, params)
	default:
		return h.dispatchInternal(ctx, method, params)
	}
}

// dispatchInternal はアプリケーションのメソッドを呼び出す（tools/callからも使う）
func (h *Handler) dispatchInternal(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case "prompt.list":
		return h.handlePromptList(ctx)
	case "prompt.format":
		return h.handlePromptFormat(ctx, params)
	case "chain.run":
		return h.handleChainRun(ctx, params)
	case "chain.sequence":
		return h.handleChainSequence(ctx, params)
	case "docs.ingest":
		return h.handleDocsIngest(ctx, params)
	case "docs.ask":
		return h.handleDocsAsk(ctx, params)
	case "docs.search":
		return h.handleDocsSearch(ctx, params)
	case "docs.list":
		return h.handleDocsList(ctx, params)
	case "docs.delete":
		return h.handleDocsDelete(ctx, params)
	case "chat.send":
		return h.handleChatSend(ctx, params)
	case "chat.clear":
		return h.handleChatClear(ctx, params)
	case "config.get":
		return h.handleGetConfig(ctx)
	case "config.set":
		return h.handleSetConfig(ctx, params)
	default:
		return nil, &methodNotFoundError{method: method}
	}
}

// mapError はサービスエラーをJSON-RPCエラーに変換
func (h *Handler) mapError(id any, err error) *model.ErrorResponse {
	var mnfErr *methodNotFoundError
	if errors.As(err, &mnfErr) {
		return model.NewMethodNotFound(id, mnfErr.method)
	}

	var paramsErr *invalidParamsError
	if errors.As(err, &paramsErr) {
		return model.NewInvalidParams(id, err.Error())
	}

	switch {
	case errors.Is(err, service.ErrPromptSourceRequired),
		errors.Is(err, service.ErrInvalidCollection),
		errors.Is(err, service.ErrSourcesRequired),
		errors.Is(err, service.ErrQuestionRequired),
		errors.Is(err, service.ErrQueryRequired),
		errors.Is(err, service.ErrMessageRequired),
		errors.Is(err, service.ErrDocumentIDRequired),
		errors.Is(err, service.ErrSessionIDRequired),
		errors.Is(err, service.ErrStepsRequired),
		errors.Is(err, service.ErrInvalidTemperature),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, chain.ErrEmptyQuestion),
		errors.Is(err, chain.ErrEmptyInput),
		errors.Is(err, chain.ErrEmptySequence),
		errors.Is(err, chain.ErrMultipleInputs),
		errors.Is(err, loader.ErrUnsupportedFormat),
		errors.Is(err, loader.ErrInvalidEncoding):
		return model.NewInvalidParams(id, err.Error())

	case errors.Is(err, service.ErrPromptNotFound),
		errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, loader.ErrSourceNotFound),
		errors.Is(err, store.ErrNotFound):
		return model.NewErrorResponse(id, model.ErrCodeNotFound, err.Error(), nil)

	case errors.Is(err, prompt.ErrEmptyTemplate),
		errors.Is(err, prompt.ErrInvalidTemplate),
		errors.Is(err, prompt.ErrUndeclaredVariable),
		errors.Is(err, prompt.ErrUnusedVariable),
		errors.Is(err, prompt.ErrDuplicateVariable),
		errors.Is(err, prompt.ErrMissingValue),
		errors.Is(err, chain.ErrPromptVariables):
		return model.NewErrorResponse(id, model.ErrCodeTemplateError, err.Error(), nil)

	case errors.Is(err, llm.ErrAPIKeyRequired),
		errors.Is(err, embedder.ErrAPIKeyRequired):
		return model.NewErrorResponse(id, model.ErrCodeAPIKeyMissing, err.Error(), nil)

	case errors.Is(err, llm.ErrUnavailable):
		return model.NewErrorResponse(id, model.ErrCodeProviderUnavailable, err.Error(), nil)

	case errors.Is(err, llm.ErrAPIRequestFailed),
		errors.Is(err, llm.ErrInvalidResponse),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.Is(err, embedder.ErrAPIRequestFailed),
		errors.Is(err, embedder.ErrInvalidResponse),
		errors.Is(err, embedder.ErrEmptyEmbedding):
		return model.NewErrorResponse(id, model.ErrCodeProviderError, err.Error(), nil)
	}

	return model.NewInternalError(id, err.Error())
}

func (h *Handler) encode(resp any) []byte {
	b, _ := json.Marshal(resp)
	return b
}

// methodNotFoundError はメソッド未検出エラー
type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return "method not found: " + e.method
}

// invalidParamsError はパラメータの形式エラー
type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string {
	return "invalid params: " + e.err.Error()
}

func (e *invalidParamsError) Unwrap() error {
	return e.err
}
