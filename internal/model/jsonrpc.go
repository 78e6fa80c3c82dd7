package model

import "fmt"

// Version はJSON-RPCのバージョン文字列
const Version = "2.0"

// JSON-RPC 2.0 標準エラーコード
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// アプリケーション定義のエラーコード（-32000〜-32099）
const (
	ErrCodeAPIKeyMissing       = -32001
	ErrCodeNotFound            = -32003
	ErrCodeProviderError       = -32004 // LLM / embeddingプロバイダーの失敗
	ErrCodeTemplateError       = -32006
	ErrCodeProviderUnavailable = -32007 // サーキットブレーカーが開いている
)

var standardMessages = map[int]string{
	ErrCodeParseError:     "Parse error",
	ErrCodeInvalidRequest: "Invalid Request",
	ErrCodeMethodNotFound: "Method not found",
}

// Request はJSON-RPC 2.0リクエスト
// IDは string | number | null。省略またはnullなら通知として扱う
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// IsNotification はレスポンスを返さないリクエストかどうか
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response は成功レスポンス
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

// ErrorResponse はエラーレスポンス（パース失敗時のIDはnull）
type ErrorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      any      `json:"id"`
	Error   RPCError `json:"error"`
}

// RPCError はJSON-RPCのエラーオブジェクト
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewResponse(id any, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

func NewErrorResponse(id any, code int, message string, data any) *ErrorResponse {
	return &ErrorResponse{
		JSONRPC: Version,
		ID:      id,
		Error:   RPCError{Code: code, Message: message, Data: data},
	}
}

// NewParseError はIDを持たないパースエラー
func NewParseError(data any) *ErrorResponse {
	return NewErrorResponse(nil, ErrCodeParseError, standardMessages[ErrCodeParseError], data)
}

func NewInvalidRequest(id any, data any) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInvalidRequest, standardMessages[ErrCodeInvalidRequest], data)
}

// NewMethodNotFound はメソッド名をdataに入れて返す
func NewMethodNotFound(id any, method string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeMethodNotFound, standardMessages[ErrCodeMethodNotFound], method)
}

// NewInvalidParams と NewInternalError はmessageに原因をそのまま載せる
func NewInvalidParams(id any, message string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInvalidParams, message, nil)
}

func NewInternalError(id any, message string) *ErrorResponse {
	return NewErrorResponse(id, ErrCodeInternalError, message, nil)
}
