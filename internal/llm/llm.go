// Package llm defines the chat model interface and its provider implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// メッセージのロール
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message はチャットメッセージ
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options は1回の呼び出しに対するパラメータ
// Temperatureがnilの場合はプロバイダーのデフォルトを使う
type Options struct {
	Temperature *float64
	MaxTokens   int
	Stop        []string
	Format      string // "json" など（対応プロバイダーのみ）
}

// Usage はトークン使用量
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Response はLLMの応答
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// LLM はチャットモデルのインターフェース
type LLM interface {
	// Name はプロバイダー名を返す
	Name() string

	// Model はモデル名を返す
	Model() string

	// Chat はメッセージ列に対する応答を生成する
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// エラー定義
var (
	ErrAPIKeyRequired   = errors.New("api key is required")
	ErrAPIRequestFailed = errors.New("API request failed")
	ErrInvalidResponse  = errors.New("invalid API response")
	ErrEmptyResponse    = errors.New("empty response returned")
	ErrUnknownProvider  = errors.New("unknown llm provider")
	ErrUnavailable      = errors.New("llm provider temporarily unavailable")
	ErrNoMessages       = errors.New("no messages to send")
)

// APIError は詳細なAPIエラー情報を保持
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIRequestFailed
}

// UserMessage はuserロールのメッセージを作成する
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Float64 はOptions.Temperature用のヘルパー
func Float64(v float64) *float64 {
	return &v
}
