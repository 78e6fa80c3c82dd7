package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAILLM はOpenAI互換のChat Completions APIを使うLLM実装
type OpenAILLM struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	maxTokens   int
}

// OpenAIOption はOpenAILLMのオプション
type OpenAIOption func(*OpenAILLM)

// WithBaseURL はベースURLを設定
func WithBaseURL(url string) OpenAIOption {
	return func(l *OpenAILLM) {
		l.baseURL = url
	}
}

// WithModel はモデルを設定
func WithModel(model string) OpenAIOption {
	return func(l *OpenAILLM) {
		l.model = model
	}
}

// WithDefaultTemperature は呼び出し側が指定しない場合のtemperatureを設定
func WithDefaultTemperature(t float64) OpenAIOption {
	return func(l *OpenAILLM) {
		l.temperature = &t
	}
}

// WithDefaultMaxTokens は呼び出し側が指定しない場合のmax_tokensを設定
func WithDefaultMaxTokens(n int) OpenAIOption {
	return func(l *OpenAILLM) {
		l.maxTokens = n
	}
}

// WithHTTPClient はHTTPクライアントを設定
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(l *OpenAILLM) {
		l.httpClient = client
	}
}

// NewOpenAILLM は新しいOpenAILLMを作成
func NewOpenAILLM(apiKey string, opts ...OpenAIOption) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	l := &OpenAILLM{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    DefaultOpenAIBaseURL,
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Name はプロバイダー名を返す
func (l *OpenAILLM) Name() string { return "openai" }

// Model はモデル名を返す
func (l *OpenAILLM) Model() string { return l.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionsRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatChoice struct {
	Index   int         `json:"index"`
	Message chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat はChat Completions APIを呼び出す
func (l *OpenAILLM) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	reqBody := chatCompletionsRequest{
		Model:       l.model,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
		Stop:        opts.Stop,
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.Temperature != nil {
		reqBody.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = opts.MaxTokens
	}
	if opts.Format == "json" {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrAPIRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var out chatCompletionsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	return &Response{
		Content: out.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		},
	}, nil
}
