package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3"
)

// OllamaLLM はOllamaサーバーのchat APIを使うLLM実装
type OllamaLLM struct {
	client      *api.Client
	model       string
	temperature *float64
	maxTokens   int
}

// NewOllamaLLM は新しいOllamaLLMを作成する
// baseURLが空の場合はOLLAMA_HOST（未設定ならデフォルト）を使う
func NewOllamaLLM(baseURL, model string, httpClient *http.Client) (*OllamaLLM, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	var client *api.Client
	if baseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
		}
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(u, httpClient)
	}

	return &OllamaLLM{client: client, model: model}, nil
}

// SetDefaults は呼び出し側が指定しない場合のパラメータを設定する
func (l *OllamaLLM) SetDefaults(temperature *float64, maxTokens int) {
	l.temperature = temperature
	l.maxTokens = maxTokens
}

// Name はプロバイダー名を返す
func (l *OllamaLLM) Name() string { return "ollama" }

// Model はモデル名を返す
func (l *OllamaLLM) Model() string { return l.model }

// Chat はストリーミング応答を連結して返す
func (l *OllamaLLM) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	options := map[string]interface{}{}
	temperature := l.temperature
	if opts.Temperature != nil {
		temperature = opts.Temperature
	}
	if temperature != nil {
		options["temperature"] = *temperature
	}
	maxTokens := l.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}

	req := &api.ChatRequest{
		Model:    l.model,
		Messages: msgs,
		Format:   opts.Format,
		Options:  options,
	}

	var b strings.Builder
	var usage Usage
	err := l.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se api.StatusError
		if errors.As(err, &se) {
			return nil, &APIError{StatusCode: se.StatusCode, Message: se.Error()}
		}
		return nil, fmt.Errorf("%w: %v", ErrAPIRequestFailed, err)
	}

	if b.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	return &Response{Content: b.String(), Usage: usage}, nil
}
