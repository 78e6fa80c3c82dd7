package llm

import (
	"context"
	"strings"
)

// EchoLLM はネットワークを使わない決定的なLLM実装
// 最後のuserメッセージをそのまま "[echo] " 付きで返す。dry-runやテストで使う
type EchoLLM struct {
	model string
}

// NewEchoLLM は新しいEchoLLMを作成する
func NewEchoLLM(model string) *EchoLLM {
	if model == "" {
		model = "echo"
	}
	return &EchoLLM{model: model}
}

// Name はプロバイダー名を返す
func (l *EchoLLM) Name() string { return "echo" }

// Model はモデル名を返す
func (l *EchoLLM) Model() string { return l.model }

// Chat は最後のuserメッセージを返す
func (l *EchoLLM) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	last := messages[len(messages)-1].Content
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = messages[i].Content
			break
		}
	}

	content := "[echo] " + last
	for _, stop := range opts.Stop {
		if idx := strings.Index(content, stop); stop != "" && idx >= 0 {
			content = content[:idx]
		}
	}

	return &Response{
		Content: content,
		Usage: Usage{
			PromptTokens:     len(strings.Fields(last)),
			CompletionTokens: len(strings.Fields(content)),
		},
	}, nil
}
