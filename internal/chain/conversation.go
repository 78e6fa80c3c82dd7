package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/memory"
	"github.com/brbranch/promptchain/internal/prompt"
)

// ConversationChain は会話履歴を{history}に埋め込んで応答する
type ConversationChain struct {
	LLM     llm.LLM
	Memory  *memory.Buffer
	Prompt  *prompt.Template // {history} と {input} が必要
	Options llm.Options
}

// NewConversationChain はConversationChainを作成する（promptがnilなら組み込みの会話プロンプト）
func NewConversationChain(l llm.LLM, mem *memory.Buffer, p *prompt.Template, opts llm.Options) (*ConversationChain, error) {
	if p == nil {
		p = prompt.DefaultConversationPrompt()
	}
	if !p.HasVariable("history") || !p.HasVariable("input") {
		return nil, fmt.Errorf("%w: history, input", ErrPromptVariables)
	}
	return &ConversationChain{LLM: l, Memory: mem, Prompt: p, Options: opts}, nil
}

// Predict は応答を生成し、成功した場合のみターンを保存する
func (c *ConversationChain) Predict(ctx context.Context, sessionID, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}
	if c.LLM == nil || c.Memory == nil || c.Prompt == nil {
		return "", ErrNilComponent
	}

	out, err := NewLLMChain(c.LLM, c.Prompt, c.Options).Predict(ctx, map[string]any{
		"history": c.Memory.History(sessionID),
		"input":   input,
	})
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	c.Memory.SaveTurn(sessionID, input, out)
	return out, nil
}
