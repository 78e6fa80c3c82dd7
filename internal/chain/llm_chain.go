package chain

import (
	"context"
	"fmt"

	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/prompt"
)

// LLMChain はプロンプトを整形してLLMに1回問い合わせる
type LLMChain struct {
	LLM       llm.LLM
	Prompt    *prompt.Template
	Options   llm.Options
	OutputKey string // 空の場合は"text"
}

// NewLLMChain はLLMChainを作成する
func NewLLMChain(l llm.LLM, p *prompt.Template, opts llm.Options) *LLMChain {
	return &LLMChain{LLM: l, Prompt: p, Options: opts, OutputKey: DefaultOutputKey}
}

// Call はvaluesでプロンプトを整形し、入力値と出力を合わせたマップを返す
func (c *LLMChain) Call(ctx context.Context, values map[string]any) (map[string]string, error) {
	out, err := c.Predict(ctx, values)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(values)+1)
	for k, v := range values {
		result[k] = fmt.Sprint(v)
	}
	result[c.outputKey()] = out
	return result, nil
}

// Predict は出力テキストのみを返す
func (c *LLMChain) Predict(ctx context.Context, values map[string]any) (string, error) {
	res, err := c.Generate(ctx, values)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Generate は整形済みプロンプトでLLMを呼び、応答全体を返す
func (c *LLMChain) Generate(ctx context.Context, values map[string]any) (*llm.Response, error) {
	if c.LLM == nil || c.Prompt == nil {
		return nil, ErrNilComponent
	}

	text, err := c.Prompt.Format(values)
	if err != nil {
		return nil, err
	}

	res, err := c.LLM.Chat(ctx, []llm.Message{llm.UserMessage(text)}, c.Options)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *LLMChain) outputKey() string {
	if c.OutputKey == "" {
		return DefaultOutputKey
	}
	return c.OutputKey
}
