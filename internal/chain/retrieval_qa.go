package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/prompt"
	"github.com/brbranch/promptchain/internal/store"
)

// DefaultSeparator はstuff戦略でチャンクを連結する区切り
const DefaultSeparator = "\n\n"

// QAResult はRetrievalQAの回答と根拠チャンク
type QAResult struct {
	Answer  string               `json:"answer"`
	Sources []store.SearchResult `json:"sources"`
}

// RetrievalQA は検索したチャンクを全て1つのプロンプトに詰めて（stuff）回答する
type RetrievalQA struct {
	Retriever Retriever
	LLM       llm.LLM
	Prompt    *prompt.Template // {context} と {question} が必要
	Options   llm.Options
	Separator string
}

// NewRetrievalQA はRetrievalQAを作成する（promptがnilなら組み込みのQAプロンプト）
func NewRetrievalQA(r Retriever, l llm.LLM, p *prompt.Template, opts llm.Options) (*RetrievalQA, error) {
	if p == nil {
		p = prompt.DefaultQAPrompt()
	}
	if !p.HasVariable("context") || !p.HasVariable("question") {
		return nil, fmt.Errorf("%w: context, question", ErrPromptVariables)
	}
	return &RetrievalQA{
		Retriever: r,
		LLM:       l,
		Prompt:    p,
		Options:   opts,
		Separator: DefaultSeparator,
	}, nil
}

// Call は質問に関連するチャンクを取得して回答を生成する
// チャンクが0件でも空のcontextでLLMを呼ぶ
func (q *RetrievalQA) Call(ctx context.Context, question string) (*QAResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if q.Retriever == nil || q.LLM == nil || q.Prompt == nil {
		return nil, ErrNilComponent
	}

	sources, err := q.Retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Chunk.Text
	}

	separator := q.Separator
	if separator == "" {
		separator = DefaultSeparator
	}

	answer, err := NewLLMChain(q.LLM, q.Prompt, q.Options).Predict(ctx, map[string]any{
		"context":  strings.Join(texts, separator),
		"question": question,
	})
	if err != nil {
		return nil, err
	}

	return &QAResult{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}
