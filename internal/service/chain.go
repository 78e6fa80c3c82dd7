package service

import (
	"context"
	"fmt"

	"github.com/brbranch/promptchain/internal/chain"
	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/metrics"
)

// メトリクス用のチェーン名
const (
	chainLLM          = "llm"
	chainSequential   = "sequential"
	chainRetrievalQA  = "retrieval_qa"
	chainConversation = "conversation"
)

// chainService はChainServiceの実装
type chainService struct {
	llm       llm.LLM
	manager   *config.Manager
	prompts   *promptService
	collector *metrics.Collector
}

// NewChainService はChainServiceの新しいインスタンスを作成
func NewChainService(l llm.LLM, mgr *config.Manager, collector *metrics.Collector) ChainService {
	return &chainService{
		llm:       l,
		manager:   mgr,
		prompts:   &promptService{manager: mgr},
		collector: collector,
	}
}

// RunChain はプロンプトを整形してLLMに1回問い合わせる
func (s *chainService) RunChain(ctx context.Context, req *RunChainRequest) (resp *RunChainResponse, err error) {
	defer func() { s.collector.ObserveChain(chainLLM, err) }()

	if err := validateTemperature(req.Temperature); err != nil {
		return nil, err
	}

	t, err := s.prompts.resolve(req.Prompt)
	if err != nil {
		return nil, err
	}

	// 整形エラーはLLM呼び出し前に返す
	text, err := t.Format(req.Values)
	if err != nil {
		return nil, err
	}

	c := chain.NewLLMChain(s.llm, t, s.options(req.Temperature, req.MaxTokens))
	res, err := c.Generate(ctx, req.Values)
	if err != nil {
		return nil, err
	}

	return &RunChainResponse{
		Prompt:   text,
		Output:   res.Content,
		Provider: s.llm.Name(),
		Model:    s.llm.Model(),
		Usage:    res.Usage,
	}, nil
}

// RunSequence は単一入力のプロンプトを順に実行する
func (s *chainService) RunSequence(ctx context.Context, req *RunSequenceRequest) (resp *RunSequenceResponse, err error) {
	defer func() { s.collector.ObserveChain(chainSequential, err) }()

	if len(req.Steps) == 0 {
		return nil, ErrStepsRequired
	}
	if err := validateTemperature(req.Temperature); err != nil {
		return nil, err
	}

	opts := s.options(req.Temperature, nil)
	steps := make([]*chain.LLMChain, 0, len(req.Steps))
	for i, spec := range req.Steps {
		t, err := s.prompts.resolve(spec)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, chain.NewLLMChain(s.llm, t, opts))
	}

	seq, err := chain.NewSequentialChain(steps...)
	if err != nil {
		return nil, err
	}

	result, err := seq.Run(ctx, req.Input)
	if err != nil {
		return nil, err
	}

	return &RunSequenceResponse{Output: result.Output, Steps: result.Steps}, nil
}

// options はリクエスト値を優先し、未指定なら設定値でllm.Optionsを作る
func (s *chainService) options(temperature *float64, maxTokens *int) llm.Options {
	var opts llm.Options
	if s.manager != nil {
		cfg := s.manager.GetConfig()
		opts.Temperature = llm.Float64(cfg.LLM.Temperature)
		opts.MaxTokens = cfg.LLM.MaxTokens
	}
	if temperature != nil {
		opts.Temperature = llm.Float64(*temperature)
	}
	if maxTokens != nil {
		opts.MaxTokens = *maxTokens
	}
	return opts
}

func validateTemperature(t *float64) error {
	if t != nil && (*t < 0 || *t > 2) {
		return ErrInvalidTemperature
	}
	return nil
}
