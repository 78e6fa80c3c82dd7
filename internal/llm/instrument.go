package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/metrics"
)

type instrumentedLLM struct {
	next      LLM
	collector *metrics.Collector
}

// Instrument はLLM呼び出しのメトリクスとデバッグログを記録するラッパーを返す
func Instrument(l LLM, collector *metrics.Collector) LLM {
	return &instrumentedLLM{next: l, collector: collector}
}

func (i *instrumentedLLM) Name() string  { return i.next.Name() }
func (i *instrumentedLLM) Model() string { return i.next.Model() }

func (i *instrumentedLLM) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	started := time.Now()
	resp, err := i.next.Chat(ctx, messages, opts)
	i.collector.ObserveLLM(i.next.Name(), started, err)

	if err != nil {
		logger.Zlog.Warn("llm request failed",
			zap.String("provider", i.next.Name()),
			zap.String("model", i.next.Model()),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, err
	}

	logger.Zlog.Debug("llm request completed",
		zap.String("provider", i.next.Name()),
		zap.String("model", i.next.Model()),
		zap.Int("promptTokens", resp.Usage.PromptTokens),
		zap.Int("completionTokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(started)))
	return resp, nil
}
