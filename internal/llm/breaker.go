package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/model"
)

// breakerLLM はサーキットブレーカーで保護されたLLM
type breakerLLM struct {
	next LLM
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker はLLM呼び出しをサーキットブレーカーで包む
// 失敗率がしきい値を超えるとopen状態になり、ErrUnavailableを即座に返す
// コンテキストのキャンセルは失敗として数えない
func WithBreaker(l LLM, cfg model.BreakerConfig) LLM {
	name := l.Name() + ":" + l.Model()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Zlog.Warn("llm circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	return &breakerLLM{next: l, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerLLM) Name() string  { return b.next.Name() }
func (b *breakerLLM) Model() string { return b.next.Model() }

func (b *breakerLLM) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Chat(ctx, messages, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.(*Response), nil
}

// State はブレーカーの現在の状態を返す（テスト・診断用）
func (b *breakerLLM) State() gobreaker.State {
	return b.cb.State()
}
