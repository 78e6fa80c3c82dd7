package chain

import (
	"context"
	"fmt"
)

// SequentialChain は単一入力のLLMChainを順に実行し、前段の出力を次段の入力にする
type SequentialChain struct {
	Chains []*LLMChain
}

// SequenceResult は最終出力と各段の出力
type SequenceResult struct {
	Output string   `json:"output"`
	Steps  []string `json:"steps"`
}

// NewSequentialChain は各段の入力変数が1つであることを検証して作成する
func NewSequentialChain(chains ...*LLMChain) (*SequentialChain, error) {
	if len(chains) == 0 {
		return nil, ErrEmptySequence
	}
	for i, c := range chains {
		if c == nil || c.Prompt == nil {
			return nil, fmt.Errorf("step %d: %w", i, ErrNilComponent)
		}
		if n := len(c.Prompt.InputVariables()); n != 1 {
			return nil, fmt.Errorf("step %d has %d input variables: %w", i, n, ErrMultipleInputs)
		}
	}
	return &SequentialChain{Chains: chains}, nil
}

// Run はinputを先頭の段に渡して全段を実行する
func (s *SequentialChain) Run(ctx context.Context, input string) (*SequenceResult, error) {
	if len(s.Chains) == 0 {
		return nil, ErrEmptySequence
	}

	result := &SequenceResult{Steps: make([]string, 0, len(s.Chains))}
	current := input
	for i, c := range s.Chains {
		inputs := c.Prompt.InputVariables()
		if len(inputs) != 1 {
			return nil, fmt.Errorf("step %d has %d input variables: %w", i, len(inputs), ErrMultipleInputs)
		}

		out, err := c.Predict(ctx, map[string]any{inputs[0]: current})
		if err != nil {
			return nil, fmt.Errorf("step %d failed: %w", i, err)
		}
		result.Steps = append(result.Steps, out)
		current = out
	}

	result.Output = current
	return result, nil
}
