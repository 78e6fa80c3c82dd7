// Package chain composes prompts, models, retrievers and memory into runnable chains.
package chain

import "errors"

// エラー定義
var (
	ErrEmptySequence   = errors.New("sequence has no steps")
	ErrMultipleInputs  = errors.New("sequential step must have exactly one input variable")
	ErrEmptyQuestion   = errors.New("question must not be empty")
	ErrEmptyInput      = errors.New("input must not be empty")
	ErrPromptVariables = errors.New("prompt is missing required variables")
	ErrNilComponent    = errors.New("chain component is nil")
)

// DefaultOutputKey はLLMChainの出力キー
const DefaultOutputKey = "text"
