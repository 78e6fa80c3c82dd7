package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/brbranch/promptchain/internal/model"
)

// ErrInvalidConfig は設定値が不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid config")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate は設定全体を検証する
// 構造体タグの検証に加え、チャンクのオーバーラップがサイズ未満であることを確認する
func Validate(cfg *model.Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.Splitter.ChunkOverlap >= cfg.Splitter.ChunkSize {
		return fmt.Errorf("%w: splitter.chunkOverlap (%d) must be smaller than chunkSize (%d)",
			ErrInvalidConfig, cfg.Splitter.ChunkOverlap, cfg.Splitter.ChunkSize)
	}

	for name := range cfg.Prompts {
		if err := model.ValidateCollection(name); err != nil {
			return fmt.Errorf("%w: prompt name %q must match ^[a-zA-Z0-9_-]+$", ErrInvalidConfig, name)
		}
	}

	return nil
}
