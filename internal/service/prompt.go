package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/model"
	"github.com/brbranch/promptchain/internal/prompt"
)

// promptService はPromptServiceの実装
type promptService struct {
	manager *config.Manager
}

// NewPromptService はPromptServiceの新しいインスタンスを作成
func NewPromptService(mgr *config.Manager) PromptService {
	return &promptService{manager: mgr}
}

// ListPrompts は組み込みと設定ファイルのプロンプトを名前順で返す
// 同名の場合は設定ファイル側が優先される
func (s *promptService) ListPrompts(ctx context.Context) (*ListPromptsResponse, error) {
	named, builtin := s.templates()

	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	prompts := make([]PromptInfo, 0, len(names))
	for _, name := range names {
		t := named[name]
		prompts = append(prompts, PromptInfo{
			Name:             name,
			Template:         t.Raw(),
			InputVariables:   t.InputVariables(),
			PartialVariables: t.PartialVariables(),
			Format:           string(t.TemplateFormat()),
			Builtin:          builtin[name],
		})
	}

	return &ListPromptsResponse{Prompts: prompts}, nil
}

// FormatPrompt はプロンプトに値を埋めて文字列を返す
func (s *promptService) FormatPrompt(ctx context.Context, req *FormatPromptRequest) (*FormatPromptResponse, error) {
	t, err := s.resolve(req.Prompt)
	if err != nil {
		return nil, err
	}

	text, err := t.Format(req.Values)
	if err != nil {
		return nil, err
	}

	return &FormatPromptResponse{
		Text:           text,
		InputVariables: t.InputVariables(),
	}, nil
}

// resolve はPromptSpecからテンプレートを作る
func (s *promptService) resolve(spec PromptSpec) (*prompt.Template, error) {
	hasName := spec.Name != nil && *spec.Name != ""
	hasTemplate := spec.Template != nil && *spec.Template != ""
	if hasName == hasTemplate {
		return nil, ErrPromptSourceRequired
	}

	if hasTemplate {
		opts := []prompt.Option{prompt.WithFormat(prompt.Format(spec.Format))}
		if len(spec.PartialVariables) > 0 {
			opts = append(opts, prompt.WithPartialVariables(spec.PartialVariables))
		}
		if len(spec.InputVariables) > 0 {
			return prompt.New(*spec.Template, spec.InputVariables, opts...)
		}
		return prompt.FromTemplate(*spec.Template, opts...)
	}

	named, _ := s.templates()
	t, ok := named[*spec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, *spec.Name)
	}
	if len(spec.PartialVariables) > 0 {
		return t.Partial(spec.PartialVariables)
	}
	return t, nil
}

// templates は名前付きテンプレートと、そのうち組み込みのものを返す
func (s *promptService) templates() (map[string]*prompt.Template, map[string]bool) {
	named := prompt.Builtins()
	builtin := make(map[string]bool, len(named))
	for name := range named {
		builtin[name] = true
	}

	if s.manager == nil {
		return named, builtin
	}

	for name, pc := range s.manager.GetConfig().Prompts {
		t, err := templateFromConfig(pc)
		if err != nil {
			// 壊れた定義は一覧から外す（Load時の検証を通過した設定なら起きない）
			continue
		}
		named[name] = t
		builtin[name] = false
	}

	return named, builtin
}

// templateFromConfig は設定ファイルのプロンプト定義からテンプレートを作る
func templateFromConfig(pc model.PromptConfig) (*prompt.Template, error) {
	opts := []prompt.Option{prompt.WithFormat(prompt.Format(pc.Format))}
	if len(pc.PartialVariables) > 0 {
		opts = append(opts, prompt.WithPartialVariables(pc.PartialVariables))
	}
	if len(pc.InputVariables) > 0 {
		return prompt.New(pc.Template, pc.InputVariables, opts...)
	}
	return prompt.FromTemplate(pc.Template, opts...)
}

// configuredPrompt は設定ファイルで上書きされた組み込みプロンプトを返す
// 上書きがなければnil（チェーン側で組み込みを使う）
func configuredPrompt(mgr *config.Manager, name string) (*prompt.Template, error) {
	if mgr == nil {
		return nil, nil
	}
	pc, ok := mgr.GetConfig().Prompts[name]
	if !ok {
		return nil, nil
	}
	t, err := templateFromConfig(pc)
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt: %w", name, err)
	}
	return t, nil
}
