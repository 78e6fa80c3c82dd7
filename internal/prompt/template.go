// Package prompt parses and renders prompt templates.
//
// デフォルトの書式は "{name}" 形式のプレースホルダー（"{{" / "}}" はリテラルの波括弧）。
// WithFormat(FormatJinja2) を指定するとgonjaによるJinja2テンプレートとして扱う。
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nikolalohinski/gonja"
)

// Format はテンプレートの書式
type Format string

const (
	FormatFString Format = "fstring"
	FormatJinja2  Format = "jinja2"
)

// エラー定義
var (
	ErrEmptyTemplate      = errors.New("template is empty")
	ErrInvalidTemplate    = errors.New("invalid template")
	ErrUndeclaredVariable = errors.New("undeclared template variable")
	ErrUnusedVariable     = errors.New("input variable not used in template")
	ErrDuplicateVariable  = errors.New("variable declared as both input and partial")
	ErrMissingValue       = errors.New("missing value for template variable")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// jinjaRefPattern はJinja2テンプレート内の単純な変数参照を拾う
var jinjaRefPattern = regexp.MustCompile(`\{\{-?\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|[^}]*)?-?\}\}`)

type jinjaTemplate interface {
	Execute(ctx map[string]any) (string, error)
}

// segment はfstringテンプレートの1要素（リテラルまたは変数）
type segment struct {
	literal  string
	variable string
}

// Template は不変のプロンプトテンプレート
type Template struct {
	raw              string
	format           Format
	inputVariables   []string
	partialVariables map[string]string

	segments []segment
	jinja    jinjaTemplate
}

// Option はTemplateのオプション
type Option func(*options)

type options struct {
	partials map[string]string
	format   Format
}

// WithPartialVariables は事前に値を埋めておく変数を指定する
func WithPartialVariables(partials map[string]string) Option {
	return func(o *options) {
		for k, v := range partials {
			o.partials[k] = v
		}
	}
}

// WithFormat はテンプレートの書式を指定する
func WithFormat(format Format) Option {
	return func(o *options) {
		if format != "" {
			o.format = format
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		partials: make(map[string]string),
		format:   FormatFString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New は入力変数を明示してテンプレートを作成する
func New(template string, inputVariables []string, opts ...Option) (*Template, error) {
	o := buildOptions(opts)
	return newTemplate(template, append([]string(nil), inputVariables...), o)
}

// FromTemplate はプレースホルダーから入力変数を推論してテンプレートを作成する
// 入力変数は初出順で、partial変数は除外される
func FromTemplate(template string, opts ...Option) (*Template, error) {
	o := buildOptions(opts)

	var refs []string
	switch o.format {
	case FormatFString:
		segs, err := parseFString(template)
		if err != nil {
			return nil, err
		}
		refs = segmentVariables(segs)
	case FormatJinja2:
		for _, m := range jinjaRefPattern.FindAllStringSubmatch(template, -1) {
			refs = appendUnique(refs, m[1])
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidTemplate, o.format)
	}

	inputs := make([]string, 0, len(refs))
	for _, name := range refs {
		if _, isPartial := o.partials[name]; !isPartial {
			inputs = append(inputs, name)
		}
	}
	return newTemplate(template, inputs, o)
}

func newTemplate(raw string, inputs []string, o *options) (*Template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyTemplate
	}

	declared := make(map[string]bool, len(inputs)+len(o.partials))
	for _, name := range inputs {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("%w: invalid variable name %q", ErrInvalidTemplate, name)
		}
		if _, ok := o.partials[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVariable, name)
		}
		declared[name] = true
	}
	for name := range o.partials {
		declared[name] = true
	}

	t := &Template{
		raw:              raw,
		format:           o.format,
		inputVariables:   inputs,
		partialVariables: o.partials,
	}

	switch o.format {
	case FormatFString:
		segs, err := parseFString(raw)
		if err != nil {
			return nil, err
		}
		used := make(map[string]bool)
		for _, name := range segmentVariables(segs) {
			if !declared[name] {
				return nil, fmt.Errorf("%w: %s", ErrUndeclaredVariable, name)
			}
			used[name] = true
		}
		for _, name := range inputs {
			if !used[name] {
				return nil, fmt.Errorf("%w: %s", ErrUnusedVariable, name)
			}
		}
		t.segments = segs
	case FormatJinja2:
		tpl, err := gonja.FromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		t.jinja = tpl
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidTemplate, o.format)
	}

	return t, nil
}

// Format は値を埋め込んだ文字列を返す
// partial変数の後に呼び出し側の値を適用する（呼び出し側が優先）。余分な値は無視する
func (t *Template) Format(values map[string]any) (string, error) {
	merged := make(map[string]any, len(t.partialVariables)+len(values))
	for k, v := range t.partialVariables {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}

	for _, name := range t.inputVariables {
		if _, ok := merged[name]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingValue, name)
		}
	}

	if t.format == FormatJinja2 {
		out, err := t.jinja.Execute(merged)
		if err != nil {
			return "", fmt.Errorf("failed to render template: %w", err)
		}
		return out, nil
	}

	var b strings.Builder
	for _, seg := range t.segments {
		if seg.variable == "" {
			b.WriteString(seg.literal)
			continue
		}
		v, ok := merged[seg.variable]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingValue, seg.variable)
		}
		b.WriteString(fmt.Sprint(v))
	}
	return b.String(), nil
}

// Partial は指定した変数をpartialに移した新しいテンプレートを返す
func (t *Template) Partial(values map[string]string) (*Template, error) {
	partials := t.PartialVariables()
	inputs := make([]string, 0, len(t.inputVariables))
	for name, v := range values {
		if _, ok := partials[name]; !ok && !contains(t.inputVariables, name) {
			return nil, fmt.Errorf("%w: %s", ErrUndeclaredVariable, name)
		}
		partials[name] = v
	}
	for _, name := range t.inputVariables {
		if _, moved := values[name]; !moved {
			inputs = append(inputs, name)
		}
	}

	return newTemplate(t.raw, inputs, &options{partials: partials, format: t.format})
}

// InputVariables は入力変数のコピーを返す
func (t *Template) InputVariables() []string {
	return append([]string(nil), t.inputVariables...)
}

// PartialVariables はpartial変数のコピーを返す
func (t *Template) PartialVariables() map[string]string {
	out := make(map[string]string, len(t.partialVariables))
	for k, v := range t.partialVariables {
		out[k] = v
	}
	return out
}

// PartialNames はpartial変数名をソートして返す
func (t *Template) PartialNames() []string {
	names := make([]string, 0, len(t.partialVariables))
	for k := range t.partialVariables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Raw は元のテンプレート文字列を返す
func (t *Template) Raw() string {
	return t.raw
}

// TemplateFormat はテンプレートの書式を返す
func (t *Template) TemplateFormat() Format {
	return t.format
}

// HasVariable は入力変数またはpartial変数として宣言されているかを返す
func (t *Template) HasVariable(name string) bool {
	if _, ok := t.partialVariables[name]; ok {
		return true
	}
	return contains(t.inputVariables, name)
}

func parseFString(s string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d", ErrInvalidTemplate, i)
			}
			name := s[i+1 : i+1+end]
			if !identPattern.MatchString(name) {
				return nil, fmt.Errorf("%w: invalid placeholder {%s}", ErrInvalidTemplate, name)
			}
			flush()
			segs = append(segs, segment{variable: name})
			i += end + 1
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrInvalidTemplate, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

func segmentVariables(segs []segment) []string {
	var names []string
	for _, seg := range segs {
		if seg.variable != "" {
			names = appendUnique(names, seg.variable)
		}
	}
	return names
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
