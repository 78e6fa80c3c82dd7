package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/brbranch/promptchain/internal/service"
)

// PromptOptions holds parsed run / format command options
type PromptOptions struct {
	Template       string
	Name           string
	Vars           keyValueFlag
	Partials       keyValueFlag
	TemplateFormat string
	Temperature    *float64
	ConfigPath     string
}

// keyValueFlag は繰り返し指定できる key=value フラグ
type keyValueFlag map[string]string

func (f keyValueFlag) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f keyValueFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	f[strings.TrimSpace(key)] = val
	return nil
}

// stringsFlag は繰り返し指定できる文字列フラグ
type stringsFlag []string

func (f *stringsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty value")
	}
	*f = append(*f, value)
	return nil
}

// parsePromptFlags parses command line arguments shared by run and format
func parsePromptFlags(name string, args []string) (*PromptOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &PromptOptions{
		Vars:     keyValueFlag{},
		Partials: keyValueFlag{},
	}
	var temperature float64

	fs.StringVar(&opts.Template, "template", "", "Prompt template text")
	fs.StringVar(&opts.Name, "name", "", "Named prompt")
	fs.Var(opts.Vars, "var", "Input variable key=value (repeatable)")
	fs.Var(opts.Partials, "partial", "Partial variable key=value (repeatable)")
	fs.StringVar(&opts.TemplateFormat, "template-format", "", "Template format: fstring|jinja2")
	fs.Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")

	fs.StringVar(&opts.Template, "t", "", "Prompt template text")
	fs.StringVar(&opts.Name, "n", "", "Named prompt")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "temperature" {
			opts.Temperature = &temperature
		}
	})

	if (opts.Template == "") == (opts.Name == "") {
		return nil, fmt.Errorf("exactly one of --template (-t) or --name (-n) is required")
	}
	if opts.TemplateFormat != "" && opts.TemplateFormat != "fstring" && opts.TemplateFormat != "jinja2" {
		return nil, fmt.Errorf("invalid template format: %s (must be fstring or jinja2)", opts.TemplateFormat)
	}

	return opts, nil
}

// spec はサービス層のPromptSpecに変換する
func (o *PromptOptions) spec() service.PromptSpec {
	spec := service.PromptSpec{Format: o.TemplateFormat}
	if o.Template != "" {
		spec.Template = &o.Template
	}
	if o.Name != "" {
		spec.Name = &o.Name
	}
	if len(o.Partials) > 0 {
		spec.PartialVariables = o.Partials
	}
	return spec
}

// values は入力変数をテンプレートに渡す形に変換する
func (o *PromptOptions) values() map[string]any {
	values := make(map[string]any, len(o.Vars))
	for k, v := range o.Vars {
		values[k] = v
	}
	return values
}

// runRunCmd はプロンプトを整形してLLMに送り、応答を出力する
func runRunCmd(args []string, stdout io.Writer) error {
	opts, err := parsePromptFlags("run", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, cleanup, err := initApp(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := app.Services.Chain.RunChain(ctx, &service.RunChainRequest{
		Prompt:      opts.spec(),
		Values:      opts.values(),
		Temperature: opts.Temperature,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, resp.Output)
	return nil
}

// runFormatCmd は整形済みプロンプトだけを出力する（LLMは呼ばない）
func runFormatCmd(args []string, stdout io.Writer) error {
	opts, err := parsePromptFlags("format", args)
	if err != nil {
		return err
	}
	if opts.Temperature != nil {
		return fmt.Errorf("--temperature is only valid for run")
	}

	manager, syncLogger, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	defer syncLogger()

	resp, err := service.NewPromptService(manager).FormatPrompt(context.Background(), &service.FormatPromptRequest{
		Prompt: opts.spec(),
		Values: opts.values(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, resp.Text)
	return nil
}
