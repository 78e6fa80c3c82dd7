package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brbranch/promptchain/internal/bootstrap"
	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/embedder"
	"github.com/brbranch/promptchain/internal/llm"
	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/model"
	"github.com/brbranch/promptchain/internal/transport/http"
	"github.com/brbranch/promptchain/internal/transport/stdio"
)

// ビルド時変数（-ldflags で変更可能）
var (
	version = "dev"
)

// Options はserveコマンドのオプション
type Options struct {
	Transport   string // 空なら設定ファイルのtransportDefaults
	Host        string
	Port        int
	CORSOrigins []string // 空なら設定ファイルのtransportDefaults.corsOrigins
	ConfigPath  string
}

func main() {
	if err := dispatch(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch はサブコマンドを振り分ける（引数なしはserve）
func dispatch(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return run(args)
	}

	switch args[0] {
	case "serve":
		return run(args)
	case "ingest":
		return runIngestCmd(args[1:], stdout)
	case "ask":
		return runAskCmd(args[1:], os.Stdin, stdout)
	case "run":
		return runRunCmd(args[1:], stdout)
	case "format":
		return runFormatCmd(args[1:], stdout)
	case "version", "-v", "--version":
		printVersion(stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// printUsage prints the usage information
func printUsage(w io.Writer) {
	fmt.Fprintln(w, `promptchain - prompt templates, LLM chains and document QA

Usage:
  promptchain <command> [options]

Commands:
  serve     Start the JSON-RPC / MCP server (stdio or HTTP)
  ingest    Load, split and embed documents into a collection
  ask       Answer a question from ingested documents
  run       Format a prompt and send it to the LLM
  format    Format a prompt without calling the LLM
  version   Print version information
  help      Print this help message

Serve Options:
  -t, --transport string   Transport type: stdio, http (default: from config)
  --host string            HTTP host (default: 127.0.0.1)
  -p, --port int           HTTP port (default: 8765)
  --cors-origin string     Allowed CORS origin for http (repeatable, default: transportDefaults.corsOrigins)
  -c, --config string      Config file path

Ingest Options:
  --collection string      Collection name (default: qa.defaultCollection)
  -c, --config string      Config file path

Ask Options:
  --collection string      Collection name (default: qa.defaultCollection)
  -k, --top-k int          Number of chunks to retrieve (default: qa.topK)
  -f, --format string      Output format: text, json (default: text)
  --stdin                  Read question from stdin
  -c, --config string      Config file path

Run / Format Options:
  -t, --template string    Prompt template text
  -n, --name string        Named prompt from config or built-ins
  --var key=value          Input variable (repeatable)
  --partial key=value      Partial variable (repeatable)
  --template-format string Template format: fstring, jinja2 (default: fstring)
  --temperature float      Sampling temperature (run only)
  -c, --config string      Config file path

Environment:
  OPENAI_API_KEY           API key for the openai provider (also read from .env)

Examples:
  promptchain serve -t http -p 8080
  promptchain run -t "Tell me a {adjective} joke about {content}." --var adjective=funny --var content=chickens
  promptchain ingest --collection docs ./docs
  promptchain ask --collection docs "What is a chain?"`)
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "promptchain version %s\n", version)
}

// run はserveコマンドを実行する
func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	return runServe(ctx, opts)
}

// parseFlags は引数をパースしてOptionsを返す
func parseFlags(args []string) (*Options, error) {
	fs := flag.NewFlagSet("promptchain", flag.ContinueOnError)

	opts := &Options{}
	fs.StringVar(&opts.Transport, "transport", "", "Transport type: stdio, http")
	fs.StringVar(&opts.Transport, "t", "", "Transport type (shorthand)")
	fs.StringVar(&opts.Host, "host", "127.0.0.1", "HTTP host")
	fs.IntVar(&opts.Port, "port", 8765, "HTTP port")
	fs.IntVar(&opts.Port, "p", 8765, "HTTP port (shorthand)")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path (shorthand)")
	fs.Var((*stringsFlag)(&opts.CORSOrigins), "cors-origin", "Allowed CORS origin for http (repeatable)")

	var flagArgs []string
	if len(args) == 0 {
		flagArgs = []string{}
	} else if args[0] == "serve" {
		flagArgs = args[1:]
	} else {
		return nil, fmt.Errorf("usage: promptchain serve [options]")
	}

	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}

	if opts.Transport != "" && opts.Transport != "stdio" && opts.Transport != "http" {
		return nil, fmt.Errorf("invalid transport: %s (must be stdio or http)", opts.Transport)
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d (must be 1-65535)", opts.Port)
	}

	return opts, nil
}

// setupSignalHandler はSIGINT/SIGTERMを受けてcontextをキャンセルする
func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}

// loadConfig は.envと設定ファイルを読み込み、ロガーを初期化する
func loadConfig(configPath string) (*config.Manager, func(), error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, nil, err
	}

	manager, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	cfg := manager.GetConfig()
	syncLogger := logger.InitLogger(cfg.Log.Level, cfg.Log.Format)
	return manager, syncLogger, nil
}

// initApp は設定を読み込み、アプリケーション全体を初期化する
func initApp(ctx context.Context, configPath string) (*bootstrap.App, func(), error) {
	manager, syncLogger, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	app, cleanup, err := bootstrap.Initialize(ctx, manager)
	if err != nil {
		syncLogger()
		if errors.Is(err, llm.ErrAPIKeyRequired) || errors.Is(err, embedder.ErrAPIKeyRequired) {
			return nil, nil, fmt.Errorf("%w: set %s or add it to a .env file", err, config.EnvOpenAIAPIKey)
		}
		return nil, nil, err
	}

	return app, func() {
		cleanup()
		syncLogger()
	}, nil
}

// httpServerConfig はフラグと設定ファイルからHTTPサーバーの設定を作る
// --cors-origin が指定されていれば設定ファイルの値より優先する
func httpServerConfig(opts *Options, cfg *model.Config, metrics nethttp.Handler) http.Config {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = cfg.TransportDefaults.CORSOrigins
	}
	return http.Config{
		Addr:        fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		CORSOrigins: origins,
		Metrics:     metrics,
	}
}

// runServe はserveコマンドを実行
func runServe(ctx context.Context, opts *Options) error {
	app, cleanup, err := initApp(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer cleanup()

	transport := opts.Transport
	if transport == "" {
		transport = app.Config.TransportDefaults.DefaultTransport
	}

	switch transport {
	case "stdio":
		server := stdio.New(app.Handler)
		return server.Run(ctx)
	case "http":
		server := http.New(app.Handler, httpServerConfig(opts, app.Config, app.Collector.Handler()))
		return server.Run(ctx)
	default:
		return fmt.Errorf("unknown transport: %s", transport)
	}
}
