package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/brbranch/promptchain/internal/service"
)

// IngestOptions holds parsed ingest command options
type IngestOptions struct {
	Collection string
	ConfigPath string
	Sources    []string
}

// AskOptions holds parsed ask command options
type AskOptions struct {
	Collection string
	TopK       int // 0 means qa.topK from config
	Format     string
	ConfigPath string
	UseStdin   bool
	Question   string
}

// JSONAnswer represents the JSON output of the ask command
type JSONAnswer struct {
	Answer  string       `json:"answer"`
	Sources []JSONSource `json:"sources"`
}

// JSONSource represents a single source chunk in JSON output
type JSONSource struct {
	DocumentID string  `json:"documentId"`
	Source     string  `json:"source"`
	Index      int     `json:"index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// parseIngestFlags parses command line arguments for ingest command
func parseIngestFlags(args []string) (*IngestOptions, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &IngestOptions{}
	fs.StringVar(&opts.Collection, "collection", "", "Collection name")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Sources = fs.Args()
	if len(opts.Sources) == 0 {
		return nil, fmt.Errorf("at least one file, directory or URL is required")
	}

	return opts, nil
}

// runIngestCmd is the entry point for ingest command
func runIngestCmd(args []string, stdout io.Writer) error {
	opts, err := parseIngestFlags(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, cleanup, err := initApp(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	resp, err := app.Services.Document.Ingest(ctx, &service.IngestRequest{
		Collection: opts.Collection,
		Sources:    opts.Sources,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	formatIngestOutput(stdout, resp)
	return nil
}

// formatIngestOutput outputs one line per ingested document
func formatIngestOutput(w io.Writer, resp *service.IngestResponse) {
	for _, doc := range resp.Documents {
		fmt.Fprintf(w, "%s  %s (%d chunks)\n", doc.DocumentID, doc.Source, doc.ChunkCount)
	}
	fmt.Fprintf(w, "ingested %d documents, %d chunks into %q\n", len(resp.Documents), resp.ChunkCount, resp.Collection)
}

// parseAskFlags parses command line arguments for ask command
func parseAskFlags(args []string) (*AskOptions, error) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := &AskOptions{}

	fs.StringVar(&opts.Collection, "collection", "", "Collection name")
	fs.IntVar(&opts.TopK, "top-k", 0, "Number of chunks to retrieve")
	fs.StringVar(&opts.Format, "format", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "config", "", "Config file path")
	fs.BoolVar(&opts.UseStdin, "stdin", false, "Read question from stdin")

	fs.IntVar(&opts.TopK, "k", 0, "Number of chunks to retrieve")
	fs.StringVar(&opts.Format, "f", "text", "Output format: text|json")
	fs.StringVar(&opts.ConfigPath, "c", "", "Config file path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Question = strings.Join(fs.Args(), " ")

	if !opts.UseStdin && opts.Question == "" {
		return nil, fmt.Errorf("question is required (or use --stdin)")
	}
	if opts.TopK < 0 {
		return nil, fmt.Errorf("top-k must not be negative")
	}
	if opts.Format != "text" && opts.Format != "json" {
		return nil, fmt.Errorf("invalid format: %s (must be text or json)", opts.Format)
	}

	return opts, nil
}

// runAskCmd is the entry point for ask command
func runAskCmd(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseAskFlags(args)
	if err != nil {
		return err
	}

	if opts.UseStdin {
		question, err := readLine(stdin)
		if err != nil {
			return fmt.Errorf("failed to read question from stdin: %w", err)
		}
		opts.Question = question
	}
	if opts.Question == "" {
		return fmt.Errorf("question is empty")
	}

	ctx := context.Background()
	app, cleanup, err := initApp(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer cleanup()

	req := &service.AskRequest{
		Collection: opts.Collection,
		Question:   opts.Question,
	}
	if opts.TopK > 0 {
		req.TopK = &opts.TopK
	}

	resp, err := app.Services.Document.Ask(ctx, req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if opts.Format == "json" {
		if err := formatAnswerJSON(stdout, resp); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		return nil
	}
	formatAnswerText(stdout, resp)
	return nil
}

// readLine reads a single trimmed line
func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no input received")
}

// formatAnswerText outputs the answer followed by its sources
func formatAnswerText(w io.Writer, resp *service.AskResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, s := range resp.Sources {
		fmt.Fprintf(w, "[%d] %s#%d (score: %.2f)\n", i+1, s.Source, s.Index, s.Score)
		fmt.Fprintf(w, "    %s\n", truncateText(s.Text, 60))
	}
}

// formatAnswerJSON outputs the answer in JSON format
func formatAnswerJSON(w io.Writer, resp *service.AskResponse) error {
	output := JSONAnswer{
		Answer:  resp.Answer,
		Sources: make([]JSONSource, 0, len(resp.Sources)),
	}
	for _, s := range resp.Sources {
		output.Sources = append(output.Sources, JSONSource{
			DocumentID: s.DocumentID,
			Source:     s.Source,
			Index:      s.Index,
			Score:      s.Score,
			Text:       s.Text,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// truncateText truncates text to maxLen runes and adds " ..." if truncated
func truncateText(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + " ..."
}
