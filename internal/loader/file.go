package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"go.uber.org/zap"

	"github.com/brbranch/promptchain/internal/config"
	"github.com/brbranch/promptchain/internal/logger"
	"github.com/brbranch/promptchain/internal/model"
)

// サポートする拡張子とformat名
var supportedExtensions = map[string]string{
	".txt":      "text",
	".md":       "markdown",
	".markdown": "markdown",
	".pdf":      "pdf",
}

// FileLoader はローカルのテキスト・Markdown・PDFファイルを読み込む
type FileLoader struct {
	pdfParser *pdf.PDFParser
}

// NewFileLoader はFileLoaderを作成する
func NewFileLoader(ctx context.Context) (*FileLoader, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf parser: %w", err)
	}
	return &FileLoader{pdfParser: p}, nil
}

// Load はファイルまたはディレクトリを読み込む
// ディレクトリの場合は対応拡張子のファイルをパス順に再帰的に読み込む
func (l *FileLoader) Load(ctx context.Context, source string) ([]*model.Document, error) {
	path, err := config.CanonicalizePath(source)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", source, err)
	}

	if !info.IsDir() {
		doc, err := l.loadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return []*model.Document{doc}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(p))]; ok {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", source, err)
	}
	sort.Strings(paths)

	docs := make([]*model.Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.loadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	logger.Zlog.Debug("loaded directory",
		zap.String("path", path),
		zap.Int("documents", len(docs)))

	return docs, nil
}

func (l *FileLoader) loadFile(ctx context.Context, path string) (*model.Document, error) {
	format, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	if format == "pdf" {
		return l.loadPDF(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, path)
	}

	content := string(data)
	title := markdownTitle(content)
	if title == "" {
		title = baseName(path)
	}

	return newDocument(path, title, content, format), nil
}

func (l *FileLoader) loadPDF(ctx context.Context, path string) (*model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pages, err := l.pdfParser.Parse(ctx, f, parser.WithURI(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf %s: %w", path, err)
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			texts = append(texts, p.Content)
		}
	}

	return newDocument(path, baseName(path), strings.Join(texts, "\n\n"), "pdf"), nil
}
