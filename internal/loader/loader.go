// Package loader reads local files and web pages into documents.
package loader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/brbranch/promptchain/internal/model"
)

// Loader はソース（パスまたはURL）からドキュメントを読み込む
type Loader interface {
	Load(ctx context.Context, source string) ([]*model.Document, error)
}

// エラー定義
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrInvalidEncoding   = errors.New("document is not valid UTF-8")
	ErrSourceNotFound    = errors.New("document source not found")
)

// メタデータのキー
const (
	MetaFormat = "format"
	MetaTitle  = "title"
)

// DocumentID は正規化済みソースから決定論的なドキュメントIDを作る
func DocumentID(canonicalSource string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonicalSource)).String()
}

// newDocument は共通フィールドを埋めたDocumentを作る
func newDocument(source, title, content, format string) *model.Document {
	doc := &model.Document{
		ID:      DocumentID(source),
		Source:  source,
		Content: content,
		Metadata: map[string]any{
			MetaFormat: format,
		},
	}
	if title != "" {
		doc.Title = &title
		doc.Metadata[MetaTitle] = title
	}
	return doc
}

// markdownTitle は最初の "# " 見出しを返す（なければ空文字）
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

func baseName(path string) string {
	return filepath.Base(path)
}

// MultiLoader はスキームに応じてURLローダーとファイルローダーを振り分ける
type MultiLoader struct {
	File Loader
	URL  Loader
}

// NewMultiLoader はMultiLoaderを作成する
func NewMultiLoader(file, url Loader) *MultiLoader {
	return &MultiLoader{File: file, URL: url}
}

// Load はsourceのスキームを見て適切なローダーに委譲する
func (m *MultiLoader) Load(ctx context.Context, source string) ([]*model.Document, error) {
	switch {
	case IsURL(source):
		if m.URL == nil {
			return nil, ErrUnsupportedFormat
		}
		return m.URL.Load(ctx, source)
	case strings.HasPrefix(source, "file://"):
		return m.File.Load(ctx, strings.TrimPrefix(source, "file://"))
	default:
		return m.File.Load(ctx, source)
	}
}

// IsURL はhttp/httpsのURLかどうかを返す
func IsURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
