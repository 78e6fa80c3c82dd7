package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	urlloader "github.com/cloudwego/eino-ext/components/document/loader/url"
	"github.com/cloudwego/eino/components/document"

	"github.com/brbranch/promptchain/internal/model"
)

// htmlTitleKey はHTMLパーサーがタイトルを格納するメタデータキー
const htmlTitleKey = "_title"

// URLLoader はWebページを取得してテキストに変換する
type URLLoader struct {
	loader *urlloader.Loader
}

// NewURLLoader はURLLoaderを作成する（clientがnilの場合はhttp.DefaultClient）
func NewURLLoader(ctx context.Context, client *http.Client) (*URLLoader, error) {
	l, err := urlloader.NewLoader(ctx, &urlloader.LoaderConfig{Client: client})
	if err != nil {
		return nil, fmt.Errorf("failed to create url loader: %w", err)
	}
	return &URLLoader{loader: l}, nil
}

// Load はURLを取得して1つのドキュメントとして返す
func (l *URLLoader) Load(ctx context.Context, source string) ([]*model.Document, error) {
	if !IsURL(source) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}

	docs, err := l.loader.Load(ctx, document.Source{URI: source})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", source, err)
	}

	var (
		texts []string
		title string
	)
	for _, d := range docs {
		if t, ok := d.MetaData[htmlTitleKey].(string); ok && title == "" {
			title = strings.TrimSpace(t)
		}
		if strings.TrimSpace(d.Content) != "" {
			texts = append(texts, d.Content)
		}
	}
	if title == "" {
		title = source
	}

	return []*model.Document{newDocument(source, title, strings.Join(texts, "\n\n"), "html")}, nil
}
