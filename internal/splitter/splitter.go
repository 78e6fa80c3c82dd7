// Package splitter cuts documents into overlapping chunks for embedding.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/markdown"
	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/brbranch/promptchain/internal/model"
)

// ErrInvalidChunkConfig はchunkSize/overlapの組み合わせが不正な場合のエラー
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// デフォルト値
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// markdownHeaders は見出し記号とメタデータキーの対応
var markdownHeaders = map[string]string{
	"#":   "h1",
	"##":  "h2",
	"###": "h3",
}

// Splitter はドキュメントをチャンクに分割する
type Splitter struct {
	chunkSize int
	overlap   int
	recursive document.Transformer
	headers   document.Transformer
}

// New はSplitterを作成する
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunkSize=%d, chunkOverlap=%d", ErrInvalidChunkConfig, chunkSize, chunkOverlap)
	}

	ctx := context.Background()
	rec, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: chunkOverlap,
		Separators:  []string{"\n\n", "\n", ". ", " "},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recursive splitter: %w", err)
	}

	headers, err := markdown.NewHeaderSplitter(ctx, &markdown.HeaderConfig{
		Headers: markdownHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown splitter: %w", err)
	}

	return &Splitter{
		chunkSize: chunkSize,
		overlap:   chunkOverlap,
		recursive: rec,
		headers:   headers,
	}, nil
}

// ChunkSize は設定されたチャンクサイズを返す
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap は設定されたオーバーラップを返す
func (s *Splitter) ChunkOverlap() int { return s.overlap }

// Split はドキュメントを分割し、collection内で一意なIDを持つチャンクを返す
// Markdownは先に見出し単位で分割し、見出し値をメタデータに残す
func (s *Splitter) Split(ctx context.Context, collection string, doc *model.Document) ([]*model.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	sections := []*schema.Document{{ID: doc.ID, Content: doc.Content}}
	if isMarkdown(doc) {
		var err error
		sections, err = s.headers.Transform(ctx, sections)
		if err != nil {
			return nil, fmt.Errorf("failed to split markdown headers: %w", err)
		}
	}

	var chunks []*model.Chunk
	for _, section := range sections {
		pieces, err := s.recursive.Transform(ctx, []*schema.Document{section})
		if err != nil {
			return nil, fmt.Errorf("failed to split text: %w", err)
		}

		for _, piece := range pieces {
			text := strings.TrimSpace(piece.Content)
			if text == "" {
				continue
			}

			chunks = append(chunks, &model.Chunk{
				ID:         ChunkID(doc.ID, collection, len(chunks)),
				Collection: collection,
				DocumentID: doc.ID,
				Source:     doc.Source,
				Index:      len(chunks),
				Text:       text,
				Metadata:   chunkMetadata(doc, section),
			})
		}
	}

	return chunks, nil
}

// ChunkID はドキュメントID・コレクション・順序から決定論的なチャンクIDを作る
func ChunkID(documentID, collection string, index int) string {
	ns, err := uuid.Parse(documentID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID))
	}
	return uuid.NewSHA1(ns, []byte(collection+"/"+strconv.Itoa(index))).String()
}

func isMarkdown(doc *model.Document) bool {
	format, _ := doc.Metadata["format"].(string)
	return format == "markdown"
}

// chunkMetadata はドキュメントのメタデータに見出し情報を重ねる
func chunkMetadata(doc *model.Document, section *schema.Document) map[string]any {
	metadata := make(map[string]any, len(doc.Metadata)+len(markdownHeaders))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	for _, key := range markdownHeaders {
		if v, ok := section.MetaData[key]; ok {
			metadata[key] = v
		}
	}
	return metadata
}
