package model

import (
	"fmt"
	"regexp"
)

// Document はローダーが読み込んだ1つのソースを表す
type Document struct {
	ID       string         `json:"id"`       // ソースから導出したUUID
	Source   string         `json:"source"`   // 正規化済みパスまたはURL
	Title    *string        `json:"title"`    // nullable
	Content  string         `json:"content"`  // 本文
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk はベクトルストアに保存される分割済みテキスト
type Chunk struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	DocumentID string         `json:"documentId"`
	Source     string         `json:"source"`
	Index      int            `json:"index"` // ドキュメント内の順序（0始まり）
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  *string        `json:"createdAt"` // ISO8601 UTC形式
}

// DocumentSummary はコレクション内のドキュメント一覧の1要素
type DocumentSummary struct {
	DocumentID string  `json:"documentId"`
	Collection string  `json:"collection"`
	Source     string  `json:"source"`
	ChunkCount int     `json:"chunkCount"`
	CreatedAt  *string `json:"createdAt"`
}

var collectionPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate はChunkのバリデーションを実行する
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("ID must not be empty")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("DocumentID must not be empty")
	}
	if err := ValidateCollection(c.Collection); err != nil {
		return err
	}
	if c.Text == "" {
		return fmt.Errorf("Text must not be empty")
	}
	return nil
}

// ValidateCollection はコレクション名のバリデーションを実行する
func ValidateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("collection must not be empty")
	}

	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("collection must match pattern ^[a-zA-Z0-9_-]+$, got %q", name)
	}

	return nil
}
