package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brbranch/promptchain/internal/model"
)

// Namespace は埋め込み空間の識別子 "{provider}:{model}:{dim}"
// 別のembedderで作ったベクトル同士を比較しないよう、ストアはnamespace単位で分離する
type Namespace struct {
	Provider string
	Model    string
	Dim      int
}

func (n Namespace) String() string {
	return fmt.Sprintf("%s:%s:%d", n.Provider, n.Model, n.Dim)
}

// GenerateNamespace はembedder設定からnamespace文字列を生成する
// dimが0（未確定）でもそのまま使う
func GenerateNamespace(provider, model string, dim int) string {
	return Namespace{Provider: provider, Model: model, Dim: dim}.String()
}

// ParseNamespace はnamespace文字列を分解する
// Ollamaの "nomic-embed-text:latest" のようにモデル名が ":" を含んでもよい
// providerは最初の ":" まで、dimは最後の ":" 以降
func ParseNamespace(namespace string) (Namespace, error) {
	provider, rest, ok := strings.Cut(namespace, ":")
	sep := strings.LastIndex(rest, ":")
	if !ok || sep < 0 || provider == "" || sep == 0 {
		return Namespace{}, fmt.Errorf("invalid namespace format: expected 'provider:model:dim', got %q", namespace)
	}

	dim, err := strconv.Atoi(rest[sep+1:])
	if err != nil {
		return Namespace{}, fmt.Errorf("invalid dim in namespace %q: %w", namespace, err)
	}
	if dim < 0 {
		return Namespace{}, fmt.Errorf("invalid dim in namespace %q: dim must be non-negative, got %d", namespace, dim)
	}

	return Namespace{Provider: provider, Model: rest[:sep], Dim: dim}, nil
}

// NamespaceFor はembedder設定からnamespaceを生成する
// 埋め込み済みのdimがあればそちらを優先する
func NamespaceFor(cfg *model.EmbedderConfig, actualDim int) string {
	dim := cfg.Dim
	if actualDim > 0 {
		dim = actualDim
	}
	return GenerateNamespace(cfg.Provider, cfg.Model, dim)
}
