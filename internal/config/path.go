package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultConfigDir はホーム直下に作る設定ディレクトリ名
	DefaultConfigDir = ".promptchain"
	// DefaultConfigFile は設定ファイル名
	DefaultConfigFile = "config.json"
	// DefaultDataSubDir はSQLiteファイルなどを置くサブディレクトリ名
	DefaultDataSubDir = "data"

	// EnvHome が設定されていれば ~/.promptchain の代わりに使う
	EnvHome = "PROMPTCHAIN_HOME"

	sqliteFileName = "promptchain.db"
)

// AppDir は設定とデータを置くディレクトリを返す
func AppDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return ExpandTilde(dir)
	}
	home, err := userHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// GetDefaultConfigPath は <AppDir>/config.json
func GetDefaultConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// GetDefaultDataDir は <AppDir>/data
func GetDefaultDataDir() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDataSubDir), nil
}

// DefaultSQLitePath はデータディレクトリ配下のSQLiteファイルパスを返す
func DefaultSQLitePath(dataDir string) string {
	return filepath.Join(dataDir, sqliteFileName)
}

// ExpandTilde は "~" と "~/..." だけをホームディレクトリに展開する
// "~user" 形式は扱わない
func ExpandTilde(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return path, nil
	}
	home, err := userHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(rest, "/")), nil
}

// CanonicalizePath はローカルファイルのパスを正規化する
// 同じファイルは常に同じ文字列になり、ドキュメントIDが安定する
// シンボリックリンクが解決できない（存在しないなど）場合は絶対パスを返す
func CanonicalizePath(path string) (string, error) {
	expanded, err := ExpandTilde(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// EnsureDir はdirを（親も含めて）作成する
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func userHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home, nil
}
