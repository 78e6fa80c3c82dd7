// Package model defines data structures for promptchain.
//
// This package contains:
//   - Document / Chunk: loaded documents and their embedded pieces
//   - Config: application configuration
//   - JSON-RPC 2.0: request/response/error structures
//   - MCP: initialize / tools structures
package model

// StringValue はpが空でなければその値、それ以外はdefを返す
// 設定の省略可能な文字列（APIKey, BaseURLなど）の解決に使う
func StringValue(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
