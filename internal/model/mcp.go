package model

// MCPProtocolVersion はサポートするMCPのプロトコルバージョン
const MCPProtocolVersion = "2024-11-05"

// initialize

type InitializeParams struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ClientInfo      ClientInfo   `json:"clientInfo"`
	Capabilities    Capabilities `json:"capabilities,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities はtoolsだけを宣言する（resources / promptsは提供しない）
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// tools/list, tools/call

// Tool はtools/listで公開するツール定義
// InputSchemaの各プロパティ名はJSON-RPCメソッドのparamsと同じ
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema はツール引数の記述に使う範囲だけのJSON Schema
type JSONSchema struct {
	Type                 string                `json:"type,omitempty"`
	Description          string                `json:"description,omitempty"`
	Properties           map[string]JSONSchema `json:"properties,omitempty"`
	Required             []string              `json:"required,omitempty"`
	Items                *JSONSchema           `json:"items,omitempty"`
	Enum                 []string              `json:"enum,omitempty"`
	Default              any                   `json:"default,omitempty"`
	AdditionalProperties *JSONSchema           `json:"additionalProperties,omitempty"`
}

type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolsCallResult はツールの実行結果
// ツールの失敗はJSON-RPCエラーにせずIsErrorで返す
type ToolsCallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func NewTextContent(text string) ContentItem {
	return ContentItem{Type: "text", Text: text}
}

// NewToolResult はテキスト1件だけの成功結果
func NewToolResult(text string) *ToolsCallResult {
	return &ToolsCallResult{Content: []ContentItem{NewTextContent(text)}}
}

// NewToolError はエラーメッセージだけを持つ失敗結果
func NewToolError(message string) *ToolsCallResult {
	result := NewToolResult(message)
	result.IsError = true
	return result
}
