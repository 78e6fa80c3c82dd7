//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/brbranch/promptchain/internal/model"
)

// TestE2E_MCP_FullFlow は MCP プロトコルの一連のフローをテスト
// initialize → notifications/initialized → tools/list → tools/call (docs_ingest) → tools/call (docs_ask)
func TestE2E_MCP_FullFlow(t *testing.T) {
	h := setupTestHandler(t, model.StoreTypeSQLite)
	ctx := context.Background()
	goDoc, _ := writeDocs(t)

	t.Run("initialize", func(t *testing.T) {
		var result model.InitializeResult
		call(t, h, "initialize", map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]any{"name": "test-client", "version": "1.0.0"},
			"capabilities":    map[string]any{},
		}, &result)

		if result.ProtocolVersion != model.MCPProtocolVersion {
			t.Errorf("protocolVersion = %q, want %q", result.ProtocolVersion, model.MCPProtocolVersion)
		}
		if result.ServerInfo.Name != "promptchain" {
			t.Errorf("serverInfo.name = %q, want promptchain", result.ServerInfo.Name)
		}
		if result.Capabilities.Tools == nil {
			t.Error("expected tools capability")
		}
	})

	t.Run("initialized notification", func(t *testing.T) {
		resp := h.Handle(ctx, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
		if resp != nil {
			t.Errorf("expected no response for notification, got %s", resp)
		}
	})

	t.Run("tools/list", func(t *testing.T) {
		var result model.ToolsListResult
		call(t, h, "tools/list", nil, &result)

		names := make([]string, 0, len(result.Tools))
		for _, tool := range result.Tools {
			names = append(names, tool.Name)
		}
		for _, want := range []string{"prompt_format", "chain_run", "docs_ingest", "docs_ask", "docs_search", "docs_list", "docs_delete", "chat_send"} {
			if !contains(names, want) {
				t.Errorf("tool %q not listed in %v", want, names)
			}
		}
	})

	t.Run("tools/call docs_ingest and docs_ask", func(t *testing.T) {
		var ingest model.ToolsCallResult
		call(t, h, "tools/call", map[string]any{
			"name":      "docs_ingest",
			"arguments": map[string]any{"sources": []string{goDoc}},
		}, &ingest)
		if ingest.IsError {
			t.Fatalf("docs_ingest returned error: %s", ingest.Content[0].Text)
		}

		var ingestResult IngestResult
		if err := json.Unmarshal([]byte(ingest.Content[0].Text), &ingestResult); err != nil {
			t.Fatalf("failed to parse tool output: %v", err)
		}
		if ingestResult.Collection != model.DefaultCollection {
			t.Errorf("collection = %q, want %q", ingestResult.Collection, model.DefaultCollection)
		}

		var ask model.ToolsCallResult
		call(t, h, "tools/call", map[string]any{
			"name":      "docs_ask",
			"arguments": map[string]any{"question": "What makes concurrency simple?"},
		}, &ask)
		if ask.IsError {
			t.Fatalf("docs_ask returned error: %s", ask.Content[0].Text)
		}
		if !strings.Contains(ask.Content[0].Text, "Goroutines") {
			t.Errorf("expected retrieved context in answer, got %s", ask.Content[0].Text)
		}
	})

	t.Run("tools/call errors", func(t *testing.T) {
		tests := []struct {
			name   string
			params map[string]any
			want   string
		}{
			{"unknown tool", map[string]any{"name": "nope"}, "Tool not found: nope"},
			{"service error", map[string]any{"name": "docs_ask", "arguments": map[string]any{}}, "Error: "},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var result model.ToolsCallResult
				call(t, h, "tools/call", tt.params, &result)
				if !result.IsError {
					t.Fatal("expected isError result")
				}
				if !strings.Contains(result.Content[0].Text, tt.want) {
					t.Errorf("text = %q, want it to contain %q", result.Content[0].Text, tt.want)
				}
			})
		}
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
