package model

import (
	"encoding/json"
	"testing"
)

func TestRequest_IsNotification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"numeric id", `{"jsonrpc":"2.0","id":1,"method":"prompt.list"}`, false},
		{"string id", `{"jsonrpc":"2.0","id":"a","method":"prompt.list"}`, false},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"prompt.list"}`, true},
		{"no id", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got := req.IsNotification(); got != tt.want {
				t.Errorf("IsNotification() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	data, err := json.Marshal(NewParseError("unexpected EOF"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error","data":"unexpected EOF"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	data, err = json.Marshal(NewInvalidParams(7, "question is required"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want = `{"jsonrpc":"2.0","id":7,"error":{"code":-32602,"message":"question is required"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestRPCError_Error(t *testing.T) {
	e := NewMethodNotFound(1, "nope").Error
	if got := e.Error(); got != "rpc error -32601: Method not found" {
		t.Errorf("Error() = %q", got)
	}
}
