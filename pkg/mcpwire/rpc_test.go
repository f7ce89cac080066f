package mcpwire

import (
	"encoding/json"
	"testing"
)

func TestNewRequest_EncodesParams(t *testing.T) {
	req, err := NewRequest(json.RawMessage("1"), "tools/call", ToolCallParams{Name: "echo"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.JSONRPC != "2.0" {
		t.Errorf("expected jsonrpc 2.0, got %q", req.JSONRPC)
	}
	if req.Method != "tools/call" {
		t.Errorf("expected method tools/call, got %q", req.Method)
	}
	if string(req.ID) != "1" {
		t.Errorf("expected id 1, got %s", req.ID)
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("decoding params: %v", err)
	}
	if params.Name != "echo" {
		t.Errorf("expected name echo, got %q", params.Name)
	}
}

func TestNewRequest_NilParamsOmitsField(t *testing.T) {
	req, err := NewRequest(json.RawMessage("1"), "tools/list", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.Params != nil {
		t.Errorf("expected nil params, got %s", req.Params)
	}

	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["params"]; ok {
		t.Error("expected params to be omitted entirely when nil")
	}
}

func TestNewNotification_HasNoID(t *testing.T) {
	notif, err := NewNotification("notifications/initialized", nil)
	if err != nil {
		t.Fatalf("NewNotification: %v", err)
	}
	if notif.ID != nil {
		t.Errorf("expected a notification to carry no id, got %s", notif.ID)
	}

	b, err := json.Marshal(notif)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["id"]; ok {
		t.Error("expected id to be omitted entirely for a notification")
	}
}

func TestError_ErrorStringIsMessage(t *testing.T) {
	e := &Error{Code: ServerNotInitialized, Message: "server not initialized"}
	if e.Error() != "server not initialized" {
		t.Errorf("expected Error() to return the message, got %q", e.Error())
	}
}

func TestResponse_DecodesErrorObject(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Server not initialized"}}`
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected a non-nil error")
	}
	if resp.Error.Code != ServerNotInitialized {
		t.Errorf("expected code %d, got %d", ServerNotInitialized, resp.Error.Code)
	}
}
