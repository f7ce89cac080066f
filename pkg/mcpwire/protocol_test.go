package mcpwire

import "testing"

func TestNewTextContent(t *testing.T) {
	c := NewTextContent("hello")
	if c.Type != "text" {
		t.Errorf("expected type text, got %q", c.Type)
	}
	if c.Text != "hello" {
		t.Errorf("expected text %q, got %q", "hello", c.Text)
	}
}

func TestToolCallResult_IsErrorDefaultsFalse(t *testing.T) {
	result := ToolCallResult{Content: []Content{NewTextContent("ok")}}
	if result.IsError {
		t.Error("expected IsError to default to false")
	}
}
