package aegisconfig

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &ServerConfig{Name: "s", Command: "echo", Args: []string{}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingName(t *testing.T) {
	cfg := &ServerConfig{Command: "echo", Args: []string{}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if verrs[0].Field != "name" {
		t.Errorf("expected the error to name field %q, got %q", "name", verrs[0].Field)
	}
}

func TestValidate_MissingCommand(t *testing.T) {
	cfg := &ServerConfig{Name: "s", Args: []string{}}
	err := Validate(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "command" {
		t.Fatalf("expected a command validation error, got %v", err)
	}
}

func TestValidate_NilArgsRejected(t *testing.T) {
	cfg := &ServerConfig{Name: "s", Command: "echo"}
	err := Validate(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "args" {
		t.Fatalf("expected an args validation error, got %v", err)
	}
}

func TestValidate_EmptyArgsSliceAccepted(t *testing.T) {
	cfg := &ServerConfig{Name: "s", Command: "echo", Args: []string{}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected [] for args to be valid, got %v", err)
	}
}

func TestValidate_NegativeStartupTimeout(t *testing.T) {
	cfg := &ServerConfig{Name: "s", Command: "echo", Args: []string{}, StartupTimeout: -1}
	err := Validate(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || verrs[0].Field != "startupTimeout" {
		t.Fatalf("expected a startupTimeout validation error, got %v", err)
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := &ServerConfig{}
	err := Validate(cfg)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Fatalf("expected 3 accumulated errors (name, command, args), got %d: %v", len(verrs), verrs)
	}
}

func TestValidationErrors_ErrorMessageListsEachField(t *testing.T) {
	err := ValidationErrors{
		{Field: "name", Message: "is required"},
		{Field: "command", Message: "is required"},
	}
	msg := err.Error()
	if !strings.Contains(msg, "name: is required") || !strings.Contains(msg, "command: is required") {
		t.Errorf("expected both field errors in the message, got %q", msg)
	}
}
