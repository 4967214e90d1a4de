package core

import (
	"context"
	"testing"

	"github.com/hupe1980/runmesh/logging"
)

func TestToolContext_Defaults(t *testing.T) {
	tc := NewToolContext(context.Background())
	if err := tc.Validate(); err != nil {
		t.Fatalf("expected valid tool context: %v", err)
	}
	if tc.Depth() != 0 {
		t.Errorf("expected depth 0, got %d", tc.Depth())
	}
	if tc.CallerRunID() != "" {
		t.Errorf("expected no caller run id")
	}
	if tc.FunctionCallID() == "" {
		t.Errorf("expected generated function call id")
	}
	if tc.Logger() == nil {
		t.Errorf("expected logger")
	}
}

func TestToolContext_Options(t *testing.T) {
	tc := NewToolContext(context.Background(), func(o *ToolContextOptions) {
		o.Depth = 2
		o.CallerRunID = "run-1"
		o.FunctionCallID = "call-1"
		o.Logger = logging.NoOpLogger{}
	})
	if tc.Depth() != 2 || tc.CallerRunID() != "run-1" || tc.FunctionCallID() != "call-1" {
		t.Errorf("options not applied: depth=%d caller=%q call=%q", tc.Depth(), tc.CallerRunID(), tc.FunctionCallID())
	}
}

func TestToolContext_NilContext(t *testing.T) {
	//nolint:staticcheck // nil ctx is normalized
	tc := NewToolContext(nil)
	if tc.Context() == nil {
		t.Fatal("expected background context substitute")
	}
}

func TestToolContext_Child(t *testing.T) {
	parent := NewToolContext(context.Background(), func(o *ToolContextOptions) { o.Depth = 1 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	child := parent.Child(ctx, "run-42")
	if child.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", child.Depth())
	}
	if child.CallerRunID() != "run-42" {
		t.Errorf("caller run id mismatch")
	}
	if child.FunctionCallID() == parent.FunctionCallID() {
		t.Errorf("expected fresh function call id")
	}
	if child.Context() != ctx {
		t.Errorf("expected child context")
	}
}

func TestToolContext_ValidateNil(t *testing.T) {
	var tc *ToolContext
	if tc.Validate() == nil {
		t.Fatal("expected error for nil tool context")
	}
}
