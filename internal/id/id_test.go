package id

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestGenerator(t *testing.T) {
	g := New(0)
	tok, err := g.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if len(tok) != defaultTokenLength {
		t.Fatalf("expected %d chars got %d", defaultTokenLength, len(tok))
	}
	a, err := g.NewID(context.Background())
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	b, _ := g.NewID(context.Background())
	if a == uuid.Nil || a == b {
		t.Fatalf("expected distinct non-nil ids, got %s %s", a, b)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(8).Token(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if _, err := New(8).NewID(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
