package credential

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash(context.Background(), "correct horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plain text")
	}
	if !h.Matches(hash, "correct horse") {
		t.Fatal("expected hash to match")
	}
	if h.Matches(hash, "wrong horse") {
		t.Fatal("expected mismatch for a different password")
	}
	if h.Matches("", "correct horse") {
		t.Fatal("empty hash must never match")
	}
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	t.Parallel()

	if got := NewBcryptHasher(0).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewBcryptHasher(bcrypt.MaxCost + 1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}

func TestBcryptHasherHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewBcryptHasher(bcrypt.MinCost).Hash(ctx, "correct horse"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
