package loreforge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmbedRateLimitAllowsWithinBudget(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 0}}
	p := WithEmbedRateLimit(inner, EmbedRPM(10))

	start := time.Now()
	for i := 0; i < 5; i++ {
		if _, err := p.Embed(context.Background(), []string{"text"}); err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("5 calls under a 10 RPM budget took %v, should not block", elapsed)
	}
	if inner.calls != 5 {
		t.Errorf("inner calls = %d, want 5", inner.calls)
	}
}

func TestEmbedRateLimitBlocksOverBudget(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 0}}
	p := WithEmbedRateLimit(inner, EmbedRPM(2))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := p.Embed(ctx, []string{"text"}); err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
	}
	// Third call exceeds the window and must block until the context dies.
	_, err := p.Embed(ctx, []string{"text"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline while waiting for budget", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestEmbedRateLimitUnlimitedByDefault(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 0}}
	p := WithEmbedRateLimit(inner)

	for i := 0; i < 50; i++ {
		if _, err := p.Embed(context.Background(), []string{"text"}); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 50 {
		t.Errorf("inner calls = %d, want 50", inner.calls)
	}
}

func TestEmbedRateLimitDelegates(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 0, 0}}
	p := WithEmbedRateLimit(inner, EmbedRPM(60))
	if p.Name() != inner.Name() {
		t.Errorf("Name = %q", p.Name())
	}
	if p.Dimensions() != 3 {
		t.Errorf("Dimensions = %d, want 3", p.Dimensions())
	}
}
