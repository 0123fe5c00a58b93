package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	// 10 tokens per second, burst of 2
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow(1) // consume burst

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx, 1)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Wait returned too early")
	}
}

func TestLimiterPerMinute(t *testing.T) {
	if l := NewLimiterPerMinute(0, 5); l != nil {
		t.Fatal("expected nil limiter for a disabled budget")
	}
	var disabled *Limiter
	for i := 0; i < 100; i++ {
		if !disabled.Allow(1) {
			t.Fatal("nil limiter must never throttle")
		}
	}
	if err := disabled.Wait(context.Background(), 1); err != nil {
		t.Fatalf("nil limiter wait: %v", err)
	}

	l := NewLimiterPerMinute(60, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow(1) {
			t.Fatalf("expected burst token %d to be allowed", i)
		}
	}
	if l.Allow(1) {
		t.Error("expected limiter to throttle after the burst")
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent("BEGIN { x = 1 }")
	b := HashContent("BEGIN { x = 1 }")
	c := HashContent("BEGIN { x = 2 }")
	if a != b {
		t.Error("expected identical content to hash identically")
	}
	if a == c {
		t.Error("expected different content to hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
}

func TestHeapAllocMB(t *testing.T) {
	if got := HeapAllocMB(); got <= 0 {
		t.Errorf("expected a positive heap size, got %v", got)
	}
}
