package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("clients are limited independently")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("retry after = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("window should have reset")
	}

	now = now.Add(10 * time.Minute)
	rl.Allow("c")
	if _, ok := rl.buckets["b"]; ok {
		t.Fatal("stale bucket not cleaned up")
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientAddr(r); got != "10.0.0.1" {
		t.Fatalf("addr = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientAddr(r); got != "203.0.113.9" {
		t.Fatalf("forwarded addr = %q", got)
	}
}
