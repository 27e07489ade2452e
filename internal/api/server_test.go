package api

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("client-a") {
		t.Error("request over the limit should be denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if !rl.Allow("client-a") {
		t.Fatal("first request for client-a should be allowed")
	}
	if !rl.Allow("client-b") {
		t.Error("client-b has its own budget")
	}
	if rl.Allow("client-a") {
		t.Error("client-a is over its budget")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow("client-a") {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.Allow("client-a") {
		t.Error("request after the window expires should be allowed")
	}
}
