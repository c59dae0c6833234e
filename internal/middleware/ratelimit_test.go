package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("a") {
		t.Fatalf("request over limit should be rejected")
	}
	if !rl.Allow("b") {
		t.Fatalf("different key should be unaffected")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	current := time.Unix(0, 0)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return current })

	if !rl.Allow("a") {
		t.Fatalf("first request should be allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("second request in same window should be rejected")
	}

	current = current.Add(2 * time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("request after window reset should be allowed")
	}
}
