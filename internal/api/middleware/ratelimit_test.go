package middleware

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)
	for i := 0; i < 5; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("sixth request should be rejected")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	if !limiter.Allow("a") {
		t.Fatal("first key should be allowed")
	}
	if !limiter.Allow("b") {
		t.Fatal("second key should be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("repeat on first key should be rejected")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)
	if !limiter.Allow("k") || !limiter.Allow("k") {
		t.Fatal("initial requests should be allowed")
	}
	if limiter.Allow("k") {
		t.Fatal("over-limit request should be rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow("k") {
		t.Fatal("request after window should be allowed")
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	limiter := NewRateLimiter(100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%3)
			for j := 0; j < 50; j++ {
				limiter.Allow(key)
			}
		}(i)
	}
	wg.Wait()
}
