package ratelimiter

import (
	"net/http/httptest"
	"testing"
)

func TestAllowConsumesBurst(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-1") {
			t.Fatalf("request %d denied inside the burst", i+1)
		}
	}
	if rl.Allow("client-1") {
		t.Error("request allowed after the burst was spent")
	}
}

func TestSourcesAreIndependent(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 1})

	if !rl.Allow("client-1") {
		t.Fatal("first request for client-1 denied")
	}
	if !rl.Allow("client-2") {
		t.Error("client-2 throttled by client-1's bucket")
	}
}

func TestRemaining(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, MaxBurst: 5})

	rl.Allow("client-1")
	rl.Allow("client-1")

	if got := rl.Remaining("client-1"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
}

func TestRefillKeepsFractionUnderFrequentChecks(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 2, MaxBurst: 2}).(*RateLimiter)

	// Burst spent at t=0; the source retries every 100ms, always under
	// the 500ms whole-token interval. The fraction must keep accruing.
	state := bucketState{tokens: 0, lastFill: 0}
	var now int64
	for now < 500 {
		now += 100
		state = rl.refillTokens(state, now)
	}
	if state.tokens != 1 {
		t.Fatalf("tokens = %d after 500ms at 2/s, want 1", state.tokens)
	}
}

func TestRefillKeepsRemainderPastWholeTokens(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 2, MaxBurst: 5}).(*RateLimiter)

	// 700ms at 2 tokens/s accrues one whole token; the 200ms remainder
	// stays behind in lastFill.
	state := rl.refillTokens(bucketState{tokens: 0, lastFill: 0}, 700)
	if state.tokens != 1 {
		t.Fatalf("tokens = %d, want 1", state.tokens)
	}
	if state.lastFill != 500 {
		t.Errorf("lastFill = %d, want 500", state.lastFill)
	}
}

func TestGetSourceKey(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := rl.GetSourceKey(r); got != "10.0.0.1:1234" {
		t.Errorf("GetSourceKey = %q, want the remote address", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := rl.GetSourceKey(r); got != "203.0.113.7" {
		t.Errorf("GetSourceKey = %q, want the forwarded address", got)
	}
}
