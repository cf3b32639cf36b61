package ratelimit

import (
	"strings"
	"testing"
	"time"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGovernor(limits Limits) (*Governor, *fakeClock) {
	g := NewGovernor(limits, nil)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	g.now = clock.now
	return g, clock
}

func TestAdmitUnderCeiling(t *testing.T) {
	g, _ := newTestGovernor(DefaultLimits())

	for i := 0; i < 10; i++ {
		d := g.Admit(KindMessage, "user1", "")
		if !d.Allowed {
			t.Fatalf("request %d denied under ceiling", i+1)
		}
		g.Record(KindMessage, "user1", "")
	}
}

func TestDenyOverCeiling(t *testing.T) {
	g, clock := newTestGovernor(DefaultLimits())

	for i := 0; i < 10; i++ {
		g.Record(KindMessage, "user1", "")
		clock.advance(time.Second)
	}

	d := g.Admit(KindMessage, "user1", "")
	if d.Allowed {
		t.Fatal("11th request should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("expected positive retry_after, got %v", d.RetryAfter)
	}
	// Oldest entry is 10s old against a 60s window.
	if want := 50 * time.Second; d.RetryAfter != want {
		t.Errorf("retry_after = %v, want %v", d.RetryAfter, want)
	}

	// Past the window the same call succeeds again.
	clock.advance(51 * time.Second)
	if d := g.Admit(KindMessage, "user1", ""); !d.Allowed {
		t.Errorf("request after window should be allowed, got retry_after %v", d.RetryAfter)
	}
}

func TestAdmitIsPureCheck(t *testing.T) {
	g, _ := newTestGovernor(DefaultLimits())

	for i := 0; i < 10; i++ {
		g.Record(KindMessage, "user1", "")
	}

	// Repeated denied checks must not change state.
	for i := 0; i < 100; i++ {
		if d := g.Admit(KindMessage, "user1", ""); d.Allowed {
			t.Fatal("expected denial")
		}
	}

	remaining, _ := g.Remaining(KindMessage, "user1")
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestDeniedAttemptsNeverRecorded(t *testing.T) {
	g, _ := newTestGovernor(DefaultLimits())

	// 15 attempts against a 10/60s ceiling: the last 5 are denied and must
	// not count, so the recorded total stays at 10.
	admitted := 0
	for i := 0; i < 15; i++ {
		d := g.Admit(KindMessage, "user1", "guild1")
		if d.Allowed {
			g.Record(KindMessage, "user1", "guild1")
			admitted++
		}
	}

	if admitted != 10 {
		t.Errorf("admitted = %d, want 10", admitted)
	}
	if got := len(g.users[KindMessage]["user1"]); got != 10 {
		t.Errorf("recorded user timestamps = %d, want 10", got)
	}
	if got := len(g.guilds[KindMessage]["guild1"]); got != 10 {
		t.Errorf("recorded guild timestamps = %d, want 10", got)
	}
}

func TestGuildCeiling(t *testing.T) {
	g, _ := newTestGovernor(DefaultLimits())

	// 30 messages from different users exhaust the 30/60s guild ceiling
	// while every individual user stays under their own.
	for i := 0; i < 30; i++ {
		user := string(rune('a' + i%26))
		d := g.Admit(KindMessage, user+"x", "guild1")
		if !d.Allowed {
			t.Fatalf("request %d denied before guild ceiling reached", i+1)
		}
		g.Record(KindMessage, user+"x", "guild1")
	}

	d := g.Admit(KindMessage, "fresh_user", "guild1")
	if d.Allowed {
		t.Fatal("expected guild-wide denial")
	}
	if !strings.Contains(d.Limit, "server-wide") {
		t.Errorf("denial should name the server-wide ceiling, got %q", d.Limit)
	}

	// Same user without guild scope is unaffected.
	if d := g.Admit(KindMessage, "fresh_user", ""); !d.Allowed {
		t.Error("user without guild scope should be admitted")
	}
}

func TestKindsAreIndependent(t *testing.T) {
	g, _ := newTestGovernor(DefaultLimits())

	for i := 0; i < 5; i++ {
		g.Record(KindCommand, "user1", "")
	}
	if d := g.Admit(KindCommand, "user1", ""); d.Allowed {
		t.Error("command ceiling should be exhausted")
	}
	if d := g.Admit(KindMessage, "user1", ""); !d.Allowed {
		t.Error("message ceiling must be independent of command ceiling")
	}
}

func TestRemaining(t *testing.T) {
	g, clock := newTestGovernor(DefaultLimits())

	remaining, _ := g.Remaining(KindImage, "user1")
	if remaining != 3 {
		t.Errorf("remaining = %d, want 3", remaining)
	}

	g.Record(KindImage, "user1", "")
	g.Record(KindImage, "user1", "")

	remaining, reset := g.Remaining(KindImage, "user1")
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
	if want := clock.t.Add(300 * time.Second); !reset.Equal(want) {
		t.Errorf("reset = %v, want %v", reset, want)
	}
}

func TestFormatRetryAfter(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30.0 seconds"},
		{90 * time.Second, "1.5 minutes"},
		{2 * time.Hour, "2.0 hours"},
	}
	for _, tt := range tests {
		if got := FormatRetryAfter(tt.d); got != tt.want {
			t.Errorf("FormatRetryAfter(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
