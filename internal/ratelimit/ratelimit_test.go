package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestFloodGate_Burst(t *testing.T) {
	g := NewFloodGate(time.Hour, 2)

	if !g.Allow() || !g.Allow() {
		t.Fatal("expected the first two lines to pass the burst")
	}
	if g.Allow() {
		t.Fatal("third line passed, want it throttled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); err == nil {
		t.Fatal("Wait() returned nil while throttled for an hour")
	}
}

func TestFloodGate_Disabled(t *testing.T) {
	g := NewFloodGate(0, 0)
	for i := 0; i < 100; i++ {
		if err := g.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() #%d error = %v", i, err)
		}
	}
}

func TestFloodGate_Spacing(t *testing.T) {
	interval := 30 * time.Millisecond
	g := NewFloodGate(interval, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := g.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval-5*time.Millisecond {
		t.Errorf("three lines took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCooldown(10 * time.Second)
	c.now = func() time.Time { return now }

	tests := []struct {
		name    string
		advance time.Duration
		nick    string
		command string
		want    bool
	}{
		{"first use", 0, "alice", "weather", true},
		{"immediate reuse", time.Second, "alice", "weather", false},
		{"nick is case-insensitive", 0, "ALICE", "weather", false},
		{"other command", 0, "alice", "crypto", true},
		{"other nick", 0, "bob", "weather", true},
		{"after expiry", 10 * time.Second, "alice", "weather", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			got, _ := c.Acquire(tt.nick, tt.command)
			if got != tt.want {
				t.Errorf("Acquire(%q, %q) = %v, want %v", tt.nick, tt.command, got, tt.want)
			}
		})
	}
}

func TestCooldown_DisabledAndCleanup(t *testing.T) {
	off := NewCooldown(0)
	for i := 0; i < 3; i++ {
		if ok, _ := off.Acquire("a", "x"); !ok {
			t.Fatal("disabled cooldown refused a command")
		}
	}

	now := time.Unix(0, 0)
	c := NewCooldown(time.Second)
	c.now = func() time.Time { return now }
	c.Acquire("a", "x")
	c.Acquire("b", "x")
	now = now.Add(2 * time.Second)
	c.Cleanup()
	if c.Len() != 0 {
		t.Errorf("Len() after Cleanup = %d, want 0", c.Len())
	}
}
