package infra

import (
	"testing"
	"time"
)

func TestCooldownAllow(t *testing.T) {
	c := NewCooldown(time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	if !c.Allow("u1") {
		t.Fatal("first command refused")
	}
	if c.Allow("u1") {
		t.Fatal("second command allowed inside the window")
	}
	// Another caller has an independent window.
	if !c.Allow("u2") {
		t.Fatal("other caller refused")
	}

	now = now.Add(time.Second)
	if !c.Allow("u1") {
		t.Fatal("command refused after the window passed")
	}
}

func TestCooldownRemaining(t *testing.T) {
	c := NewCooldown(time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	if got := c.Remaining("u1"); got != 0 {
		t.Fatalf("fresh caller remaining = %s, want 0", got)
	}

	c.Allow("u1")
	now = now.Add(300 * time.Millisecond)
	if got := c.Remaining("u1"); got != 700*time.Millisecond {
		t.Fatalf("remaining = %s, want 700ms", got)
	}

	now = now.Add(time.Second)
	if got := c.Remaining("u1"); got != 0 {
		t.Fatalf("expired remaining = %s, want 0", got)
	}
}

func TestCooldownDisabled(t *testing.T) {
	c := NewCooldown(0)
	for i := 0; i < 5; i++ {
		if !c.Allow("u1") {
			t.Fatal("disabled cooldown refused a command")
		}
	}
}

func TestCooldownPurge(t *testing.T) {
	c := NewCooldown(time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Allow("u1")
	c.Allow("u2")
	now = now.Add(2 * time.Second)
	c.Allow("u3")

	c.Purge()
	c.mu.Lock()
	n := len(c.last)
	c.mu.Unlock()
	if n != 1 {
		t.Errorf("entries after purge = %d, want 1", n)
	}
}
