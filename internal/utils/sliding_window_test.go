package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestSlidingWindowKeepsBoundary(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	start := time.Unix(1_700_000_000, 0)

	window.Add(start)
	if count := window.Add(start.Add(10 * time.Second)); count != 2 {
		t.Fatalf("entry exactly at the boundary must count, got %d", count)
	}
	if count := window.Add(start.Add(10*time.Second + time.Nanosecond)); count != 2 {
		t.Fatalf("entry strictly older than the window must drop, got %d", count)
	}
}

func TestSlidingWindowMatchesNaiveCount(t *testing.T) {
	window := NewSlidingWindow(5 * time.Second)
	start := time.Unix(1_700_000_000, 0)
	offsets := []time.Duration{0, 1, 2, 5, 6, 6, 11, 12, 17, 30}

	var seen []time.Time
	for _, offset := range offsets {
		now := start.Add(offset * time.Second)
		seen = append(seen, now)

		want := 0
		for _, ts := range seen {
			if now.Sub(ts) <= 5*time.Second {
				want++
			}
		}
		if got := window.Add(now); got != want {
			t.Fatalf("at +%ds: expected %d, got %d", offset, want, got)
		}
	}
}
