package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts events within a trailing duration. An event exactly
// window old is still inside it.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

// Add records an event at now and returns the number of events in the window.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hits = append(w.hits, now)
	w.prune(now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.hits)
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if !hit.Before(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}
