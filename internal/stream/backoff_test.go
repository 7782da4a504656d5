package stream

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
		{100, 5 * time.Second},
		{-1, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		got := backoffDelay(tt.attempt, defaultBackoffBase, defaultBackoffCap)
		if got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelay_NonDecreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 64; attempt++ {
		d := backoffDelay(attempt, defaultBackoffBase, defaultBackoffCap)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		if d > defaultBackoffCap {
			t.Fatalf("delay exceeds cap at attempt %d: %v", attempt, d)
		}
		prev = d
	}
}
