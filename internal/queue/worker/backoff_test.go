package worker

import (
	"testing"
	"time"
)

func TestExponentialBackoffGrows(t *testing.T) {
	prev := time.Duration(0)

	for attempt := 0; attempt < 5; attempt++ {
		d := ExponentialBackoff(attempt)

		want := time.Duration(1<<uint(attempt)) * 2 * time.Second

		if d < want || d > want+250*time.Millisecond {
			t.Fatalf("attempt %d: got %v, want %v..%v", attempt, d, want, want+250*time.Millisecond)
		}
		if d <= prev {
			t.Fatalf("attempt %d: backoff %v did not grow past %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestExponentialBackoffCapped(t *testing.T) {
	d := ExponentialBackoff(30)

	cap := 5*time.Minute + 250*time.Millisecond

	if d > cap {
		t.Fatalf("backoff %v exceeds cap %v", d, cap)
	}
}
