package usecase

import (
	"testing"
	"time"
)

func TestStaggerDeterministic(t *testing.T) {
	t.Parallel()

	window := 10 * time.Minute
	first := Stagger(7, 20, window)
	second := Stagger(7, 20, window)

	if first != second {
		t.Fatalf("expected identical delays, got %v and %v", first, second)
	}
}

func TestStaggerMonotonic(t *testing.T) {
	t.Parallel()

	window := 10 * time.Minute
	total := 13

	prev := time.Duration(-1)
	for i := 0; i < total; i++ {
		delay := Stagger(i, total, window)
		if delay < prev {
			t.Fatalf("delay decreased at index %d: %v < %v", i, delay, prev)
		}
		if delay >= window {
			t.Fatalf("delay %v at index %d exceeds window %v", delay, i, window)
		}
		prev = delay
	}
}

func TestStaggerFirstMonitorRunsImmediately(t *testing.T) {
	t.Parallel()

	if delay := Stagger(0, 50, time.Hour); delay != 0 {
		t.Fatalf("expected zero delay for index 0, got %v", delay)
	}
}

func TestStaggerDegenerateInputs(t *testing.T) {
	t.Parallel()

	if delay := Stagger(3, 1, time.Minute); delay != 0 {
		t.Fatalf("single monitor must not wait, got %v", delay)
	}
	if delay := Stagger(2, 5, 0); delay != 0 {
		t.Fatalf("zero window must not wait, got %v", delay)
	}
	if delay := Stagger(9, 4, time.Minute); delay >= time.Minute {
		t.Fatalf("clamped index must stay inside the window, got %v", delay)
	}
}
