package config

import (
	"testing"
	"time"
)

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SURVEYHUB_TEST_INT", "not-a-number")

	if got := getEnvInt("SURVEYHUB_TEST_INT", 42); got != 42 {
		t.Fatalf("got %d, want fallback 42", got)
	}

	t.Setenv("SURVEYHUB_TEST_INT", "7")

	if got := getEnvInt("SURVEYHUB_TEST_INT", 42); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SURVEYHUB_TEST_DUR", "soon")

	if got := getEnvDuration("SURVEYHUB_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("got %v, want fallback 1m", got)
	}

	t.Setenv("SURVEYHUB_TEST_DUR", "250ms")

	if got := getEnvDuration("SURVEYHUB_TEST_DUR", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("got %v, want 250ms", got)
	}
}
