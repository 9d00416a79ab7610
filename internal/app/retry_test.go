package app

import (
	"testing"
	"time"
)

func TestBackoff_DefaultIsImmediateAndUnlimited(t *testing.T) {
	b := newBackoff(DefaultRetryPolicy())

	for i := 0; i < 100; i++ {
		delay, ok := b.Next()
		if !ok || delay != 0 {
			t.Fatalf("Next() #%d = %v, %v; want 0, true", i, delay, ok)
		}
	}
}

func TestBackoff_Disabled(t *testing.T) {
	b := newBackoff(RetryPolicy{})

	if _, ok := b.Next(); ok {
		t.Error("Next() ok = true for disabled policy")
	}
}

func TestBackoff_MaxAttempts(t *testing.T) {
	b := newBackoff(RetryPolicy{Enabled: true, MaxAttempts: 3})

	for i := 0; i < 3; i++ {
		if _, ok := b.Next(); !ok {
			t.Fatalf("Next() #%d ok = false, want true", i)
		}
	}
	if _, ok := b.Next(); ok {
		t.Error("Next() beyond limit ok = true")
	}

	b.Reset()
	if _, ok := b.Next(); !ok {
		t.Error("Next() after Reset ok = false")
	}
}

func TestBackoff_ExponentialWithCap(t *testing.T) {
	b := newBackoff(RetryPolicy{
		Enabled:      true,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	})
	b.jitter = func() float64 { return 0.5 }

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		500 * time.Millisecond,
	}
	for i, w := range want {
		got, ok := b.Next()
		if !ok || got != w {
			t.Errorf("Next() #%d = %v, %v; want %v", i, got, ok, w)
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := newBackoff(RetryPolicy{Enabled: true, InitialDelay: time.Second, MaxDelay: time.Second})

	for i := 0; i < 50; i++ {
		got, _ := b.Next()
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("Next() = %v, want within ±20%% of 1s", got)
		}
	}
}
