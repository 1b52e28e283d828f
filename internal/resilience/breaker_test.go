package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	if b.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", b.maxFailures)
	}
	if b.cooldown != 15*time.Second {
		t.Errorf("cooldown = %v, want 15s", b.cooldown)
	}
	if b.State() != BreakerClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveServiceFaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return ErrServerFault })
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	err := b.Execute(func() error {
		t.Fatal("fn must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_BadInputDoesNotTrip(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2})

	for i := 0; i < 10; i++ {
		_ = b.Execute(func() error { return ErrBadInput })
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed (4xx is not a health signal)", b.State())
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3})

	_ = b.Execute(func() error { return ErrTransientNetwork })
	_ = b.Execute(func() error { return ErrTransientNetwork })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return ErrTransientNetwork })
	_ = b.Execute(func() error { return ErrTransientNetwork })

	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_ProbeClosesOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 10 * time.Millisecond})

	_ = b.Execute(func() error { return ErrServerFault })
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	time.Sleep(15 * time.Millisecond)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", b.State())
	}

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Fatalf("state = %v, want closed after successful probe", b.State())
	}
}

func TestBreaker_ProbeReopensOnFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 10 * time.Millisecond})

	_ = b.Execute(func() error { return ErrServerFault })
	time.Sleep(15 * time.Millisecond)

	err := b.Execute(func() error { return ErrServerFault })
	if !errors.Is(err, ErrServerFault) {
		t.Fatalf("probe err = %v, want ErrServerFault", err)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("state = %v, want re-opened", b.State())
	}
}
