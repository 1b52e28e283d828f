package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGuard_SerialCallsAllPass(t *testing.T) {
	g := NewGuard()
	for i := 0; i < 3; i++ {
		if err := g.Do(OpSubmitAnswer, func() error { return nil }); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
}

func TestGuard_SecondCallRejectedWhileFirstInFlight(t *testing.T) {
	g := NewGuard()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	go func() {
		_ = g.Do(OpSubmitAnswer, func() error {
			calls.Add(1)
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	err := g.Do(OpSubmitAnswer, func() error {
		calls.Add(1)
		return nil
	})
	if !errors.Is(err, ErrInFlight) {
		t.Fatalf("err = %v, want ErrInFlight", err)
	}
	close(release)

	if got := calls.Load(); got != 1 {
		t.Errorf("fn invocations = %d, want exactly 1", got)
	}
}

func TestGuard_DifferentKindsIndependent(t *testing.T) {
	g := NewGuard()
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Do(OpSubmitAnswer, func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	if err := g.Do(OpNextQuestion, func() error { return nil }); err != nil {
		t.Errorf("different kind blocked: %v", err)
	}
	close(release)
}

func TestGuard_ReleasedOnError(t *testing.T) {
	g := NewGuard()
	fail := errors.New("boom")
	if err := g.Do(OpStart, func() error { return fail }); !errors.Is(err, fail) {
		t.Fatalf("err = %v, want boom", err)
	}
	if g.InFlight(OpStart) {
		t.Fatal("lock still held after error return")
	}
	if err := g.Do(OpStart, func() error { return nil }); err != nil {
		t.Fatalf("subsequent call refused: %v", err)
	}
}

func TestGuard_ReleasedOnPanic(t *testing.T) {
	g := NewGuard()
	func() {
		defer func() { _ = recover() }()
		_ = g.Do(OpStart, func() error { panic("mid-flight") })
	}()
	if g.InFlight(OpStart) {
		t.Fatal("lock still held after panic")
	}
}

func TestGuard_RapidConcurrentCallsIssueOne(t *testing.T) {
	g := NewGuard()
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = g.Do(OpSubmitAnswer, func() error {
			calls.Add(1)
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	// Every call fired while the first is still in flight must be refused.
	var wg sync.WaitGroup
	errs := make([]error, 9)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = g.Do(OpSubmitAnswer, func() error {
				calls.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(release)

	if got := calls.Load(); got != 1 {
		t.Fatalf("network calls = %d, want exactly 1", got)
	}
	for i, err := range errs {
		if !errors.Is(err, ErrInFlight) {
			t.Errorf("call %d: err = %v, want ErrInFlight", i, err)
		}
	}
}
