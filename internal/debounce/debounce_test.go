package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBurstCollapsesIntoOneTrailingCall(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	d := New(100*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})
	defer d.Stop()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
	if d.Pending() {
		t.Fatal("expected nothing pending after the call")
	}
}

func TestSeparateBurstsRunSeparately(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	d := New(10*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})
	defer d.Stop()

	for burst := 0; burst < 2; burst++ {
		d.Trigger()
		d.Trigger()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("burst %d never ran", burst)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected two calls, got %d", got)
	}
}

func TestFlushRunsPendingCallImmediately(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })
	defer d.Stop()

	d.Flush()
	if calls.Load() != 0 {
		t.Fatal("flush without trigger must not run")
	}

	d.Trigger()
	d.Flush()
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected flush to run once, got %d", got)
	}
	d.Flush()
	if got := calls.Load(); got != 1 {
		t.Fatalf("second flush must be a no-op, got %d", got)
	}
}

func TestStopCancelsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(50 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no calls after stop, got %d", got)
	}
}

func TestStopWaitsForRunningCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	d := New(time.Millisecond, func() {
		close(started)
		<-release
		finished.Store(true)
	})

	d.Trigger()
	<-started
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	d.Stop()
	if !finished.Load() {
		t.Fatal("stop returned before the running call finished")
	}
}
