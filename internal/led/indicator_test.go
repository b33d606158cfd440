package led

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeTimers is a timer service whose expiries are fired by the test.
type fakeTimers struct {
	mu    sync.Mutex
	armed []fakeTimer
}

type fakeTimer struct {
	d  time.Duration
	ch chan time.Time
}

func (f *fakeTimers) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.mu.Lock()
	f.armed = append(f.armed, fakeTimer{d: d, ch: ch})
	f.mu.Unlock()
	return ch
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

// waitArmed blocks until at least n timers were armed and returns the nth.
func (f *fakeTimers) waitArmed(t *testing.T, n int) fakeTimer {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.armed) >= n {
			ft := f.armed[n-1]
			f.mu.Unlock()
			return ft
		}
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for timer #%d (armed %d)", n, f.count())
	return fakeTimer{}
}

func (ft fakeTimer) fire() {
	ft.ch <- time.Now()
}

// recordingPin records every level written to it.
type recordingPin struct {
	mu     sync.Mutex
	levels []bool
	err    error
}

func (p *recordingPin) Name() string { return "wifi" }

func (p *recordingPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = append(p.levels, high)
	return p.err
}

func (p *recordingPin) Close() error { return nil }

func (p *recordingPin) waitWrites(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.levels) >= n {
			out := append([]bool(nil), p.levels...)
			p.mu.Unlock()
			return out
		}
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d LED writes", n)
	return nil
}

func startIndicator(t *testing.T, pin Pin, timers *fakeTimers) *Indicator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ind := NewIndicator(pin, logger, WithAfter(timers.After))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ind.Run(ctx)
	return ind
}

func TestIndicator_InitialState(t *testing.T) {
	ind := NewIndicator(&recordingPin{}, nil)

	s := ind.State()
	if s.Mode != ModeSteady || !s.High {
		t.Errorf("initial state = %+v, want steady/high", s)
	}
}

func TestIndicator_FailBlinkStartsHigh(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeFail, DefaultFailPeriod)

	first := timers.waitArmed(t, 1)
	if first.d != 300*time.Millisecond {
		t.Errorf("fail period = %v, want 300ms", first.d)
	}
	if s := ind.State(); s.Mode != ModeFail || !s.High {
		t.Errorf("state after arming = %+v, want fail/high", s)
	}

	first.fire()
	levels := pin.waitWrites(t, 1)
	if levels[0] {
		t.Error("first fail firing should drive the LED low")
	}
}

func TestIndicator_OKAlternates(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeOK, DefaultOKPeriod)

	const firings = 6
	for n := 1; n <= firings; n++ {
		ft := timers.waitArmed(t, n)
		if ft.d != 800*time.Millisecond {
			t.Fatalf("timer #%d period = %v, want 800ms", n, ft.d)
		}
		ft.fire()
		pin.waitWrites(t, n)
	}

	levels := pin.waitWrites(t, firings)
	for n, high := range levels {
		want := n%2 == 1 // low, high, low, ...
		if high != want {
			t.Fatalf("write #%d = %v, want %v (levels %v)", n, high, want, levels)
		}
	}

	if mode := ind.State().Mode; mode != ModeOK {
		t.Errorf("mode = %v, want ok", mode)
	}
}

func TestIndicator_FailToOKOnNextFiring(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeFail, DefaultFailPeriod)
	timers.waitArmed(t, 1).fire()
	pin.waitWrites(t, 1) // FAIL_LOW

	stale := timers.waitArmed(t, 2)

	ind.Blink(ModeOK, DefaultOKPeriod)
	ok := timers.waitArmed(t, 3)
	if ok.d != 800*time.Millisecond {
		t.Fatalf("ok period = %v, want 800ms", ok.d)
	}
	if mode := ind.State().Mode; mode != ModeOK {
		t.Fatalf("mode = %v, want ok", mode)
	}

	// The fail chain's pending firing settles the LED high and stops.
	stale.fire()
	levels := pin.waitWrites(t, 2)
	if !levels[1] {
		t.Error("stale fail firing should leave the LED high")
	}

	ok.fire()
	levels = pin.waitWrites(t, 3)
	if levels[2] {
		t.Error("first ok firing should drive the LED low")
	}

	next := timers.waitArmed(t, 4)
	if next.d != 800*time.Millisecond {
		t.Errorf("re-armed period = %v, want 800ms (fail chain must not re-arm)", next.d)
	}
	if mode := ind.State().Mode; mode != ModeOK {
		t.Errorf("mode = %v, want ok", mode)
	}
}

func TestIndicator_SteadyTerminatesChain(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeOK, DefaultOKPeriod)
	timers.waitArmed(t, 1).fire()
	pin.waitWrites(t, 1)
	pending := timers.waitArmed(t, 2)

	ind.Blink(ModeSteady, 0)
	pending.fire()

	levels := pin.waitWrites(t, 2)
	if !levels[1] {
		t.Error("steady should leave the LED high")
	}

	time.Sleep(20 * time.Millisecond)
	if n := timers.count(); n != 2 {
		t.Errorf("armed %d timers, want 2 (steady must not re-arm)", n)
	}
	if s := ind.State(); s.Mode != ModeSteady || !s.High {
		t.Errorf("state = %+v, want steady/high", s)
	}
}

func TestIndicator_SameModeDoesNotDoubleChain(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeOK, DefaultOKPeriod)
	first := timers.waitArmed(t, 1)
	gen := ind.State().Generation

	ind.Blink(ModeOK, DefaultOKPeriod)
	first.fire()
	pin.waitWrites(t, 1)
	timers.waitArmed(t, 2)

	time.Sleep(20 * time.Millisecond)
	if n := timers.count(); n != 2 {
		t.Errorf("armed %d timers, want 2", n)
	}
	if got := ind.State().Generation; got != gen {
		t.Errorf("generation = %d, want %d", got, gen)
	}
}

func TestIndicator_SetPeriodAppliesOnNextArm(t *testing.T) {
	pin := &recordingPin{}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeOK, DefaultOKPeriod)
	first := timers.waitArmed(t, 1)

	ind.SetPeriod(ModeOK, time.Second)
	// Wait until the command has been applied.
	deadline := time.Now().Add(time.Second)
	for ind.State().Period != time.Second && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	first.fire()
	if next := timers.waitArmed(t, 2); next.d != time.Second {
		t.Errorf("re-armed period = %v, want 1s", next.d)
	}
}

func TestIndicator_PinErrorKeepsBlinking(t *testing.T) {
	pin := &recordingPin{err: errors.New("line busy")}
	timers := &fakeTimers{}
	ind := startIndicator(t, pin, timers)

	ind.Blink(ModeFail, DefaultFailPeriod)
	timers.waitArmed(t, 1).fire()
	timers.waitArmed(t, 2).fire()
	timers.waitArmed(t, 3)

	pin.waitWrites(t, 2)
}

func TestIndicator_OnChange(t *testing.T) {
	changes := make(chan State, 8)
	timers := &fakeTimers{}
	ind := NewIndicator(&recordingPin{}, nil,
		WithAfter(timers.After),
		WithOnChange(func(s State) { changes <- s }))

	// Initial publish
	<-changes

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ind.Run(ctx)

	ind.Blink(ModeOK, DefaultOKPeriod)

	select {
	case s := <-changes:
		if s.Mode != ModeOK {
			t.Errorf("change mode = %v, want ok", s.Mode)
		}
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeSteady, "steady"},
		{ModeOK, "ok"},
		{ModeFail, "fail"},
		{Mode(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
