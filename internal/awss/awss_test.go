package awss

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/loop"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingProvisioner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProvisioner) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

type countingIRQ struct {
	clears int
}

func (i *countingIRQ) ClearIRQ() { i.clears++ }

func TestTrigger_EveryCallStartsProvisioning(t *testing.T) {
	p := &countingProvisioner{}
	irq := &countingIRQ{}
	trig := NewTrigger(p, irq, testLogger())

	if trig.Running() {
		t.Fatal("running before first start")
	}

	for i := 0; i < 3; i++ {
		if err := trig.Active(context.Background()); err != nil {
			t.Fatalf("Active #%d failed: %v", i+1, err)
		}
	}

	if p.calls != 3 {
		t.Errorf("provisioner started %d times, want 3", p.calls)
	}
	if irq.clears != 3 {
		t.Errorf("ClearIRQ called %d times, want 3", irq.clears)
	}
	if !trig.Running() {
		t.Error("running flag not set")
	}
}

func TestTrigger_StartErrorIsTyped(t *testing.T) {
	sdkErr := errors.New("radio busy")
	irq := &countingIRQ{}
	trig := NewTrigger(&countingProvisioner{err: sdkErr}, irq, testLogger())

	err := trig.Active(context.Background())

	var awssErr *Error
	if !errors.As(err, &awssErr) {
		t.Fatalf("error = %T %v, want *awss.Error", err, err)
	}
	if awssErr.Op != OpStart {
		t.Errorf("Op = %q, want %q", awssErr.Op, OpStart)
	}
	if !errors.Is(err, sdkErr) {
		t.Error("error does not wrap the provisioner error")
	}
	if irq.clears != 1 {
		t.Error("IRQ must be re-armed even when start fails")
	}
}

func TestTrigger_StartErrorLeftToCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	trig := NewTrigger(&countingProvisioner{err: errors.New("radio busy")}, nil, logger)

	if err := trig.Active(context.Background()); err == nil {
		t.Fatal("expected the start error to be returned")
	}
	if strings.Contains(buf.String(), "radio busy") {
		t.Errorf("start error logged inside Active: %s", buf.String())
	}
}

func TestTrigger_NilIRQ(t *testing.T) {
	trig := NewTrigger(&countingProvisioner{}, nil, testLogger())
	if err := trig.Active(context.Background()); err != nil {
		t.Fatalf("Active failed: %v", err)
	}
}

// manualScheduler records delayed actions so the test can run them.
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *manualScheduler) Schedule(fn func()) {
	s.PostDelayed(0, fn)
}

func (s *manualScheduler) PostDelayed(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, fn)
}

func (s *manualScheduler) runAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

type blockingReporter struct {
	started chan struct{}
	err     error
}

func (r *blockingReporter) ReportReset(ctx context.Context) error {
	close(r.started)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return ctx.Err()
}

type fakeAP struct {
	cleared int
	err     error
}

func (a *fakeAP) Clear() error {
	a.cleared++
	return a.err
}

type fakeRebooter struct {
	mu      sync.Mutex
	reboots int
	err     error
}

func (r *fakeRebooter) Reboot(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reboots++
	return r.err
}

func TestResetter_RebootsAfterGraceEvenIfReportHangs(t *testing.T) {
	reporter := &blockingReporter{started: make(chan struct{})}
	ap := &fakeAP{}
	rebooter := &fakeRebooter{}
	sched := &manualScheduler{}

	r := NewResetter(reporter, ap, rebooter, sched, testLogger())
	r.Reset()

	select {
	case <-reporter.started:
	case <-time.After(time.Second):
		t.Fatal("reset report was not spawned")
	}

	if len(sched.delays) != 1 || sched.delays[0] != 2000*time.Millisecond {
		t.Fatalf("scheduled delays = %v, want [2s]", sched.delays)
	}
	if rebooter.reboots != 0 {
		t.Fatal("rebooted before the grace delay elapsed")
	}

	sched.runAll()

	if ap.cleared != 1 {
		t.Errorf("AP config cleared %d times, want 1", ap.cleared)
	}
	if rebooter.reboots != 1 {
		t.Errorf("rebooted %d times, want 1", rebooter.reboots)
	}
}

func TestResetter_RebootsWhenClearFails(t *testing.T) {
	reporter := &blockingReporter{started: make(chan struct{}), err: errors.New("offline")}
	rebooter := &fakeRebooter{}
	sched := &manualScheduler{}

	r := NewResetter(reporter, &fakeAP{err: errors.New("read-only fs")}, rebooter, sched, testLogger(),
		WithDelay(10*time.Millisecond))
	r.Reset()
	<-reporter.started

	if sched.delays[0] != 10*time.Millisecond {
		t.Errorf("delay = %v, want 10ms", sched.delays[0])
	}
	sched.runAll()

	if rebooter.reboots != 1 {
		t.Errorf("rebooted %d times, want 1", rebooter.reboots)
	}
}

func TestResetter_RebootErrorIsLogged(t *testing.T) {
	reporter := &blockingReporter{started: make(chan struct{}), err: errors.New("offline")}
	rebooter := &fakeRebooter{err: errors.New("dbus down")}
	sched := &manualScheduler{}

	r := NewResetter(reporter, &fakeAP{}, rebooter, sched, testLogger())
	r.Reset()
	<-reporter.started
	sched.runAll()

	if rebooter.reboots != 1 {
		t.Errorf("rebooted %d times, want 1", rebooter.reboots)
	}
}

type recordingBus struct {
	mu    sync.Mutex
	codes []events.LinkkitCode
}

func (b *recordingBus) Publish(ev events.Event) {
	if e, ok := ev.(events.LinkkitEvent); ok {
		b.mu.Lock()
		b.codes = append(b.codes, e.Code)
		b.mu.Unlock()
	}
}

// exitRecorder collects helper results passed to the exit handler.
type exitRecorder struct {
	mu      sync.Mutex
	results []error
}

func (r *exitRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, err)
}

func (r *exitRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.results...)
}

func (b *recordingBus) snapshot() []events.LinkkitCode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.LinkkitCode(nil), b.codes...)
}

func TestCommandProvisioner(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		wantExit  bool
		exitErr   bool
		wantCodes []events.LinkkitCode
	}{
		{"no command", "", false, false, []events.LinkkitCode{events.AWSSStart, events.AWSSEnable}},
		{"success", "true", true, false, []events.LinkkitCode{events.AWSSStart, events.AWSSEnable}},
		{"exit code", "false", true, true, []events.LinkkitCode{events.AWSSStart}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &recordingBus{}
			exits := &exitRecorder{}
			p := NewCommandProvisioner(tt.command, time.Second, bus, testLogger(), WithExitHandler(exits.record))

			if err := p.Start(context.Background()); err != nil {
				t.Fatalf("Start error = %v", err)
			}
			p.Wait()

			results := exits.all()
			if !tt.wantExit {
				if len(results) != 0 {
					t.Fatalf("exit handler called for %q: %v", tt.command, results)
				}
			} else {
				if len(results) != 1 {
					t.Fatalf("exit handler called %d times, want 1", len(results))
				}
				if (results[0] != nil) != tt.exitErr {
					t.Errorf("helper result = %v, want error %v", results[0], tt.exitErr)
				}
			}

			codes := bus.snapshot()
			if len(codes) != len(tt.wantCodes) {
				t.Fatalf("codes = %v, want %v", codes, tt.wantCodes)
			}
			for i := range tt.wantCodes {
				if codes[i] != tt.wantCodes[i] {
					t.Errorf("codes[%d] = %v, want %v", i, codes[i], tt.wantCodes[i])
				}
			}
		})
	}
}

func TestCommandProvisioner_InvalidCommandFailsFast(t *testing.T) {
	for _, command := range []string{"/nonexistent/awss-helper --start", `helper "unterminated`} {
		bus := &recordingBus{}
		p := NewCommandProvisioner(command, time.Second, bus, testLogger())

		if err := p.Start(context.Background()); err == nil {
			t.Errorf("Start(%q) succeeded, want an error", command)
		}
		p.Wait()
		if codes := bus.snapshot(); len(codes) != 1 || codes[0] != events.AWSSStart {
			t.Errorf("codes = %v, want only AWSSStart", codes)
		}
	}
}

func TestCommandProvisioner_StartReturnsBeforeHelperExits(t *testing.T) {
	bus := &recordingBus{}
	exits := &exitRecorder{}
	p := NewCommandProvisioner("sleep 5", 100*time.Millisecond, bus, testLogger(), WithExitHandler(exits.record))

	begin := time.Now()
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 50*time.Millisecond {
		t.Errorf("Start blocked for %v", elapsed)
	}

	p.Wait()
	results := exits.all()
	if len(results) != 1 || !errors.Is(results[0], context.DeadlineExceeded) {
		t.Fatalf("helper results = %v, want deadline exceeded", results)
	}
	if codes := bus.snapshot(); len(codes) != 1 || codes[0] != events.AWSSStart {
		t.Errorf("codes = %v, want only AWSSStart", codes)
	}
}

type signallingRebooter struct {
	rebooted chan time.Time
}

func (r *signallingRebooter) Reboot(context.Context) error {
	r.rebooted <- time.Now()
	return nil
}

func TestResetNotDelayedByRunningProvisioning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	actions := loop.New(testLogger())
	go actions.Run(ctx)

	p := NewCommandProvisioner("sleep 5", 5*time.Second, &recordingBus{}, testLogger())
	trig := NewTrigger(p, nil, testLogger())
	rebooter := &signallingRebooter{rebooted: make(chan time.Time, 1)}
	reporter := &blockingReporter{started: make(chan struct{})}
	r := NewResetter(reporter, &fakeAP{}, rebooter, actions, testLogger(),
		WithDelay(200*time.Millisecond), WithContext(ctx))

	actions.Schedule(func() {
		if err := trig.Active(ctx); err != nil {
			t.Errorf("Active failed: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)

	begin := time.Now()
	r.Reset()

	select {
	case at := <-rebooter.rebooted:
		if gap := at.Sub(begin); gap > time.Second {
			t.Errorf("reboot came %v after reset, want about 200ms", gap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reboot did not happen while the provisioning helper was running")
	}

	cancel()
	p.Wait()
}

func TestError(t *testing.T) {
	cause := errors.New("boom")
	err := newError(OpReboot, cause)
	if err.Error() != "awss reboot: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap does not expose the cause")
	}
}
