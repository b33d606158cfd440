package led

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Default blink periods.
const (
	DefaultOKPeriod   = 800 * time.Millisecond
	DefaultFailPeriod = 300 * time.Millisecond
)

// Mode is the indicator's blink pattern.
type Mode int

// Indicator modes.
const (
	ModeSteady Mode = iota // output held high, no blinking
	ModeOK                 // network attached
	ModeFail               // no network
)

func (m Mode) String() string {
	switch m {
	case ModeSteady:
		return "steady"
	case ModeOK:
		return "ok"
	case ModeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of the indicator.
type State struct {
	Mode       Mode          `json:"mode"`
	High       bool          `json:"high"`
	Period     time.Duration `json:"period"`
	Generation uint64        `json:"generation"`
}

type command struct {
	mode       Mode
	period     time.Duration
	periodOnly bool
}

// tick is delivered when an armed period elapses. gen identifies the blink
// chain that armed it.
type tick struct {
	gen uint64
}

// Indicator drives the Wi-Fi status LED. It runs as a single task that owns
// its state: mode changes arrive on a control channel, period expiries
// arrive as ticks from the timer service.
//
// A blink chain is never cancelled. When the mode changes, the old chain's
// next tick sees that it is stale, leaves the output at the current level
// (high until the new chain first fires) and does not re-arm.
type Indicator struct {
	pin      Pin
	after    func(time.Duration) <-chan time.Time
	onChange func(State)
	logger   *slog.Logger

	commands chan command
	ticks    chan tick
	done     chan struct{}
	snapshot atomic.Pointer[State]

	// owned by Run
	state   State
	live    bool
	periods map[Mode]time.Duration
}

// IndicatorOption configures an Indicator.
type IndicatorOption func(*Indicator)

// WithAfter replaces the timer service (time.After by default).
func WithAfter(after func(time.Duration) <-chan time.Time) IndicatorOption {
	return func(i *Indicator) {
		i.after = after
	}
}

// WithOnChange registers a callback invoked from the indicator task after
// every state change.
func WithOnChange(fn func(State)) IndicatorOption {
	return func(i *Indicator) {
		i.onChange = fn
	}
}

// NewIndicator creates an indicator for pin. The LED is assumed to start
// high, which is how the pin is opened at boot.
func NewIndicator(pin Pin, logger *slog.Logger, opts ...IndicatorOption) *Indicator {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Indicator{
		pin:      pin,
		after:    time.After,
		logger:   logger,
		commands: make(chan command, 16),
		ticks:    make(chan tick, 4),
		done:     make(chan struct{}),
		state:    State{Mode: ModeSteady, High: true},
		periods: map[Mode]time.Duration{
			ModeOK:   DefaultOKPeriod,
			ModeFail: DefaultFailPeriod,
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	i.publish()
	return i
}

// Blink switches the indicator to mode, toggling every period. Requesting
// the mode that is already blinking only updates its period. ModeSteady
// stops blinking on the pending chain's next tick.
func (i *Indicator) Blink(mode Mode, period time.Duration) {
	i.send(command{mode: mode, period: period})
}

// SetPeriod changes the period used for mode from its next re-arm on.
func (i *Indicator) SetPeriod(mode Mode, period time.Duration) {
	i.send(command{mode: mode, period: period, periodOnly: true})
}

// State returns the latest snapshot.
func (i *Indicator) State() State {
	return *i.snapshot.Load()
}

func (i *Indicator) send(c command) {
	select {
	case i.commands <- c:
	case <-i.done:
	}
}

// Run processes commands and ticks until ctx is cancelled.
func (i *Indicator) Run(ctx context.Context) {
	defer close(i.done)

	i.logger.Debug("Indicator started", "mode", i.state.Mode.String())
	for {
		select {
		case <-ctx.Done():
			i.logger.Debug("Indicator stopped")
			return
		case c := <-i.commands:
			i.apply(ctx, c)
		case t := <-i.ticks:
			i.fire(ctx, t)
		}
	}
}

func (i *Indicator) apply(ctx context.Context, c command) {
	if c.period > 0 && c.mode != ModeSteady {
		i.periods[c.mode] = c.period
	}

	if c.periodOnly || (c.mode == i.state.Mode && i.live) {
		if c.mode == i.state.Mode && c.mode != ModeSteady {
			i.state.Period = i.periods[c.mode]
			i.publish()
		}
		return
	}

	i.state.Generation++
	i.state.Mode = c.mode
	i.state.High = true
	i.state.Period = i.periods[c.mode]

	i.logger.Info("Indicator mode changed", "mode", c.mode.String(), "period", i.state.Period)

	i.live = c.mode != ModeSteady
	i.publish()
	if i.live {
		i.arm(ctx)
	}
}

func (i *Indicator) fire(ctx context.Context, t tick) {
	if t.gen != i.state.Generation {
		// Superseded chain: settle the output and stop.
		i.write(i.state.High)
		return
	}

	i.state.High = !i.state.High
	i.write(i.state.High)
	i.publish()
	i.arm(ctx)
}

// arm schedules the next tick for the current chain.
func (i *Indicator) arm(ctx context.Context) {
	gen := i.state.Generation
	expired := i.after(i.state.Period)
	go func() {
		select {
		case <-expired:
			select {
			case i.ticks <- tick{gen: gen}:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

func (i *Indicator) write(high bool) {
	if err := i.pin.Set(high); err != nil {
		i.logger.Warn("Failed to drive LED", "pin", i.pin.Name(), "high", high, "error", err)
	}
}

func (i *Indicator) publish() {
	s := i.state
	i.snapshot.Store(&s)
	if i.onChange != nil {
		i.onChange(s)
	}
}
