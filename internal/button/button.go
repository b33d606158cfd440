// Package button turns the provisioning button's GPIO edges into key events.
package button

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/loop"
	gpiocdev "github.com/warthog618/go-gpiocdev"
)

// Defaults.
const (
	DefaultLongPress = 2 * time.Second
	DefaultDebounce  = 30 * time.Millisecond
	DefaultIRQDelay  = 1000 * time.Millisecond
)

// Config describes the button line and press handling.
type Config struct {
	Chip      string
	Offset    int
	LongPress time.Duration
	Debounce  time.Duration

	// IRQTrigger routes presses straight to the activator instead of
	// publishing key events.
	IRQTrigger bool
	IRQDelay   time.Duration
}

// Button watches one input line.
type Button struct {
	cfg      Config
	bus      events.Publisher
	sched    loop.Scheduler
	logger   *slog.Logger
	activate func()

	mu        sync.Mutex
	pressed   bool
	pressedAt time.Duration

	irqArmed atomic.Bool
	line     *gpiocdev.Line
}

// New creates a button. Call Open to start receiving edges.
func New(cfg Config, bus events.Publisher, sched loop.Scheduler, logger *slog.Logger) *Button {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.IRQDelay <= 0 {
		cfg.IRQDelay = DefaultIRQDelay
	}
	b := &Button{cfg: cfg, bus: bus, sched: sched, logger: logger}
	b.irqArmed.Store(true)
	return b
}

// SetActivator sets the action the IRQ path posts.
func (b *Button) SetActivator(fn func()) {
	b.activate = fn
}

// Open requests the line. The button is wired active-low with a pull-up.
func (b *Button) Open() error {
	line, err := gpiocdev.RequestLine(b.cfg.Chip, b.cfg.Offset,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(b.cfg.Debounce),
		gpiocdev.WithConsumer("smartlight-button"),
		gpiocdev.WithEventHandler(b.onLineEvent))
	if err != nil {
		return fmt.Errorf("request button %s line %d: %w", b.cfg.Chip, b.cfg.Offset, err)
	}
	b.line = line
	b.logger.Info("Button ready", "chip", b.cfg.Chip, "offset", b.cfg.Offset, "irq_trigger", b.cfg.IRQTrigger)
	return nil
}

// Close releases the line.
func (b *Button) Close() error {
	if b.line == nil {
		return nil
	}
	return b.line.Close()
}

// ClearIRQ re-arms the IRQ path after a triggered press.
func (b *Button) ClearIRQ() {
	b.irqArmed.Store(true)
}

func (b *Button) onLineEvent(evt gpiocdev.LineEvent) {
	// Active-low: a rising logical edge is a press.
	b.handleEdge(evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
}

// handleEdge processes one debounced edge. ts is a monotonic timestamp.
func (b *Button) handleEdge(pressed bool, ts time.Duration) {
	if b.cfg.IRQTrigger {
		if pressed {
			b.irq()
		}
		return
	}

	b.mu.Lock()
	if pressed {
		b.pressed = true
		b.pressedAt = ts
		b.mu.Unlock()
		return
	}
	if !b.pressed {
		b.mu.Unlock()
		return
	}
	held := ts - b.pressedAt
	b.pressed = false
	b.mu.Unlock()

	value := events.KeyClick
	if held >= b.cfg.LongPress {
		value = events.KeyLongClick
	}
	b.logger.Debug("Button released", "held", held, "value", value.String())
	b.bus.Publish(events.KeyEvent{Code: events.KeyCodeBoot, Value: value, Timestamp: events.Now()})
}

// irq disables itself until ClearIRQ and posts the activator.
func (b *Button) irq() {
	if !b.irqArmed.CompareAndSwap(true, false) {
		return
	}
	if b.activate == nil {
		b.logger.Warn("Button IRQ fired with no activator")
		return
	}
	b.logger.Info("Button IRQ", "delay", b.cfg.IRQDelay)
	b.sched.PostDelayed(b.cfg.IRQDelay, b.activate)
}

// Disabled stands in for the button when none is configured.
type Disabled struct{}

// ClearIRQ does nothing.
func (Disabled) ClearIRQ() {}
