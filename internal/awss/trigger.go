// Package awss starts Wi-Fi provisioning and performs factory resets.
package awss

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/smartlight/internal/metrics"
)

// Provisioner starts the provisioning procedure.
type Provisioner interface {
	Start(ctx context.Context) error
}

// IRQ re-arms the button's direct interrupt path.
type IRQ interface {
	ClearIRQ()
}

// Trigger starts provisioning on request.
type Trigger struct {
	provisioner Provisioner
	irq         IRQ
	logger      *slog.Logger

	running atomic.Bool
}

// NewTrigger creates a trigger. irq may be nil.
func NewTrigger(p Provisioner, irq IRQ, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{provisioner: p, irq: irq, logger: logger}
}

// Running reports whether provisioning was ever started. The flag is
// informational: a new request always starts provisioning again.
func (t *Trigger) Running() bool {
	return t.running.Load()
}

// Active starts provisioning and re-arms the button interrupt. A start
// failure is returned as *Error for the caller to log.
func (t *Trigger) Active(ctx context.Context) error {
	t.logger.Info("do_awss_active", "running", t.running.Load())
	t.running.Store(true)

	err := t.provisioner.Start(ctx)
	metrics.RecordAWSSStart(err != nil)

	if t.irq != nil {
		t.irq.ClearIRQ()
	}

	if err != nil {
		return newError(OpStart, err)
	}
	return nil
}
