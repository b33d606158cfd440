package awss

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/smartlight/internal/loop"
	"github.com/smazurov/smartlight/internal/metrics"
)

// ResetDelay is the grace period between requesting the reset report and
// rebooting.
const ResetDelay = 2000 * time.Millisecond

// Reporter tells the cloud a reset is happening.
type Reporter interface {
	ReportReset(ctx context.Context) error
}

// APClearer removes the stored access point configuration.
type APClearer interface {
	Clear() error
}

// Rebooter restarts the device.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Resetter performs the factory reset sequence.
type Resetter struct {
	reporter Reporter
	ap       APClearer
	rebooter Rebooter
	sched    loop.Scheduler
	delay    time.Duration
	logger   *slog.Logger

	// root bounds the report task and the reboot call.
	root context.Context
}

// ResetterOption configures a Resetter.
type ResetterOption func(*Resetter)

// WithDelay overrides ResetDelay.
func WithDelay(d time.Duration) ResetterOption {
	return func(r *Resetter) {
		r.delay = d
	}
}

// WithContext sets the context the report and reboot run under.
func WithContext(ctx context.Context) ResetterOption {
	return func(r *Resetter) {
		r.root = ctx
	}
}

// NewResetter creates a resetter.
func NewResetter(reporter Reporter, ap APClearer, rebooter Rebooter, sched loop.Scheduler, logger *slog.Logger, opts ...ResetterOption) *Resetter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resetter{
		reporter: reporter,
		ap:       ap,
		rebooter: rebooter,
		sched:    sched,
		delay:    ResetDelay,
		logger:   logger,
		root:     context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset spawns the reset report and schedules the AP config wipe and reboot
// after the grace delay. The reboot happens whether or not the report
// completes. Reset returns immediately.
func (r *Resetter) Reset() {
	r.logger.Warn("Factory reset requested", "delay", r.delay)
	metrics.RecordReset()

	go r.report()
	r.sched.PostDelayed(r.delay, r.finish)
}

func (r *Resetter) report() {
	ctx, cancel := context.WithTimeout(r.root, r.delay)
	defer cancel()

	if err := r.reporter.ReportReset(ctx); err != nil {
		r.logger.Warn("Reset report failed", "error", newError(OpReport, err))
		return
	}
	r.logger.Info("Reset reported")
}

func (r *Resetter) finish() {
	if err := r.ap.Clear(); err != nil {
		r.logger.Error("Failed to clear AP config", "error", newError(OpClear, err))
	} else {
		r.logger.Info("AP config cleared")
	}

	err := r.rebooter.Reboot(r.root)
	metrics.RecordReboot(err)
	if err != nil {
		r.logger.Error("Reboot failed", "error", newError(OpReboot, err))
	}
}
