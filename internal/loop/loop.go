// Package loop provides the device's cooperative action queue.
//
// All actions posted to a Loop run one at a time on the goroutine that
// called Run, in the order they became due. Actions should return quickly
// since a long action delays every action queued behind it.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultQueueSize = 64

// Scheduler is the subset of Loop used by components that post work.
type Scheduler interface {
	// Schedule queues fn to run as soon as possible without blocking the caller.
	Schedule(fn func())
	// PostDelayed queues fn to run once d has elapsed.
	PostDelayed(d time.Duration, fn func())
}

// Loop executes posted actions serially.
type Loop struct {
	actions chan func()
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger
}

// New creates a loop. Actions are accepted immediately but only run once Run
// is called.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		actions: make(chan func(), defaultQueueSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Schedule queues fn without blocking. When the queue is full the hand-off
// continues in the background until the loop accepts it or stops.
func (l *Loop) Schedule(fn func()) {
	select {
	case l.actions <- fn:
	case <-l.done:
	default:
		go l.enqueue(fn)
	}
}

// PostDelayed queues fn after d.
func (l *Loop) PostDelayed(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		l.enqueue(fn)
	})
}

func (l *Loop) enqueue(fn func()) {
	select {
	case l.actions <- fn:
	case <-l.done:
	}
}

// Run executes actions until ctx is cancelled. Actions still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })

	l.logger.Debug("Action loop started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Action loop stopped")
			return
		case fn := <-l.actions:
			l.run(fn)
		}
	}
}

// run executes a single action, keeping the loop alive if it panics.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Action panicked", "panic", r)
		}
	}()
	fn()
}
