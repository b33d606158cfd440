package led

import "log/slog"

// noop stands in for a pin the host does not have. Writes are logged at
// debug so the blink chain can still be traced.
type noop struct {
	name   string
	logger *slog.Logger
}

func newNoop(name string, logger *slog.Logger) *noop {
	if logger == nil {
		logger = slog.Default()
	}
	return &noop{name: name, logger: logger.With("pin", name)}
}

func (n *noop) Name() string { return n.name }

func (n *noop) Set(high bool) error {
	n.logger.Debug("LED write skipped", "level", levelValue(high))
	return nil
}

func (n *noop) Close() error { return nil }
