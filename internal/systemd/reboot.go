package systemd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/login1"
)

// Reboot backends.
const (
	BackendLogin1  = "login1"
	BackendSystemd = "systemd"
	BackendNone    = "none"
)

// Rebooter restarts the host.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// NewRebooter returns the rebooter for backend. Connections are opened per
// reboot since the call happens at most once per process.
func NewRebooter(backend string, logger *slog.Logger) (Rebooter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case BackendLogin1, "":
		return &logindRebooter{dial: dialLogind, logger: logger}, nil
	case BackendSystemd:
		return &unitRebooter{dial: NewManager, logger: logger}, nil
	case BackendNone:
		return noneRebooter{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown reboot backend %q", backend)
	}
}

type logindConn interface {
	Reboot(askForAuth bool)
	Close()
}

func dialLogind() (logindConn, error) {
	return login1.New()
}

// logindRebooter asks systemd-logind to reboot.
type logindRebooter struct {
	dial   func() (logindConn, error)
	logger *slog.Logger
}

func (r *logindRebooter) Reboot(_ context.Context) error {
	conn, err := r.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to logind: %w", err)
	}
	defer conn.Close()

	r.logger.Warn("Rebooting via logind")
	conn.Reboot(false)
	return nil
}

// unitRebooter starts reboot.target through the service manager.
type unitRebooter struct {
	dial   func(ctx context.Context) (*Manager, error)
	logger *slog.Logger
}

func (r *unitRebooter) Reboot(ctx context.Context) error {
	m, err := r.dial(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	r.logger.Warn("Rebooting via reboot.target")
	return m.Reboot(ctx)
}

// noneRebooter only logs. Used on development hosts.
type noneRebooter struct {
	logger *slog.Logger
}

func (r noneRebooter) Reboot(_ context.Context) error {
	r.logger.Warn("Reboot requested, backend is none; not rebooting")
	return nil
}
