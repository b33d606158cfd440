package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

const rebootTarget = "reboot.target"

// unitStarter is the part of the D-Bus manager connection the reboot path
// needs.
type unitStarter interface {
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	Close()
}

// Manager starts system units over the system D-Bus.
type Manager struct {
	conn unitStarter
}

// NewManager creates a manager with a system-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// Reboot queues reboot.target. The job result is awaited so a refused
// transaction surfaces as an error.
func (m *Manager) Reboot(ctx context.Context) error {
	done := make(chan string, 1)
	if _, err := m.conn.StartUnitContext(ctx, rebootTarget, "replace-irreversibly", done); err != nil {
		return fmt.Errorf("failed to start %s: %w", rebootTarget, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s job finished with %q", rebootTarget, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
