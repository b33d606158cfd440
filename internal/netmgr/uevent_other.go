//go:build !linux

package netmgr

import (
	"context"
	"errors"
	"log/slog"
)

// WatchInterface is only available on Linux.
func WatchInterface(_ context.Context, _ string, _ *slog.Logger) (<-chan struct{}, error) {
	return nil, errors.New("interface uevents not supported on this platform")
}
