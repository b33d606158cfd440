//go:build linux

package netmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
)

// netlinkKobjectUEvent is the netlink protocol for kernel object events.
const netlinkKobjectUEvent = 15

// WatchInterface listens for kernel uevents about iface, such as the Wi-Fi
// adapter being added or removed, and signals on the returned channel. The
// channel is closed when ctx ends.
func WatchInterface(ctx context.Context, iface string, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, fmt.Errorf("uevent socket: %w", err)
	}
	if err := syscall.Bind(fd, &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("uevent bind: %w", err)
	}
	// Bounded reads so the loop notices ctx.
	tv := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("uevent timeout: %w", err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		defer syscall.Close(fd)

		buf := make([]byte, 8192)
		for ctx.Err() == nil {
			n, _, err := syscall.Recvfrom(fd, buf, 0)
			if err != nil {
				if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
					continue
				}
				logger.Warn("Uevent watch stopped", "error", err)
				return
			}

			ev, ok := parseUEvent(buf[:n])
			if !ok || !ev.concerns(iface) {
				continue
			}
			logger.Debug("Interface uevent", "interface", iface, "action", ev.action)
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, nil
}
