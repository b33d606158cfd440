package netmgr

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/smazurov/smartlight/internal/events"
)

// DefaultPollInterval is how often the interface address is sampled.
const DefaultPollInterval = 2 * time.Second

// AddrsFunc returns the addresses assigned to the named interface.
type AddrsFunc func(iface string) ([]net.Addr, error)

// Monitor polls a network interface and publishes WiFiGotIP when it gains an
// IPv4 address and WiFiDisconnected when it loses it.
type Monitor struct {
	iface    string
	interval time.Duration
	addrs    AddrsFunc
	wake     <-chan struct{}
	bus      events.Publisher
	logger   *slog.Logger

	current string
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithAddrs replaces the address lookup.
func WithAddrs(fn AddrsFunc) MonitorOption {
	return func(m *Monitor) {
		m.addrs = fn
	}
}

// WithWakeup polls whenever ch fires, in addition to the ticker.
func WithWakeup(ch <-chan struct{}) MonitorOption {
	return func(m *Monitor) {
		m.wake = ch
	}
}

// NewMonitor creates a monitor for iface.
func NewMonitor(iface string, bus events.Publisher, logger *slog.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		iface:    iface,
		interval: DefaultPollInterval,
		addrs:    interfaceAddrs,
		bus:      bus,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls until ctx is cancelled. The first sample is taken immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Network monitor started", "interface", m.iface, "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll()
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Network monitor stopped")
			return
		case <-ticker.C:
			m.poll()
		case _, ok := <-m.wake:
			if !ok {
				m.wake = nil
				continue
			}
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	addr, err := m.ipv4()
	if err != nil {
		m.logger.Debug("Interface lookup failed", "interface", m.iface, "error", err)
	}

	switch {
	case addr == m.current:
		return
	case addr != "":
		m.logger.Info("Got IP", "interface", m.iface, "address", addr)
		m.current = addr
		m.bus.Publish(events.WiFiEvent{
			Code:      events.WiFiGotIP,
			Interface: m.iface,
			Address:   addr,
			Timestamp: events.Now(),
		})
	default:
		m.logger.Info("Lost IP", "interface", m.iface, "address", m.current)
		m.current = ""
		m.bus.Publish(events.WiFiEvent{
			Code:      events.WiFiDisconnected,
			Interface: m.iface,
			Timestamp: events.Now(),
		})
	}
}

func (m *Monitor) ipv4() (string, error) {
	addrs, err := m.addrs(m.iface)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLinkLocalUnicast() {
			return ip4.String(), nil
		}
	}
	return "", nil
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}
	return iface.Addrs()
}
