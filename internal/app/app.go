// Package app wires the smart light's event handlers: button presses start
// provisioning or a factory reset, Wi-Fi state drives the status LED and the
// first usable connection starts the cloud application.
package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/led"
	"github.com/smazurov/smartlight/internal/loop"
	"github.com/smazurov/smartlight/internal/metrics"
	"github.com/smazurov/smartlight/internal/netmgr"
)

// linkkitStartDelay is how long after got-IP the cloud application starts.
const linkkitStartDelay = 50 * time.Millisecond

// Indicator is the status LED.
type Indicator interface {
	Blink(mode led.Mode, period time.Duration)
}

// Trigger starts provisioning.
type Trigger interface {
	Active(ctx context.Context) error
}

// Resetter performs a factory reset.
type Resetter interface {
	Reset()
}

// CloudStarter opens the cloud session.
type CloudStarter interface {
	Start(ctx context.Context) error
}

// Bus is the event bus.
type Bus interface {
	Subscribe(handler any) func()
}

// NetworkManager watches the station interface until ctx ends.
type NetworkManager interface {
	Run(ctx context.Context)
}

// Deps are the collaborators App drives.
type Deps struct {
	Bus       Bus
	Scheduler loop.Scheduler
	Indicator Indicator
	APConfig  netmgr.APConfigReader
	Trigger   Trigger
	Resetter  Resetter
	Cloud     CloudStarter
	Network   NetworkManager
}

// App owns the handler state.
type App struct {
	Deps

	okPeriod   time.Duration
	failPeriod time.Duration
	logger     *slog.Logger

	linkkitStarted atomic.Bool
	tasks          sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	unsubs []func()
}

// Option configures an App.
type Option func(*App)

// WithPeriods sets the OK and FAIL blink periods.
func WithPeriods(ok, fail time.Duration) Option {
	return func(a *App) {
		if ok > 0 {
			a.okPeriod = ok
		}
		if fail > 0 {
			a.failPeriod = fail
		}
	}
}

// New creates an App.
func New(deps Deps, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Deps:       deps,
		okPeriod:   led.DefaultOKPeriod,
		failPeriod: led.DefaultFailPeriod,
		logger:     logger,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start registers the event filters, starts the FAIL blink and spawns the
// network manager task. ctx bounds everything started from here.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.unsubs = append(a.unsubs,
		a.Bus.Subscribe(a.HandleKey),
		a.Bus.Subscribe(a.HandleWiFi),
		a.Bus.Subscribe(a.HandleCloud),
	)
	a.mu.Unlock()

	a.Indicator.Blink(led.ModeFail, a.failPeriod)

	go a.runNetmgr(ctx)
}

// Stop removes the event filters.
func (a *App) Stop() {
	a.mu.Lock()
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// SetPeriods updates the periods used for later blink requests.
func (a *App) SetPeriods(ok, fail time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ok > 0 {
		a.okPeriod = ok
	}
	if fail > 0 {
		a.failPeriod = fail
	}
}

func (a *App) periods() (time.Duration, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.okPeriod, a.failPeriod
}

func (a *App) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

// runNetmgr is the network manager task. The linkkit monitor must be
// registered before the manager can report anything.
func (a *App) runNetmgr(ctx context.Context) {
	a.mu.Lock()
	a.unsubs = append(a.unsubs, a.Bus.Subscribe(a.MonitorLinkkit))
	a.mu.Unlock()

	if a.Network != nil {
		a.Network.Run(ctx)
	}
}

// ActivateAWSS queues a provisioning start on the action loop.
func (a *App) ActivateAWSS() {
	a.Scheduler.Schedule(func() {
		if err := a.Trigger.Active(a.context()); err != nil {
			a.logger.Warn("Provisioning start failed", "error", err)
		}
	})
}

// HandleKey handles button presses. A click starts provisioning and a long
// click resets the device.
func (a *App) HandleKey(e events.KeyEvent) {
	a.logger.Info("awss config press", "code", e.Code.String(), "value", e.Value.String())
	metrics.RecordKeyEvent(e.Code.String(), e.Value.String())

	if e.Code != events.KeyCodeBoot {
		return
	}
	switch e.Value {
	case events.KeyClick:
		a.ActivateAWSS()
	case events.KeyLongClick:
		a.Resetter.Reset()
	}
}

// HandleWiFi reacts to the station getting an address.
func (a *App) HandleWiFi(e events.WiFiEvent) {
	if e.Code != events.WiFiGotIP {
		return
	}

	ok, _ := a.periods()
	a.Indicator.Blink(led.ModeOK, ok)

	cfg, err := a.APConfig.Load()
	if err != nil {
		a.logger.Warn("Failed to read AP config", "error", err)
	}
	a.logger.Info("wifi_service_event", "ssid", cfg.SSID, "address", e.Address)

	if netmgr.IsProvisioningSSID(cfg.SSID) {
		return
	}

	if a.linkkitStarted.CompareAndSwap(false, true) {
		a.Scheduler.PostDelayed(linkkitStartDelay, a.startLinkkitApp)
	}
}

// startLinkkitApp connects the cloud link off the action loop, since the
// connect can take up to its timeout.
func (a *App) startLinkkitApp() {
	a.logger.Info("linkkit app")
	ctx := a.context()
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		if err := a.Cloud.Start(ctx); err != nil {
			a.logger.Error("Failed to start cloud link", "error", err)
		}
	}()
}

// HandleCloud traces cloud session changes.
func (a *App) HandleCloud(e events.CloudEvent) {
	a.logger.Info("cloud_service_event", "code", e.Code.String())
	if e.Code == events.CloudConnected {
		a.logger.Info("user sub and pub here")
	}
}

// MonitorLinkkit traces provisioning and cloud lifecycle steps.
func (a *App) MonitorLinkkit(e events.LinkkitEvent) {
	name := e.Code.String()
	if name == "" {
		return
	}
	a.logger.Info("linkkit_event_monitor", "event", name)
}

// LinkkitStarted reports whether the cloud application was started.
func (a *App) LinkkitStarted() bool {
	return a.linkkitStarted.Load()
}
