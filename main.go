package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/smartlight/cmd"
	"github.com/smazurov/smartlight/internal/api"
	"github.com/smazurov/smartlight/internal/app"
	"github.com/smazurov/smartlight/internal/awss"
	"github.com/smazurov/smartlight/internal/button"
	"github.com/smazurov/smartlight/internal/cloud"
	"github.com/smazurov/smartlight/internal/config"
	"github.com/smazurov/smartlight/internal/events"
	"github.com/smazurov/smartlight/internal/led"
	"github.com/smazurov/smartlight/internal/logging"
	"github.com/smazurov/smartlight/internal/loop"
	"github.com/smazurov/smartlight/internal/metrics"
	"github.com/smazurov/smartlight/internal/netmgr"
	"github.com/smazurov/smartlight/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Indicator settings
	IndicatorOKPeriodMs   int `help:"Blink period while connected (ms)" default:"800" toml:"indicator.ok_period_ms" env:"INDICATOR_OK_PERIOD_MS"`
	IndicatorFailPeriodMs int `help:"Blink period while offline (ms)" default:"300" toml:"indicator.fail_period_ms" env:"INDICATOR_FAIL_PERIOD_MS"`

	// LED settings
	LEDBackend     string `help:"LED backend (auto, gpiocdev, sysfs, noop)" default:"auto" toml:"led.backend" env:"LED_BACKEND"`
	LEDChip        string `help:"GPIO chip for LEDs" default:"gpiochip0" toml:"led.chip" env:"LED_CHIP"`
	LEDWiFiOffset  int    `help:"GPIO line of the Wi-Fi status LED" default:"22" toml:"led.wifi_offset" env:"LED_WIFI_OFFSET"`
	LEDWiFiSysfs   string `help:"LED class name of the Wi-Fi status LED" default:"" toml:"led.wifi_sysfs" env:"LED_WIFI_SYSFS"`
	LEDTagOffset   int    `help:"GPIO line of the tag LED" default:"23" toml:"led.tag_offset" env:"LED_TAG_OFFSET"`
	LEDTagSysfs    string `help:"LED class name of the tag LED" default:"" toml:"led.tag_sysfs" env:"LED_TAG_SYSFS"`

	// Button settings
	ButtonEnabled     bool   `help:"Watch the provisioning button" default:"false" toml:"button.enabled" env:"BUTTON_ENABLED"`
	ButtonChip        string `help:"GPIO chip for the button" default:"gpiochip0" toml:"button.chip" env:"BUTTON_CHIP"`
	ButtonOffset      int    `help:"GPIO line of the button" default:"17" toml:"button.offset" env:"BUTTON_OFFSET"`
	ButtonLongPressMs int    `help:"Hold time for a long click (ms)" default:"2000" toml:"button.long_press_ms" env:"BUTTON_LONG_PRESS_MS"`
	ButtonIRQTrigger  bool   `help:"Start provisioning directly from the button interrupt" default:"false" toml:"button.irq_trigger" env:"BUTTON_IRQ_TRIGGER"`

	// Provisioning settings
	AWSSCommand          string `help:"Command that starts provisioning" default:"" toml:"awss.command" env:"AWSS_COMMAND"`
	AWSSCommandTimeoutMs int    `help:"Provisioning command timeout (ms)" default:"30000" toml:"awss.command_timeout_ms" env:"AWSS_COMMAND_TIMEOUT_MS"`
	AWSSResetDelayMs     int    `help:"Delay between reset report and reboot (ms)" default:"2000" toml:"awss.reset_delay_ms" env:"AWSS_RESET_DELAY_MS"`

	// Network manager settings
	NetmgrInterface      string `help:"Wi-Fi station interface" default:"wlan0" toml:"netmgr.interface" env:"NETMGR_INTERFACE"`
	NetmgrAPConfig       string `help:"Stored access point file" default:"/var/lib/smartlight/ap.toml" toml:"netmgr.ap_config" env:"NETMGR_AP_CONFIG"`
	NetmgrPollIntervalMs int    `help:"Interface poll interval (ms)" default:"2000" toml:"netmgr.poll_interval_ms" env:"NETMGR_POLL_INTERVAL_MS"`

	// Cloud settings
	CloudBroker      string `help:"MQTT broker URL (empty disables the cloud link)" default:"" toml:"cloud.broker" env:"CLOUD_BROKER"`
	CloudProductKey  string `help:"Product key" default:"" toml:"cloud.product_key" env:"CLOUD_PRODUCT_KEY"`
	CloudDeviceName  string `help:"Device name" default:"" toml:"cloud.device_name" env:"CLOUD_DEVICE_NAME"`
	CloudUsername    string `help:"MQTT username" default:"" toml:"cloud.username" env:"CLOUD_USERNAME"`
	CloudPassword    string `help:"MQTT password" default:"" toml:"cloud.password" env:"CLOUD_PASSWORD"`
	CloudTopicPrefix string `help:"Topic prefix" default:"/sys" toml:"cloud.topic_prefix" env:"CLOUD_TOPIC_PREFIX"`

	// System settings
	SystemRebootBackend string `help:"Reboot backend (login1, systemd, none)" default:"login1" toml:"system.reboot_backend" env:"SYSTEM_REBOOT_BACKEND"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingIndicator string `help:"Indicator logging level" default:"info" toml:"logging.indicator" env:"LOGGING_INDICATOR"`
	LoggingAWSS      string `help:"Provisioning logging level" default:"info" toml:"logging.awss" env:"LOGGING_AWSS"`
	LoggingCloud     string `help:"Cloud link logging level" default:"info" toml:"logging.cloud" env:"LOGGING_CLOUD"`
	LoggingNetmgr    string `help:"Network manager logging level" default:"info" toml:"logging.netmgr" env:"LOGGING_NETMGR"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}


func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// device exposes the application to the control API.
type device struct {
	*app.App
	indicator *led.Indicator
	trigger   *awss.Trigger
	resetter  *awss.Resetter
	link      *cloud.Link
}

func (d *device) Reset()               { d.resetter.Reset() }
func (d *device) Indicator() led.State { return d.indicator.State() }
func (d *device) AWSSRunning() bool    { return d.trigger.Running() }
func (d *device) CloudConnected() bool { return d.link.Connected() }

// indicatorMetrics reports the indicator mode and counts LED flips. A flip
// is a level change within one blink chain; period updates and mode switches
// are not flips.
func indicatorMetrics(flip func(), mode func(int)) func(led.State) {
	var (
		last led.State
		seen bool
	)
	return func(s led.State) {
		if seen && s.Generation == last.Generation && s.High != last.High {
			flip()
		}
		last, seen = s, true
		mode(int(s.Mode))
	}
}

// reloadOnHangup calls reload on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, reload func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reload()
		}
	}
}

// service is the long-running daemon started by the root command.
type service interface {
	run()
	stop()
}

// daemonService holds the components opened for the serve command.
type daemonService struct {
	opts   *Options
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	actions     *loop.Loop
	indicator   *led.Indicator
	pins        []led.Pin
	button      *button.Button
	provisioner *awss.CommandProvisioner
	link        *cloud.Link
	application *app.App
	server      *api.Server
	watcher     *config.Watcher[config.Runtime]
}

// newDaemon opens the hardware and builds every daemon component.
func newDaemon(opts *Options) service {
	logger := logging.GetLogger("main")
	ctx, cancel := context.WithCancel(context.Background())

	bus := events.New()
	actions := loop.New(logging.GetLogger("loop"))

	wifiPin := led.New(led.PinConfig{
		Name:      "wifi",
		Backend:   opts.LEDBackend,
		Chip:      opts.LEDChip,
		Offset:    opts.LEDWiFiOffset,
		SysfsName: opts.LEDWiFiSysfs,
		Initial:   true,
	}, logger)
	tagPin := led.New(led.PinConfig{
		Name:      "tag",
		Backend:   opts.LEDBackend,
		Chip:      opts.LEDChip,
		Offset:    opts.LEDTagOffset,
		SysfsName: opts.LEDTagSysfs,
		Initial:   false,
	}, logger)

	indicator := led.NewIndicator(wifiPin, logging.GetLogger("indicator"),
		led.WithOnChange(indicatorMetrics(metrics.RecordIndicatorToggle, metrics.SetIndicatorMode)))

	apStore := netmgr.NewAPStore(opts.NetmgrAPConfig)
	netLogger := logging.GetLogger("netmgr")
	monitorOpts := []netmgr.MonitorOption{netmgr.WithInterval(ms(opts.NetmgrPollIntervalMs))}
	if wake, watchErr := netmgr.WatchInterface(ctx, opts.NetmgrInterface, netLogger); watchErr != nil {
		netLogger.Debug("Interface uevents unavailable, polling only", "error", watchErr)
	} else {
		monitorOpts = append(monitorOpts, netmgr.WithWakeup(wake))
	}
	monitor := netmgr.NewMonitor(opts.NetmgrInterface, bus, netLogger, monitorOpts...)

	link := cloud.New(cloud.Config{
		Broker:      opts.CloudBroker,
		Username:    opts.CloudUsername,
		Password:    opts.CloudPassword,
		TopicPrefix: opts.CloudTopicPrefix,
		ProductKey:  opts.CloudProductKey,
		DeviceName:  opts.CloudDeviceName,
	}, bus, logging.GetLogger("cloud"))

	rebooter, rebootErr := systemd.NewRebooter(opts.SystemRebootBackend, logging.GetLogger("system"))
	if rebootErr != nil {
		logger.Warn("Invalid reboot backend, reboots disabled", "error", rebootErr)
		rebooter, _ = systemd.NewRebooter(systemd.BackendNone, logging.GetLogger("system"))
	}

	awssLogger := logging.GetLogger("awss")

	var btn *button.Button
	var irq awss.IRQ = button.Disabled{}
	if opts.ButtonEnabled {
		btn = button.New(button.Config{
			Chip:       opts.ButtonChip,
			Offset:     opts.ButtonOffset,
			LongPress:  ms(opts.ButtonLongPressMs),
			IRQTrigger: opts.ButtonIRQTrigger,
		}, bus, actions, logging.GetLogger("button"))
		irq = btn
	}

	provisioner := awss.NewCommandProvisioner(opts.AWSSCommand, ms(opts.AWSSCommandTimeoutMs), bus, awssLogger,
		awss.WithExitHandler(metrics.RecordAWSSHelperExit))
	trigger := awss.NewTrigger(provisioner, irq, awssLogger)
	resetter := awss.NewResetter(link, apStore, rebooter, actions, awssLogger,
		awss.WithDelay(ms(opts.AWSSResetDelayMs)),
		awss.WithContext(ctx))

	application := app.New(app.Deps{
		Bus:       bus,
		Scheduler: actions,
		Indicator: indicator,
		APConfig:  apStore,
		Trigger:   trigger,
		Resetter:  resetter,
		Cloud:     link,
		Network:   monitor,
	}, logging.GetLogger("app"), app.WithPeriods(ms(opts.IndicatorOKPeriodMs), ms(opts.IndicatorFailPeriodMs)))

	if btn != nil {
		btn.SetActivator(func() {
			if err := trigger.Active(ctx); err != nil {
				awssLogger.Warn("Provisioning start failed", "error", err)
			}
		})
	}

	server := api.NewServer(&api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Device: &device{
			App:       application,
			indicator: indicator,
			trigger:   trigger,
			resetter:  resetter,
			link:      link,
		},
		EventBus:          bus,
		PrometheusHandler: metrics.Handler(),
	})

	watcher := config.NewConfigWatcher(opts.Config, config.LoadRuntime, logging.GetLogger("config"))
	watcher.OnReload(func(rt config.Runtime) {
		if rt.OKPeriod > 0 {
			indicator.SetPeriod(led.ModeOK, rt.OKPeriod)
		}
		if rt.FailPeriod > 0 {
			indicator.SetPeriod(led.ModeFail, rt.FailPeriod)
		}
		application.SetPeriods(rt.OKPeriod, rt.FailPeriod)
		logging.SetLevels(rt.Logging)
	})

	return &daemonService{
		opts:        opts,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		actions:     actions,
		indicator:   indicator,
		pins:        []led.Pin{wifiPin, tagPin},
		button:      btn,
		provisioner: provisioner,
		link:        link,
		application: application,
		server:      server,
		watcher:     watcher,
	}
}

// run starts every component and serves the control API until stopped.
func (d *daemonService) run() {
	go d.actions.Run(d.ctx)
	go d.indicator.Run(d.ctx)

	if d.button != nil {
		if openErr := d.button.Open(); openErr != nil {
			d.logger.Warn("Button not available", "error", openErr)
		}
	}

	d.application.Start(d.ctx)

	if startErr := d.watcher.Start(d.ctx); startErr != nil {
		d.logger.Warn("Config reload disabled", "error", startErr)
	}
	go reloadOnHangup(d.ctx, d.watcher.Reload)

	if sent, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		d.logger.Warn("Failed to notify systemd", "error", notifyErr)
	} else if sent {
		d.logger.Debug("Notified systemd of readiness")
	}

	d.logger.Info("Starting HTTP server", "port", d.opts.Port)
	if startErr := d.server.Start(d.opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
		d.logger.Error("Failed to start HTTP server", "error", startErr)
		os.Exit(1)
	}
}

func (d *daemonService) stop() {
	d.logger.Info("Shutting down")
	if stopErr := d.server.Stop(); stopErr != nil {
		d.logger.Error("Error stopping HTTP server", "error", stopErr)
	}

	d.application.Stop()
	d.cancel()
	d.provisioner.Wait()
	d.link.Stop()

	if d.button != nil {
		if closeErr := d.button.Close(); closeErr != nil {
			d.logger.Warn("Error closing button", "error", closeErr)
		}
	}
	for _, pin := range d.pins {
		if closeErr := pin.Close(); closeErr != nil {
			d.logger.Warn("Error closing LED", "pin", pin.Name(), "error", closeErr)
		}
	}
}

// newCLI builds the command tree. Options and logging are set up for every
// command; build is called only when the root command serves.
func newCLI(build func(*Options) service) humacli.CLI {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"indicator": opts.LoggingIndicator,
				"awss":      opts.LoggingAWSS,
				"cloud":     opts.LoggingCloud,
				"netmgr":    opts.LoggingNetmgr,
				"api":       opts.LoggingAPI,
			},
		})

		var (
			mu       sync.Mutex
			svc      service
			stopping bool
		)

		hooks.OnStart(func() {
			mu.Lock()
			if stopping {
				mu.Unlock()
				return
			}
			svc = build(opts)
			mu.Unlock()
			svc.run()
		})

		hooks.OnStop(func() {
			mu.Lock()
			stopping = true
			s := svc
			mu.Unlock()
			if s != nil {
				s.stop()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateActiveAWSSCmd())
	return cli
}

func main() {
	newCLI(newDaemon).Run()
}
