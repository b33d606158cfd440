package led

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/smartlight/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Backend names accepted in PinConfig.Backend.
const (
	BackendAuto     = "auto"
	BackendGPIO     = "gpiocdev"
	BackendSysfs    = "sysfs"
	BackendNoop     = "noop"
	defaultGPIOChip = "gpiochip0"
)

// boardLEDs maps a device-tree model fragment to the sysfs LED class name
// used for the Wi-Fi status LED on that board.
var boardLEDs = []struct {
	model string
	wifi  string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New opens an LED pin for cfg. When the requested backend is unavailable
// it falls back to a no-op pin so the daemon still runs on hosts without
// LEDs.
func New(cfg PinConfig, logger logging.Logger) Pin {
	log := logging.GetLogger("led")

	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend, cfg = resolveAuto(cfg)
		if logger != nil {
			logger.Info("Resolved LED backend", "pin", cfg.Name, "backend", backend)
		}
	}

	var (
		pin Pin
		err error
	)
	switch backend {
	case BackendGPIO:
		chip := cfg.Chip
		if chip == "" {
			chip = defaultGPIOChip
		}
		pin, err = newGPIOLine(cfg.Name, chip, cfg.Offset, cfg.Initial)
	case BackendSysfs:
		var s *sysfs
		s, err = newSysfs(cfg.Name, sysfsLEDPath, cfg.SysfsName)
		if err == nil {
			err = s.Set(cfg.Initial)
			pin = s
		}
	case BackendNoop:
		return newNoop(cfg.Name, log)
	default:
		if logger != nil {
			logger.Warn("Unknown LED backend, using no-op", "pin", cfg.Name, "backend", backend)
		}
		return newNoop(cfg.Name, log)
	}

	if err != nil {
		if logger != nil {
			logger.Warn("LED not available, using no-op", "pin", cfg.Name, "backend", backend, "error", err)
		}
		return newNoop(cfg.Name, log)
	}
	return pin
}

// resolveAuto picks a backend from what the host exposes: a known board's
// LED class entry first, then the GPIO character device, then no-op.
func resolveAuto(cfg PinConfig) (string, PinConfig) {
	if cfg.SysfsName == "" && cfg.Name == "wifi" {
		model := detectBoard()
		for _, b := range boardLEDs {
			if strings.Contains(model, b.model) {
				cfg.SysfsName = b.wifi
				break
			}
		}
	}
	if cfg.SysfsName != "" {
		if _, err := os.Stat(filepath.Join(sysfsLEDPath, cfg.SysfsName)); err == nil {
			return BackendSysfs, cfg
		}
	}

	chip := cfg.Chip
	if chip == "" {
		chip = defaultGPIOChip
	}
	if _, err := os.Stat(filepath.Join("/dev", chip)); err == nil {
		return BackendGPIO, cfg
	}
	return BackendNoop, cfg
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
