package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/smartlight/internal/logging"
)

// Runtime holds the settings that can change without a restart.
type Runtime struct {
	OKPeriod   time.Duration
	FailPeriod time.Duration
	Logging    logging.Config
}

type rawIndicator struct {
	OKPeriod   string `toml:"ok_period"`
	FailPeriod string `toml:"fail_period"`
}

// LoadRuntime reads the [indicator] and [logging] tables from path. Missing
// or zero periods are left zero so callers keep their current value.
func LoadRuntime(path string) (Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Runtime{}, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Indicator rawIndicator `toml:"indicator"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Runtime{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	rt := Runtime{Logging: LoadLoggingConfig(path)}
	if rt.OKPeriod, err = parsePeriod(raw.Indicator.OKPeriod); err != nil {
		return Runtime{}, fmt.Errorf("indicator.ok_period: %w", err)
	}
	if rt.FailPeriod, err = parsePeriod(raw.Indicator.FailPeriod); err != nil {
		return Runtime{}, fmt.Errorf("indicator.fail_period: %w", err)
	}
	return rt, nil
}

func parsePeriod(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("period must be positive, got %s", s)
	}
	return d, nil
}
