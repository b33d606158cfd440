// Package netmgr stores the Wi-Fi access point configuration and watches the
// station interface for address changes.
package netmgr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Provisioning SSIDs. A station attached to one of these is still being set
// up and must not start the cloud application.
const (
	SSIDAdha = "adha"
	SSIDAha  = "aha"
)

// IsProvisioningSSID reports whether ssid belongs to the provisioning flow.
func IsProvisioningSSID(ssid string) bool {
	return ssid == SSIDAdha || ssid == SSIDAha
}

// APConfig is the stored access point configuration.
type APConfig struct {
	SSID     string `toml:"ssid" json:"ssid"`
	Password string `toml:"password" json:"-"`
	BSSID    string `toml:"bssid,omitempty" json:"bssid,omitempty"`
}

// APConfigReader reads the current access point configuration.
type APConfigReader interface {
	Load() (APConfig, error)
}

// APStore persists APConfig as a TOML file.
type APStore struct {
	path string
	mu   sync.Mutex
}

// NewAPStore creates a store backed by path.
func NewAPStore(path string) *APStore {
	return &APStore{path: path}
}

// Path returns the backing file.
func (s *APStore) Path() string {
	return s.path
}

// Load reads the configuration. A missing file yields an empty config.
func (s *APStore) Load() (APConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return APConfig{}, nil
	}
	if err != nil {
		return APConfig{}, fmt.Errorf("failed to read AP config: %w", err)
	}

	var cfg APConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return APConfig{}, fmt.Errorf("failed to parse AP config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg atomically.
func (s *APStore) Save(cfg APConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode AP config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create AP config dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write AP config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace AP config: %w", err)
	}
	return nil
}

// Clear removes the stored configuration. Clearing an empty store is not an
// error.
func (s *APStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear AP config: %w", err)
	}
	return nil
}
