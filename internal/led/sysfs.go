package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives an LED class device. Opening it detaches any kernel trigger
// so heartbeat or default-on cannot fight the blink chain.
type sysfs struct {
	name       string
	brightness string
}

func newSysfs(name, root, className string) (*sysfs, error) {
	dir := filepath.Join(root, className)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("led %s: class device %s: %w", name, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("led %s: %s is not a directory", name, dir)
	}
	if err := writeAttr(filepath.Join(dir, "trigger"), "none"); err != nil {
		return nil, fmt.Errorf("led %s: detach trigger: %w", name, err)
	}
	return &sysfs{name: name, brightness: filepath.Join(dir, "brightness")}, nil
}

func (s *sysfs) Name() string { return s.name }

func (s *sysfs) Set(high bool) error {
	if err := writeAttr(s.brightness, fmt.Sprint(levelValue(high))); err != nil {
		return fmt.Errorf("led %s: %w", s.name, err)
	}
	return nil
}

func (s *sysfs) Close() error { return nil }

func writeAttr(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
