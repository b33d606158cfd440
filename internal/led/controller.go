package led

// Pin abstracts a single LED output across the supported backends.
// Implementations handle board-specific naming and access.
type Pin interface {
	// Name returns the logical pin name (e.g., "wifi", "tag").
	Name() string

	// Set drives the output high (true) or low (false).
	Set(high bool) error

	// Close releases the underlying line or file handles.
	Close() error
}

// PinConfig describes how to reach one LED output.
type PinConfig struct {
	// Name is the logical name used in logs and the API.
	Name string
	// Backend selects the driver: "gpiocdev", "sysfs", "noop" or "auto".
	Backend string
	// Chip is the GPIO character device (gpiocdev backend), e.g. "gpiochip0".
	Chip string
	// Offset is the line offset on Chip (gpiocdev backend).
	Offset int
	// SysfsName is the LED class name under /sys/class/leds (sysfs backend).
	SysfsName string
	// Initial is the level driven when the pin is opened.
	Initial bool
}
