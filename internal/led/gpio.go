package led

import (
	"fmt"

	gpiocdev "github.com/warthog618/go-gpiocdev"
)

// gpioLine implements Pin on a GPIO character device line.
type gpioLine struct {
	name string
	line *gpiocdev.Line
}

// newGPIOLine requests chip/offset as an output driven to initial.
func newGPIOLine(name, chip string, offset int, initial bool) (*gpioLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(levelValue(initial)),
		gpiocdev.WithConsumer("smartlight-"+name))
	if err != nil {
		return nil, fmt.Errorf("failed to request %s line %d: %w", chip, offset, err)
	}
	return &gpioLine{name: name, line: line}, nil
}

func (g *gpioLine) Name() string { return g.name }

func (g *gpioLine) Set(high bool) error {
	if err := g.line.SetValue(levelValue(high)); err != nil {
		return fmt.Errorf("failed to set %s line: %w", g.name, err)
	}
	return nil
}

func (g *gpioLine) Close() error {
	return g.line.Close()
}

func levelValue(high bool) int {
	if high {
		return 1
	}
	return 0
}
