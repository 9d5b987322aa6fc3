//go:build linux

package hwboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "althold"

type gpioLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// requestLine finds BCM line GPIO<pin> on any chip and requests it.
func requestLine(pin int, opts ...gpiocdev.LineReqOption) (*gpioLine, error) {
	if pin < 0 {
		return nil, fmt.Errorf("hwboard: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	opts = append(opts, gpiocdev.WithConsumer(consumer))
	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpioLine{chip: chip, line: line}, nil
	}
	return nil, fmt.Errorf("hwboard: gpio line %q not found (or busy)", lineName)
}

func openInput(pin int, activeLow bool) (digitalIn, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	}
	l, err := requestLine(pin, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func openOutput(pin int) (digitalOut, error) {
	l, err := requestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (g *gpioLine) Value() (bool, error) {
	if g == nil || g.line == nil {
		return false, fmt.Errorf("hwboard: gpio line not open")
	}
	v, err := g.line.Value()
	return v != 0, err
}

func (g *gpioLine) Set(on bool) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("hwboard: gpio line not open")
	}
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpioLine) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
