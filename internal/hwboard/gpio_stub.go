//go:build !linux

package hwboard

import "fmt"

func openInput(pin int, activeLow bool) (digitalIn, error) {
	return nil, fmt.Errorf("hwboard: gpio unsupported on this OS")
}

func openOutput(pin int) (digitalOut, error) {
	return nil, fmt.Errorf("hwboard: gpio unsupported on this OS")
}
