// Package i2c provides register access to sensors on a Linux I2C bus.
package i2c

import "fmt"

// RegIO is the register-level access sensor drivers need. *Dev implements
// it; tests substitute an in-memory register map.
type RegIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// BusPath returns the character device for bus number n.
func BusPath(n int) string {
	return fmt.Sprintf("/dev/i2c-%d", n)
}

// ReadRegBE16 reads a big-endian signed 16-bit register pair starting at reg.
func ReadRegBE16(dev RegIO, reg byte) (int16, error) {
	var b [2]byte
	if err := dev.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return int16(b[0])<<8 | int16(b[1]), nil
}
