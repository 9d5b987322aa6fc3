//go:build linux

package i2c

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Transfers go through the I2C_RDWR ioctl; a register read is the register
// write and the data read in one transaction with a repeated start.
const (
	ioctlRdwr = 0x0707
	flagRead  = 0x0001
)

// i2cMsg and i2cRdwrIoctlData mirror the kernel's struct i2c_msg and
// struct i2c_rdwr_ioctl_data.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type i2cRdwrIoctlData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is an opened I2C bus (e.g. /dev/i2c-1). Transfers are serialized, so
// the baro and IMU samplers may share it from separate goroutines.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

// Path returns the device path the bus was opened with.
func (b *Bus) Path() string { return b.path }

func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// Dev is a device at a 7-bit address.
type Dev struct {
	bus  *Bus
	addr uint16
}

var _ RegIO = (*Dev)(nil)

func (d *Dev) String() string {
	if d == nil || d.bus == nil {
		return "i2c:<nil>"
	}
	return fmt.Sprintf("%s@0x%02X", d.bus.path, d.addr)
}

func (d *Dev) Write(p []byte) error { return d.tx(p, nil) }

func (d *Dev) Read(p []byte) error { return d.tx(nil, p) }

// WriteRead writes w then reads into r in one transaction.
func (d *Dev) WriteRead(w, r []byte) error { return d.tx(w, r) }

func (d *Dev) ReadReg(reg byte, dst []byte) error { return d.tx([]byte{reg}, dst) }

func (d *Dev) ReadRegU8(reg byte) (byte, error) {
	v := []byte{0}
	err := d.tx([]byte{reg}, v)
	return v[0], err
}

func (d *Dev) WriteReg(reg, value byte) error { return d.tx([]byte{reg, value}, nil) }

func (d *Dev) messages(w, r []byte) []i2cMsg {
	var msgs []i2cMsg
	for _, part := range []struct {
		p     []byte
		flags uint16
	}{{w, 0}, {r, flagRead}} {
		if len(part.p) == 0 {
			continue
		}
		msgs = append(msgs, i2cMsg{
			addr:  d.addr,
			flags: part.flags,
			len:   uint16(len(part.p)),
			buf:   uintptr(unsafe.Pointer(&part.p[0])),
		})
	}
	return msgs
}

func (d *Dev) tx(w, r []byte) error {
	if d == nil || d.bus == nil {
		return errors.New("i2c: device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("i2c: invalid addr 0x%X", d.addr)
	}
	msgs := d.messages(w, r)
	if len(msgs) == 0 {
		return nil
	}

	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	if d.bus.f == nil {
		return errors.New("i2c: bus is closed")
	}
	data := i2cRdwrIoctlData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&data))); errno != 0 {
		return fmt.Errorf("i2c: %s: %w", d, errno)
	}
	return nil
}
