//go:build !linux

package i2c

import "errors"

var errUnsupported = errors.New("i2c: unsupported OS (need linux)")

type Bus struct{}

type Dev struct{}

var _ RegIO = (*Dev)(nil)

func Open(path string) (*Bus, error) { return nil, errUnsupported }

func (b *Bus) Close() error    { return nil }
func (b *Bus) Path() string    { return "" }
func (b *Bus) Dev(uint16) *Dev { return nil }
func (d *Dev) String() string  { return "i2c:<unsupported>" }

func (d *Dev) Write(p []byte) error               { return errUnsupported }
func (d *Dev) Read(p []byte) error                { return errUnsupported }
func (d *Dev) WriteRead(w, r []byte) error        { return errUnsupported }
func (d *Dev) ReadReg(reg byte, dst []byte) error { return errUnsupported }
func (d *Dev) ReadRegU8(reg byte) (byte, error)   { return 0, errUnsupported }
func (d *Dev) WriteReg(reg, value byte) error     { return errUnsupported }
