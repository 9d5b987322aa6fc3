// Package bmp280 drives a Bosch BMP280 barometer for altitude hold.
package bmp280

import (
	"encoding/binary"
	"fmt"
	"time"

	"althold/internal/i2c"
)

var sleep = time.Sleep

const (
	addrDefault = 0x76

	regID        = 0xD0
	chipIDBMP280 = 0x58

	regReset = 0xE0
	resetCmd = 0xB6

	regCalib00 = 0x88
	calibLen   = 24

	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regPressMsb = 0xF7

	modeNormal = 0x03

	// Readings outside this band are treated as bus garbage.
	minPlausiblePa = 30000
	maxPlausiblePa = 115000
)

// Oversampling is the osrs_p / osrs_t field value.
type Oversampling byte

const (
	OversamplingSkip Oversampling = iota
	Oversampling1x
	Oversampling2x
	Oversampling4x
	Oversampling8x
	Oversampling16x
)

// Filter is the IIR filter coefficient field value.
type Filter byte

const (
	FilterOff Filter = iota
	Filter2
	Filter4
	Filter8
	Filter16
)

// Options configures measurement. The zero value selects the flight
// defaults: pressure x8, temperature x1, IIR 4, 0.5 ms standby, which give
// roughly a 40 Hz output rate.
type Options struct {
	Pressure    Oversampling
	Temperature Oversampling
	Filter      Filter
	// Standby is the t_sb field (0 = 0.5 ms).
	Standby byte
}

func (o Options) withDefaults() Options {
	if o.Pressure == OversamplingSkip {
		o.Pressure = Oversampling8x
	}
	if o.Temperature == OversamplingSkip {
		o.Temperature = Oversampling1x
	}
	if o.Filter == FilterOff {
		o.Filter = Filter4
	}
	return o
}

func (o Options) ctrlMeas() byte {
	return byte(o.Temperature&0x07)<<5 | byte(o.Pressure&0x07)<<2 | modeNormal
}

func (o Options) config() byte {
	return (o.Standby&0x07)<<5 | byte(o.Filter&0x07)<<2
}

type calibration struct {
	t1             uint16
	t2, t3         int16
	p1             uint16
	p2, p3, p4, p5 int16
	p6, p7, p8, p9 int16
}

type Device struct {
	dev   i2c.RegIO
	opts  Options
	cal   calibration
	tFine int32
}

func DefaultAddress() uint16 { return addrDefault }

// New checks the chip ID, loads calibration and starts normal-mode sampling.
func New(dev i2c.RegIO, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("bmp280: dev is nil")
	}
	d := &Device{dev: dev, opts: opts.withDefaults()}

	id, err := d.dev.ReadRegU8(regID)
	if err != nil {
		return nil, fmt.Errorf("bmp280: id read failed: %w", err)
	}
	if id != chipIDBMP280 {
		return nil, fmt.Errorf("bmp280: chip id=0x%02X want 0x%02X", id, chipIDBMP280)
	}

	// NVM calibration is copied after reset; reading too early yields zeros.
	_ = d.dev.WriteReg(regReset, resetCmd)
	sleep(5 * time.Millisecond)

	var calibErr error
	for i := 0; i < 3; i++ {
		calibErr = d.readCalibration()
		if calibErr == nil && (d.cal.t1 == 0 || d.cal.p1 == 0) {
			calibErr = fmt.Errorf("bmp280: calibration invalid (digT1=%d digP1=%d)", d.cal.t1, d.cal.p1)
		}
		if calibErr == nil {
			break
		}
		sleep(5 * time.Millisecond)
	}
	if calibErr != nil {
		return nil, calibErr
	}

	// config is only writable in sleep mode, so it goes before ctrl_meas.
	if err := d.dev.WriteReg(regConfig, d.opts.config()); err != nil {
		return nil, fmt.Errorf("bmp280: config write failed: %w", err)
	}
	if err := d.dev.WriteReg(regCtrlMeas, d.opts.ctrlMeas()); err != nil {
		return nil, fmt.Errorf("bmp280: ctrl_meas write failed: %w", err)
	}
	return d, nil
}

func (d *Device) readCalibration() error {
	buf := make([]byte, calibLen)
	if err := d.dev.ReadReg(regCalib00, buf); err != nil {
		return fmt.Errorf("bmp280: read calib failed: %w", err)
	}
	u := func(i int) uint16 { return binary.LittleEndian.Uint16(buf[i : i+2]) }
	s := func(i int) int16 { return int16(u(i)) }
	d.cal = calibration{
		t1: u(0), t2: s(2), t3: s(4),
		p1: u(6), p2: s(8), p3: s(10), p4: s(12), p5: s(14),
		p6: s(16), p7: s(18), p8: s(20), p9: s(22),
	}
	return nil
}

// Read returns compensated temperature (C) and pressure (Pa).
func (d *Device) Read() (tempC float64, pressPa float64, err error) {
	var buf [6]byte
	if err := d.dev.ReadReg(regPressMsb, buf[:]); err != nil {
		return 0, 0, fmt.Errorf("bmp280: read data failed: %w", err)
	}

	adcP := int32(buf[0])<<12 | int32(buf[1])<<4 | int32(buf[2])>>4
	adcT := int32(buf[3])<<12 | int32(buf[4])<<4 | int32(buf[5])>>4

	tFine, t := d.compensateTemp(adcT)
	d.tFine = tFine
	return t, d.compensatePress(adcP), nil
}

// Pressure returns compensated pressure (Pa), rejecting implausible values.
func (d *Device) Pressure() (float64, error) {
	_, p, err := d.Read()
	if err != nil {
		return 0, err
	}
	if p < minPlausiblePa || p > maxPlausiblePa {
		return 0, fmt.Errorf("bmp280: implausible pressure %.0f Pa", p)
	}
	return p, nil
}

func (d *Device) compensateTemp(adcT int32) (tFine int32, tempC float64) {
	c := &d.cal
	var1 := (float64(adcT)/16384.0 - float64(c.t1)/1024.0) * float64(c.t2)
	var2 := float64(adcT)/131072.0 - float64(c.t1)/8192.0
	var2 = var2 * var2 * float64(c.t3)
	tFineF := var1 + var2
	return int32(tFineF), tFineF / 5120.0
}

// compensatePress is the datasheet floating-point algorithm.
func (d *Device) compensatePress(adcP int32) float64 {
	c := &d.cal
	var1 := float64(d.tFine)/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.p6) / 32768.0
	var2 = var2 + var1*float64(c.p5)*2.0
	var2 = var2/4.0 + float64(c.p4)*65536.0
	var1 = (float64(c.p3)*var1*var1/524288.0 + float64(c.p2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.p1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adcP)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.p9) * p * p / 2147483648.0
	var2 = p * float64(c.p8) / 32768.0
	return p + (var1+var2+float64(c.p7))/16.0
}
