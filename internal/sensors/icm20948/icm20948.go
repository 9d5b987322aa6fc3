// Package icm20948 drives the accelerometer and gyro of an ICM-20948.
package icm20948

import (
	"fmt"
	"time"

	"althold/internal/i2c"
)

var sleep = time.Sleep

const (
	addrDefault = 0x68

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regPwrMgmt1   = 0x06
	bitReset      = 0x80
	clkAuto       = 0x01
	regIntEnable  = 0x10
	regAccelXoutH = 0x2D // accel then gyro, contiguous
	regTempOutH   = 0x39

	// Bank 2.
	bank2           = 2
	regGyroSmplrt   = 0x00
	regGyroConfig   = 0x01
	regAccelSmplrt2 = 0x11
	regAccelConfig  = 0x14

	// Internal sample rate before the divider.
	baseRateHz = 1125

	fchoice = 0x01 // enable the DLPF
)

// AccelRange is the accelerometer full scale in g.
type AccelRange int

// GyroRange is the gyro full scale in deg/s.
type GyroRange int

var accelFS = map[AccelRange]byte{2: 0, 4: 1, 8: 2, 16: 3}
var gyroFS = map[GyroRange]byte{250: 0, 500: 1, 1000: 2, 2000: 3}

// Options configures the IMU. The zero value selects ±8 g, ±1000 deg/s at
// 562 Hz, which keeps hard landings and fast climbs out of saturation.
type Options struct {
	Accel  AccelRange
	Gyro   GyroRange
	RateHz int
}

func (o Options) withDefaults() Options {
	if o.Accel == 0 {
		o.Accel = 8
	}
	if o.Gyro == 0 {
		o.Gyro = 1000
	}
	if o.RateHz <= 0 {
		o.RateHz = 562
	}
	return o
}

type Sample struct {
	Time time.Time
	// Accel in G.
	Ax, Ay, Az float64
	// Gyro in deg/s.
	Gx, Gy, Gz float64
}

type Device struct {
	dev  i2c.RegIO
	opts Options

	curBank    byte
	scaleAccel float64
	scaleGyro  float64
}

func DefaultAddress() uint16 { return addrDefault }

// New checks the chip ID and configures the IMU.
func New(dev i2c.RegIO, opts Options) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	opts = opts.withDefaults()
	afs, ok := accelFS[opts.Accel]
	if !ok {
		return nil, fmt.Errorf("icm20948: unsupported accel range %dg", opts.Accel)
	}
	gfs, ok := gyroFS[opts.Gyro]
	if !ok {
		return nil, fmt.Errorf("icm20948: unsupported gyro range %d dps", opts.Gyro)
	}
	if opts.RateHz > baseRateHz {
		return nil, fmt.Errorf("icm20948: rate %d Hz above %d Hz", opts.RateHz, baseRateHz)
	}

	d := &Device{dev: dev, opts: opts, curBank: 0xFF}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(afs, gfs); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init(afs, gfs byte) error {
	if err := d.setBank(0); err != nil {
		return err
	}
	_ = d.dev.WriteReg(regIntEnable, 0x00)

	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	// Reset returns the chip to bank 0.
	d.curBank = 0

	if err := d.dev.WriteReg(regPwrMgmt1, clkAuto); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	if err := d.setBank(bank2); err != nil {
		return err
	}
	div := byte(baseRateHz/d.opts.RateHz - 1)
	_ = d.dev.WriteReg(regGyroSmplrt, div)
	_ = d.dev.WriteReg(regAccelSmplrt2, div)

	if err := d.dev.WriteReg(regGyroConfig, gfs<<1|fchoice); err != nil {
		return fmt.Errorf("icm20948: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, afs<<1|fchoice); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}
	if err := d.setBank(0); err != nil {
		return err
	}

	d.scaleAccel = float64(d.opts.Accel) / 32768.0
	d.scaleGyro = float64(d.opts.Gyro) / 32768.0
	return nil
}

// Acc1G returns the raw accelerometer count for one g at the configured
// full scale.
func (d *Device) Acc1G() int32 {
	return int32(32768 / int(d.opts.Accel))
}

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return Sample{}, err
	}

	var buf [12]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("icm20948: read sensors failed: %w", err)
	}
	be := func(i int) float64 { return float64(int16(buf[i])<<8 | int16(buf[i+1])) }

	return Sample{
		Time: time.Now(),
		Ax:   be(0) * d.scaleAccel,
		Ay:   be(2) * d.scaleAccel,
		Az:   be(4) * d.scaleAccel,
		Gx:   be(6) * d.scaleGyro,
		Gy:   be(8) * d.scaleGyro,
		Gz:   be(10) * d.scaleGyro,
	}, nil
}

// Temperature returns the die temperature (C).
func (d *Device) Temperature() (float64, error) {
	if err := d.setBank(0); err != nil {
		return 0, err
	}
	raw, err := i2c.ReadRegBE16(d.dev, regTempOutH)
	if err != nil {
		return 0, fmt.Errorf("icm20948: read temperature failed: %w", err)
	}
	return float64(raw)/333.87 + 21.0, nil
}
