package altitude

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"period", func(c *Config) { c.UpdatePeriod = 0 }, "update period"},
		{"stale", func(c *Config) { c.StaleLimit = c.UpdatePeriod }, "stale limit"},
		{"weight", func(c *Config) { c.VelocityCFWeight = 1 }, "filter weight"},
		{"range", func(c *Config) { c.RangeMaxReported = c.RangeMaxTrusted - 1 }, "range limits"},
		{"bound", func(c *Config) { c.DLimit = 0 }, "d limit"},
		{"overflow", func(c *Config) { c.IntegratorLimit = 1 << 20 }, "overflows"},
		{"negative gain", func(c *Config) { c.VelD = -1 }, "gains"},
		{"p overflow", func(c *Config) { c.VelP = math.MaxInt32/1800 + 1 }, "vel_p"},
		{"i overflow", func(c *Config) { c.VelI = 1 << 21 }, "vel_i"},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err=%v want %q", tc.name, err, tc.want)
		}
	}
}

func TestParseControlMode(t *testing.T) {
	if m, err := ParseControlMode("VELOCITY"); err != nil || m != ModeVelocity {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if m, err := ParseControlMode(""); err != nil || m != ModePosition {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if _, err := ParseControlMode("hover"); err == nil {
		t.Fatalf("expected error")
	}
}
