package pio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func serialConfig() Config {
	p := Program{Instructions: []uint16{0x6001, 0xB042}, Origin: -1, WrapTarget: 0, Wrap: 1, SideSet: SideSet{Bits: 1}}
	c := DefaultConfig(5, p)
	c.OutBase = 21
	c.OutCount = 1
	c.SidesetBase = 20
	c.FIFOMode = FIFOJoinTX
	c.Autopull = true
	c.PullThreshold = 8
	return c
}

func TestDefaultConfig(t *testing.T) {
	p := Program{Instructions: []uint16{0, 0, 0}, WrapTarget: 1, Wrap: 2, SideSet: SideSet{Bits: 2, Optional: true, PinDirs: true}}
	c := DefaultConfig(10, p)
	assert.Equal(t, uint8(11), c.WrapTarget)
	assert.Equal(t, uint8(12), c.Wrap)
	assert.Equal(t, 2, c.SidesetCount)
	assert.True(t, c.SidesetOptional)
	assert.True(t, c.SidesetDirs)
	assert.Equal(t, uint16(1), c.ClkDivInt)
	assert.Equal(t, uint8(0), c.ClkDivFrac)
}

func TestBuildSerial(t *testing.T) {
	c := serialConfig()
	regs, err := c.Build()
	require.NoError(t, err)

	assert.Equal(t, uint32(1)<<16, regs.ClkDiv)
	assert.Equal(t, uint32(1<<29|1<<20|20<<10|21), regs.PinCtrl)
	assert.Equal(t, uint32(1<<30|8<<25|1<<18|1<<17), regs.ShiftCtrl)
	assert.Equal(t, uint32(5<<7|6<<12), regs.ExecCtrl)
}

func TestConfigRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"serial", func(c *Config) {}},
		{"optional pindirs side-set", func(c *Config) {
			c.SidesetCount = 2
			c.SidesetOptional = true
			c.SidesetDirs = true
		}},
		{"set pins and jump pin", func(c *Config) {
			c.SetBase = 3
			c.SetCount = 5
			c.JumpPin = 9
			c.InBase = 4
		}},
		{"rx join, shift right", func(c *Config) {
			c.FIFOMode = FIFOJoinRX
			c.OutShiftRight = true
			c.Autopull = false
		}},
		{"threshold 32, 32 out pins", func(c *Config) {
			c.PullThreshold = 32
			c.OutBase = 0
			c.OutCount = 32
		}},
		{"fractional divider", func(c *Config) {
			c.ClkDivInt = 0xFFFF
			c.ClkDivFrac = 0x80
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serialConfig()
			tt.mutate(&c)
			regs, err := c.Build()
			require.NoError(t, err)
			assert.Equal(t, c, regs.Config())
		})
	}
}

func TestBuildInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"out count", func(c *Config) { c.OutCount = 33 }},
		{"set count", func(c *Config) { c.SetCount = 6 }},
		{"side-set count", func(c *Config) { c.SidesetCount = 5; c.SidesetOptional = true }},
		{"negative side-set count", func(c *Config) { c.SidesetCount = -1 }},
		{"pin", func(c *Config) { c.OutBase = 32 }},
		{"wrap", func(c *Config) { c.WrapTarget = 7; c.Wrap = 6 }},
		{"wrap top", func(c *Config) { c.Wrap = 32 }},
		{"divider", func(c *Config) { c.ClkDivInt = 0 }},
		{"threshold", func(c *Config) { c.PullThreshold = 33 }},
		{"fifo mode", func(c *Config) { c.FIFOMode = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serialConfig()
			tt.mutate(&c)
			_, err := c.Build()
			assert.Error(t, err)
		})
	}
}

func TestTxDepth(t *testing.T) {
	assert.Equal(t, 4, FIFOJoinNone.TxDepth())
	assert.Equal(t, 8, FIFOJoinTX.TxDepth())
	assert.Equal(t, 0, FIFOJoinRX.TxDepth())
}

func TestFrequency(t *testing.T) {
	sys := 125 * physic.MegaHertz
	c := serialConfig()
	assert.Equal(t, sys, c.Frequency(sys))

	c.ClkDivInt, c.ClkDivFrac = 2, 128
	assert.Equal(t, 50*physic.MegaHertz, c.Frequency(sys))

	c.ClkDivInt, c.ClkDivFrac = 0, 0
	assert.Equal(t, physic.Frequency(0), c.Frequency(sys))
}

func TestClkDivFromFrequency(t *testing.T) {
	sys := 125 * physic.MegaHertz
	tests := []struct {
		freq  physic.Frequency
		whole uint16
		frac  uint8
	}{
		{125 * physic.MegaHertz, 1, 0},
		{50 * physic.MegaHertz, 2, 128},
		{10 * physic.MegaHertz, 12, 128},
		{physic.MegaHertz, 125, 0},
	}
	for _, tt := range tests {
		whole, frac, err := ClkDivFromFrequency(tt.freq, sys)
		require.NoError(t, err, "%s", tt.freq)
		assert.Equal(t, tt.whole, whole, "%s", tt.freq)
		assert.Equal(t, tt.frac, frac, "%s", tt.freq)
	}

	for _, freq := range []physic.Frequency{0, 126 * physic.MegaHertz, physic.KiloHertz} {
		_, _, err := ClkDivFromFrequency(freq, sys)
		assert.Error(t, err, "%s", freq)
	}
}
