package pio

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Config represents the configuration of a PIO state machine.
type Config struct {
	SidesetBase     uint8
	SidesetCount    int // Side-set pins, not counting the optional flag bit.
	SidesetOptional bool
	SidesetDirs     bool
	OutBase         uint8
	OutCount        int
	InBase          uint8
	SetBase         uint8
	SetCount        int
	JumpPin         uint8
	FIFOMode        FIFOMode
	// OutShiftRight shifts the output shift register towards its least
	// significant bit. The default shifts left, emitting the most
	// significant bit first.
	OutShiftRight bool
	Autopull      bool
	PullThreshold int
	// ClkDivInt and ClkDivFrac divide the system clock: one instruction
	// executes every ClkDivInt + ClkDivFrac/256 cycles.
	ClkDivInt  uint16
	ClkDivFrac uint8
	Wrap       uint8
	WrapTarget uint8
}

// FIFOMode selects how the two 4 word FIFOs of a state machine are joined.
type FIFOMode uint8

const (
	FIFOJoinNone FIFOMode = iota
	FIFOJoinTX
	FIFOJoinRX
)

// TxDepth returns the depth of the transmit FIFO in words.
func (m FIFOMode) TxDepth() int {
	switch m {
	case FIFOJoinTX:
		return 8
	case FIFOJoinRX:
		return 0
	default:
		return 4
	}
}

// DefaultConfig returns the configuration of p loaded at offset: its
// side-set layout, its wrap relocated to offset and a clock divisor of 1.
func DefaultConfig(offset uint8, p Program) Config {
	return Config{
		SidesetCount:    int(p.SideSet.Bits),
		SidesetOptional: p.SideSet.Optional,
		SidesetDirs:     p.SideSet.PinDirs,
		ClkDivInt:       1,
		WrapTarget:      offset + p.WrapTarget,
		Wrap:            offset + p.Wrap,
	}
}

// ConfigRegs is a Config represented in a form suitable for efficient
// programming of a state machine.
type ConfigRegs struct {
	ClkDiv    uint32
	ExecCtrl  uint32
	ShiftCtrl uint32
	PinCtrl   uint32
}

// Register fields of a state machine, from the RP2040 datasheet,
// section 3.7.
const (
	clkdivFracPos = 8
	clkdivIntPos  = 16

	execctrlWrapBottomPos = 7
	execctrlWrapTopPos    = 12
	execctrlJmpPinPos     = 24
	execctrlSidePindirPos = 29
	execctrlSideEnPos     = 30

	shiftctrlAutopullPos    = 17
	shiftctrlInShiftdirPos  = 18
	shiftctrlOutShiftdirPos = 19
	shiftctrlPullThreshPos  = 25
	shiftctrlFjoinTxPos     = 30
	shiftctrlFjoinRxPos     = 31

	pinctrlOutBasePos      = 0
	pinctrlSetBasePos      = 5
	pinctrlSidesetBasePos  = 10
	pinctrlInBasePos       = 15
	pinctrlOutCountPos     = 20
	pinctrlSetCountPos     = 26
	pinctrlSidesetCountPos = 29

	mask5 = 0b11111
)

// Build validates c and encodes it into register values.
func (c *Config) Build() (ConfigRegs, error) {
	if c.OutCount < 0 || 32 < c.OutCount {
		return ConfigRegs{}, fmt.Errorf("pio: invalid out count %d", c.OutCount)
	}
	if c.SetCount < 0 || 5 < c.SetCount {
		return ConfigRegs{}, fmt.Errorf("pio: invalid set count %d", c.SetCount)
	}
	sidesetCount := c.SidesetCount
	if c.SidesetOptional {
		sidesetCount++
	}
	if c.SidesetCount < 0 || 5 < sidesetCount {
		return ConfigRegs{}, fmt.Errorf("pio: invalid side-set count %d", c.SidesetCount)
	}
	for _, base := range []uint8{c.SidesetBase, c.OutBase, c.InBase, c.SetBase, c.JumpPin} {
		if base > mask5 {
			return ConfigRegs{}, fmt.Errorf("pio: pin %d out of range", base)
		}
	}
	if c.Wrap > mask5 || c.WrapTarget > c.Wrap {
		return ConfigRegs{}, fmt.Errorf("pio: invalid wrap %d..%d", c.WrapTarget, c.Wrap)
	}
	if c.ClkDivInt == 0 {
		return ConfigRegs{}, errors.New("pio: clock divisor must be at least 1")
	}
	if c.PullThreshold < 0 || 32 < c.PullThreshold {
		return ConfigRegs{}, fmt.Errorf("pio: invalid pull threshold %d", c.PullThreshold)
	}
	var fjoinTX, fjoinRX uint32
	switch c.FIFOMode {
	case FIFOJoinNone:
	case FIFOJoinTX:
		fjoinTX = 1
	case FIFOJoinRX:
		fjoinRX = 1
	default:
		return ConfigRegs{}, errors.New("pio: invalid FIFO mode")
	}
	return ConfigRegs{
		ClkDiv: uint32(c.ClkDivInt)<<clkdivIntPos | uint32(c.ClkDivFrac)<<clkdivFracPos,
		PinCtrl: uint32(sidesetCount)<<pinctrlSidesetCountPos |
			uint32(c.SetCount)<<pinctrlSetCountPos |
			// Out count 32 is encoded as 32 in this 6 bit field.
			uint32(c.OutCount)<<pinctrlOutCountPos |
			uint32(c.InBase)<<pinctrlInBasePos |
			uint32(c.SidesetBase)<<pinctrlSidesetBasePos |
			uint32(c.SetBase)<<pinctrlSetBasePos |
			uint32(c.OutBase)<<pinctrlOutBasePos,
		ShiftCtrl: fjoinRX<<shiftctrlFjoinRxPos |
			fjoinTX<<shiftctrlFjoinTxPos |
			// Pull threshold 32 is encoded as 0.
			uint32(c.PullThreshold&mask5)<<shiftctrlPullThreshPos |
			boolToUint32(c.OutShiftRight)<<shiftctrlOutShiftdirPos |
			1<<shiftctrlInShiftdirPos |
			boolToUint32(c.Autopull)<<shiftctrlAutopullPos,
		ExecCtrl: uint32(c.WrapTarget)<<execctrlWrapBottomPos |
			uint32(c.Wrap)<<execctrlWrapTopPos |
			uint32(c.JumpPin)<<execctrlJmpPinPos |
			boolToUint32(c.SidesetOptional)<<execctrlSideEnPos |
			boolToUint32(c.SidesetDirs)<<execctrlSidePindirPos,
	}, nil
}

// Config decodes the register values back into a Config.
func (r ConfigRegs) Config() Config {
	c := Config{
		ClkDivInt:       uint16(r.ClkDiv >> clkdivIntPos),
		ClkDivFrac:      uint8(r.ClkDiv >> clkdivFracPos),
		OutBase:         uint8(r.PinCtrl >> pinctrlOutBasePos & mask5),
		SetBase:         uint8(r.PinCtrl >> pinctrlSetBasePos & mask5),
		SidesetBase:     uint8(r.PinCtrl >> pinctrlSidesetBasePos & mask5),
		InBase:          uint8(r.PinCtrl >> pinctrlInBasePos & mask5),
		OutCount:        int(r.PinCtrl >> pinctrlOutCountPos & 0b111111),
		SetCount:        int(r.PinCtrl >> pinctrlSetCountPos & 0b111),
		SidesetCount:    int(r.PinCtrl >> pinctrlSidesetCountPos & 0b111),
		Autopull:        r.ShiftCtrl>>shiftctrlAutopullPos&1 == 1,
		OutShiftRight:   r.ShiftCtrl>>shiftctrlOutShiftdirPos&1 == 1,
		PullThreshold:   int(r.ShiftCtrl >> shiftctrlPullThreshPos & mask5),
		WrapTarget:      uint8(r.ExecCtrl >> execctrlWrapBottomPos & mask5),
		Wrap:            uint8(r.ExecCtrl >> execctrlWrapTopPos & mask5),
		JumpPin:         uint8(r.ExecCtrl >> execctrlJmpPinPos & mask5),
		SidesetOptional: r.ExecCtrl>>execctrlSideEnPos&1 == 1,
		SidesetDirs:     r.ExecCtrl>>execctrlSidePindirPos&1 == 1,
	}
	if c.SidesetOptional {
		c.SidesetCount--
	}
	if c.PullThreshold == 0 {
		c.PullThreshold = 32
	}
	switch {
	case r.ShiftCtrl>>shiftctrlFjoinTxPos&1 == 1:
		c.FIFOMode = FIFOJoinTX
	case r.ShiftCtrl>>shiftctrlFjoinRxPos&1 == 1:
		c.FIFOMode = FIFOJoinRX
	}
	return c
}

// Frequency returns the instruction rate of a state machine clocked from
// a system clock of sys.
func (c *Config) Frequency(sys physic.Frequency) physic.Frequency {
	div := int64(c.ClkDivInt)<<8 | int64(c.ClkDivFrac)
	if div == 0 {
		return 0
	}
	return physic.Frequency(int64(sys) * 256 / div)
}

// ClkDivFromFrequency returns the clock divisor that runs a state machine
// at freq from a system clock of sys.
func ClkDivFromFrequency(freq, sys physic.Frequency) (whole uint16, frac uint8, err error) {
	if freq <= 0 || freq > sys {
		return 0, 0, fmt.Errorf("pio: frequency %s out of range for system clock %s", freq, sys)
	}
	w := sys / freq
	if w > 0xffff {
		return 0, 0, fmt.Errorf("pio: frequency %s too low for system clock %s", freq, sys)
	}
	f := (sys % freq) * 256 / freq
	return uint16(w), uint8(f), nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
