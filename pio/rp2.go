//go:build tinygo && rp

package pio

import (
	"device/rp"
	"fmt"
	"machine"
	"runtime/volatile"
	"slices"
	"unsafe"
)

type confMemType struct {
	CLKDIV    volatile.Register32
	EXECCTRL  volatile.Register32
	SHIFTCTRL volatile.Register32
	ADDR      volatile.Register32
	INSTR     volatile.Register32
	PINCTRL   volatile.Register32
}

// RP2 is a PIO block of an rp2xxx microcontroller.
type RP2 struct {
	hw       *rp.PIO0_Type
	used     uint32
	claimed  uint8
	resident [][]uint16
}

// NewRP2 returns the block for the PIO peripheral hw, such as rp.PIO1.
// The block assumes exclusive ownership of the peripheral.
func NewRP2(hw *rp.PIO0_Type) *RP2 {
	return &RP2{hw: hw}
}

// Install implements Block.
func (b *RP2) Install(p Program) (uint8, error) {
	n := p.Len()
	if n == 0 || n > NumInstructions {
		return 0, ErrNoSpace
	}
	// INSTR_MEM is write only, so resident programs are remembered.
	for _, r := range b.resident {
		if slices.Equal(r, p.Instructions) {
			return 0, ErrInstalled
		}
	}
	mem := unsafe.Slice(&b.hw.INSTR_MEM0, NumInstructions)
	var mask uint32 = 1<<n - 1
	if n == NumInstructions {
		mask = 0xffffffff
	}
	for off := 0; off+n <= NumInstructions; off++ {
		if p.Origin >= 0 && off != int(p.Origin) {
			continue
		}
		if b.used&(mask<<off) != 0 {
			continue
		}
		for i, inst := range p.Instructions {
			// Patch absolute addresses.
			if inst&OpMask == OpJmp {
				inst += uint16(off)
			}
			mem[off+i].Set(uint32(inst))
		}
		b.used |= mask << off
		b.resident = append(b.resident, slices.Clone(p.Instructions))
		return uint8(off), nil
	}
	return 0, ErrNoSpace
}

// StateMachine claims state machine index of the block.
func (b *RP2) StateMachine(index uint8) (*RP2StateMachine, error) {
	if index >= NumStateMachines {
		return nil, fmt.Errorf("pio: no state machine %d", index)
	}
	if b.claimed&(1<<index) != 0 {
		return nil, ErrClaimed
	}
	b.claimed |= 1 << index
	return &RP2StateMachine{hw: b.hw, index: index}, nil
}

// RP2StateMachine is a state machine of an RP2 block.
type RP2StateMachine struct {
	hw    *rp.PIO0_Type
	index uint8
}

func (sm *RP2StateMachine) conf() *confMemType {
	confs := unsafe.Slice((*confMemType)(unsafe.Pointer(&sm.hw.SM0_CLKDIV)), NumStateMachines)
	return &confs[sm.index]
}

// Init implements StateMachine.
func (sm *RP2StateMachine) Init(regs ConfigRegs) error {
	sm.SetEnabled(false)
	conf := sm.conf()
	conf.PINCTRL.Set(regs.PinCtrl)
	conf.SHIFTCTRL.Set(regs.ShiftCtrl)
	conf.EXECCTRL.Set(regs.ExecCtrl)
	conf.CLKDIV.Set(regs.ClkDiv)
	// Restart and reset the clock divider.
	sm.hw.CTRL.SetBits(uint32(1)<<(rp.PIO0_CTRL_SM_RESTART_Pos+sm.index) |
		uint32(1)<<(rp.PIO0_CTRL_CLKDIV_RESTART_Pos+sm.index))
	// Jump to start of program (wrap target).
	wrapTarget := regs.ExecCtrl >> execctrlWrapBottomPos & mask5
	conf.INSTR.Set(OpJmp | wrapTarget)
	return nil
}

// SetPindirs implements StateMachine. It also hands the pins over to the
// PIO block.
func (sm *RP2StateMachine) SetPindirs(base uint8, count int, out bool) error {
	mode := machine.PinPIO0
	if sm.hw == rp.PIO1 {
		mode = machine.PinPIO1
	}
	for i := 0; i < count; i++ {
		machine.Pin(int(base) + i).Configure(machine.PinConfig{Mode: mode})
	}
	dir := uint32(0)
	if out {
		dir = 1
	}
	conf := sm.conf()
	pinCtrl := conf.PINCTRL.Get()
	defer conf.PINCTRL.Set(pinCtrl)
	// Side-sets must not interfere with the forced instruction.
	execCtrl := conf.EXECCTRL.Get()
	defer conf.EXECCTRL.Set(execCtrl)
	conf.EXECCTRL.SetBits(1 << execctrlSideEnPos)
	for count > 0 {
		n := min(5, count)
		dirs := dir * (1<<n - 1)
		conf.PINCTRL.Set(uint32(base)<<pinctrlSetBasePos | uint32(n)<<pinctrlSetCountPos)
		// Execute "set pindirs, <dirs>".
		conf.INSTR.Set(OpSet | uint32(SetPindirs)<<5 | dirs)
		count -= n
		base += uint8(n)
	}
	return nil
}

// SetEnabled implements StateMachine.
func (sm *RP2StateMachine) SetEnabled(enabled bool) {
	bit := uint32(1) << (rp.PIO0_CTRL_SM_ENABLE_Pos + sm.index)
	if enabled {
		sm.hw.CTRL.SetBits(bit)
	} else {
		sm.hw.CTRL.ClearBits(bit)
	}
}

// TryPut implements StateMachine.
func (sm *RP2StateMachine) TryPut(word uint32) bool {
	full := sm.hw.FSTAT.Get() >> rp.PIO0_FSTAT_TXFULL_Pos
	if full&(1<<sm.index) != 0 {
		return false
	}
	txs := unsafe.Slice((*volatile.Register32)(unsafe.Pointer(&sm.hw.TXF0)), NumStateMachines)
	txs[sm.index].Set(word)
	return true
}

// ClearTxStall implements StateMachine.
func (sm *RP2StateMachine) ClearTxStall() {
	// TXSTALL is write-one-to-clear.
	sm.hw.FDEBUG.Set(uint32(1) << (rp.PIO0_FDEBUG_TXSTALL_Pos + sm.index))
}

// TxStalled implements StateMachine.
func (sm *RP2StateMachine) TxStalled() bool {
	stall := sm.hw.FDEBUG.Get() >> rp.PIO0_FDEBUG_TXSTALL_Pos
	return stall&(1<<sm.index) != 0
}
