// Package piotest implements a software PIO block.
//
// The emulated block executes the subset of the PIO instruction set used by
// serial output programs (JMP, OUT, PULL, SET and register MOVs) with
// side-set, autopull and wrap, and drives periph.io GPIO pins. Each enabled
// state machine runs on its own goroutine as fast as the host allows; clock
// dividers and delay cycles are recorded but not timed.
package piotest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jukebox/st7789/pio"
	"periph.io/x/conn/v3/gpio"
)

// Block is an emulated PIO block. Lines driven by its state machines are
// looked up by pin number among the pins passed to NewBlock.
type Block struct {
	mu       sync.RWMutex
	mem      [pio.NumInstructions]uint16
	used     uint32
	resident [][]uint16
	lines    map[int]gpio.PinOut
	sms      [pio.NumStateMachines]*StateMachine
}

// NewBlock returns a block connected to lines.
func NewBlock(lines ...gpio.PinOut) *Block {
	b := &Block{lines: make(map[int]gpio.PinOut, len(lines))}
	for _, l := range lines {
		b.lines[l.Number()] = l
	}
	return b
}

// Install implements pio.Block.
func (b *Block) Install(p pio.Program) (uint8, error) {
	n := p.Len()
	if n == 0 || n > pio.NumInstructions {
		return 0, pio.ErrNoSpace
	}
	for i, inst := range p.Instructions {
		if err := supported(inst); err != nil {
			return 0, fmt.Errorf("%w: 0x%04x at %d", err, inst, i)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.resident {
		if slices.Equal(r, p.Instructions) {
			return 0, pio.ErrInstalled
		}
	}
	mask := uint32(1)<<n - 1
	for off := 0; off+n <= pio.NumInstructions; off++ {
		if p.Origin >= 0 && off != int(p.Origin) {
			continue
		}
		if b.used&(mask<<off) != 0 {
			continue
		}
		for i, inst := range p.Instructions {
			if inst&pio.OpMask == pio.OpJmp {
				inst += uint16(off)
			}
			b.mem[off+i] = inst
		}
		b.used |= mask << off
		b.resident = append(b.resident, slices.Clone(p.Instructions))
		return uint8(off), nil
	}
	return 0, pio.ErrNoSpace
}

// Instructions returns a copy of the instruction memory.
func (b *Block) Instructions() [pio.NumInstructions]uint16 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem
}

// StateMachine claims the state machine at index. Each state machine can be
// claimed once.
func (b *Block) StateMachine(index uint8) (*StateMachine, error) {
	if index >= pio.NumStateMachines {
		return nil, fmt.Errorf("pio: no state machine %d", index)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sms[index] != nil {
		return nil, pio.ErrClaimed
	}
	sm := newStateMachine(b, index)
	b.sms[index] = sm
	return sm, nil
}

// Close stops every state machine of the block.
func (b *Block) Close() error {
	b.mu.RLock()
	sms := b.sms
	b.mu.RUnlock()
	for _, sm := range sms {
		if sm != nil {
			sm.SetEnabled(false)
		}
	}
	return nil
}

func (b *Block) fetch(pc uint8) uint16 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem[pc&(pio.NumInstructions-1)]
}

func (b *Block) line(n int) (gpio.PinOut, bool) {
	l, ok := b.lines[n]
	return l, ok
}

// supported reports whether the emulator can execute inst.
func supported(inst uint16) error {
	switch inst & pio.OpMask {
	case pio.OpJmp:
		if pio.JmpCond(inst>>5&0b111) == pio.JmpPin {
			return pio.ErrUnsupported
		}
	case pio.OpOut:
		switch pio.OutDest(inst >> 5 & 0b111) {
		case pio.OutPins, pio.OutX, pio.OutY, pio.OutNull, pio.OutPindirs:
		default:
			return pio.ErrUnsupported
		}
	case pio.OpPush:
		if inst&(1<<7) == 0 {
			// PUSH: there is no receive path.
			return pio.ErrUnsupported
		}
	case pio.OpSet:
		switch pio.SetDest(inst >> 5 & 0b111) {
		case pio.SetPins, pio.SetX, pio.SetY, pio.SetPindirs:
		default:
			return pio.ErrUnsupported
		}
	case pio.OpMov:
		dst, op, src := inst>>5&0b111, inst>>3&0b11, inst&0b111
		if dst != movX && dst != movY || op > 1 {
			return pio.ErrUnsupported
		}
		switch src {
		case movX, movY, movNull, movOSR:
		default:
			return pio.ErrUnsupported
		}
	default:
		return pio.ErrUnsupported
	}
	return nil
}

// MOV operands understood by the emulator.
const (
	movX    = 0b001
	movY    = 0b010
	movNull = 0b011
	movOSR  = 0b111
)
