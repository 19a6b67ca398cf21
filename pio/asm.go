package pio

import (
	"errors"
	"fmt"
)

// Instruction opcodes, bits 15:13 of an instruction word.
const (
	OpJmp  = 0b000 << 13
	OpWait = 0b001 << 13
	OpIn   = 0b010 << 13
	OpOut  = 0b011 << 13
	OpPush = 0b100 << 13 // Also PULL, selected by bit 7.
	OpMov  = 0b101 << 13
	OpIRQ  = 0b110 << 13
	OpSet  = 0b111 << 13

	OpMask = 0b111 << 13
)

// OutDest is the destination of an OUT instruction.
type OutDest uint8

const (
	OutPins    OutDest = 0b000
	OutX       OutDest = 0b001
	OutY       OutDest = 0b010
	OutNull    OutDest = 0b011
	OutPindirs OutDest = 0b100
	OutPC      OutDest = 0b101
	OutISR     OutDest = 0b110
	OutExec    OutDest = 0b111
)

// SetDest is the destination of a SET instruction.
type SetDest uint8

const (
	SetPins    SetDest = 0b000
	SetX       SetDest = 0b001
	SetY       SetDest = 0b010
	SetPindirs SetDest = 0b100
)

// JmpCond is the condition of a JMP instruction.
type JmpCond uint8

const (
	JmpAlways     JmpCond = 0b000
	JmpXZero      JmpCond = 0b001
	JmpXDec       JmpCond = 0b010
	JmpYZero      JmpCond = 0b011
	JmpYDec       JmpCond = 0b100
	JmpXNotEqualY JmpCond = 0b101
	JmpPin        JmpCond = 0b110
	JmpNotOSRE    JmpCond = 0b111
)

// Y register as a MOV operand.
const movY = 0b010

// NoSide marks an instruction without a side-set value. It is only valid
// in programs with an optional side-set.
const NoSide uint8 = 0xff

// SideSet describes the side-set field of a program.
type SideSet struct {
	// Bits is the number of side-set pins.
	Bits uint8
	// Optional side-sets take one extra bit to flag their presence.
	Optional bool
	// PinDirs makes side-sets drive pin directions instead of levels.
	PinDirs bool
}

// fieldBits returns the width of the side-set part of the delay/side-set
// field.
func (s SideSet) fieldBits() uint8 {
	if s.Optional {
		return s.Bits + 1
	}
	return s.Bits
}

// Program is an assembled PIO program.
type Program struct {
	Instructions []uint16
	// Origin is the required load offset, or -1 if the program is
	// relocatable.
	Origin int8
	// WrapTarget and Wrap are the first and last instruction of the
	// program loop, relative to the start of the program.
	WrapTarget uint8
	Wrap       uint8
	SideSet    SideSet
}

// Len returns the number of instructions.
func (p Program) Len() int { return len(p.Instructions) }

// Label marks an instruction address in an Assembler.
type Label int

// Assembler builds a Program one instruction at a time. Errors are sticky
// and returned by AssembleWithWrap.
type Assembler struct {
	sideSet SideSet
	insts   []uint16
	labels  []int
	fixups  []fixup
	err     error
}

type fixup struct {
	inst  int
	label Label
}

// NewAssembler returns an assembler for programs with the given side-set.
func NewAssembler(ss SideSet) *Assembler {
	a := &Assembler{sideSet: ss}
	if ss.fieldBits() > 5 {
		a.err = fmt.Errorf("pio: side-set of %d bits does not fit", ss.fieldBits())
	}
	return a
}

// Label returns a new, unbound label.
func (a *Assembler) Label() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Bind binds l to the address of the next instruction.
func (a *Assembler) Bind(l Label) {
	if a.labels[l] != -1 {
		a.setErr(fmt.Errorf("pio: label %d bound twice", l))
		return
	}
	a.labels[l] = len(a.insts)
}

// Jmp emits "jmp <cond> <target>".
func (a *Assembler) Jmp(cond JmpCond, target Label, side uint8) {
	a.fixups = append(a.fixups, fixup{inst: len(a.insts), label: target})
	a.emit(OpJmp|uint16(cond)<<5, side)
}

// Out emits "out <dest>, <count>". A count of 32 is encoded as 0.
func (a *Assembler) Out(dest OutDest, count uint8, side uint8) {
	if count == 0 || count > 32 {
		a.setErr(fmt.Errorf("pio: out bit count %d out of range", count))
		return
	}
	a.emit(OpOut|uint16(dest)<<5|uint16(count&0b11111), side)
}

// Pull emits "pull [ifempty] [block|noblock]".
func (a *Assembler) Pull(ifEmpty, block bool, side uint8) {
	inst := uint16(OpPush | 1<<7)
	if ifEmpty {
		inst |= 1 << 6
	}
	if block {
		inst |= 1 << 5
	}
	a.emit(inst, side)
}

// Set emits "set <dest>, <data>".
func (a *Assembler) Set(dest SetDest, data uint8, side uint8) {
	if data > 0b11111 {
		a.setErr(fmt.Errorf("pio: set data %d out of range", data))
		return
	}
	a.emit(OpSet|uint16(dest)<<5|uint16(data), side)
}

// Nop emits "nop", encoded as "mov y, y".
func (a *Assembler) Nop(side uint8) {
	a.emit(OpMov|movY<<5|movY, side)
}

func (a *Assembler) emit(inst uint16, side uint8) {
	if a.err != nil {
		return
	}
	if len(a.insts) == NumInstructions {
		a.setErr(errors.New("pio: program longer than instruction memory"))
		return
	}
	ss := a.sideSet
	bits := ss.fieldBits()
	switch {
	case side == NoSide:
		if ss.Bits > 0 && !ss.Optional {
			a.setErr(fmt.Errorf("pio: instruction %d is missing its side-set", len(a.insts)))
			return
		}
	case ss.Bits == 0 || side >= 1<<ss.Bits:
		a.setErr(fmt.Errorf("pio: side-set value %d out of range", side))
		return
	default:
		field := uint16(side)
		if ss.Optional {
			field |= 1 << ss.Bits
		}
		inst |= field << (5 - bits) << 8
	}
	a.insts = append(a.insts, inst)
}

func (a *Assembler) setErr(err error) {
	if a.err == nil {
		a.err = err
	}
}

// AssembleWithWrap resolves labels and returns the program. The loop wraps
// from the instruction before source back to target, so source is bound
// after the last instruction of the loop.
func (a *Assembler) AssembleWithWrap(source, target Label) (Program, error) {
	if a.err != nil {
		return Program{}, a.err
	}
	for _, f := range a.fixups {
		addr := a.labels[f.label]
		if addr < 0 {
			return Program{}, fmt.Errorf("pio: label %d not bound", f.label)
		}
		a.insts[f.inst] |= uint16(addr)
	}
	src, tgt := a.labels[source], a.labels[target]
	if src <= 0 || tgt < 0 {
		return Program{}, errors.New("pio: wrap labels not bound")
	}
	if tgt >= src || src > len(a.insts) {
		return Program{}, fmt.Errorf("pio: invalid wrap %d..%d", tgt, src-1)
	}
	insts := make([]uint16, len(a.insts))
	copy(insts, a.insts)
	return Program{
		Instructions: insts,
		Origin:       -1,
		WrapTarget:   uint8(tgt),
		Wrap:         uint8(src - 1),
		SideSet:      a.sideSet,
	}, nil
}
