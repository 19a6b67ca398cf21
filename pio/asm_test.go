package pio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleSerialOut(t *testing.T) {
	a := NewAssembler(SideSet{Bits: 1})
	wrapTarget, wrapSource := a.Label(), a.Label()
	a.Bind(wrapTarget)
	a.Out(OutPins, 1, 0)
	a.Nop(1)
	a.Bind(wrapSource)
	p, err := a.AssembleWithWrap(wrapSource, wrapTarget)
	require.NoError(t, err)

	assert.Equal(t, []uint16{0x6001, 0xB042}, p.Instructions)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, uint8(0), p.WrapTarget)
	assert.Equal(t, uint8(1), p.Wrap)
	assert.Equal(t, int8(-1), p.Origin)
	assert.Equal(t, SideSet{Bits: 1}, p.SideSet)
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		name string
		ss   SideSet
		emit func(a *Assembler)
		want uint16
	}{
		{"out pins 8", SideSet{}, func(a *Assembler) { a.Out(OutPins, 8, NoSide) }, 0x6008},
		{"out x 32", SideSet{}, func(a *Assembler) { a.Out(OutX, 32, NoSide) }, 0x6020},
		{"pull block", SideSet{}, func(a *Assembler) { a.Pull(false, true, NoSide) }, 0x80A0},
		{"pull ifempty noblock", SideSet{}, func(a *Assembler) { a.Pull(true, false, NoSide) }, 0x80C0},
		{"set pindirs 1", SideSet{}, func(a *Assembler) { a.Set(SetPindirs, 1, NoSide) }, 0xE081},
		{"set x 31", SideSet{}, func(a *Assembler) { a.Set(SetX, 31, NoSide) }, 0xE03F},
		{"nop", SideSet{}, func(a *Assembler) { a.Nop(NoSide) }, 0xA042},
		{"nop side 3 of 2 bits", SideSet{Bits: 2}, func(a *Assembler) { a.Nop(3) }, 0xB842},
		{"optional side 1", SideSet{Bits: 1, Optional: true}, func(a *Assembler) { a.Nop(1) }, 0xB842},
		{"optional no side", SideSet{Bits: 1, Optional: true}, func(a *Assembler) { a.Nop(NoSide) }, 0xA042},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(tt.ss)
			start, end := a.Label(), a.Label()
			a.Bind(start)
			tt.emit(a)
			a.Bind(end)
			p, err := a.AssembleWithWrap(end, start)
			require.NoError(t, err)
			require.Len(t, p.Instructions, 1)
			assert.Equal(t, tt.want, p.Instructions[0], "got %#04x", p.Instructions[0])
		})
	}
}

func TestJmpLabels(t *testing.T) {
	a := NewAssembler(SideSet{})
	top, loop, end := a.Label(), a.Label(), a.Label()
	a.Bind(top)
	a.Set(SetX, 7, NoSide)
	a.Bind(loop)
	a.Out(OutPins, 1, NoSide)
	a.Jmp(JmpXDec, loop, NoSide)
	a.Jmp(JmpAlways, top, NoSide)
	a.Bind(end)
	p, err := a.AssembleWithWrap(end, top)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0xE027, 0x6001, 0x0041, 0x0000}, p.Instructions)
	assert.Equal(t, uint8(3), p.Wrap)
}

func TestAssemblerErrors(t *testing.T) {
	tests := []struct {
		name string
		ss   SideSet
		emit func(a *Assembler, l Label)
	}{
		{"missing side-set", SideSet{Bits: 1}, func(a *Assembler, _ Label) { a.Nop(NoSide) }},
		{"side-set out of range", SideSet{Bits: 1}, func(a *Assembler, _ Label) { a.Nop(2) }},
		{"side-set without field", SideSet{}, func(a *Assembler, _ Label) { a.Nop(0) }},
		{"out count 0", SideSet{}, func(a *Assembler, _ Label) { a.Out(OutPins, 0, NoSide) }},
		{"out count 33", SideSet{}, func(a *Assembler, _ Label) { a.Out(OutPins, 33, NoSide) }},
		{"set data 32", SideSet{}, func(a *Assembler, _ Label) { a.Set(SetX, 32, NoSide) }},
		{"unbound jump", SideSet{}, func(a *Assembler, l Label) { a.Jmp(JmpAlways, l, NoSide) }},
		{"too long", SideSet{}, func(a *Assembler, _ Label) {
			for i := 0; i <= NumInstructions; i++ {
				a.Nop(NoSide)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(tt.ss)
			start, end, unbound := a.Label(), a.Label(), a.Label()
			a.Bind(start)
			a.Set(SetY, 0, sideFor(tt.ss))
			tt.emit(a, unbound)
			a.Bind(end)
			_, err := a.AssembleWithWrap(end, start)
			assert.Error(t, err)
		})
	}
}

func sideFor(ss SideSet) uint8 {
	if ss.Bits > 0 && !ss.Optional {
		return 0
	}
	return NoSide
}

func TestSideSetTooWide(t *testing.T) {
	a := NewAssembler(SideSet{Bits: 5, Optional: true})
	l := a.Label()
	a.Bind(l)
	a.Nop(0)
	_, err := a.AssembleWithWrap(l, l)
	assert.Error(t, err)
}

func TestWrapErrors(t *testing.T) {
	a := NewAssembler(SideSet{})
	start, end := a.Label(), a.Label()
	a.Bind(start)
	a.Nop(NoSide)
	// end is never bound.
	_, err := a.AssembleWithWrap(end, start)
	assert.Error(t, err)

	a = NewAssembler(SideSet{})
	start, end = a.Label(), a.Label()
	a.Bind(end)
	a.Nop(NoSide)
	a.Bind(start)
	_, err = a.AssembleWithWrap(end, start)
	assert.Error(t, err, "wrap source before target")

	a = NewAssembler(SideSet{})
	l := a.Label()
	a.Bind(l)
	a.Bind(l)
	a.Nop(NoSide)
	_, err = a.AssembleWithWrap(l, l)
	assert.Error(t, err, "label bound twice")
}
