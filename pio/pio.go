// Package pio assembles and configures programs for the programmable I/O
// (PIO) blocks of the Raspberry Pi rp2xxx microcontrollers.
//
// A PIO block holds 32 words of shared instruction memory and four state
// machines. Each state machine executes a program independently of the CPU
// and exchanges data with it through a small FIFO.
//
// The package is hardware independent: Block and StateMachine describe what
// a driver needs from an engine, Config.Build produces the register values a
// state machine is programmed with, and Assembler encodes instructions. The
// rp2xxx register backend lives in this package behind the tinygo && rp
// build tags; package piotest provides a software engine for hosts and tests.
package pio

import "errors"

// Size of the instruction memory of one PIO block.
const NumInstructions = 32

// Number of state machines in one PIO block.
const NumStateMachines = 4

var (
	// ErrInstalled is returned when a program is already resident in the
	// instruction memory of a block.
	ErrInstalled = errors.New("pio: program already installed")
	// ErrNoSpace is returned when a program does not fit in the free
	// instruction memory.
	ErrNoSpace = errors.New("pio: not enough instruction memory")
	// ErrClaimed is returned when a state machine is claimed twice.
	ErrClaimed = errors.New("pio: state machine already claimed")
	// ErrUnsupported is returned by engines that cannot execute an
	// instruction of the program being installed.
	ErrUnsupported = errors.New("pio: unsupported instruction")
)

// Block is the instruction memory of a PIO block.
type Block interface {
	// Install loads p into instruction memory and returns the offset it
	// was loaded at. Jump targets are relocated to the offset.
	Install(p Program) (offset uint8, err error)
}

// StateMachine is one PIO state machine.
//
// A state machine starts uninitialized. Init configures it and positions it
// at the wrap target of its program; SetEnabled(true) starts it. Words put
// in its transmit FIFO are consumed autonomously.
type StateMachine interface {
	// Init programs the configuration registers. The state machine must
	// be disabled.
	Init(regs ConfigRegs) error
	// SetPindirs sets count consecutive pins starting at base to outputs
	// (out true) or inputs and hands them over to the state machine.
	SetPindirs(base uint8, count int, out bool) error
	// SetEnabled starts or stops the state machine.
	SetEnabled(enabled bool)
	// TryPut writes word to the transmit FIFO. It reports false without
	// blocking if the FIFO is full.
	TryPut(word uint32) bool
	// ClearTxStall clears the sticky transmit stall flag.
	ClearTxStall()
	// TxStalled reports whether the state machine stalled on an empty
	// transmit FIFO since the flag was last cleared.
	TxStalled() bool
}
