package piotest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jukebox/st7789/pio"
	"periph.io/x/conn/v3/gpio"
)

// StateMachine is an emulated state machine. It implements
// pio.StateMachine.
type StateMachine struct {
	blk   *Block
	index uint8

	mu         sync.Mutex
	cond       *sync.Cond
	cfg        pio.Config
	configured bool
	enabled    bool
	done       chan struct{}

	fifo  []uint32
	depth int
	// Sticky stall flag, and whether the machine is currently waiting on
	// an empty FIFO.
	stalled bool
	waiting bool

	pc       uint8
	osr      uint32
	osrCount int
	x, y     uint32

	dirs   uint32 // Output enables, by pin number.
	levels uint32 // Last level driven, by pin number.
	pulled uint64
	err    error
}

func newStateMachine(b *Block, index uint8) *StateMachine {
	sm := &StateMachine{blk: b, index: index}
	sm.cond = sync.NewCond(&sm.mu)
	return sm
}

// Init implements pio.StateMachine.
func (sm *StateMachine) Init(regs pio.ConfigRegs) error {
	cfg := regs.Config()
	for i := 0; i < cfg.OutCount; i++ {
		if err := sm.checkLine(int(cfg.OutBase) + i); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.SidesetCount; i++ {
		if err := sm.checkLine(int(cfg.SidesetBase) + i); err != nil {
			return err
		}
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.enabled {
		return errors.New("pio: state machine is running")
	}
	sm.cfg = cfg
	sm.depth = cfg.FIFOMode.TxDepth()
	sm.fifo = sm.fifo[:0]
	sm.pc = cfg.WrapTarget
	sm.osr = 0
	// The output shift register starts empty.
	sm.osrCount = 32
	sm.x, sm.y = 0, 0
	sm.stalled, sm.waiting = false, false
	sm.configured = true
	return nil
}

func (sm *StateMachine) checkLine(n int) error {
	if _, ok := sm.blk.line(n % 32); !ok {
		return fmt.Errorf("pio: pin %d is not connected to the block", n%32)
	}
	return nil
}

// SetPindirs implements pio.StateMachine.
func (sm *StateMachine) SetPindirs(base uint8, count int, out bool) error {
	if count < 0 || int(base)+count > 32 {
		return fmt.Errorf("pio: pins %d..%d out of range", base, int(base)+count-1)
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for i := 0; i < count; i++ {
		n := int(base) + i
		if err := sm.checkLine(n); err != nil {
			return err
		}
		sm.setDir(n, out)
	}
	return sm.err
}

// SetEnabled implements pio.StateMachine. Enabling an unconfigured state
// machine has no effect.
func (sm *StateMachine) SetEnabled(enabled bool) {
	sm.mu.Lock()
	if enabled == sm.enabled || enabled && !sm.configured {
		sm.mu.Unlock()
		return
	}
	sm.enabled = enabled
	if enabled {
		sm.done = make(chan struct{})
		go sm.run(sm.done)
		sm.mu.Unlock()
		return
	}
	done := sm.done
	sm.cond.Broadcast()
	sm.mu.Unlock()
	<-done
}

// TryPut implements pio.StateMachine.
func (sm *StateMachine) TryPut(word uint32) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.fifo) >= sm.depth {
		return false
	}
	sm.fifo = append(sm.fifo, word)
	sm.cond.Signal()
	return true
}

// ClearTxStall implements pio.StateMachine.
func (sm *StateMachine) ClearTxStall() {
	sm.mu.Lock()
	sm.stalled = false
	sm.mu.Unlock()
}

// TxStalled implements pio.StateMachine. A machine blocked on an empty FIFO
// keeps re-asserting the flag, as the hardware does every cycle.
func (sm *StateMachine) TxStalled() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.stalled || sm.waiting && len(sm.fifo) == 0
}

// Pulled returns the number of words the state machine consumed from its
// transmit FIFO.
func (sm *StateMachine) Pulled() uint64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.pulled
}

// PC returns the address of the current instruction.
func (sm *StateMachine) PC() uint8 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.pc
}

// Err returns the first error returned by a driven pin.
func (sm *StateMachine) Err() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.err
}

func (sm *StateMachine) run(done chan struct{}) {
	defer close(done)
	for sm.step() {
	}
}

// step executes one instruction. It reports false once the state machine
// is disabled.
func (sm *StateMachine) step() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.enabled {
		return false
	}
	inst := sm.blk.fetch(sm.pc)
	// Side-sets take effect even if the instruction stalls.
	sm.sideSet(inst)
	jumped, stall := sm.exec(inst)
	if stall {
		sm.stalled = true
		sm.waiting = true
		for sm.enabled && len(sm.fifo) == 0 {
			sm.cond.Wait()
		}
		sm.waiting = false
		// The stalled instruction is executed again.
		return sm.enabled
	}
	if !jumped {
		if sm.pc == sm.cfg.Wrap {
			sm.pc = sm.cfg.WrapTarget
		} else {
			sm.pc = (sm.pc + 1) % pio.NumInstructions
		}
	}
	return true
}

func (sm *StateMachine) sideSet(inst uint16) {
	bits := sm.cfg.SidesetCount
	total := bits
	if sm.cfg.SidesetOptional {
		total++
	}
	if total == 0 {
		return
	}
	field := int(inst>>8) & 0b11111 >> (5 - total)
	if sm.cfg.SidesetOptional {
		if field>>bits&1 == 0 {
			return
		}
		field &= 1<<bits - 1
	}
	for i := 0; i < bits; i++ {
		n := int(sm.cfg.SidesetBase) + i
		v := field>>i&1 == 1
		if sm.cfg.SidesetDirs {
			sm.setDir(n, v)
		} else {
			sm.drive(n, v)
		}
	}
}

// exec executes inst. It reports whether the program counter was written
// and whether the instruction stalled.
func (sm *StateMachine) exec(inst uint16) (jumped, stall bool) {
	switch inst & pio.OpMask {
	case pio.OpJmp:
		if sm.condition(pio.JmpCond(inst >> 5 & 0b111)) {
			sm.pc = uint8(inst & 0b11111)
			return true, false
		}
	case pio.OpOut:
		if sm.cfg.Autopull && sm.osrCount >= sm.cfg.PullThreshold {
			if !sm.pull() {
				return false, true
			}
		}
		count := int(inst & 0b11111)
		if count == 0 {
			count = 32
		}
		data := sm.shiftOut(count)
		switch pio.OutDest(inst >> 5 & 0b111) {
		case pio.OutPins:
			sm.writePins(sm.cfg.OutBase, min(count, sm.cfg.OutCount), data, false)
		case pio.OutPindirs:
			sm.writePins(sm.cfg.OutBase, min(count, sm.cfg.OutCount), data, true)
		case pio.OutX:
			sm.x = data
		case pio.OutY:
			sm.y = data
		}
	case pio.OpPush:
		ifEmpty, block := inst&(1<<6) != 0, inst&(1<<5) != 0
		if ifEmpty && sm.osrCount < sm.cfg.PullThreshold {
			break
		}
		if !sm.pull() {
			if block {
				return false, true
			}
			sm.osr, sm.osrCount = sm.x, 0
		}
	case pio.OpSet:
		data := uint32(inst & 0b11111)
		switch pio.SetDest(inst >> 5 & 0b111) {
		case pio.SetPins:
			sm.writePins(sm.cfg.SetBase, sm.cfg.SetCount, data, false)
		case pio.SetPindirs:
			sm.writePins(sm.cfg.SetBase, sm.cfg.SetCount, data, true)
		case pio.SetX:
			sm.x = data
		case pio.SetY:
			sm.y = data
		}
	case pio.OpMov:
		var v uint32
		switch inst & 0b111 {
		case movX:
			v = sm.x
		case movY:
			v = sm.y
		case movOSR:
			v = sm.osr
		}
		if inst>>3&0b11 == 1 {
			v = ^v
		}
		switch inst >> 5 & 0b111 {
		case movX:
			sm.x = v
		case movY:
			sm.y = v
		}
	}
	return false, false
}

func (sm *StateMachine) condition(c pio.JmpCond) bool {
	switch c {
	case pio.JmpAlways:
		return true
	case pio.JmpXZero:
		return sm.x == 0
	case pio.JmpXDec:
		nz := sm.x != 0
		sm.x--
		return nz
	case pio.JmpYZero:
		return sm.y == 0
	case pio.JmpYDec:
		nz := sm.y != 0
		sm.y--
		return nz
	case pio.JmpXNotEqualY:
		return sm.x != sm.y
	case pio.JmpNotOSRE:
		return sm.osrCount < sm.cfg.PullThreshold
	}
	return false
}

// pull refills the output shift register from the FIFO. It reports false
// if the FIFO is empty.
func (sm *StateMachine) pull() bool {
	if len(sm.fifo) == 0 {
		return false
	}
	sm.osr = sm.fifo[0]
	sm.fifo = sm.fifo[1:]
	sm.osrCount = 0
	sm.pulled++
	return true
}

func (sm *StateMachine) shiftOut(n int) uint32 {
	var data uint32
	switch {
	case n == 32:
		data, sm.osr = sm.osr, 0
	case sm.cfg.OutShiftRight:
		data = sm.osr & (1<<n - 1)
		sm.osr >>= n
	default:
		data = sm.osr >> (32 - n)
		sm.osr <<= n
	}
	sm.osrCount = min(32, sm.osrCount+n)
	return data
}

func (sm *StateMachine) writePins(base uint8, count int, data uint32, dirs bool) {
	for i := 0; i < count; i++ {
		n := (int(base) + i) % 32
		v := data>>i&1 == 1
		if dirs {
			sm.setDir(n, v)
		} else {
			sm.drive(n, v)
		}
	}
}

// drive sets the level of pin n. Pins that are not outputs keep the level
// without driving it.
func (sm *StateMachine) drive(n int, v bool) {
	bit := uint32(1) << n
	prev := sm.levels&bit != 0
	if v {
		sm.levels |= bit
	} else {
		sm.levels &^= bit
	}
	if sm.dirs&bit == 0 || prev == v {
		return
	}
	sm.out(n, v)
}

func (sm *StateMachine) setDir(n int, out bool) {
	bit := uint32(1) << n
	was := sm.dirs&bit != 0
	if out {
		sm.dirs |= bit
	} else {
		sm.dirs &^= bit
	}
	if out && !was {
		sm.out(n, sm.levels&bit != 0)
	}
}

func (sm *StateMachine) out(n int, v bool) {
	l, ok := sm.blk.line(n)
	if !ok {
		return
	}
	if err := l.Out(gpio.Level(v)); err != nil && sm.err == nil {
		sm.err = fmt.Errorf("pio: pin %d: %w", n, err)
	}
}
