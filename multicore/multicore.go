// Package multicore dispatches work to the secondary core of a dual-core
// microcontroller.
//
// The primary core (core 0) runs on the boot stack. Every other core runs
// on a fixed-size stack owned by an Arena, handed off exactly once when the
// core is spawned. A spawned core runs its task and then parks in the
// terminal idle state; so does the primary core once it calls Idle.
//
// On TinyGo the contexts are goroutines scheduled by the runtime; on hosts
// each context is pinned to its own OS thread.
package multicore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// NumCores is the number of cores of the microcontroller.
const NumCores = 2

// StackWords is the size of the stack of a secondary core, in words.
const StackWords = 4096

var (
	// ErrStackTaken is returned when the stack of a core was already
	// handed off.
	ErrStackTaken = errors.New("multicore: stack already taken")
	// ErrNoCore is returned for core numbers that cannot be spawned.
	ErrNoCore = errors.New("multicore: no such secondary core")
)

// Stack is the stack of a secondary core.
type Stack struct {
	Mem [StackWords]uint32
}

// Arena owns one stack per secondary core. The zero value is ready to use.
type Arena struct {
	mu     sync.Mutex
	stacks [NumCores - 1]Stack
	taken  [NumCores - 1]bool
}

// Default is the process-wide arena.
var Default = &Arena{}

// Take hands off the stack of core. Each stack can be taken once.
func (a *Arena) Take(core int) (*Stack, error) {
	if core < 1 || core >= NumCores {
		return nil, fmt.Errorf("%w: %d", ErrNoCore, core)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.taken[core-1] {
		return nil, fmt.Errorf("%w: core %d", ErrStackTaken, core)
	}
	a.taken[core-1] = true
	return &a.stacks[core-1], nil
}

// State is the lifecycle state of a core.
type State int32

const (
	StateReset State = iota
	StateRunning
	StateIdle
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Core is a spawned secondary core.
type Core struct {
	id    int
	stack *Stack
	state atomic.Int32
	done  chan struct{}
	err   error
}

// Spawn takes the stack of core and starts task on it. Ownership of
// everything task captures passes to the new context. Once task returns
// the core idles until ctx is done.
//
// The logger of ctx, if any, receives the lifecycle events of the core.
func (a *Arena) Spawn(ctx context.Context, core int, task func() error) (*Core, error) {
	if task == nil {
		return nil, errors.New("multicore: nil task")
	}
	stack, err := a.Take(core)
	if err != nil {
		return nil, err
	}
	c := &Core{id: core, stack: stack, done: make(chan struct{})}
	go c.run(ctx, task)
	return c, nil
}

func (c *Core) run(ctx context.Context, task func() error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := zerolog.Ctx(ctx).With().Int("core", c.id).Logger()
	c.state.Store(int32(StateRunning))
	log.Debug().Msg("multicore: running")

	if err := c.call(task); err != nil {
		c.err = err
		c.state.Store(int32(StateFailed))
		close(c.done)
		log.Error().Err(err).Msg("multicore: task failed")
		return
	}
	c.state.Store(int32(StateIdle))
	close(c.done)
	log.Debug().Msg("multicore: idle")
	Idle(ctx)
}

func (c *Core) call(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("multicore: core %d panicked: %v", c.id, r)
		}
	}()
	return task()
}

// ID returns the core number.
func (c *Core) ID() int { return c.id }

// Stack returns the stack the core runs on.
func (c *Core) Stack() *Stack { return c.stack }

// State returns the current state of the core.
func (c *Core) State() State { return State(c.state.Load()) }

// Wait waits for the task of the core to return and returns its error.
func (c *Core) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Idle parks the calling context until ctx is done.
func Idle(ctx context.Context) {
	<-ctx.Done()
}
