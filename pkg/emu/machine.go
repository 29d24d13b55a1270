package emu

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/atomic"

	"github.com/gekkodbg/gekkodbg/pkg/gekko"
	"github.com/gekkodbg/gekkodbg/pkg/logflags"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

// EntryPoint is the address where boot images are loaded and executed.
const EntryPoint = 0x80003100

// StopReason describes why the machine stopped executing.
type StopReason uint8

const (
	StopPaused StopReason = iota
	StopBreakpoint
	StopMemCheck
	StopStep
	StopFault
	StopExited
)

func (r StopReason) String() string {
	switch r {
	case StopPaused:
		return "pause"
	case StopBreakpoint:
		return "breakpoint"
	case StopMemCheck:
		return "data breakpoint"
	case StopStep:
		return "step"
	case StopFault:
		return "exception"
	case StopExited:
		return "exited"
	default:
		return fmt.Sprintf("StopReason(%d)", uint8(r))
	}
}

// StopEvent is reported every time the machine stops.
type StopEvent struct {
	Reason StopReason
	PC     uint32
	// Addr is the accessed address for StopMemCheck.
	Addr uint32
	Err  error
}

// BreakpointChecker is consulted before every instruction.
type BreakpointChecker interface {
	IsAddressBreakPoint(addr uint32) bool
}

// MemCheckChecker is consulted on every load and store.
type MemCheckChecker interface {
	GetMemCheck(addr, size uint32) (proc.MemCheck, bool)
}

// Machine is the reference execution core. Its execution state can be read
// from any goroutine; instructions are only executed by the goroutine
// started by Start or by Step.
type Machine struct {
	Mem    *Memory
	ARAM   *ARAM
	ICache *InstructionCache

	inval *Invalidator
	cpu   cpu

	running *atomic.Bool
	started *atomic.Bool
	paused  *atomic.Bool
	pc      *atomic.Uint32
	steps   *atomic.Uint64

	bps BreakpointChecker
	mcs MemCheckChecker

	// mu is held while an instruction executes.
	mu       sync.Mutex
	haltCh   chan struct{}
	lastStop StopEvent
	skipBP   bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	log logflags.Logger
}

// New returns a powered off machine with zeroed memory.
func New() *Machine {
	m := &Machine{
		Mem:     NewMemory(),
		ARAM:    NewARAM(),
		running: atomic.NewBool(false),
		started: atomic.NewBool(false),
		paused:  atomic.NewBool(true),
		pc:      atomic.NewUint32(EntryPoint),
		steps:   atomic.NewUint64(0),
		haltCh:  make(chan struct{}),
		wake:    make(chan struct{}, 1),
		log:     logflags.MachineLogger(),
	}
	close(m.haltCh)
	m.ICache = NewInstructionCache(m.Mem)
	m.inval = NewInvalidator(m.poke)
	return m
}

// Attach sets the breakpoint and memcheck collections consulted during
// execution. Either can be nil.
func (m *Machine) Attach(bps BreakpointChecker, mcs MemCheckChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bps = bps
	m.mcs = mcs
}

// Collaborators returns the configuration of a debug interface inspecting
// m. Symbols are left unset.
func (m *Machine) Collaborators() proc.Config {
	return proc.Config{
		State:        m,
		Memory:       m.Mem,
		AuxMemory:    m.ARAM,
		Fetcher:      m.ICache,
		Invalidator:  m.inval,
		Disassembler: gekko.NewDisassembler(),
	}
}

func (m *Machine) IsRunning() bool { return m.running.Load() }
func (m *Machine) IsStarted() bool { return m.started.Load() }
func (m *Machine) IsPaused() bool  { return m.paused.Load() }
func (m *Machine) PC() uint32      { return m.pc.Load() }

// SetPC moves the program counter. A breakpoint at the new address is hit
// by the next instruction executed.
func (m *Machine) SetPC(pc uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pc.Store(pc)
	m.skipBP = false
}

// Steps returns the number of instructions executed since Start.
func (m *Machine) Steps() uint64 {
	return m.steps.Load()
}

// ScheduleInvalidate queues the invalidation of the instruction cache line
// containing addr.
func (m *Machine) ScheduleInvalidate(addr uint32) {
	m.inval.ScheduleInvalidate(addr)
}

// Start powers on the machine. If paused is true the machine stops before
// executing the first instruction.
func (m *Machine) Start(ctx context.Context, paused bool) error {
	if m.running.Load() {
		return fmt.Errorf("machine already running")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.running.Store(true)
	m.ICache.Reset()
	m.steps.Store(0)
	m.started.Store(true)
	m.log.Debugf("machine started at %#08x", m.PC())
	if !paused {
		m.Resume()
	}
	go m.run(ctx)
	return nil
}

// Stop powers off the machine and waits for the execution goroutine to
// exit.
func (m *Machine) Stop() {
	if !m.running.Load() {
		return
	}
	m.cancel()
	<-m.done
}

// Reset powers off the machine, clears memory and registers and moves the
// program counter to the entry point.
func (m *Machine) Reset() {
	m.Stop()
	m.Mem.reset()
	m.ICache.Reset()
	m.mu.Lock()
	m.cpu = cpu{}
	m.pc.Store(EntryPoint)
	m.mu.Unlock()
}

// LoadImage loads the raw big-endian program image at path to the entry
// point and moves the program counter there. The machine must not be
// running.
func (m *Machine) LoadImage(path string) error {
	if m.running.Load() {
		return fmt.Errorf("can not load %s: machine is running", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("can not load %s: size %d is not a multiple of 4", path, len(data))
	}
	if err := m.Mem.Load(EntryPoint, data); err != nil {
		return err
	}
	m.ICache.Reset()
	m.pc.Store(EntryPoint)
	m.log.Debugf("loaded %d bytes from %s", len(data), path)
	return nil
}

func (m *Machine) run(ctx context.Context) {
	defer func() {
		m.halt(StopEvent{Reason: StopExited, PC: m.PC()})
		m.started.Store(false)
		m.running.Store(false)
		m.log.Debugf("machine stopped")
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.inval.Drain(m.ICache)
		if m.paused.Load() {
			select {
			case <-m.wake:
			case <-ctx.Done():
				return
			}
			continue
		}
		m.mu.Lock()
		if !m.paused.Load() {
			if ev, stop := m.execute(); stop {
				m.haltLocked(ev)
			}
		}
		m.mu.Unlock()
		if m.steps.Load()%4096 == 0 {
			runtime.Gosched()
		}
	}
}

func (m *Machine) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Pause stops execution. When Pause returns no further instruction is
// executed until Resume or Step.
func (m *Machine) Pause() {
	m.halt(StopEvent{Reason: StopPaused, PC: m.PC()})
}

func (m *Machine) halt(ev StopEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.haltLocked(ev)
}

func (m *Machine) haltLocked(ev StopEvent) {
	if m.paused.Load() {
		return
	}
	m.paused.Store(true)
	m.lastStop = ev
	close(m.haltCh)
	if ev.Err != nil {
		m.log.Warnf("halted at %#08x: %s: %v", ev.PC, ev.Reason, ev.Err)
	} else {
		m.log.Debugf("halted at %#08x: %s", ev.PC, ev.Reason)
	}
}

// Resume continues execution. A breakpoint at the current program counter
// is not hit again.
func (m *Machine) Resume() {
	m.mu.Lock()
	if m.paused.Load() {
		m.paused.Store(false)
		m.haltCh = make(chan struct{})
		m.skipBP = true
	}
	m.mu.Unlock()
	m.poke()
}

// Step executes a single instruction. The machine must be paused.
func (m *Machine) Step() (StopEvent, error) {
	if !m.running.Load() || !m.started.Load() {
		return StopEvent{}, fmt.Errorf("machine is not running")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused.Load() {
		return StopEvent{}, fmt.Errorf("machine is not paused")
	}
	m.inval.Drain(m.ICache)
	m.skipBP = true
	ev, stop := m.execute()
	if !stop {
		ev = StopEvent{Reason: StopStep, PC: m.PC()}
	}
	m.lastStop = ev
	return ev, nil
}

// Wait blocks until the machine is paused and returns the reason it
// stopped.
func (m *Machine) Wait(ctx context.Context) (StopEvent, error) {
	m.mu.Lock()
	ch := m.haltCh
	m.mu.Unlock()
	select {
	case <-ch:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.lastStop, nil
	case <-ctx.Done():
		return StopEvent{}, ctx.Err()
	}
}

// Continue resumes execution and waits until the machine stops again.
func (m *Machine) Continue(ctx context.Context) (StopEvent, error) {
	if !m.running.Load() {
		return StopEvent{}, fmt.Errorf("machine is not running")
	}
	m.Resume()
	return m.Wait(ctx)
}

// execute runs the instruction at the program counter. It must be called
// with m.mu held. It returns true if the machine must stop.
func (m *Machine) execute() (StopEvent, bool) {
	pc := m.pc.Load()
	if m.bps != nil && !m.skipBP && m.bps.IsAddressBreakPoint(pc) {
		return StopEvent{Reason: StopBreakpoint, PC: pc}, true
	}
	m.skipBP = false
	op, err := m.ICache.ReadInstruction(pc)
	if err != nil {
		return StopEvent{Reason: StopFault, PC: pc, Err: fmt.Errorf("instruction fetch: %v", err)}, true
	}
	next, hit, err := m.cpu.exec(m, gekko.Inst(op), pc)
	m.steps.Inc()
	if err != nil {
		return StopEvent{Reason: StopFault, PC: pc, Err: err}, true
	}
	m.pc.Store(next)
	if hit != nil {
		return StopEvent{Reason: StopMemCheck, PC: next, Addr: hit.addr}, true
	}
	return StopEvent{}, false
}
