package proc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gekkodbg/gekkodbg/pkg/logflags"
)

// hleOpcode is the primary opcode of high level emulation trampolines.
const hleOpcode = 1

// PrimaryOpcode returns the primary opcode field (the 6 most significant
// bits) of an instruction word.
func PrimaryOpcode(op uint32) uint32 {
	return op >> 26
}

// DebugInterface is the entry point used by debugger frontends. It owns
// the breakpoint, memcheck and watch collections for the lifetime of a
// debugging session and gates every access to the live machine behind a
// liveness check.
//
// Memory touching methods never propagate a fault from the machine: a read
// that fails, or panics because the machine is being torn down, is
// reported as ReadInvalidAddress.
type DebugInterface struct {
	state   ExecutionState
	mem     Memory
	aram    AuxMemory
	fetch   InstructionFetcher
	icache  CacheInvalidator
	symbols SymbolDB
	disasm  Disassembler

	breakpoints *Breakpoints
	memchecks   *MemChecks
	watches     *Watches

	log logflags.Logger
}

// New creates a DebugInterface using the collaborators in cfg.
func New(cfg Config) (*DebugInterface, error) {
	var missing []string
	if cfg.State == nil {
		missing = append(missing, "execution state")
	}
	if cfg.Memory == nil {
		missing = append(missing, "memory")
	}
	if cfg.AuxMemory == nil {
		missing = append(missing, "aux memory")
	}
	if cfg.Fetcher == nil {
		missing = append(missing, "instruction fetcher")
	}
	if cfg.Invalidator == nil {
		missing = append(missing, "cache invalidator")
	}
	if cfg.Disassembler == nil {
		missing = append(missing, "disassembler")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing collaborators: %s", strings.Join(missing, ", "))
	}
	return &DebugInterface{
		state:       cfg.State,
		mem:         cfg.Memory,
		aram:        cfg.AuxMemory,
		fetch:       cfg.Fetcher,
		icache:      cfg.Invalidator,
		symbols:     cfg.Symbols,
		disasm:      cfg.Disassembler,
		breakpoints: NewBreakpoints(),
		memchecks:   NewMemChecks(),
		watches:     NewWatches(),
		log:         logflags.DebuggerLogger(),
	}, nil
}

// Breakpoints returns the breakpoint set, for the execution core to
// consult.
func (d *DebugInterface) Breakpoints() *Breakpoints {
	return d.breakpoints
}

// MemChecks returns the memcheck collection, for the execution core to
// consult.
func (d *DebugInterface) MemChecks() *MemChecks {
	return d.memchecks
}

// IsAlive returns true if the machine is running and has completed its
// startup sequence.
func (d *DebugInterface) IsAlive() bool {
	return d.state.IsRunning() && d.state.IsStarted()
}

var errMachineFault = errors.New("machine fault")

// guard runs fn converting a panic raised by a collaborator into an
// error.
func (d *DebugInterface) guard(fn func() error) (err error) {
	defer func() {
		if ierr := recover(); ierr != nil {
			d.log.Warnf("recovered from machine fault: %v", ierr)
			err = fmt.Errorf("%w: %v", errMachineFault, ierr)
		}
	}()
	return fn()
}

// Disassembly disassembles the instruction at addr. The machine must be
// alive and paused.
func (d *DebugInterface) Disassembly(addr uint32) Disassembly {
	r := Disassembly{Address: addr}
	if !d.IsAlive() {
		r.Status = ReadNotAlive
		return r
	}
	if !d.state.IsPaused() {
		r.Status = ReadNotPaused
		return r
	}
	err := d.guard(func() error {
		if !d.mem.IsRAMAddress(addr) {
			return fmt.Errorf("no RAM at %#08x", addr)
		}
		op, err := d.fetch.ReadInstruction(addr)
		if err != nil {
			return err
		}
		r.Op = op
		r.Text = d.disasm.Disassemble(op, addr)
		r.HLE = PrimaryOpcode(op) == hleOpcode
		return nil
	})
	if err != nil {
		d.log.Debugf("disassemble %#08x: %v", addr, err)
		return Disassembly{Address: addr, Status: ReadInvalidAddress}
	}
	return r
}

// Disassemble returns the text of the instruction at addr, or a
// placeholder if it can not be read.
func (d *DebugInterface) Disassemble(addr uint32) string {
	return d.Disassembly(addr).String()
}

// RawMemory reads the word at addr in the given memory space for display.
func (d *DebugInterface) RawMemory(space MemorySpace, addr uint32) RawMemory {
	r := RawMemory{Space: space, Address: addr}
	if !d.IsAlive() {
		r.Status = ReadNotAlive
		return r
	}
	err := d.guard(func() error {
		if space == PrimaryMemory {
			if !d.mem.IsRAMAddress(addr) {
				return fmt.Errorf("no RAM at %#08x", addr)
			}
			v, err := d.mem.ReadU32(addr)
			r.Value = v
			return err
		}
		r.Value = d.ReadExtraMemory(space, addr)
		return nil
	})
	if err != nil {
		d.log.Debugf("read %s %#08x: %v", space, addr, err)
		r.Status = ReadInvalidAddress
		r.Value = 0
	}
	return r
}

// GetRawMemoryString returns the word at addr as eight hex digits, or a
// placeholder if it can not be read.
func (d *DebugInterface) GetRawMemoryString(space MemorySpace, addr uint32) string {
	return d.RawMemory(space, addr).String()
}

// ReadMemory reads a word from primary memory. The result is whatever the
// memory accessor returns when addr is not valid RAM: callers must check
// IsAlive and the address first.
func (d *DebugInterface) ReadMemory(addr uint32) uint32 {
	v, err := d.mem.ReadU32(addr)
	if err != nil {
		d.log.Debugf("read %#08x: %v", addr, err)
	}
	return v
}

// ReadExtraMemory reads a word from the given memory space. Audio memory
// is read one byte at a time and packed most significant byte first.
// Unknown spaces read as zero.
func (d *DebugInterface) ReadExtraMemory(space MemorySpace, addr uint32) uint32 {
	switch space {
	case PrimaryMemory:
		return d.ReadMemory(addr)
	case AuxiliaryMemory:
		return uint32(d.aram.ReadARAM(addr))<<24 |
			uint32(d.aram.ReadARAM(addr+1))<<16 |
			uint32(d.aram.ReadARAM(addr+2))<<8 |
			uint32(d.aram.ReadARAM(addr+3))
	default:
		return 0
	}
}

// ReadInstruction reads the instruction word at addr through the
// instruction fetch path.
func (d *DebugInterface) ReadInstruction(addr uint32) uint32 {
	op, err := d.fetch.ReadInstruction(addr)
	if err != nil {
		d.log.Debugf("fetch %#08x: %v", addr, err)
	}
	return op
}

// Patch writes val at addr and asks the execution core to invalidate its
// instruction cache for that address.
func (d *DebugInterface) Patch(addr, val uint32) error {
	if err := d.guard(func() error { return d.mem.WriteU32(addr, val) }); err != nil {
		return fmt.Errorf("could not patch %#08x: %v", addr, err)
	}
	d.icache.ScheduleInvalidate(addr)
	d.log.Debugf("patched %#08x = %#08x", addr, val)
	return nil
}

// GetColor returns the colour of addr in a disassembly view. Functions
// are coloured by their symbol index, modulo the palette size.
func (d *DebugInterface) GetColor(addr uint32) Color {
	if !d.IsAlive() {
		return ColorUnknown
	}
	if !d.isRAMAddress(addr) {
		return ColorInvalid
	}
	if d.symbols == nil {
		return ColorNoSymbol
	}
	return symbolColor(d.symbols.GetSymbolFromAddr(addr))
}

func (d *DebugInterface) isRAMAddress(addr uint32) bool {
	ok := false
	d.guard(func() error {
		ok = d.mem.IsRAMAddress(addr)
		return nil
	})
	return ok
}

// GetDescription returns the symbol database description of addr.
func (d *DebugInterface) GetDescription(addr uint32) string {
	if d.symbols == nil {
		return ""
	}
	return d.symbols.GetDescription(addr)
}

// GetPC returns the program counter.
func (d *DebugInterface) GetPC() uint32 {
	return d.state.PC()
}

// SetPC sets the program counter. The address is not validated.
func (d *DebugInterface) SetPC(addr uint32) {
	d.state.SetPC(addr)
}

// Breakpoints

func (d *DebugInterface) IsBreakpoint(addr uint32) bool {
	return d.breakpoints.IsAddressBreakPoint(addr)
}

func (d *DebugInterface) SetBreakpoint(addr uint32) {
	d.breakpoints.Add(addr)
}

func (d *DebugInterface) ClearBreakpoint(addr uint32) {
	d.breakpoints.Remove(addr)
}

func (d *DebugInterface) ClearAllBreakpoints() {
	d.breakpoints.Clear()
}

// ToggleBreakpoint returns true if a breakpoint is set at addr after the
// call.
func (d *DebugInterface) ToggleBreakpoint(addr uint32) bool {
	return d.breakpoints.Toggle(addr)
}

// Memchecks

func (d *DebugInterface) IsMemCheck(addr uint32, size uint32) bool {
	_, ok := d.memchecks.GetMemCheck(addr, size)
	return ok
}

// ToggleMemCheck removes the memcheck overlapping addr, ignoring the flags,
// or adds a single address memcheck with them. It returns true if a
// memcheck was added.
func (d *DebugInterface) ToggleMemCheck(addr uint32, read, write, log bool) bool {
	return d.memchecks.Toggle(addr, read, write, log)
}

func (d *DebugInterface) ClearAllMemChecks() {
	d.memchecks.Clear()
}

// Watches

func (d *DebugInterface) SetWatch(addr uint32, name string) int {
	return d.watches.SetWatch(addr, name)
}

func (d *DebugInterface) GetWatch(index int) (Watch, error) {
	return d.watches.GetWatch(index)
}

func (d *DebugInterface) GetWatches() []Watch {
	return d.watches.GetWatches()
}

func (d *DebugInterface) UnsetWatch(addr uint32) {
	d.watches.UnsetWatch(addr)
}

func (d *DebugInterface) UpdateWatch(index int, addr uint32, name string) error {
	return d.watches.UpdateWatch(index, addr, name)
}

func (d *DebugInterface) UpdateWatchAddress(index int, addr uint32) error {
	return d.watches.UpdateWatchAddress(index, addr)
}

func (d *DebugInterface) UpdateWatchName(index int, name string) error {
	return d.watches.UpdateWatchName(index, name)
}

func (d *DebugInterface) EnableWatch(index int) error {
	return d.watches.EnableWatch(index)
}

func (d *DebugInterface) DisableWatch(index int) error {
	return d.watches.DisableWatch(index)
}

func (d *DebugInterface) HasEnabledWatch(addr uint32) bool {
	return d.watches.HasEnabledWatch(addr)
}

func (d *DebugInterface) RemoveWatch(index int) error {
	return d.watches.RemoveWatch(index)
}

func (d *DebugInterface) LoadWatchesFromStrings(lines []string) {
	d.watches.LoadFromStrings(lines)
}

func (d *DebugInterface) SaveWatchesToStrings() []string {
	return d.watches.SaveToStrings()
}

func (d *DebugInterface) ClearWatches() {
	d.watches.Clear()
}

// Clear removes every breakpoint, memcheck and watch. It is used to end
// a debugging session.
func (d *DebugInterface) Clear() {
	d.ClearAllBreakpoints()
	d.ClearAllMemChecks()
	d.ClearWatches()
}
