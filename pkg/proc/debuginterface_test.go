package proc

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeState struct {
	running, started, paused bool
	pc                       uint32
}

func (s *fakeState) IsRunning() bool { return s.running }
func (s *fakeState) IsStarted() bool { return s.started }
func (s *fakeState) IsPaused() bool  { return s.paused }
func (s *fakeState) PC() uint32      { return s.pc }
func (s *fakeState) SetPC(pc uint32) { s.pc = pc }

func (s *fakeState) alive(paused bool) {
	s.running, s.started, s.paused = true, true, paused
}

var errNoRAM = errors.New("no RAM")

// fakeMemory maps 0x80000000-0x80FFFFFF.
type fakeMemory struct {
	words  map[uint32]uint32
	panics bool
}

func (m *fakeMemory) IsRAMAddress(addr uint32) bool {
	if m.panics {
		panic("machine torn down")
	}
	return addr >= 0x80000000 && addr < 0x81000000
}

func (m *fakeMemory) ReadU32(addr uint32) (uint32, error) {
	if m.panics {
		panic("machine torn down")
	}
	if !m.IsRAMAddress(addr) {
		return 0, errNoRAM
	}
	return m.words[addr], nil
}

func (m *fakeMemory) WriteU32(addr, val uint32) error {
	if !m.IsRAMAddress(addr) {
		return errNoRAM
	}
	m.words[addr] = val
	return nil
}

func (m *fakeMemory) ReadInstruction(addr uint32) (uint32, error) {
	return m.ReadU32(addr)
}

type fakeARAM []byte

func (a fakeARAM) ReadARAM(addr uint32) byte {
	return a[addr%uint32(len(a))]
}

type fakeInvalidator struct {
	scheduled []uint32
}

func (inv *fakeInvalidator) ScheduleInvalidate(addr uint32) {
	inv.scheduled = append(inv.scheduled, addr)
}

type fakeSymbols []*Symbol

func (db fakeSymbols) GetSymbolFromAddr(addr uint32) *Symbol {
	for _, s := range db {
		if s.Contains(addr) {
			return s
		}
	}
	return nil
}

func (db fakeSymbols) GetDescription(addr uint32) string {
	if s := db.GetSymbolFromAddr(addr); s != nil {
		return s.Name
	}
	return "--"
}

type fakeDisassembler struct{}

func (fakeDisassembler) Disassemble(op, addr uint32) string {
	return fmt.Sprintf("op %08x @ %08x", op, addr)
}

type fixture struct {
	state *fakeState
	mem   *fakeMemory
	inv   *fakeInvalidator
	dbg   *DebugInterface
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		state: &fakeState{},
		mem:   &fakeMemory{words: map[uint32]uint32{}},
		inv:   &fakeInvalidator{},
	}
	syms := fakeSymbols{
		{Name: "fn3", Address: 0x80003000, Size: 0x100, Kind: FunctionSymbol, Index: 3},
		{Name: "fn9", Address: 0x80003100, Size: 0x100, Kind: FunctionSymbol, Index: 9},
		{Name: "fn4", Address: 0x80003200, Size: 0x100, Kind: FunctionSymbol, Index: 4},
		{Name: "table", Address: 0x80004000, Size: 0x40, Kind: DataSymbol, Index: 5},
	}
	dbg, err := New(Config{
		State:        f.state,
		Memory:       f.mem,
		AuxMemory:    fakeARAM{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0},
		Fetcher:      f.mem,
		Invalidator:  f.inv,
		Symbols:      syms,
		Disassembler: fakeDisassembler{},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.dbg = dbg
	return f
}

func TestNewMissingCollaborators(t *testing.T) {
	_, err := New(Config{State: &fakeState{}})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, what := range []string{"memory", "aux memory", "instruction fetcher", "cache invalidator", "disassembler"} {
		if !strings.Contains(err.Error(), what) {
			t.Errorf("expected %q in %q", what, err)
		}
	}
}

func TestIsAlive(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		running, started, alive bool
	}{
		{false, false, false},
		{true, false, false},
		{false, true, false},
		{true, true, true},
	} {
		f.state.running, f.state.started = tc.running, tc.started
		if got := f.dbg.IsAlive(); got != tc.alive {
			t.Errorf("running=%v started=%v: expected %v; got %v", tc.running, tc.started, tc.alive, got)
		}
	}
}

func TestNotAlive(t *testing.T) {
	f := newFixture(t)
	f.state.running = true // still booting
	if got := f.dbg.Disassemble(0x80001000); got != "" {
		t.Errorf("expected empty disassembly; got %q", got)
	}
	if got := f.dbg.GetRawMemoryString(0, 0x80001000); got != "<unknwn>" {
		t.Errorf("expected <unknwn>; got %q", got)
	}
	if got := f.dbg.GetRawMemoryString(1, 0x0); got != "<unknwn>" {
		t.Errorf("expected <unknwn> for aram; got %q", got)
	}
	if got := f.dbg.GetColor(0x80003000); got != ColorUnknown {
		t.Errorf("expected unknown color; got %v", got)
	}
}

func TestDisassemble(t *testing.T) {
	f := newFixture(t)
	f.mem.words[0x80001000] = 0x04000007 // opcode 1
	f.mem.words[0x80001004] = 0x38600000 // li r3, 0

	f.state.alive(false)
	if got := f.dbg.Disassemble(0x80001000); got != "<unknown>" {
		t.Errorf("running machine: expected <unknown>; got %q", got)
	}

	f.state.alive(true)
	got := f.dbg.Disassemble(0x80001000)
	if got != "op 04000007 @ 80001000 (hle)" {
		t.Errorf("expected hle suffix; got %q", got)
	}
	if got := f.dbg.Disassemble(0x80001004); got != "op 38600000 @ 80001004" {
		t.Errorf("unexpected disassembly %q", got)
	}
	if got := f.dbg.Disassemble(0x00001000); got != "(No RAM here)" {
		t.Errorf("expected (No RAM here); got %q", got)
	}

	d := f.dbg.Disassembly(0x80001000)
	if d.Status != ReadOK || !d.HLE || d.Op != 0x04000007 {
		t.Errorf("unexpected typed result %#v", d)
	}
}

func TestRawMemoryString(t *testing.T) {
	f := newFixture(t)
	f.state.alive(false)
	f.mem.words[0x80001000] = 0xDEADBEEF

	for _, tc := range []struct {
		space    MemorySpace
		addr     uint32
		expected string
	}{
		{PrimaryMemory, 0x80001000, "DEADBEEF"},
		{PrimaryMemory, 0x80001004, "00000000"},
		{PrimaryMemory, 0x00001000, "--------"},
		{AuxiliaryMemory, 0, "12345678 (ARAM)"},
		{AuxiliaryMemory, 6, "DEF01234 (ARAM)"},
		{MemorySpace(7), 0, "00000000 (ARAM)"},
	} {
		if got := f.dbg.GetRawMemoryString(tc.space, tc.addr); got != tc.expected {
			t.Errorf("space %d %#x: expected %q; got %q", tc.space, tc.addr, tc.expected, got)
		}
	}
}

func TestReadExtraMemory(t *testing.T) {
	f := newFixture(t)
	f.mem.words[0x80000020] = 0xCAFEBABE
	if got := f.dbg.ReadExtraMemory(PrimaryMemory, 0x80000020); got != 0xCAFEBABE {
		t.Errorf("expected 0xCAFEBABE; got %#x", got)
	}
	if got := f.dbg.ReadExtraMemory(AuxiliaryMemory, 4); got != 0x9ABCDEF0 {
		t.Errorf("expected 0x9ABCDEF0; got %#x", got)
	}
	if got := f.dbg.ReadExtraMemory(2, 4); got != 0 {
		t.Errorf("expected 0 for unknown space; got %#x", got)
	}
	if got := f.dbg.ReadInstruction(0x80000020); got != 0xCAFEBABE {
		t.Errorf("expected 0xCAFEBABE; got %#x", got)
	}
}

func TestMachineFaultBecomesSentinel(t *testing.T) {
	f := newFixture(t)
	f.state.alive(true)
	f.mem.panics = true
	if got := f.dbg.Disassemble(0x80001000); got != "(No RAM here)" {
		t.Errorf("expected (No RAM here); got %q", got)
	}
	if got := f.dbg.GetRawMemoryString(0, 0x80001000); got != "--------" {
		t.Errorf("expected --------; got %q", got)
	}
	if got := f.dbg.GetColor(0x80003000); got != ColorInvalid {
		t.Errorf("expected invalid color; got %v", got)
	}
}

func TestPatch(t *testing.T) {
	f := newFixture(t)
	if err := f.dbg.Patch(0x80001000, 0x60000000); err != nil {
		t.Fatal(err)
	}
	if f.mem.words[0x80001000] != 0x60000000 {
		t.Fatalf("patch not written")
	}
	if len(f.inv.scheduled) != 1 || f.inv.scheduled[0] != 0x80001000 {
		t.Fatalf("expected one invalidation at 0x80001000; got %#x", f.inv.scheduled)
	}
	if err := f.dbg.Patch(0x10, 0); err == nil {
		t.Fatal("expected error patching outside RAM")
	}
	if len(f.inv.scheduled) != 1 {
		t.Fatalf("failed patch scheduled an invalidation")
	}
}

func TestGetColor(t *testing.T) {
	f := newFixture(t)
	f.state.alive(false)
	for _, tc := range []struct {
		addr     uint32
		expected Color
	}{
		{0x00000100, ColorInvalid},
		{0x80000100, ColorNoSymbol},
		{0x80004010, ColorData},
		{0x80003000, FunctionPalette[3]},
		{0x80003180, FunctionPalette[3]},
		{0x80003200, FunctionPalette[4]},
	} {
		if got := f.dbg.GetColor(tc.addr); got != tc.expected {
			t.Errorf("%#x: expected %v; got %v", tc.addr, tc.expected, got)
		}
		if again := f.dbg.GetColor(tc.addr); again != f.dbg.GetColor(tc.addr) {
			t.Errorf("%#x: color is not stable", tc.addr)
		}
	}
	if FunctionPalette != [6]Color{0xD0FFFF, 0xFFD0D0, 0xD8D8FF, 0xFFD0FF, 0xD0FFD0, 0xFFFFD0} {
		t.Errorf("palette changed: %v", FunctionPalette)
	}
}

func TestPCAndDescription(t *testing.T) {
	f := newFixture(t)
	f.dbg.SetPC(0x12345678)
	if f.dbg.GetPC() != 0x12345678 {
		t.Fatalf("expected pc 0x12345678; got %#x", f.dbg.GetPC())
	}
	if got := f.dbg.GetDescription(0x80004004); got != "table" {
		t.Fatalf("expected table; got %q", got)
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.dbg.SetBreakpoint(0x80000100)
	f.dbg.ToggleMemCheck(0x80000200, true, true, false)
	f.dbg.SetWatch(0x80000300, "w")

	if !f.dbg.IsBreakpoint(0x80000100) || !f.dbg.IsMemCheck(0x80000200, 1) || !f.dbg.HasEnabledWatch(0x80000300) {
		t.Fatal("expected all three collections to be populated")
	}

	f.dbg.Clear()
	if f.dbg.Breakpoints().Len() != 0 || len(f.dbg.MemChecks().MemChecks()) != 0 || len(f.dbg.GetWatches()) != 0 {
		t.Fatal("expected all three collections to be empty")
	}
}

func TestForwarders(t *testing.T) {
	f := newFixture(t)
	if !f.dbg.ToggleBreakpoint(0x80000100) || f.dbg.ToggleBreakpoint(0x80000100) {
		t.Fatal("unexpected toggle results")
	}
	f.dbg.SetBreakpoint(0x80000104)
	f.dbg.ClearBreakpoint(0x80000104)
	if f.dbg.IsBreakpoint(0x80000104) {
		t.Fatal("breakpoint not cleared")
	}

	if !f.dbg.ToggleMemCheck(0x80000200, false, true, true) {
		t.Fatal("expected memcheck to be added")
	}
	if !f.dbg.IsMemCheck(0x800001FE, 4) {
		t.Fatal("expected overlapping memcheck")
	}
	f.dbg.ClearAllMemChecks()
	if f.dbg.IsMemCheck(0x80000200, 1) {
		t.Fatal("memchecks not cleared")
	}

	i := f.dbg.SetWatch(0x80000300, "a")
	if err := f.dbg.UpdateWatch(i, 0x80000304, "b"); err != nil {
		t.Fatal(err)
	}
	if err := f.dbg.UpdateWatchAddress(i, 0x80000308); err != nil {
		t.Fatal(err)
	}
	if err := f.dbg.UpdateWatchName(i, "c"); err != nil {
		t.Fatal(err)
	}
	if err := f.dbg.DisableWatch(i); err != nil {
		t.Fatal(err)
	}
	if f.dbg.HasEnabledWatch(0x80000308) {
		t.Fatal("expected watch to be disabled")
	}
	if err := f.dbg.EnableWatch(i); err != nil {
		t.Fatal(err)
	}
	w, err := f.dbg.GetWatch(i)
	if err != nil || w != (Watch{Address: 0x80000308, Name: "c", Enabled: true}) {
		t.Fatalf("unexpected watch %v (%v)", w, err)
	}
	lines := f.dbg.SaveWatchesToStrings()
	f.dbg.ClearWatches()
	f.dbg.LoadWatchesFromStrings(lines)
	if len(f.dbg.GetWatches()) != 1 {
		t.Fatal("expected watches to be reloaded")
	}
	f.dbg.UnsetWatch(0x80000308)
	if err := f.dbg.RemoveWatch(0); err == nil {
		t.Fatal("expected error removing from an empty list")
	}
}
