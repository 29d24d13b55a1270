package terminal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gekkodbg/gekkodbg/pkg/config"
	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/pkg/symbols"
)

// program stores 42 at 0x80001000, reads it back and spins.
var program = []uint32{
	0x3C608000, // lis r3,0x8000
	0x3880002A, // li r4,42
	0x90831000, // stw r4,0x1000(r3)
	0x80A31000, // lwz r5,0x1000(r3)
	0x48000000, // b .
}

type fixture struct {
	term *Term
	m    *emu.Machine
	out  *bytes.Buffer
}

func withTestTerminal(t *testing.T, conf *config.Config) *fixture {
	t.Helper()
	m := emu.New()
	for i, w := range program {
		if err := m.Mem.WriteU32(emu.EntryPoint+uint32(i*4), w); err != nil {
			t.Fatal(err)
		}
	}
	syms := symbols.New()
	syms.Add("main", emu.EntryPoint, 0x14, proc.FunctionSymbol)
	syms.Add("counter", 0x80001000, 4, proc.DataSymbol)

	cfg := m.Collaborators()
	cfg.Symbols = syms
	dbg, err := proc.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	m.Attach(dbg.Breakpoints(), dbg.MemChecks())
	if err := m.Start(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Stop)

	out := new(bytes.Buffer)
	return &fixture{term: newTerm(dbg, m, syms, conf, out, true), m: m, out: out}
}

func (f *fixture) exec(t *testing.T, cmdstr string) string {
	t.Helper()
	f.out.Reset()
	if err := f.term.cmds.Call(cmdstr, f.term); err != nil {
		t.Fatalf("%s: %v", cmdstr, err)
	}
	return f.out.String()
}

func (f *fixture) execErr(t *testing.T, cmdstr string) error {
	t.Helper()
	f.out.Reset()
	err := f.term.cmds.Call(cmdstr, f.term)
	if err == nil {
		t.Fatalf("%s: expected error", cmdstr)
	}
	return err
}

func assertContains(t *testing.T, out string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output:\n%s", s, out)
		}
	}
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existent-command")
	)

	err := cmd(nil, "")
	if err == nil {
		t.Fatal("cmd() did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestCommandReplayWithoutPreviousCommand(t *testing.T) {
	var (
		cmds = DebugCommands()
		cmd  = cmds.Find("")
		err  = cmd(nil, "")
	)

	if err != nil {
		t.Error("Null command not returned", err)
	}
}

func TestCommandThread(t *testing.T) {
	var (
		cmds = DebugCommands()
		cmd  = cmds.Find("step")
	)

	err := cmd(&Term{}, "")
	if err != errNoRunner {
		t.Fatalf("expected %v; got %v", errNoRunner, err)
	}
}

func TestMerge(t *testing.T) {
	cmds := DebugCommands()
	cmds.Merge(map[string][]string{"break": {"bb"}})
	cmds.Merge(map[string][]string{"break": {"bk"}})

	var found, stale bool
	for _, cmd := range cmds.cmds {
		if cmd.aliases[0] != "break" {
			continue
		}
		for _, alias := range cmd.aliases {
			switch alias {
			case "bk":
				found = true
			case "bb":
				stale = true
			}
		}
	}
	if !found || stale {
		t.Fatalf("unexpected aliases after merge (found %v, stale %v)", found, stale)
	}
	if got := cmds.completer("b"); !contains(got, "bk") {
		t.Fatalf("expected merged alias to be completed; got %v", got)
	}
}

func contains(v []string, s string) bool {
	for _, x := range v {
		if x == s {
			return true
		}
	}
	return false
}

func TestCompleter(t *testing.T) {
	cmds := DebugCommands()
	got := cmds.completer("mem")
	if len(got) != 2 || got[0] != "memcheck" || got[1] != "memchecks" {
		t.Fatalf("unexpected completions %v", got)
	}
	got = cmds.completer("help dis")
	for _, s := range []string{"help disable", "help disass", "help disassemble"} {
		if !contains(got, s) {
			t.Fatalf("expected %q in %v", s, got)
		}
	}
	if got := cmds.completer("break ma"); got != nil {
		t.Fatalf("expected no completion of arguments; got %v", got)
	}
}

func TestHelp(t *testing.T) {
	f := withTestTerminal(t, nil)
	out := f.exec(t, "help")
	assertContains(t, out, "Running the program:", "Managing watches:", "memcheck (alias: mc)")
	out = f.exec(t, "help patch")
	assertContains(t, out, "patch <address> <value>")
	if err := f.execErr(t, "help nothing"); err != noCmdError {
		t.Fatalf("expected %v; got %v", noCmdError, err)
	}
}

func TestParseAddress(t *testing.T) {
	f := withTestTerminal(t, nil)
	for _, tc := range []struct {
		in       string
		expected uint32
	}{
		{"80003100", 0x80003100},
		{"0x80003104", 0x80003104},
		{"pc", emu.EntryPoint},
		{"pc+8", emu.EntryPoint + 8},
		{"main", emu.EntryPoint},
		{"counter+0x2", 0x80001002},
	} {
		addr, err := f.term.parseAddress(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if addr != tc.expected {
			t.Fatalf("%s: expected %#x; got %#x", tc.in, tc.expected, addr)
		}
	}
	if _, err := f.term.parseAddress("nosuchsymbol"); err == nil {
		t.Fatal("expected error for unknown symbol")
	}
}

func TestBreakpointLocations(t *testing.T) {
	f := withTestTerminal(t, nil)
	f.term.symbols.Add("mainLoop", 0x80003200, 0x10, proc.FunctionSymbol)
	assertContains(t, f.exec(t, "break /^main/"), "Breakpoint set at 0x80003100 <main>", "Breakpoint set at 0x80003200 <mainLoop>")
	if f.term.dbg.Breakpoints().Len() != 2 {
		t.Fatalf("expected a breakpoint per matching function")
	}
	// counter is a data symbol.
	if err := f.execErr(t, "break /^count/"); !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error %v", err)
	}
	assertContains(t, f.exec(t, "break +2"), "Breakpoint set at 0x80003108 <main+0x8>")
	if err := f.execErr(t, "toggle /^main/"); !strings.Contains(err.Error(), "ambiguous") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBreakpointCommands(t *testing.T) {
	f := withTestTerminal(t, nil)
	assertContains(t, f.exec(t, "break main+8"), "Breakpoint set at 0x80003108 <main+0x8>")
	assertContains(t, f.exec(t, "toggle 0x80003110"), "Breakpoint set at 0x80003110")
	assertContains(t, f.exec(t, "bp"), "Breakpoint 1 at 0x80003108", "Breakpoint 2 at 0x80003110")

	assertContains(t, f.exec(t, "continue"), "> Breakpoint hit at 0x80003108", "=>")
	if f.m.PC() != 0x80003108 {
		t.Fatalf("expected pc 0x80003108; got %#x", f.m.PC())
	}

	assertContains(t, f.exec(t, "toggle 0x80003110"), "Breakpoint cleared at 0x80003110")
	f.exec(t, "clear 0x80003108")
	if err := f.execErr(t, "clear 0x80003108"); !strings.Contains(err.Error(), "no breakpoint") {
		t.Fatalf("unexpected error %v", err)
	}
	f.exec(t, "break 0x80003100")
	f.exec(t, "clearall")
	assertContains(t, f.exec(t, "breakpoints"), "No breakpoints.")
}

func TestMemCheckCommands(t *testing.T) {
	f := withTestTerminal(t, nil)
	assertContains(t, f.exec(t, "memcheck -w counter"), "Memcheck set at 0x80001000")
	assertContains(t, f.exec(t, "mc -r -log -nobreak 0x80002000 0x80002010"), "0x80002000-0x80002010 [read,log]")
	assertContains(t, f.exec(t, "memchecks"), "Memcheck 1 at 0x80001000 [write,break]", "Memcheck 2 at 0x80002000-0x80002010 [read,log]")

	assertContains(t, f.exec(t, "c"), "> Memcheck hit at 0x8000310c <main+0xc> accessing 0x80001000")

	assertContains(t, f.exec(t, "memcheck 0x80001000"), "Memcheck cleared at 0x80001000")
	if f.term.dbg.IsMemCheck(0x80001000, 4) {
		t.Fatal("expected memcheck to be removed")
	}
	if err := f.execErr(t, "memcheck -x 0x80001000"); !strings.Contains(err.Error(), "unknown flag") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := f.execErr(t, "memcheck 0x80001010 0x80001000"); !strings.Contains(err.Error(), "precedes") {
		t.Fatalf("unexpected error %v", err)
	}
	f.exec(t, "clearmemchecks")
	assertContains(t, f.exec(t, "memchecks"), "No memchecks.")
}

func TestWatchCommands(t *testing.T) {
	f := withTestTerminal(t, &config.Config{WatchesFile: filepath.Join(t.TempDir(), "watches.txt")})
	if err := f.m.Mem.WriteU32(0x80001000, 0xCAFEBABE); err != nil {
		t.Fatal(err)
	}
	assertContains(t, f.exec(t, "watch counter my counter"), "Watch 0 set at 0x80001000 <counter>")
	f.exec(t, "w 0x80001004")
	f.exec(t, "rename 1 second")
	f.exec(t, "disable 1")
	assertContains(t, f.exec(t, "watches"), "my counter", "CAFEBABE", "second", "false")

	if err := f.execErr(t, "enable 7"); !strings.Contains(err.Error(), "7") {
		t.Fatalf("unexpected error %v", err)
	}

	assertContains(t, f.exec(t, "savewatches"), "Saved 2 watches")
	f.exec(t, "rewatch 0 0x80001008")
	f.exec(t, "delwatch 1")
	if ws := f.term.dbg.GetWatches(); len(ws) != 1 || ws[0].Address != 0x80001008 {
		t.Fatalf("unexpected watches %v", ws)
	}

	assertContains(t, f.exec(t, "loadwatches"), "Loaded 2 watches")
	ws := f.term.dbg.GetWatches()
	if len(ws) != 2 || ws[0].Name != "my counter" || ws[1].Address != 0x80001004 {
		t.Fatalf("unexpected watches after load %v", ws)
	}

	f.exec(t, "unwatch 0x80001000")
	if f.term.dbg.HasEnabledWatch(0x80001000) {
		t.Fatal("expected watch to be removed")
	}
}

func TestWatchesFileNotConfigured(t *testing.T) {
	f := withTestTerminal(t, nil)
	if err := f.execErr(t, "savewatches"); !strings.Contains(err.Error(), "watches-file") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMemoryCommands(t *testing.T) {
	count := 3
	f := withTestTerminal(t, &config.Config{DisassembleCount: &count})
	f.m.ARAM.WriteARAM(0, 0x12)

	out := f.exec(t, "disassemble")
	assertContains(t, out, "TEXT main(SB)", "=>", "0x80003100", "3C608000", "0x80003108")
	if strings.Contains(out, "0x8000310c") {
		t.Fatalf("expected 3 instructions:\n%s", out)
	}
	out = f.exec(t, "disass 0x80003110 1")
	assertContains(t, out, "48000000")

	out = f.exec(t, "x -count 5 0x80003100")
	assertContains(t, out, "0x80003100:  3C608000  3880002A  90831000  80A31000", "0x80003110:  48000000")
	assertContains(t, f.exec(t, "examine -aram 0"), "12000000 (ARAM)")
	assertContains(t, f.exec(t, "x 0x40000000"), "--------")

	assertContains(t, f.exec(t, "patch 0x80003104 60000000"), "60000000")
	assertContains(t, f.exec(t, "si"), "> Stopped (step) at 0x80003104")
	if v := f.term.dbg.ReadInstruction(0x80003104); v != 0x60000000 {
		t.Fatalf("expected patched instruction; got %#x", v)
	}

	assertContains(t, f.exec(t, "color main"), "#D0FFFF")
	assertContains(t, f.exec(t, "color counter"), "#EEEEFF")
	assertContains(t, f.exec(t, "color 0x40000000"), "#EEEEEE")
	assertContains(t, f.exec(t, "describe 0x80003104"), "main+0x4")
	assertContains(t, f.exec(t, "symbols count"), "counter")
}

func TestRunCommands(t *testing.T) {
	f := withTestTerminal(t, nil)
	assertContains(t, f.exec(t, "state"), "running=true started=true paused=true")
	assertContains(t, f.exec(t, "step 3"), "> Stopped (step) at 0x8000310c")
	assertContains(t, f.exec(t, "pc"), "pc = 0x8000310c <main+0xc>")
	f.exec(t, "setpc main")
	if f.m.PC() != emu.EntryPoint {
		t.Fatalf("expected pc at entry point; got %#x", f.m.PC())
	}
	if err := f.execErr(t, "pause"); !strings.Contains(err.Error(), "already paused") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := f.execErr(t, "step x"); !strings.Contains(err.Error(), "invalid count") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNotAlive(t *testing.T) {
	f := withTestTerminal(t, nil)
	f.m.Stop()
	if err := f.execErr(t, "disassemble"); err != errNotAlive {
		t.Fatalf("expected %v; got %v", errNotAlive, err)
	}
	if err := f.execErr(t, "continue"); err != errNotAlive {
		t.Fatalf("expected %v; got %v", errNotAlive, err)
	}
}

func TestSourceAndReset(t *testing.T) {
	f := withTestTerminal(t, nil)
	dir := t.TempDir()
	script := filepath.Join(dir, "init")
	err := os.WriteFile(script, []byte("# comment\nbreak main\n\nnosuchcommand\nwatch counter\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, f.exec(t, "source "+script), "init:4: command not available")
	if !f.term.dbg.IsBreakpoint(emu.EntryPoint) || len(f.term.dbg.GetWatches()) != 1 {
		t.Fatal("expected init file to be executed")
	}

	star := filepath.Join(dir, "init.star")
	err = os.WriteFile(star, []byte("def command_bpcount(args):\n    print(len(breakpoints()))\n\ndef main():\n    set_breakpoint(0x80003104)\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.exec(t, "source "+star)
	assertContains(t, f.exec(t, "bpcount"), "2")
	if got := f.term.cmds.completer("bpc"); !contains(got, "bpcount") {
		t.Fatalf("expected starlark command to be completed; got %v", got)
	}

	assertContains(t, f.exec(t, "reset"), "Debugging session cleared")
	if len(f.term.dbg.Breakpoints().Addresses()) != 0 || len(f.term.dbg.GetWatches()) != 0 {
		t.Fatal("expected the session to be cleared")
	}

	if _, ok := f.execErr(t, "exit").(ExitRequestError); !ok {
		t.Fatal("expected exit request")
	}
}

func TestPanicRecovered(t *testing.T) {
	f := withTestTerminal(t, nil)
	f.term.cmds.Register("boom", func(t *Term, args string) error {
		panic("boom")
	}, "panics")
	if err := f.execErr(t, "boom"); !strings.Contains(err.Error(), "internal error") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMemoryColorValidated(t *testing.T) {
	conf := &config.Config{MemoryColor: 50}
	f := withTestTerminal(t, conf)
	if f.term.conf.MemoryColor != ansiBlue {
		t.Fatalf("expected invalid color to be replaced; got %d", f.term.conf.MemoryColor)
	}
	f.term.dumb = false
	if got := f.term.colorize("x"); got != "\033[34mx\033[0m" {
		t.Fatalf("unexpected colorized string %q", got)
	}
}
