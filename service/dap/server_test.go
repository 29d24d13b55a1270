package dap

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/gekko"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/pkg/symbols"
	"github.com/gekkodbg/gekkodbg/service"
	"github.com/gekkodbg/gekkodbg/service/dap/daptest"
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
	client     *daptest.Client
	m          *emu.Machine
	dbg        *proc.DebugInterface
	disconnect chan struct{}
}

func startDAPServer(t *testing.T) *fixture {
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
	t.Cleanup(m.Stop)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot setup listener required for testing: %v", err)
	}
	disconnectChan := make(chan struct{})
	server := NewServer(&service.Config{
		Listener:       listener,
		Debugger:       dbg,
		Runner:         m,
		Symbols:        syms,
		LoadImage:      m.LoadImage,
		DisconnectChan: disconnectChan,
	})
	server.Run()
	t.Cleanup(server.Stop)

	client := daptest.NewClient(t, listener.Addr().String())
	t.Cleanup(client.Close)
	return &fixture{client: client, m: m, dbg: dbg, disconnect: disconnectChan}
}

// launch runs the initialization sequence up to the configurationDone
// request.
func (f *fixture) launch(t *testing.T, stopOnEntry bool) {
	t.Helper()
	f.client.InitializeRequest()
	f.client.ExpectInitializeResponse(t)
	f.client.LaunchRequest(map[string]interface{}{"stopOnEntry": stopOnEntry})
	f.client.ExpectInitializedEvent(t)
	f.client.ExpectLaunchResponse(t)
}

func (f *fixture) configurationDone(t *testing.T, stopOnEntry bool) {
	t.Helper()
	f.client.ConfigurationDoneRequest()
	if stopOnEntry {
		if se := f.client.ExpectStoppedEvent(t); se.Body.Reason != "entry" || se.Body.ThreadId != 1 {
			t.Fatalf("expected entry stop on thread 1; got %#v", se.Body)
		}
	}
	f.client.ExpectConfigurationDoneResponse(t)
}

func (f *fixture) waitDisconnect(t *testing.T) {
	t.Helper()
	select {
	case <-f.disconnect:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
}

func TestInitializeCapabilities(t *testing.T) {
	f := startDAPServer(t)
	f.client.InitializeRequest()
	r := f.client.ExpectInitializeResponse(t)
	if r.Seq != 0 || r.RequestSeq != 1 {
		t.Errorf("got %#v, want Seq=0, RequestSeq=1", r)
	}
	caps := r.Body
	if !caps.SupportsInstructionBreakpoints || !caps.SupportsDataBreakpoints ||
		!caps.SupportsReadMemoryRequest || !caps.SupportsWriteMemoryRequest ||
		!caps.SupportsDisassembleRequest {
		t.Fatalf("missing capabilities %#v", caps)
	}
}

func TestLaunchStopOnEntryAndBreakpoint(t *testing.T) {
	f := startDAPServer(t)
	f.launch(t, true)
	if !f.dbg.IsAlive() {
		t.Fatal("expected machine to be started by launch")
	}

	f.client.SetInstructionBreakpointsRequest([]string{"main+0x8", "0x80003102", "nosuchsymbol"})
	bps := f.client.ExpectSetInstructionBreakpointsResponse(t).Body.Breakpoints
	if len(bps) != 3 {
		t.Fatalf("expected 3 breakpoints; got %d", len(bps))
	}
	if !bps[0].Verified || bps[0].InstructionReference != "0x80003108" {
		t.Errorf("expected verified breakpoint at 0x80003108; got %#v", bps[0])
	}
	if bps[1].Verified || !strings.Contains(bps[1].Message, "aligned") {
		t.Errorf("expected unaligned breakpoint to be rejected; got %#v", bps[1])
	}
	if bps[2].Verified || bps[2].Message == "" {
		t.Errorf("expected unknown symbol to be rejected; got %#v", bps[2])
	}
	if addrs := f.dbg.Breakpoints().Addresses(); len(addrs) != 1 || addrs[0] != 0x80003108 {
		t.Fatalf("unexpected breakpoints %v", addrs)
	}

	f.configurationDone(t, true)
	if f.m.PC() != emu.EntryPoint {
		t.Fatalf("expected machine stopped at entry; got %#x", f.m.PC())
	}

	f.client.ThreadsRequest()
	threads := f.client.ExpectThreadsResponse(t).Body.Threads
	if len(threads) != 1 || threads[0].Id != 1 || threads[0].Name != "CPU" {
		t.Fatalf("unexpected threads %#v", threads)
	}

	f.client.ContinueRequest(1)
	if r := f.client.ExpectContinueResponse(t); !r.Body.AllThreadsContinued {
		t.Errorf("expected AllThreadsContinued")
	}
	se := f.client.ExpectStoppedEvent(t)
	if se.Body.Reason != "instruction breakpoint" || len(se.Body.HitBreakpointIds) != 1 || se.Body.HitBreakpointIds[0] != bps[0].Id {
		t.Fatalf("unexpected stop %#v", se.Body)
	}
	if f.m.PC() != 0x80003108 {
		t.Fatalf("expected pc 0x80003108; got %#x", f.m.PC())
	}

	// Replacing the breakpoints removes the old ones.
	f.client.SetInstructionBreakpointsRequest(nil)
	f.client.ExpectSetInstructionBreakpointsResponse(t)
	if f.dbg.Breakpoints().Len() != 0 {
		t.Fatal("expected breakpoints to be replaced")
	}

	f.client.DisconnectRequest()
	f.client.ExpectDisconnectResponse(t)
	f.waitDisconnect(t)
	if f.m.IsRunning() {
		t.Fatal("expected launched machine to be stopped on disconnect")
	}
}

func TestDataBreakpoints(t *testing.T) {
	f := startDAPServer(t)
	f.launch(t, false)

	f.client.DataBreakpointInfoRequest("counter")
	info := f.client.ExpectDataBreakpointInfoResponse(t).Body
	if info.DataId != "0x80001000" || !strings.Contains(info.Description, "counter") || len(info.AccessTypes) != 3 {
		t.Fatalf("unexpected data breakpoint info %#v", info)
	}
	f.client.DataBreakpointInfoRequest("nosuchsymbol")
	if info := f.client.ExpectDataBreakpointInfoResponse(t).Body; info.DataId != nil {
		t.Fatalf("expected no data id; got %#v", info.DataId)
	}

	f.client.SetDataBreakpointsRequest([]dap.DataBreakpoint{
		{DataId: "0x80001000", AccessType: "write"},
		{DataId: "0x80002000", AccessType: "execute"},
	})
	bps := f.client.ExpectSetDataBreakpointsResponse(t).Body.Breakpoints
	if len(bps) != 2 || !bps[0].Verified || bps[1].Verified {
		t.Fatalf("unexpected data breakpoints %#v", bps)
	}
	mcs := f.dbg.MemChecks().MemChecks()
	if len(mcs) != 1 || mcs[0].StartAddress != 0x80001000 || mcs[0].EndAddress != 0x80001003 || !mcs[0].IsBreakOnWrite || mcs[0].IsBreakOnRead {
		t.Fatalf("unexpected memchecks %v", mcs)
	}

	f.configurationDone(t, false)
	se := f.client.ExpectStoppedEvent(t)
	if se.Body.Reason != "data breakpoint" || len(se.Body.HitBreakpointIds) != 1 || se.Body.HitBreakpointIds[0] != bps[0].Id {
		t.Fatalf("unexpected stop %#v", se.Body)
	}

	f.client.ReadMemoryRequest("counter", 0, 4)
	r := f.client.ExpectReadMemoryResponse(t).Body
	data, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0, 0, 0, 42}) {
		t.Fatalf("expected counter to be 42; got %v", data)
	}
}

func TestMemoryRequests(t *testing.T) {
	f := startDAPServer(t)
	f.launch(t, true)
	f.configurationDone(t, true)

	f.client.ReadMemoryRequest("main", 0, 8)
	r := f.client.ExpectReadMemoryResponse(t).Body
	if r.Address != "0x80003100" || r.UnreadableBytes != 0 {
		t.Fatalf("unexpected read %#v", r)
	}
	if expected := base64.StdEncoding.EncodeToString([]byte{0x3C, 0x60, 0x80, 0x00, 0x38, 0x80, 0x00, 0x2A}); r.Data != expected {
		t.Fatalf("expected %s; got %s", expected, r.Data)
	}

	// The last word of main memory followed by unmapped memory.
	f.client.ReadMemoryRequest("0x817ffff0", 0xC, 8)
	r = f.client.ExpectReadMemoryResponse(t).Body
	if r.Address != "0x817ffffc" || r.UnreadableBytes != 4 {
		t.Fatalf("unexpected read %#v", r)
	}

	f.client.WriteMemoryRequest("0x80003110", []byte{0x60, 0, 0, 0})
	if w := f.client.ExpectWriteMemoryResponse(t).Body; w.BytesWritten != 4 {
		t.Fatalf("expected 4 bytes written; got %d", w.BytesWritten)
	}
	if v, err := f.m.Mem.ReadU32(0x80003110); err != nil || v != 0x60000000 {
		t.Fatalf("expected patched word; got %#x (%v)", v, err)
	}

	f.client.WriteMemoryRequest("0x80003111", []byte{1, 2, 3})
	if er := f.client.ExpectErrorResponse(t); er.Body.Error.Id != UnableToWriteMemory {
		t.Fatalf("unexpected error %#v", er.Body.Error)
	}

	f.client.DisassembleRequest("main", 0, 3)
	insts := f.client.ExpectDisassembleResponse(t).Body.Instructions
	if len(insts) != 3 {
		t.Fatalf("expected 3 instructions; got %d", len(insts))
	}
	d := gekko.NewDisassembler()
	if insts[0].Address != "0x80003100" || insts[0].Symbol != "main" || insts[0].InstructionBytes != "3c608000" ||
		insts[0].Instruction != d.Disassemble(0x3C608000, 0x80003100) {
		t.Fatalf("unexpected instruction %#v", insts[0])
	}
	if insts[1].Symbol != "main+0x4" {
		t.Fatalf("unexpected symbol %q", insts[1].Symbol)
	}

	f.client.DisassembleRequest("main", -1, 1)
	insts = f.client.ExpectDisassembleResponse(t).Body.Instructions
	if len(insts) != 1 || insts[0].Address != "0x800030fc" {
		t.Fatalf("unexpected instructions %#v", insts)
	}

	f.client.DisassembleRequest("0x40000000", 0, 1)
	insts = f.client.ExpectDisassembleResponse(t).Body.Instructions
	if insts[0].Instruction != "(invalid address)" {
		t.Fatalf("unexpected instruction %#v", insts[0])
	}
}

func TestPause(t *testing.T) {
	f := startDAPServer(t)
	f.launch(t, false)
	f.configurationDone(t, false)

	f.client.PauseRequest(1)
	f.client.ExpectPauseResponse(t)
	if se := f.client.ExpectStoppedEvent(t); se.Body.Reason != "pause" {
		t.Fatalf("unexpected stop %#v", se.Body)
	}
	if !f.m.IsPaused() {
		t.Fatal("expected machine to be paused")
	}
	if d := f.dbg.Disassembly(f.m.PC()); d.Status != proc.ReadOK {
		t.Fatalf("expected paused machine to be inspectable; got %s", d.Status)
	}
}

func TestTerminatedWhenMachineStops(t *testing.T) {
	f := startDAPServer(t)
	f.launch(t, false)
	f.configurationDone(t, false)
	f.m.Stop()
	f.client.ExpectTerminatedEvent(t)
}

func TestLaunchProgram(t *testing.T) {
	f := startDAPServer(t)
	image := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(image, []byte{0x38, 0x60, 0x00, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}
	f.client.LaunchRequest(map[string]interface{}{"program": image, "stopOnEntry": true})
	f.client.ExpectInitializedEvent(t)
	f.client.ExpectLaunchResponse(t)
	if v, _ := f.m.Mem.ReadU32(emu.EntryPoint); v != 0x38600001 {
		t.Fatalf("expected image to be loaded; got %#x", v)
	}

	f.client.LaunchRequest(nil)
	if er := f.client.ExpectErrorResponse(t); er.Body.Error.Id != FailedToLaunch {
		t.Fatalf("expected launch of a running machine to fail; got %#v", er.Body.Error)
	}
}

func TestAttach(t *testing.T) {
	f := startDAPServer(t)
	f.client.AttachRequest(nil)
	if er := f.client.ExpectErrorResponse(t); er.Body.Error.Id != FailedToAttach {
		t.Fatalf("expected attach to fail; got %#v", er.Body.Error)
	}

	if err := f.m.Start(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	f.client.AttachRequest(map[string]interface{}{})
	f.client.ExpectInitializedEvent(t)
	f.client.ExpectAttachResponse(t)
	f.client.SetInstructionBreakpointsRequest([]string{"0x8000310c"})
	f.client.ExpectSetInstructionBreakpointsResponse(t)
	f.configurationDone(t, false)
	if se := f.client.ExpectStoppedEvent(t); se.Body.Reason != "instruction breakpoint" {
		t.Fatalf("unexpected stop %#v", se.Body)
	}

	f.client.DisconnectRequest()
	f.client.ExpectDisconnectResponse(t)
	f.waitDisconnect(t)
	if !f.m.IsRunning() {
		t.Fatal("expected attached machine to keep running")
	}
	if f.dbg.Breakpoints().Len() != 0 {
		t.Fatal("expected session to be cleared on disconnect")
	}
}

func TestBadRequests(t *testing.T) {
	f := startDAPServer(t)

	f.client.ContinueRequest(1)
	if er := f.client.ExpectErrorResponse(t); er.Body.Error.Id != FailedToContinue {
		t.Fatalf("unexpected error %#v", er.Body.Error)
	}

	f.client.LaunchRequest(map[string]interface{}{"program": 5})
	er := f.client.ExpectErrorResponse(t)
	if er.Body.Error.Id != FailedToLaunch || !strings.Contains(er.Body.Error.Format, "cannot unmarshal number into \"program\" of type string") {
		t.Fatalf("unexpected error %#v", er.Body.Error)
	}

	f.client.StepBackRequest()
	er = f.client.ExpectErrorResponse(t)
	if er.Command != "stepBack" || er.Body.Error.Id != UnsupportedCommand {
		t.Fatalf("unexpected error %#v", er)
	}

	f.client.ReadMemoryRequest("nosuchsymbol", 0, 4)
	if er := f.client.ExpectErrorResponse(t); er.Body.Error.Id != UnableToReadMemory {
		t.Fatalf("unexpected error %#v", er.Body.Error)
	}

	// Memory of a machine that is not running is unreadable.
	f.client.ReadMemoryRequest("main", 0, 4)
	if r := f.client.ExpectReadMemoryResponse(t).Body; r.UnreadableBytes != 4 || r.Data != "" {
		t.Fatalf("unexpected read %#v", r)
	}
}
