// Package dap implements VSCode's Debug Adaptor Protocol (DAP).
// This allows gekkodbg to communicate with frontends using DAP
// without a separate adaptor. The frontend connects to gekkodbg
// running in server mode over TCP. Requests are processed one at
// a time; only execution runs in the background, reporting stops
// as events.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/go-dap"
	"go.uber.org/atomic"

	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/logflags"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/service"
)

// The emulated CPU is the only thread.
const (
	cpuThreadID   = 1
	cpuThreadName = "CPU"
)

// Data breakpoints watch one word.
const dataBreakpointSize = 4

// Server implements a DAP server that can accept a single client for
// a single debug session. It does not support restarting.
// The server operates via three goroutines:
// (1) Main goroutine where the server is created via NewServer(),
// started via Run() and stopped via Stop().
// (2) Run goroutine started from Run() that accepts a client connection,
// reads, decodes and processes each request, sending back events and
// responses.
// (3) While the machine executes, a goroutine waiting for it to stop and
// sending the stopped event.
type Server struct {
	// config is all the information necessary to expose the debugging session.
	config *service.Config
	// listener is used to accept the client connection.
	listener net.Listener
	// conn is the accepted client connection.
	conn net.Conn
	// stopChan is closed when the server is Stop()-ed. This can be used to signal
	// to goroutines run by the server that it's time to quit.
	stopChan chan struct{}
	// ctx is cancelled when the server is stopped.
	ctx    context.Context
	cancel context.CancelFunc
	// reader is used to read requests from the connection.
	reader *bufio.Reader
	// sendingMu synchronizes writes to conn.
	sendingMu sync.Mutex
	// dbg inspects the machine.
	dbg *proc.DebugInterface
	// log is used for structured logging.
	log logflags.Logger

	// launched is set if the machine was started by a launch request and
	// must be stopped with the session.
	launched bool
	// stopOnEntry is set to stop the machine when configuration is done.
	stopOnEntry bool
	// running is set while a goroutine waits for the machine to stop.
	running *atomic.Bool

	// mu protects the breakpoint ids reported in stopped events.
	mu             sync.Mutex
	instructionBPs map[uint32]int
	dataBPs        map[uint32]int
	nextBreakpoint int

	disconnectOnce sync.Once
}

// NewServer creates a new DAP Server. It takes an opened Listener
// via config and assumes its ownership. config.DisconnectChan has to be set;
// it will be closed by the server when the client disconnects or requests
// shutdown. Once DisconnectChan is closed, Server.Stop() must be called.
func NewServer(config *service.Config) *Server {
	logger := logflags.DAPLogger()
	logflags.WriteDAPListeningMessage(config.Listener.Addr().String())
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:         config,
		listener:       config.Listener,
		stopChan:       make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		dbg:            config.Debugger,
		log:            logger,
		running:        atomic.NewBool(false),
		instructionBPs: map[uint32]int{},
		dataBPs:        map[uint32]int{},
		nextBreakpoint: 1,
	}
}

// Stop stops the DAP server, closes the listener and the client
// connection. It stops the machine if it was launched by the server.
// This method mustn't be called more than once.
func (s *Server) Stop() {
	s.listener.Close()
	close(s.stopChan)
	s.cancel()
	if s.conn != nil {
		// Unless Stop() was called after serveDAPCodec()
		// returned, this will result in closed connection error
		// on next read, breaking out of the read loop and
		// allowing the run goroutine to exit.
		s.conn.Close()
	}
	if s.launched {
		s.config.Runner.Stop()
	}
}

// signalDisconnect closes config.DisconnectChan if not nil, which
// signals that the client disconnected or there was a client
// connection failure. It can be called more than once.
func (s *Server) signalDisconnect() {
	s.disconnectOnce.Do(func() {
		if s.config.DisconnectChan != nil {
			close(s.config.DisconnectChan)
		}
	})
}

// Run launches a new goroutine where it accepts a client connection
// and starts processing requests from it. Use Stop() to close connection.
// The server does not support multiple clients, serially or in parallel.
func (s *Server) Run() {
	go func() {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("Error accepting client connection: %s\n", err)
			}
			s.signalDisconnect()
			return
		}
		s.conn = conn
		s.serveDAPCodec()
	}()
}

// serveDAPCodec reads and decodes requests from the client
// until it encounters an error or EOF, when it sends
// the disconnect signal and returns.
func (s *Server) serveDAPCodec() {
	defer s.signalDisconnect()
	s.reader = bufio.NewReader(s.conn)
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			stopRequested := false
			select {
			case <-s.stopChan:
				stopRequested = true
			default:
			}
			if err != io.EOF && !stopRequested {
				s.log.Error("DAP error: ", err)
			}
			return
		}
		s.handleRequest(request)
		if _, ok := request.(*dap.DisconnectRequest); ok {
			return
		}
	}
}

func (s *Server) handleRequest(request dap.Message) {
	defer func() {
		// In case a handler panics, we catch the panic and send an error response
		// back to the client.
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	jsonmsg, _ := json.Marshal(request)
	s.log.Debug("[<- from client]", string(jsonmsg))

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.onAttachRequest(request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		// Always sent by some clients even though we specified no
		// filters at initialization. Handle as no-op.
		s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
	case *dap.SetInstructionBreakpointsRequest:
		// Optional (capability ‘supportsInstructionBreakpoints’)
		s.onSetInstructionBreakpointsRequest(request)
	case *dap.DataBreakpointInfoRequest:
		// Optional (capability ‘supportsDataBreakpoints’)
		s.onDataBreakpointInfoRequest(request)
	case *dap.SetDataBreakpointsRequest:
		// Optional (capability ‘supportsDataBreakpoints’)
		s.onSetDataBreakpointsRequest(request)
	case *dap.ConfigurationDoneRequest:
		// Optional (capability ‘supportsConfigurationDoneRequest’)
		s.onConfigurationDoneRequest(request)
	case *dap.ContinueRequest:
		s.onContinueRequest(request)
	case *dap.PauseRequest:
		s.onPauseRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.ReadMemoryRequest:
		// Optional (capability ‘supportsReadMemoryRequest‘)
		s.onReadMemoryRequest(request)
	case *dap.WriteMemoryRequest:
		// Optional (capability ‘supportsWriteMemoryRequest‘)
		s.onWriteMemoryRequest(request)
	case *dap.DisassembleRequest:
		// Optional (capability ‘supportsDisassembleRequest’)
		s.onDisassembleRequest(request)
	case dap.RequestMessage:
		s.sendUnsupportedErrorResponse(*request.GetRequest())
	default:
		// This is a DAP message that go-dap has a struct for, so
		// decoding succeeded, but this function does not know how
		// to handle.
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("Unable to process %#v\n", request))
	}
}

func (s *Server) send(message dap.Message) {
	jsonmsg, _ := json.Marshal(message)
	s.log.Debug("[-> to client]", string(jsonmsg))
	s.sendingMu.Lock()
	defer s.sendingMu.Unlock()
	if err := dap.WriteProtocolMessage(s.conn, message); err != nil {
		s.log.Debugf("sending %T: %v", message, err)
	}
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsInstructionBreakpoints = true
	response.Body.SupportsDataBreakpoints = true
	response.Body.SupportsReadMemoryRequest = true
	response.Body.SupportsWriteMemoryRequest = true
	response.Body.SupportsDisassembleRequest = true
	s.send(response)
}

func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	var args LaunchConfig
	if err := unmarshalLaunchAttachArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	runner := s.config.Runner
	if runner.IsRunning() {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
			"the machine is already running, use an attach request")
		return
	}
	if args.Program != "" {
		if s.config.LoadImage == nil {
			s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
				"loading a program is not supported by this server")
			return
		}
		if err := s.config.LoadImage(args.Program); err != nil {
			s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
			return
		}
	}
	if err := runner.Start(s.ctx, true); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	s.launched = true
	s.stopOnEntry = args.StopOnEntry

	// Notify the client that the debugger is ready to start accepting
	// configuration requests for setting breakpoints, etc. The client
	// will end the configuration sequence with 'configurationDone'.
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
}

func (s *Server) onAttachRequest(request *dap.AttachRequest) {
	var args AttachConfig
	if err := unmarshalLaunchAttachArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToAttach, "Failed to attach", err.Error())
		return
	}
	if !s.dbg.IsAlive() {
		s.sendErrorResponse(request.Request, FailedToAttach, "Failed to attach", "the machine is not running")
		return
	}
	s.stopOnEntry = args.StopOnEntry
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.AttachResponse{Response: *newResponse(request.Request)})
}

// onDisconnectRequest handles the DisconnectRequest. A machine launched
// by the server is stopped, otherwise the debugging session is cleared
// and the machine keeps its state.
func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	if s.launched {
		s.config.Runner.Stop()
		s.launched = false
	} else {
		s.dbg.Clear()
	}
	s.signalDisconnect()
}

func (s *Server) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if s.stopOnEntry {
		s.config.Runner.Pause()
		e := &dap.StoppedEvent{
			Event: *newEvent("stopped"),
			Body:  dap.StoppedEventBody{Reason: "entry", ThreadId: cpuThreadID, AllThreadsStopped: true},
		}
		s.send(e)
	}
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
	if !s.stopOnEntry {
		s.runUntilStop()
	}
}

func (s *Server) onContinueRequest(request *dap.ContinueRequest) {
	if !s.dbg.IsAlive() {
		s.sendErrorResponse(request.Request, FailedToContinue, "Unable to continue", "the machine is not running")
		return
	}
	s.send(&dap.ContinueResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
	})
	s.runUntilStop()
}

// onPauseRequest sends the response before pausing so that the stopped
// event always follows it.
func (s *Server) onPauseRequest(request *dap.PauseRequest) {
	s.send(&dap.PauseResponse{Response: *newResponse(request.Request)})
	s.config.Runner.Pause()
}

func (s *Server) onThreadsRequest(request *dap.ThreadsRequest) {
	response := &dap.ThreadsResponse{Response: *newResponse(request.Request)}
	response.Body.Threads = []dap.Thread{{Id: cpuThreadID, Name: cpuThreadName}}
	s.send(response)
}

// onSetInstructionBreakpointsRequest replaces every breakpoint with the
// ones in the request.
func (s *Server) onSetInstructionBreakpointsRequest(request *dap.SetInstructionBreakpointsRequest) {
	response := &dap.SetInstructionBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbg.ClearAllBreakpoints()
	s.instructionBPs = map[uint32]int{}
	for i, b := range request.Arguments.Breakpoints {
		bp := &response.Body.Breakpoints[i]
		addr, err := s.parseAddress(b.InstructionReference)
		if err == nil {
			addr, err = offsetAddress(addr, b.Offset)
		}
		if err != nil {
			bp.Message = err.Error()
			continue
		}
		if addr&3 != 0 {
			bp.Message = fmt.Sprintf("%#08x is not word aligned", addr)
			continue
		}
		s.dbg.SetBreakpoint(addr)
		id, ok := s.instructionBPs[addr]
		if !ok {
			id = s.newBreakpointID()
			s.instructionBPs[addr] = id
		}
		bp.Id = id
		bp.Verified = true
		bp.InstructionReference = formatAddress(addr)
	}
	s.send(response)
}

func (s *Server) newBreakpointID() int {
	id := s.nextBreakpoint
	s.nextBreakpoint++
	return id
}

var dataBreakpointAccessTypes = []dap.DataBreakpointAccessType{"read", "write", "readWrite"}

// onDataBreakpointInfoRequest resolves the name of the request as an
// address expression.
func (s *Server) onDataBreakpointInfoRequest(request *dap.DataBreakpointInfoRequest) {
	response := &dap.DataBreakpointInfoResponse{Response: *newResponse(request.Request)}
	addr, err := s.parseAddress(request.Arguments.Name)
	if err != nil {
		response.Body.DataId = nil
		response.Body.Description = fmt.Sprintf("unable to watch %s: %v", request.Arguments.Name, err)
		s.send(response)
		return
	}
	response.Body.DataId = formatAddress(addr)
	response.Body.Description = fmt.Sprintf("%d bytes at %s", dataBreakpointSize, formatAddress(addr))
	if desc := s.dbg.GetDescription(addr); desc != "" && desc != "--" {
		response.Body.Description += " (" + desc + ")"
	}
	response.Body.AccessTypes = dataBreakpointAccessTypes
	response.Body.CanPersist = true
	s.send(response)
}

// onSetDataBreakpointsRequest replaces every memcheck with the data
// breakpoints in the request.
func (s *Server) onSetDataBreakpointsRequest(request *dap.SetDataBreakpointsRequest) {
	response := &dap.SetDataBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbg.ClearAllMemChecks()
	s.dataBPs = map[uint32]int{}
	for i, b := range request.Arguments.Breakpoints {
		bp := &response.Body.Breakpoints[i]
		addr, err := s.parseAddress(b.DataId)
		if err != nil {
			bp.Message = err.Error()
			continue
		}
		mc := proc.MemCheck{
			StartAddress: addr,
			EndAddress:   addr + dataBreakpointSize - 1,
			BreakOnHit:   true,
		}
		switch b.AccessType {
		case "read":
			mc.IsBreakOnRead = true
		case "write", "":
			mc.IsBreakOnWrite = true
		case "readWrite":
			mc.IsBreakOnRead, mc.IsBreakOnWrite = true, true
		default:
			bp.Message = fmt.Sprintf("unknown access type %q", b.AccessType)
			continue
		}
		s.dbg.MemChecks().Add(mc)
		id := s.newBreakpointID()
		s.dataBPs[addr] = id
		bp.Id = id
		bp.Verified = true
	}
	s.send(response)
}

// onReadMemoryRequest reads primary memory one byte at a time. Reading
// stops at the first byte that can not be read; the rest is reported as
// unreadable.
func (s *Server) onReadMemoryRequest(request *dap.ReadMemoryRequest) {
	addr, err := s.parseAddress(request.Arguments.MemoryReference)
	if err == nil {
		addr, err = offsetAddress(addr, request.Arguments.Offset)
	}
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToReadMemory, "Unable to read memory", err.Error())
		return
	}
	count := request.Arguments.Count
	if count < 0 {
		s.sendErrorResponse(request.Request, UnableToReadMemory, "Unable to read memory", "negative count")
		return
	}

	data := make([]byte, 0, count)
	for i := 0; i < count; i++ {
		b, ok := s.readByte(addr + uint32(i))
		if !ok {
			break
		}
		data = append(data, b)
	}

	response := &dap.ReadMemoryResponse{Response: *newResponse(request.Request)}
	response.Body.Address = formatAddress(addr)
	response.Body.UnreadableBytes = count - len(data)
	response.Body.Data = base64.StdEncoding.EncodeToString(data)
	s.send(response)
}

func (s *Server) readByte(addr uint32) (byte, bool) {
	m := s.dbg.RawMemory(proc.PrimaryMemory, addr&^3)
	if m.Status != proc.ReadOK {
		return 0, false
	}
	return byte(m.Value >> (24 - 8*(addr&3))), true
}

// onWriteMemoryRequest patches whole words, invalidating the instruction
// cache for each of them.
func (s *Server) onWriteMemoryRequest(request *dap.WriteMemoryRequest) {
	addr, err := s.parseAddress(request.Arguments.MemoryReference)
	if err == nil {
		addr, err = offsetAddress(addr, request.Arguments.Offset)
	}
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToWriteMemory, "Unable to write memory", err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(request.Arguments.Data)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToWriteMemory, "Unable to write memory", err.Error())
		return
	}
	if addr&3 != 0 || len(data)%4 != 0 {
		s.sendErrorResponse(request.Request, UnableToWriteMemory, "Unable to write memory",
			fmt.Sprintf("only whole words can be written (%d bytes at %#08x)", len(data), addr))
		return
	}
	if !s.dbg.IsAlive() {
		s.sendErrorResponse(request.Request, UnableToWriteMemory, "Unable to write memory", "the machine is not running")
		return
	}

	written := 0
	for ; written < len(data); written += 4 {
		w := data[written:]
		val := uint32(w[0])<<24 | uint32(w[1])<<16 | uint32(w[2])<<8 | uint32(w[3])
		if err := s.dbg.Patch(addr+uint32(written), val); err != nil {
			if !request.Arguments.AllowPartial || written == 0 {
				s.sendErrorResponse(request.Request, UnableToWriteMemory, "Unable to write memory", err.Error())
				return
			}
			break
		}
	}

	response := &dap.WriteMemoryResponse{Response: *newResponse(request.Request)}
	response.Body.BytesWritten = written
	s.send(response)
}

func (s *Server) onDisassembleRequest(request *dap.DisassembleRequest) {
	args := request.Arguments
	addr, err := s.parseAddress(args.MemoryReference)
	if err == nil {
		addr, err = offsetAddress(addr, args.Offset)
	}
	if err == nil {
		addr, err = offsetAddress(addr&^3, args.InstructionOffset*4)
	}
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToDisassemble, "Unable to disassemble", err.Error())
		return
	}
	if args.InstructionCount < 0 {
		s.sendErrorResponse(request.Request, UnableToDisassemble, "Unable to disassemble", "negative instruction count")
		return
	}

	response := &dap.DisassembleResponse{Response: *newResponse(request.Request)}
	response.Body.Instructions = make([]dap.DisassembledInstruction, args.InstructionCount)
	for i := range response.Body.Instructions {
		pc := addr + uint32(i*4)
		inst := &response.Body.Instructions[i]
		inst.Address = formatAddress(pc)
		d := s.dbg.Disassembly(pc)
		if d.Status != proc.ReadOK {
			inst.Instruction = fmt.Sprintf("(%s)", d.Status)
			continue
		}
		inst.InstructionBytes = fmt.Sprintf("%08x", d.Op)
		inst.Instruction = d.String()
		if desc := s.dbg.GetDescription(pc); desc != "" && desc != "--" {
			inst.Symbol = desc
		}
	}
	s.send(response)
}

// runUntilStop resumes the machine and sends a stopped or terminated
// event when it stops.
func (s *Server) runUntilStop() {
	if !s.running.CompareAndSwap(false, true) {
		// Already waiting for the machine to stop.
		return
	}
	// Resuming before returning orders the resume before any request
	// read after this one, a pause in particular.
	s.config.Runner.Resume()
	go func() {
		defer s.running.Store(false)
		ev, err := s.config.Runner.Wait(s.ctx)
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("continue: %v", err)
				s.send(&dap.OutputEvent{
					Event: *newEvent("output"),
					Body: dap.OutputEventBody{
						Output:   fmt.Sprintf("ERROR: %v\n", err),
						Category: "stderr",
					}})
			}
			return
		}
		s.handleStop(ev)
	}()
}

// handleStop sends an appropriate event to the client when execution
// stops.
func (s *Server) handleStop(ev emu.StopEvent) {
	if ev.Reason == emu.StopExited {
		s.send(&dap.TerminatedEvent{Event: *newEvent("terminated")})
		return
	}

	e := &dap.StoppedEvent{Event: *newEvent("stopped")}
	e.Body.ThreadId = cpuThreadID
	e.Body.AllThreadsStopped = true

	s.mu.Lock()
	switch ev.Reason {
	case emu.StopBreakpoint:
		e.Body.Reason = "instruction breakpoint"
		if id, ok := s.instructionBPs[ev.PC]; ok {
			e.Body.HitBreakpointIds = []int{id}
		}
	case emu.StopMemCheck:
		e.Body.Reason = "data breakpoint"
		e.Body.Description = fmt.Sprintf("access to %s", formatAddress(ev.Addr))
		if mc, ok := s.dbg.MemChecks().GetMemCheck(ev.Addr, 1); ok {
			if id, ok := s.dataBPs[mc.StartAddress]; ok {
				e.Body.HitBreakpointIds = []int{id}
			}
		}
	case emu.StopFault:
		e.Body.Reason = "exception"
		e.Body.Text = fmt.Sprintf("%v", ev.Err)
	case emu.StopStep:
		e.Body.Reason = "step"
	default:
		e.Body.Reason = "pause"
	}
	s.mu.Unlock()
	s.send(e)
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{
		Id:       id,
		Format:   fmt.Sprintf("%s: %s", summary, details),
		ShowUser: true,
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

// sendInternalErrorResponse sends an "internal error" response back to the client.
// We only take a seq here because we don't want to make assumptions about the
// kind of message received by the server that this error is a reply to.
func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{
		Id:       InternalError,
		Format:   fmt.Sprintf("%s: %s", er.Message, details),
		ShowUser: true,
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendUnsupportedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, UnsupportedCommand, "Unsupported command",
		fmt.Sprintf("cannot process '%s' request", request.Command))
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}
