// Package daptest provides a sample client with utilities
// for DAP mode testing.
package daptest

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
)

// Client is a debugger service client that uses Debug Adaptor Protocol.
// All client methods are synchronous.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	// seq is used to track the sequence number of each
	// requests that the client sends to the server
	seq int
}

// NewClient creates a new Client over a TCP connection.
// Call Close() to close the connection.
func NewClient(t *testing.T, addr string) *Client {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal("dialing:", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), seq: 1}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) send(request dap.Message) {
	dap.WriteProtocolMessage(c.conn, request)
}

// readTimeout bounds the wait for a message so that a missing response
// fails the test instead of hanging it.
const readTimeout = 10 * time.Second

// ReadMessage reads the next message sent by the server.
func (c *Client) ReadMessage(t *testing.T) dap.Message {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	m, err := dap.ReadProtocolMessage(c.reader)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (c *Client) expect(t *testing.T, m dap.Message, ok bool, want string) {
	t.Helper()
	if !ok {
		jsonmsg, _ := json.Marshal(m)
		t.Fatalf("expected %s; got %s", want, jsonmsg)
	}
}

func (c *Client) ExpectErrorResponse(t *testing.T) *dap.ErrorResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.ErrorResponse)
	c.expect(t, m, ok, "error response")
	return r
}

func (c *Client) ExpectInitializeResponse(t *testing.T) *dap.InitializeResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.InitializeResponse)
	c.expect(t, m, ok, "initialize response")
	if !r.Body.SupportsConfigurationDoneRequest {
		t.Errorf("got %#v, want SupportsConfigurationDoneRequest=true", r)
	}
	return r
}

func (c *Client) ExpectInitializedEvent(t *testing.T) *dap.InitializedEvent {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.InitializedEvent)
	c.expect(t, m, ok, "initialized event")
	return r
}

func (c *Client) ExpectLaunchResponse(t *testing.T) *dap.LaunchResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.LaunchResponse)
	c.expect(t, m, ok, "launch response")
	return r
}

func (c *Client) ExpectAttachResponse(t *testing.T) *dap.AttachResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.AttachResponse)
	c.expect(t, m, ok, "attach response")
	return r
}

func (c *Client) ExpectDisconnectResponse(t *testing.T) *dap.DisconnectResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.DisconnectResponse)
	c.expect(t, m, ok, "disconnect response")
	return r
}

func (c *Client) ExpectConfigurationDoneResponse(t *testing.T) *dap.ConfigurationDoneResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.ConfigurationDoneResponse)
	c.expect(t, m, ok, "configurationDone response")
	return r
}

func (c *Client) ExpectContinueResponse(t *testing.T) *dap.ContinueResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.ContinueResponse)
	c.expect(t, m, ok, "continue response")
	return r
}

func (c *Client) ExpectPauseResponse(t *testing.T) *dap.PauseResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.PauseResponse)
	c.expect(t, m, ok, "pause response")
	return r
}

func (c *Client) ExpectThreadsResponse(t *testing.T) *dap.ThreadsResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.ThreadsResponse)
	c.expect(t, m, ok, "threads response")
	return r
}

func (c *Client) ExpectStoppedEvent(t *testing.T) *dap.StoppedEvent {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.StoppedEvent)
	c.expect(t, m, ok, "stopped event")
	return r
}

func (c *Client) ExpectTerminatedEvent(t *testing.T) *dap.TerminatedEvent {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.TerminatedEvent)
	c.expect(t, m, ok, "terminated event")
	return r
}

func (c *Client) ExpectSetInstructionBreakpointsResponse(t *testing.T) *dap.SetInstructionBreakpointsResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.SetInstructionBreakpointsResponse)
	c.expect(t, m, ok, "setInstructionBreakpoints response")
	return r
}

func (c *Client) ExpectDataBreakpointInfoResponse(t *testing.T) *dap.DataBreakpointInfoResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.DataBreakpointInfoResponse)
	c.expect(t, m, ok, "dataBreakpointInfo response")
	return r
}

func (c *Client) ExpectSetDataBreakpointsResponse(t *testing.T) *dap.SetDataBreakpointsResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.SetDataBreakpointsResponse)
	c.expect(t, m, ok, "setDataBreakpoints response")
	return r
}

func (c *Client) ExpectReadMemoryResponse(t *testing.T) *dap.ReadMemoryResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.ReadMemoryResponse)
	c.expect(t, m, ok, "readMemory response")
	return r
}

func (c *Client) ExpectWriteMemoryResponse(t *testing.T) *dap.WriteMemoryResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.WriteMemoryResponse)
	c.expect(t, m, ok, "writeMemory response")
	return r
}

func (c *Client) ExpectDisassembleResponse(t *testing.T) *dap.DisassembleResponse {
	t.Helper()
	m := c.ReadMessage(t)
	r, ok := m.(*dap.DisassembleResponse)
	c.expect(t, m, ok, "disassemble response")
	return r
}

// InitializeRequest sends an 'initialize' request.
func (c *Client) InitializeRequest() {
	request := &dap.InitializeRequest{Request: *c.newRequest("initialize")}
	request.Arguments = dap.InitializeRequestArguments{
		AdapterID:       "gekkodbg",
		PathFormat:      "path",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		Locale:          "en-us",
	}
	c.send(request)
}

// LaunchRequest sends a 'launch' request with the given arguments.
func (c *Client) LaunchRequest(args map[string]interface{}) {
	request := &dap.LaunchRequest{Request: *c.newRequest("launch")}
	request.Arguments = toRawMessage(args)
	c.send(request)
}

// AttachRequest sends an 'attach' request with the given arguments.
func (c *Client) AttachRequest(args map[string]interface{}) {
	request := &dap.AttachRequest{Request: *c.newRequest("attach")}
	request.Arguments = toRawMessage(args)
	c.send(request)
}

func toRawMessage(in interface{}) json.RawMessage {
	out, _ := json.Marshal(in)
	return out
}

// DisconnectRequest sends a 'disconnect' request.
func (c *Client) DisconnectRequest() {
	request := &dap.DisconnectRequest{Request: *c.newRequest("disconnect")}
	c.send(request)
}

// ConfigurationDoneRequest sends a 'configurationDone' request.
func (c *Client) ConfigurationDoneRequest() {
	request := &dap.ConfigurationDoneRequest{Request: *c.newRequest("configurationDone")}
	c.send(request)
}

// ContinueRequest sends a 'continue' request.
func (c *Client) ContinueRequest(thread int) {
	request := &dap.ContinueRequest{Request: *c.newRequest("continue")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// PauseRequest sends a 'pause' request.
func (c *Client) PauseRequest(thread int) {
	request := &dap.PauseRequest{Request: *c.newRequest("pause")}
	request.Arguments.ThreadId = thread
	c.send(request)
}

// ThreadsRequest sends a 'threads' request.
func (c *Client) ThreadsRequest() {
	request := &dap.ThreadsRequest{Request: *c.newRequest("threads")}
	c.send(request)
}

// SetInstructionBreakpointsRequest sends a 'setInstructionBreakpoints' request.
func (c *Client) SetInstructionBreakpointsRequest(refs []string) {
	request := &dap.SetInstructionBreakpointsRequest{Request: *c.newRequest("setInstructionBreakpoints")}
	request.Arguments.Breakpoints = make([]dap.InstructionBreakpoint, len(refs))
	for i, ref := range refs {
		request.Arguments.Breakpoints[i].InstructionReference = ref
	}
	c.send(request)
}

// DataBreakpointInfoRequest sends a 'dataBreakpointInfo' request.
func (c *Client) DataBreakpointInfoRequest(name string) {
	request := &dap.DataBreakpointInfoRequest{Request: *c.newRequest("dataBreakpointInfo")}
	request.Arguments.Name = name
	c.send(request)
}

// SetDataBreakpointsRequest sends a 'setDataBreakpoints' request.
func (c *Client) SetDataBreakpointsRequest(breakpoints []dap.DataBreakpoint) {
	request := &dap.SetDataBreakpointsRequest{Request: *c.newRequest("setDataBreakpoints")}
	request.Arguments.Breakpoints = breakpoints
	c.send(request)
}

// ReadMemoryRequest sends a 'readMemory' request.
func (c *Client) ReadMemoryRequest(ref string, offset, count int) {
	request := &dap.ReadMemoryRequest{Request: *c.newRequest("readMemory")}
	request.Arguments.MemoryReference = ref
	request.Arguments.Offset = offset
	request.Arguments.Count = count
	c.send(request)
}

// WriteMemoryRequest sends a 'writeMemory' request.
func (c *Client) WriteMemoryRequest(ref string, data []byte) {
	request := &dap.WriteMemoryRequest{Request: *c.newRequest("writeMemory")}
	request.Arguments.MemoryReference = ref
	request.Arguments.Data = base64.StdEncoding.EncodeToString(data)
	c.send(request)
}

// DisassembleRequest sends a 'disassemble' request.
func (c *Client) DisassembleRequest(ref string, instructionOffset, count int) {
	request := &dap.DisassembleRequest{Request: *c.newRequest("disassemble")}
	request.Arguments.MemoryReference = ref
	request.Arguments.InstructionOffset = instructionOffset
	request.Arguments.InstructionCount = count
	c.send(request)
}

// StepBackRequest sends a 'stepBack' request.
func (c *Client) StepBackRequest() {
	request := &dap.StepBackRequest{Request: *c.newRequest("stepBack")}
	c.send(request)
}

func (c *Client) newRequest(command string) *dap.Request {
	request := &dap.Request{}
	request.Type = "request"
	request.Command = command
	request.Seq = c.seq
	c.seq++
	return request
}
