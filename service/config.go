package service

import (
	"context"
	"net"

	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/pkg/symbols"
)

// Runner controls the execution of the machine exposed by a server.
type Runner interface {
	proc.ExecutionState
	Start(ctx context.Context, paused bool) error
	Stop()
	// Resume continues execution and Wait blocks until the machine stops
	// again.
	Resume()
	Wait(ctx context.Context) (emu.StopEvent, error)
	Pause()
}

// Config provides the configuration to expose a debugging session with a
// service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener

	// Debugger inspects the machine and owns its breakpoints, memchecks and
	// watches.
	Debugger *proc.DebugInterface
	// Runner starts, resumes and pauses the machine.
	Runner Runner

	// Symbols is used to resolve names in address expressions. Optional.
	Symbols *symbols.DB

	// LoadImage loads the program image named by a launch request before
	// the machine is started. Optional.
	LoadImage func(path string) error

	// DisconnectChan will be closed by the server when the client disconnects
	DisconnectChan chan<- struct{}
}
