package terminal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-delve/liner"

	"github.com/gekkodbg/gekkodbg/pkg/config"
	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/logflags"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/pkg/symbols"
	"github.com/gekkodbg/gekkodbg/pkg/terminal/starbind"
)

const (
	historyFile                 string = ".gekkodbg_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiBlack   = 30
	ansiBlue    = 34
	ansiWhite   = 37
	ansiBrBlack = 90
	ansiBrWhite = 97
)

// Runner controls the execution of the machine being debugged.
type Runner interface {
	proc.ExecutionState
	Continue(ctx context.Context) (emu.StopEvent, error)
	Step() (emu.StopEvent, error)
	Pause()
}

// Term represents the terminal running gekkodbg.
type Term struct {
	dbg         *proc.DebugInterface
	runner      Runner
	symbols     *symbols.DB
	conf        *config.Config
	prompt      string
	line        *liner.State
	cmds        *Commands
	dumb        bool
	stdout      io.Writer
	InitFile    string
	MemorySpace proc.MemorySpace
	starlarkEnv *starbind.Env
	log         logflags.Logger
}

// New returns a new Term. Runner and syms can be nil.
func New(dbg *proc.DebugInterface, runner Runner, syms *symbols.DB, conf *config.Config) *Term {
	w, dumb := stdoutWriter()
	t := newTerm(dbg, runner, syms, conf, w, dumb)
	t.line = liner.NewLiner()
	return t
}

func newTerm(dbg *proc.DebugInterface, runner Runner, syms *symbols.DB, conf *config.Config, w io.Writer, dumb bool) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	if (conf.MemoryColor > ansiWhite &&
		conf.MemoryColor < ansiBrBlack) ||
		conf.MemoryColor < ansiBlack ||
		conf.MemoryColor > ansiBrWhite {
		conf.MemoryColor = ansiBlue
	}

	t := &Term{
		dbg:     dbg,
		runner:  runner,
		symbols: syms,
		conf:    conf,
		prompt:  "(gekkodbg) ",
		cmds:    cmds,
		dumb:    dumb,
		stdout:  w,
		log:     logflags.TerminalLogger(),
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, w)
	return t
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.starlarkEnv.Cancel()
		if t.runner == nil || t.runner.IsPaused() {
			continue
		}
		fmt.Fprintln(t.stdout, "received SIGINT, pausing the machine")
		t.runner.Pause()
	}
}

// Run begins running gekkodbg in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// Pause the machine on SIGINT
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	go t.sigintGuard(ch)

	t.line.SetCompleter(t.cmds.completer)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Fprintf(t.stdout, "Unable to load history file: %v.\n", err)
	} else if f, err := os.Open(fullHistoryFile); err == nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// colorize highlights an address with the configured memory color.
func (t *Term) colorize(s string) string {
	if t.dumb {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, t.conf.MemoryColor) + s + terminalResetEscapeCode
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	if err := t.saveHistory(); err != nil {
		fmt.Fprintln(t.stdout, "Error saving history file:", err)
	}
	return 0, nil
}

// saveHistory writes the last HistorySize commands to the history file.
func (t *Term) saveHistory() error {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := t.line.WriteHistory(&buf); err != nil {
		return err
	}
	lines := strings.SplitAfter(buf.String(), "\n")
	if n := t.conf.HistorySize; n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	f, err := os.Create(fullHistoryFile)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.WriteString(f, strings.Join(lines, ""))
	return err
}
