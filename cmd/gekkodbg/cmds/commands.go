package cmds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gekkodbg/gekkodbg/pkg/config"
	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/logflags"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
	"github.com/gekkodbg/gekkodbg/pkg/symbols"
	"github.com/gekkodbg/gekkodbg/pkg/terminal"
	"github.com/gekkodbg/gekkodbg/pkg/version"
	"github.com/gekkodbg/gekkodbg/service"
	"github.com/gekkodbg/gekkodbg/service/dap"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// addr is the debugging server listen address.
	addr string
	// initFile is the path to initialization file.
	initFile string
	// symbolMap is the symbol map loaded before the session starts.
	symbolMap string
	// watchesFile is the file watches are loaded from and saved to.
	watchesFile string
	// memorySpace is the memory space examined by default.
	memorySpace = memorySpaceFlag{space: proc.PrimaryMemory}

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const gekkodbgCommandLongDesc = `gekkodbg is a debugger for GameCube programs.

gekkodbg boots a program image in its reference machine and lets you control
its execution: set breakpoints and memory checks, watch and patch memory and
disassemble code, either from an interactive terminal or from an editor
speaking the Debug Adapter Protocol.`

// memorySpaceFlag is a pflag.Value selecting a memory space by name.
type memorySpaceFlag struct {
	space proc.MemorySpace
}

func (f *memorySpaceFlag) String() string { return f.space.String() }

func (f *memorySpaceFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "ram", "mem1":
		f.space = proc.PrimaryMemory
	case "aram":
		f.space = proc.AuxiliaryMemory
	default:
		return fmt.Errorf("unknown memory space %q, must be one of ram, aram", s)
	}
	return nil
}

func (f *memorySpaceFlag) Type() string { return "space" }

var _ pflag.Value = &memorySpaceFlag{}

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	var err error
	conf, err = config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		conf = &config.Config{}
	}

	// Main gekkodbg root command.
	rootCommand = &cobra.Command{
		Use:          "gekkodbg",
		Short:        "gekkodbg is a debugger for GameCube programs.",
		Long:         gekkodbgCommandLongDesc,
		SilenceUsage: true,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugging server logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'gekkodbg help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'gekkodbg help log').")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringVar(&symbolMap, "symbols", "", "Symbol map loaded at startup, overrides symbol-map in the configuration file.")
	rootCommand.PersistentFlags().StringVar(&watchesFile, "watches", "", "Watches file loaded at startup, overrides watches-file in the configuration file.")
	rootCommand.PersistentFlags().Var(&memorySpace, "memory-space", "Memory space read by the examine command, ram or aram.")

	// 'debug' subcommand.
	debugCommand := &cobra.Command{
		Use:   "debug [image]",
		Short: "Boot a program image and begin debugging it.",
		Long: `Boots the reference machine and opens the debugger terminal.

The image is a raw big-endian program loaded at 0x80003100, where execution
starts. The machine is paused before the first instruction so breakpoints can
be set before using 'continue'.`,
		Args: cobra.MaximumNArgs(1),
		Run:  debugCmd,
	}
	rootCommand.AddCommand(debugCommand)

	// 'dap' subcommand.
	dapCommand := &cobra.Command{
		Use:   "dap",
		Short: "Starts a TCP server communicating via Debug Adaptor Protocol (DAP).",
		Long: `Starts a TCP server communicating via Debug Adaptor Protocol (DAP).

A launch request boots the reference machine, loading the image named by its
'program' attribute. An attach request debugs a machine that is already
running. The server does not accept multiple client connections.`,
		Args: cobra.NoArgs,
		Run:  dapCmd,
	}
	dapCommand.Flags().StringVarP(&addr, "listen", "l", "127.0.0.1:0", "Debugging server listen address.")
	rootCommand.AddCommand(dapCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gekkodbg Debugger\n%s\n", version.GekkodbgVersion)
			if log {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	debugger	Log debug interface operations
	machine		Log the reference machine execution loop
	dap		Log all DAP messages
	symbols		Log symbol map loading
	terminal	Log terminal commands

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

// session is a reference machine with its debug interface.
type session struct {
	machine *emu.Machine
	dbg     *proc.DebugInterface
	symbols *symbols.DB
	conf    *config.Config
}

// newSession creates the reference machine, loads image and the symbol
// map into it and attaches a debug interface. Loggers are created here, so
// logflags.Setup must be called first.
func newSession(image string) (*session, error) {
	c := *conf
	if symbolMap != "" {
		c.SymbolMap = symbolMap
	}
	if watchesFile != "" {
		c.WatchesFile = watchesFile
	}

	m := emu.New()
	if image != "" {
		if err := m.LoadImage(image); err != nil {
			return nil, err
		}
	}
	syms := symbols.New()
	if c.SymbolMap != "" {
		if err := syms.LoadFile(c.SymbolMap); err != nil {
			return nil, err
		}
	}
	cfg := m.Collaborators()
	cfg.Symbols = syms
	dbg, err := proc.New(cfg)
	if err != nil {
		return nil, err
	}
	m.Attach(dbg.Breakpoints(), dbg.MemChecks())

	if c.WatchesFile != "" {
		lines, err := readLines(c.WatchesFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		dbg.LoadWatchesFromStrings(lines)
	}
	return &session{machine: m, dbg: dbg, symbols: syms, conf: &c}, nil
}

func readLines(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	var lines []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func debugCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		var image string
		if len(args) > 0 {
			image = args[0]
		}
		s, err := newSession(image)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if err := s.machine.Start(context.Background(), true); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer s.machine.Stop()

		term := terminal.New(s.dbg, s.machine, s.symbols, s.conf)
		term.InitFile = initFile
		term.MemorySpace = memorySpace.space
		status, err := term.Run()
		if err != nil {
			fmt.Println(err)
		}
		return status
	}()
	os.Exit(status)
}

func dapCmd(cmd *cobra.Command, args []string) {
	status := func() int {
		if err := logflags.Setup(log, logOutput, logDest); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer logflags.Close()

		if initFile != "" {
			fmt.Fprint(os.Stderr, "Warning: init file ignored with dap\n")
		}

		s, err := newSession("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer s.machine.Stop()

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Printf("couldn't start listener: %s\n", err)
			return 1
		}
		disconnectChan := make(chan struct{})
		server := dap.NewServer(&service.Config{
			Listener:       listener,
			Debugger:       s.dbg,
			Runner:         s.machine,
			Symbols:        s.symbols,
			LoadImage:      s.machine.LoadImage,
			DisconnectChan: disconnectChan,
		})
		defer server.Stop()

		logflags.WriteDAPListeningMessage(listener.Addr().String())
		server.Run()
		waitForDisconnectSignal(disconnectChan)
		return 0
	}()
	os.Exit(status)
}

func waitForDisconnectSignal(disconnectChan chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	defer signal.Stop(ch)
	select {
	case <-ch:
	case <-disconnectChan:
	}
}
