// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

//lint:file-ignore ST1005 errors here can be capitalized

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/gekkodbg/gekkodbg/pkg/emu"
	"github.com/gekkodbg/gekkodbg/pkg/locspec"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the gekkodbg terminal.
type Commands struct {
	cmds     []command
	complete *trie.Trie
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{complete: trie.New()}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"break", "b"}, group: breakCmds, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <location>

The location can be a symbol name or "pc", optionally followed by +<hex offset> or -<hex offset>, a hexadecimal address, *<address> to skip symbol lookup, +<n> or -<n> to count instructions from the program counter, or /<regex>/ to set a breakpoint on every matching function.

See also: "help clear" and "help toggle"`},
		{aliases: []string{"clear"}, group: breakCmds, cmdFn: clearBreakpoint, helpMsg: `Deletes breakpoint.

	clear <address>`},
		{aliases: []string{"toggle"}, group: breakCmds, cmdFn: toggle, helpMsg: `Sets or clears a breakpoint.

	toggle <address>`},
		{aliases: []string{"clearall"}, group: breakCmds, cmdFn: clearAll, helpMsg: `Deletes all breakpoints.`},
		{aliases: []string{"breakpoints", "bp"}, group: breakCmds, cmdFn: breakpoints, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"memcheck", "mc"}, group: breakCmds, cmdFn: memcheck, helpMsg: `Sets a memory check.

	memcheck [-r] [-w] [-log] [-nobreak] <address> [<end address>]

A memory check stops the machine when an instruction accesses the watched memory.
With -r only reads are checked, with -w only writes. Without either flag both are.
-log prints every access, -nobreak prevents the machine from stopping.

Without an end address and flags memcheck toggles a single address check:
calling it again on the same address removes the check.`},
		{aliases: []string{"memchecks"}, group: breakCmds, cmdFn: memchecks, helpMsg: "Print out info for active memory checks."},
		{aliases: []string{"clearmemchecks"}, group: breakCmds, cmdFn: clearMemChecks, helpMsg: "Deletes all memory checks."},

		{aliases: []string{"continue", "c"}, group: runCmds, cmdFn: cont, helpMsg: `Run until breakpoint, memory check or pause.

Press ctrl-C to pause the machine.`},
		{aliases: []string{"pause"}, group: runCmds, cmdFn: pause, helpMsg: "Pauses the machine."},
		{aliases: []string{"step", "si"}, group: runCmds, cmdFn: step, helpMsg: `Single step a number of instructions.

	step [count]`},
		{aliases: []string{"state"}, group: runCmds, cmdFn: state, helpMsg: "Prints the state of the machine."},
		{aliases: []string{"pc"}, group: runCmds, cmdFn: printPC, helpMsg: "Prints the program counter."},
		{aliases: []string{"setpc"}, group: runCmds, cmdFn: setPC, helpMsg: `Sets the program counter.

	setpc <address>

The address is not validated.`},

		{aliases: []string{"disassemble", "disass"}, group: dataCmds, cmdFn: disassCommand, helpMsg: `Disassembler.

	disassemble [<address>] [<count>]

Without an address disassembles starting at the program counter. The default count is set by disassemble-count in the configuration file.`},
		{aliases: []string{"examine", "x"}, group: dataCmds, cmdFn: examineMemoryCmd, helpMsg: `Examine memory.

	examine [-ram|-aram] [-count <count>] <address>

Prints <count> words (default 16) starting at <address>. With -aram the audio memory is read instead of main memory. The default memory space is set with --memory-space.`},
		{aliases: []string{"patch"}, group: dataCmds, cmdFn: patch, helpMsg: `Writes a word to memory.

	patch <address> <value>

The instruction cache is invalidated for the patched address.`},
		{aliases: []string{"color"}, group: dataCmds, cmdFn: color, helpMsg: `Prints the highlight color of an address.

	color <address>`},
		{aliases: []string{"describe"}, group: dataCmds, cmdFn: describe, helpMsg: `Describes an address using the symbol map.

	describe <address>`},
		{aliases: []string{"symbols"}, group: dataCmds, cmdFn: listSymbols, helpMsg: `Lists symbols.

	symbols [<filter>]

Only symbols whose name contains <filter> are listed.`},
		{aliases: []string{"loadsymbols"}, group: dataCmds, cmdFn: loadSymbols, helpMsg: `Loads a symbol map.

	loadsymbols <file>

Symbols already loaded are kept.`},

		{aliases: []string{"watch", "w"}, group: watchCmds, cmdFn: watch, helpMsg: `Adds a watch.

	watch <address> [<name>]`},
		{aliases: []string{"unwatch"}, group: watchCmds, cmdFn: unwatch, helpMsg: `Removes the watches at an address.

	unwatch <address>`},
		{aliases: []string{"watches"}, group: watchCmds, cmdFn: watches, helpMsg: "Print out the watches and their current values."},
		{aliases: []string{"enable"}, group: watchCmds, cmdFn: enableWatch, helpMsg: `Enables a watch.

	enable <index>`},
		{aliases: []string{"disable"}, group: watchCmds, cmdFn: disableWatch, helpMsg: `Disables a watch.

	disable <index>`},
		{aliases: []string{"rename"}, group: watchCmds, cmdFn: renameWatch, helpMsg: `Renames a watch.

	rename <index> <name>`},
		{aliases: []string{"rewatch"}, group: watchCmds, cmdFn: rewatch, helpMsg: `Moves a watch to another address.

	rewatch <index> <address>`},
		{aliases: []string{"delwatch"}, group: watchCmds, cmdFn: delWatch, helpMsg: `Removes a watch.

	delwatch <index>`},
		{aliases: []string{"savewatches"}, group: watchCmds, cmdFn: saveWatches, helpMsg: `Saves the watches to a file.

	savewatches [<file>]

Without a file the watches-file configuration option is used.`},
		{aliases: []string{"loadwatches"}, group: watchCmds, cmdFn: loadWatches, helpMsg: `Replaces the watches with the ones saved in a file.

	loadwatches [<file>]

Without a file the watches-file configuration option is used.`},

		{aliases: []string{"reset"}, cmdFn: reset, helpMsg: "Deletes every breakpoint, memory check and watch."},
		{aliases: []string{"source"}, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of gekkodbg commands.

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script.

If path is a single '-' character an interactive starlark interpreter will start instead. Type 'exit' to exit.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit the debugger."},
	}

	sort.Sort(byFirstAlias(c.cmds))
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.complete.Add(alias, nil)
		}
	}
	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
	c.complete.Add(cmdstr, nil)
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute. A panic in the command is reported as
// an error so that the terminal keeps running.
func (c *Commands) Call(cmdstr string, t *Term) (err error) {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	defer func() {
		if ierr := recover(); ierr != nil {
			t.log.Errorf("command %q panicked: %v", cmdname, ierr)
			err = fmt.Errorf("internal error in %s: %v", cmdname, ierr)
		}
	}()
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
			for _, alias := range aliases {
				c.complete.Add(alias, nil)
			}
		}
	}
}

// completer returns the command names starting with line. After "help "
// it completes command names too.
func (c *Commands) completer(line string) []string {
	const helpPrefix = "help "
	prefix := ""
	if strings.HasPrefix(line, helpPrefix) {
		prefix = helpPrefix
		line = strings.TrimPrefix(line, helpPrefix)
	}
	if strings.Contains(line, " ") {
		return nil
	}
	names := c.complete.PrefixSearch(line)
	sort.Strings(names)
	for i := range names {
		names[i] = prefix + names[i]
	}
	return names
}

var noCmdError = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return noCmdError
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

var (
	errNotAlive  = errors.New("the machine is not running")
	errNoRunner  = errors.New("no machine attached")
	errNoSymbols = errors.New("no symbol map loaded")
)

func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hexadecimal number %q", s)
	}
	return uint32(n), nil
}

// parseAddress resolves a location spec to a single address.
func (t *Term) parseAddress(s string) (uint32, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New("not enough arguments")
	}
	return locspec.Resolve(t.scope(), s)
}

func (t *Term) scope() locspec.Scope {
	scope := locspec.Scope{PC: t.dbg.GetPC()}
	if t.symbols != nil {
		scope.Symbols = t.symbols
	}
	return scope
}

func splitArgs(args string) ([]string, error) {
	v, err := argv.Argv(args, func(s string) (string, error) {
		return "", fmt.Errorf("Backtick not supported in '%s'", s)
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, errors.New("pipes are not supported")
	}
	return v[0], nil
}

// split2PartsBySpace splits s in its first word and the rest of the string.
func split2PartsBySpace(s string) []string {
	v := strings.SplitN(strings.TrimSpace(s), " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return n, nil
}

// formatAddr returns addr highlighted and followed by its description.
func (t *Term) formatAddr(addr uint32) string {
	s := t.colorize(fmt.Sprintf("%#08x", addr))
	if desc := t.dbg.GetDescription(addr); desc != "" && desc != "--" {
		s += " <" + desc + ">"
	}
	return s
}

func breakpoint(t *Term, args string) error {
	if strings.TrimSpace(args) == "" {
		return errors.New("not enough arguments")
	}
	spec, err := locspec.Parse(args)
	if err != nil {
		return err
	}
	locs, err := spec.Find(t.scope(), args)
	if err != nil {
		return err
	}
	if len(locs) == 0 {
		return fmt.Errorf("location %q not found", args)
	}
	for _, loc := range locs {
		t.dbg.SetBreakpoint(loc.Addr)
		fmt.Fprintf(t.stdout, "Breakpoint set at %s\n", t.formatAddr(loc.Addr))
	}
	return nil
}

func clearBreakpoint(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	if !t.dbg.IsBreakpoint(addr) {
		return fmt.Errorf("no breakpoint at %#08x", addr)
	}
	t.dbg.ClearBreakpoint(addr)
	fmt.Fprintf(t.stdout, "Breakpoint cleared at %s\n", t.formatAddr(addr))
	return nil
}

func toggle(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	if t.dbg.ToggleBreakpoint(addr) {
		fmt.Fprintf(t.stdout, "Breakpoint set at %s\n", t.formatAddr(addr))
	} else {
		fmt.Fprintf(t.stdout, "Breakpoint cleared at %s\n", t.formatAddr(addr))
	}
	return nil
}

func clearAll(t *Term, args string) error {
	t.dbg.ClearAllBreakpoints()
	fmt.Fprintln(t.stdout, "All breakpoints cleared")
	return nil
}

func breakpoints(t *Term, args string) error {
	addrs := t.dbg.Breakpoints().Addresses()
	if len(addrs) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints.")
		return nil
	}
	for i, addr := range addrs {
		fmt.Fprintf(t.stdout, "Breakpoint %d at %s\n", i+1, t.formatAddr(addr))
	}
	return nil
}

func memcheck(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	var read, write, log, nobreak bool
	var addrs []string
	for _, arg := range v {
		switch arg {
		case "-r":
			read = true
		case "-w":
			write = true
		case "-log":
			log = true
		case "-nobreak":
			nobreak = true
		default:
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unknown flag %s", arg)
			}
			addrs = append(addrs, arg)
		}
	}
	if !read && !write {
		read, write = true, true
	}
	if len(addrs) == 0 || len(addrs) > 2 {
		return errors.New("wrong number of arguments: memcheck [-r] [-w] [-log] [-nobreak] <address> [<end address>]")
	}
	start, err := t.parseAddress(addrs[0])
	if err != nil {
		return err
	}
	end := start
	if len(addrs) == 2 {
		end, err = t.parseAddress(addrs[1])
		if err != nil {
			return err
		}
		if end < start {
			return fmt.Errorf("end address %#08x precedes start address %#08x", end, start)
		}
	}

	if end == start && !nobreak {
		if t.dbg.ToggleMemCheck(start, read, write, log) {
			fmt.Fprintf(t.stdout, "Memcheck set at %s\n", t.formatAddr(start))
		} else {
			fmt.Fprintf(t.stdout, "Memcheck cleared at %s\n", t.formatAddr(start))
		}
		return nil
	}

	mc := proc.MemCheck{
		StartAddress:   start,
		EndAddress:     end,
		IsBreakOnRead:  read,
		IsBreakOnWrite: write,
		LogOnHit:       log,
		BreakOnHit:     !nobreak,
	}
	t.dbg.MemChecks().Add(mc)
	fmt.Fprintf(t.stdout, "Memcheck set at %s\n", mc)
	return nil
}

func memchecks(t *Term, args string) error {
	mcs := t.dbg.MemChecks().MemChecks()
	if len(mcs) == 0 {
		fmt.Fprintln(t.stdout, "No memchecks.")
		return nil
	}
	for i, mc := range mcs {
		fmt.Fprintf(t.stdout, "Memcheck %d at %s\n", i+1, mc)
	}
	return nil
}

func clearMemChecks(t *Term, args string) error {
	t.dbg.ClearAllMemChecks()
	fmt.Fprintln(t.stdout, "All memchecks cleared")
	return nil
}

func watch(t *Term, args string) error {
	v := split2PartsBySpace(args)
	addr, err := t.parseAddress(v[0])
	if err != nil {
		return err
	}
	name := ""
	if len(v) > 1 {
		name = v[1]
	}
	i := t.dbg.SetWatch(addr, name)
	fmt.Fprintf(t.stdout, "Watch %d set at %s\n", i, t.formatAddr(addr))
	return nil
}

func unwatch(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	t.dbg.UnsetWatch(addr)
	return nil
}

func watches(t *Term, args string) error {
	ws := t.dbg.GetWatches()
	if len(ws) == 0 {
		fmt.Fprintln(t.stdout, "No watches.")
		return nil
	}
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintln(w, "Index\tAddress\tName\tEnabled\tValue")
	for i, wt := range ws {
		fmt.Fprintf(w, "%d\t%#08x\t%s\t%v\t%s\n", i, wt.Address, wt.Name, wt.Enabled, t.dbg.GetRawMemoryString(proc.PrimaryMemory, wt.Address))
	}
	return w.Flush()
}

func enableWatch(t *Term, args string) error {
	i, err := parseIndex(args)
	if err != nil {
		return err
	}
	return t.dbg.EnableWatch(i)
}

func disableWatch(t *Term, args string) error {
	i, err := parseIndex(args)
	if err != nil {
		return err
	}
	return t.dbg.DisableWatch(i)
}

func renameWatch(t *Term, args string) error {
	v := split2PartsBySpace(args)
	if len(v) < 2 {
		return errors.New("not enough arguments")
	}
	i, err := parseIndex(v[0])
	if err != nil {
		return err
	}
	return t.dbg.UpdateWatchName(i, v[1])
}

func rewatch(t *Term, args string) error {
	v := split2PartsBySpace(args)
	if len(v) < 2 {
		return errors.New("not enough arguments")
	}
	i, err := parseIndex(v[0])
	if err != nil {
		return err
	}
	addr, err := t.parseAddress(v[1])
	if err != nil {
		return err
	}
	return t.dbg.UpdateWatchAddress(i, addr)
}

func delWatch(t *Term, args string) error {
	i, err := parseIndex(args)
	if err != nil {
		return err
	}
	return t.dbg.RemoveWatch(i)
}

func (t *Term) watchesFile(args string) (string, error) {
	if args != "" {
		return args, nil
	}
	if t.conf.WatchesFile == "" {
		return "", errors.New("no file specified and watches-file is not configured")
	}
	return t.conf.WatchesFile, nil
}

func saveWatches(t *Term, args string) error {
	path, err := t.watchesFile(args)
	if err != nil {
		return err
	}
	lines := t.dbg.SaveWatchesToStrings()
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Saved %d watches to %s\n", len(lines), path)
	return nil
}

func loadWatches(t *Term, args string) error {
	path, err := t.watchesFile(args)
	if err != nil {
		return err
	}
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	var lines []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	t.dbg.LoadWatchesFromStrings(lines)
	fmt.Fprintf(t.stdout, "Loaded %d watches from %s\n", len(t.dbg.GetWatches()), path)
	return nil
}

func disassCommand(t *Term, args string) error {
	if !t.dbg.IsAlive() {
		return errNotAlive
	}
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	addr := t.dbg.GetPC()
	count := t.conf.GetDisassembleCount()
	switch len(v) {
	case 0:
	case 2:
		count, err = strconv.Atoi(v[1])
		if err != nil || count <= 0 {
			return fmt.Errorf("invalid count %q", v[1])
		}
		fallthrough
	case 1:
		addr, err = t.parseAddress(v[0])
		if err != nil {
			return err
		}
	default:
		return errors.New("too many arguments")
	}
	disasmPrint(t, addr, count)
	return nil
}

func examineMemoryCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}
	space := t.MemorySpace
	count := 16
	var addrstr string
	for i := 0; i < len(v); i++ {
		switch v[i] {
		case "-aram":
			space = proc.AuxiliaryMemory
		case "-ram":
			space = proc.PrimaryMemory
		case "-count", "-len":
			if i+1 >= len(v) {
				return errors.New("expected count after -count")
			}
			i++
			count, err = strconv.Atoi(v[i])
			if err != nil || count <= 0 {
				return fmt.Errorf("invalid count %q", v[i])
			}
		default:
			if addrstr != "" {
				return errors.New("too many arguments")
			}
			addrstr = v[i]
		}
	}
	if addrstr == "" {
		return errors.New("no address specified")
	}
	if !t.dbg.IsAlive() {
		return errNotAlive
	}
	addr, err := t.parseAddress(addrstr)
	if err != nil {
		return err
	}

	const wordsPerRow = 4
	for i := 0; i < count; i += wordsPerRow {
		row := addr + uint32(i*4)
		fmt.Fprintf(t.stdout, "%s:", t.colorize(fmt.Sprintf("%#08x", row)))
		for j := 0; j < wordsPerRow && i+j < count; j++ {
			fmt.Fprintf(t.stdout, "  %s", t.dbg.GetRawMemoryString(space, row+uint32(j*4)))
		}
		fmt.Fprintln(t.stdout)
	}
	return nil
}

func patch(t *Term, args string) error {
	v := split2PartsBySpace(args)
	if len(v) < 2 {
		return errors.New("not enough arguments")
	}
	addr, err := t.parseAddress(v[0])
	if err != nil {
		return err
	}
	val, err := parseHex(v[1])
	if err != nil {
		return err
	}
	if err := t.dbg.Patch(addr, val); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%s = %08X\n", t.formatAddr(addr), val)
	return nil
}

func color(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	c := t.dbg.GetColor(addr)
	if t.dumb {
		fmt.Fprintln(t.stdout, c)
		return nil
	}
	r, g, b := c.RGB()
	fmt.Fprintf(t.stdout, "\033[48;2;%d;%d;%dm  %s\n", r, g, b, terminalResetEscapeCode+" "+c.String())
	return nil
}

func describe(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	if t.symbols == nil {
		return errNoSymbols
	}
	fmt.Fprintln(t.stdout, t.dbg.GetDescription(addr))
	return nil
}

func listSymbols(t *Term, args string) error {
	if t.symbols == nil {
		return errNoSymbols
	}
	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, sym := range t.symbols.Symbols() {
		if args != "" && !strings.Contains(sym.Name, args) {
			continue
		}
		fmt.Fprintf(w, "%#08x\t%#x\t%s\t%s\n", sym.Address, sym.Size, sym.Kind, sym.Name)
	}
	return w.Flush()
}

func loadSymbols(t *Term, args string) error {
	if args == "" {
		return errors.New("not enough arguments")
	}
	if t.symbols == nil {
		return errNoSymbols
	}
	if err := t.symbols.LoadFile(args); err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "%d symbols loaded\n", t.symbols.Len())
	return nil
}

func printPC(t *Term, args string) error {
	fmt.Fprintf(t.stdout, "pc = %s\n", t.formatAddr(t.dbg.GetPC()))
	return nil
}

func setPC(t *Term, args string) error {
	addr, err := t.parseAddress(args)
	if err != nil {
		return err
	}
	t.dbg.SetPC(addr)
	return nil
}

func state(t *Term, args string) error {
	if t.runner == nil {
		return errNoRunner
	}
	fmt.Fprintf(t.stdout, "running=%v started=%v paused=%v pc=%s\n",
		t.runner.IsRunning(), t.runner.IsStarted(), t.runner.IsPaused(), t.formatAddr(t.runner.PC()))
	return nil
}

func cont(t *Term, args string) error {
	if t.runner == nil {
		return errNoRunner
	}
	if !t.dbg.IsAlive() {
		return errNotAlive
	}
	ev, err := t.runner.Continue(context.Background())
	if err != nil {
		return err
	}
	printStop(t, ev)
	return nil
}

func pause(t *Term, args string) error {
	if t.runner == nil {
		return errNoRunner
	}
	if t.runner.IsPaused() {
		return errors.New("the machine is already paused")
	}
	t.runner.Pause()
	return nil
}

func step(t *Term, args string) error {
	if t.runner == nil {
		return errNoRunner
	}
	count := 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args)
		}
		count = n
	}
	var ev emu.StopEvent
	for i := 0; i < count; i++ {
		var err error
		ev, err = t.runner.Step()
		if err != nil {
			return err
		}
		if ev.Reason != emu.StopStep {
			break
		}
	}
	printStop(t, ev)
	return nil
}

func printStop(t *Term, ev emu.StopEvent) {
	switch ev.Reason {
	case emu.StopBreakpoint:
		fmt.Fprintf(t.stdout, "> Breakpoint hit at %s\n", t.formatAddr(ev.PC))
	case emu.StopMemCheck:
		fmt.Fprintf(t.stdout, "> Memcheck hit at %s accessing %#08x\n", t.formatAddr(ev.PC), ev.Addr)
	case emu.StopFault:
		fmt.Fprintf(t.stdout, "> Exception at %s: %v\n", t.formatAddr(ev.PC), ev.Err)
	case emu.StopExited:
		fmt.Fprintln(t.stdout, "> Machine stopped")
		return
	default:
		fmt.Fprintf(t.stdout, "> Stopped (%s) at %s\n", ev.Reason, t.formatAddr(ev.PC))
	}
	disasmPrint(t, ev.PC, 1)
}

func reset(t *Term, args string) error {
	t.dbg.Clear()
	fmt.Fprintln(t.stdout, "Debugging session cleared")
	return nil
}

// ExitRequestError is returned when the user
// exits gekkodbg.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) sourceCommand(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}

	if args == "-" {
		return t.starlarkEnv.REPL()
	}

	if strings.HasSuffix(args, ".star") {
		_, err := t.starlarkEnv.Execute(args, nil, "main", nil)
		return err
	}

	return c.executeFile(t, args)
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
