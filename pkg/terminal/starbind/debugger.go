package starbind

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

// address unpacks a starlark int into a 32-bit address.
type address uint32

func (a *address) Unpack(v starlark.Value) error {
	i, ok := v.(starlark.Int)
	if !ok {
		return fmt.Errorf("got %s, want int", v.Type())
	}
	u, ok := i.Uint64()
	if !ok || u > math.MaxUint32 {
		return fmt.Errorf("%s does not fit in 32 bits", i)
	}
	*a = address(u)
	return nil
}

func toInt(v uint32) starlark.Value {
	return starlark.MakeUint64(uint64(v))
}

func memCheckValue(mc proc.MemCheck) starlark.Value {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"start": toInt(mc.StartAddress),
		"end":   toInt(mc.EndAddress),
		"read":  starlark.Bool(mc.IsBreakOnRead),
		"write": starlark.Bool(mc.IsBreakOnWrite),
		"log":   starlark.Bool(mc.LogOnHit),
		"break": starlark.Bool(mc.BreakOnHit),
	})
}

func watchValue(i int, w proc.Watch) starlark.Value {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"index":   starlark.MakeInt(i),
		"address": toInt(w.Address),
		"name":    starlark.String(w.Name),
		"enabled": starlark.Bool(w.Enabled),
	})
}

// addrBuiltin defines a builtin taking a single address.
func (env *Env) addrBuiltin(name, descr string, fn func(dbg *proc.DebugInterface, addr uint32) starlark.Value) {
	env.builtin(name, "(Addr)", descr, func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr address
		if err := starlark.UnpackArgs(name, args, kwargs, "Addr", &addr); err != nil {
			return nil, err
		}
		return fn(env.ctx.Debugger(), uint32(addr)), nil
	})
}

// spaceBuiltin defines a builtin taking a memory space and an address.
func (env *Env) spaceBuiltin(name, descr string, fn func(dbg *proc.DebugInterface, space proc.MemorySpace, addr uint32) starlark.Value) {
	env.builtin(name, "(Space, Addr)", descr, func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var space int
		var addr address
		if err := starlark.UnpackArgs(name, args, kwargs, "Space", &space, "Addr", &addr); err != nil {
			return nil, err
		}
		return fn(env.ctx.Debugger(), proc.MemorySpace(space), uint32(addr)), nil
	})
}

func (env *Env) debuggerBuiltins() {
	env.addrBuiltin("set_breakpoint", "sets a breakpoint at Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		dbg.SetBreakpoint(addr)
		return starlark.None
	})
	env.addrBuiltin("clear_breakpoint", "removes the breakpoint at Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		dbg.ClearBreakpoint(addr)
		return starlark.None
	})
	env.addrBuiltin("toggle_breakpoint", "sets or removes the breakpoint at Addr, returns True if it is now set.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return starlark.Bool(dbg.ToggleBreakpoint(addr))
	})
	env.addrBuiltin("is_breakpoint", "returns True if a breakpoint is set at Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return starlark.Bool(dbg.IsBreakpoint(addr))
	})
	env.builtin("breakpoints", "()", "returns the list of breakpoint addresses.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("breakpoints", args, kwargs); err != nil {
			return nil, err
		}
		addrs := env.ctx.Debugger().Breakpoints().Addresses()
		r := make([]starlark.Value, len(addrs))
		for i := range addrs {
			r[i] = toInt(addrs[i])
		}
		return starlark.NewList(r), nil
	})

	env.builtin("toggle_memcheck", "(Addr, read=True, write=True, log=True)", "removes the memcheck overlapping Addr or adds one, returns True if it was added.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr address
		read, write, log := true, true, true
		if err := starlark.UnpackArgs("toggle_memcheck", args, kwargs, "Addr", &addr, "read?", &read, "write?", &write, "log?", &log); err != nil {
			return nil, err
		}
		return starlark.Bool(env.ctx.Debugger().ToggleMemCheck(uint32(addr), read, write, log)), nil
	})
	env.builtin("is_memcheck", "(Addr, size=1)", "returns True if a memcheck overlaps the Size bytes starting at Addr.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr address
		size := 1
		if err := starlark.UnpackArgs("is_memcheck", args, kwargs, "Addr", &addr, "size?", &size); err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, fmt.Errorf("negative size")
		}
		return starlark.Bool(env.ctx.Debugger().IsMemCheck(uint32(addr), uint32(size))), nil
	})
	env.builtin("memchecks", "()", "returns the list of memchecks.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("memchecks", args, kwargs); err != nil {
			return nil, err
		}
		mcs := env.ctx.Debugger().MemChecks().MemChecks()
		r := make([]starlark.Value, len(mcs))
		for i := range mcs {
			r[i] = memCheckValue(mcs[i])
		}
		return starlark.NewList(r), nil
	})

	env.builtin("set_watch", "(Addr, name=\"\")", "adds a watch and returns its index.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr address
		var name string
		if err := starlark.UnpackArgs("set_watch", args, kwargs, "Addr", &addr, "name?", &name); err != nil {
			return nil, err
		}
		return starlark.MakeInt(env.ctx.Debugger().SetWatch(uint32(addr), name)), nil
	})
	env.addrBuiltin("unset_watch", "removes the first watch on Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		dbg.UnsetWatch(addr)
		return starlark.None
	})
	env.builtin("watches", "()", "returns the list of watches.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("watches", args, kwargs); err != nil {
			return nil, err
		}
		ws := env.ctx.Debugger().GetWatches()
		r := make([]starlark.Value, len(ws))
		for i := range ws {
			r[i] = watchValue(i, ws[i])
		}
		return starlark.NewList(r), nil
	})

	env.addrBuiltin("read_memory", "returns the word at Addr in main memory.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return toInt(dbg.ReadMemory(addr))
	})
	env.spaceBuiltin("read_extra_memory", "returns the word at Addr in memory space Space (0 main memory, 1 ARAM).", func(dbg *proc.DebugInterface, space proc.MemorySpace, addr uint32) starlark.Value {
		return toInt(dbg.ReadExtraMemory(space, addr))
	})
	env.addrBuiltin("read_instruction", "returns the instruction word at Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return toInt(dbg.ReadInstruction(addr))
	})
	env.spaceBuiltin("raw_memory", "returns the word at Addr in memory space Space formatted for display.", func(dbg *proc.DebugInterface, space proc.MemorySpace, addr uint32) starlark.Value {
		return starlark.String(dbg.GetRawMemoryString(space, addr))
	})
	env.addrBuiltin("disassemble", "returns the disassembly of the instruction at Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return starlark.String(dbg.Disassemble(addr))
	})
	env.builtin("patch", "(Addr, Value)", "writes the word Value at Addr and invalidates the instruction cache.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var addr, val address
		if err := starlark.UnpackArgs("patch", args, kwargs, "Addr", &addr, "Value", &val); err != nil {
			return nil, err
		}
		return starlark.None, env.ctx.Debugger().Patch(uint32(addr), uint32(val))
	})
	env.builtin("get_pc", "()", "returns the program counter.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("get_pc", args, kwargs); err != nil {
			return nil, err
		}
		return toInt(env.ctx.Debugger().GetPC()), nil
	})
	env.addrBuiltin("set_pc", "sets the program counter.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		dbg.SetPC(addr)
		return starlark.None
	})
	env.addrBuiltin("color", "returns the 0xRRGGBB color of Addr in a disassembly view.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return toInt(uint32(dbg.GetColor(addr)))
	})
	env.addrBuiltin("describe", "returns the symbol description of Addr.", func(dbg *proc.DebugInterface, addr uint32) starlark.Value {
		return starlark.String(dbg.GetDescription(addr))
	})
	env.builtin("is_alive", "()", "returns True if the machine is running and started.", func(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs("is_alive", args, kwargs); err != nil {
			return nil, err
		}
		return starlark.Bool(env.ctx.Debugger().IsAlive()), nil
	})
}
