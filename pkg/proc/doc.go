// Package proc is a low-level package that provides the debugging façade
// for an emulated Gekko (32-bit big-endian PowerPC) machine.
//
// proc implements all core functionality including:
// * the breakpoint, memcheck and watch collections consulted by the execution core
// * liveness-gated access to the memory, program counter and instruction cache
// * disassembly, raw memory formatting and symbol colouring for debugger views
package proc
