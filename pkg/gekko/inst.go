// Package gekko decodes and disassembles instructions of the Gekko and
// Broadway processors, 32-bit big-endian PowerPC cores with the paired
// single extension.
package gekko

import "fmt"

// HLEOpcode is the primary opcode used by high level emulation
// trampolines. It is not a valid PowerPC instruction.
const HLEOpcode = 1

// Inst is a raw instruction word.
type Inst uint32

// OPCD returns the primary opcode, bits 0 to 5 in IBM bit numbering.
func (inst Inst) OPCD() uint32 {
	return uint32(inst) >> 26
}

// IsHLE returns true if inst is a high level emulation trampoline.
func (inst Inst) IsHLE() bool {
	return inst.OPCD() == HLEOpcode
}

// HLEInstruction returns the trampoline word for the HLE function at
// index.
func HLEInstruction(index uint32) Inst {
	return Inst(HLEOpcode<<26 | index&0x3FFFFFF)
}

func (inst Inst) field(shift, width uint) uint32 {
	return uint32(inst) >> shift & (1<<width - 1)
}

func (inst Inst) String() string {
	return fmt.Sprintf("%#08x", uint32(inst))
}
