package proc

import "fmt"

// MemorySpace selects between primary memory and the audio memory.
type MemorySpace int

const (
	PrimaryMemory   MemorySpace = 0
	AuxiliaryMemory MemorySpace = 1
)

func (s MemorySpace) String() string {
	switch s {
	case PrimaryMemory:
		return "ram"
	case AuxiliaryMemory:
		return "aram"
	default:
		return fmt.Sprintf("space%d", int(s))
	}
}

// ReadStatus is the reason a live-state query could or could not be
// answered.
type ReadStatus uint8

const (
	// ReadOK means the value was read from the machine.
	ReadOK ReadStatus = iota
	// ReadNotAlive means the machine is not running or not started.
	ReadNotAlive
	// ReadNotPaused means the machine is executing and the request needs
	// it to be stopped.
	ReadNotPaused
	// ReadInvalidAddress means the address is not mapped or the read
	// faulted.
	ReadInvalidAddress
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadNotAlive:
		return "not alive"
	case ReadNotPaused:
		return "not paused"
	case ReadInvalidAddress:
		return "invalid address"
	default:
		return "unknown"
	}
}

// Disassembly is the result of disassembling one instruction.
type Disassembly struct {
	Address uint32
	Op      uint32
	Text    string
	// HLE is true if the instruction is a high level emulation trampoline.
	HLE    bool
	Status ReadStatus
}

// String renders d the way debugger views expect it, with fixed
// placeholders for every status other than ReadOK.
func (d Disassembly) String() string {
	switch d.Status {
	case ReadNotAlive:
		return ""
	case ReadNotPaused:
		return "<unknown>"
	case ReadInvalidAddress:
		return "(No RAM here)"
	}
	if d.HLE {
		return d.Text + " (hle)"
	}
	return d.Text
}

// RawMemory is the result of reading one word for a memory view.
type RawMemory struct {
	Space   MemorySpace
	Address uint32
	Value   uint32
	Status  ReadStatus
}

// String renders m as eight characters, plus a suffix for the audio
// memory.
func (m RawMemory) String() string {
	aux := m.Space != PrimaryMemory
	switch m.Status {
	case ReadNotAlive, ReadNotPaused:
		// misspelt on purpose, it keeps the column eight characters wide
		return "<unknwn>"
	case ReadInvalidAddress:
		if aux {
			return "--ARAM--"
		}
		return "--------"
	}
	if aux {
		return fmt.Sprintf("%08X (ARAM)", m.Value)
	}
	return fmt.Sprintf("%08X", m.Value)
}
