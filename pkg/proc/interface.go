package proc

// ExecutionState exposes the run state and the program counter of the
// emulated CPU. All methods are snapshot reads.
type ExecutionState interface {
	// IsRunning returns true if the machine has been powered on and has not
	// been shut down. A paused machine is still running.
	IsRunning() bool
	// IsStarted returns true once the boot sequence has completed.
	IsStarted() bool
	// IsPaused returns true if the execution core is stopped.
	IsPaused() bool

	PC() uint32
	SetPC(pc uint32)
}

// Memory is the primary memory accessor.
type Memory interface {
	IsRAMAddress(addr uint32) bool
	ReadU32(addr uint32) (uint32, error)
	WriteU32(addr uint32, val uint32) error
}

// AuxMemory is the secondary (audio) memory accessor, addressed one byte
// at a time.
type AuxMemory interface {
	ReadARAM(addr uint32) byte
}

// InstructionFetcher reads instruction words the way the execution core
// sees them, which may differ from a plain memory read.
type InstructionFetcher interface {
	ReadInstruction(addr uint32) (uint32, error)
}

// CacheInvalidator schedules an instruction cache invalidation. It must be
// safe to call from any goroutine: the execution core decides when the
// invalidation is applied.
type CacheInvalidator interface {
	ScheduleInvalidate(addr uint32)
}

// SymbolDB resolves addresses to symbols.
type SymbolDB interface {
	// GetSymbolFromAddr returns the symbol owning addr or nil.
	GetSymbolFromAddr(addr uint32) *Symbol
	GetDescription(addr uint32) string
}

// Disassembler turns an instruction word fetched at addr into text.
type Disassembler interface {
	Disassemble(op uint32, addr uint32) string
}

// SymbolKind distinguishes functions from data symbols.
type SymbolKind uint8

const (
	FunctionSymbol SymbolKind = iota
	DataSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case FunctionSymbol:
		return "function"
	case DataSymbol:
		return "data"
	default:
		return "unknown"
	}
}

// Symbol is an entry of the symbol database.
type Symbol struct {
	Name    string
	Address uint32
	Size    uint32
	Kind    SymbolKind
	// Index is the stable position of the symbol in the database, used to
	// pick a display colour.
	Index int
}

// Contains returns true if addr lies inside the symbol.
func (s *Symbol) Contains(addr uint32) bool {
	if s.Size == 0 {
		return addr == s.Address
	}
	return addr >= s.Address && uint64(addr) < uint64(s.Address)+uint64(s.Size)
}

// Config holds the collaborators of a DebugInterface. Symbols may be nil,
// every other field is required.
type Config struct {
	State        ExecutionState
	Memory       Memory
	AuxMemory    AuxMemory
	Fetcher      InstructionFetcher
	Invalidator  CacheInvalidator
	Symbols      SymbolDB
	Disassembler Disassembler
}
