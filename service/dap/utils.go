package dap

import (
	"fmt"

	"github.com/gekkodbg/gekkodbg/pkg/locspec"
)

// parseAddress resolves a memory reference or a location expression.
// Breakpoint and memory references are plain hexadecimal addresses or
// symbol names, optionally followed by an offset.
func (s *Server) parseAddress(expr string) (uint32, error) {
	scope := locspec.Scope{PC: s.dbg.GetPC()}
	if s.config.Symbols != nil {
		scope.Symbols = s.config.Symbols
	}
	return locspec.Resolve(scope, expr)
}

// offsetAddress applies a signed request offset to addr, failing if the
// result does not fit in 32 bits.
func offsetAddress(addr uint32, offset int) (uint32, error) {
	r := int64(addr) + int64(offset)
	if r < 0 || r > 0xFFFFFFFF {
		return 0, fmt.Errorf("address %#08x%+d out of range", addr, offset)
	}
	return uint32(r), nil
}

func formatAddress(addr uint32) string {
	return fmt.Sprintf("%#08x", addr)
}
