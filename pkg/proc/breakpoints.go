package proc

import (
	"sort"
	"sync"
)

// Breakpoints is the set of addresses at which the execution core should
// halt. It is safe for concurrent use: the execution core consults it
// while the debugger mutates it.
type Breakpoints struct {
	mu sync.RWMutex
	m  map[uint32]struct{}
}

// NewBreakpoints creates an empty breakpoint set.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{m: make(map[uint32]struct{})}
}

// IsAddressBreakPoint returns true if a breakpoint is set at addr.
func (bps *Breakpoints) IsAddressBreakPoint(addr uint32) bool {
	bps.mu.RLock()
	defer bps.mu.RUnlock()
	_, ok := bps.m[addr]
	return ok
}

// Add sets a breakpoint at addr. Adding an existing breakpoint is a no-op.
func (bps *Breakpoints) Add(addr uint32) {
	bps.mu.Lock()
	bps.m[addr] = struct{}{}
	bps.mu.Unlock()
}

// Remove clears the breakpoint at addr, if any.
func (bps *Breakpoints) Remove(addr uint32) {
	bps.mu.Lock()
	delete(bps.m, addr)
	bps.mu.Unlock()
}

// Clear removes every breakpoint.
func (bps *Breakpoints) Clear() {
	bps.mu.Lock()
	bps.m = make(map[uint32]struct{})
	bps.mu.Unlock()
}

// Toggle removes the breakpoint at addr if present, otherwise sets it.
// It returns true if a breakpoint is set at addr after the call.
func (bps *Breakpoints) Toggle(addr uint32) bool {
	bps.mu.Lock()
	defer bps.mu.Unlock()
	if _, ok := bps.m[addr]; ok {
		delete(bps.m, addr)
		return false
	}
	bps.m[addr] = struct{}{}
	return true
}

// Addresses returns the breakpoint addresses in ascending order.
func (bps *Breakpoints) Addresses() []uint32 {
	bps.mu.RLock()
	r := make([]uint32, 0, len(bps.m))
	for addr := range bps.m {
		r = append(r, addr)
	}
	bps.mu.RUnlock()
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}

// Len returns the number of breakpoints.
func (bps *Breakpoints) Len() int {
	bps.mu.RLock()
	defer bps.mu.RUnlock()
	return len(bps.m)
}
