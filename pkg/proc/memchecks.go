package proc

import (
	"fmt"
	"strings"
	"sync"
)

// MemCheck is a memory range instrumented for read and/or write access.
// For single address checks StartAddress == EndAddress.
type MemCheck struct {
	StartAddress uint32
	EndAddress   uint32

	IsBreakOnRead  bool
	IsBreakOnWrite bool

	LogOnHit   bool
	BreakOnHit bool
}

// Contains returns true if addr lies in the range of mc.
func (mc MemCheck) Contains(addr uint32) bool {
	return addr >= mc.StartAddress && addr <= mc.EndAddress
}

// Overlaps returns true if [addr, addr+size) intersects the range of mc.
// A size of zero is treated as one.
func (mc MemCheck) Overlaps(addr uint32, size uint32) bool {
	if size == 0 {
		size = 1
	}
	last := uint64(addr) + uint64(size) - 1
	return uint64(mc.EndAddress) >= uint64(addr) && last >= uint64(mc.StartAddress)
}

func (mc MemCheck) String() string {
	var flags []string
	if mc.IsBreakOnRead {
		flags = append(flags, "read")
	}
	if mc.IsBreakOnWrite {
		flags = append(flags, "write")
	}
	if mc.LogOnHit {
		flags = append(flags, "log")
	}
	if mc.BreakOnHit {
		flags = append(flags, "break")
	}
	if mc.StartAddress == mc.EndAddress {
		return fmt.Sprintf("%#08x [%s]", mc.StartAddress, strings.Join(flags, ","))
	}
	return fmt.Sprintf("%#08x-%#08x [%s]", mc.StartAddress, mc.EndAddress, strings.Join(flags, ","))
}

// MemChecks is an ordered collection of memchecks. Overlapping ranges may
// coexist; lookups return the first match in insertion order.
type MemChecks struct {
	mu     sync.RWMutex
	checks []MemCheck
}

// NewMemChecks creates an empty memcheck collection.
func NewMemChecks() *MemChecks {
	return &MemChecks{}
}

// GetMemCheck returns the first memcheck overlapping [addr, addr+size).
func (mcs *MemChecks) GetMemCheck(addr uint32, size uint32) (MemCheck, bool) {
	mcs.mu.RLock()
	defer mcs.mu.RUnlock()
	return mcs.find(addr, size)
}

func (mcs *MemChecks) find(addr uint32, size uint32) (MemCheck, bool) {
	for _, mc := range mcs.checks {
		if mc.Overlaps(addr, size) {
			return mc, true
		}
	}
	return MemCheck{}, false
}

// Add appends mc. Ranges are never merged.
func (mcs *MemChecks) Add(mc MemCheck) {
	mcs.mu.Lock()
	mcs.checks = append(mcs.checks, mc)
	mcs.mu.Unlock()
}

// Remove deletes the first memcheck whose range contains addr.
func (mcs *MemChecks) Remove(addr uint32) {
	mcs.mu.Lock()
	mcs.remove(addr)
	mcs.mu.Unlock()
}

func (mcs *MemChecks) remove(addr uint32) {
	for i := range mcs.checks {
		if mcs.checks[i].Contains(addr) {
			mcs.checks = append(mcs.checks[:i], mcs.checks[i+1:]...)
			return
		}
	}
}

// Clear removes every memcheck.
func (mcs *MemChecks) Clear() {
	mcs.mu.Lock()
	mcs.checks = nil
	mcs.mu.Unlock()
}

// Toggle flips the existence of a memcheck at addr. If a memcheck
// overlaps addr it is removed and read, write and log are ignored.
// Otherwise a single address memcheck that always breaks on hit is added
// with the given flags.
// It returns true if a memcheck was added.
func (mcs *MemChecks) Toggle(addr uint32, read, write, log bool) bool {
	mcs.mu.Lock()
	defer mcs.mu.Unlock()
	if _, ok := mcs.find(addr, 1); ok {
		mcs.remove(addr)
		return false
	}
	mcs.checks = append(mcs.checks, MemCheck{
		StartAddress:   addr,
		EndAddress:     addr,
		IsBreakOnRead:  read,
		IsBreakOnWrite: write,
		LogOnHit:       log,
		BreakOnHit:     true,
	})
	return true
}

// MemChecks returns a copy of the collection in insertion order.
func (mcs *MemChecks) MemChecks() []MemCheck {
	mcs.mu.RLock()
	defer mcs.mu.RUnlock()
	r := make([]MemCheck, len(mcs.checks))
	copy(r, mcs.checks)
	return r
}
