package emu

import (
	"sync"

	"github.com/gekkodbg/gekkodbg/pkg/logflags"
)

const (
	cacheLineSize  = 32
	cacheLineWords = cacheLineSize / 4
)

type cacheLine [cacheLineWords]uint32

// InstructionCache caches instruction words read from main memory one line
// at a time. Writes to memory are not seen by the cache until the line is
// invalidated.
type InstructionCache struct {
	mem *Memory

	mu    sync.Mutex
	lines map[uint32]*cacheLine
}

// NewInstructionCache returns an empty cache in front of mem.
func NewInstructionCache(mem *Memory) *InstructionCache {
	return &InstructionCache{mem: mem, lines: make(map[uint32]*cacheLine)}
}

// ReadInstruction returns the instruction word at addr.
func (c *InstructionCache) ReadInstruction(addr uint32) (uint32, error) {
	base := addr &^ (cacheLineSize - 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[base]
	if !ok {
		line = new(cacheLine)
		for i := range line {
			w, err := c.mem.ReadU32(base + uint32(i*4))
			if err != nil {
				return 0, err
			}
			line[i] = w
		}
		c.lines[base] = line
	}
	return line[(addr-base)/4], nil
}

// Invalidate drops the line containing addr.
func (c *InstructionCache) Invalidate(addr uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, addr&^(cacheLineSize-1))
}

// Reset drops every line.
func (c *InstructionCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[uint32]*cacheLine)
}

// Invalidator queues cache invalidation requests coming from other
// goroutines until the execution core is ready to process them.
type Invalidator struct {
	mu      sync.Mutex
	pending []uint32
	notify  func()
	log     logflags.Logger
}

// NewInvalidator returns an empty queue. If notify is not nil it is called
// every time an address is queued.
func NewInvalidator(notify func()) *Invalidator {
	return &Invalidator{notify: notify, log: logflags.MachineLogger()}
}

// ScheduleInvalidate queues the invalidation of the cache line containing
// addr.
func (inv *Invalidator) ScheduleInvalidate(addr uint32) {
	inv.mu.Lock()
	inv.pending = append(inv.pending, addr)
	inv.mu.Unlock()
	inv.log.Debugf("scheduled icache invalidation of %#08x", addr)
	if inv.notify != nil {
		inv.notify()
	}
}

// Drain invalidates every queued address in c.
func (inv *Invalidator) Drain(c *InstructionCache) int {
	inv.mu.Lock()
	pending := inv.pending
	inv.pending = nil
	inv.mu.Unlock()
	for _, addr := range pending {
		c.Invalidate(addr)
	}
	return len(pending)
}
