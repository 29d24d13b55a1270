// Package emu implements a reference machine with the memory map of the
// GameCube: 24 MiB of main memory visible through cached and uncached
// mirrors, 16 MiB of auxiliary audio memory, an instruction cache and a
// CPU core that executes a small subset of the PowerPC instruction set.
//
// It is the execution core used by gekkodbg when no external emulator is
// attached and it is the fixture used to test the debugger frontends.
package emu

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

const (
	// MEM1Size is the size of main memory.
	MEM1Size = 24 << 20
	// ARAMSize is the size of auxiliary memory.
	ARAMSize = 16 << 20

	// CachedBase and UncachedBase are the virtual addresses of the two
	// main memory mirrors.
	CachedBase   = 0x80000000
	UncachedBase = 0xC0000000

	physicalMask = 0x3FFFFFFF
)

// ErrNotRAM is returned for accesses outside of main memory.
var ErrNotRAM = errors.New("address is not RAM")

// Memory is the main memory of the machine.
type Memory struct {
	mu   sync.RWMutex
	mem1 []byte
}

// NewMemory returns zeroed main memory.
func NewMemory() *Memory {
	return &Memory{mem1: make([]byte, MEM1Size)}
}

// translate returns the offset in mem1 of the n bytes starting at addr.
func translate(addr uint32, n uint32) (uint32, error) {
	if addr>>30 == 1 {
		return 0, errors.Wrapf(ErrNotRAM, "%#08x", addr)
	}
	phys := addr & physicalMask
	if phys >= MEM1Size || MEM1Size-phys < n {
		return 0, errors.Wrapf(ErrNotRAM, "%#08x", addr)
	}
	return phys, nil
}

// IsRAMAddress returns true if addr is mapped to main memory, either
// physically or through one of the mirrors.
func (m *Memory) IsRAMAddress(addr uint32) bool {
	_, err := translate(addr, 1)
	return err == nil
}

// ReadU32 reads the big-endian word at addr.
func (m *Memory) ReadU32(addr uint32) (uint32, error) {
	off, err := translate(addr, 4)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return binary.BigEndian.Uint32(m.mem1[off:]), nil
}

// WriteU32 writes val at addr in big-endian order.
func (m *Memory) WriteU32(addr, val uint32) error {
	off, err := translate(addr, 4)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	binary.BigEndian.PutUint32(m.mem1[off:], val)
	return nil
}

// ReadU8 reads the byte at addr.
func (m *Memory) ReadU8(addr uint32) (byte, error) {
	off, err := translate(addr, 1)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mem1[off], nil
}

// WriteU8 writes the byte at addr.
func (m *Memory) WriteU8(addr uint32, val byte) error {
	off, err := translate(addr, 1)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mem1[off] = val
	return nil
}

// Load copies data to main memory starting at addr.
func (m *Memory) Load(addr uint32, data []byte) error {
	off, err := translate(addr, uint32(len(data)))
	if err != nil {
		return errors.Wrapf(err, "could not load %d bytes", len(data))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.mem1[off:], data)
	return nil
}

// Read copies len(buf) bytes starting at addr into buf.
func (m *Memory) Read(addr uint32, buf []byte) error {
	off, err := translate(addr, uint32(len(buf)))
	if err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	copy(buf, m.mem1[off:])
	return nil
}

func (m *Memory) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mem1 {
		m.mem1[i] = 0
	}
}

// ARAM is the auxiliary memory of the audio DSP. Addresses wrap around.
type ARAM struct {
	mu   sync.RWMutex
	data []byte
}

// NewARAM returns zeroed auxiliary memory.
func NewARAM() *ARAM {
	return &ARAM{data: make([]byte, ARAMSize)}
}

// ReadARAM returns the byte at addr.
func (a *ARAM) ReadARAM(addr uint32) byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data[addr%ARAMSize]
}

// WriteARAM sets the byte at addr.
func (a *ARAM) WriteARAM(addr uint32, val byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[addr%ARAMSize] = val
}
