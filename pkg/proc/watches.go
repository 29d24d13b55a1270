package proc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Watch is a named address bookmark.
type Watch struct {
	Address uint32
	Name    string
	Enabled bool
}

// ErrWatchIndexOutOfRange is the error wrapped by WatchIndexError.
var ErrWatchIndexOutOfRange = errors.New("watch index out of range")

// WatchIndexError is returned by index based watch operations when the
// index does not name a watch.
type WatchIndexError struct {
	Index int
	Len   int
}

func (err *WatchIndexError) Error() string {
	return fmt.Sprintf("watch #%d is not defined (%d watches)", err.Index, err.Len)
}

func (err *WatchIndexError) Unwrap() error {
	return ErrWatchIndexOutOfRange
}

// Watches is an ordered list of watches. Watches are identified by their
// position: removing a watch shifts every following watch down by one, so
// indices must be fetched again after a removal.
type Watches struct {
	mu      sync.RWMutex
	watches []Watch
}

// NewWatches creates an empty watch list.
func NewWatches() *Watches {
	return &Watches{}
}

func (ws *Watches) check(index int) error {
	if index < 0 || index >= len(ws.watches) {
		return &WatchIndexError{Index: index, Len: len(ws.watches)}
	}
	return nil
}

// SetWatch appends an enabled watch and returns its index. Watches on
// the same address are allowed.
func (ws *Watches) SetWatch(addr uint32, name string) int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.watches = append(ws.watches, Watch{Address: addr, Name: name, Enabled: true})
	return len(ws.watches) - 1
}

// GetWatch returns the watch at index.
func (ws *Watches) GetWatch(index int) (Watch, error) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	if err := ws.check(index); err != nil {
		return Watch{}, err
	}
	return ws.watches[index], nil
}

// GetWatches returns a copy of the watches in insertion order.
func (ws *Watches) GetWatches() []Watch {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	r := make([]Watch, len(ws.watches))
	copy(r, ws.watches)
	return r
}

func (ws *Watches) update(index int, fn func(w *Watch)) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.check(index); err != nil {
		return err
	}
	fn(&ws.watches[index])
	return nil
}

// UpdateWatch replaces address and name of the watch at index.
func (ws *Watches) UpdateWatch(index int, addr uint32, name string) error {
	return ws.update(index, func(w *Watch) {
		w.Address = addr
		w.Name = name
	})
}

// UpdateWatchAddress replaces the address of the watch at index.
func (ws *Watches) UpdateWatchAddress(index int, addr uint32) error {
	return ws.update(index, func(w *Watch) { w.Address = addr })
}

// UpdateWatchName replaces the name of the watch at index.
func (ws *Watches) UpdateWatchName(index int, name string) error {
	return ws.update(index, func(w *Watch) { w.Name = name })
}

// EnableWatch enables the watch at index.
func (ws *Watches) EnableWatch(index int) error {
	return ws.update(index, func(w *Watch) { w.Enabled = true })
}

// DisableWatch disables the watch at index.
func (ws *Watches) DisableWatch(index int) error {
	return ws.update(index, func(w *Watch) { w.Enabled = false })
}

// HasEnabledWatch returns true if an enabled watch is set on addr.
func (ws *Watches) HasEnabledWatch(addr uint32) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, w := range ws.watches {
		if w.Enabled && w.Address == addr {
			return true
		}
	}
	return false
}

// RemoveWatch deletes the watch at index.
func (ws *Watches) RemoveWatch(index int) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if err := ws.check(index); err != nil {
		return err
	}
	ws.watches = append(ws.watches[:index], ws.watches[index+1:]...)
	return nil
}

// UnsetWatch deletes the first watch set on addr.
func (ws *Watches) UnsetWatch(addr uint32) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for i := range ws.watches {
		if ws.watches[i].Address == addr {
			ws.watches = append(ws.watches[:i], ws.watches[i+1:]...)
			return
		}
	}
}

// LoadFromStrings replaces every watch with the ones described by lines,
// in the format written by SaveToStrings. Lines that can not be parsed
// are skipped.
func (ws *Watches) LoadFromStrings(lines []string) {
	watches := make([]Watch, 0, len(lines))
	for _, line := range lines {
		w, err := ParseWatch(line)
		if err != nil {
			continue
		}
		watches = append(watches, w)
	}
	ws.mu.Lock()
	ws.watches = watches
	ws.mu.Unlock()
}

// SaveToStrings returns one "%08X %s" line per watch, in order.
func (ws *Watches) SaveToStrings() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	r := make([]string, len(ws.watches))
	for i, w := range ws.watches {
		r[i] = fmt.Sprintf("%08X %s", w.Address, w.Name)
	}
	return r
}

// Clear removes every watch.
func (ws *Watches) Clear() {
	ws.mu.Lock()
	ws.watches = nil
	ws.mu.Unlock()
}

// Len returns the number of watches.
func (ws *Watches) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.watches)
}

// ParseWatch parses a "<hex-address> <name>" line. The name is the rest of
// the line after the whitespace following the address and may be empty.
// The returned watch is enabled.
func ParseWatch(line string) (Watch, error) {
	line = strings.TrimRight(line, "\r\n")
	addrstr := line
	name := ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		addrstr = line[:i]
		name = strings.TrimLeft(line[i:], " \t")
	}
	addrstr = strings.TrimPrefix(strings.TrimPrefix(addrstr, "0x"), "0X")
	addr, err := strconv.ParseUint(addrstr, 16, 32)
	if err != nil {
		return Watch{}, fmt.Errorf("malformed watch %q: %v", line, err)
	}
	return Watch{Address: uint32(addr), Name: name, Enabled: true}, nil
}
