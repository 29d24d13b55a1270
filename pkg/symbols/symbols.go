// Package symbols implements an address to symbol database loaded from
// symbol map files.
//
// Two line formats are accepted. Symbol lines have the form
//
//	<address> <size> <f|d> <name>
//
// with address and size in hexadecimal, 'f' marking functions and 'd' data.
// Linker map lines, as found after a ".text section layout" or ".data
// section layout" header, have the form
//
//	<offset> <size> <address> <alignment> <name>
//
// and take their kind from the section. Lines of a linker map that do not
// parse are skipped. Empty lines and lines starting with
// '#' are ignored.
package symbols

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/gekkodbg/gekkodbg/pkg/logflags"
	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

const lookupCacheSize = 1024

// ParseError is returned by Load for a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (err *ParseError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", err.Line, err.Text, err.Err)
}

func (err *ParseError) Unwrap() error {
	return err.Err
}

// DB is a symbol database. It is safe for concurrent use.
type DB struct {
	mu      sync.RWMutex
	symbols []*proc.Symbol // sorted by address
	next    int

	cache *lru.Cache
	log   logflags.Logger
}

// New returns an empty database.
func New() *DB {
	cache, err := lru.New(lookupCacheSize)
	if err != nil {
		panic(err)
	}
	return &DB{cache: cache, log: logflags.SymbolsLogger()}
}

// Add inserts a symbol. Symbols are numbered in insertion order.
func (db *DB) Add(name string, addr, size uint32, kind proc.SymbolKind) *proc.Symbol {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.addLocked(name, addr, size, kind)
}

func (db *DB) addLocked(name string, addr, size uint32, kind proc.SymbolKind) *proc.Symbol {
	sym := &proc.Symbol{Name: name, Address: addr, Size: size, Kind: kind, Index: db.next}
	db.next++
	i := sort.Search(len(db.symbols), func(i int) bool { return db.symbols[i].Address > addr })
	db.symbols = append(db.symbols, nil)
	copy(db.symbols[i+1:], db.symbols[i:])
	db.symbols[i] = sym
	db.cache.Purge()
	return sym
}

// Clear removes every symbol.
func (db *DB) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.symbols = nil
	db.next = 0
	db.cache.Purge()
}

// Len returns the number of symbols.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.symbols)
}

// Symbols returns every symbol sorted by address.
func (db *DB) Symbols() []proc.Symbol {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r := make([]proc.Symbol, len(db.symbols))
	for i, sym := range db.symbols {
		r[i] = *sym
	}
	return r
}

// Lookup returns the symbol called name.
func (db *DB) Lookup(name string) (proc.Symbol, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, sym := range db.symbols {
		if sym.Name == name {
			return *sym, true
		}
	}
	return proc.Symbol{}, false
}

// GetSymbolFromAddr returns the symbol containing addr, or nil.
func (db *DB) GetSymbolFromAddr(addr uint32) *proc.Symbol {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if v, ok := db.cache.Get(addr); ok {
		return v.(*proc.Symbol)
	}
	var sym *proc.Symbol
	i := sort.Search(len(db.symbols), func(i int) bool { return db.symbols[i].Address > addr })
	// Symbols starting at the same address are ordered by insertion, the
	// last one wins.
	if i > 0 && db.symbols[i-1].Contains(addr) {
		sym = db.symbols[i-1]
	}
	db.cache.Add(addr, sym)
	return sym
}

// GetDescription returns the name of the symbol containing addr, followed
// by the offset from its start if not zero, or "--".
func (db *DB) GetDescription(addr uint32) string {
	sym := db.GetSymbolFromAddr(addr)
	if sym == nil {
		return "--"
	}
	if off := addr - sym.Address; off != 0 {
		return fmt.Sprintf("%s+%#x", sym.Name, off)
	}
	return sym.Name
}

// LoadFile loads the symbol map at path.
func (db *DB) LoadFile(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open symbol map")
	}
	defer fh.Close()
	if err := db.Load(fh); err != nil {
		return errors.Wrapf(err, "%s", path)
	}
	return nil
}

// Load adds the symbols read from r. Nothing is added if r contains a
// malformed line.
func (db *DB) Load(r io.Reader) error {
	type entry struct {
		name       string
		addr, size uint32
		kind       proc.SymbolKind
	}
	var entries []entry
	section := proc.FunctionSymbol
	linkerMap := false
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if strings.HasSuffix(line, "section layout") {
			linkerMap = true
			section = proc.DataSymbol
			if strings.HasPrefix(line, ".text") || strings.HasPrefix(line, ".init") {
				section = proc.FunctionSymbol
			}
			continue
		}
		fields := strings.Fields(line)
		var e entry
		var err error
		switch {
		case len(fields) >= 5:
			e.kind = section
			e.name = fields[4]
			e.size, err = parseHex(fields[1])
			if err == nil {
				e.addr, err = parseHex(fields[2])
			}
		case len(fields) == 4:
			e.name = fields[3]
			switch fields[2] {
			case "f":
				e.kind = proc.FunctionSymbol
			case "d":
				e.kind = proc.DataSymbol
			default:
				err = fmt.Errorf("unknown symbol kind %q", fields[2])
			}
			if err == nil {
				e.addr, err = parseHex(fields[0])
			}
			if err == nil {
				e.size, err = parseHex(fields[1])
			}
		default:
			err = errors.New("wrong number of fields")
		}
		if err != nil {
			if linkerMap {
				// column headers and separators
				continue
			}
			return &ParseError{Line: n, Text: line, Err: err}
		}
		if e.size == 0 {
			continue
		}
		entries = append(entries, e)
	}
	if err := s.Err(); err != nil {
		return errors.Wrapf(err, "could not read symbol map")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range entries {
		db.addLocked(e.name, e.addr, e.size, e.kind)
	}
	db.log.Debugf("loaded %d symbols", len(entries))
	return nil
}

func parseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 32)
	return uint32(v), err
}
