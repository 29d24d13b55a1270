package locspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

const maxFindLocationCandidates = 5

// SymbolTable is the part of the symbol database used to resolve
// locations.
type SymbolTable interface {
	Lookup(name string) (proc.Symbol, bool)
	Symbols() []proc.Symbol
}

// Scope is the state a location spec is resolved against. Symbols can be
// nil.
type Scope struct {
	PC      uint32
	Symbols SymbolTable
}

// Location is an address matched by a location spec.
type Location struct {
	Addr uint32
	// Name is the symbol the location was found through, if any.
	Name string
}

// LocationSpec is an interface that represents a parsed location spec string.
type LocationSpec interface {
	// Find returns all locations that match the location spec.
	Find(scope Scope, locStr string) ([]Location, error)
}

// NormalLocationSpec represents a symbol or the program counter, followed
// by an optional byte offset. A Base that is not a known symbol is
// interpreted as a hexadecimal address.
type NormalLocationSpec struct {
	Base   string
	Offset int64
}

// RegexLocationSpec represents a regular expression
// location expression such as /^OSReport$/.
type RegexLocationSpec struct {
	FuncRegex string
}

// AddrLocationSpec represents an address when used
// as a location spec.
type AddrLocationSpec struct {
	Addr uint32
}

// OffsetLocationSpec represents a location spec that
// is an offset, in instructions, of the program counter.
type OffsetLocationSpec struct {
	Offset int
}

// Parse will turn locStr into a parsed LocationSpec.
func Parse(locStr string) (LocationSpec, error) {
	rest := strings.TrimSpace(locStr)

	malformed := func(reason string) error {
		return fmt.Errorf("malformed location %q: %s", locStr, reason)
	}

	if len(rest) <= 0 {
		return nil, malformed("empty string")
	}

	switch rest[0] {
	case '+', '-':
		offset, err := strconv.Atoi(rest)
		if err != nil {
			return nil, malformed(err.Error())
		}
		return &OffsetLocationSpec{offset}, nil

	case '/':
		rx, tail := readRegex(rest[1:])
		if len(tail) == 0 {
			return nil, malformed("non-terminated regular expression")
		}
		if len(tail) > 1 {
			return nil, malformed("no offset can be specified for regular expression locations")
		}
		return &RegexLocationSpec{rx}, nil

	case '*':
		addr, err := parseHex(rest[1:])
		if err != nil {
			return nil, malformed(err.Error())
		}
		return &AddrLocationSpec{addr}, nil

	default:
		return parseLocationSpecDefault(rest), nil
	}
}

// parseLocationSpecDefault splits a trailing hexadecimal offset from the
// base. A suffix that is not a number is part of the base.
func parseLocationSpecDefault(rest string) LocationSpec {
	i := strings.LastIndexAny(rest, "+-")
	if i <= 0 {
		return &NormalLocationSpec{Base: rest}
	}
	off, err := parseHex(rest[i+1:])
	if err != nil {
		return &NormalLocationSpec{Base: rest}
	}
	spec := &NormalLocationSpec{Base: strings.TrimSpace(rest[:i]), Offset: int64(off)}
	if rest[i] == '-' {
		spec.Offset = -spec.Offset
	}
	return spec
}

func readRegex(in string) (rx string, rest string) {
	out := make([]rune, 0, len(in))
	escaped := false
	for i, ch := range in {
		if escaped {
			if ch == '/' {
				out = append(out, '/')
			} else {
				out = append(out, '\\', ch)
			}
			escaped = false
		} else {
			switch ch {
			case '\\':
				escaped = true
			case '/':
				return string(out), in[i:]
			default:
				out = append(out, ch)
			}
		}
	}
	return string(out), ""
}

func parseHex(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hexadecimal number %q", s)
	}
	return uint32(n), nil
}

func offsetAddress(addr uint32, offset int64) (uint32, error) {
	r := int64(addr) + offset
	if r < 0 || r > 0xFFFFFFFF {
		return 0, fmt.Errorf("address %#08x%+d out of range", addr, offset)
	}
	return uint32(r), nil
}

// Find returns the location of the symbol, the program counter or the
// address named by Base.
func (loc *NormalLocationSpec) Find(scope Scope, locStr string) ([]Location, error) {
	var base Location
	switch {
	case loc.Base == "pc":
		base = Location{Addr: scope.PC}
	default:
		sym, ok := proc.Symbol{}, false
		if scope.Symbols != nil {
			sym, ok = scope.Symbols.Lookup(loc.Base)
		}
		if ok {
			base = Location{Addr: sym.Address, Name: sym.Name}
			break
		}
		addr, err := parseHex(loc.Base)
		if err != nil {
			return nil, fmt.Errorf("could not find symbol %q", loc.Base)
		}
		base = Location{Addr: addr}
	}
	addr, err := offsetAddress(base.Addr, loc.Offset)
	if err != nil {
		return nil, err
	}
	return []Location{{Addr: addr, Name: base.Name}}, nil
}

// Find returns the locations specified via the address location spec.
func (loc *AddrLocationSpec) Find(scope Scope, locStr string) ([]Location, error) {
	return []Location{{Addr: loc.Addr}}, nil
}

// Find returns the location Offset instructions away from the program
// counter.
func (loc *OffsetLocationSpec) Find(scope Scope, locStr string) ([]Location, error) {
	addr, err := offsetAddress(scope.PC, int64(loc.Offset)*4)
	if err != nil {
		return nil, err
	}
	return []Location{{Addr: addr}}, nil
}

// Find will search all function symbols and filter them via the regex
// location spec. Only functions matching the regex will be returned.
func (loc *RegexLocationSpec) Find(scope Scope, locStr string) ([]Location, error) {
	if scope.Symbols == nil {
		return nil, fmt.Errorf("no symbols loaded")
	}
	regex, err := regexp.Compile(loc.FuncRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid filter argument: %s", err.Error())
	}
	r := []Location{}
	for _, sym := range scope.Symbols.Symbols() {
		if sym.Kind == proc.FunctionSymbol && regex.MatchString(sym.Name) {
			r = append(r, Location{Addr: sym.Address, Name: sym.Name})
		}
	}
	return r, nil
}

// AmbiguousLocationError is returned when the location spec
// should only return one location but returns multiple instead.
type AmbiguousLocationError struct {
	Location           string
	CandidatesLocation []Location
}

func (ale AmbiguousLocationError) Error() string {
	var candidates []string
	for i, loc := range ale.CandidatesLocation {
		if i >= maxFindLocationCandidates {
			candidates = append(candidates, "...")
			break
		}
		if loc.Name != "" {
			candidates = append(candidates, loc.Name)
		} else {
			candidates = append(candidates, fmt.Sprintf("%#08x", loc.Addr))
		}
	}
	return fmt.Sprintf("location %q ambiguous: %s", ale.Location, strings.Join(candidates, ", "))
}

// Resolve parses locStr and returns the single address it names.
func Resolve(scope Scope, locStr string) (uint32, error) {
	spec, err := Parse(locStr)
	if err != nil {
		return 0, err
	}
	locs, err := spec.Find(scope, locStr)
	if err != nil {
		return 0, err
	}
	switch len(locs) {
	case 0:
		return 0, fmt.Errorf("location %q not found", locStr)
	case 1:
		return locs[0].Addr, nil
	default:
		return 0, AmbiguousLocationError{Location: locStr, CandidatesLocation: locs}
	}
}
