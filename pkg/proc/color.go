package proc

import "fmt"

// Color is a 0xRRGGBB colour used to tint addresses in debugger views.
type Color uint32

const (
	// ColorUnknown is used when the machine is not alive.
	ColorUnknown Color = 0xFFFFFF
	// ColorInvalid is used for addresses outside of RAM.
	ColorInvalid Color = 0xEEEEEE
	// ColorNoSymbol is used for RAM without a symbol.
	ColorNoSymbol Color = 0xFFFFFF
	// ColorData is used for symbols that are not functions.
	ColorData Color = 0xEEEEFF
)

// FunctionPalette separates adjacent functions in a disassembly view.
var FunctionPalette = [6]Color{
	0xD0FFFF, // light cyan
	0xFFD0D0, // light red
	0xD8D8FF, // light blue
	0xFFD0FF, // light purple
	0xD0FFD0, // light green
	0xFFFFD0, // light yellow
}

// RGB returns the red, green and blue components of c.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// symbolColor returns the colour of an address owned by sym.
func symbolColor(sym *Symbol) Color {
	if sym == nil {
		return ColorNoSymbol
	}
	if sym.Kind != FunctionSymbol {
		return ColorData
	}
	idx := sym.Index % len(FunctionPalette)
	if idx < 0 {
		idx += len(FunctionPalette)
	}
	return FunctionPalette[idx]
}
