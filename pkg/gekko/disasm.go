package gekko

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/ppc64/ppc64asm"
)

// Disassembler renders instruction words in GNU assembler syntax.
type Disassembler struct{}

// NewDisassembler returns a Disassembler.
func NewDisassembler() *Disassembler {
	return &Disassembler{}
}

// Disassemble returns the text of op located at addr.
func (d *Disassembler) Disassemble(op, addr uint32) string {
	inst := Inst(op)
	if inst.IsHLE() {
		return word(op)
	}
	if text, ok := pairedSingle(inst); ok {
		return text
	}
	var mem [4]byte
	binary.BigEndian.PutUint32(mem[:], op)
	decoded, err := ppc64asm.Decode(mem[:], binary.BigEndian)
	if err != nil {
		return word(op)
	}
	return ppc64asm.GNUSyntax(decoded, uint64(addr))
}

func word(op uint32) string {
	return fmt.Sprintf(".long %#08x", op)
}

// Paired single instructions reuse encodings that ppc64asm decodes as
// Altivec or as invalid, so they are decoded here.

var psArith = map[uint32]string{
	18: "ps_div",
	20: "ps_sub",
	21: "ps_add",
	23: "ps_sel",
	24: "ps_res",
	25: "ps_mul",
	26: "ps_rsqrte",
	28: "ps_msub",
	29: "ps_madd",
	30: "ps_nmsub",
	31: "ps_nmadd",
}

var psMove = map[uint32]string{
	40:  "ps_neg",
	72:  "ps_mr",
	136: "ps_nabs",
	264: "ps_abs",
}

var psMerge = map[uint32]string{
	528: "ps_merge00",
	560: "ps_merge01",
	592: "ps_merge10",
	624: "ps_merge11",
}

var psCompare = map[uint32]string{
	0:  "ps_cmpu0",
	32: "ps_cmpo0",
	64: "ps_cmpu1",
	96: "ps_cmpo1",
}

var psQuantized = map[uint32]string{
	56: "psq_l",
	57: "psq_lu",
	60: "psq_st",
	61: "psq_stu",
}

func pairedSingle(inst Inst) (string, bool) {
	d, a, b, c := inst.field(21, 5), inst.field(16, 5), inst.field(11, 5), inst.field(6, 5)
	if name, ok := psQuantized[inst.OPCD()]; ok {
		off := int32(int16(uint16(inst.field(0, 12))<<4)) >> 4
		return fmt.Sprintf("%s f%d,%d(r%d),%d,%d", name, d, off, a, inst.field(15, 1), inst.field(12, 3)), true
	}
	if inst.OPCD() != 4 {
		return "", false
	}
	rc := ""
	if inst.field(0, 1) != 0 {
		rc = "."
	}
	if name, ok := psArith[inst.field(1, 5)]; ok {
		switch name {
		case "ps_mul":
			return fmt.Sprintf("%s%s f%d,f%d,f%d", name, rc, d, a, c), true
		case "ps_res", "ps_rsqrte":
			return fmt.Sprintf("%s%s f%d,f%d", name, rc, d, b), true
		case "ps_sel", "ps_msub", "ps_madd", "ps_nmsub", "ps_nmadd":
			return fmt.Sprintf("%s%s f%d,f%d,f%d,f%d", name, rc, d, a, c, b), true
		}
		return fmt.Sprintf("%s%s f%d,f%d,f%d", name, rc, d, a, b), true
	}
	xo := inst.field(1, 10)
	if name, ok := psMove[xo]; ok {
		return fmt.Sprintf("%s%s f%d,f%d", name, rc, d, b), true
	}
	if name, ok := psMerge[xo]; ok {
		return fmt.Sprintf("%s%s f%d,f%d,f%d", name, rc, d, a, b), true
	}
	if name, ok := psCompare[xo]; ok {
		return fmt.Sprintf("%s cr%d,f%d,f%d", name, d>>2, a, b), true
	}
	return "", false
}
