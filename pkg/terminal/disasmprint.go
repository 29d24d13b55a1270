package terminal

import (
	"bufio"
	"fmt"
	"text/tabwriter"

	"github.com/gekkodbg/gekkodbg/pkg/proc"
)

// disasmPrint prints count instructions starting at start. Symbol starts
// get a header line.
func disasmPrint(t *Term, start uint32, count int) {
	bw := bufio.NewWriter(t.stdout)
	defer bw.Flush()
	tw := tabwriter.NewWriter(bw, 1, 8, 1, '\t', 0)
	defer tw.Flush()

	pc := t.dbg.GetPC()
	addr := start &^ 3
	for i := 0; i < count; i++ {
		if t.symbols != nil {
			if sym := t.symbols.GetSymbolFromAddr(addr); sym != nil && sym.Address == addr {
				fmt.Fprintf(tw, "TEXT %s(SB) size=%#x\n", sym.Name, sym.Size)
			}
		}
		atpc := ""
		if addr == pc {
			atpc = "=>"
		}
		atbp := ""
		if t.dbg.IsBreakpoint(addr) {
			atbp = "*"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\n", atpc, t.colorize(fmt.Sprintf("%#08x", addr)), atbp,
			t.dbg.GetRawMemoryString(proc.PrimaryMemory, addr), t.dbg.Disassemble(addr))
		addr += 4
	}
}
