package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// stdoutWriter returns the writer used for terminal output and whether
// escape sequences must be avoided.
func stdoutWriter() (io.Writer, bool) {
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
	if dumb {
		return os.Stdout, true
	}
	return colorable.NewColorableStdout(), false
}
