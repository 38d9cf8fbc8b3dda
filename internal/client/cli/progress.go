package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// progressBar renders a one-line transfer bar. When stdout is not a
// terminal the bar stays silent so piped output is not polluted with
// carriage returns.
type progressBar struct {
	out   io.Writer
	label string
	tty   bool
	last  int
}

func newProgressBar(out io.Writer, label string) *progressBar {
	return &progressBar{out: out, label: label, tty: isTerminal(), last: -1}
}

func (b *progressBar) update(pct int) {
	if !b.tty || pct == b.last {
		return
	}
	b.last = pct

	filled := pct * 30 / 100
	fmt.Fprintf(b.out, "\r%s [%s%s] %3d%%", b.label,
		strings.Repeat("=", filled), strings.Repeat(" ", 30-filled), pct)
	if pct >= 100 {
		fmt.Fprintln(b.out)
	}
}
