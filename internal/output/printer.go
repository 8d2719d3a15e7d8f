package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/withobsrvr/stackctl/internal/capability"
)

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	nounColor    = color.New(color.FgCyan)
)

// Printer writes status lines. Results go to out, warnings and failures to
// errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// NewPrinter creates a Printer
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// Success prints a line prefixed with a green check mark
func (p *Printer) Success(format string, args ...any) {
	successColor.Fprint(p.out, "✓ ")
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Failure prints a line prefixed with a red cross
func (p *Printer) Failure(format string, args ...any) {
	failureColor.Fprint(p.errOut, "✗ ")
	fmt.Fprintf(p.errOut, format+"\n", args...)
}

// Warnings prints capability warnings
func (p *Printer) Warnings(warnings []capability.Warning) {
	for _, w := range warnings {
		warningColor.Fprint(p.errOut, "warning: ")
		fmt.Fprintln(p.errOut, w.String())
	}
}

// Noun highlights a name inside a line
func Noun(s string) string {
	return nounColor.Sprint(s)
}

// Println prints a plain line to out
func (p *Printer) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}
