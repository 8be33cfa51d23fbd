// Package output renders command results for terminals, scripts and tools.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// OutputMode selects how results are written.
type OutputMode string

// Output modes. ModeAuto resolves to ModeText on a terminal and ModeSQL
// otherwise, so `leapschema plan > migrate.sql` produces a runnable script.
const (
	ModeAuto OutputMode = "auto"
	ModeText OutputMode = "text"
	ModeSQL  OutputMode = "sql"
	ModeJSON OutputMode = "json"
)

// Modes lists the accepted values of the --output flag.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeSQL), string(ModeJSON)}

// Mode converts a configuration string to an OutputMode. Unknown or empty
// values become ModeAuto.
func Mode(s string) OutputMode {
	switch m := OutputMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeText, ModeSQL, ModeJSON:
		return m
	}
	return ModeAuto
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	isTTY  bool
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY}
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeSQL
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the primary output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Printf writes formatted output.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Println writes a line of output.
func (r *Renderer) Println(args ...any) {
	_, _ = fmt.Fprintln(r.out, args...)
}

// Header writes a section header. Level 1 is underlined.
func (r *Renderer) Header(level int, text string) {
	if level <= 1 {
		r.Println(text)
		r.Println(strings.Repeat("=", len(text)))
		return
	}
	r.Println(text)
}

// Success writes a confirmation line.
func (r *Renderer) Success(msg string) {
	r.Println("✓ " + msg)
}

// Warning writes to the error stream so piped output stays clean.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, "warning: "+msg)
}

// Muted writes secondary information to the error stream.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.errOut, msg)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table renders rows with a header using a light box style.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}
	t.Render()
}
