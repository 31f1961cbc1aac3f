// Package output renders command results as text tables, markdown or JSON.
//
// Auto mode picks text on a terminal and markdown otherwise, so piped
// output stays readable by both humans and tools.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// OutputMode selects the rendering format.
type OutputMode string //nolint:revive // output.OutputMode reads fine at call sites

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode converts a config value to an OutputMode. Empty means auto and
// "table" is an alias for text.
func Mode(s string) OutputMode {
	switch strings.ToLower(s) {
	case "", "auto":
		return ModeAuto
	case "table", "text":
		return ModeText
	case "md", "markdown":
		return ModeMarkdown
	case "json":
		return ModeJSON
	default:
		return OutputMode(s)
	}
}

// Renderer writes command output in one mode.
type Renderer struct {
	out   io.Writer
	err   io.Writer
	isTTY bool
	mode  OutputMode
}

// NewRenderer returns a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
	}
	return NewRendererWithTTY(out, errOut, tty, mode)
}

// NewRendererWithTTY returns a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	return &Renderer{out: out, err: errOut, isTTY: isTTY, mode: mode}
}

// EffectiveMode resolves auto to text or markdown.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode == ModeAuto || r.mode == "" {
		if r.isTTY {
			return ModeText
		}
		return ModeMarkdown
	}
	return r.mode
}

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.err }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) { _, _ = fmt.Fprintln(r.out, a...) }

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) { _, _ = fmt.Fprintf(r.out, format, a...) }

// Header writes a markdown header in markdown mode and a bold line on a
// terminal.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println()
		return
	}
	r.Println(r.color(title, text.Bold))
}

// Success writes a success line.
func (r *Renderer) Success(msg string) { r.Println(r.color("✓ "+msg, text.FgGreen)) }

// Failure writes a failure line.
func (r *Renderer) Failure(msg string) { r.Println(r.color("✗ "+msg, text.FgRed)) }

// Warning writes a warning to the error output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.err, r.color("warning: "+msg, text.FgYellow))
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(msg string) { r.Println(r.color(msg, text.Faint)) }

func (r *Renderer) color(s string, c ...text.Color) string {
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return s
	}
	return text.Colors(c).Sprint(s)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	r.Println(string(data))
	return nil
}

// Table writes rows under headers: a light box table in text mode and a
// pipe table otherwise.
func (r *Renderer) Table(headers []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	head := make(table.Row, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	t.AppendHeader(head)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}
	if r.EffectiveMode() == ModeText {
		t.SetStyle(table.StyleLight)
		t.Render()
		return
	}
	t.RenderMarkdown()
}

// FormatHeader renders a markdown header.
func FormatHeader(level int, title string) string {
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue renders a markdown list item with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s:** %s", key, value)
}
