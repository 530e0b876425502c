package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jcorbin/forthline"
	"github.com/jcorbin/forthline/internal/transcript"
)

// Styles decorates interpreter status markers.
type Styles struct {
	OK        lipgloss.Style
	Error     lipgloss.Style
	Suspended lipgloss.Style
	Muted     lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when color is false.
func NewStyles(color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{OK: plain, Error: plain, Suspended: plain, Muted: plain}
	}
	return Styles{
		OK:        lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Suspended: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// styleOutput styles the status suffix of a line's output: the "ok", or the
// error message that replaced it.
func (st Styles) styleOutput(r forthline.Result) string {
	out := r.Output
	switch {
	case r.Err != nil:
		if msg := r.Err.Error(); strings.HasSuffix(out, msg) {
			return out[:len(out)-len(msg)] + st.Error.Render(msg)
		}
	case strings.HasSuffix(out, "ok"):
		return out[:len(out)-2] + st.OK.Render("ok")
	}
	return out
}

// renderResult writes a line's output the way the REPL shows it.
func renderResult(w io.Writer, st Styles, r forthline.Result) {
	switch {
	case r.Suspended && r.Err == nil:
		fmt.Fprintln(w, r.Output+st.Suspended.Render("(suspended)"))
	case r.Compiling && r.Err == nil:
		if r.Output != "" {
			fmt.Fprintln(w, r.Output)
		}
		fmt.Fprintln(w, st.Muted.Render("compiled"))
	default:
		fmt.Fprintln(w, st.styleOutput(r))
	}
}

// stackText formats stack values bottom first, with a depth prefix like .s
func stackText(values []forthline.Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%d>", len(values))
	for _, v := range values {
		sb.WriteByte(' ')
		sb.WriteString(v.String())
	}
	return sb.String()
}

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func wordKind(w forthline.Word) string {
	switch w.(type) {
	case *forthline.NativeProcedure:
		return "native"
	case forthline.ControlCode:
		return "control"
	case *forthline.CompiledDefinition:
		return "compiled"
	}
	return "?"
}

// renderWords tabulates every dictionary name with what it resolves to.
func renderWords(w io.Writer, resolved map[string]forthline.Word) {
	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w, table.Row{"Name", "Kind", "Definition"})
	for _, name := range names {
		word := resolved[name]
		def := ""
		if cd, ok := word.(*forthline.CompiledDefinition); ok {
			def = cd.String()
		}
		if target := word.WordName(); target != name {
			def = strings.TrimSpace("is " + target + " " + def)
		}
		t.AppendRow(table.Row{name, wordKind(word), def})
	}
	t.Render()
	fmt.Fprintf(w, "(%d words)\n", len(names))
}

// renderMemory tabulates memory bindings by address.
func renderMemory(w io.Writer, bindings []forthline.Binding) {
	if len(bindings) == 0 {
		fmt.Fprintln(w, "(no bindings)")
		return
	}
	t := newTable(w, table.Row{"Address", "Name", "Size", "Kind", "Value"})
	for _, b := range bindings {
		t.AppendRow(table.Row{b.Address, b.Name, b.Size, b.Kind, b.Value})
	}
	t.Render()
}

// renderHistory tabulates transcript entries.
func renderHistory(w io.Writer, entries []transcript.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no lines)")
		return
	}
	t := newTable(w, table.Row{"#", "Line", "Output", "Stack", "Error"})
	for _, ent := range entries {
		t.AppendRow(table.Row{ent.Seq, ent.Text, ent.Output, ent.Stack, ent.Err})
	}
	t.Render()
	fmt.Fprintf(w, "(%d lines)\n", len(entries))
}

// renderSessions tabulates transcript sessions.
func renderSessions(w io.Writer, sessions []transcript.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "(no sessions)")
		return
	}
	t := newTable(w, table.Row{"Session", "Source", "Started"})
	for _, s := range sessions {
		t.AppendRow(table.Row{s.ID, s.Source, s.StartedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()
}
