// Package format builds the tables of heal reports and history listings.
package format

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects where a table is going to be shown.
type Mode int

const (
	ASCII    Mode = iota // terminal, box-drawn
	Markdown             // report files
)

// ColumnAlign is the text alignment of one column.
type ColumnAlign int

const (
	AlignDefault ColumnAlign = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// ColumnConfig tunes a single column, addressed by its 1-based Number.
// MaxWidth wraps longer cells; zero leaves them as is.
type ColumnConfig struct {
	Number   int
	Align    ColumnAlign
	MaxWidth int
}

// TableBuilder collects a header and rows and renders them once.
type TableBuilder interface {
	// Title is shown above terminal tables only.
	Title(s string)
	Header(cols ...string)
	Row(vals ...any)
	Columns(cfgs ...ColumnConfig)
	Len() int
	String() string
}

// NewTable returns an empty table rendered in mode m.
func NewTable(m Mode) TableBuilder {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &prettyTable{w: w, mode: m}
}

type prettyTable struct {
	w    table.Writer
	mode Mode
	n    int
}

func (t *prettyTable) Title(s string) {
	if t.mode == ASCII {
		t.w.SetTitle("%s", s)
	}
}

func (t *prettyTable) Header(cols ...string) {
	hdr := make(table.Row, 0, len(cols))
	for _, c := range cols {
		hdr = append(hdr, c)
	}
	t.w.AppendHeader(hdr)
}

func (t *prettyTable) Row(vals ...any) {
	t.w.AppendRow(append(table.Row{}, vals...))
	t.n++
}

func (t *prettyTable) Columns(cfgs ...ColumnConfig) {
	out := make([]table.ColumnConfig, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, table.ColumnConfig{Number: c.Number, Align: align(c.Align), WidthMax: c.MaxWidth})
	}
	t.w.SetColumnConfigs(out)
}

func (t *prettyTable) Len() int { return t.n }

func (t *prettyTable) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

func align(a ColumnAlign) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignCenter:
		return text.AlignCenter
	case AlignRight:
		return text.AlignRight
	}
	return text.AlignDefault
}
