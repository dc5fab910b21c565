package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// Table aligns cells by terminal display width so wide runes in
// internationalized domains do not skew columns.
type Table struct {
	Color    bool // apply row styles
	MaxWidth int  // cells wider than this are truncated, 0 disables

	w      io.Writer
	header []string
	rows   [][]string
	styles []color.Style
}

// NewTable creates a Table writing to w.
func NewTable(w io.Writer, header ...string) *Table {
	return &Table{w: w, header: header, MaxWidth: 48}
}

// Add appends an unstyled row.
func (t *Table) Add(cells ...string) {
	t.AddStyled(nil, cells...)
}

// AddStyled appends a row rendered with st when colors are on.
func (t *Table) AddStyled(st color.Style, cells ...string) {
	t.rows = append(t.rows, cells)
	t.styles = append(t.styles, st)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the header, a separator and every row.
func (t *Table) Render() error {
	rows := make([][]string, len(t.rows))
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for r, cells := range t.rows {
		out := make([]string, len(cells))
		for i, c := range cells {
			if t.MaxWidth > 0 {
				c = runewidth.Truncate(c, t.MaxWidth, "...")
			}
			out[i] = c
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c))
			}
		}
		rows[r] = out
	}

	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}

	if err := t.line(t.header, widths, nil); err != nil {
		return err
	}
	if err := t.line(sep, widths, nil); err != nil {
		return err
	}
	for i, r := range rows {
		if err := t.line(r, widths, t.styles[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) line(cells []string, widths []int, st color.Style) error {
	padded := make([]string, len(cells))
	for i, c := range cells {
		if i == len(cells)-1 || i >= len(widths) {
			padded[i] = c
		} else {
			padded[i] = runewidth.FillRight(c, widths[i])
		}
	}
	text := strings.Join(padded, "  ")
	if t.Color && len(st) > 0 {
		text = st.Sprint(text)
	}
	_, err := fmt.Fprintln(t.w, text)
	return err
}
