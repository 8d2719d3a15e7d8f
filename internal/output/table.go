// Package output renders command results for the terminal.
package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	borderColor = lipgloss.Color("240")
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(1)
)

// Table is a bordered table with a bold header row
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// Row appends a row
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table
func (t *Table) String() string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(t.headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, row := range t.rows {
		tbl.Row(row...)
	}
	return tbl.String()
}
