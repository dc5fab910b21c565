package ingest

import (
	"strings"
)

// Layout identifies the column layout of an export file.
type Layout int

const (
	// LayoutUnknown files are skipped.
	LayoutUnknown Layout = iota
	// LayoutMinimal is the three-column command-line export: Source, Type, Data.
	LayoutMinimal
	// LayoutExtended is the seven-column web export:
	// Scan Name, Updated, Type, Module, Source, F/P, Data.
	LayoutExtended
)

func (l Layout) String() string {
	switch l {
	case LayoutMinimal:
		return "minimal"
	case LayoutExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// Column names as they appear in export headers, lowercased.
const (
	colScanName = "scan name"
	colUpdated  = "updated"
	colType     = "type"
	colModule   = "module"
	colSource   = "source"
	colFP       = "f/p"
	colData     = "data"
)

var (
	minimalColumns  = []string{colSource, colType, colData}
	extendedColumns = []string{colScanName, colUpdated, colType, colModule, colSource, colFP, colData}
)

// columns maps lowercased header names to field positions.
type columns map[string]int

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// DetectLayout resolves the layout of a header row. Column order is free but
// the column count and the set of names must match one layout exactly.
func DetectLayout(header []string) Layout {
	layout, _ := detect(header)
	return layout
}

func detect(header []string) (Layout, columns) {
	cols := make(columns, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; dup {
			return LayoutUnknown, nil
		}
		cols[name] = i
	}

	switch {
	case len(header) == len(extendedColumns) && cols.hasAll(extendedColumns):
		return LayoutExtended, cols
	case len(header) == len(minimalColumns) && cols.hasAll(minimalColumns):
		return LayoutMinimal, cols
	default:
		return LayoutUnknown, nil
	}
}

func (c columns) hasAll(names []string) bool {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return false
		}
	}
	return true
}
