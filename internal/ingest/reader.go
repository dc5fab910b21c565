package ingest

import (
	"encoding/csv"
	"io"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// sanitizer replaces ill-formed UTF-8 with U+FFFD and drops NUL bytes.
// Scanner exports routinely carry both inside page content.
func sanitizer() transform.Transformer {
	return transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == 0 })),
	)
}

// newCSVReader wraps r so that every byte passes through the sanitizer
// before CSV parsing. Quotes are parsed leniently and rows may have any
// number of fields; the caller checks field counts against the layout.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(transform.NewReader(r, sanitizer()))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// clean collapses whitespace runs to single spaces and trims the result.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
