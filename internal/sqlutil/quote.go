// Package sqlutil builds safe MySQL identifiers for the results store.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier wraps a MySQL identifier in backticks, doubling embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Table names are built from a configured prefix, so only a conservative
// character set is accepted.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// MySQL rejects identifiers longer than this.
const maxIdentifierLength = 64

// IsValidIdentifier reports whether name is non-empty, at most 64 bytes,
// and made of ASCII letters, digits and underscores.
func IsValidIdentifier(name string) bool {
	return len(name) <= maxIdentifierLength && validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe validates name and returns it quoted.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// TableName joins a table prefix and a fixed suffix and returns the quoted result.
// An empty prefix is allowed.
func TableName(prefix, suffix string) (string, error) {
	return QuoteIdentifierSafe(prefix + suffix)
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must be 1-64 alphanumeric or underscore characters)"
}
