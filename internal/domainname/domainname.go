// Package domainname normalizes user- and file-supplied domain names.
package domainname

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
	datePattern     = regexp.MustCompile(`^\d{8}$`)
	timePattern     = regexp.MustCompile(`^\d{6}$`)
)

// Sanitize reduces s to a bare lowercase hostname. URLs are accepted: the
// scheme, path, query, fragment and port are stripped. The second return
// value is false when what remains is not a plausible multi-label domain.
func Sanitize(s string) (string, bool) {
	d := strings.ToLower(strings.TrimSpace(s))
	for _, scheme := range []string{"https://", "http://"} {
		d = strings.TrimPrefix(d, scheme)
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.Trim(d, ".")

	if d == "" || !strings.Contains(d, ".") || strings.Contains(d, "..") {
		return "", false
	}
	if len(d) > 253 || !hostnamePattern.MatchString(d) {
		return "", false
	}
	return d, true
}

// FromExportFilename recovers the scanned domain from an export file name of
// the form example_com_20240101_120000.csv. The date and time suffix is
// optional.
func FromExportFilename(path string) (string, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(base, "_")
	if n := len(parts); n > 2 && datePattern.MatchString(parts[n-2]) && timePattern.MatchString(parts[n-1]) {
		parts = parts[:n-2]
	}

	return Sanitize(strings.Join(parts, "."))
}
