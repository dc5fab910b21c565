// Package blacklist drops well-known platform domains before classification.
package blacklist

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/domainname"
)

//go:embed platforms.txt
var builtinPlatforms string

// Blacklist is an immutable set of blocked domains. A domain is blocked when
// it, or any parent domain of it, is listed.
type Blacklist struct {
	domains map[string]struct{}
}

// New builds a Blacklist from the given domains. Invalid names are ignored.
func New(domains ...string) *Blacklist {
	b := &Blacklist{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		if clean, ok := domainname.Sanitize(d); ok {
			b.domains[clean] = struct{}{}
		}
	}
	return b
}

// Builtin returns the built-in platform blacklist.
func Builtin() *Blacklist {
	domains, err := Parse(strings.NewReader(builtinPlatforms))
	if err != nil {
		panic(fmt.Sprintf("blacklist: embedded platform list is invalid: %v", err))
	}
	return New(domains...)
}

// Load builds the effective blacklist from configuration: the built-in list
// when enabled, the user file when set, and any extra configured domains.
func Load(cfg config.BlacklistConfig) (*Blacklist, error) {
	var domains []string

	if cfg.Builtin {
		domains = append(domains, Builtin().Sorted()...)
	}

	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open blacklist file: %w", err)
		}
		defer func() { _ = f.Close() }()

		fromFile, err := Parse(f)
		if err != nil {
			return nil, fmt.Errorf("blacklist file %s: %w", cfg.File, err)
		}
		domains = append(domains, fromFile...)
	}

	for _, d := range cfg.Domains {
		if _, ok := domainname.Sanitize(d); !ok {
			return nil, fmt.Errorf("invalid blacklist domain %q", d)
		}
		domains = append(domains, d)
	}

	return New(domains...), nil
}

// Parse reads one domain per line. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, ok := domainname.Sanitize(line)
		if !ok {
			return nil, fmt.Errorf("line %d: invalid domain %q", lineNo, line)
		}
		domains = append(domains, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blacklist: %w", err)
	}
	return domains, nil
}

// Contains reports whether domain or one of its parent domains is listed.
func (b *Blacklist) Contains(domain string) bool {
	if b == nil || len(b.domains) == 0 {
		return false
	}
	d := strings.ToLower(strings.TrimSpace(domain))
	for d != "" {
		if _, ok := b.domains[d]; ok {
			return true
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return false
}

// Filter splits domains into clean and blocked, each sorted and de-duplicated.
func (b *Blacklist) Filter(domains []string) (clean, blocked []string) {
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if b.Contains(d) {
			blocked = append(blocked, d)
		} else {
			clean = append(clean, d)
		}
	}
	sort.Strings(clean)
	sort.Strings(blocked)
	return clean, blocked
}

// Len returns the number of listed domains.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.domains)
}

// Sorted returns the listed domains in lexical order.
func (b *Blacklist) Sorted() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.domains))
	for d := range b.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
