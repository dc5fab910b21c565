package signal

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/puppetmaster/internal/config"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// RuleSpec is the declarative form of a rule as it appears in a ruleset file.
type RuleSpec struct {
	Type        Type     `yaml:"type"`
	Tier        string   `yaml:"tier"` // smoking_gun, strong or weak
	Description string   `yaml:"description"`
	Module      string   `yaml:"module"`
	DataTypes   []string `yaml:"data_types"`
	Patterns    []string `yaml:"patterns"`
	Exclude     []string `yaml:"exclude"`
	MinLength   int      `yaml:"min_length"`
}

// File is the top-level layout of a ruleset file.
type File struct {
	Noise []string   `yaml:"noise"`
	Rules []RuleSpec `yaml:"rules"`
}

// Rule is a compiled RuleSpec.
type Rule struct {
	Type        Type
	Tier        Tier
	Description string
	Module      string
	DataTypes   []string
	MinLength   int

	patterns  []*regexp.Regexp
	exclude   []*regexp.Regexp
	dataTypes map[string]struct{}
}

// Patterns returns the source of the rule's match patterns.
func (r *Rule) Patterns() []string { return sources(r.patterns) }

// Exclusions returns the source of the rule's exclusion patterns.
func (r *Rule) Exclusions() []string { return sources(r.exclude) }

func sources(res []*regexp.Regexp) []string {
	out := make([]string, len(res))
	for i, re := range res {
		out[i] = strings.TrimPrefix(re.String(), "(?i)")
	}
	return out
}

// acceptsDataType reports whether the rule applies to the upstream data type.
// Rules without data types accept everything.
func (r *Rule) acceptsDataType(dataType string) bool {
	if len(r.dataTypes) == 0 {
		return true
	}
	_, ok := r.dataTypes[strings.ToLower(strings.TrimSpace(dataType))]
	return ok
}

// acceptsModule reports whether the rule applies to records from module.
// Records without module information are accepted by every rule.
func (r *Rule) acceptsModule(module string) bool {
	if r.Module == "" || module == "" || module == cliModule {
		return true
	}
	return strings.EqualFold(r.Module, module)
}

// Older command-line exports tag every row with this placeholder module.
const cliModule = "cli_scan"

// match returns the first extracted value across the rule's patterns.
func (r *Rule) match(value string) (string, bool) {
	for _, re := range r.patterns {
		m := re.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		extracted := m[0]
		if len(m) > 1 && m[1] != "" {
			extracted = m[1]
		}
		return strings.TrimSpace(extracted), true
	}
	return "", false
}

func (r *Rule) excluded(value string) bool {
	for _, re := range r.exclude {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// Ruleset is an immutable, ordered set of compiled rules plus global noise
// patterns. It is safe for concurrent use.
type Ruleset struct {
	rules *orderedmap.OrderedMap[Type, *Rule]
	noise []*regexp.Regexp
}

// Compile validates f and compiles every pattern. Patterns are
// case-insensitive. Rule types must be unique.
func Compile(f File) (*Ruleset, error) {
	rs := &Ruleset{rules: orderedmap.NewOrderedMap[Type, *Rule]()}

	noise, err := compileAll(f.Noise)
	if err != nil {
		return nil, fmt.Errorf("noise: %w", err)
	}
	rs.noise = noise

	for i, spec := range f.Rules {
		rule, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, spec.Type, err)
		}
		if _, dup := rs.rules.Get(rule.Type); dup {
			return nil, fmt.Errorf("rule %d: duplicate type %q", i+1, rule.Type)
		}
		rs.rules.Set(rule.Type, rule)
	}

	return rs, nil
}

func compileRule(spec RuleSpec) (*Rule, error) {
	if spec.Type == "" {
		return nil, errors.New("type is required")
	}
	if len(spec.Patterns) == 0 {
		return nil, errors.New("at least one pattern is required")
	}
	if spec.MinLength < 0 {
		return nil, errors.New("min_length cannot be negative")
	}
	tier, err := ParseTier(spec.Tier)
	if err != nil {
		return nil, err
	}

	patterns, err := compileAll(spec.Patterns)
	if err != nil {
		return nil, fmt.Errorf("patterns: %w", err)
	}
	exclude, err := compileAll(spec.Exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}

	dataTypes := make(map[string]struct{}, len(spec.DataTypes))
	for _, dt := range spec.DataTypes {
		dataTypes[strings.ToLower(strings.TrimSpace(dt))] = struct{}{}
	}

	return &Rule{
		Type:        spec.Type,
		Tier:        tier,
		Description: spec.Description,
		Module:      spec.Module,
		DataTypes:   append([]string(nil), spec.DataTypes...),
		MinLength:   spec.MinLength,
		patterns:    patterns,
		exclude:     exclude,
		dataTypes:   dataTypes,
	}, nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Parse decodes and compiles a YAML ruleset. Unknown keys are rejected.
func Parse(r io.Reader) (*Ruleset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("ruleset is empty")
		}
		return nil, fmt.Errorf("failed to decode ruleset: %w", err)
	}
	return Compile(f)
}

// LoadFile reads a ruleset from path.
func LoadFile(path string) (*Ruleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ruleset: %w", err)
	}
	defer func() { _ = f.Close() }()

	rs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Default returns the built-in ruleset.
func Default() *Ruleset {
	rs, err := Parse(bytes.NewReader(defaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("signal: built-in ruleset is invalid: %v", err))
	}
	return rs
}

// Load returns the ruleset selected by configuration: the file when set,
// the built-in ruleset otherwise.
func Load(cfg config.RulesConfig) (*Ruleset, error) {
	if cfg.File == "" {
		return Default(), nil
	}
	return LoadFile(cfg.File)
}

// Rules returns the compiled rules in declaration order.
func (rs *Ruleset) Rules() []*Rule {
	out := make([]*Rule, 0, rs.rules.Len())
	for el := rs.rules.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// Rule returns the rule for type t.
func (rs *Ruleset) Rule(t Type) (*Rule, bool) {
	return rs.rules.Get(t)
}

// Len returns the number of rules.
func (rs *Ruleset) Len() int {
	return rs.rules.Len()
}

// NoisePatterns returns the source of the global noise patterns.
func (rs *Ruleset) NoisePatterns() []string {
	return sources(rs.noise)
}

// isNoise reports whether the raw value matches a global noise pattern.
func (rs *Ruleset) isNoise(value string) bool {
	for _, re := range rs.noise {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
