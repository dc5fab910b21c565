package signal

import (
	"strings"
	"unicode/utf8"

	"github.com/dbsmedya/puppetmaster/internal/ingest"
)

// Classifier maps records to signals using an injected Ruleset.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules *Ruleset
}

// NewClassifier returns a Classifier bound to rs.
func NewClassifier(rs *Ruleset) *Classifier {
	return &Classifier{rules: rs}
}

// Ruleset returns the rules the classifier evaluates.
func (c *Classifier) Ruleset() *Ruleset {
	return c.rules
}

// Classify returns the signal carried by rec, if any.
//
// Rules are tried in declaration order. The first rule that accepts the
// record's module and data type and whose pattern matches decides the
// outcome: an excluded or too-short value yields no signal and no later
// rule is consulted.
func (c *Classifier) Classify(rec ingest.Record) (Signal, bool) {
	value := strings.TrimSpace(rec.Value)
	if value == "" || c.rules.isNoise(value) {
		return Signal{}, false
	}

	for el := c.rules.rules.Front(); el != nil; el = el.Next() {
		rule := el.Value
		if !rule.acceptsModule(rec.Module) || !rule.acceptsDataType(rec.DataType) {
			continue
		}

		extracted, ok := rule.match(value)
		if !ok {
			continue
		}

		if rule.excluded(extracted) || utf8.RuneCountInString(extracted) < rule.MinLength {
			return Signal{}, false
		}

		normalized := Normalize(extracted)
		if normalized == "" {
			return Signal{}, false
		}

		return Signal{
			Domain:     rec.Domain,
			Type:       rule.Type,
			Tier:       rule.Tier,
			Value:      extracted,
			Normalized: normalized,
			Module:     rec.Module,
		}, true
	}

	return Signal{}, false
}
