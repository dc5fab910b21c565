// Package connection turns shared signals into scored domain pairs.
package connection

import (
	"fmt"

	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Per-tier weights of the base score.
const (
	SmokingGunWeight = 10
	StrongWeight     = 3
	WeakWeight       = 1
)

// DominanceFloor separates connections with smoking-gun evidence, which
// score above it, from all others, which score strictly below it.
const DominanceFloor = 100.0

// Confidence is the categorical strength of a connection or cluster.
// Lower values are stronger.
type Confidence int

const (
	Confirmed Confidence = iota // at least one smoking gun
	Likely                      // two or more strong signals
	Possible                    // exactly one strong signal
	Weak                        // weak signals only
)

// Confidences lists every confidence from strongest to weakest.
var Confidences = []Confidence{Confirmed, Likely, Possible, Weak}

func (c Confidence) String() string {
	switch c {
	case Confirmed:
		return "CONFIRMED"
	case Likely:
		return "LIKELY"
	case Possible:
		return "POSSIBLE"
	case Weak:
		return "WEAK"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// ConfidenceFor grades evidence by its smoking-gun and strong counts.
func ConfidenceFor(smokingGuns, strong int) Confidence {
	switch {
	case smokingGuns > 0:
		return Confirmed
	case strong >= 2:
		return Likely
	case strong == 1:
		return Possible
	default:
		return Weak
	}
}

// Score combines tier counts into a connection score. It is monotone in
// every count, and any positive smoking-gun count scores above
// DominanceFloor while a zero count stays below it.
func Score(smokingGuns, strong, weak int) float64 {
	base := float64(SmokingGunWeight*smokingGuns + StrongWeight*strong + WeakWeight*weak)
	if smokingGuns > 0 {
		return DominanceFloor + base
	}
	return DominanceFloor * base / (base + DominanceFloor)
}

// Connection is the undirected relation between two distinct domains.
// DomainA sorts before DomainB. Signals holds one signal per shared value,
// as observed on DomainA, ordered by tier, type and normalized value.
type Connection struct {
	DomainA string
	DomainB string
	Signals []signal.Signal
	Score   float64
}

// Other returns the endpoint opposite domain.
func (c Connection) Other(domain string) string {
	if domain == c.DomainA {
		return c.DomainB
	}
	return c.DomainA
}

// SmokingGunCount returns the number of smoking-gun signals.
func (c Connection) SmokingGunCount() int { return c.count(signal.SmokingGun) }

// StrongCount returns the number of strong signals.
func (c Connection) StrongCount() int { return c.count(signal.Strong) }

// WeakCount returns the number of weak signals.
func (c Connection) WeakCount() int { return c.count(signal.Weak) }

func (c Connection) count(tier signal.Tier) int {
	n := 0
	for _, s := range c.Signals {
		if s.Tier == tier {
			n++
		}
	}
	return n
}

// Confidence grades the connection's evidence.
func (c Connection) Confidence() Confidence {
	return ConfidenceFor(c.SmokingGunCount(), c.StrongCount())
}
