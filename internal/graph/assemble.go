package graph

import (
	"fmt"

	"github.com/dbsmedya/puppetmaster/internal/connection"
)

// Assemble builds the domain graph: one node per domain, isolated ones
// included, and one edge per connection weighted by its score. Every
// connection endpoint must be among domains; otherwise the result is an
// *InvariantError. Assemble has no side effects and may be called repeatedly.
func Assemble(domains []string, conns []connection.Connection) (*Graph, error) {
	g := New()
	for _, d := range domains {
		g.AddNode(d)
	}

	for _, c := range conns {
		if err := g.AddEdge(c.DomainA, c.DomainB, c.Score); err != nil {
			return nil, fmt.Errorf("failed to add connection %s - %s: %w", c.DomainA, c.DomainB, err)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
