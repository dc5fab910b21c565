package connection

import (
	"sort"

	"github.com/dbsmedya/puppetmaster/internal/config"
	"github.com/dbsmedya/puppetmaster/internal/logger"
	"github.com/dbsmedya/puppetmaster/internal/signal"
)

// Stats describes the inverted index built by Build.
type Stats struct {
	Signals            int // input signals
	Buckets            int // distinct (type, normalized value) keys
	SharedBuckets      int // buckets with two or more domains
	SkippedWeakBuckets int // weak buckets over the width limit
	Connections        int
}

// bucket holds every domain exhibiting one signal key, with the first
// signal seen for each domain.
type bucket struct {
	key     signal.Key
	tier    signal.Tier
	members map[string]signal.Signal
}

// Builder derives connections from signals through an inverted index from
// signal key to domains. It never compares domains pairwise.
type Builder struct {
	weakLimit int
	log       *logger.Logger
}

// NewBuilder creates a Builder. A zero WeakBucketLimit disables the cap.
func NewBuilder(cfg config.ConnectionsConfig, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{weakLimit: cfg.WeakBucketLimit, log: log.WithStage("connect")}
}

// Build returns one Connection per domain pair sharing at least one signal
// key, sorted by (DomainA, DomainB). Weak buckets wider than the configured
// limit are skipped and counted; other tiers are never capped.
func (b *Builder) Build(signals []signal.Signal) ([]Connection, Stats) {
	stats := Stats{Signals: len(signals)}

	index := make(map[signal.Key]*bucket)
	for _, s := range signals {
		key := s.Key()
		bk, ok := index[key]
		if !ok {
			bk = &bucket{key: key, tier: s.Tier, members: make(map[string]signal.Signal)}
			index[key] = bk
		}
		if prev, dup := bk.members[s.Domain]; !dup || signal.Compare(s, prev) < 0 {
			bk.members[s.Domain] = s
		}
	}
	stats.Buckets = len(index)

	// Visiting buckets in (tier, type, value) order leaves every pair's
	// signals already sorted.
	buckets := make([]*bucket, 0, len(index))
	for _, bk := range index {
		if len(bk.members) >= 2 {
			buckets = append(buckets, bk)
		}
	}
	sort.Slice(buckets, func(i, j int) bool {
		a, c := buckets[i], buckets[j]
		if a.tier != c.tier {
			return a.tier < c.tier
		}
		if a.key.Type != c.key.Type {
			return a.key.Type < c.key.Type
		}
		return a.key.Normalized < c.key.Normalized
	})
	stats.SharedBuckets = len(buckets)

	type pair struct{ a, b string }
	pairs := make(map[pair]*Connection)

	for _, bk := range buckets {
		if bk.tier == signal.Weak && b.weakLimit > 0 && len(bk.members) > b.weakLimit {
			stats.SkippedWeakBuckets++
			b.log.Debugw("Skipping wide weak bucket",
				"type", bk.key.Type, "value", bk.key.Normalized, "domains", len(bk.members))
			continue
		}

		domains := make([]string, 0, len(bk.members))
		for d := range bk.members {
			domains = append(domains, d)
		}
		sort.Strings(domains)

		for i := 0; i < len(domains); i++ {
			for j := i + 1; j < len(domains); j++ {
				p := pair{domains[i], domains[j]}
				conn, ok := pairs[p]
				if !ok {
					conn = &Connection{DomainA: p.a, DomainB: p.b}
					pairs[p] = conn
				}
				conn.Signals = append(conn.Signals, bk.members[p.a])
			}
		}
	}

	conns := make([]Connection, 0, len(pairs))
	for _, conn := range pairs {
		conn.Score = Score(conn.SmokingGunCount(), conn.StrongCount(), conn.WeakCount())
		conns = append(conns, *conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].DomainA != conns[j].DomainA {
			return conns[i].DomainA < conns[j].DomainA
		}
		return conns[i].DomainB < conns[j].DomainB
	})
	stats.Connections = len(conns)

	if stats.SkippedWeakBuckets > 0 {
		b.log.Infow("Weak buckets skipped", "count", stats.SkippedWeakBuckets, "limit", b.weakLimit)
	}

	return conns, stats
}
