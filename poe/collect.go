package poe

import (
	"time"

	"go.uber.org/zap"

	"github.com/georgepadayatti/trustval/diagnostic"
)

type collector struct {
	index           *diagnostic.Index
	now             time.Time
	memo            map[string][]POE
	seenEdges       map[[2]string]bool
	inconsistencies []Inconsistency
	log             *zap.Logger

	// Tarjan state over the covered-by graph.
	edges   map[string][]string
	order   map[string]int
	low     map[string]int
	onStack map[string]bool
	stack   []string
	next    int
}

// visit computes the proofs of id and of every token reachable from it,
// unless already known.
func (c *collector) visit(id string) []POE {
	if _, seen := c.order[id]; !seen {
		c.connect(id)
	}
	return c.memo[id]
}

// connect is one step of Tarjan's algorithm. Tokens that cover each other
// form a component and share one set of proofs: the own proofs of the
// members and the proofs of the components covering them, which are always
// complete when the component is closed.
func (c *collector) connect(id string) {
	c.order[id] = c.next
	c.low[id] = c.next
	c.next++
	c.stack = append(c.stack, id)
	c.onStack[id] = true

	for _, cover := range c.coveredBy(id) {
		if _, seen := c.order[cover]; !seen {
			c.connect(cover)
			c.low[id] = min(c.low[id], c.low[cover])
		} else if c.onStack[cover] {
			c.low[id] = min(c.low[id], c.order[cover])
		}
	}
	if c.low[id] != c.order[id] {
		return
	}

	members := make(map[string]bool)
	for {
		n := len(c.stack) - 1
		m := c.stack[n]
		c.stack = c.stack[:n]
		c.onStack[m] = false
		members[m] = true
		if m == id {
			break
		}
	}

	byProver := make(map[string]POE)
	add := func(p POE) {
		if p.Time.After(c.now) {
			return
		}
		if cur, ok := byProver[p.ProvenBy]; !ok || p.Time.Before(cur.Time) {
			byProver[p.ProvenBy] = p
		}
	}
	for m := range members {
		if t, ok := c.index.Token(m); ok {
			if own, ok := c.own(t); ok {
				add(own)
			}
		}
		for _, cover := range c.edges[m] {
			if members[cover] {
				continue
			}
			for _, p := range c.memo[cover] {
				add(p)
			}
		}
	}
	proofs := make([]POE, 0, len(byProver))
	for _, p := range byProver {
		proofs = append(proofs, p)
	}
	sortPOEs(proofs)
	for m := range members {
		c.memo[m] = proofs
	}
}

// coveredBy returns the consistent covering tokens of id. Each edge is
// checked once.
func (c *collector) coveredBy(id string) []string {
	if e, ok := c.edges[id]; ok {
		return e
	}
	var out []string
	if t, ok := c.index.Token(id); ok {
		for _, coverID := range c.index.CoveredBy(id) {
			cover, ok := c.index.Token(coverID)
			if !ok || !c.consistent(cover, t) {
				continue
			}
			out = append(out, coverID)
		}
	}
	c.edges[id] = out
	return out
}

// own returns the proof a token gives of its own existence. Only
// timestamps whose message imprint and signature verify, and evidence
// records whose references are intact, prove anything.
func (c *collector) own(t diagnostic.Token) (POE, bool) {
	switch v := t.(type) {
	case *diagnostic.Timestamp:
		if !v.CryptographicallyIntact() || v.ProductionTime.IsZero() {
			return POE{}, false
		}
		typ := TypeTimestamp
		if v.Type.IsArchival() {
			typ = TypeArchiveTimestamp
		}
		return POE{Time: v.ProductionTime, ProvenBy: v.ID, Type: typ}, true
	case *diagnostic.EvidenceRecord:
		if !v.StructurallyValid || !v.ReferencesIntact() {
			return POE{}, false
		}
		at, ok := c.index.ProductionTime(v)
		if !ok {
			return POE{}, false
		}
		return POE{Time: at, ProvenBy: v.ID, Type: TypeEvidenceRecord}, true
	}
	return POE{}, false
}

// consistent checks a covering edge. A token cannot cover itself and cannot
// cover a token produced after it.
func (c *collector) consistent(cover, covered diagnostic.Token) bool {
	if cover.TokenID() == covered.TokenID() {
		c.record(cover, covered, "token covers itself")
		return false
	}
	coverTime, ok := c.index.ProductionTime(cover)
	if !ok {
		return true
	}
	coveredTime, ok := c.index.ProductionTime(covered)
	if !ok {
		return true
	}
	if coveredTime.After(coverTime) {
		c.record(cover, covered, "covered token was produced after the covering token")
		return false
	}
	return true
}

func (c *collector) record(cover, covered diagnostic.Token, reason string) {
	key := [2]string{cover.TokenID(), covered.TokenID()}
	if c.seenEdges[key] {
		return
	}
	c.seenEdges[key] = true
	c.inconsistencies = append(c.inconsistencies, Inconsistency{
		CovererID: cover.TokenID(),
		CoveredID: covered.TokenID(),
		Reason:    reason,
	})
	c.log.Debug("ignoring inconsistent covering edge",
		zap.String("coverer", cover.TokenID()),
		zap.String("covered", covered.TokenID()),
		zap.String("reason", reason))
}
