// Package poe computes proofs of existence for every token of a diagnostic
// snapshot by propagating the production times of timestamps and evidence
// records along covering edges.
package poe

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/georgepadayatti/trustval/diagnostic"
)

// Type represents the source of a proof of existence.
type Type int

const (
	// TypeValidationTime is the fallback: the token exists now.
	TypeValidationTime Type = iota
	// TypeTimestamp is proven by a content, signature or validation data timestamp.
	TypeTimestamp
	// TypeArchiveTimestamp is proven by an archival timestamp.
	TypeArchiveTimestamp
	// TypeEvidenceRecord is proven by an evidence record.
	TypeEvidenceRecord
)

// String returns the string representation of the POE type.
func (t Type) String() string {
	switch t {
	case TypeValidationTime:
		return "VALIDATION_TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeArchiveTimestamp:
		return "ARCHIVE_TIMESTAMP"
	case TypeEvidenceRecord:
		return "EVIDENCE_RECORD"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// POE is a proof that a token existed at a given time.
type POE struct {
	TokenID string    `json:"tokenId" xml:"TokenID,attr"`
	Time    time.Time `json:"time" xml:"Time"`
	// ProvenBy is the id of the timestamp or evidence record giving the
	// proof; it is empty for the validation time fallback.
	ProvenBy string `json:"provenBy,omitempty" xml:"ProvenBy,attr,omitempty"`
	Type     Type   `json:"type" xml:"Type,attr"`
}

// IsFallback reports whether the POE is only the validation time.
func (p POE) IsFallback() bool {
	return p.ProvenBy == ""
}

// Inconsistency is a covering edge that was ignored because it cannot be
// honest.
type Inconsistency struct {
	CovererID string `json:"covererId"`
	CoveredID string `json:"coveredId"`
	Reason    string `json:"reason"`
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s -> %s: %s", i.CovererID, i.CoveredID, i.Reason)
}

// Map holds the proofs of existence of every token. It is read-only after
// Collect returns and safe for concurrent readers.
type Map struct {
	validationTime  time.Time
	candidates      map[string][]POE
	inconsistencies []Inconsistency
}

// Option configures Collect.
type Option func(*collector)

// WithLogger logs ignored covering edges at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *collector) {
		if l != nil {
			c.log = l
		}
	}
}

// Collect computes the proofs of existence of every indexed token.
func Collect(x *diagnostic.Index, validationTime time.Time, opts ...Option) *Map {
	c := &collector{
		index:     x,
		now:       validationTime,
		memo:      make(map[string][]POE),
		seenEdges: make(map[[2]string]bool),
		log:       zap.NewNop(),
		edges:     make(map[string][]string),
		order:     make(map[string]int),
		low:       make(map[string]int),
		onStack:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	m := &Map{
		validationTime: validationTime,
		candidates:     make(map[string][]POE, x.Len()),
	}
	for _, t := range x.Tokens() {
		id := t.TokenID()
		proofs := c.visit(id)
		list := make([]POE, 0, len(proofs)+1)
		for _, p := range proofs {
			p.TokenID = id
			list = append(list, p)
		}
		list = append(list, POE{TokenID: id, Time: validationTime, Type: TypeValidationTime})
		sortPOEs(list)
		m.candidates[id] = list
	}
	m.inconsistencies = c.inconsistencies
	return m
}

// ValidationTime returns the time every POE is bounded by.
func (m *Map) ValidationTime() time.Time {
	return m.validationTime
}

// Lowest returns the earliest proof of existence of a token. Unknown tokens
// only exist at the validation time.
func (m *Map) Lowest(id string) POE {
	if list := m.candidates[id]; len(list) > 0 {
		return list[0]
	}
	return POE{TokenID: id, Time: m.validationTime, Type: TypeValidationTime}
}

// Candidates returns every proof of existence of a token, sorted by time and
// then by the proving token id. The validation time fallback is included.
func (m *Map) Candidates(id string) []POE {
	list := m.candidates[id]
	if len(list) == 0 {
		return []POE{{TokenID: id, Time: m.validationTime, Type: TypeValidationTime}}
	}
	out := make([]POE, len(list))
	copy(out, list)
	return out
}

// LowestProvenBy returns the earliest proof given by a token accepted by
// accept. The validation time fallback is always accepted.
func (m *Map) LowestProvenBy(id string, accept func(provenBy string) bool) POE {
	for _, p := range m.candidates[id] {
		if p.IsFallback() || accept == nil || accept(p.ProvenBy) {
			return p
		}
	}
	return POE{TokenID: id, Time: m.validationTime, Type: TypeValidationTime}
}

// Inconsistencies returns the covering edges ignored during collection.
func (m *Map) Inconsistencies() []Inconsistency {
	return m.inconsistencies
}

func sortPOEs(list []POE) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Time.Equal(list[j].Time) {
			return list[i].Time.Before(list[j].Time)
		}
		if list[i].IsFallback() != list[j].IsFallback() {
			return !list[i].IsFallback()
		}
		return list[i].ProvenBy < list[j].ProvenBy
	})
}
