package diagnostic

import (
	"fmt"
	"sort"
	"time"
)

// Index is the arena view over a DiagnosticData snapshot. Tokens are stored
// once in a flat slice and every relation is expressed through ids resolved
// against the arena, so back references never form owning cycles.
//
// An Index is read-only after NewIndex returns and may be shared by
// concurrent readers.
type Index struct {
	data      *DiagnosticData
	tokens    []Token
	pos       map[string]int
	coveredBy map[string][]string
	attached  map[string][]string
	counters  map[string][]string
	records   map[string][]string
	problems  []error
}

// NewIndex builds the index. Duplicate ids keep their first occurrence.
func NewIndex(d *DiagnosticData) *Index {
	x := &Index{
		data:      d,
		pos:       make(map[string]int),
		coveredBy: make(map[string][]string),
		attached:  make(map[string][]string),
		counters:  make(map[string][]string),
		records:   make(map[string][]string),
	}
	if d == nil {
		x.data = &DiagnosticData{}
		return x
	}
	for _, s := range d.Signatures {
		x.add(s)
	}
	for _, t := range d.Timestamps {
		x.add(t)
	}
	for _, e := range d.EvidenceRecords {
		x.add(e)
	}
	for _, c := range d.Certificates {
		x.add(c)
	}
	for _, r := range d.Revocations {
		x.add(r)
	}
	for _, s := range d.SignerData {
		x.add(s)
	}
	x.link()
	return x
}

func (x *Index) add(t Token) {
	if t == nil || isNilToken(t) {
		x.problems = append(x.problems, fmt.Errorf("%w: nil token", ErrStructure))
		return
	}
	id := t.TokenID()
	if id == "" {
		x.problems = append(x.problems, fmt.Errorf("%w: %s without id", ErrStructure, t.Kind()))
		return
	}
	if _, dup := x.pos[id]; dup {
		x.problems = append(x.problems, fmt.Errorf("%w: duplicate id %q", ErrStructure, id))
		return
	}
	x.pos[id] = len(x.tokens)
	x.tokens = append(x.tokens, t)
}

func isNilToken(t Token) bool {
	switch v := t.(type) {
	case *Certificate:
		return v == nil
	case *Revocation:
		return v == nil
	case *Timestamp:
		return v == nil
	case *Signature:
		return v == nil
	case *EvidenceRecord:
		return v == nil
	case *SignerData:
		return v == nil
	}
	return false
}

func (x *Index) link() {
	for _, t := range x.tokens {
		id := t.TokenID()
		for _, o := range x.Covers(t) {
			if !x.checkEdge(id, o) {
				continue
			}
			x.coveredBy[o.ID] = appendUnique(x.coveredBy[o.ID], id)
		}
		switch v := t.(type) {
		case *Signature:
			x.checkRef(id, "signing certificate", v.SigningCertificateID, KindCertificate)
			x.checkChain(id, v.CertificateChainIDs)
			if v.ParentID != "" && x.checkRef(id, "parent signature", v.ParentID, KindSignature) {
				x.counters[v.ParentID] = append(x.counters[v.ParentID], id)
			}
		case *Timestamp:
			x.checkRef(id, "signing certificate", v.SigningCertificateID, KindCertificate)
			x.checkChain(id, v.CertificateChainIDs)
		case *Revocation:
			x.checkRef(id, "signing certificate", v.SigningCertificateID, KindCertificate)
			x.checkChain(id, v.CertificateChainIDs)
		case *Certificate:
			x.checkRef(id, "issuer certificate", v.IssuerCertificateID, KindCertificate)
			for _, r := range v.Revocations {
				x.checkRef(id, "revocation", r.RevocationID, KindRevocation)
			}
		case *EvidenceRecord:
			for _, ts := range v.TimestampIDs {
				x.checkRef(id, "archive timestamp", ts, KindTimestamp)
			}
			if v.ParentID != "" && x.checkRef(id, "parent signature", v.ParentID, KindSignature) {
				x.records[v.ParentID] = append(x.records[v.ParentID], id)
			}
		}
	}
	for _, s := range x.data.Signatures {
		if s == nil {
			continue
		}
		x.attached[s.ID] = x.attachedTimestamps(s)
	}
}

func (x *Index) checkEdge(from string, o CoveredObject) bool {
	want, ok := o.Type.Kind()
	if !ok {
		x.problems = append(x.problems, fmt.Errorf("%w: %s covers %q with unknown type %q", ErrStructure, from, o.ID, o.Type))
		return false
	}
	return x.checkRef(from, "covered "+string(o.Type), o.ID, want)
}

func (x *Index) checkRef(from, what, id string, want TokenKind) bool {
	if id == "" {
		return false
	}
	t, ok := x.Token(id)
	if !ok {
		x.problems = append(x.problems, fmt.Errorf("%w: %s references unknown %s %q", ErrStructure, from, what, id))
		return false
	}
	if t.Kind() != want {
		x.problems = append(x.problems, fmt.Errorf("%w: %s references %s %q which is a %s", ErrStructure, from, what, id, t.Kind()))
		return false
	}
	return true
}

func (x *Index) checkChain(from string, ids []string) {
	for _, id := range ids {
		x.checkRef(from, "chain certificate", id, KindCertificate)
	}
}

// attachedTimestamps returns the timestamps covering the signature itself and
// the content timestamps over its signed data, in input order.
func (x *Index) attachedTimestamps(s *Signature) []string {
	docs := make(map[string]bool, len(s.SignerDocumentIDs))
	for _, o := range s.CoveredObjects() {
		if o.Type == CoveredSignedData {
			docs[o.ID] = true
		}
	}
	var out []string
	for _, t := range x.data.Timestamps {
		if t == nil {
			continue
		}
		if _, ok := x.pos[t.ID]; !ok {
			continue
		}
		for _, o := range t.TimestampedObjects {
			if o.ID == s.ID || (t.Type.IsContent() && docs[o.ID]) {
				out = appendUnique(out, t.ID)
				break
			}
		}
	}
	return out
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// Data returns the indexed snapshot.
func (x *Index) Data() *DiagnosticData { return x.data }

// Problems returns the structural problems found while indexing.
func (x *Index) Problems() []error { return x.problems }

// Len returns the number of tokens in the arena.
func (x *Index) Len() int { return len(x.tokens) }

// Tokens returns the arena in index order.
func (x *Index) Tokens() []Token { return x.tokens }

// Position returns the arena position of the token, or -1.
func (x *Index) Position(id string) int {
	if p, ok := x.pos[id]; ok {
		return p
	}
	return -1
}

// Token looks a token up by id.
func (x *Index) Token(id string) (Token, bool) {
	p, ok := x.pos[id]
	if !ok {
		return nil, false
	}
	return x.tokens[p], true
}

func (x *Index) Certificate(id string) (*Certificate, bool) {
	t, _ := x.Token(id)
	c, ok := t.(*Certificate)
	return c, ok
}

func (x *Index) Revocation(id string) (*Revocation, bool) {
	t, _ := x.Token(id)
	r, ok := t.(*Revocation)
	return r, ok
}

func (x *Index) Timestamp(id string) (*Timestamp, bool) {
	t, _ := x.Token(id)
	ts, ok := t.(*Timestamp)
	return ts, ok
}

func (x *Index) Signature(id string) (*Signature, bool) {
	t, _ := x.Token(id)
	s, ok := t.(*Signature)
	return s, ok
}

func (x *Index) EvidenceRecord(id string) (*EvidenceRecord, bool) {
	t, _ := x.Token(id)
	e, ok := t.(*EvidenceRecord)
	return e, ok
}

// Covers returns the typed covering edges leaving a token.
func (x *Index) Covers(t Token) []CoveredObject {
	switch v := t.(type) {
	case *Timestamp:
		return v.TimestampedObjects
	case *EvidenceRecord:
		return v.CoveredObjects
	case *Signature:
		return v.CoveredObjects()
	default:
		return nil
	}
}

// CoveredBy returns the ids of the tokens that cover id, in arena order.
func (x *Index) CoveredBy(id string) []string {
	return x.coveredBy[id]
}

// TimestampsFor returns the timestamps attached to a signature.
func (x *Index) TimestampsFor(signatureID string) []*Timestamp {
	ids := x.attached[signatureID]
	out := make([]*Timestamp, 0, len(ids))
	for _, id := range ids {
		if ts, ok := x.Timestamp(id); ok {
			out = append(out, ts)
		}
	}
	return out
}

// CounterSignatures returns the direct counter-signatures of a signature.
func (x *Index) CounterSignatures(signatureID string) []*Signature {
	var out []*Signature
	for _, id := range x.counters[signatureID] {
		if s, ok := x.Signature(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// EvidenceRecordsFor returns the evidence records embedded in or covering a
// signature.
func (x *Index) EvidenceRecordsFor(signatureID string) []*EvidenceRecord {
	var ids []string
	ids = append(ids, x.records[signatureID]...)
	for _, id := range x.coveredBy[signatureID] {
		if t, ok := x.Token(id); ok && t.Kind() == KindEvidenceRecord {
			ids = appendUnique(ids, id)
		}
	}
	out := make([]*EvidenceRecord, 0, len(ids))
	for _, id := range ids {
		if e, ok := x.EvidenceRecord(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// SigningCertificate resolves the certificate that signed a token.
func (x *Index) SigningCertificate(t Token) (*Certificate, bool) {
	var id string
	switch v := t.(type) {
	case *Signature:
		id = v.SigningCertificateID
	case *Timestamp:
		id = v.SigningCertificateID
	case *Revocation:
		id = v.SigningCertificateID
	case *Certificate:
		id = v.IssuerCertificateID
	}
	if id == "" {
		return nil, false
	}
	return x.Certificate(id)
}

// Chain returns the certificate chain of a token starting at its signing
// certificate. The declared chain is used when present; otherwise issuer
// links are followed until a self-signed certificate, a missing issuer or a
// repeated certificate ends the walk.
func (x *Index) Chain(t Token) []*Certificate {
	var declared []string
	switch v := t.(type) {
	case *Signature:
		declared = v.CertificateChainIDs
	case *Timestamp:
		declared = v.CertificateChainIDs
	case *Revocation:
		declared = v.CertificateChainIDs
	}
	if len(declared) > 0 {
		out := make([]*Certificate, 0, len(declared))
		for _, id := range declared {
			if c, ok := x.Certificate(id); ok {
				out = append(out, c)
			}
		}
		return out
	}
	var first *Certificate
	if c, ok := t.(*Certificate); ok {
		first = c
	} else if c, ok := x.SigningCertificate(t); ok {
		first = c
	}
	return x.IssuerChain(first)
}

// IssuerChain follows issuer links from c.
func (x *Index) IssuerChain(c *Certificate) []*Certificate {
	var out []*Certificate
	seen := make(map[string]bool)
	for c != nil && !seen[c.ID] {
		seen[c.ID] = true
		out = append(out, c)
		if c.SelfSigned || c.IssuerCertificateID == "" {
			break
		}
		next, ok := x.Certificate(c.IssuerCertificateID)
		if !ok {
			break
		}
		c = next
	}
	return out
}

// ProductionTime returns the time a token was produced. An evidence record is
// dated by its first archive timestamp.
func (x *Index) ProductionTime(t Token) (time.Time, bool) {
	if e, ok := t.(*EvidenceRecord); ok {
		for _, id := range e.TimestampIDs {
			if ts, ok := x.Timestamp(id); ok {
				return ts.ProductionTime, !ts.ProductionTime.IsZero()
			}
		}
		return time.Time{}, false
	}
	return productionTime(t)
}

// ArchiveTimestamps returns the archival timestamps of the snapshot sorted by
// production time.
func (x *Index) ArchiveTimestamps() []*Timestamp {
	var out []*Timestamp
	for _, t := range x.tokens {
		if ts, ok := t.(*Timestamp); ok && ts.Type.IsArchival() {
			out = append(out, ts)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProductionTime.Before(out[j].ProductionTime)
	})
	return out
}
