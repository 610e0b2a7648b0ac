package diagnostic

// EvidenceRecord is an RFC 4998 / RFC 6283 evidence record, either embedded
// in a signature (ParentID set) or detached.
type EvidenceRecord struct {
	ID                  string          `json:"id"`
	Type                string          `json:"type,omitempty"`
	ParentID            string          `json:"parentId,omitempty"`
	StructurallyValid   bool            `json:"structurallyValid"`
	StructuralErrors    []string        `json:"structuralErrors,omitempty"`
	ReferenceDataFound  bool            `json:"referenceDataFound"`
	ReferenceDataIntact bool            `json:"referenceDataIntact"`
	TimestampIDs        []string        `json:"timestamps,omitempty"`
	CoveredObjects      []CoveredObject `json:"coveredObjects,omitempty"`

	Algorithms
}

func (e *EvidenceRecord) TokenID() string { return e.ID }
func (e *EvidenceRecord) Kind() TokenKind { return KindEvidenceRecord }
func (e *EvidenceRecord) token()          {}

// Embedded reports whether the record is attached to a signature.
func (e *EvidenceRecord) Embedded() bool {
	return e.ParentID != ""
}

// ReferencesIntact reports whether every hashed reference was found and matched.
func (e *EvidenceRecord) ReferencesIntact() bool {
	return e.ReferenceDataFound && e.ReferenceDataIntact
}
