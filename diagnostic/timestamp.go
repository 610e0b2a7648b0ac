package diagnostic

import "time"

// TimestampType is the role a timestamp plays in its container.
type TimestampType string

const (
	TimestampContent                TimestampType = "CONTENT"
	TimestampSignature              TimestampType = "SIGNATURE"
	TimestampValidationData         TimestampType = "VALIDATION_DATA"
	TimestampValidationDataRefsOnly TimestampType = "VALIDATION_DATA_REFS_ONLY"
	TimestampArchive                TimestampType = "ARCHIVE"
	TimestampDocument               TimestampType = "DOCUMENT"
	TimestampEvidenceRecord         TimestampType = "EVIDENCE_RECORD"
)

// IsArchival reports whether the timestamp type extends the lifetime of the
// material it covers.
func (t TimestampType) IsArchival() bool {
	return t == TimestampArchive || t == TimestampDocument || t == TimestampEvidenceRecord
}

// IsContent reports whether the timestamp was taken over the signed content
// before signing.
func (t TimestampType) IsContent() bool {
	return t == TimestampContent
}

// Timestamp is an RFC 3161 time-stamp token.
type Timestamp struct {
	ID                   string          `json:"id"`
	Type                 TimestampType   `json:"type"`
	ProductionTime       time.Time       `json:"productionTime"`
	MessageImprintFound  bool            `json:"messageImprintFound"`
	MessageImprintIntact bool            `json:"messageImprintIntact"`
	SignatureIntact      bool            `json:"signatureIntact"`
	SigningCertificateID string          `json:"signingCertificateId,omitempty"`
	CertificateChainIDs  []string        `json:"certificateChain,omitempty"`
	TimestampedObjects   []CoveredObject `json:"timestampedObjects,omitempty"`
	StructuralErrors     []string        `json:"structuralErrors,omitempty"`

	Algorithms
}

func (t *Timestamp) TokenID() string { return t.ID }
func (t *Timestamp) Kind() TokenKind { return KindTimestamp }
func (t *Timestamp) token()          {}

// StructurallyValid reports whether the token was parsed without errors.
func (t *Timestamp) StructurallyValid() bool {
	return len(t.StructuralErrors) == 0
}

// CryptographicallyIntact reports whether both the message imprint and the
// signature of the token verify.
func (t *Timestamp) CryptographicallyIntact() bool {
	return t.MessageImprintFound && t.MessageImprintIntact && t.SignatureIntact
}

// Covers reports whether the timestamp covers the token with the given id.
func (t *Timestamp) Covers(id string) bool {
	for _, o := range t.TimestampedObjects {
		if o.ID == id {
			return true
		}
	}
	return false
}
