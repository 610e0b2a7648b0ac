// Package diagnostic holds the normalised, already-parsed facts about signatures,
// timestamps, evidence records, certificates and revocation data that the
// validation engine judges.
//
// A DiagnosticData value is an immutable snapshot: it is produced by an external
// parser layer, indexed once with NewIndex and only read afterwards.
package diagnostic

import (
	"fmt"
	"time"
)

// TokenKind identifies the variant of a Token.
type TokenKind int

const (
	KindCertificate TokenKind = iota
	KindRevocation
	KindTimestamp
	KindSignature
	KindEvidenceRecord
	KindSignerData
)

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case KindCertificate:
		return "certificate"
	case KindRevocation:
		return "revocation"
	case KindTimestamp:
		return "timestamp"
	case KindSignature:
		return "signature"
	case KindEvidenceRecord:
		return "evidence_record"
	case KindSignerData:
		return "signer_data"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Token is one node of the diagnostic graph. The set of implementations is
// closed: *Certificate, *Revocation, *Timestamp, *Signature, *EvidenceRecord
// and *SignerData.
type Token interface {
	TokenID() string
	Kind() TokenKind
	token()
}

// CoveredObjectType is the type of a covering edge.
type CoveredObjectType string

const (
	CoveredSignature      CoveredObjectType = "SIGNATURE"
	CoveredSignedData     CoveredObjectType = "SIGNED_DATA"
	CoveredCertificate    CoveredObjectType = "CERTIFICATE"
	CoveredRevocation     CoveredObjectType = "REVOCATION"
	CoveredTimestamp      CoveredObjectType = "TIMESTAMP"
	CoveredEvidenceRecord CoveredObjectType = "EVIDENCE_RECORD"
)

// Kind returns the token kind an edge of this type must point to.
func (t CoveredObjectType) Kind() (TokenKind, bool) {
	switch t {
	case CoveredSignature:
		return KindSignature, true
	case CoveredSignedData:
		return KindSignerData, true
	case CoveredCertificate:
		return KindCertificate, true
	case CoveredRevocation:
		return KindRevocation, true
	case CoveredTimestamp:
		return KindTimestamp, true
	case CoveredEvidenceRecord:
		return KindEvidenceRecord, true
	default:
		return 0, false
	}
}

// CoveredObject is a typed edge from a covering token to the token it covers.
type CoveredObject struct {
	Type CoveredObjectType `json:"type"`
	ID   string            `json:"id"`
}

// Algorithms describes the cryptographic algorithms a token was signed with.
type Algorithms struct {
	DigestAlgorithm     string `json:"digestAlgorithm,omitempty"`
	EncryptionAlgorithm string `json:"encryptionAlgorithm,omitempty"`
	KeyLength           int    `json:"keyLength,omitempty"`
}

// Name returns the combined algorithm name, e.g. "RSA-SHA256".
func (a Algorithms) Name() string {
	switch {
	case a.EncryptionAlgorithm == "":
		return a.DigestAlgorithm
	case a.DigestAlgorithm == "":
		return a.EncryptionAlgorithm
	default:
		return a.EncryptionAlgorithm + "-" + a.DigestAlgorithm
	}
}

// productionTime returns the time a token was produced, when the token carries one.
func productionTime(t Token) (time.Time, bool) {
	switch v := t.(type) {
	case *Certificate:
		return v.NotBefore, !v.NotBefore.IsZero()
	case *Revocation:
		return v.ProductionTime, !v.ProductionTime.IsZero()
	case *Timestamp:
		return v.ProductionTime, !v.ProductionTime.IsZero()
	default:
		return time.Time{}, false
	}
}
