package diagnostic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationType distinguishes CRL from OCSP evidence.
type RevocationType string

const (
	RevocationCRL  RevocationType = "CRL"
	RevocationOCSP RevocationType = "OCSP"
)

// Revocation is a CRL or OCSP response.
type Revocation struct {
	ID                   string         `json:"id"`
	Type                 RevocationType `json:"type"`
	Origin               string         `json:"origin,omitempty"`
	ProductionTime       time.Time      `json:"productionTime"`
	ThisUpdate           time.Time      `json:"thisUpdate"`
	NextUpdate           *time.Time     `json:"nextUpdate,omitempty"`
	ExpiredCertsOnCRL    *time.Time     `json:"expiredCertsOnCRL,omitempty"`
	ArchiveCutOff        *time.Time     `json:"archiveCutOff,omitempty"`
	SignatureIntact      bool           `json:"signatureIntact"`
	SigningCertificateID string         `json:"signingCertificateId,omitempty"`
	CertificateChainIDs  []string       `json:"certificateChain,omitempty"`

	Algorithms
}

func (r *Revocation) TokenID() string { return r.ID }
func (r *Revocation) Kind() TokenKind { return KindRevocation }
func (r *Revocation) token()          {}

// RevocationStatus is the status a revocation token attests for a certificate.
type RevocationStatus string

const (
	StatusGood    RevocationStatus = "GOOD"
	StatusRevoked RevocationStatus = "REVOKED"
	StatusUnknown RevocationStatus = "UNKNOWN"
)

// StatusFromOCSP maps an OCSP response status code to a RevocationStatus.
func StatusFromOCSP(code int) RevocationStatus {
	switch code {
	case ocsp.Good:
		return StatusGood
	case ocsp.Revoked:
		return StatusRevoked
	default:
		return StatusUnknown
	}
}

// RevocationReason is an RFC 5280 CRLReason.
type RevocationReason string

const (
	ReasonUnspecified          RevocationReason = "unspecified"
	ReasonKeyCompromise        RevocationReason = "keyCompromise"
	ReasonCACompromise         RevocationReason = "cACompromise"
	ReasonAffiliationChanged   RevocationReason = "affiliationChanged"
	ReasonSuperseded           RevocationReason = "superseded"
	ReasonCessationOfOperation RevocationReason = "cessationOfOperation"
	ReasonCertificateHold      RevocationReason = "certificateHold"
	ReasonRemoveFromCRL        RevocationReason = "removeFromCRL"
	ReasonPrivilegeWithdrawn   RevocationReason = "privilegeWithdrawn"
	ReasonAACompromise         RevocationReason = "aACompromise"
)

var reasonCodes = map[int]RevocationReason{
	ocsp.Unspecified:          ReasonUnspecified,
	ocsp.KeyCompromise:        ReasonKeyCompromise,
	ocsp.CACompromise:         ReasonCACompromise,
	ocsp.AffiliationChanged:   ReasonAffiliationChanged,
	ocsp.Superseded:           ReasonSuperseded,
	ocsp.CessationOfOperation: ReasonCessationOfOperation,
	ocsp.CertificateHold:      ReasonCertificateHold,
	ocsp.RemoveFromCRL:        ReasonRemoveFromCRL,
	ocsp.PrivilegeWithdrawn:   ReasonPrivilegeWithdrawn,
	ocsp.AACompromise:         ReasonAACompromise,
}

// ReasonFromCode maps a numeric CRLReason code to a RevocationReason.
func ReasonFromCode(code int) (RevocationReason, error) {
	r, ok := reasonCodes[code]
	if !ok {
		return "", fmt.Errorf("unknown revocation reason code %d", code)
	}
	return r, nil
}

// UnmarshalJSON accepts either the reason name or its numeric code.
func (r *RevocationReason) UnmarshalJSON(b []byte) error {
	var code int
	if err := json.Unmarshal(b, &code); err == nil {
		reason, err := ReasonFromCode(code)
		if err != nil {
			return err
		}
		*r = reason
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("revocation reason: %w", err)
	}
	for _, known := range reasonCodes {
		if strings.EqualFold(string(known), name) {
			*r = known
			return nil
		}
	}
	return fmt.Errorf("unknown revocation reason %q", name)
}

// IsHold reports whether the revocation is a suspension.
func (r RevocationReason) IsHold() bool {
	return r == ReasonCertificateHold
}

// CertificateRevocation is the status entry a certificate carries for one
// revocation token.
type CertificateRevocation struct {
	RevocationID   string           `json:"revocationId"`
	Status         RevocationStatus `json:"status"`
	Reason         RevocationReason `json:"reason,omitempty"`
	RevocationDate *time.Time       `json:"revocationDate,omitempty"`
}

// RevokedAt reports whether the entry says the certificate was revoked at or
// before t.
func (cr CertificateRevocation) RevokedAt(t time.Time) bool {
	if cr.Status != StatusRevoked {
		return false
	}
	if cr.RevocationDate == nil {
		return true
	}
	return !cr.RevocationDate.After(t)
}
