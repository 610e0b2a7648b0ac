package qualified

import (
	"time"

	"github.com/georgepadayatti/trustval/ades"
)

// KeyManagement describes where the private key of a certificate resides.
type KeyManagement int

const (
	// KeyMgmtUnknown means the key management is unknown or unspecified.
	KeyMgmtUnknown KeyManagement = iota

	// KeyMgmtQSCD means the key resides in a qualified signature creation
	// device (QSCD).
	KeyMgmtQSCD

	// KeyMgmtQSCDDelegated means the key resides in a QSCD managed on behalf
	// of the subject by another party.
	KeyMgmtQSCDDelegated

	// KeyMgmtQSCDByPolicy means QSCD was declared by a pre-eIDAS certificate policy.
	KeyMgmtQSCDByPolicy
)

// String returns the string representation of the key management type.
func (k KeyManagement) String() string {
	switch k {
	case KeyMgmtQSCD:
		return "QSCD"
	case KeyMgmtQSCDDelegated:
		return "QSCD_DELEGATED"
	case KeyMgmtQSCDByPolicy:
		return "QSCD_BY_POLICY"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k KeyManagement) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsQSCD reports whether the key is protected by a QSCD.
func (k KeyManagement) IsQSCD() bool {
	return k != KeyMgmtUnknown
}

// CertificateQualification is the qualified status of a certificate at a
// given time.
type CertificateQualification struct {
	CertificateID string        `json:"certificateId" xml:"CertificateID,attr"`
	Time          time.Time     `json:"time" xml:"Time"`
	Qualified     bool          `json:"qualified" xml:"Qualified"`
	Type          QcCertType    `json:"type,omitempty" xml:"Type,omitempty"`
	KeyManagement KeyManagement `json:"keyManagement" xml:"KeyManagement"`
	// ServiceID and Country identify the trust service the status comes from.
	ServiceID string `json:"serviceId,omitempty" xml:"ServiceID,omitempty"`
	Country   string `json:"country,omitempty" xml:"Country,omitempty"`
}

func (q *CertificateQualification) qscd() bool {
	return q != nil && q.Qualified && q.KeyManagement.IsQSCD()
}

// SignatureQualification is the qualification label of a signature.
type SignatureQualification string

const (
	QESig                  SignatureQualification = "QESig"
	QESeal                 SignatureQualification = "QESeal"
	QES                    SignatureQualification = "QES"
	AdESigQC               SignatureQualification = "AdESig-QC"
	AdESealQC              SignatureQualification = "AdESeal-QC"
	AdESQC                 SignatureQualification = "AdES-QC"
	AdESig                 SignatureQualification = "AdESig"
	AdESeal                SignatureQualification = "AdESeal"
	AdES                   SignatureQualification = "AdES"
	IndeterminateQESig     SignatureQualification = "Indeterminate-QESig"
	IndeterminateQESeal    SignatureQualification = "Indeterminate-QESeal"
	IndeterminateQES       SignatureQualification = "Indeterminate-QES"
	IndeterminateAdESigQC  SignatureQualification = "Indeterminate-AdESig-QC"
	IndeterminateAdESealQC SignatureQualification = "Indeterminate-AdESeal-QC"
	IndeterminateAdESQC    SignatureQualification = "Indeterminate-AdES-QC"
	IndeterminateAdESig    SignatureQualification = "Indeterminate-AdESig"
	IndeterminateAdESeal   SignatureQualification = "Indeterminate-AdESeal"
	IndeterminateAdES      SignatureQualification = "Indeterminate-AdES"
	NotAdESQCQSCD          SignatureQualification = "Not-AdES-QC-QSCD"
	NotAdESQC              SignatureQualification = "Not-AdES-QC"
	NotAdES                SignatureQualification = "Not-AdES"
	NotApplicable          SignatureQualification = "N/A"
)

// IsQualified reports whether the label is a qualified electronic signature or seal.
func (q SignatureQualification) IsQualified() bool {
	return q == QESig || q == QESeal || q == QES
}

// TimestampQualification is the qualification label of a timestamp.
type TimestampQualification string

const (
	QTSA            TimestampQualification = "QTSA"
	TSA             TimestampQualification = "TSA"
	TimestampNotApp TimestampQualification = "N/A"
)

// SignatureResult is the qualification of one signature.
type SignatureResult struct {
	Qualification SignatureQualification    `json:"qualification" xml:"Qualification"`
	AtIssuance    *CertificateQualification `json:"atIssuance,omitempty" xml:"AtIssuance,omitempty"`
	AtSigningTime *CertificateQualification `json:"atSigningTime,omitempty" xml:"AtSigningTime,omitempty"`
	// Conclusion carries the trusted list messages.
	Conclusion *ades.Conclusion `json:"conclusion" xml:"Conclusion"`
}

// TimestampResult is the qualification of one timestamp.
type TimestampResult struct {
	Qualification TimestampQualification `json:"qualification" xml:"Qualification"`
	ServiceID     string                 `json:"serviceId,omitempty" xml:"ServiceID,omitempty"`
	Conclusion    *ades.Conclusion       `json:"conclusion" xml:"Conclusion"`
}
