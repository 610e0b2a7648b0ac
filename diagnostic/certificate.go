package diagnostic

import "time"

// QCStatements are the qualified certificate statements found in a certificate.
type QCStatements struct {
	Compliance bool     `json:"compliance,omitempty"`
	SSCD       bool     `json:"sscd,omitempty"`
	Types      []string `json:"types,omitempty"`
}

// Certificate is an X.509 certificate as seen by the parser layer.
type Certificate struct {
	ID                  string                  `json:"id"`
	SubjectDN           string                  `json:"subjectDN"`
	CommonName          string                  `json:"commonName,omitempty"`
	Country             string                  `json:"country,omitempty"`
	IssuerDN            string                  `json:"issuerDN"`
	SerialNumber        string                  `json:"serialNumber"`
	NotBefore           time.Time               `json:"notBefore"`
	NotAfter            time.Time               `json:"notAfter"`
	SelfSigned          bool                    `json:"selfSigned,omitempty"`
	Trusted             bool                    `json:"trusted,omitempty"`
	TrustedSources      []string                `json:"trustedSources,omitempty"`
	CA                  bool                    `json:"ca,omitempty"`
	KeyUsages           []string                `json:"keyUsages,omitempty"`
	ExtendedKeyUsages   []string                `json:"extendedKeyUsages,omitempty"`
	OCSPNoCheck         bool                    `json:"ocspNoCheck,omitempty"`
	IssuerCertificateID string                  `json:"issuerCertificateId,omitempty"`
	SignatureIntact     bool                    `json:"signatureIntact"`
	QCStatements        *QCStatements           `json:"qcStatements,omitempty"`
	CertificatePolicies []string                `json:"certificatePolicies,omitempty"`
	Revocations         []CertificateRevocation `json:"revocations,omitempty"`

	Algorithms
}

func (c *Certificate) TokenID() string { return c.ID }
func (c *Certificate) Kind() TokenKind { return KindCertificate }
func (c *Certificate) token()          {}

// Name returns the common name, falling back to the subject DN.
func (c *Certificate) Name() string {
	if c.CommonName != "" {
		return c.CommonName
	}
	return c.SubjectDN
}

// IsValidAt checks if the certificate validity range contains at.
func (c *Certificate) IsValidAt(at time.Time) bool {
	return !at.Before(c.NotBefore) && !at.After(c.NotAfter)
}

// HasKeyUsage reports whether the certificate declares the key usage.
func (c *Certificate) HasKeyUsage(usage string) bool {
	for _, u := range c.KeyUsages {
		if u == usage {
			return true
		}
	}
	return false
}

// HasExtendedKeyUsage reports whether the certificate declares the extended key usage.
func (c *Certificate) HasExtendedKeyUsage(usage string) bool {
	for _, u := range c.ExtendedKeyUsages {
		if u == usage {
			return true
		}
	}
	return false
}

// RevocationEntry returns the status entry recorded for the given revocation token.
func (c *Certificate) RevocationEntry(revocationID string) (CertificateRevocation, bool) {
	for _, r := range c.Revocations {
		if r.RevocationID == revocationID {
			return r, true
		}
	}
	return CertificateRevocation{}, false
}
