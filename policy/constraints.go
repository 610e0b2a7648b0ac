package policy

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Constraint is a single check with a severity. In YAML it may be written as
// a bare level ("signature-intact: FAIL") or as a mapping with a level key.
type Constraint struct {
	Level Level `yaml:"level"`
}

// UnmarshalYAML accepts the short and the long form.
func (c *Constraint) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		return c.Level.UnmarshalText([]byte(n.Value))
	}
	type plain Constraint
	return n.Decode((*plain)(c))
}

// LevelOf returns the level of c; a missing constraint is ignored.
func LevelOf(c *Constraint) Level {
	if c == nil {
		return Ignore
	}
	return c.Level
}

// MultiValuesConstraint checks a value against a list of accepted values.
type MultiValuesConstraint struct {
	Level  Level    `yaml:"level"`
	Values []string `yaml:"values"`
}

// Constraint returns the plain constraint view of m.
func (m *MultiValuesConstraint) Constraint() *Constraint {
	if m == nil {
		return nil
	}
	return &Constraint{Level: m.Level}
}

// Accepts reports whether v is one of the accepted values. An empty list or
// the value "*" accepts everything.
func (m *MultiValuesConstraint) Accepts(v string) bool {
	if m == nil || len(m.Values) == 0 {
		return true
	}
	for _, a := range m.Values {
		if a == "*" || a == v {
			return true
		}
	}
	return false
}

// TimeConstraint bounds a duration such as the maximum age of revocation data.
type TimeConstraint struct {
	Level Level         `yaml:"level"`
	Value time.Duration `yaml:"value"`
}

// Constraint returns the plain constraint view of t.
func (t *TimeConstraint) Constraint() *Constraint {
	if t == nil {
		return nil
	}
	return &Constraint{Level: t.Level}
}

// Date is a calendar date written as 2006-01-02 (RFC 3339 is also accepted).
type Date struct {
	time.Time
}

// NewDate returns the date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// UnmarshalYAML parses the date from its scalar text.
func (d *Date) UnmarshalYAML(n *yaml.Node) error {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, n.Value); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", n.Value)
}

// MarshalYAML writes the date as YYYY-MM-DD.
func (d Date) MarshalYAML() (any, error) {
	return d.Format("2006-01-02"), nil
}

// CertificateConstraints are the per-certificate checks of a chain.
type CertificateConstraints struct {
	// Recognition requires the certificate to be present in the snapshot.
	Recognition *Constraint `yaml:"recognition"`

	// Signature requires the certificate signature to verify with the issuer key.
	Signature *Constraint `yaml:"signature"`

	// NotExpired requires the validation time to be inside the validity range.
	NotExpired *Constraint `yaml:"not-expired"`

	// KeyUsage lists acceptable key usages (any of).
	KeyUsage *MultiValuesConstraint `yaml:"key-usage"`

	// ExtendedKeyUsage lists acceptable extended key usages (any of).
	ExtendedKeyUsage *MultiValuesConstraint `yaml:"extended-key-usage"`

	// CA requires the basic constraints CA flag on issuers.
	CA *Constraint `yaml:"ca"`

	// Cryptographic applies the cryptographic suite to the certificate signature.
	Cryptographic *Constraint `yaml:"cryptographic"`

	// RevocationDataAvailable requires revocation data unless OCSP no-check is set.
	RevocationDataAvailable *Constraint `yaml:"revocation-data-available"`

	// AcceptableRevocationData requires the revocation data to be trustworthy
	// and issued within the certificate validity range.
	AcceptableRevocationData *Constraint `yaml:"acceptable-revocation-data"`

	// RevocationFreshness is the maximum age of revocation data relative to
	// the reference time. A zero value requires nextUpdate to be after it.
	RevocationFreshness *TimeConstraint `yaml:"revocation-freshness"`

	// NotRevoked requires the certificate not to be revoked.
	NotRevoked *Constraint `yaml:"not-revoked"`

	// NotOnHold requires the certificate not to be suspended.
	NotOnHold *Constraint `yaml:"not-on-hold"`
}

// ContextConstraints is the constraint set for one validation context.
type ContextConstraints struct {
	// StructuralValidation requires a well-formed token.
	StructuralValidation *Constraint `yaml:"structural-validation"`

	// AcceptableFormats lists the accepted signature formats.
	AcceptableFormats *MultiValuesConstraint `yaml:"acceptable-formats"`

	SigningCertificateRecognition *Constraint `yaml:"signing-certificate-recognition"`
	SigningCertificateAttribute   *Constraint `yaml:"signing-certificate-attribute"`
	SigningCertificateDigestMatch *Constraint `yaml:"signing-certificate-digest-match"`

	// ProspectiveCertificateChain requires a chain reaching a trusted certificate.
	ProspectiveCertificateChain *Constraint `yaml:"prospective-certificate-chain"`

	ReferenceDataExistence *Constraint `yaml:"reference-data-existence"`
	ReferenceDataIntact    *Constraint `yaml:"reference-data-intact"`
	SignatureIntact        *Constraint `yaml:"signature-intact"`

	SigningTime              *Constraint            `yaml:"signing-time"`
	RequiredSignedAttributes *MultiValuesConstraint `yaml:"required-signed-attributes"`
	CommitmentTypes          *MultiValuesConstraint `yaml:"commitment-types"`

	// Cryptographic applies the cryptographic suite to the token's own algorithms.
	Cryptographic *Constraint `yaml:"cryptographic"`

	// TimestampCoherence requires content timestamps to precede signature timestamps.
	TimestampCoherence *Constraint `yaml:"timestamp-coherence"`

	// TimestampDelay bounds the delay between claimed signing time and the
	// earliest signature timestamp.
	TimestampDelay *TimeConstraint `yaml:"timestamp-delay"`

	// ArchivalCoverage requires archive timestamps to keep covering the
	// signature until now.
	ArchivalCoverage *Constraint `yaml:"archival-coverage"`

	SigningCertificate *CertificateConstraints `yaml:"signing-certificate"`
	CACertificate      *CertificateConstraints `yaml:"ca-certificate"`
}

// TrustedListConstraints are the eIDAS trusted list checks.
type TrustedListConstraints struct {
	// Freshness is the maximum age of a trusted list issue date.
	Freshness *TimeConstraint `yaml:"tl-freshness"`

	// NotExpired requires the next update of the list to be in the future.
	NotExpired *Constraint `yaml:"tl-not-expired"`

	// WellSigned requires a valid trusted list signature.
	WellSigned *Constraint `yaml:"tl-well-signed"`

	// AcceptableCountries restricts the trusted lists considered.
	AcceptableCountries *MultiValuesConstraint `yaml:"tl-countries"`
}
