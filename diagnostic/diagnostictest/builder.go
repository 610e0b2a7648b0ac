// Package diagnostictest builds DiagnosticData fixtures for tests.
package diagnostictest

import (
	"time"

	"github.com/georgepadayatti/trustval/diagnostic"
)

var (
	// NotBefore and NotAfter bound every certificate built by default.
	NotBefore = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	NotAfter  = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	// SigningTime is the default claimed signing time.
	SigningTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	// ValidationTime is a validation time inside every default validity range.
	ValidationTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Algorithms is the default algorithm set of built tokens.
var Algorithms = diagnostic.Algorithms{
	DigestAlgorithm:     "SHA256",
	EncryptionAlgorithm: "RSA",
	KeyLength:           2048,
}

// Builder accumulates tokens. Every method returns the token it added so the
// caller can adjust fields directly.
type Builder struct {
	d *diagnostic.DiagnosticData
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{d: &diagnostic.DiagnosticData{
		DocumentName:   "document.pdf",
		ValidationDate: ValidationTime,
	}}
}

// Build returns the snapshot.
func (b *Builder) Build() *diagnostic.DiagnosticData {
	return b.d
}

// Index returns an index over the snapshot built so far.
func (b *Builder) Index() *diagnostic.Index {
	return diagnostic.NewIndex(b.d)
}

// Certificate adds a certificate issued by issuer; a nil issuer makes it
// self-signed.
func (b *Builder) Certificate(id string, issuer *diagnostic.Certificate) *diagnostic.Certificate {
	c := &diagnostic.Certificate{
		ID:              id,
		SubjectDN:       "CN=" + id,
		CommonName:      id,
		Country:         "BE",
		SerialNumber:    id,
		NotBefore:       NotBefore,
		NotAfter:        NotAfter,
		SignatureIntact: true,
		KeyUsages:       []string{"digitalSignature", "nonRepudiation"},
		Algorithms:      Algorithms,
	}
	if issuer == nil {
		c.SelfSigned = true
		c.IssuerDN = c.SubjectDN
	} else {
		c.IssuerDN = issuer.SubjectDN
		c.IssuerCertificateID = issuer.ID
	}
	b.d.Certificates = append(b.d.Certificates, c)
	return c
}

// CA adds a self-signed certificate authority present in a trusted source.
func (b *Builder) CA(id string) *diagnostic.Certificate {
	c := b.Certificate(id, nil)
	c.CA = true
	c.Trusted = true
	c.TrustedSources = []string{"TRUSTED_STORE"}
	c.KeyUsages = []string{"keyCertSign", "crlSign"}
	return c
}

// TrustedChain adds a trusted root and a signer certificate issued by it.
func (b *Builder) TrustedChain(prefix string) (leaf, root *diagnostic.Certificate) {
	root = b.CA(prefix + "-root")
	leaf = b.Certificate(prefix+"-signer", root)
	return leaf, root
}

// TSA adds a trusted root and a time-stamping unit certificate.
func (b *Builder) TSA(prefix string) (unit, root *diagnostic.Certificate) {
	root = b.CA(prefix + "-tsa-root")
	unit = b.Certificate(prefix+"-tsu", root)
	unit.KeyUsages = []string{"digitalSignature"}
	unit.ExtendedKeyUsages = []string{"timeStamping"}
	return unit, root
}

// SignerData adds a signed data object.
func (b *Builder) SignerData(id string) *diagnostic.SignerData {
	s := &diagnostic.SignerData{ID: id, Name: id, DigestAlgorithm: "SHA256", DigestValue: "00"}
	b.d.SignerData = append(b.d.SignerData, s)
	return s
}

// Signature adds a cryptographically intact signature by signer over a fresh
// signed data object.
func (b *Builder) Signature(id string, signer *diagnostic.Certificate) *diagnostic.Signature {
	doc := b.SignerData(id + "-data")
	at := SigningTime
	s := &diagnostic.Signature{
		ID:                            id,
		Format:                        "PAdES-BASELINE-B",
		ClaimedSigningTime:            &at,
		StructurallyValid:             true,
		ReferenceDataFound:            true,
		ReferenceDataIntact:           true,
		SignatureIntact:               true,
		SigningCertificateAttribute:   true,
		SigningCertificateDigestMatch: true,
		SignedAttributes:              []string{"content-type", "message-digest", "signing-certificate", "signing-time"},
		SignerDocumentIDs:             []string{doc.ID},
		Algorithms:                    Algorithms,
	}
	if signer != nil {
		s.SigningCertificateID = signer.ID
		s.SignerName = signer.CommonName
	}
	b.d.Signatures = append(b.d.Signatures, s)
	return s
}

// CounterSignature adds a signature countersigning parent.
func (b *Builder) CounterSignature(id string, parent *diagnostic.Signature, signer *diagnostic.Certificate) *diagnostic.Signature {
	s := b.Signature(id, signer)
	s.ParentID = parent.ID
	return s
}

// Timestamp adds an intact timestamp produced at the given time by unit.
func (b *Builder) Timestamp(id string, typ diagnostic.TimestampType, at time.Time, unit *diagnostic.Certificate, covered ...diagnostic.Token) *diagnostic.Timestamp {
	t := &diagnostic.Timestamp{
		ID:                   id,
		Type:                 typ,
		ProductionTime:       at,
		MessageImprintFound:  true,
		MessageImprintIntact: true,
		SignatureIntact:      true,
		Algorithms:           Algorithms,
	}
	if unit != nil {
		t.SigningCertificateID = unit.ID
	}
	for _, c := range covered {
		t.TimestampedObjects = append(t.TimestampedObjects, Cover(c))
	}
	b.d.Timestamps = append(b.d.Timestamps, t)
	return t
}

// Revocation adds revocation data about subject issued by issuer at the given
// time. The status entry is appended to the subject certificate.
func (b *Builder) Revocation(id string, typ diagnostic.RevocationType, at time.Time, issuer, subject *diagnostic.Certificate, status diagnostic.RevocationStatus) *diagnostic.Revocation {
	next := at.Add(7 * 24 * time.Hour)
	r := &diagnostic.Revocation{
		ID:              id,
		Type:            typ,
		ProductionTime:  at,
		ThisUpdate:      at,
		NextUpdate:      &next,
		SignatureIntact: true,
		Algorithms:      Algorithms,
	}
	if issuer != nil {
		r.SigningCertificateID = issuer.ID
	}
	if subject != nil {
		subject.Revocations = append(subject.Revocations, diagnostic.CertificateRevocation{
			RevocationID: id,
			Status:       status,
		})
	}
	b.d.Revocations = append(b.d.Revocations, r)
	return r
}

// Revoke marks the subject as revoked at the given time in the entry of
// revocation r.
func Revoke(subject *diagnostic.Certificate, r *diagnostic.Revocation, at time.Time, reason diagnostic.RevocationReason) {
	for i := range subject.Revocations {
		if subject.Revocations[i].RevocationID == r.ID {
			subject.Revocations[i].Status = diagnostic.StatusRevoked
			subject.Revocations[i].RevocationDate = &at
			subject.Revocations[i].Reason = reason
		}
	}
}

// EvidenceRecord adds an evidence record with intact references whose archive
// timestamps are the given ones.
func (b *Builder) EvidenceRecord(id string, timestamps []*diagnostic.Timestamp, covered ...diagnostic.Token) *diagnostic.EvidenceRecord {
	e := &diagnostic.EvidenceRecord{
		ID:                  id,
		Type:                "XML_EVIDENCE_RECORD",
		StructurallyValid:   true,
		ReferenceDataFound:  true,
		ReferenceDataIntact: true,
		Algorithms:          Algorithms,
	}
	for _, t := range timestamps {
		e.TimestampIDs = append(e.TimestampIDs, t.ID)
	}
	for _, c := range covered {
		e.CoveredObjects = append(e.CoveredObjects, Cover(c))
	}
	b.d.EvidenceRecords = append(b.d.EvidenceRecords, e)
	return e
}

// Cover returns the covering edge pointing at t.
func Cover(t diagnostic.Token) diagnostic.CoveredObject {
	var typ diagnostic.CoveredObjectType
	switch t.Kind() {
	case diagnostic.KindCertificate:
		typ = diagnostic.CoveredCertificate
	case diagnostic.KindRevocation:
		typ = diagnostic.CoveredRevocation
	case diagnostic.KindTimestamp:
		typ = diagnostic.CoveredTimestamp
	case diagnostic.KindSignature:
		typ = diagnostic.CoveredSignature
	case diagnostic.KindEvidenceRecord:
		typ = diagnostic.CoveredEvidenceRecord
	case diagnostic.KindSignerData:
		typ = diagnostic.CoveredSignedData
	}
	return diagnostic.CoveredObject{Type: typ, ID: t.TokenID()}
}

// Scenario is a common fixture: a trusted signer chain and one intact
// signature over a single document.
type Scenario struct {
	*Builder
	Signer    *diagnostic.Certificate
	Root      *diagnostic.Certificate
	Signature *diagnostic.Signature
}

// NewScenario builds the fixture.
func NewScenario() *Scenario {
	b := New()
	leaf, root := b.TrustedChain("alice")
	sig := b.Signature("sig-1", leaf)
	sig.CertificateChainIDs = []string{leaf.ID, root.ID}
	return &Scenario{Builder: b, Signer: leaf, Root: root, Signature: sig}
}
