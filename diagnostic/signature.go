package diagnostic

import "time"

// SignerData is a signed data object (a document or a manifest entry).
type SignerData struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	DigestAlgorithm string `json:"digestAlgorithm,omitempty"`
	DigestValue     string `json:"digestValue,omitempty"`
}

func (s *SignerData) TokenID() string { return s.ID }
func (s *SignerData) Kind() TokenKind { return KindSignerData }
func (s *SignerData) token()          {}

// Signature is an AdES signature or counter-signature. A counter-signature
// carries the id of the signature it countersigns in ParentID.
type Signature struct {
	ID                            string          `json:"id"`
	Format                        string          `json:"format,omitempty"`
	ParentID                      string          `json:"parentId,omitempty"`
	ClaimedSigningTime            *time.Time      `json:"claimedSigningTime,omitempty"`
	SignerName                    string          `json:"signerName,omitempty"`
	SigningCertificateID          string          `json:"signingCertificateId,omitempty"`
	SigningCertificateAttribute   bool            `json:"signingCertificateAttributePresent"`
	SigningCertificateDigestMatch bool            `json:"signingCertificateDigestMatch"`
	CertificateChainIDs           []string        `json:"certificateChain,omitempty"`
	StructurallyValid             bool            `json:"structurallyValid"`
	StructuralErrors              []string        `json:"structuralErrors,omitempty"`
	ReferenceDataFound            bool            `json:"referenceDataFound"`
	ReferenceDataIntact           bool            `json:"referenceDataIntact"`
	SignatureIntact               bool            `json:"signatureIntact"`
	SignedAttributes              []string        `json:"signedAttributes,omitempty"`
	CommitmentTypes               []string        `json:"commitmentTypes,omitempty"`
	SignerDocumentIDs             []string        `json:"signerDocuments,omitempty"`
	SignedObjects                 []CoveredObject `json:"signedObjects,omitempty"`
	SignaturePolicyID             string          `json:"signaturePolicyId,omitempty"`

	Algorithms
}

func (s *Signature) TokenID() string { return s.ID }
func (s *Signature) Kind() TokenKind { return KindSignature }
func (s *Signature) token()          {}

// IsCounterSignature reports whether the signature countersigns another one.
func (s *Signature) IsCounterSignature() bool {
	return s.ParentID != ""
}

// HasSignedAttribute reports whether the named attribute is part of the
// signed attributes.
func (s *Signature) HasSignedAttribute(name string) bool {
	for _, a := range s.SignedAttributes {
		if a == name {
			return true
		}
	}
	return false
}

// CoveredObjects returns the objects protected by the signature value. The
// signed data objects are always included; the signing certificate only when
// it is bound through a matching signing-certificate attribute; a
// counter-signature also covers its parent signature.
func (s *Signature) CoveredObjects() []CoveredObject {
	out := make([]CoveredObject, 0, len(s.SignedObjects)+len(s.SignerDocumentIDs)+2)
	seen := make(map[string]bool)
	add := func(o CoveredObject) {
		if o.ID == "" || seen[o.ID] {
			return
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	for _, o := range s.SignedObjects {
		add(o)
	}
	for _, id := range s.SignerDocumentIDs {
		add(CoveredObject{Type: CoveredSignedData, ID: id})
	}
	if s.SigningCertificateAttribute && s.SigningCertificateDigestMatch {
		add(CoveredObject{Type: CoveredCertificate, ID: s.SigningCertificateID})
	}
	if s.ParentID != "" {
		add(CoveredObject{Type: CoveredSignature, ID: s.ParentID})
	}
	return out
}
