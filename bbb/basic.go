package bbb

import (
	"fmt"
	"strings"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
)

// fc checks the format of signatures, timestamps and evidence records.
// Other tokens have no format block.
func (ev *evaluation) fc() *Block {
	c := ev.c()
	switch t := ev.token.(type) {
	case *diagnostic.Signature:
		r := newRun(BlockFC)
		r.check(KeyStructure, c.StructuralValidation, t.StructurallyValid,
			structureMessage(t.StructuralErrors), failed(ades.SubIndicationFormatFailure))
		r.check(KeyFormat, c.AcceptableFormats.Constraint(), c.AcceptableFormats.Accepts(t.Format),
			fmt.Sprintf("format %q is not acceptable", t.Format), failed(ades.SubIndicationFormatFailure))
		return r.finish()
	case *diagnostic.Timestamp:
		r := newRun(BlockFC)
		r.check(KeyStructure, c.StructuralValidation, t.StructurallyValid(),
			structureMessage(t.StructuralErrors), failed(ades.SubIndicationFormatFailure))
		return r.finish()
	case *diagnostic.EvidenceRecord:
		r := newRun(BlockFC)
		r.check(KeyStructure, c.StructuralValidation, t.StructurallyValid,
			structureMessage(t.StructuralErrors), failed(ades.SubIndicationFormatFailure))
		return r.finish()
	}
	return nil
}

func structureMessage(errs []string) string {
	if len(errs) == 0 {
		return "the structure is not valid"
	}
	return "the structure is not valid: " + strings.Join(errs, "; ")
}

// isc identifies the signing certificate.
func (ev *evaluation) isc() *Block {
	c := ev.c()
	switch t := ev.token.(type) {
	case *diagnostic.Signature:
		r := newRun(BlockISC)
		_, found := ev.index.SigningCertificate(t)
		r.check(KeySigningCertificate, c.SigningCertificateRecognition, found,
			"the signing certificate cannot be identified", indeterminate(ades.SubIndicationNoCertificateChainFound))
		r.check(KeySigningCertAttr, c.SigningCertificateAttribute, t.SigningCertificateAttribute,
			"the signing-certificate attribute is missing", indeterminate(ades.SubIndicationNoSigningCertificateFound))
		r.check(KeySigningCertDigest, c.SigningCertificateDigestMatch, t.SigningCertificateDigestMatch,
			"the signing-certificate digest does not match", indeterminate(ades.SubIndicationNoSigningCertificateFound))
		return r.finish()
	case *diagnostic.Timestamp, *diagnostic.Revocation:
		r := newRun(BlockISC)
		_, found := ev.index.SigningCertificate(t)
		r.check(KeySigningCertificate, c.SigningCertificateRecognition, found,
			"the signing certificate cannot be identified", indeterminate(ades.SubIndicationNoCertificateChainFound))
		return r.finish()
	}
	return nil
}

// vci establishes the validation context.
func (ev *evaluation) vci() *Block {
	r := newRun(BlockVCI)
	switch t := ev.token.(type) {
	case *diagnostic.Certificate, *diagnostic.SignerData:
		r.fail(KeyConstraintSet, fmt.Sprintf("%s has no validation context", describe(t)),
			indeterminate(ades.SubIndicationPolicyProcessingError))
		return r.finish()
	case *diagnostic.Signature:
		if t.SignaturePolicyID != "" {
			r.info(KeySignaturePolicy, "signature policy "+t.SignaturePolicyID)
		}
	}
	if ev.constraints == nil {
		r.fail(KeyConstraintSet, fmt.Sprintf("the policy has no constraints for %s", ev.ctx),
			indeterminate(ades.SubIndicationPolicyProcessingError))
	}
	if ev.now.IsZero() {
		r.fail(KeyValidationTime, "the validation time is not set",
			indeterminate(ades.SubIndicationPolicyProcessingError))
	}
	return r.finish()
}

// cv verifies the cryptographic integrity of the token.
func (ev *evaluation) cv() *Block {
	c := ev.c()
	r := newRun(BlockCV)
	switch t := ev.token.(type) {
	case *diagnostic.Signature:
		r.check(KeyReferenceFound, c.ReferenceDataExistence, t.ReferenceDataFound,
			"the signed data is not found", indeterminate(ades.SubIndicationSignedDataNotFound))
		r.check(KeyReferenceIntact, c.ReferenceDataIntact, t.ReferenceDataIntact,
			"the signed data digest does not match", failed(ades.SubIndicationHashFailure))
		r.check(KeySignatureIntact, c.SignatureIntact, t.SignatureIntact,
			"the signature value is not intact", failed(ades.SubIndicationSigCryptoFailure))
	case *diagnostic.Timestamp:
		r.check(KeyReferenceFound, c.ReferenceDataExistence, t.MessageImprintFound,
			"the message imprint data is not found", indeterminate(ades.SubIndicationSignedDataNotFound))
		r.check(KeyReferenceIntact, c.ReferenceDataIntact, t.MessageImprintIntact,
			"the message imprint does not match", failed(ades.SubIndicationHashFailure))
		r.check(KeySignatureIntact, c.SignatureIntact, t.SignatureIntact,
			"the timestamp signature is not intact", failed(ades.SubIndicationSigCryptoFailure))
	case *diagnostic.Revocation:
		r.check(KeySignatureIntact, c.SignatureIntact, t.SignatureIntact,
			"the revocation data signature is not intact", failed(ades.SubIndicationSigCryptoFailure))
	case *diagnostic.EvidenceRecord:
		r.check(KeyReferenceFound, c.ReferenceDataExistence, t.ReferenceDataFound,
			"the archived data is not found", indeterminate(ades.SubIndicationSignedDataNotFound))
		r.check(KeyReferenceIntact, c.ReferenceDataIntact, t.ReferenceDataIntact,
			"the archived data digest does not match", failed(ades.SubIndicationHashFailure))
	default:
		return nil
	}
	return r.finish()
}

// sav applies the acceptance constraints.
func (ev *evaluation) sav() *Block {
	alg, ok := algorithmsOf(ev.token)
	if !ok {
		return nil
	}
	c := ev.c()
	r := newRun(BlockSAV)
	if s, ok := ev.token.(*diagnostic.Signature); ok {
		r.check(KeySigningTime, c.SigningTime, s.ClaimedSigningTime != nil,
			"the claimed signing time is missing", indeterminate(ades.SubIndicationSigConstraintsFailure))
		if c.RequiredSignedAttributes != nil {
			var missing []string
			for _, name := range c.RequiredSignedAttributes.Values {
				if !s.HasSignedAttribute(name) {
					missing = append(missing, name)
				}
			}
			r.check(KeySignedAttributes, c.RequiredSignedAttributes.Constraint(), len(missing) == 0,
				"missing signed attributes: "+strings.Join(missing, ", "),
				indeterminate(ades.SubIndicationSigConstraintsFailure))
		}
		if c.CommitmentTypes != nil {
			accepted := len(c.CommitmentTypes.Values) == 0
			for _, ct := range s.CommitmentTypes {
				if c.CommitmentTypes.Accepts(ct) {
					accepted = true
					break
				}
			}
			r.check(KeyCommitmentTypes, c.CommitmentTypes.Constraint(), accepted,
				"no acceptable commitment type", indeterminate(ades.SubIndicationSigConstraintsFailure))
		}
	}
	ev.checkCrypto(r, KeyCrypto, c.Cryptographic, alg, ev.token.TokenID())
	return r.finish()
}
