package bbb

import (
	"fmt"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/policy"
)

// checkCrypto applies the cryptographic suite at the validation time. When
// the algorithms are only rejected because they expired, the failure is
// time-related and can be cleared by an earlier proof of existence.
func (ev *evaluation) checkCrypto(r *run, key string, c *policy.Constraint, alg diagnostic.Algorithms, tokenID string) {
	res := ev.policy.Cryptographic.Check(alg, ev.now)
	out := indeterminate(ades.SubIndicationCryptoConstraintsFailure)
	if res.ExpiredOnly {
		out = timeRelated(ades.SubIndicationCryptoConstraintsFailureNoPOE, res.NotAfter, tokenID)
	}
	out.tokenID = tokenID
	r.check(key, c, res.Acceptable, res.Reason, out)
}

// xcv validates the certificate chain of signatures, timestamps and
// revocation data.
func (ev *evaluation) xcv() *XCV {
	switch ev.token.(type) {
	case *diagnostic.Signature, *diagnostic.Timestamp, *diagnostic.Revocation:
	default:
		return nil
	}
	r := newRun(BlockXCV)
	x := &XCV{}

	chain := ev.index.Chain(ev.token)
	anchor := -1
	for i, cert := range chain {
		if cert.Trusted {
			anchor = i
			break
		}
	}
	if !r.check(KeyChain, ev.c().ProspectiveCertificateChain, anchor >= 0,
		"no certificate chain reaching a trusted certificate", indeterminate(ades.SubIndicationNoCertificateChainFound)) {
		x.Block = *r.finish()
		return x
	}

	for i, cert := range chain[:anchor+1] {
		sub := ev.subXCV(cert, i == 0, i == anchor)
		x.SubXCV = append(x.SubXCV, sub)
		r.merge(&sub.Block)
		if r.stopped() {
			break
		}
	}
	x.Block = *r.finish()
	return x
}

// certificateConstraints returns the constraints of a chain position.
func (ev *evaluation) certificateConstraints(leaf bool) *policy.CertificateConstraints {
	if leaf {
		return ev.policy.SigningCertificateConstraints(ev.ctx)
	}
	return ev.policy.CACertificateConstraints(ev.ctx)
}

// subXCV validates one certificate of the chain. A trust anchor is accepted
// as is.
func (ev *evaluation) subXCV(cert *diagnostic.Certificate, leaf, anchor bool) SubXCV {
	sub := SubXCV{CertificateID: cert.ID, TrustAnchor: anchor}
	r := newRun(BlockSub)
	if anchor {
		r.info(KeyCertRecognition, fmt.Sprintf("%s is trusted by %v", cert.Name(), cert.TrustedSources))
		sub.Block = *r.finish()
		return sub
	}
	cc := ev.certificateConstraints(leaf)

	r.check(KeyCertSignature, cc.Signature, cert.SignatureIntact,
		"the certificate signature is not intact", indeterminate(ades.SubIndicationCertificateChainGeneralFailure))
	if !leaf {
		r.check(KeyCertCA, cc.CA, cert.CA,
			"the certificate is not a CA certificate", indeterminate(ades.SubIndicationChainConstraintsFailure))
	}
	r.check(KeyCertKeyUsage, cc.KeyUsage.Constraint(),
		cc.KeyUsage.AcceptsAnyKeyUsage(cert.KeyUsages, policy.NormalizeKeyUsage),
		fmt.Sprintf("key usages %v are not acceptable", cert.KeyUsages), indeterminate(ades.SubIndicationChainConstraintsFailure))
	r.check(KeyCertExtKeyUsage, cc.ExtendedKeyUsage.Constraint(),
		cc.ExtendedKeyUsage.AcceptsAnyKeyUsage(cert.ExtendedKeyUsages, policy.NormalizeExtendedKeyUsage),
		fmt.Sprintf("extended key usages %v are not acceptable", cert.ExtendedKeyUsages), indeterminate(ades.SubIndicationChainConstraintsFailure))
	ev.checkCrypto(r, KeyCertCrypto, cc.Cryptographic, cert.Algorithms, cert.ID)

	notRevoked := false
	if ev.opts.RevocationChecks && !cert.OCSPNoCheck {
		sub.RevocationID, notRevoked = ev.checkRevocation(r, cert, cc, leaf)
	}

	expired := ev.now.After(cert.NotAfter)
	expirySub := ades.SubIndicationOutOfBoundsNoPOE
	if notRevoked {
		expirySub = ades.SubIndicationOutOfBoundsNotRevoked
	}
	notAfter := cert.NotAfter
	r.check(KeyNotExpired, cc.NotExpired, !expired,
		fmt.Sprintf("the certificate expired on %s", cert.NotAfter.Format(time.RFC3339)), timeRelated(expirySub, &notAfter, cert.ID))
	r.check(KeyNotExpired, cc.NotExpired, !ev.now.Before(cert.NotBefore),
		fmt.Sprintf("the certificate is not valid before %s", cert.NotBefore.Format(time.RFC3339)), failed(ades.SubIndicationNotYetValid))

	sub.Block = *r.finish()
	return sub
}

// checkRevocation runs the revocation constraints for cert. It returns the
// selected revocation token and whether it says the certificate is not
// revoked.
func (ev *evaluation) checkRevocation(r *run, cert *diagnostic.Certificate, cc *policy.CertificateConstraints, leaf bool) (string, bool) {
	available := len(cert.Revocations) > 0
	if !r.check(KeyRevocationData, cc.RevocationDataAvailable, available,
		"no revocation data for "+cert.Name(), timeRelated(ades.SubIndicationTryLater, nil, cert.ID)) || !available {
		return "", false
	}
	rev, entry, ok := ev.selectRevocation(cert, ev.now)
	// An ignored constraint passes without a token: nothing left to check.
	if !r.check(KeyRevocationAccepted, cc.AcceptableRevocationData, ok,
		"no acceptable revocation data for "+cert.Name(), timeRelated(ades.SubIndicationTryLater, nil, cert.ID)) || !ok {
		return "", false
	}

	onHold := entry.Status == diagnostic.StatusRevoked && entry.Reason.IsHold()
	r.check(KeyNotOnHold, cc.NotOnHold, !onHold,
		"the certificate is on hold", timeRelated(ades.SubIndicationTryLater, nil, cert.ID))

	revoked := !onHold && entry.RevokedAt(ev.now)
	revokedSub := ades.SubIndicationRevokedCANoPOE
	if leaf {
		revokedSub = ades.SubIndicationRevokedNoPOE
	}
	r.check(KeyNotRevoked, cc.NotRevoked, !revoked,
		fmt.Sprintf("the certificate is revoked (%s)", entry.Reason), timeRelated(revokedSub, entry.RevocationDate, cert.ID))

	maxAge := maxAgeOf(cc.RevocationFreshness)
	ref := ev.referenceTime()
	if ev.now.Before(ref) {
		ref = ev.now
	}
	isFresh, last := fresh(rev, maxAge, ref)
	r.check(KeyRevocationFresh, cc.RevocationFreshness.Constraint(), isFresh,
		fmt.Sprintf("revocation data %s is not fresh at %s", rev.ID, ref.Format(time.RFC3339)),
		timeRelated(ades.SubIndicationTryLater, &last, rev.ID))

	return rev.ID, !revoked && !onHold && entry.Status == diagnostic.StatusGood
}

// selectRevocation picks the acceptable revocation data with the latest
// thisUpdate among the tokens produced at or before at.
func (ev *evaluation) selectRevocation(cert *diagnostic.Certificate, at time.Time) (*diagnostic.Revocation, diagnostic.CertificateRevocation, bool) {
	var (
		best  *diagnostic.Revocation
		entry diagnostic.CertificateRevocation
	)
	for _, e := range cert.Revocations {
		rev, ok := ev.index.Revocation(e.RevocationID)
		if !ok || rev.ProductionTime.After(at) || !ev.acceptableRevocation(cert, rev) {
			continue
		}
		if best == nil || rev.ThisUpdate.After(best.ThisUpdate) {
			best, entry = rev, e
		}
	}
	return best, entry, best != nil
}

// acceptableRevocation requires revocation data that did not fail its own
// validation and was issued within the certificate validity range, or that
// keeps expired certificates.
func (ev *evaluation) acceptableRevocation(cert *diagnostic.Certificate, rev *diagnostic.Revocation) bool {
	if ev.opts.RevocationConclusion != nil {
		if c, ok := ev.opts.RevocationConclusion(rev.ID); ok && c.IsFailed() {
			return false
		}
	}
	if rev.ThisUpdate.Before(cert.NotBefore) {
		return false
	}
	if !rev.ThisUpdate.After(cert.NotAfter) {
		return true
	}
	keeps := func(t *time.Time) bool { return t != nil && !t.After(cert.NotAfter) }
	return keeps(rev.ExpiredCertsOnCRL) || keeps(rev.ArchiveCutOff)
}

func maxAgeOf(c *policy.TimeConstraint) time.Duration {
	if c == nil {
		return 0
	}
	return c.Value
}

// fresh reports whether revocation data is fresh at ref, and the last
// instant at which it is.
//
// With a maximum age, thisUpdate must not be older than ref minus the age.
// Otherwise nextUpdate must not be before ref, or, without nextUpdate,
// thisUpdate must not be before ref.
func fresh(rev *diagnostic.Revocation, maxAge time.Duration, ref time.Time) (bool, time.Time) {
	switch {
	case maxAge > 0:
		last := rev.ThisUpdate.Add(maxAge)
		return !ref.After(last), last
	case rev.NextUpdate != nil:
		return !ref.After(*rev.NextUpdate), *rev.NextUpdate
	default:
		return !rev.ThisUpdate.Before(ref), rev.ThisUpdate
	}
}
