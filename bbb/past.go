package bbb

import (
	"fmt"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
)

// pastValidation runs PCV and PSV for a time-dependent result and replaces
// the overall conclusion by the PSV one.
func (ev *evaluation) pastValidation(b *BasicBuildingBlocks) {
	causes := b.Causes()
	b.PCV, b.VTS = ev.pcv(causes)
	b.PSV = ev.psv(b.PCV, causes)

	c := b.PSV.Conclusion.Clone()
	if c.IsPassed() {
		c.Warnings = append(c.Warnings, b.CurrentTimeConclusion.Errors...)
		c.Warnings = append(c.Warnings, b.CurrentTimeConclusion.Warnings...)
		c.Infos = append(c.Infos, b.CurrentTimeConclusion.Infos...)
	} else {
		c.Merge(b.CurrentTimeConclusion)
	}
	b.Conclusion = c
}

// pcv validates the chain in the past and yields the control time.
func (ev *evaluation) pcv(causes []TimeCause) (*TimedBlock, *TimedBlock) {
	vts := ev.vts(causes)
	r := newRun(BlockPCV)
	r.merge(&vts.Block)
	blk := r.finish()
	return &TimedBlock{Block: *blk, ControlTime: vts.ControlTime}, vts
}

// vts slides the control time backwards from the validation time, following
// the chain from the trust anchor to the signing certificate. Revocation
// dates, the last instant revocation data is fresh, certificate expiry and
// algorithm expiry each move the control time earlier. Only revocation data
// proven to exist at the control time is used.
func (ev *evaluation) vts(causes []TimeCause) *TimedBlock {
	r := newRun(BlockVTS)
	control := ev.now
	earlier := func(t time.Time) {
		if t.Before(control) {
			control = t
		}
	}

	chain := ev.index.Chain(ev.token)
	for i := len(chain) - 1; i >= 0; i-- {
		cert := chain[i]
		if cert.Trusted {
			continue
		}
		earlier(cert.NotAfter)
		if exp, ok := ev.policy.Cryptographic.Expiration(cert.Algorithms); ok {
			earlier(exp)
		}
		if !ev.opts.RevocationChecks || cert.OCSPNoCheck {
			continue
		}
		cc := ev.certificateConstraints(i == 0)
		rev, entry, ok := ev.selectProvenRevocation(cert, control)
		if !r.check(KeyVTSRevocation, cc.RevocationDataAvailable, ok,
			fmt.Sprintf("no revocation data for %s proven to exist at %s", cert.Name(), control.Format(time.RFC3339)),
			indeterminate(ades.SubIndicationNoPOE)) || !ok {
			continue
		}
		if entry.RevokedAt(control) && entry.RevocationDate != nil {
			earlier(*entry.RevocationDate)
		}
		if isFresh, last := fresh(rev, maxAgeOf(cc.RevocationFreshness), control); !isFresh {
			earlier(last)
		}
	}
	if alg, ok := algorithmsOf(ev.token); ok {
		if exp, ok := ev.policy.Cryptographic.Expiration(alg); ok {
			earlier(exp)
		}
	}
	for _, c := range causes {
		if c.remediable() {
			earlier(*c.Time)
		}
	}

	blk := r.finish()
	return &TimedBlock{Block: *blk, ControlTime: control}
}

// selectProvenRevocation is selectRevocation restricted to revocation data
// whose proof of existence is not after control.
func (ev *evaluation) selectProvenRevocation(cert *diagnostic.Certificate, control time.Time) (*diagnostic.Revocation, diagnostic.CertificateRevocation, bool) {
	var (
		best  *diagnostic.Revocation
		entry diagnostic.CertificateRevocation
	)
	for _, e := range cert.Revocations {
		rev, ok := ev.index.Revocation(e.RevocationID)
		if !ok || !ev.acceptableRevocation(cert, rev) {
			continue
		}
		if ev.poes.LowestProvenBy(rev.ID, ev.opts.AcceptPOE).Time.After(control) {
			continue
		}
		if best == nil || rev.ThisUpdate.After(best.ThisUpdate) {
			best, entry = rev, e
		}
	}
	return best, entry, best != nil
}

// psv looks for a proof that the token existed before the control time and
// before every time-related cause.
func (ev *evaluation) psv(pcv *TimedBlock, causes []TimeCause) *PSV {
	r := newRun(BlockPSV)
	out := &PSV{ControlTime: pcv.ControlTime}
	sub := pastSubIndication(causes)

	if !pcv.Conclusion.IsPassed() {
		r.fail(KeyPCV, "the certificate chain cannot be validated in the past", indeterminate(sub))
		out.Block = *r.finish()
		return out
	}
	for _, c := range causes {
		if !c.remediable() && c.Key != KeyRevocationFresh {
			r.fail(KeyPSV, fmt.Sprintf("%s cannot be cleared by a proof of existence", c.SubIndication), indeterminate(c.SubIndication))
			out.Block = *r.finish()
			return out
		}
	}

	for _, p := range ev.poes.Candidates(ev.token.TokenID()) {
		if !p.IsFallback() && ev.opts.AcceptPOE != nil && !ev.opts.AcceptPOE(p.ProvenBy) {
			continue
		}
		if p.Time.After(pcv.ControlTime) || !beforeCauses(p.Time, causes) {
			continue
		}
		out.POE = &p
		break
	}
	if out.POE == nil {
		r.fail(KeyPSV, fmt.Sprintf("no proof of existence before %s", pcv.ControlTime.Format(time.RFC3339)), indeterminate(sub))
	} else {
		r.info(KeyPSV, fmt.Sprintf("proof of existence at %s by %s", out.POE.Time.Format(time.RFC3339), provenBy(*out.POE)))
	}
	out.Block = *r.finish()
	return out
}

func beforeCauses(t time.Time, causes []TimeCause) bool {
	for _, c := range causes {
		if c.remediable() && !t.Before(*c.Time) {
			return false
		}
	}
	return true
}

func provenBy(p poe.POE) string {
	if p.IsFallback() {
		return "the validation time"
	}
	return p.ProvenBy
}

// pastSubIndication maps the first cause to the sub-indication reported when
// no proof of existence clears it. Freshness problems become
// REVOCATION_OUT_OF_BOUNDS_NO_POE.
func pastSubIndication(causes []TimeCause) ades.SubIndication {
	if len(causes) == 0 {
		return ades.SubIndicationNoPOE
	}
	if causes[0].Key == KeyRevocationFresh {
		return ades.SubIndicationRevocationOutOfBoundsNoPOE
	}
	return causes[0].SubIndication
}
