package bbb

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/diagnostic/diagnostictest"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
)

func evaluate(t *testing.T, b *diagnostictest.Builder, tok diagnostic.Token, ctx policy.Context, opts Options) *BasicBuildingBlocks {
	t.Helper()
	return evaluateWithPolicy(t, policy.DefaultPolicy(), b, tok, ctx, opts)
}

func evaluateWithPolicy(t *testing.T, p *policy.Policy, b *diagnostictest.Builder, tok diagnostic.Token, ctx policy.Context, opts Options) *BasicBuildingBlocks {
	t.Helper()
	x := b.Index()
	if problems := x.Problems(); len(problems) > 0 {
		t.Fatalf("fixture has structural problems: %v", problems)
	}
	e := NewEngine(x, p, poe.Collect(x, diagnostictest.ValidationTime))
	return e.Evaluate(tok, ctx, opts)
}

func expectConclusion(t *testing.T, c *ades.Conclusion, ind ades.Indication, sub ades.SubIndication) {
	t.Helper()
	if c == nil {
		t.Fatalf("Expected %s/%s, got nil conclusion", ind, sub)
	}
	if c.Indication != ind || c.SubIndication != sub {
		t.Errorf("Expected %s/%s, got %s/%s", ind, sub, c.Indication, c.SubIndication)
	}
	if !c.Valid() {
		t.Errorf("Conclusion %s/%s is not valid", c.Indication, c.SubIndication)
	}
}

func TestBasicSignaturePassed(t *testing.T) {
	s := diagnostictest.NewScenario()
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{Level: policy.BasicSignatures})

	expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	if b.Level != policy.BasicSignatures {
		t.Errorf("Expected level %s, got %s", policy.BasicSignatures, b.Level)
	}
	names := []BlockName{}
	for _, blk := range b.Blocks() {
		names = append(names, blk.Name)
	}
	want := []BlockName{BlockFC, BlockISC, BlockVCI, BlockXCV, BlockCV, BlockSAV}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Blocks mismatch (-want +got):\n%s", diff)
	}
	if len(b.XCV.SubXCV) != 2 {
		t.Fatalf("Expected 2 SubXCV, got %d", len(b.XCV.SubXCV))
	}
	if b.XCV.SubXCV[0].CertificateID != s.Signer.ID || b.XCV.SubXCV[0].TrustAnchor {
		t.Errorf("Expected first SubXCV for the signer, got %+v", b.XCV.SubXCV[0])
	}
	if !b.XCV.SubXCV[1].TrustAnchor {
		t.Errorf("Expected the chain walk to end at the trust anchor")
	}
	if b.PSV != nil || b.CurrentTimeConclusion != nil {
		t.Errorf("Expected no past signature validation")
	}
}

func TestHashFailureStopsEvaluation(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.ReferenceDataIntact = false
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})

	expectConclusion(t, b.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
	expectConclusion(t, b.CV.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
	if b.SAV != nil {
		t.Errorf("Expected SAV to be skipped after a FAILED block")
	}
}

func TestSignedDataNotFound(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.ReferenceDataFound = false
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationSignedDataNotFound)
}

func TestNoCertificateChainFound(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Root.Trusted = false
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})

	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationNoCertificateChainFound)
	if b.CV == nil || !b.CV.Conclusion.IsPassed() {
		t.Errorf("Expected CV to run after an INDETERMINATE XCV")
	}
	if len(b.XCV.SubXCV) != 0 {
		t.Errorf("Expected no SubXCV, got %d", len(b.XCV.SubXCV))
	}
}

func TestUnresolvedSigningCertificate(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.SigningCertificateID = ""
	s.Signature.CertificateChainIDs = nil
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})
	expectConclusion(t, b.ISC.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationNoCertificateChainFound)
	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationNoCertificateChainFound)
}

func TestWarningLevelKeepsPassed(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.SigningCertificateAttribute = false
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})

	expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	found := false
	for _, w := range b.Conclusion.Warnings {
		if w.Key == KeySigningCertAttr {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a %s warning, got %v", KeySigningCertAttr, b.Conclusion.Warnings)
	}
	var status Status
	for _, c := range b.ISC.Constraints {
		if c.Key == KeySigningCertAttr {
			status = c.Status
		}
	}
	if status != StatusWarning {
		t.Errorf("Expected status %s, got %q", StatusWarning, status)
	}
}

func TestExpiredSigningCertificate(t *testing.T) {
	s := diagnostictest.NewScenario()
	expiry := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Signer.NotAfter = expiry
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})

	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE)
	if !b.TimeDependent() {
		t.Fatalf("Expected a time-dependent conclusion")
	}
	causes := b.Causes()
	if len(causes) != 1 || causes[0].Time == nil || !causes[0].Time.Equal(expiry) {
		t.Fatalf("Expected one cause at %v, got %+v", expiry, causes)
	}
	if !b.ResolvedAt(diagnostictest.SigningTime) {
		t.Errorf("Expected a proof at the signing time to resolve the expiry")
	}
	if b.ResolvedAt(expiry.Add(time.Hour)) {
		t.Errorf("Expected a proof after the expiry not to resolve it")
	}
}

func TestNotYetValidFails(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signer.NotBefore = diagnostictest.ValidationTime.Add(time.Hour)
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationFailed, ades.SubIndicationNotYetValid)
}

func TestRevokedSigningCertificate(t *testing.T) {
	s := diagnostictest.NewScenario()
	revokedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ocsp := s.Revocation("ocsp-1", diagnostic.RevocationOCSP, revokedAt.Add(24*time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	diagnostictest.Revoke(s.Signer, ocsp, revokedAt, diagnostic.ReasonKeyCompromise)

	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{RevocationChecks: true})

	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationRevokedNoPOE)
	if got := b.XCV.SubXCV[0].RevocationID; got != ocsp.ID {
		t.Errorf("Expected revocation %s, got %q", ocsp.ID, got)
	}
}

func TestMissingRevocationData(t *testing.T) {
	s := diagnostictest.NewScenario()
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{RevocationChecks: true})
	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationTryLater)
	if b.ResolvedAt(diagnostictest.SigningTime) {
		t.Errorf("Expected missing revocation data not to be resolved by a proof of existence")
	}
}

func TestIgnoredRevocationConstraints(t *testing.T) {
	tests := []struct {
		name     string
		withData bool
	}{
		{name: "no revocation data"},
		{name: "unacceptable revocation data", withData: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := diagnostictest.NewScenario()
			if tt.withData {
				// Produced after the validation time, so never selected.
				s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.ValidationTime.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
			}
			p := policy.DefaultPolicy()
			p.Signature.SigningCertificate.RevocationDataAvailable = &policy.Constraint{Level: policy.Ignore}
			p.Signature.SigningCertificate.AcceptableRevocationData = &policy.Constraint{Level: policy.Ignore}

			b := evaluateWithPolicy(t, p, s.Builder, s.Signature, policy.ContextSignature, Options{
				Level:            policy.ArchivalData,
				RevocationChecks: true,
				PastValidation:   true,
			})
			expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
			if got := b.XCV.SubXCV[0].RevocationID; got != "" {
				t.Errorf("Expected no revocation token, got %q", got)
			}
		})
	}
}

func TestHashFailureWinsOverExpiry(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signer.NotAfter = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.Signature.ReferenceDataIntact = false

	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{PastValidation: true})
	expectConclusion(t, b.XCV.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE)
	expectConclusion(t, b.CV.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
	expectConclusion(t, b.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
	if b.TimeDependent() || b.PSV != nil {
		t.Errorf("Expected no past signature validation for a FAILED result")
	}
}

func TestOverallConclusion(t *testing.T) {
	block := func(ind ades.Indication, sub ades.SubIndication, timeDependent bool) *Block {
		return &Block{Conclusion: ades.New(ind, sub), TimeDependent: timeDependent}
	}
	passed := block(ades.IndicationPassed, ades.SubIndicationNone, false)
	expired := block(ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE, true)
	noChain := block(ades.IndicationIndeterminate, ades.SubIndicationNoCertificateChainFound, false)
	hash := block(ades.IndicationFailed, ades.SubIndicationHashFailure, false)

	tests := []struct {
		name   string
		blocks []*Block
		ind    ades.Indication
		sub    ades.SubIndication
	}{
		{"all passed", []*Block{passed, passed}, ades.IndicationPassed, ades.SubIndicationNone},
		{"time-related only", []*Block{passed, expired}, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE},
		{"failed after time-related", []*Block{expired, hash}, ades.IndicationFailed, ades.SubIndicationHashFailure},
		{"failed after other indeterminate", []*Block{noChain, hash}, ades.IndicationIndeterminate, ades.SubIndicationNoCertificateChainFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectConclusion(t, overall(tt.blocks), tt.ind, tt.sub)
		})
	}
}

func TestStaleRevocationDataInThePast(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.SigningTime.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)

	basic := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{Level: policy.BasicSignatures})
	expectConclusion(t, basic.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)

	ltd := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{
		Level:            policy.LongTermData,
		RevocationChecks: true,
		PastValidation:   true,
	})
	expectConclusion(t, ltd.CurrentTimeConclusion, ades.IndicationIndeterminate, ades.SubIndicationTryLater)
	expectConclusion(t, ltd.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationRevocationOutOfBoundsNoPOE)
	if ltd.PSV == nil || ltd.PSV.POE != nil {
		t.Fatalf("Expected PSV without a proof of existence, got %+v", ltd.PSV)
	}
	next := diagnostictest.SigningTime.Add(time.Hour + 7*24*time.Hour)
	if !ltd.VTS.ControlTime.Equal(next) {
		t.Errorf("Expected control time %v, got %v", next, ltd.VTS.ControlTime)
	}
}

func TestFreshnessUsesProofOfExistence(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.SigningTime.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	s.Timestamp("tst-1", diagnostic.TimestampSignature, diagnostictest.SigningTime.Add(30*time.Minute), unit, s.Signature)

	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{RevocationChecks: true, PastValidation: true})
	expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
}

func TestPastSignatureValidation(t *testing.T) {
	at := diagnostictest.SigningTime.Add(30 * time.Minute)
	tests := []struct {
		name   string
		accept func(string) bool
		ind    ades.Indication
		sub    ades.SubIndication
		poe    string
	}{
		{name: "accepted timestamp", ind: ades.IndicationPassed, poe: "tst-1"},
		{
			name:   "rejected timestamp",
			accept: func(string) bool { return false },
			ind:    ades.IndicationIndeterminate,
			sub:    ades.SubIndicationOutOfBoundsNoPOE,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := diagnostictest.NewScenario()
			unit, _ := s.TSA("tsa")
			s.Signer.NotAfter = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
			s.Timestamp("tst-1", diagnostic.TimestampSignature, at, unit, s.Signature)

			b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{PastValidation: true, AcceptPOE: tt.accept})
			expectConclusion(t, b.CurrentTimeConclusion, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE)
			expectConclusion(t, b.Conclusion, tt.ind, tt.sub)
			var got string
			if b.PSV.POE != nil {
				got = b.PSV.POE.ProvenBy
			}
			if got != tt.poe {
				t.Errorf("Expected POE by %q, got %q", tt.poe, got)
			}
		})
	}
}

func TestAlgorithmExpiry(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.Algorithms = diagnostic.Algorithms{DigestAlgorithm: "SHA1", EncryptionAlgorithm: "RSA", KeyLength: 2048}
	b := evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})
	expectConclusion(t, b.SAV.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationCryptoConstraintsFailureNoPOE)

	s.Signature.Algorithms = diagnostic.Algorithms{DigestAlgorithm: "GOST", EncryptionAlgorithm: "RSA", KeyLength: 2048}
	b = evaluate(t, s.Builder, s.Signature, policy.ContextSignature, Options{})
	expectConclusion(t, b.SAV.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationCryptoConstraintsFailure)
	if b.TimeDependent() {
		t.Errorf("Expected an unacceptable algorithm not to be time-dependent")
	}
}

func TestTimestampBlocks(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*diagnostic.Timestamp)
		ind    ades.Indication
		sub    ades.SubIndication
	}{
		{name: "intact", modify: func(*diagnostic.Timestamp) {}, ind: ades.IndicationPassed},
		{
			name:   "message imprint mismatch",
			modify: func(ts *diagnostic.Timestamp) { ts.MessageImprintIntact = false },
			ind:    ades.IndicationFailed,
			sub:    ades.SubIndicationHashFailure,
		},
		{
			name:   "broken signature",
			modify: func(ts *diagnostic.Timestamp) { ts.SignatureIntact = false },
			ind:    ades.IndicationFailed,
			sub:    ades.SubIndicationSigCryptoFailure,
		},
		{
			name:   "malformed token",
			modify: func(ts *diagnostic.Timestamp) { ts.StructuralErrors = []string{"bad TSTInfo"} },
			ind:    ades.IndicationFailed,
			sub:    ades.SubIndicationFormatFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := diagnostictest.NewScenario()
			unit, _ := s.TSA("tsa")
			ts := s.Timestamp("tst-1", diagnostic.TimestampSignature, diagnostictest.SigningTime, unit, s.Signature)
			tt.modify(ts)
			b := evaluate(t, s.Builder, ts, policy.ContextTimestamp, Options{})
			expectConclusion(t, b.Conclusion, tt.ind, tt.sub)
			if b.FC == nil {
				t.Fatalf("Expected an FC block for a timestamp")
			}
			if tt.sub == ades.SubIndicationFormatFailure {
				expectConclusion(t, b.FC.Conclusion, tt.ind, tt.sub)
				if b.ISC != nil {
					t.Errorf("Expected ISC to be skipped after a FAILED FC")
				}
			}
		})
	}
}

func TestRevocationAndEvidenceRecordBlocks(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	ocsp := s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.SigningTime, s.Root, s.Signer, diagnostic.StatusGood)
	ocsp.CertificateChainIDs = []string{s.Root.ID}
	ats := s.Timestamp("ats-1", diagnostic.TimestampEvidenceRecord, diagnostictest.SigningTime, unit)
	er := s.EvidenceRecord("er-1", []*diagnostic.Timestamp{ats}, s.Signature)

	b := evaluate(t, s.Builder, ocsp, policy.ContextRevocation, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)

	b = evaluate(t, s.Builder, er, policy.ContextEvidenceRecord, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	if b.ISC != nil || b.XCV != nil {
		t.Errorf("Expected no ISC or XCV for an evidence record")
	}

	er.ReferenceDataIntact = false
	b = evaluate(t, s.Builder, er, policy.ContextEvidenceRecord, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
}

func TestCertificateHasNoValidationContext(t *testing.T) {
	s := diagnostictest.NewScenario()
	b := evaluate(t, s.Builder, s.Signer, policy.ContextCertificate, Options{})
	expectConclusion(t, b.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationPolicyProcessingError)
}

func TestFresh(t *testing.T) {
	this := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := this.Add(7 * 24 * time.Hour)
	withNext := &diagnostic.Revocation{ThisUpdate: this, NextUpdate: &next}
	withoutNext := &diagnostic.Revocation{ThisUpdate: this}

	tests := []struct {
		name   string
		rev    *diagnostic.Revocation
		maxAge time.Duration
		ref    time.Time
		fresh  bool
		last   time.Time
	}{
		{"next update ahead", withNext, 0, this.Add(24 * time.Hour), true, next},
		{"next update passed", withNext, 0, next.Add(time.Second), false, next},
		{"max age", withNext, time.Hour, this.Add(30 * time.Minute), true, this.Add(time.Hour)},
		{"max age exceeded", withNext, time.Hour, this.Add(2 * time.Hour), false, this.Add(time.Hour)},
		{"issued after reference", withoutNext, 0, this.Add(-time.Minute), true, this},
		{"issued before reference", withoutNext, 0, this.Add(time.Minute), false, this},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, last := fresh(tt.rev, tt.maxAge, tt.ref)
			if ok != tt.fresh || !last.Equal(tt.last) {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tt.fresh, tt.last, ok, last)
			}
		})
	}
}
