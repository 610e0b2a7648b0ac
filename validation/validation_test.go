package validation

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/diagnostic/diagnostictest"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/qualified"
	"github.com/georgepadayatti/trustval/report"
)

func validate(t *testing.T, data *diagnostic.DiagnosticData, opts ...Option) *report.Reports {
	t.Helper()
	v := NewValidator(policy.DefaultPolicy(), opts...)
	reports, err := v.Validate(context.Background(), data)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return reports
}

func expectConclusion(t *testing.T, c *ades.Conclusion, ind ades.Indication, sub ades.SubIndication) {
	t.Helper()
	if c == nil {
		t.Fatalf("Expected %s/%s, got nil conclusion", ind, sub)
	}
	if c.Indication != ind || c.SubIndication != sub {
		t.Errorf("Expected %s/%s, got %s/%s", ind, sub, c.Indication, c.SubIndication)
	}
}

func levelsOf(d *report.DetailedSignature) []policy.ValidationLevel {
	var out []policy.ValidationLevel
	for _, l := range d.Levels {
		out = append(out, l.Level)
	}
	return out
}

// freshScenario is a valid signature whose signer has fresh revocation data
// at the validation time.
func freshScenario() *diagnostictest.Scenario {
	s := diagnostictest.NewScenario()
	s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.ValidationTime.Add(-time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	return s
}

func TestValidSignatureAtBasicLevel(t *testing.T) {
	s := diagnostictest.NewScenario()
	reports := validate(t, s.Build(), WithLevel(policy.BasicSignatures))

	if reports.Simple.SignaturesCount != 1 || reports.Simple.ValidSignaturesCount != 1 {
		t.Fatalf("Expected 1 valid signature out of 1, got %d out of %d",
			reports.Simple.ValidSignaturesCount, reports.Simple.SignaturesCount)
	}
	entry := reports.Simple.Signatures[0]
	if entry.Indication != ades.IndicationTotalPassed {
		t.Errorf("Expected TOTAL_PASSED, got %s", entry.Indication)
	}
	d, ok := reports.Detailed.Signature(s.Signature.ID)
	if !ok {
		t.Fatalf("Expected signature %s in the detailed report", s.Signature.ID)
	}
	if diff := cmp.Diff([]policy.ValidationLevel{policy.BasicSignatures}, levelsOf(d)); diff != "" {
		t.Errorf("Levels mismatch (-want +got):\n%s", diff)
	}
	expectConclusion(t, d.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
}

func TestHashFailureAtEveryLevel(t *testing.T) {
	for _, level := range policy.ValidationLevels {
		t.Run(level.String(), func(t *testing.T) {
			s := freshScenario()
			s.Signature.ReferenceDataIntact = false
			reports := validate(t, s.Build(), WithLevel(level))

			d, _ := reports.Detailed.Signature(s.Signature.ID)
			if len(d.Levels) != int(level) {
				t.Fatalf("Expected %d level results, got %d", int(level), len(d.Levels))
			}
			for _, l := range d.Levels {
				expectConclusion(t, l.Conclusion, ades.IndicationFailed, ades.SubIndicationHashFailure)
			}
			if reports.Simple.ValidSignaturesCount != 0 {
				t.Errorf("Expected no valid signature, got %d", reports.Simple.ValidSignaturesCount)
			}
		})
	}
}

func TestStaleRevocationRefinesLongTermLevel(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.SigningTime.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)

	basic := validate(t, s.Build(), WithLevel(policy.BasicSignatures))
	d, _ := basic.Detailed.Signature(s.Signature.ID)
	expectConclusion(t, d.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)

	ltd := validate(t, s.Build(), WithLevel(policy.LongTermData))
	d, _ = ltd.Detailed.Signature(s.Signature.ID)
	expectConclusion(t, d.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationRevocationOutOfBoundsNoPOE)
	expectConclusion(t, d.Levels[0].Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	if ltd.Simple.Signatures[0].Indication != ades.IndicationIndeterminate {
		t.Errorf("Expected INDETERMINATE in the simple report, got %s", ltd.Simple.Signatures[0].Indication)
	}
}

func TestFreshRevocationPassesEveryLevel(t *testing.T) {
	s := freshScenario()
	reports := validate(t, s.Build())

	d, _ := reports.Detailed.Signature(s.Signature.ID)
	if diff := cmp.Diff(policy.ValidationLevels, levelsOf(d)); diff != "" {
		t.Errorf("Levels mismatch (-want +got):\n%s", diff)
	}
	for _, l := range d.Levels {
		expectConclusion(t, l.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	}
	found := false
	for _, tok := range reports.Detailed.Tokens {
		if tok.ID == "ocsp-1" {
			found = true
			if len(tok.Evaluations) != 1 || !tok.Evaluations[0].Passed() {
				t.Errorf("Expected one passed evaluation of ocsp-1, got %d", len(tok.Evaluations))
			}
		}
	}
	if !found {
		t.Errorf("Expected the revocation data to be evaluated at LONG_TERM_DATA")
	}
}

func TestTimestampResolvesExpiredCertificate(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signer.NotAfter = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	unit, _ := s.TSA("tsa")
	at := diagnostictest.SigningTime.Add(30 * time.Minute)
	s.Timestamp("tst-1", diagnostic.TimestampSignature, at, unit, s.Signature)

	reports := validate(t, s.Build(), WithLevel(policy.Timestamps))
	d, _ := reports.Detailed.Signature(s.Signature.ID)

	expectConclusion(t, d.Levels[0].Conclusion, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE)
	expectConclusion(t, d.Levels[1].Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
	if d.Levels[1].Note == "" {
		t.Errorf("Expected the upgrade to be explained")
	}
	if d.Levels[1].BestSignatureTime == nil || !d.Levels[1].BestSignatureTime.Equal(at) {
		t.Errorf("Expected best signature time %v, got %v", at, d.Levels[1].BestSignatureTime)
	}
	if diff := cmp.Diff([]string{"tst-1"}, d.Timestamps); diff != "" {
		t.Errorf("Timestamps mismatch (-want +got):\n%s", diff)
	}
}

func TestTimestampOrderFailure(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	doc := s.Build().SignerData[0]
	s.Timestamp("tst-sig", diagnostic.TimestampSignature, diagnostictest.SigningTime.Add(30*time.Minute), unit, s.Signature)
	s.Timestamp("tst-content", diagnostic.TimestampContent, diagnostictest.SigningTime.Add(2*time.Hour), unit, doc)

	reports := validate(t, s.Build(), WithLevel(policy.Timestamps))
	d, _ := reports.Detailed.Signature(s.Signature.ID)
	expectConclusion(t, d.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationTimestampOrderFailure)

	found := false
	for _, m := range d.Conclusion.Errors {
		if m.Key == KeyTimestampOrder {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a %s error, got %v", KeyTimestampOrder, d.Conclusion.Errors)
	}
}

func TestArchivalProofOfExistence(t *testing.T) {
	s := freshScenario()
	unit, _ := s.TSA("tsa")
	ats := diagnostictest.SigningTime.Add(2 * time.Hour)
	s.Timestamp("ats-1", diagnostic.TimestampArchive, ats, unit, s.Signature, s.Signer)
	ers := s.Timestamp("ers-1", diagnostic.TimestampEvidenceRecord, diagnostictest.SigningTime.Add(3*time.Hour), unit)
	s.EvidenceRecord("er-1", []*diagnostic.Timestamp{ers}, s.Signature)

	reports := validate(t, s.Build())
	d, _ := reports.Detailed.Signature(s.Signature.ID)
	expectConclusion(t, d.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)

	ltd := d.Levels[2]
	if ltd.BestSignatureTime == nil || !ltd.BestSignatureTime.Equal(diagnostictest.ValidationTime) {
		t.Errorf("Expected the archive timestamp not to count at LONG_TERM_DATA, got %v", ltd.BestSignatureTime)
	}
	archival := d.Levels[3]
	if archival.BestSignatureTime == nil || !archival.BestSignatureTime.Equal(ats) {
		t.Errorf("Expected best signature time %v at ARCHIVAL_DATA, got %v", ats, archival.BestSignatureTime)
	}
	if diff := cmp.Diff([]string{"er-1"}, d.EvidenceRecords); diff != "" {
		t.Errorf("Evidence records mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveTimestampVouchesForExpiredTimestamp(t *testing.T) {
	s := freshScenario()
	unit, _ := s.TSA("tsa")
	unit.NotAfter = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	at := diagnostictest.SigningTime.Add(30 * time.Minute)
	tst := s.Timestamp("tst-1", diagnostic.TimestampSignature, at, unit, s.Signature)
	archiveUnit, _ := s.TSA("archive")
	ats := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Timestamp("ats-1", diagnostic.TimestampArchive, ats, archiveUnit, s.Signature, tst, s.Signer, unit)

	reports := validate(t, s.Build())
	d, _ := reports.Detailed.Signature(s.Signature.ID)
	expectConclusion(t, d.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)

	best := func(l policy.ValidationLevel) *time.Time {
		for _, r := range d.Levels {
			if r.Level == l {
				return r.BestSignatureTime
			}
		}
		return nil
	}
	if got := best(policy.Timestamps); got == nil || !got.Equal(diagnostictest.ValidationTime) {
		t.Errorf("Expected the expired timestamp not to count at TIMESTAMPS, got %v", got)
	}
	if got := best(policy.ArchivalData); got == nil || !got.Equal(at) {
		t.Errorf("Expected best signature time %v at ARCHIVAL_DATA, got %v", at, got)
	}

	for _, tok := range reports.Detailed.Tokens {
		if tok.ID != tst.ID {
			continue
		}
		first, last := tok.Evaluations[0], tok.Evaluations[len(tok.Evaluations)-1]
		expectConclusion(t, first.Conclusion, ades.IndicationIndeterminate, ades.SubIndicationOutOfBoundsNoPOE)
		expectConclusion(t, last.Conclusion, ades.IndicationPassed, ades.SubIndicationNone)
		if last.Level != policy.ArchivalData {
			t.Errorf("Expected the last evaluation at %s, got %s", policy.ArchivalData, last.Level)
		}
		if last.PSV == nil || last.PSV.POE == nil || last.PSV.POE.ProvenBy != "ats-1" {
			t.Errorf("Expected a proof of existence by ats-1, got %+v", last.PSV)
		}
		return
	}
	t.Errorf("Expected %s in the detailed report", tst.ID)
}

func TestDeterministicReports(t *testing.T) {
	build := func() *diagnostic.DiagnosticData {
		s := freshScenario()
		unit, _ := s.TSA("tsa")
		s.Timestamp("tst-1", diagnostic.TimestampSignature, diagnostictest.SigningTime.Add(time.Minute), unit, s.Signature)
		leaf, root := s.TrustedChain("bob")
		second := s.Builder.Signature("sig-2", leaf)
		second.CertificateChainIDs = []string{leaf.ID, root.ID}
		s.CounterSignature("sig-3", s.Signature, leaf)
		return s.Build()
	}

	first := validate(t, build(), WithWorkers(1))
	second := validate(t, build(), WithWorkers(8))

	a, err := first.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	b, err := second.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Expected identical JSON reports, diff:\n%s", cmp.Diff(string(a), string(b)))
	}

	x1, err := first.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	x2, err := second.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	if !bytes.Equal(x1, x2) {
		t.Errorf("Expected identical XML reports")
	}
}

func TestReportCountsMatchDetailedReport(t *testing.T) {
	s := freshScenario()
	leaf, root := s.TrustedChain("bob")
	broken := s.Builder.Signature("sig-2", leaf)
	broken.CertificateChainIDs = []string{leaf.ID, root.ID}
	broken.SignatureIntact = false

	reports := validate(t, s.Build(), WithLevel(policy.BasicSignatures))

	valid := 0
	for _, d := range reports.Detailed.Signatures {
		if d.Conclusion.IsPassed() {
			valid++
		}
	}
	if reports.Simple.SignaturesCount != len(reports.Detailed.Signatures) {
		t.Errorf("Expected %d signatures, got %d", len(reports.Detailed.Signatures), reports.Simple.SignaturesCount)
	}
	if reports.Simple.ValidSignaturesCount != valid || valid != 1 {
		t.Errorf("Expected 1 valid signature, got simple=%d detailed=%d", reports.Simple.ValidSignaturesCount, valid)
	}
}

func TestMonotonicLevels(t *testing.T) {
	r := &Run{log: zap.NewNop()}
	sr := &SignatureResult{SignatureID: "sig-1"}

	r.appendLevel(sr, LevelResult{Level: policy.BasicSignatures, Conclusion: ades.Failed(ades.SubIndicationSigCryptoFailure)})
	r.appendLevel(sr, LevelResult{Level: policy.Timestamps, Conclusion: ades.Passed()})
	r.appendLevel(sr, LevelResult{Level: policy.LongTermData, Conclusion: ades.Indeterminate(ades.SubIndicationTryLater)})

	if len(sr.Levels) != 3 {
		t.Fatalf("Expected 3 level results, got %d", len(sr.Levels))
	}
	for _, l := range sr.Levels {
		expectConclusion(t, l.Conclusion, ades.IndicationFailed, ades.SubIndicationSigCryptoFailure)
	}
	if sr.Levels[1].Note == "" {
		t.Errorf("Expected the kept FAILED to be explained")
	}

	up := &SignatureResult{SignatureID: "sig-2"}
	r.appendLevel(up, LevelResult{Level: policy.BasicSignatures, Conclusion: ades.Indeterminate(ades.SubIndicationOutOfBoundsNoPOE)})
	r.appendLevel(up, LevelResult{Level: policy.Timestamps, Conclusion: ades.Passed()})
	if up.Final().Note == "" {
		t.Errorf("Expected the upgrade from INDETERMINATE to be explained")
	}
	if !up.Conclusion().IsPassed() {
		t.Errorf("Expected PASSED, got %s", up.Conclusion())
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewValidator(policy.DefaultPolicy()).Validate(ctx, diagnostictest.NewScenario().Build())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if IsConfigError(err) {
		t.Errorf("Expected cancellation not to be a configuration error")
	}
}

func TestConfigurationErrors(t *testing.T) {
	incomplete := policy.DefaultPolicy()
	incomplete.Signature = nil

	tests := []struct {
		name   string
		policy *policy.Policy
		opts   []Option
		data   *diagnostic.DiagnosticData
		want   error
	}{
		{name: "missing policy", policy: nil, data: &diagnostic.DiagnosticData{}, want: ErrMissingPolicy},
		{name: "missing constraint", policy: incomplete, data: &diagnostic.DiagnosticData{}, want: ErrMissingConstraint},
		{
			name:   "invalid level",
			policy: policy.DefaultPolicy(),
			opts:   []Option{WithLevel(policy.ValidationLevel(9))},
			data:   &diagnostic.DiagnosticData{},
			want:   ErrInvalidValidationLevel,
		},
		{name: "missing data", policy: policy.DefaultPolicy(), want: ErrMissingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := NewValidator(tt.policy, tt.opts...).Validate(context.Background(), tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("Expected a *ConfigError, got %T", err)
			}
			if reports != nil {
				t.Errorf("Expected no reports on a configuration error")
			}
		})
	}
}

func TestStructuralProblemsDoNotAbort(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := diagnostictest.NewScenario()
	leaf, _ := s.TrustedChain("bob")
	dangling := s.Builder.Signature("sig-2", leaf)
	dangling.SigningCertificateID = "missing-cert"

	reports := validate(t, s.Build(), WithLevel(policy.BasicSignatures), WithLogger(zap.New(core)))

	if reports.Simple.SignaturesCount != 2 {
		t.Fatalf("Expected 2 signatures, got %d", reports.Simple.SignaturesCount)
	}
	first, _ := reports.Simple.Signature("sig-1")
	if !first.Valid() {
		t.Errorf("Expected sig-1 to stay valid, got %s", first.Indication)
	}
	second, _ := reports.Simple.Signature("sig-2")
	if second.Indication != ades.IndicationIndeterminate {
		t.Errorf("Expected sig-2 INDETERMINATE, got %s", second.Indication)
	}
	if logs.FilterMessage("Diagnostic data problem").Len() == 0 {
		t.Errorf("Expected the structural problem to be logged")
	}
	if logs.FilterMessage("Validation completed").Len() != 1 {
		t.Errorf("Expected one summary log entry")
	}
}

func TestETSIReportToggle(t *testing.T) {
	data := diagnostictest.NewScenario().Build()

	on := validate(t, data, WithLevel(policy.BasicSignatures))
	if on.ETSI == nil || len(on.ETSI.SignatureValidationReport) != 1 {
		t.Fatalf("Expected one ETSI signature report")
	}
	off := validate(t, data, WithLevel(policy.BasicSignatures), WithETSIValidationReport(false))
	if off.ETSI != nil {
		t.Errorf("Expected the ETSI report to be omitted")
	}
}

func TestQualificationFollowsPolicy(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signer.QCStatements = &diagnostic.QCStatements{Compliance: true, SSCD: true, Types: []string{string(qualified.QcCertTypeEsign)}}
	next := diagnostictest.ValidationTime.Add(30 * 24 * time.Hour)
	analysis := &qualified.TrustedListAnalysis{Lists: []qualified.TrustedList{{
		Country:    "BE",
		IssueDate:  diagnostictest.ValidationTime.Add(-24 * time.Hour),
		NextUpdate: &next,
		WellSigned: true,
		Services: []qualified.TrustService{{
			ID:             "svc-ca",
			TypeURI:        qualified.CAQCUri,
			CertificateIDs: []string{s.Root.ID},
			History: []qualified.ServiceStatus{{
				Status:    qualified.StatusGrantedURI,
				StartDate: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
		}},
	}}}

	reports := validate(t, s.Build(), WithLevel(policy.BasicSignatures), WithTrustedListAnalysis(analysis))
	if got := reports.Simple.Signatures[0].Qualification; got != qualified.QESig {
		t.Errorf("Expected %s, got %s", qualified.QESig, got)
	}

	p := policy.DefaultPolicy()
	p.EIDAS = nil
	reports, err := NewValidator(p, WithLevel(policy.BasicSignatures), WithTrustedListAnalysis(analysis)).
		Validate(context.Background(), s.Build())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if reports.Simple.Signatures[0].Qualification != "" || reports.Detailed.Signatures[0].Qualification != nil {
		t.Errorf("Expected no qualification when eIDAS constraints are disabled")
	}
}

func TestValidationTimeSelection(t *testing.T) {
	data := diagnostictest.NewScenario().Build()
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	reports := validate(t, data, WithLevel(policy.BasicSignatures), WithValidationTime(fixed))
	if !reports.Simple.ValidationTime.Equal(fixed) {
		t.Errorf("Expected validation time %v, got %v", fixed, reports.Simple.ValidationTime)
	}
	reports = validate(t, data, WithLevel(policy.BasicSignatures))
	if !reports.Simple.ValidationTime.Equal(diagnostictest.ValidationTime) {
		t.Errorf("Expected the validation date of the data, got %v", reports.Simple.ValidationTime)
	}
}
