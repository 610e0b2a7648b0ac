package report_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/diagnostic/diagnostictest"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/report"
	"github.com/georgepadayatti/trustval/validation"
)

func validate(t *testing.T, data *diagnostic.DiagnosticData, opts ...validation.Option) *report.Reports {
	t.Helper()
	reports, err := validation.NewValidator(policy.DefaultPolicy(), opts...).Validate(context.Background(), data)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return reports
}

func archivalScenario() *diagnostictest.Scenario {
	s := diagnostictest.NewScenario()
	s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.ValidationTime.Add(-time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	unit, _ := s.TSA("tsa")
	s.Timestamp("ats-1", diagnostic.TimestampArchive, diagnostictest.SigningTime.Add(2*time.Hour), unit, s.Signature, s.Signer)
	return s
}

func TestNoSignatureFound(t *testing.T) {
	b := diagnostictest.New()
	b.CA("lonely-root")
	reports := validate(t, b.Build())

	if reports.Simple.SignaturesCount != 0 || len(reports.Simple.Signatures) != 0 {
		t.Errorf("Expected no signature entries, got %d", len(reports.Simple.Signatures))
	}
	if len(reports.ETSI.SignatureValidationReport) != 1 {
		t.Fatalf("Expected exactly one ETSI signature report, got %d", len(reports.ETSI.SignatureValidationReport))
	}
	got := reports.ETSI.SignatureValidationReport[0].SignatureValidationStatus.MainIndication
	if got != ades.IndicationNoSignatureFound.URN() {
		t.Errorf("Expected %s, got %s", ades.IndicationNoSignatureFound.URN(), got)
	}
	if _, ok := reports.ETSI.Object("C-lonely-root"); !ok {
		t.Errorf("Expected the certificate to be a validation object")
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	at := diagnostictest.ValidationTime
	reports := report.NewAssembler(report.DefaultConfig()).Assemble(&report.Input{
		Level:          policy.BasicSignatures,
		ValidationTime: at,
	})

	if reports.Simple.SignaturesCount != 0 {
		t.Errorf("Expected 0 signatures, got %d", reports.Simple.SignaturesCount)
	}
	if len(reports.Detailed.Signatures) != 0 {
		t.Errorf("Expected an empty detailed report, got %d signatures", len(reports.Detailed.Signatures))
	}
	if len(reports.ETSI.SignatureValidationReport) != 1 {
		t.Fatalf("Expected one NO_SIGNATURE_FOUND report, got %d", len(reports.ETSI.SignatureValidationReport))
	}
	if _, err := reports.XML(); err != nil {
		t.Errorf("XML() error = %v", err)
	}
}

func TestSimpleCountsFollowConclusions(t *testing.T) {
	s := diagnostictest.NewScenario()
	leaf, root := s.TrustedChain("bob")
	failed := s.Builder.Signature("sig-2", leaf)
	failed.CertificateChainIDs = []string{leaf.ID, root.ID}
	failed.ReferenceDataIntact = false
	s.CounterSignature("sig-3", s.Signature, leaf)

	reports := validate(t, s.Build(), validation.WithLevel(policy.BasicSignatures))

	tests := []struct {
		id   string
		want ades.Indication
	}{
		{id: "sig-1", want: ades.IndicationTotalPassed},
		{id: "sig-2", want: ades.IndicationTotalFailed},
		{id: "sig-3", want: ades.IndicationTotalPassed},
	}
	for _, tt := range tests {
		entry, ok := reports.Simple.Signature(tt.id)
		if !ok {
			t.Fatalf("Expected an entry for %s", tt.id)
		}
		if entry.Indication != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.id, tt.want, entry.Indication)
		}
		d, _ := reports.Detailed.Signature(tt.id)
		if d.Conclusion.Indication.Collapse() != entry.Indication {
			t.Errorf("%s: simple %s does not match detailed %s", tt.id, entry.Indication, d.Conclusion.Indication)
		}
	}
	if reports.Simple.SignaturesCount != 3 || reports.Simple.ValidSignaturesCount != 2 {
		t.Errorf("Expected 2 valid signatures out of 3, got %d out of %d",
			reports.Simple.ValidSignaturesCount, reports.Simple.SignaturesCount)
	}
	counter, _ := reports.Simple.Signature("sig-3")
	if counter.ParentID != "sig-1" {
		t.Errorf("Expected parent sig-1, got %q", counter.ParentID)
	}
}

func TestSignerNameIsNormalized(t *testing.T) {
	s := diagnostictest.NewScenario()
	s.Signature.SignerName = " José García "

	reports := validate(t, s.Build(), validation.WithLevel(policy.BasicSignatures))
	if got := reports.Simple.Signatures[0].SignerName; got != "José García" {
		t.Errorf("Expected the NFC form, got %q", got)
	}

	text := reports.Simple.Text()
	for _, want := range []string{"=== VALIDATION REPORT ===", "Document: document.pdf", "Signatures: 1 total, 1 valid", "Result: TOTAL_PASSED"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected text report to contain %q, got:\n%s", want, text)
		}
	}
}

func TestReportIDIsStable(t *testing.T) {
	data := diagnostictest.NewScenario().Build()
	first := validate(t, data, validation.WithLevel(policy.BasicSignatures))
	second := validate(t, data, validation.WithLevel(policy.BasicSignatures))

	if first.ETSI.ID != second.ETSI.ID {
		t.Errorf("Expected the same report id, got %s and %s", first.ETSI.ID, second.ETSI.ID)
	}
	id, err := uuid.Parse(first.ETSI.ID)
	if err != nil {
		t.Fatalf("Expected a UUID, got %q: %v", first.ETSI.ID, err)
	}
	if id.Version() != 5 {
		t.Errorf("Expected a name based UUID, got version %d", id.Version())
	}

	cfg := report.DefaultConfig()
	cfg.Namespace = "urn:example:reports"
	other := validate(t, data, validation.WithLevel(policy.BasicSignatures), validation.WithReportConfig(cfg))
	if other.ETSI.ID == first.ETSI.ID {
		t.Errorf("Expected the namespace to scope the report id")
	}
}

func TestArchiveTimestampIsProofOfExistence(t *testing.T) {
	s := archivalScenario()
	reports := validate(t, s.Build())
	ats := diagnostictest.SigningTime.Add(2 * time.Hour)

	svr := reports.ETSI.SignatureValidationReport[0]
	if svr.SignatureValidationProcess != report.ProcessLTA {
		t.Errorf("Expected %s, got %s", report.ProcessLTA, svr.SignatureValidationProcess)
	}
	best := svr.ValidationTimeInfo.BestSignatureTime
	if best == nil || !best.POETime.Equal(ats) {
		t.Fatalf("Expected best signature time %v, got %+v", ats, best)
	}
	if diff := cmp.Diff(&report.VOReference{VOReference: "T-ats-1"}, best.POEObject); diff != "" {
		t.Errorf("POE object mismatch (-want +got):\n%s", diff)
	}
	if got := svr.SignatureValidationStatus.MainIndication; got != ades.IndicationTotalPassed.URN() {
		t.Errorf("Expected %s, got %s", ades.IndicationTotalPassed.URN(), got)
	}

	signer, ok := reports.ETSI.Object("C-" + s.Signer.ID)
	if !ok {
		t.Fatalf("Expected a validation object for the signer certificate")
	}
	want := &report.POE{
		POETime:     ats,
		TypeOfProof: report.POETypeProvided,
		POEObject:   &report.VOReference{VOReference: "T-ats-1"},
	}
	if diff := cmp.Diff(want, signer.POE); diff != "" {
		t.Errorf("Signer POE mismatch (-want +got):\n%s", diff)
	}

	tst, ok := reports.ETSI.Object("T-ats-1")
	if !ok || tst.ObjectType != report.ObjectTypeTimestamp {
		t.Fatalf("Expected a timestamp validation object for ats-1")
	}
	if tst.ValidationReport == nil || tst.ValidationReport.SignatureValidationStatus.MainIndication != ades.IndicationTotalPassed.URN() {
		t.Errorf("Expected the archive timestamp to be reported as passed")
	}
}

func TestDetailedReportKeepsEveryLevel(t *testing.T) {
	s := archivalScenario()
	reports := validate(t, s.Build())

	d, ok := reports.Detailed.Signature(s.Signature.ID)
	if !ok {
		t.Fatalf("Expected the signature in the detailed report")
	}
	if len(d.Levels) != len(policy.ValidationLevels) {
		t.Fatalf("Expected %d levels, got %d", len(policy.ValidationLevels), len(d.Levels))
	}
	for i, l := range d.Levels {
		if l.Level != policy.ValidationLevels[i] {
			t.Errorf("Expected level %s at %d, got %s", policy.ValidationLevels[i], i, l.Level)
		}
		if l.BBB == nil {
			t.Errorf("Expected building blocks at %s", l.Level)
		}
	}
	if diff := cmp.Diff([]string{"ats-1"}, d.Timestamps); diff != "" {
		t.Errorf("Timestamps mismatch (-want +got):\n%s", diff)
	}
	for _, tok := range reports.Detailed.Tokens {
		if tok.Kind == diagnostic.KindSignature.String() {
			t.Errorf("Expected signatures to be excluded from tokens, got %s", tok.ID)
		}
	}
}

func TestETSIReportDisabled(t *testing.T) {
	cfg := report.DefaultConfig()
	cfg.ETSIValidationReport = false
	reports := validate(t, diagnostictest.NewScenario().Build(), validation.WithReportConfig(cfg))

	if reports.ETSI != nil {
		t.Fatalf("Expected no ETSI report")
	}
	out, err := reports.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	if bytes.Contains(out, []byte("<ValidationReport")) {
		t.Errorf("Expected the XML output to omit the ETSI report")
	}
}

func TestSerialization(t *testing.T) {
	reports := validate(t, archivalScenario().Build())

	xmlOut, err := reports.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<ValidationReport xmlns="` + report.ETSINamespace + `"`,
		`<ValidationLevel>ARCHIVAL_DATA</ValidationLevel>`,
	} {
		if !bytes.Contains(xmlOut, []byte(want)) {
			t.Errorf("Expected XML to contain %q", want)
		}
	}

	jsonOut, err := reports.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	for _, want := range []string{`"simpleReport"`, `"detailedReport"`, `"etsiValidationReport"`, `"ARCHIVAL_DATA"`} {
		if !bytes.Contains(jsonOut, []byte(want)) {
			t.Errorf("Expected JSON to contain %s", want)
		}
	}

	for name, marshal := range map[string]func() ([]byte, error){
		"simple":   reports.Simple.XML,
		"detailed": reports.Detailed.XML,
		"etsi":     reports.ETSI.XML,
	} {
		if _, err := marshal(); err != nil {
			t.Errorf("%s: XML() error = %v", name, err)
		}
	}
}
