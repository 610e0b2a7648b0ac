package poe

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/diagnostic/diagnostictest"
)

var now = diagnostictest.ValidationTime

func TestArchiveTimestampProvesCoveredMaterial(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	ocsp := s.Revocation("ocsp-1", diagnostic.RevocationOCSP, diagnostictest.SigningTime.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	at := diagnostictest.SigningTime.Add(24 * time.Hour)
	arc := s.Timestamp("arc", diagnostic.TimestampArchive, at, unit, s.Signature, s.Signer, ocsp)

	m := Collect(s.Index(), now)
	for _, id := range []string{s.Signature.ID, s.Signer.ID, ocsp.ID} {
		got := m.Lowest(id)
		if !got.Time.Equal(at) || got.ProvenBy != arc.ID {
			t.Errorf("Lowest(%s) = %+v, want %v proven by %s", id, got, at, arc.ID)
		}
		if got.Type != TypeArchiveTimestamp {
			t.Errorf("Lowest(%s).Type = %s", id, got.Type)
		}
	}
	if got := m.Lowest(s.Root.ID); !got.IsFallback() || !got.Time.Equal(now) {
		t.Errorf("uncovered root: Lowest = %+v, want validation time", got)
	}
	if len(m.Inconsistencies()) != 0 {
		t.Errorf("unexpected inconsistencies: %v", m.Inconsistencies())
	}
}

func TestNestedTimestamps(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	t1 := diagnostictest.SigningTime.Add(time.Hour)
	t2 := t1.Add(30 * 24 * time.Hour)
	sigTST := s.Timestamp("tst-sig", diagnostic.TimestampSignature, t1, unit, s.Signature)
	arc := s.Timestamp("arc", diagnostic.TimestampArchive, t2, unit, s.Signature, sigTST)

	m := Collect(s.Index(), now)
	want := []POE{
		{TokenID: s.Signature.ID, Time: t1, ProvenBy: sigTST.ID, Type: TypeTimestamp},
		{TokenID: s.Signature.ID, Time: t2, ProvenBy: arc.ID, Type: TypeArchiveTimestamp},
		{TokenID: s.Signature.ID, Time: now, Type: TypeValidationTime},
	}
	if diff := cmp.Diff(want, m.Candidates(s.Signature.ID)); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
	// the signature timestamp proves itself
	if got := m.Lowest(sigTST.ID); got.ProvenBy != sigTST.ID {
		t.Errorf("Lowest(tst-sig) = %+v", got)
	}
	// rejecting the signature timestamp falls back to the archive timestamp
	got := m.LowestProvenBy(s.Signature.ID, func(id string) bool { return id != sigTST.ID })
	if got.ProvenBy != arc.ID {
		t.Errorf("LowestProvenBy = %+v, want proof by %s", got, arc.ID)
	}
	got = m.LowestProvenBy(s.Signature.ID, func(string) bool { return false })
	if !got.IsFallback() {
		t.Errorf("LowestProvenBy rejecting all = %+v, want fallback", got)
	}
}

func TestBrokenTimestampProvesNothing(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	ts := s.Timestamp("tst", diagnostic.TimestampSignature, diagnostictest.SigningTime, unit, s.Signature)
	ts.MessageImprintIntact = false

	m := Collect(s.Index(), now)
	if got := m.Lowest(s.Signature.ID); !got.IsFallback() {
		t.Errorf("Lowest = %+v, want validation time", got)
	}
}

func TestInconsistentEdges(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	at := diagnostictest.SigningTime
	late := s.Revocation("crl-late", diagnostic.RevocationCRL, at.Add(48*time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	ts := s.Timestamp("tst", diagnostic.TimestampValidationData, at.Add(time.Hour), unit, late)
	ts.TimestampedObjects = append(ts.TimestampedObjects, diagnostictest.Cover(ts))

	m := Collect(s.Index(), now)
	if got := m.Lowest(late.ID); !got.IsFallback() {
		t.Errorf("Lowest(late revocation) = %+v, want validation time", got)
	}
	if got := m.Lowest(ts.ID); got.ProvenBy != ts.ID {
		t.Errorf("Lowest(tst) = %+v, want own time", got)
	}
	// timestamps are visited before revocations
	want := []Inconsistency{
		{CovererID: ts.ID, CoveredID: ts.ID, Reason: "token covers itself"},
		{CovererID: ts.ID, CoveredID: late.ID, Reason: "covered token was produced after the covering token"},
	}
	if diff := cmp.Diff(want, m.Inconsistencies()); diff != "" {
		t.Errorf("Inconsistencies mismatch (-want +got):\n%s", diff)
	}
}

func TestEvidenceRecordCycle(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	at := diagnostictest.SigningTime.Add(72 * time.Hour)
	ats1 := s.Timestamp("ats-1", diagnostic.TimestampEvidenceRecord, at, unit)
	ats2 := s.Timestamp("ats-2", diagnostic.TimestampEvidenceRecord, at, unit)
	er1 := s.EvidenceRecord("er-1", []*diagnostic.Timestamp{ats1}, s.Signature)
	er2 := s.EvidenceRecord("er-2", []*diagnostic.Timestamp{ats2}, er1)
	er1.CoveredObjects = append(er1.CoveredObjects, diagnostictest.Cover(er2))

	m := Collect(s.Index(), now)
	if got := m.Lowest(s.Signature.ID); !got.Time.Equal(at) {
		t.Errorf("Lowest(signature) = %+v, want %v", got, at)
	}
	for _, id := range []string{er1.ID, er2.ID} {
		var provers []string
		for _, p := range m.Candidates(id) {
			provers = append(provers, p.ProvenBy)
		}
		if diff := cmp.Diff([]string{er1.ID, er2.ID, ""}, provers); diff != "" {
			t.Errorf("Candidates(%s) provers mismatch (-want +got):\n%s", id, diff)
		}
	}
}

func TestMutuallyCoveringEvidenceRecords(t *testing.T) {
	const k = 24
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	at := diagnostictest.SigningTime.Add(72 * time.Hour)
	ats := s.Timestamp("ats-0", diagnostic.TimestampEvidenceRecord, at, unit)

	records := make([]*diagnostic.EvidenceRecord, k)
	for i := range records {
		var timestamps []*diagnostic.Timestamp
		if i == 0 {
			timestamps = append(timestamps, ats)
		}
		records[i] = s.EvidenceRecord(fmt.Sprintf("er-%02d", i), timestamps, s.Signature)
	}
	for _, er := range records {
		for _, other := range records {
			if other != er {
				er.CoveredObjects = append(er.CoveredObjects, diagnostictest.Cover(other))
			}
		}
	}

	start := time.Now()
	m := Collect(s.Index(), now)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Collect took %s for %d mutually covering records", elapsed, k)
	}
	for _, id := range []string{s.Signature.ID, records[0].ID, records[k-1].ID} {
		got := m.Lowest(id)
		if !got.Time.Equal(at) || got.ProvenBy != records[0].ID {
			t.Errorf("Lowest(%s) = %+v, want %v proven by %s", id, got, at, records[0].ID)
		}
	}
	if len(m.Inconsistencies()) != 0 {
		t.Errorf("unexpected inconsistencies: %v", m.Inconsistencies())
	}
}

func TestFutureTimestampIgnored(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	s.Timestamp("tst-future", diagnostic.TimestampSignature, now.Add(time.Hour), unit, s.Signature)

	m := Collect(s.Index(), now)
	if got := m.Lowest(s.Signature.ID); !got.IsFallback() {
		t.Errorf("Lowest = %+v, want validation time", got)
	}
}

func TestLowerBound(t *testing.T) {
	s := diagnostictest.NewScenario()
	unit, _ := s.TSA("tsa")
	base := diagnostictest.SigningTime
	ocsp := s.Revocation("ocsp", diagnostic.RevocationOCSP, base.Add(time.Hour), s.Root, s.Signer, diagnostic.StatusGood)
	sigTST := s.Timestamp("tst-sig", diagnostic.TimestampSignature, base.Add(2*time.Hour), unit, s.Signature)
	vd := s.Timestamp("tst-vd", diagnostic.TimestampValidationData, base.Add(3*time.Hour), unit, s.Signature, sigTST, ocsp, s.Signer, s.Root)
	s.Timestamp("arc", diagnostic.TimestampArchive, base.Add(4*time.Hour), unit, s.Signature, sigTST, vd, ocsp, s.Signer, s.Root, unit)

	x := s.Index()
	m := Collect(x, now)
	for _, tok := range x.Tokens() {
		id := tok.TokenID()
		if got := m.Lowest(id); got.Time.After(now) {
			t.Errorf("POE(%s) = %v after validation time", id, got.Time)
		}
		for _, coverID := range x.CoveredBy(id) {
			cover, ok := x.Timestamp(coverID)
			if !ok || !cover.CryptographicallyIntact() {
				continue
			}
			if got := m.Lowest(id); got.Time.After(cover.ProductionTime) {
				t.Errorf("POE(%s) = %v after covering %s at %v", id, got.Time, coverID, cover.ProductionTime)
			}
		}
	}
}
