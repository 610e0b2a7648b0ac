package qualified

import (
	"fmt"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/policy"
)

// EIDASStartDate is the date when eIDAS regulation came into effect.
var EIDASStartDate = time.Date(2016, 7, 1, 0, 0, 0, 0, time.FixedZone("CET", 1*60*60))

// Pre-eIDAS policy OIDs.
const (
	PreEIDASQCPPolicy     = "0.4.0.1456.1.1"
	PreEIDASQCPPlusPolicy = "0.4.0.1456.1.2"
)

// Message keys.
const (
	KeyNoAnalysis     = "qual.trusted-list-analysis"
	KeyTLCountry      = "qual.tl-country"
	KeyTLFreshness    = "qual.tl-freshness"
	KeyTLNotExpired   = "qual.tl-not-expired"
	KeyTLWellSigned   = "qual.tl-well-signed"
	KeyNoService      = "qual.trust-service"
	KeyConflict       = "qual.conflicting-services"
	KeyIssuanceStatus = "qual.qualified-at-issuance"
)

// Engine qualifies signatures and timestamps. It is stateless apart from
// its configuration.
type Engine struct {
	constraints *policy.TrustedListConstraints
	now         time.Time
}

// NewEngine returns an engine applying the trusted list constraints at the
// validation time now.
func NewEngine(c *policy.TrustedListConstraints, now time.Time) *Engine {
	if c == nil {
		c = &policy.TrustedListConstraints{}
	}
	return &Engine{constraints: c, now: now}
}

// QualifySignature determines the qualification of a signature from its
// technical conclusion, its certificate chain (signing certificate first)
// and its best signature time. A FAILED or INDETERMINATE conclusion never
// yields a qualified label.
func (e *Engine) QualifySignature(conclusion *ades.Conclusion, chain []*diagnostic.Certificate, bestSignatureTime time.Time, analysis *TrustedListAnalysis) *SignatureResult {
	res := &SignatureResult{Qualification: NotApplicable, Conclusion: ades.Passed()}
	if analysis == nil {
		res.Conclusion.AddInfo(KeyNoAnalysis, "no trusted list analysis is available")
		return res
	}
	if conclusion == nil || len(chain) == 0 {
		return res
	}

	lists := e.usableLists(analysis, res.Conclusion)
	leaf := chain[0]
	res.AtIssuance = e.qualifyCertificate(leaf, chain[1:], leaf.NotBefore, lists, res.Conclusion)
	res.AtSigningTime = e.qualifyCertificate(leaf, chain[1:], bestSignatureTime, lists, res.Conclusion)

	qc := res.AtIssuance.Qualified && res.AtSigningTime.Qualified
	if !res.AtIssuance.Qualified && res.AtSigningTime.Qualified {
		res.Conclusion.AddWarning(KeyIssuanceStatus, "the certificate was not qualified at its issuance")
	}
	qscd := qc && res.AtSigningTime.KeyManagement.IsQSCD()
	res.Qualification = label(conclusion, qc, qscd, res.AtSigningTime.Type)
	return res
}

// QualifyTimestamp determines whether a timestamp was issued by a qualified
// time-stamping service at its production time. Only a PASSED timestamp is
// qualified at all.
func (e *Engine) QualifyTimestamp(conclusion *ades.Conclusion, chain []*diagnostic.Certificate, productionTime time.Time, analysis *TrustedListAnalysis) *TimestampResult {
	res := &TimestampResult{Qualification: TimestampNotApp, Conclusion: ades.Passed()}
	if analysis == nil {
		res.Conclusion.AddInfo(KeyNoAnalysis, "no trusted list analysis is available")
		return res
	}
	if !conclusion.IsPassed() || len(chain) == 0 {
		return res
	}
	res.Qualification = TSA
	for _, tl := range e.usableLists(analysis, res.Conclusion) {
		for i := range tl.Services {
			svc := &tl.Services[i]
			if svc.TypeURI != QTSTUri || !identifiesAny(svc, chain) {
				continue
			}
			if st, ok := svc.StatusAt(productionTime); ok && st.Granted() {
				res.Qualification = QTSA
				res.ServiceID = svc.ID
				return res
			}
		}
	}
	return res
}

// usableLists applies the trusted list constraints. A list failing a
// constraint at level FAIL is not used.
func (e *Engine) usableLists(a *TrustedListAnalysis, msgs *ades.Conclusion) []*TrustedList {
	c := e.constraints
	var out []*TrustedList
	for i := range a.Lists {
		tl := &a.Lists[i]
		if !c.AcceptableCountries.Accepts(tl.Country) {
			msgs.AddInfo(KeyTLCountry, fmt.Sprintf("trusted list %s is not accepted", tl.Country))
			continue
		}
		usable := true
		if c.Freshness != nil && c.Freshness.Value > 0 {
			usable = tlCheck(msgs, KeyTLFreshness, c.Freshness.Constraint(), e.now.Sub(tl.IssueDate) <= c.Freshness.Value,
				fmt.Sprintf("trusted list %s issued on %s is not fresh", tl.Country, tl.IssueDate.Format("2006-01-02"))) && usable
		}
		usable = tlCheck(msgs, KeyTLNotExpired, c.NotExpired, tl.NextUpdate == nil || tl.NextUpdate.After(e.now),
			fmt.Sprintf("trusted list %s is expired", tl.Country)) && usable
		usable = tlCheck(msgs, KeyTLWellSigned, c.WellSigned, tl.WellSigned,
			fmt.Sprintf("trusted list %s is not well signed", tl.Country)) && usable
		if usable {
			out = append(out, tl)
		}
	}
	return out
}

func tlCheck(msgs *ades.Conclusion, key string, c *policy.Constraint, ok bool, message string) bool {
	if ok {
		return true
	}
	switch policy.LevelOf(c) {
	case policy.Inform:
		msgs.AddInfo(key, message)
	case policy.Warn:
		msgs.AddWarning(key, message)
	case policy.Fail:
		msgs.AddError(key, message)
		return false
	}
	return true
}

// qualifyCertificate evaluates the qualified status of cert at the given
// time against the qualified CA services identifying cert or one of its
// issuers. Contradicting services make the certificate not qualified.
func (e *Engine) qualifyCertificate(cert *diagnostic.Certificate, issuers []*diagnostic.Certificate, at time.Time, lists []*TrustedList, msgs *ades.Conclusion) *CertificateQualification {
	prelim := fromStatements(cert, at)
	chain := append([]*diagnostic.Certificate{cert}, issuers...)

	var found []CertificateQualification
	for _, tl := range lists {
		for i := range tl.Services {
			svc := &tl.Services[i]
			if svc.TypeURI != CAQCUri || !identifiesAny(svc, chain) {
				continue
			}
			st, ok := svc.StatusAt(at)
			if !ok || !st.Granted() {
				continue
			}
			q := applyQualifiers(prelim, st.Qualifiers)
			if types := st.CertificateTypes(); types != nil {
				if q.Type == QcCertTypeUnknown && len(types) == 1 {
					for t := range types {
						q.Type = t
					}
				}
				if !types[q.Type] {
					continue
				}
			}
			q.ServiceID = svc.ID
			q.Country = tl.Country
			found = append(found, q)
		}
	}

	unqualified := &CertificateQualification{CertificateID: cert.ID, Time: at, Type: prelim.Type}
	if len(found) == 0 {
		msgs.AddInfo(KeyNoService, fmt.Sprintf("no granted qualified service for %s at %s", cert.ID, at.Format(time.RFC3339)))
		return unqualified
	}
	for _, q := range found[1:] {
		if q.Qualified != found[0].Qualified || q.Type != found[0].Type || q.KeyManagement != found[0].KeyManagement {
			msgs.AddWarning(KeyConflict, fmt.Sprintf("trust services %s and %s disagree on %s", found[0].ServiceID, q.ServiceID, cert.ID))
			return unqualified
		}
	}
	q := found[0]
	return &q
}

func identifiesAny(svc *TrustService, chain []*diagnostic.Certificate) bool {
	for _, c := range chain {
		if svc.Identifies(c.ID) {
			return true
		}
	}
	return false
}

// fromStatements derives the preliminary status from the certificate's QC
// statements and, before eIDAS, from its certificate policies.
func fromStatements(cert *diagnostic.Certificate, at time.Time) CertificateQualification {
	q := CertificateQualification{CertificateID: cert.ID, Time: at}
	if s := cert.QCStatements; s != nil {
		q.Qualified = s.Compliance
		if s.Compliance && s.SSCD {
			q.KeyManagement = KeyMgmtQSCD
		}
		for _, t := range s.Types {
			switch ct := QcCertType(t); ct {
			case QcCertTypeEsign, QcCertTypeEseal, QcCertTypeWeb:
				q.Type = ct
			}
			if q.Type != QcCertTypeUnknown {
				break
			}
		}
	}
	if at.Before(EIDASStartDate) {
		for _, oid := range cert.CertificatePolicies {
			switch oid {
			case PreEIDASQCPPlusPolicy:
				q.Qualified = true
				if !q.KeyManagement.IsQSCD() {
					q.KeyManagement = KeyMgmtQSCDByPolicy
				}
			case PreEIDASQCPPolicy:
				q.Qualified = true
			}
		}
	}
	return q
}

// applyQualifiers overrides the preliminary status with the service qualifiers.
func applyQualifiers(prelim CertificateQualification, list []Qualifier) CertificateQualification {
	qualifiers := make(map[Qualifier]bool, len(list))
	for _, q := range list {
		qualifiers[q] = true
	}
	out := prelim

	if qualifiers[QualifierNotQualified] || qualifiers[QualifierLegalPerson] {
		out.Qualified = false
	} else if qualifiers[QualifierQCStatement] {
		out.Qualified = true
	}

	switch {
	case qualifiers[QualifierForWSA]:
		out.Type = QcCertTypeWeb
	case qualifiers[QualifierForESig]:
		out.Type = QcCertTypeEsign
	case qualifiers[QualifierForESeal]:
		out.Type = QcCertTypeEseal
	}

	switch {
	case !out.Qualified:
		out.KeyManagement = KeyMgmtUnknown
	case qualifiers[QualifierNoSSCD] || qualifiers[QualifierNoQSCD]:
		out.KeyManagement = KeyMgmtUnknown
	case qualifiers[QualifierQSCDManagedOnBehalf]:
		out.KeyManagement = KeyMgmtQSCDDelegated
	case qualifiers[QualifierWithSSCD] || qualifiers[QualifierWithQSCD]:
		out.KeyManagement = KeyMgmtQSCD
	}
	return out
}

// label combines the technical conclusion and the certificate status.
func label(c *ades.Conclusion, qc, qscd bool, typ QcCertType) SignatureQualification {
	pick := func(sig, seal, generic SignatureQualification) SignatureQualification {
		switch typ {
		case QcCertTypeEsign:
			return sig
		case QcCertTypeEseal:
			return seal
		}
		return generic
	}
	switch {
	case c.IsFailed():
		switch {
		case qscd:
			return NotAdESQCQSCD
		case qc:
			return NotAdESQC
		}
		return NotAdES
	case c.IsIndeterminate():
		switch {
		case qscd:
			return pick(IndeterminateQESig, IndeterminateQESeal, IndeterminateQES)
		case qc:
			return pick(IndeterminateAdESigQC, IndeterminateAdESealQC, IndeterminateAdESQC)
		}
		return pick(IndeterminateAdESig, IndeterminateAdESeal, IndeterminateAdES)
	case c.IsPassed():
		switch {
		case qscd:
			return pick(QESig, QESeal, QES)
		case qc:
			return pick(AdESigQC, AdESealQC, AdESQC)
		}
		return pick(AdESig, AdESeal, AdES)
	}
	return NotApplicable
}
