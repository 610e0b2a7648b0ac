package report

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/qualified"
)

// SimpleReport is the condensed, per token outcome of a validation run.
type SimpleReport struct {
	XMLName              xml.Name               `json:"-" xml:"SimpleReport"`
	DocumentName         string                 `json:"documentName,omitempty" xml:"DocumentName,omitempty"`
	ValidationTime       time.Time              `json:"validationTime" xml:"ValidationTime"`
	ValidationLevel      policy.ValidationLevel `json:"validationLevel" xml:"ValidationLevel"`
	Policy               string                 `json:"policy,omitempty" xml:"Policy,omitempty"`
	SignaturesCount      int                    `json:"signaturesCount" xml:"SignaturesCount"`
	ValidSignaturesCount int                    `json:"validSignaturesCount" xml:"ValidSignaturesCount"`
	Signatures           []SimpleSignature      `json:"signatures,omitempty" xml:"Signature,omitempty"`
	Timestamps           []SimpleTimestamp      `json:"timestamps,omitempty" xml:"Timestamp,omitempty"`
}

// ChainItem is one certificate of a chain summary.
type ChainItem struct {
	ID      string `json:"id" xml:"Id,attr"`
	Name    string `json:"name" xml:",chardata"`
	Trusted bool   `json:"trusted,omitempty" xml:"Trusted,attr,omitempty"`
}

// SimpleSignature is the entry of one signature.
type SimpleSignature struct {
	ID                string                           `json:"id" xml:"Id,attr"`
	ParentID          string                           `json:"parentId,omitempty" xml:"ParentId,attr,omitempty"`
	Format            string                           `json:"format,omitempty" xml:"Format,omitempty"`
	SignerName        string                           `json:"signerName,omitempty" xml:"SignedBy,omitempty"`
	SigningTime       *time.Time                       `json:"signingTime,omitempty" xml:"SigningTime,omitempty"`
	BestSignatureTime *time.Time                       `json:"bestSignatureTime,omitempty" xml:"BestSignatureTime,omitempty"`
	Indication        ades.Indication                  `json:"indication" xml:"Indication"`
	SubIndication     ades.SubIndication               `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Qualification     qualified.SignatureQualification `json:"qualification,omitempty" xml:"SignatureLevel,omitempty"`
	CertificateChain  []ChainItem                      `json:"certificateChain,omitempty" xml:"CertificateChain>Certificate,omitempty"`
	Timestamps        []string                         `json:"timestamps,omitempty" xml:"Timestamps>Id,omitempty"`
	Errors            []ades.Message                   `json:"errors,omitempty" xml:"Errors>Error,omitempty"`
	Warnings          []ades.Message                   `json:"warnings,omitempty" xml:"Warnings>Warning,omitempty"`
	Infos             []ades.Message                   `json:"infos,omitempty" xml:"Infos>Info,omitempty"`
}

// Valid reports whether the signature ended TOTAL_PASSED.
func (s SimpleSignature) Valid() bool {
	return s.Indication == ades.IndicationTotalPassed
}

// SimpleTimestamp is the entry of one timestamp.
type SimpleTimestamp struct {
	ID               string                           `json:"id" xml:"Id,attr"`
	Type             diagnostic.TimestampType         `json:"type" xml:"Type,attr"`
	ProductionTime   time.Time                        `json:"productionTime" xml:"ProductionTime"`
	ProducedBy       string                           `json:"producedBy,omitempty" xml:"ProducedBy,omitempty"`
	Indication       ades.Indication                  `json:"indication" xml:"Indication"`
	SubIndication    ades.SubIndication               `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Qualification    qualified.TimestampQualification `json:"qualification,omitempty" xml:"TimestampLevel,omitempty"`
	CertificateChain []ChainItem                      `json:"certificateChain,omitempty" xml:"CertificateChain>Certificate,omitempty"`
}

// JSON serializes the report to JSON.
func (r *SimpleReport) JSON() ([]byte, error) {
	return marshalJSON(r)
}

// XML serializes the report to XML.
func (r *SimpleReport) XML() ([]byte, error) {
	return marshalXML(r)
}

// Signature returns the entry of a signature.
func (r *SimpleReport) Signature(id string) (*SimpleSignature, bool) {
	for i := range r.Signatures {
		if r.Signatures[i].ID == id {
			return &r.Signatures[i], true
		}
	}
	return nil, false
}

// Text renders the report for terminals.
func (r *SimpleReport) Text() string {
	var sb strings.Builder

	sb.WriteString("=== VALIDATION REPORT ===\n")
	if r.DocumentName != "" {
		sb.WriteString(fmt.Sprintf("Document: %s\n", r.DocumentName))
	}
	sb.WriteString(fmt.Sprintf("Validation Time: %s\n", r.ValidationTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Validation Level: %s\n", r.ValidationLevel))
	if r.Policy != "" {
		sb.WriteString(fmt.Sprintf("Policy: %s\n", r.Policy))
	}

	sb.WriteString(fmt.Sprintf("\nSignatures: %d total, %d valid\n", r.SignaturesCount, r.ValidSignaturesCount))

	for i, sig := range r.Signatures {
		sb.WriteString(fmt.Sprintf("\n--- Signature %d ---\n", i+1))
		sb.WriteString(fmt.Sprintf("ID: %s\n", sig.ID))
		if sig.ParentID != "" {
			sb.WriteString(fmt.Sprintf("Counter-signature of: %s\n", sig.ParentID))
		}
		if sig.Format != "" {
			sb.WriteString(fmt.Sprintf("Format: %s\n", sig.Format))
		}
		if sig.SignerName != "" {
			sb.WriteString(fmt.Sprintf("Signed by: %s\n", sig.SignerName))
		}
		if sig.SigningTime != nil {
			sb.WriteString(fmt.Sprintf("Signing Time: %s\n", sig.SigningTime.Format(time.RFC3339)))
		}
		if sig.BestSignatureTime != nil {
			sb.WriteString(fmt.Sprintf("Best Signature Time: %s\n", sig.BestSignatureTime.Format(time.RFC3339)))
		}
		if sig.Qualification != "" {
			sb.WriteString(fmt.Sprintf("Qualification: %s\n", sig.Qualification))
		}
		if len(sig.CertificateChain) > 0 {
			sb.WriteString("Certificate Chain:\n")
			for j, c := range sig.CertificateChain {
				sb.WriteString(fmt.Sprintf("  %d. %s\n", j+1, c.Name))
			}
		}

		sb.WriteString(fmt.Sprintf("Result: %s", sig.Indication))
		if sig.SubIndication != ades.SubIndicationNone {
			sb.WriteString(fmt.Sprintf(" (%s)", sig.SubIndication))
		}
		sb.WriteString("\n")
		for _, m := range sig.Errors {
			sb.WriteString(fmt.Sprintf("  ERROR: %s - %s\n", m.Key, m.Value))
		}
		for _, m := range sig.Warnings {
			sb.WriteString(fmt.Sprintf("  WARNING: %s - %s\n", m.Key, m.Value))
		}
	}

	if len(r.Timestamps) > 0 {
		sb.WriteString("\nTimestamps:\n")
		for _, ts := range r.Timestamps {
			sb.WriteString(fmt.Sprintf("  - %s (%s) at %s: %s", ts.ID, ts.Type, ts.ProductionTime.Format(time.RFC3339), ts.Indication))
			if ts.SubIndication != ades.SubIndicationNone {
				sb.WriteString(fmt.Sprintf(" (%s)", ts.SubIndication))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (s *assembly) simple() *SimpleReport {
	r := &SimpleReport{
		DocumentName:    s.in.documentName(),
		ValidationTime:  s.in.ValidationTime,
		ValidationLevel: s.in.Level,
		Policy:          s.in.policyName(),
	}
	for _, sig := range s.in.Signatures {
		entry := s.simpleSignature(sig)
		r.Signatures = append(r.Signatures, entry)
		r.SignaturesCount++
		if entry.Valid() {
			r.ValidSignaturesCount++
		}
	}
	if s.in.Index != nil {
		for _, ts := range s.in.Index.Data().Timestamps {
			if ts == nil {
				continue
			}
			if b, ok := s.latest[ts.ID]; ok {
				r.Timestamps = append(r.Timestamps, s.simpleTimestamp(ts, b.Conclusion))
			}
		}
	}
	return r
}

func (s *assembly) simpleSignature(in SignatureInput) SimpleSignature {
	out := SimpleSignature{
		ID:         in.ID,
		Timestamps: in.Timestamps,
		Indication: ades.IndicationIndeterminate,
	}
	if final, ok := in.Final(); ok && final.Conclusion != nil {
		c := final.Conclusion
		out.Indication = c.Indication.Collapse()
		out.SubIndication = c.SubIndication
		out.Errors = c.Errors
		out.Warnings = c.Warnings
		out.Infos = c.Infos
		out.BestSignatureTime = timePtr(final.BestSignatureTime)
	}
	if in.Qualification != nil {
		out.Qualification = in.Qualification.Qualification
	}
	if s.in.Index == nil {
		return out
	}
	sig, ok := s.in.Index.Signature(in.ID)
	if !ok {
		return out
	}
	out.ParentID = sig.ParentID
	out.Format = sig.Format
	out.SigningTime = sig.ClaimedSigningTime
	out.SignerName = signerName(sig, s.in.Index)
	out.CertificateChain = chainSummary(s.in.Index.Chain(sig))
	return out
}

func (s *assembly) simpleTimestamp(ts *diagnostic.Timestamp, c *ades.Conclusion) SimpleTimestamp {
	out := SimpleTimestamp{
		ID:             ts.ID,
		Type:           ts.Type,
		ProductionTime: ts.ProductionTime,
		Indication:     ades.IndicationIndeterminate,
	}
	if c != nil {
		out.Indication = c.Indication.Collapse()
		out.SubIndication = c.SubIndication
	}
	if q, ok := s.in.TimestampQualifications[ts.ID]; ok && q != nil {
		out.Qualification = q.Qualification
	}
	if cert, ok := s.in.Index.SigningCertificate(ts); ok {
		out.ProducedBy = normalizeName(cert.Name())
	}
	out.CertificateChain = chainSummary(s.in.Index.Chain(ts))
	return out
}

// signerName prefers the name the parser extracted, then the signing
// certificate name. Names are NFC normalised so that equal names compare
// equal whatever composition the certificate used.
func signerName(sig *diagnostic.Signature, x *diagnostic.Index) string {
	if sig.SignerName != "" {
		return normalizeName(sig.SignerName)
	}
	if cert, ok := x.SigningCertificate(sig); ok {
		return normalizeName(cert.Name())
	}
	return ""
}

func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func chainSummary(chain []*diagnostic.Certificate) []ChainItem {
	if len(chain) == 0 {
		return nil
	}
	out := make([]ChainItem, 0, len(chain))
	for _, c := range chain {
		out = append(out, ChainItem{ID: c.ID, Name: normalizeName(c.Name()), Trusted: c.Trusted})
	}
	return out
}
