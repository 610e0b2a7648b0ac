package report

import (
	"encoding/xml"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/bbb"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/qualified"
)

// DetailedReport keeps every building block evaluated during the run, per
// level for signatures and per evaluation for the other tokens.
type DetailedReport struct {
	XMLName         xml.Name               `json:"-" xml:"DetailedReport"`
	ValidationTime  time.Time              `json:"validationTime" xml:"ValidationTime"`
	ValidationLevel policy.ValidationLevel `json:"validationLevel" xml:"ValidationLevel"`
	Policy          string                 `json:"policy,omitempty" xml:"Policy,omitempty"`
	Signatures      []DetailedSignature    `json:"signatures,omitempty" xml:"Signature,omitempty"`
	Tokens          []DetailedToken        `json:"tokens,omitempty" xml:"Token,omitempty"`
	Inconsistencies []POEInconsistency     `json:"poeInconsistencies,omitempty" xml:"POEInconsistencies>Inconsistency,omitempty"`
}

// DetailedSignature holds the staged results of a signature.
type DetailedSignature struct {
	ID              string                     `json:"id" xml:"Id,attr"`
	ParentID        string                     `json:"parentId,omitempty" xml:"ParentId,attr,omitempty"`
	Conclusion      *ades.Conclusion           `json:"conclusion" xml:"Conclusion"`
	Levels          []DetailedLevel            `json:"levels" xml:"Level"`
	Timestamps      []string                   `json:"timestamps,omitempty" xml:"Timestamps>Id,omitempty"`
	EvidenceRecords []string                   `json:"evidenceRecords,omitempty" xml:"EvidenceRecords>Id,omitempty"`
	Qualification   *qualified.SignatureResult `json:"qualification,omitempty" xml:"Qualification,omitempty"`
}

// DetailedLevel is the result of one executed level.
type DetailedLevel struct {
	Level             policy.ValidationLevel   `json:"level" xml:"Name,attr"`
	Conclusion        *ades.Conclusion         `json:"conclusion" xml:"Conclusion"`
	BestSignatureTime *time.Time               `json:"bestSignatureTime,omitempty" xml:"BestSignatureTime,omitempty"`
	Note              string                   `json:"note,omitempty" xml:"Note,omitempty"`
	BBB               *bbb.BasicBuildingBlocks `json:"bbb,omitempty" xml:"BasicBuildingBlocks,omitempty"`
}

// DetailedToken is the evaluation history of a timestamp, revocation or
// evidence record, oldest first.
type DetailedToken struct {
	ID            string                     `json:"id" xml:"Id,attr"`
	Kind          string                     `json:"kind" xml:"Kind,attr"`
	POE           *poe.POE                   `json:"poe,omitempty" xml:"POE,omitempty"`
	Qualification *qualified.TimestampResult `json:"qualification,omitempty" xml:"Qualification,omitempty"`
	Evaluations   []*bbb.BasicBuildingBlocks `json:"evaluations" xml:"BasicBuildingBlocks"`
}

// POEInconsistency is a covering edge ignored by POE propagation.
type POEInconsistency struct {
	CovererID string `json:"covererId" xml:"Coverer,attr"`
	CoveredID string `json:"coveredId" xml:"Covered,attr"`
	Reason    string `json:"reason" xml:",chardata"`
}

// JSON serializes the report to JSON.
func (r *DetailedReport) JSON() ([]byte, error) {
	return marshalJSON(r)
}

// XML serializes the report to XML.
func (r *DetailedReport) XML() ([]byte, error) {
	return marshalXML(r)
}

// Signature returns the staged results of a signature.
func (r *DetailedReport) Signature(id string) (*DetailedSignature, bool) {
	for i := range r.Signatures {
		if r.Signatures[i].ID == id {
			return &r.Signatures[i], true
		}
	}
	return nil, false
}

func (s *assembly) detailed() *DetailedReport {
	r := &DetailedReport{
		ValidationTime:  s.in.ValidationTime,
		ValidationLevel: s.in.Level,
		Policy:          s.in.policyName(),
	}
	signatures := make(map[string]bool, len(s.in.Signatures))
	for _, sig := range s.in.Signatures {
		signatures[sig.ID] = true
		r.Signatures = append(r.Signatures, s.detailedSignature(sig))
	}
	for _, t := range s.in.Tokens {
		if signatures[t.ID] {
			continue
		}
		r.Tokens = append(r.Tokens, s.detailedToken(t))
	}
	if s.in.POEs != nil {
		for _, i := range s.in.POEs.Inconsistencies() {
			r.Inconsistencies = append(r.Inconsistencies, POEInconsistency(i))
		}
	}
	return r
}

func (s *assembly) detailedSignature(in SignatureInput) DetailedSignature {
	out := DetailedSignature{
		ID:              in.ID,
		Timestamps:      in.Timestamps,
		EvidenceRecords: in.EvidenceRecords,
		Qualification:   in.Qualification,
		Levels:          make([]DetailedLevel, 0, len(in.Levels)),
	}
	if s.in.Index != nil {
		if sig, ok := s.in.Index.Signature(in.ID); ok {
			out.ParentID = sig.ParentID
		}
	}
	for _, l := range in.Levels {
		out.Levels = append(out.Levels, DetailedLevel{
			Level:             l.Level,
			Conclusion:        l.Conclusion,
			BestSignatureTime: timePtr(l.BestSignatureTime),
			Note:              l.Note,
			BBB:               l.BBB,
		})
	}
	if final, ok := in.Final(); ok {
		out.Conclusion = final.Conclusion
	}
	return out
}

func (s *assembly) detailedToken(in TokenInput) DetailedToken {
	out := DetailedToken{
		ID:          in.ID,
		Evaluations: in.History,
	}
	if s.in.Index != nil {
		if t, ok := s.in.Index.Token(in.ID); ok {
			out.Kind = t.Kind().String()
			if t.Kind() == diagnostic.KindTimestamp {
				out.Qualification = s.in.TimestampQualifications[in.ID]
			}
		}
	}
	if s.in.POEs != nil {
		p := s.in.POEs.Lowest(in.ID)
		out.POE = &p
	}
	return out
}
