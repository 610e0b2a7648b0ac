package validation

import (
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/bbb"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/report"
)

// LevelResult is the outcome of one validation level for a signature.
type LevelResult struct {
	Level      policy.ValidationLevel
	Conclusion *ades.Conclusion
	// BestSignatureTime is the earliest accepted proof of existence of the
	// signature at this level.
	BestSignatureTime time.Time
	// Note explains a conclusion that differs from the snapshot one, such as
	// a FAILED kept from a lower level or a remediated INDETERMINATE.
	Note string
	// BBB is the snapshot the level result is based on.
	BBB *bbb.BasicBuildingBlocks
}

// SignatureResult collects the level results of one signature. Levels is
// append-only.
type SignatureResult struct {
	SignatureID     string
	ParentID        string
	Levels          []LevelResult
	TimestampIDs    []string
	EvidenceRecords []string
}

// Final returns the result of the highest executed level.
func (s *SignatureResult) Final() *LevelResult {
	if len(s.Levels) == 0 {
		return nil
	}
	return &s.Levels[len(s.Levels)-1]
}

// Conclusion returns the final conclusion.
func (s *SignatureResult) Conclusion() *ades.Conclusion {
	if f := s.Final(); f != nil {
		return f.Conclusion
	}
	return nil
}

// Level returns the result of a given level.
func (s *SignatureResult) Level(l policy.ValidationLevel) (*LevelResult, bool) {
	for i := range s.Levels {
		if s.Levels[i].Level == l {
			return &s.Levels[i], true
		}
	}
	return nil, false
}

// reportInput projects the run onto the report input.
func (r *Run) reportInput(level policy.ValidationLevel) *report.Input {
	in := &report.Input{
		Index:          r.index,
		Policy:         r.policy,
		POEs:           r.poes,
		Level:          level,
		ValidationTime: r.ValidationTime(),
		Signatures:     make([]report.SignatureInput, 0, len(r.signatures)),
		Tokens:         make([]report.TokenInput, 0, len(r.evaluated)),
	}
	for _, sr := range r.signatures {
		s := report.SignatureInput{
			ID:              sr.SignatureID,
			Timestamps:      sr.TimestampIDs,
			EvidenceRecords: sr.EvidenceRecords,
			Levels:          make([]report.LevelInput, 0, len(sr.Levels)),
		}
		for _, l := range sr.Levels {
			s.Levels = append(s.Levels, report.LevelInput{
				Level:             l.Level,
				Conclusion:        l.Conclusion,
				BestSignatureTime: l.BestSignatureTime,
				Note:              l.Note,
				BBB:               l.BBB,
			})
		}
		in.Signatures = append(in.Signatures, s)
	}
	for _, id := range r.evaluated {
		in.Tokens = append(in.Tokens, report.TokenInput{ID: id, History: r.History(id)})
	}
	return in
}
