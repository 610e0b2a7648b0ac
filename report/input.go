package report

import (
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/bbb"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/qualified"
)

// Input is everything a finished validation run hands to the Assembler. It
// is read only; Assemble never modifies it.
type Input struct {
	Index          *diagnostic.Index
	Policy         *policy.Policy
	POEs           *poe.Map
	Level          policy.ValidationLevel
	ValidationTime time.Time

	// Signatures are in input order, counter-signatures included.
	Signatures []SignatureInput

	// Tokens are the evaluated tokens in first evaluation order with their
	// complete snapshot history.
	Tokens []TokenInput

	// TimestampQualifications is nil when qualification did not run.
	TimestampQualifications map[string]*qualified.TimestampResult
}

// LevelInput is the outcome of one validation level for a signature.
type LevelInput struct {
	Level             policy.ValidationLevel
	Conclusion        *ades.Conclusion
	BestSignatureTime time.Time
	Note              string
	BBB               *bbb.BasicBuildingBlocks
}

// SignatureInput is the staged result of one signature.
type SignatureInput struct {
	ID              string
	Levels          []LevelInput
	Timestamps      []string
	EvidenceRecords []string
	// Qualification is nil when qualification did not run.
	Qualification *qualified.SignatureResult
}

// Final returns the result of the highest executed level.
func (s SignatureInput) Final() (LevelInput, bool) {
	if len(s.Levels) == 0 {
		return LevelInput{}, false
	}
	return s.Levels[len(s.Levels)-1], true
}

// TokenInput is the evaluation history of one token.
type TokenInput struct {
	ID      string
	History []*bbb.BasicBuildingBlocks
}

// Latest returns the most recent snapshot.
func (t TokenInput) Latest() *bbb.BasicBuildingBlocks {
	if len(t.History) == 0 {
		return nil
	}
	return t.History[len(t.History)-1]
}

func (in *Input) documentName() string {
	if in.Index == nil || in.Index.Data() == nil {
		return ""
	}
	return in.Index.Data().DocumentName
}

func (in *Input) policyName() string {
	if in.Policy == nil {
		return ""
	}
	return in.Policy.Name
}
