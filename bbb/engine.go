package bbb

import (
	"fmt"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
)

// Options tune one evaluation.
type Options struct {
	// Level is recorded in the snapshot.
	Level policy.ValidationLevel

	// RevocationChecks enables the revocation constraints of XCV.
	RevocationChecks bool

	// PastValidation enables PSV/PCV/VTS for time-related INDETERMINATE results.
	PastValidation bool

	// AcceptPOE filters the proofs of existence usable for the token, usually
	// keeping proofs given by timestamps that passed their own validation.
	// A nil filter accepts every proof.
	AcceptPOE func(provenBy string) bool

	// RevocationConclusion returns the validation result of a revocation
	// token, when one was computed.
	RevocationConclusion func(revocationID string) (*ades.Conclusion, bool)
}

// Engine evaluates basic building blocks. It only reads its inputs and may
// be used from several goroutines.
type Engine struct {
	index  *diagnostic.Index
	policy *policy.Policy
	poes   *poe.Map
	now    time.Time
}

// NewEngine binds the engine to a snapshot, a policy and the proofs of
// existence computed for the snapshot.
func NewEngine(x *diagnostic.Index, p *policy.Policy, poes *poe.Map) *Engine {
	return &Engine{index: x, policy: p, poes: poes, now: poes.ValidationTime()}
}

// ValidationTime returns the current time of the evaluations.
func (e *Engine) ValidationTime() time.Time {
	return e.now
}

// Evaluate runs the building blocks for a token in the fixed order FC, ISC,
// VCI, XCV, CV, SAV, then PSV when the options ask for it. A FAILED block
// stops the evaluation.
func (e *Engine) Evaluate(t diagnostic.Token, ctx policy.Context, opts Options) *BasicBuildingBlocks {
	b := &BasicBuildingBlocks{
		TokenID:        t.TokenID(),
		Kind:           t.Kind(),
		Context:        ctx,
		Level:          opts.Level,
		ValidationTime: e.now,
	}
	ev := &evaluation{Engine: e, token: t, ctx: ctx, opts: opts, constraints: e.policy.Constraints(ctx)}

	steps := []func() bool{
		func() bool { b.FC = ev.fc(); return continues(b.FC) },
		func() bool { b.ISC = ev.isc(); return continues(b.ISC) },
		func() bool { b.VCI = ev.vci(); return continues(b.VCI) },
		func() bool {
			b.XCV = ev.xcv()
			if b.XCV == nil {
				return true
			}
			return continues(&b.XCV.Block)
		},
		func() bool { b.CV = ev.cv(); return continues(b.CV) },
		func() bool { b.SAV = ev.sav(); return continues(b.SAV) },
	}
	for _, step := range steps {
		if !step() {
			break
		}
	}

	current := overall(b.Blocks())
	for _, blk := range b.Blocks() {
		current.Merge(blk.Conclusion)
	}
	b.Conclusion = current

	if opts.PastValidation && b.TimeDependent() {
		b.CurrentTimeConclusion = current.Clone()
		ev.pastValidation(b)
	}
	return b
}

// overall picks the first block conclusion that is not PASSED. A FAILED
// block that only follows time-related INDETERMINATE blocks wins over them:
// a proof of existence can clear the latter, never the former.
func overall(blocks []*Block) *ades.Conclusion {
	var first *Block
	for _, blk := range blocks {
		if blk.Conclusion.IsPassed() {
			continue
		}
		if first == nil {
			first = blk
		}
		if blk.Conclusion.IsFailed() {
			first = blk
			break
		}
		if !blk.TimeDependent {
			break
		}
	}
	if first == nil {
		return ades.Passed()
	}
	return ades.New(first.Conclusion.Indication, first.Conclusion.SubIndication)
}

func continues(b *Block) bool {
	return b == nil || !b.Conclusion.IsFailed()
}

// evaluation carries the state of one Evaluate call.
type evaluation struct {
	*Engine
	token       diagnostic.Token
	ctx         policy.Context
	opts        Options
	constraints *policy.ContextConstraints
}

// c returns the policy constraints of the context, never nil.
func (ev *evaluation) c() *policy.ContextConstraints {
	if ev.constraints == nil {
		return &policy.ContextConstraints{}
	}
	return ev.constraints
}

// referenceTime is the earliest accepted proof of existence of the token,
// bounded by the validation time.
func (ev *evaluation) referenceTime() time.Time {
	return ev.poes.LowestProvenBy(ev.token.TokenID(), ev.opts.AcceptPOE).Time
}

func describe(t diagnostic.Token) string {
	return fmt.Sprintf("%s %s", t.Kind(), t.TokenID())
}

func algorithmsOf(t diagnostic.Token) (diagnostic.Algorithms, bool) {
	switch v := t.(type) {
	case *diagnostic.Signature:
		return v.Algorithms, true
	case *diagnostic.Timestamp:
		return v.Algorithms, true
	case *diagnostic.Revocation:
		return v.Algorithms, true
	case *diagnostic.EvidenceRecord:
		return v.Algorithms, true
	case *diagnostic.Certificate:
		return v.Algorithms, true
	default:
		return diagnostic.Algorithms{}, false
	}
}
