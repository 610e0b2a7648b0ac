package bbb

import (
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/policy"
)

// outcome is what a failed constraint yields when its level is FAIL.
type outcome struct {
	indication ades.Indication
	sub        ades.SubIndication
	// soft outcomes are time-related: the block keeps evaluating and the
	// conclusion may later be cleared by a proof of existence.
	soft    bool
	at      *time.Time
	tokenID string
}

func failed(sub ades.SubIndication) outcome {
	return outcome{indication: ades.IndicationFailed, sub: sub}
}

func indeterminate(sub ades.SubIndication) outcome {
	return outcome{indication: ades.IndicationIndeterminate, sub: sub}
}

// timeRelated is an INDETERMINATE outcome depending on time. at may be nil
// when no single instant explains the problem.
func timeRelated(sub ades.SubIndication, at *time.Time, tokenID string) outcome {
	return outcome{indication: ades.IndicationIndeterminate, sub: sub, soft: true, at: at, tokenID: tokenID}
}

// run evaluates the constraints of one block in order.
type run struct {
	block *Block
	hard  *ades.Conclusion
	soft  *ades.Conclusion
	msgs  *ades.Conclusion
}

func newRun(name BlockName) *run {
	return &run{block: &Block{Name: name}, msgs: &ades.Conclusion{}}
}

// stopped reports whether a hard failure ended the block.
func (r *run) stopped() bool {
	return r.hard != nil
}

// check records one constraint. It returns false when the constraint failed
// at any level, so callers can skip dependent checks.
func (r *run) check(key string, c *policy.Constraint, ok bool, message string, out outcome) bool {
	if r.stopped() {
		return false
	}
	level := policy.LevelOf(c)
	res := ConstraintResult{Key: key, Level: level, TokenID: out.tokenID}
	switch {
	case level == policy.Ignore:
		res.Status = StatusIgnored
		r.block.Constraints = append(r.block.Constraints, res)
		return true
	case ok:
		res.Status = StatusOK
		r.block.Constraints = append(r.block.Constraints, res)
		return true
	}

	res.Message = message
	switch level {
	case policy.Inform:
		res.Status = StatusInformation
		r.msgs.AddInfo(key, message)
	case policy.Warn:
		res.Status = StatusWarning
		r.msgs.AddWarning(key, message)
	case policy.Fail:
		res.Status = StatusNotOK
		res.Indication = out.indication
		res.SubIndication = out.sub
		r.msgs.AddError(key, message)
		concl := ades.New(out.indication, out.sub)
		if out.soft {
			if r.soft == nil {
				r.soft = concl
			}
			r.block.Causes = append(r.block.Causes, TimeCause{Key: key, SubIndication: out.sub, Time: out.at, TokenID: out.tokenID})
		} else {
			r.hard = concl
		}
	}
	r.block.Constraints = append(r.block.Constraints, res)
	return false
}

// fail records a hard failure that is not driven by a policy constraint.
func (r *run) fail(key, message string, out outcome) {
	r.check(key, &policy.Constraint{Level: policy.Fail}, false, message, out)
}

// info records an informational message.
func (r *run) info(key, message string) {
	r.msgs.AddInfo(key, message)
}

// merge folds the conclusion of a nested block into this one.
func (r *run) merge(nested *Block) {
	r.msgs.Merge(nested.Conclusion)
	if nested.Conclusion.IsPassed() {
		return
	}
	concl := ades.New(nested.Conclusion.Indication, nested.Conclusion.SubIndication)
	if nested.TimeDependent {
		if r.soft == nil && r.hard == nil {
			r.soft = concl
		}
		r.block.Causes = append(r.block.Causes, nested.Causes...)
		return
	}
	if r.hard == nil {
		r.hard = concl
	}
}

// finish sets the block conclusion: the first hard failure if any,
// otherwise the first time-related one, otherwise PASSED.
func (r *run) finish() *Block {
	var c *ades.Conclusion
	switch {
	case r.hard != nil:
		c = r.hard
	case r.soft != nil:
		c = r.soft
		r.block.TimeDependent = true
	default:
		c = ades.Passed()
	}
	c.Merge(r.msgs)
	r.block.Conclusion = c
	return r.block
}
