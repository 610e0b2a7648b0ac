package validation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/bbb"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
)

// Message keys of the signature-with-time checks.
const (
	KeyTimestampOrder   = "val.timestamp-coherence"
	KeyTimestampDelay   = "val.timestamp-delay"
	KeyArchivalCoverage = "val.archival-coverage"
	KeyPastValidation   = "val.past-signature-validation"
)

// Run is one validation of a snapshot. It owns the index, the policy, the
// proofs of existence, the append-only history of building block snapshots
// per token and the per-signature level results.
//
// Levels are executed in order by Execute. Building blocks of independent
// tokens run in parallel; the history is only written between evaluations.
type Run struct {
	index   *diagnostic.Index
	policy  *policy.Policy
	poes    *poe.Map
	engine  *bbb.Engine
	log     *zap.Logger
	workers int

	history    map[string][]*bbb.BasicBuildingBlocks
	evaluated  []string
	signatures []*SignatureResult
	levels     []policy.ValidationLevel
	// uncovered are archive timestamps whose algorithms expired without a
	// later archive timestamp protecting them.
	uncovered map[string]bool
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithRunLogger sets the logger of the run.
func WithRunLogger(l *zap.Logger) RunOption {
	return func(r *Run) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRunWorkers bounds the number of parallel evaluations.
func WithRunWorkers(n int) RunOption {
	return func(r *Run) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewRun prepares a run. The proofs of existence must have been collected
// for the same index.
func NewRun(x *diagnostic.Index, p *policy.Policy, poes *poe.Map, opts ...RunOption) *Run {
	r := &Run{
		index:     x,
		policy:    p,
		poes:      poes,
		engine:    bbb.NewEngine(x, p, poes),
		log:       zap.NewNop(),
		workers:   runtime.GOMAXPROCS(0),
		history:   make(map[string][]*bbb.BasicBuildingBlocks),
		uncovered: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range x.Tokens() {
		if s, ok := t.(*diagnostic.Signature); ok {
			r.signatures = append(r.signatures, &SignatureResult{SignatureID: s.ID, ParentID: s.ParentID})
		}
	}
	return r
}

// Index returns the snapshot index.
func (r *Run) Index() *diagnostic.Index { return r.index }

// Policy returns the validation policy.
func (r *Run) Policy() *policy.Policy { return r.policy }

// POEs returns the proofs of existence.
func (r *Run) POEs() *poe.Map { return r.poes }

// ValidationTime returns the current time of the run.
func (r *Run) ValidationTime() time.Time { return r.poes.ValidationTime() }

// Signatures returns the signature results in input order.
func (r *Run) Signatures() []*SignatureResult { return r.signatures }

// Levels returns the executed levels.
func (r *Run) Levels() []policy.ValidationLevel { return r.levels }

// Evaluated returns the ids of every evaluated token in first evaluation order.
func (r *Run) Evaluated() []string { return r.evaluated }

// History returns every snapshot produced for a token, oldest first.
func (r *Run) History(id string) []*bbb.BasicBuildingBlocks {
	return append([]*bbb.BasicBuildingBlocks(nil), r.history[id]...)
}

// Latest returns the most recent snapshot of a token.
func (r *Run) Latest(id string) (*bbb.BasicBuildingBlocks, bool) {
	h := r.history[id]
	if len(h) == 0 {
		return nil, false
	}
	return h[len(h)-1], true
}

// Execute runs every level up to target. It only fails when ctx is done or
// target is not a validation level.
func (r *Run) Execute(ctx context.Context, target policy.ValidationLevel) error {
	if !target.Valid() {
		return policy.NewConfigError("validation-level", fmt.Sprintf("unknown level %d", int(target)), ErrInvalidValidationLevel)
	}
	steps := map[policy.ValidationLevel]func(context.Context) error{
		policy.BasicSignatures: r.basicSignatures,
		policy.Timestamps:      r.timestamps,
		policy.LongTermData:    r.longTermData,
		policy.ArchivalData:    r.archivalData,
	}
	for _, level := range policy.ValidationLevels {
		if level > target {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := steps[level](ctx); err != nil {
			return err
		}
		r.levels = append(r.levels, level)
		r.log.Debug("Validation level executed",
			zap.Stringer("level", level),
			zap.Int("signatures", len(r.signatures)),
			zap.Int("tokens", len(r.evaluated)),
			zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

type job struct {
	token diagnostic.Token
	ctx   policy.Context
	opts  bbb.Options
}

// evaluate runs the jobs in parallel. Each worker writes its own slot; the
// snapshots are recorded in job order afterwards.
func (r *Run) evaluate(ctx context.Context, jobs []job) error {
	out := make([]*bbb.BasicBuildingBlocks, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = r.engine.Evaluate(j.token, j.ctx, j.opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, b := range out {
		if _, seen := r.history[b.TokenID]; !seen {
			r.evaluated = append(r.evaluated, b.TokenID)
		}
		r.history[b.TokenID] = append(r.history[b.TokenID], b)
	}
	return nil
}

func (r *Run) passed(id string) bool {
	b, ok := r.Latest(id)
	return ok && b.Passed()
}

// accept returns the filter of proofs of existence usable at a level: proofs
// given by timestamps that passed their validation and, when archival is
// set, by archive timestamps with unbroken coverage and by evidence records.
func (r *Run) accept(archival bool) func(provenBy string) bool {
	return func(provenBy string) bool {
		t, ok := r.index.Token(provenBy)
		if !ok || !r.passed(provenBy) {
			return false
		}
		switch v := t.(type) {
		case *diagnostic.Timestamp:
			if v.Type.IsArchival() {
				return archival && !r.uncovered[v.ID]
			}
			return true
		case *diagnostic.EvidenceRecord:
			return archival
		}
		return false
	}
}

// revocationConclusion exposes the revocation results to the building blocks.
func (r *Run) revocationConclusion(id string) (*ades.Conclusion, bool) {
	b, ok := r.Latest(id)
	if !ok {
		return nil, false
	}
	return b.Conclusion, true
}

func (r *Run) signature(id string) *diagnostic.Signature {
	s, _ := r.index.Signature(id)
	return s
}

func signatureContext(s *diagnostic.Signature) policy.Context {
	if s.IsCounterSignature() {
		return policy.ContextCounterSignature
	}
	return policy.ContextSignature
}

func (r *Run) signatureJobs(opts bbb.Options) []job {
	jobs := make([]job, 0, len(r.signatures))
	for _, sr := range r.signatures {
		s := r.signature(sr.SignatureID)
		jobs = append(jobs, job{token: s, ctx: signatureContext(s), opts: opts})
	}
	return jobs
}

func (r *Run) basicSignatures(ctx context.Context) error {
	if err := r.evaluate(ctx, r.signatureJobs(bbb.Options{Level: policy.BasicSignatures})); err != nil {
		return err
	}
	for _, sr := range r.signatures {
		b, _ := r.Latest(sr.SignatureID)
		r.appendLevel(sr, LevelResult{
			Level:             policy.BasicSignatures,
			Conclusion:        b.Conclusion.Clone(),
			BestSignatureTime: r.ValidationTime(),
			BBB:               b,
		})
	}
	return nil
}

func (r *Run) timestamps(ctx context.Context) error {
	var jobs []job
	seen := make(map[string]bool)
	for _, sr := range r.signatures {
		sr.TimestampIDs = nil
		for _, ts := range r.index.TimestampsFor(sr.SignatureID) {
			sr.TimestampIDs = append(sr.TimestampIDs, ts.ID)
			if ts.Type.IsArchival() || seen[ts.ID] {
				continue
			}
			seen[ts.ID] = true
			jobs = append(jobs, job{token: ts, ctx: policy.ContextTimestamp, opts: bbb.Options{Level: policy.Timestamps}})
		}
	}
	if err := r.evaluate(ctx, jobs); err != nil {
		return err
	}
	for _, sr := range r.signatures {
		b, _ := r.Latest(sr.SignatureID)
		r.appendLevel(sr, r.withTime(sr, policy.Timestamps, b, false))
	}
	return nil
}

func (r *Run) longTermData(ctx context.Context) error {
	var jobs []job
	seen := make(map[string]bool)
	addChain := func(t diagnostic.Token) {
		for _, cert := range r.index.Chain(t) {
			for _, e := range cert.Revocations {
				rev, ok := r.index.Revocation(e.RevocationID)
				if !ok || seen[rev.ID] {
					continue
				}
				seen[rev.ID] = true
				jobs = append(jobs, job{token: rev, ctx: policy.ContextRevocation, opts: bbb.Options{Level: policy.LongTermData}})
			}
		}
	}
	for _, sr := range r.signatures {
		addChain(r.signature(sr.SignatureID))
		for _, ts := range r.index.TimestampsFor(sr.SignatureID) {
			addChain(ts)
		}
	}
	if err := r.evaluate(ctx, jobs); err != nil {
		return err
	}
	if err := r.pastTimestamps(ctx, policy.LongTermData, false); err != nil {
		return err
	}
	return r.pastValidation(ctx, policy.LongTermData, false)
}

func (r *Run) archivalData(ctx context.Context) error {
	var jobs []job
	for _, ts := range r.index.ArchiveTimestamps() {
		jobs = append(jobs, job{token: ts, ctx: policy.ContextTimestamp, opts: bbb.Options{Level: policy.ArchivalData}})
	}
	for _, t := range r.index.Tokens() {
		if er, ok := t.(*diagnostic.EvidenceRecord); ok {
			jobs = append(jobs, job{token: er, ctx: policy.ContextEvidenceRecord, opts: bbb.Options{Level: policy.ArchivalData}})
		}
	}
	if err := r.evaluate(ctx, jobs); err != nil {
		return err
	}
	r.checkCoverage()
	if err := r.pastTimestamps(ctx, policy.ArchivalData, true); err != nil {
		return err
	}
	r.uncovered = make(map[string]bool)
	r.checkCoverage()
	for _, sr := range r.signatures {
		sr.EvidenceRecords = nil
		for _, er := range r.index.EvidenceRecordsFor(sr.SignatureID) {
			sr.EvidenceRecords = append(sr.EvidenceRecords, er.ID)
		}
	}
	return r.pastValidation(ctx, policy.ArchivalData, true)
}

// pastTimestamps re-evaluates the timestamps whose result only depends on
// time with past signature validation, latest production time first, so a
// timestamp that passes can give a proof of existence to the older ones it
// covers. Timestamps produced at the same time are evaluated together.
func (r *Run) pastTimestamps(ctx context.Context, level policy.ValidationLevel, archival bool) error {
	var pending []*diagnostic.Timestamp
	seen := make(map[string]bool)
	for _, sr := range r.signatures {
		for _, ts := range r.index.TimestampsFor(sr.SignatureID) {
			if seen[ts.ID] || (ts.Type.IsArchival() && !archival) {
				continue
			}
			seen[ts.ID] = true
			if b, ok := r.Latest(ts.ID); ok && b.TimeDependent() {
				pending = append(pending, ts)
			}
		}
	}
	if archival {
		for _, ts := range r.index.ArchiveTimestamps() {
			if seen[ts.ID] {
				continue
			}
			seen[ts.ID] = true
			if b, ok := r.Latest(ts.ID); ok && b.TimeDependent() {
				pending = append(pending, ts)
			}
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ProductionTime.After(pending[j].ProductionTime)
	})

	opts := bbb.Options{
		Level:          level,
		PastValidation: true,
		AcceptPOE:      r.accept(archival),
	}
	for len(pending) > 0 {
		n := 1
		for n < len(pending) && pending[n].ProductionTime.Equal(pending[0].ProductionTime) {
			n++
		}
		jobs := make([]job, 0, n)
		for _, ts := range pending[:n] {
			jobs = append(jobs, job{token: ts, ctx: policy.ContextTimestamp, opts: opts})
		}
		if err := r.evaluate(ctx, jobs); err != nil {
			return err
		}
		pending = pending[n:]
	}
	return nil
}

// pastValidation re-evaluates every signature with revocation checks and
// past signature validation, then runs the signature-with-time step.
func (r *Run) pastValidation(ctx context.Context, level policy.ValidationLevel, archival bool) error {
	opts := bbb.Options{
		Level:                level,
		RevocationChecks:     true,
		PastValidation:       true,
		AcceptPOE:            r.accept(archival),
		RevocationConclusion: r.revocationConclusion,
	}
	if err := r.evaluate(ctx, r.signatureJobs(opts)); err != nil {
		return err
	}
	for _, sr := range r.signatures {
		b, _ := r.Latest(sr.SignatureID)
		res := r.withTime(sr, level, b, archival)
		if archival {
			r.coverageMessages(sr, &res)
		}
		r.appendLevel(sr, res)
	}
	return nil
}

// withTime computes the best signature time from the accepted proofs of
// existence, checks the timestamp order and delay, and clears time-related
// INDETERMINATE results whose causes all lie after the best signature time.
func (r *Run) withTime(sr *SignatureResult, level policy.ValidationLevel, b *bbb.BasicBuildingBlocks, archival bool) LevelResult {
	s := r.signature(sr.SignatureID)
	accept := r.accept(archival)
	best := r.poes.LowestProvenBy(sr.SignatureID, accept)
	res := LevelResult{Level: level, Conclusion: b.Conclusion.Clone(), BestSignatureTime: best.Time, BBB: b}
	cc := r.policy.Constraints(signatureContext(s))
	if cc == nil {
		cc = &policy.ContextConstraints{}
	}

	if content, signed, ok := r.timestampOrder(sr, accept); !ok {
		res.Conclusion = applyLevel(res.Conclusion, policy.LevelOf(cc.TimestampCoherence), KeyTimestampOrder,
			fmt.Sprintf("content timestamp %s is not before timestamp %s", content, signed),
			ades.SubIndicationTimestampOrderFailure)
	}
	if d := cc.TimestampDelay; d != nil && d.Value > 0 && s.ClaimedSigningTime != nil && !best.IsFallback() {
		if best.Time.Sub(*s.ClaimedSigningTime) > d.Value {
			res.Conclusion = applyLevel(res.Conclusion, d.Level, KeyTimestampDelay,
				fmt.Sprintf("the first timestamp is more than %s after the claimed signing time", d.Value),
				ades.SubIndicationSigConstraintsFailure)
		}
	}

	if res.Conclusion.IsIndeterminate() && !best.IsFallback() && b.ResolvedAt(best.Time) {
		res.Note = fmt.Sprintf("INDETERMINATE/%s resolved by the proof of existence at %s",
			res.Conclusion.SubIndication, best.Time.Format(time.RFC3339))
		c := ades.Passed()
		c.Warnings = append(c.Warnings, res.Conclusion.Warnings...)
		c.Infos = append(c.Infos, res.Conclusion.Infos...)
		c.AddInfo(KeyPastValidation, res.Note)
		res.Conclusion = c
	}
	return res
}

// timestampOrder checks that every accepted content timestamp precedes every
// other accepted timestamp of the signature.
func (r *Run) timestampOrder(sr *SignatureResult, accept func(string) bool) (string, string, bool) {
	var content, others []*diagnostic.Timestamp
	for _, id := range sr.TimestampIDs {
		ts, ok := r.index.Timestamp(id)
		if !ok || !accept(id) {
			continue
		}
		if ts.Type.IsContent() {
			content = append(content, ts)
		} else {
			others = append(others, ts)
		}
	}
	for _, c := range content {
		for _, o := range others {
			if c.ProductionTime.After(o.ProductionTime) {
				return c.ID, o.ID, false
			}
		}
	}
	return "", "", true
}

// checkCoverage marks the archive timestamps whose algorithms expired before
// the validation time without a later passed archive timestamp covering them
// before that expiry.
func (r *Run) checkCoverage() {
	now := r.ValidationTime()
	suite := r.policy.Cryptographic
	ats := r.index.ArchiveTimestamps()
	for _, a := range ats {
		if !r.passed(a.ID) || suite.Check(a.Algorithms, now).Acceptable {
			continue
		}
		expiry, ok := suite.Expiration(a.Algorithms)
		if !ok {
			r.uncovered[a.ID] = true
			continue
		}
		covered := false
		for _, id := range r.index.CoveredBy(a.ID) {
			next, ok := r.index.Timestamp(id)
			if ok && next.Type.IsArchival() && r.passed(id) && next.ProductionTime.After(a.ProductionTime) && next.ProductionTime.Before(expiry) {
				covered = true
				break
			}
		}
		if !covered {
			r.uncovered[a.ID] = true
			r.log.Debug("Archive timestamp coverage is broken", zap.String("timestamp", a.ID), zap.Time("expiry", expiry))
		}
	}
}

func (r *Run) coverageMessages(sr *SignatureResult, res *LevelResult) {
	s := r.signature(sr.SignatureID)
	cc := r.policy.Constraints(signatureContext(s))
	if cc == nil {
		return
	}
	var broken []string
	for _, id := range sr.TimestampIDs {
		if r.uncovered[id] {
			broken = append(broken, id)
		}
	}
	sort.Strings(broken)
	for _, id := range broken {
		res.Conclusion = applyLevel(res.Conclusion, policy.LevelOf(cc.ArchivalCoverage), KeyArchivalCoverage,
			fmt.Sprintf("archive timestamp %s is not protected by a later archive timestamp", id),
			ades.SubIndicationNoPOE)
	}
}

// applyLevel records a failed signature-level constraint. At level FAIL the
// conclusion becomes INDETERMINATE with sub unless it is already FAILED.
func applyLevel(c *ades.Conclusion, level policy.Level, key, message string, sub ades.SubIndication) *ades.Conclusion {
	switch level {
	case policy.Inform:
		c.AddInfo(key, message)
	case policy.Warn:
		c.AddWarning(key, message)
	case policy.Fail:
		if !c.IsFailed() {
			next := ades.Indeterminate(sub)
			next.Merge(c)
			c = next
		}
		c.AddError(key, message)
	}
	return c
}

// appendLevel records a level result. A FAILED conclusion is never upgraded
// by a later level.
func (r *Run) appendLevel(sr *SignatureResult, res LevelResult) {
	if prev := sr.Final(); prev != nil {
		switch {
		case prev.Conclusion.IsFailed() && !res.Conclusion.IsFailed():
			res.Conclusion = prev.Conclusion.Clone()
			res.Note = fmt.Sprintf("FAILED at %s is kept", prev.Level)
		case prev.Conclusion.IsIndeterminate() && res.Conclusion.IsPassed() && res.Note == "":
			res.Note = fmt.Sprintf("upgraded from INDETERMINATE/%s at %s", prev.Conclusion.SubIndication, prev.Level)
		}
	}
	sr.Levels = append(sr.Levels, res)
	r.log.Debug("Signature level result",
		zap.String("signature", sr.SignatureID),
		zap.Stringer("level", res.Level),
		zap.Stringer("indication", res.Conclusion.Indication),
		zap.Stringer("subIndication", res.Conclusion.SubIndication))
}
