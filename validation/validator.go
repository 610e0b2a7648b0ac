package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/qualified"
	"github.com/georgepadayatti/trustval/report"
)

// Validator validates diagnostic data against a policy and assembles the
// reports. A Validator holds no per-run state and may be shared.
type Validator struct {
	policy         *policy.Policy
	level          policy.ValidationLevel
	validationTime time.Time
	analysis       *qualified.TrustedListAnalysis
	assembler      *report.Assembler
	log            *zap.Logger
	workers        int
}

// Option configures a Validator.
type Option func(*Validator)

// WithLevel sets the validation level. The default is ARCHIVAL_DATA.
func WithLevel(l policy.ValidationLevel) Option {
	return func(v *Validator) {
		v.level = l
	}
}

// WithValidationTime fixes the current time of every run. Without it the
// validation date of the data is used, then the wall clock.
func WithValidationTime(t time.Time) Option {
	return func(v *Validator) {
		v.validationTime = t
	}
}

// WithTrustedListAnalysis sets the trusted list analysis used for
// qualification.
func WithTrustedListAnalysis(a *qualified.TrustedListAnalysis) Option {
	return func(v *Validator) {
		v.analysis = a
	}
}

// WithETSIValidationReport toggles the ETSI validation report.
func WithETSIValidationReport(enabled bool) Option {
	return func(v *Validator) {
		cfg := v.assembler.Config()
		cfg.ETSIValidationReport = enabled
		v.assembler = report.NewAssembler(cfg)
	}
}

// WithReportConfig replaces the report configuration.
func WithReportConfig(cfg report.Config) Option {
	return func(v *Validator) {
		v.assembler = report.NewAssembler(cfg)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

// WithWorkers bounds the number of parallel building block evaluations.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		v.workers = n
	}
}

// NewValidator creates a validator for a policy.
func NewValidator(p *policy.Policy, opts ...Option) *Validator {
	v := &Validator{
		policy:    p,
		level:     policy.ArchivalData,
		assembler: report.NewAssembler(report.DefaultConfig()),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the validation of data and assembles the reports. Only
// configuration errors and context cancellation are returned; problems in
// the data become conclusions in the reports.
func (v *Validator) Validate(ctx context.Context, data *diagnostic.DiagnosticData) (*report.Reports, error) {
	if err := v.check(data); err != nil {
		return nil, err
	}

	start := time.Now()
	x := diagnostic.NewIndex(data)
	for _, p := range x.Problems() {
		v.log.Warn("Diagnostic data problem", zap.Error(p))
	}

	now := v.currentTime(data)
	poes := poe.Collect(x, now, poe.WithLogger(v.log))
	for _, i := range poes.Inconsistencies() {
		v.log.Warn("Inconsistent proof of existence",
			zap.String("coverer", i.CovererID),
			zap.String("covered", i.CoveredID),
			zap.String("reason", i.Reason))
	}

	run := NewRun(x, v.policy, poes, WithRunLogger(v.log), WithRunWorkers(v.workers))
	if err := run.Execute(ctx, v.level); err != nil {
		return nil, fmt.Errorf("validation aborted: %w", err)
	}

	in := run.reportInput(v.level)
	if v.policy.EIDASEnabled() {
		v.qualify(run, in)
	}
	reports := v.assembler.Assemble(in)

	v.log.Info("Validation completed",
		zap.String("document", data.DocumentName),
		zap.Stringer("level", v.level),
		zap.Time("validationTime", now),
		zap.Int("signatures", reports.Simple.SignaturesCount),
		zap.Int("validSignatures", reports.Simple.ValidSignaturesCount),
		zap.Duration("elapsed", time.Since(start)))
	return reports, nil
}

// check reports the configuration errors that prevent a run.
func (v *Validator) check(data *diagnostic.DiagnosticData) error {
	if v.policy == nil {
		return policy.NewConfigError("policy", "no validation policy given", ErrMissingPolicy)
	}
	if !v.level.Valid() {
		return policy.NewConfigError("validation-level", fmt.Sprintf("unknown level %d", int(v.level)), ErrInvalidValidationLevel)
	}
	if err := v.policy.Validate(); err != nil {
		return err
	}
	if data == nil {
		return policy.NewConfigError("diagnostic-data", "no diagnostic data given", ErrMissingData)
	}
	return nil
}

func (v *Validator) currentTime(data *diagnostic.DiagnosticData) time.Time {
	switch {
	case !v.validationTime.IsZero():
		return v.validationTime.UTC()
	case !data.ValidationDate.IsZero():
		return data.ValidationDate.UTC()
	default:
		return time.Now().UTC()
	}
}

// qualify computes the qualification of every signature and evaluated
// timestamp. Results are recomputed for every report build.
func (v *Validator) qualify(run *Run, in *report.Input) {
	engine := qualified.NewEngine(v.policy.EIDAS, run.ValidationTime())
	for i := range in.Signatures {
		s := &in.Signatures[i]
		sig, ok := run.Index().Signature(s.ID)
		if !ok {
			continue
		}
		final, ok := s.Final()
		if !ok {
			continue
		}
		best := final.BestSignatureTime
		if best.IsZero() {
			best = run.ValidationTime()
		}
		s.Qualification = engine.QualifySignature(final.Conclusion, run.Index().Chain(sig), best, v.analysis)
	}
	in.TimestampQualifications = make(map[string]*qualified.TimestampResult)
	for _, id := range run.Evaluated() {
		ts, ok := run.Index().Timestamp(id)
		if !ok {
			continue
		}
		b, _ := run.Latest(id)
		in.TimestampQualifications[id] = engine.QualifyTimestamp(b.Conclusion, run.Index().Chain(ts), ts.ProductionTime, v.analysis)
	}
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
