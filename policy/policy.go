// Package policy holds the validation policy: constraint sets keyed by
// validation context, the cryptographic suite and the eIDAS trusted list
// checks. Policies are written in YAML with kebab-case keys.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrMissingPolicy          = errors.New("missing validation policy")
	ErrMissingConstraint      = errors.New("missing mandatory constraint")
	ErrInvalidValidationLevel = errors.New("invalid validation level")
	ErrInvalidLevel           = errors.New("invalid constraint level")
	ErrInvalidValue           = errors.New("invalid constraint value")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: err}
}

// Policy is a validation policy.
type Policy struct {
	// Name identifies the policy in reports.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	Signature        *ContextConstraints `yaml:"signature"`
	CounterSignature *ContextConstraints `yaml:"counter-signature,omitempty"`
	Timestamp        *ContextConstraints `yaml:"timestamp,omitempty"`
	Revocation       *ContextConstraints `yaml:"revocation,omitempty"`
	EvidenceRecord   *ContextConstraints `yaml:"evidence-record,omitempty"`

	// Certificate holds the chain constraints used by contexts that do not
	// define their own.
	Certificate *ContextConstraints `yaml:"certificate,omitempty"`

	// Cryptographic is the algorithm suite shared by every context.
	Cryptographic *CryptographicSuite `yaml:"cryptographic,omitempty"`

	// EIDAS enables qualification when present.
	EIDAS *TrustedListConstraints `yaml:"eidas,omitempty"`
}

// Load reads a policy from a YAML file and validates it.
func Load(filename string) (*Policy, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy and validates it. Unknown keys are rejected.
func Parse(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewConfigError("", "policy document is empty", ErrMissingPolicy)
		}
		return nil, NewConfigError("", err.Error(), ErrInvalidValue)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal encodes the policy as YAML.
func (p *Policy) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks the policy for configuration errors. Every problem is
// reported; the returned error combines them.
func (p *Policy) Validate() error {
	if p == nil {
		return NewConfigError("", "no policy given", ErrMissingPolicy)
	}
	var err error
	if p.Signature == nil {
		err = multierr.Append(err, NewConfigError("signature", "signature constraints are mandatory", ErrMissingConstraint))
	}
	for _, ctx := range []Context{ContextSignature, ContextCounterSignature, ContextTimestamp, ContextRevocation, ContextEvidenceRecord, ContextCertificate} {
		err = multierr.Append(err, p.section(ctx).validate(sectionName(ctx)))
	}
	if p.Cryptographic != nil {
		for _, alg := range sortedKeys(p.Cryptographic.MinimumKeyLengths) {
			if n := p.Cryptographic.MinimumKeyLengths[alg]; n <= 0 {
				err = multierr.Append(err, NewConfigError("cryptographic.minimum-key-lengths."+alg, fmt.Sprintf("key length must be positive, got %d", n), ErrInvalidValue))
			}
		}
	}
	if p.EIDAS != nil && p.EIDAS.Freshness != nil && p.EIDAS.Freshness.Value < 0 {
		err = multierr.Append(err, NewConfigError("eidas.tl-freshness", "duration must not be negative", ErrInvalidValue))
	}
	return err
}

func (c *ContextConstraints) validate(field string) error {
	if c == nil {
		return nil
	}
	var err error
	if c.TimestampDelay != nil && c.TimestampDelay.Value < 0 {
		err = multierr.Append(err, NewConfigError(field+".timestamp-delay", "duration must not be negative", ErrInvalidValue))
	}
	certs := []struct {
		name string
		cc   *CertificateConstraints
	}{{"signing-certificate", c.SigningCertificate}, {"ca-certificate", c.CACertificate}}
	for _, cert := range certs {
		if cert.cc != nil && cert.cc.RevocationFreshness != nil && cert.cc.RevocationFreshness.Value < 0 {
			err = multierr.Append(err, NewConfigError(field+"."+cert.name+".revocation-freshness", "duration must not be negative", ErrInvalidValue))
		}
	}
	return err
}

func sectionName(ctx Context) string {
	switch ctx {
	case ContextSignature:
		return "signature"
	case ContextCounterSignature:
		return "counter-signature"
	case ContextTimestamp:
		return "timestamp"
	case ContextRevocation:
		return "revocation"
	case ContextEvidenceRecord:
		return "evidence-record"
	default:
		return "certificate"
	}
}

func (p *Policy) section(ctx Context) *ContextConstraints {
	switch ctx {
	case ContextSignature:
		return p.Signature
	case ContextCounterSignature:
		return p.CounterSignature
	case ContextTimestamp:
		return p.Timestamp
	case ContextRevocation:
		return p.Revocation
	case ContextEvidenceRecord:
		return p.EvidenceRecord
	case ContextCertificate:
		return p.Certificate
	}
	return nil
}

// Constraints returns the constraint set for a context. Counter-signatures
// fall back to the signature constraints. A nil result means the policy does
// not cover the context.
func (p *Policy) Constraints(ctx Context) *ContextConstraints {
	if p == nil {
		return nil
	}
	c := p.section(ctx)
	if c == nil && ctx == ContextCounterSignature {
		c = p.Signature
	}
	return c
}

// SigningCertificateConstraints returns the constraints for the first chain
// element of a token in ctx, falling back to the certificate section.
func (p *Policy) SigningCertificateConstraints(ctx Context) *CertificateConstraints {
	if c := p.Constraints(ctx); c != nil && c.SigningCertificate != nil {
		return c.SigningCertificate
	}
	if p != nil && p.Certificate != nil && p.Certificate.SigningCertificate != nil {
		return p.Certificate.SigningCertificate
	}
	return &CertificateConstraints{}
}

// CACertificateConstraints returns the constraints for issuer certificates.
func (p *Policy) CACertificateConstraints(ctx Context) *CertificateConstraints {
	if c := p.Constraints(ctx); c != nil && c.CACertificate != nil {
		return c.CACertificate
	}
	if p != nil && p.Certificate != nil && p.Certificate.CACertificate != nil {
		return p.Certificate.CACertificate
	}
	return &CertificateConstraints{}
}

// EIDASEnabled reports whether qualification is requested.
func (p *Policy) EIDASEnabled() bool {
	return p != nil && p.EIDAS != nil
}
