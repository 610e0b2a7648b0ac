package policy

import (
	"fmt"
	"strings"
)

// Level is the severity attached to a constraint.
type Level int

const (
	// Ignore skips the constraint.
	Ignore Level = iota
	// Inform records an info message and continues.
	Inform
	// Warn records a warning and continues.
	Warn
	// Fail stops the building block with the constraint's indication.
	Fail
)

var levelNames = map[Level]string{
	Ignore: "IGNORE",
	Inform: "INFORM",
	Warn:   "WARN",
	Fail:   "FAIL",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a constraint level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	return Ignore, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ValidationLevel is the depth of a validation run. Levels are totally
// ordered; every level runs the checks of the levels below it.
type ValidationLevel int

const (
	BasicSignatures ValidationLevel = iota + 1
	Timestamps
	LongTermData
	ArchivalData
)

var validationLevelNames = map[ValidationLevel]string{
	BasicSignatures: "BASIC_SIGNATURES",
	Timestamps:      "TIMESTAMPS",
	LongTermData:    "LONG_TERM_DATA",
	ArchivalData:    "ARCHIVAL_DATA",
}

// ValidationLevels lists every level in ascending order.
var ValidationLevels = []ValidationLevel{BasicSignatures, Timestamps, LongTermData, ArchivalData}

func (v ValidationLevel) String() string {
	if s, ok := validationLevelNames[v]; ok {
		return s
	}
	return fmt.Sprintf("ValidationLevel(%d)", int(v))
}

// Valid reports whether v is one of the four defined levels.
func (v ValidationLevel) Valid() bool {
	_, ok := validationLevelNames[v]
	return ok
}

// ParseValidationLevel parses an ETSI validation level name. Dashes and
// lower case are accepted.
func ParseValidationLevel(s string) (ValidationLevel, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for v, name := range validationLevelNames {
		if norm == name {
			return v, nil
		}
	}
	return 0, &ConfigError{Field: "validation-level", Message: fmt.Sprintf("unknown validation level %q", s), Err: ErrInvalidValidationLevel}
}

func (v ValidationLevel) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, &ConfigError{Field: "validation-level", Message: v.String(), Err: ErrInvalidValidationLevel}
	}
	return []byte(v.String()), nil
}

func (v *ValidationLevel) UnmarshalText(text []byte) error {
	l, err := ParseValidationLevel(string(text))
	if err != nil {
		return err
	}
	*v = l
	return nil
}

// Context selects the constraint set applied to a token.
type Context int

const (
	ContextSignature Context = iota
	ContextCounterSignature
	ContextTimestamp
	ContextRevocation
	ContextCertificate
	ContextEvidenceRecord
)

var contextNames = map[Context]string{
	ContextSignature:        "SIGNATURE",
	ContextCounterSignature: "COUNTER_SIGNATURE",
	ContextTimestamp:        "TIMESTAMP",
	ContextRevocation:       "REVOCATION",
	ContextCertificate:      "CERTIFICATE",
	ContextEvidenceRecord:   "EVIDENCE_RECORD",
}

func (c Context) String() string {
	if s, ok := contextNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Context(%d)", int(c))
}

func (c Context) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
