package validation

import (
	"errors"

	"github.com/georgepadayatti/trustval/policy"
)

// ConfigError is a configuration error. Configuration errors are the only
// errors Validate returns besides context cancellation.
type ConfigError = policy.ConfigError

var (
	ErrMissingPolicy          = policy.ErrMissingPolicy
	ErrMissingConstraint      = policy.ErrMissingConstraint
	ErrInvalidValidationLevel = policy.ErrInvalidValidationLevel

	// ErrMissingData is returned when no diagnostic data is given.
	ErrMissingData = errors.New("missing diagnostic data")
)
