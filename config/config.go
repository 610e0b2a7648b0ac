// Package config loads the application configuration of the trustval
// command: where the policy and trusted list analysis come from, how deep
// to validate, how to write the reports and how to log.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/trustval/policy"
	"github.com/georgepadayatti/trustval/report"
)

// Common errors
var (
	ErrUnexpectedField = errors.New("unexpected field in configuration")
	ErrInvalidValue    = errors.New("invalid value")
)

// ConfigError represents a configuration error with context.
type ConfigError = policy.ConfigError

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return policy.NewConfigError(field, message, err)
}

// Output formats.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatText = "text"
)

// Report selections.
const (
	ReportAll      = "all"
	ReportSimple   = "simple"
	ReportDetailed = "detailed"
	ReportETSI     = "etsi"
)

// ValidationConfig contains the validation settings.
type ValidationConfig struct {
	// Policy is the path of a YAML validation policy. The built-in policy
	// is used when empty.
	Policy string `yaml:"policy" json:"policy,omitempty"`

	// TrustedLists is the path of a JSON trusted list analysis.
	TrustedLists string `yaml:"trusted-lists" json:"trusted_lists,omitempty"`

	// Level is the validation level name (BASIC_SIGNATURES ... ARCHIVAL_DATA).
	Level string `yaml:"level" json:"level,omitempty"`

	// Time overrides the validation time, in RFC 3339.
	Time string `yaml:"time" json:"time,omitempty"`

	// Workers bounds the parallel evaluations. Zero uses the default.
	Workers int `yaml:"workers" json:"workers,omitempty"`
}

// ValidationLevel returns the configured level.
func (c *ValidationConfig) ValidationLevel() (policy.ValidationLevel, error) {
	if c.Level == "" {
		return policy.ArchivalData, nil
	}
	return policy.ParseValidationLevel(c.Level)
}

// ValidationTime returns the configured validation time, or the zero time.
func (c *ValidationConfig) ValidationTime() (time.Time, error) {
	if c.Time == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Time)
	if err != nil {
		return time.Time{}, NewConfigError("validation.time", err.Error(), ErrInvalidValue)
	}
	return t.UTC(), nil
}

// LoadPolicy returns the configured policy, or the built-in one.
func (c *ValidationConfig) LoadPolicy() (*policy.Policy, error) {
	if c.Policy == "" {
		return policy.DefaultPolicy(), nil
	}
	return policy.Load(c.Policy)
}

// OutputConfig contains the report output settings.
type OutputConfig struct {
	// Format is json, xml or text.
	Format string `yaml:"format" json:"format,omitempty"`

	// Report selects the report written: all, simple, detailed or etsi.
	Report string `yaml:"report" json:"report,omitempty"`

	// ETSI enables the ETSI validation report.
	ETSI *bool `yaml:"etsi" json:"etsi,omitempty"`

	// Namespace overrides the ETSI report namespace.
	Namespace string `yaml:"namespace" json:"namespace,omitempty"`

	// ValidatorName is written as the signature validator of the ETSI report.
	ValidatorName string `yaml:"validator-name" json:"validator_name,omitempty"`
}

// SetDefaults sets default values for the output configuration.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Report == "" {
		c.Report = ReportAll
	}
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	switch c.Format {
	case FormatJSON, FormatXML, FormatText:
	default:
		return NewConfigError("output.format", fmt.Sprintf("unknown format %q", c.Format), ErrInvalidValue)
	}
	switch c.Report {
	case ReportAll, ReportSimple, ReportDetailed, ReportETSI:
	default:
		return NewConfigError("output.report", fmt.Sprintf("unknown report %q", c.Report), ErrInvalidValue)
	}
	if c.Format == FormatText && c.Report != ReportAll && c.Report != ReportSimple {
		return NewConfigError("output.report", "text output only renders the simple report", ErrInvalidValue)
	}
	if c.Report == ReportETSI && c.ETSI != nil && !*c.ETSI {
		return NewConfigError("output.etsi", "the etsi report is selected but disabled", ErrInvalidValue)
	}
	return nil
}

// ReportConfig returns the assembly configuration.
func (c *OutputConfig) ReportConfig() report.Config {
	cfg := report.DefaultConfig()
	if c.ETSI != nil {
		cfg.ETSIValidationReport = *c.ETSI
	}
	if c.Namespace != "" {
		cfg.Namespace = c.Namespace
	}
	if c.ValidatorName != "" {
		cfg.ValidatorName = c.ValidatorName
	}
	return cfg
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format" json:"format,omitempty"`

	// Output is the log output (stdout, stderr, or file path).
	Output string `yaml:"output" json:"output,omitempty"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return NewConfigError("logging.level", err.Error(), ErrInvalidValue)
	}
	if c.Format != "text" && c.Format != "json" {
		return NewConfigError("logging.format", fmt.Sprintf("unknown format %q", c.Format), ErrInvalidValue)
	}
	return nil
}

// Logger builds the logger described by the configuration. Verbose forces
// the debug level and the development encoder.
func (c *LoggingConfig) Logger(verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if verbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, NewConfigError("logging.level", err.Error(), ErrInvalidValue)
		}
		zc.Level = level
		if c.Format == "text" {
			zc.Encoding = "console"
			zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
	}
	zc.OutputPaths = []string{c.Output}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// AppConfig contains the complete application configuration.
type AppConfig struct {
	// Validation contains the validation settings.
	Validation *ValidationConfig `yaml:"validation" json:"validation,omitempty"`

	// Output contains the report output settings.
	Output *OutputConfig `yaml:"output" json:"output,omitempty"`

	// Logging contains logging configuration.
	Logging *LoggingConfig `yaml:"logging" json:"logging,omitempty"`
}

// DefaultAppConfig returns the configuration used without a file.
func DefaultAppConfig() *AppConfig {
	c := &AppConfig{}
	c.SetDefaults()
	return c
}

// SetDefaults fills the missing sections and values.
func (c *AppConfig) SetDefaults() {
	if c.Validation == nil {
		c.Validation = &ValidationConfig{}
	}
	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	c.Output.SetDefaults()
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *AppConfig) Validate() error {
	_, levelErr := c.Validation.ValidationLevel()
	_, timeErr := c.Validation.ValidationTime()
	err := multierr.Combine(levelErr, timeErr, c.Output.Validate(), c.Logging.Validate())
	if c.Validation.Workers < 0 {
		err = multierr.Append(err, NewConfigError("validation.workers", "must not be negative", ErrInvalidValue))
	}
	return err
}

// LoadAppConfig loads the complete application configuration from a file.
func LoadAppConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseAppConfig(data)
}

// ParseAppConfig parses the application configuration from YAML data, sets
// the defaults and validates it.
func ParseAppConfig(data []byte) (*AppConfig, error) {
	normalized, err := checkKeys(data)
	if err != nil {
		return nil, err
	}
	var config AppConfig
	if err := yaml.Unmarshal(normalized, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

var sectionKeys = map[string][]string{
	"validation": {"policy", "trusted-lists", "level", "time", "workers"},
	"output":     {"format", "report", "etsi", "namespace", "validator-name"},
	"logging":    {"level", "format", "output"},
}

// checkKeys rejects unknown sections and keys and returns the document
// with every key normalized to dashes.
func checkKeys(data []byte) ([]byte, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	sections := make([]string, 0, len(sectionKeys))
	for name := range sectionKeys {
		sections = append(sections, name)
	}
	supplied := make([]string, 0, len(raw))
	for name := range raw {
		supplied = append(supplied, name)
	}
	sort.Strings(supplied)
	if err := CheckConfigKeys("trustval", sections, supplied); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]any, len(raw))
	for _, name := range supplied {
		section := make(map[string]any, len(raw[name]))
		keys := make([]string, 0, len(raw[name]))
		for k, v := range raw[name] {
			keys = append(keys, k)
			section[normalizeKey(k)] = v
		}
		sort.Strings(keys)
		if err := CheckConfigKeys(normalizeKey(name), sectionKeys[normalizeKey(name)], keys); err != nil {
			return nil, err
		}
		out[normalizeKey(name)] = section
	}
	return yaml.Marshal(out)
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		// Normalize to use dashes
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		normalized := normalizeKey(k)
		if !expectedSet[normalized] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
