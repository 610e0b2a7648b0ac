// Package report projects a finished validation run onto the simple, the
// detailed and the ETSI TS 119 102-2 validation reports.
//
// Assembling is a pure function of its Input: the same input always yields
// byte-identical JSON and XML output.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/georgepadayatti/trustval/bbb"
)

// Config holds the assembly settings. It is built once by the caller and
// passed to NewAssembler.
type Config struct {
	// ETSIValidationReport enables the ETSI report. When false the report
	// is omitted, not emitted empty.
	ETSIValidationReport bool

	// Namespace is the XML namespace of the ETSI report. It also scopes the
	// report identifiers.
	Namespace string

	// ValidatorName is written as the signature validator of the ETSI report.
	ValidatorName string
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ETSIValidationReport: true,
		Namespace:            ETSINamespace,
		ValidatorName:        "trustval",
	}
}

// Reports is the result of one assembly.
type Reports struct {
	XMLName  xml.Name        `json:"-" xml:"Reports"`
	Simple   *SimpleReport   `json:"simpleReport" xml:"SimpleReport"`
	Detailed *DetailedReport `json:"detailedReport" xml:"DetailedReport"`
	ETSI     *ETSIReport     `json:"etsiValidationReport,omitempty" xml:"ValidationReport,omitempty"`
}

// JSON serializes all reports to JSON.
func (r *Reports) JSON() ([]byte, error) {
	return marshalJSON(r)
}

// XML serializes all reports to XML.
func (r *Reports) XML() ([]byte, error) {
	return marshalXML(r)
}

// Assembler builds reports. It is stateless apart from its configuration
// and safe for concurrent use.
type Assembler struct {
	config Config
}

// NewAssembler creates an assembler. An empty namespace falls back to the
// ETSI one.
func NewAssembler(config Config) *Assembler {
	if config.Namespace == "" {
		config.Namespace = ETSINamespace
	}
	return &Assembler{config: config}
}

// Config returns the assembler configuration.
func (a *Assembler) Config() Config {
	return a.config
}

// Assemble builds the reports of one validation run.
func (a *Assembler) Assemble(in *Input) *Reports {
	s := newAssembly(a.config, in)
	out := &Reports{
		Simple:   s.simple(),
		Detailed: s.detailed(),
	}
	if a.config.ETSIValidationReport {
		out.ETSI = s.etsi()
	}
	return out
}

// assembly carries the lookups shared by the three projections.
type assembly struct {
	config Config
	in     *Input
	latest map[string]*bbb.BasicBuildingBlocks
}

func newAssembly(config Config, in *Input) *assembly {
	s := &assembly{
		config: config,
		in:     in,
		latest: make(map[string]*bbb.BasicBuildingBlocks, len(in.Tokens)),
	}
	for _, t := range in.Tokens {
		if b := t.Latest(); b != nil {
			s.latest[t.ID] = b
		}
	}
	return s
}

// reportID derives a name based identifier so that re-assembling the same
// run yields the same id.
func (s *assembly) reportID() string {
	name := fmt.Sprintf("%s|%s|%s", s.config.Namespace, s.in.documentName(), s.in.ValidationTime.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

func marshalXML(v any) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
