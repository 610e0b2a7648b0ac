package diagnostic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
)

// ErrStructure is wrapped by every structural problem found in a snapshot.
var ErrStructure = errors.New("diagnostic data structure")

// DiagnosticData is the snapshot of parsed facts a validation run judges.
// Slice order is input order and is kept in the reports.
type DiagnosticData struct {
	DocumentName    string            `json:"documentName,omitempty"`
	ValidationDate  time.Time         `json:"validationDate,omitempty"`
	Signatures      []*Signature      `json:"signatures,omitempty"`
	Timestamps      []*Timestamp      `json:"timestamps,omitempty"`
	EvidenceRecords []*EvidenceRecord `json:"evidenceRecords,omitempty"`
	Certificates    []*Certificate    `json:"certificates,omitempty"`
	Revocations     []*Revocation     `json:"revocations,omitempty"`
	SignerData      []*SignerData     `json:"signerData,omitempty"`
}

// Load reads a JSON encoded snapshot from a file.
func Load(file string) (*DiagnosticData, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic data: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a JSON encoded snapshot from r.
func Decode(r io.Reader) (*DiagnosticData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostic data: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON encoded snapshot.
func Parse(data []byte) (*DiagnosticData, error) {
	var d DiagnosticData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse diagnostic data: %w", err)
	}
	return &d, nil
}

// Validate reports the structural problems of the snapshot: duplicate ids,
// dangling references and covering edges whose type does not match the
// referenced token. Problems do not make the snapshot unusable; the affected
// tokens fail their own checks instead.
func (d *DiagnosticData) Validate() error {
	return multierr.Combine(NewIndex(d).Problems()...)
}

// SignatureCount returns the number of signatures including counter-signatures.
func (d *DiagnosticData) SignatureCount() int {
	return len(d.Signatures)
}
