// Package bbb implements the basic building blocks of AdES validation: format
// checking, identification of the signing certificate, validation context
// initialisation, X.509 certificate validation, cryptographic verification,
// signature acceptance validation and past signature validation.
package bbb

import (
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
)

// BlockName identifies a building block.
type BlockName string

const (
	BlockFC  BlockName = "FC"
	BlockISC BlockName = "ISC"
	BlockVCI BlockName = "VCI"
	BlockXCV BlockName = "XCV"
	BlockSub BlockName = "SubXCV"
	BlockCV  BlockName = "CV"
	BlockSAV BlockName = "SAV"
	BlockPSV BlockName = "PSV"
	BlockPCV BlockName = "PCV"
	BlockVTS BlockName = "VTS"
)

// Status is the outcome of one constraint.
type Status string

const (
	StatusOK          Status = "OK"
	StatusNotOK       Status = "NOT OK"
	StatusIgnored     Status = "IGNORED"
	StatusWarning     Status = "WARNING"
	StatusInformation Status = "INFORMATION"
)

// ConstraintResult records the evaluation of one policy constraint.
type ConstraintResult struct {
	Key           string             `json:"key" xml:"Key,attr"`
	Level         policy.Level       `json:"level" xml:"Level,attr"`
	Status        Status             `json:"status" xml:"Status"`
	Indication    ades.Indication    `json:"indication,omitempty" xml:"Indication,omitempty"`
	SubIndication ades.SubIndication `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Message       string             `json:"message,omitempty" xml:"Message,omitempty"`
	TokenID       string             `json:"tokenId,omitempty" xml:"TokenID,attr,omitempty"`
}

// TimeCause is a time-related reason for an INDETERMINATE conclusion. Time
// is the instant from which the problem exists; a token proven to exist
// before it is not affected.
type TimeCause struct {
	Key           string             `json:"key" xml:"Key,attr"`
	SubIndication ades.SubIndication `json:"subIndication" xml:"SubIndication"`
	Time          *time.Time         `json:"time,omitempty" xml:"Time,omitempty"`
	TokenID       string             `json:"tokenId,omitempty" xml:"TokenID,attr,omitempty"`
}

// remediable reports whether a proof of existence before Time clears the cause.
func (c TimeCause) remediable() bool {
	if c.Time == nil {
		return false
	}
	switch c.SubIndication {
	case ades.SubIndicationRevokedNoPOE,
		ades.SubIndicationRevokedCANoPOE,
		ades.SubIndicationOutOfBoundsNoPOE,
		ades.SubIndicationOutOfBoundsNotRevoked,
		ades.SubIndicationCryptoConstraintsFailureNoPOE:
		return true
	}
	return false
}

// Block is the result of one building block.
type Block struct {
	Name        BlockName          `json:"name" xml:"Name,attr"`
	Constraints []ConstraintResult `json:"constraints,omitempty" xml:"Constraint,omitempty"`
	Conclusion  *ades.Conclusion   `json:"conclusion" xml:"Conclusion"`
	// TimeDependent is set when the block is not PASSED only because of
	// time-related causes.
	TimeDependent bool        `json:"timeDependent,omitempty" xml:"TimeDependent,attr,omitempty"`
	Causes        []TimeCause `json:"causes,omitempty" xml:"Cause,omitempty"`
}

// SubXCV is the validation of one certificate of a chain.
type SubXCV struct {
	Block
	CertificateID string `json:"certificateId" xml:"CertificateID,attr"`
	TrustAnchor   bool   `json:"trustAnchor,omitempty" xml:"TrustAnchor,attr,omitempty"`
	RevocationID  string `json:"revocationId,omitempty" xml:"RevocationID,attr,omitempty"`
}

// XCV is the X.509 certificate validation block.
type XCV struct {
	Block
	SubXCV []SubXCV `json:"subXCV,omitempty" xml:"SubXCV,omitempty"`
}

// TimedBlock is a block yielding a control time (PCV, VTS).
type TimedBlock struct {
	Block
	ControlTime time.Time `json:"controlTime" xml:"ControlTime"`
}

// PSV is the past signature validation block.
type PSV struct {
	Block
	ControlTime time.Time `json:"controlTime" xml:"ControlTime"`
	POE         *poe.POE  `json:"poe,omitempty" xml:"POE,omitempty"`
}

// BasicBuildingBlocks is the immutable snapshot of one evaluation of a token.
// Re-evaluating a token produces a new snapshot.
type BasicBuildingBlocks struct {
	TokenID        string                 `json:"id" xml:"Id,attr"`
	Kind           diagnostic.TokenKind   `json:"-" xml:"-"`
	Context        policy.Context         `json:"context" xml:"Context,attr"`
	Level          policy.ValidationLevel `json:"level" xml:"Level,attr"`
	ValidationTime time.Time              `json:"validationTime" xml:"ValidationTime"`

	FC  *Block `json:"fc,omitempty" xml:"FC,omitempty"`
	ISC *Block `json:"isc,omitempty" xml:"ISC,omitempty"`
	VCI *Block `json:"vci,omitempty" xml:"VCI,omitempty"`
	XCV *XCV   `json:"xcv,omitempty" xml:"XCV,omitempty"`
	CV  *Block `json:"cv,omitempty" xml:"CV,omitempty"`
	SAV *Block `json:"sav,omitempty" xml:"SAV,omitempty"`

	PSV *PSV        `json:"psv,omitempty" xml:"PSV,omitempty"`
	PCV *TimedBlock `json:"pcv,omitempty" xml:"PCV,omitempty"`
	VTS *TimedBlock `json:"vts,omitempty" xml:"VTS,omitempty"`

	// CurrentTimeConclusion is the conclusion at the validation time before
	// past signature validation.
	CurrentTimeConclusion *ades.Conclusion `json:"currentTimeConclusion,omitempty" xml:"CurrentTimeConclusion,omitempty"`
	Conclusion            *ades.Conclusion `json:"conclusion" xml:"Conclusion"`
}

// Blocks returns the evaluated current-time blocks in their fixed order.
func (b *BasicBuildingBlocks) Blocks() []*Block {
	var out []*Block
	for _, blk := range []*Block{b.FC, b.ISC, b.VCI, b.xcvBlock(), b.CV, b.SAV} {
		if blk != nil {
			out = append(out, blk)
		}
	}
	return out
}

func (b *BasicBuildingBlocks) xcvBlock() *Block {
	if b.XCV == nil {
		return nil
	}
	return &b.XCV.Block
}

// Causes returns the time-related causes of the current-time conclusion.
func (b *BasicBuildingBlocks) Causes() []TimeCause {
	var out []TimeCause
	for _, blk := range b.Blocks() {
		if !blk.Conclusion.IsPassed() {
			out = append(out, blk.Causes...)
		}
	}
	return out
}

// TimeDependent reports whether the current-time conclusion is INDETERMINATE
// only because of time-related causes.
func (b *BasicBuildingBlocks) TimeDependent() bool {
	c := b.CurrentTimeConclusion
	if c == nil {
		c = b.Conclusion
	}
	if !c.IsIndeterminate() {
		return false
	}
	for _, blk := range b.Blocks() {
		if !blk.Conclusion.IsPassed() && !blk.TimeDependent {
			return false
		}
	}
	return true
}

// ResolvedAt reports whether a proof that the token existed at t clears
// every time-related cause of the current-time conclusion: each cause must
// be remediable and t must precede it.
func (b *BasicBuildingBlocks) ResolvedAt(t time.Time) bool {
	if !b.TimeDependent() {
		return false
	}
	causes := b.Causes()
	if len(causes) == 0 {
		return false
	}
	for _, c := range causes {
		if !c.remediable() || !t.Before(*c.Time) {
			return false
		}
	}
	return true
}

// Passed reports whether the overall conclusion is PASSED.
func (b *BasicBuildingBlocks) Passed() bool {
	return b != nil && b.Conclusion.IsPassed()
}
