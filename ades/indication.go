// Package ades provides the ETSI EN 319 102-1 verdict vocabulary: indications,
// sub-indications and the Conclusion value every validation step produces.
package ades

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnknownIndication    = errors.New("unknown indication")
	ErrUnknownSubIndication = errors.New("unknown sub-indication")
)

// Indication is the main validation status.
type Indication int

const (
	// IndicationNone is the zero value and never appears in a finished conclusion.
	IndicationNone Indication = iota
	IndicationPassed
	IndicationFailed
	IndicationIndeterminate
	IndicationTotalPassed
	IndicationTotalFailed
	IndicationNoSignatureFound
)

var indicationNames = map[Indication]string{
	IndicationPassed:           "PASSED",
	IndicationFailed:           "FAILED",
	IndicationIndeterminate:    "INDETERMINATE",
	IndicationTotalPassed:      "TOTAL_PASSED",
	IndicationTotalFailed:      "TOTAL_FAILED",
	IndicationNoSignatureFound: "NO_SIGNATURE_FOUND",
}

// String returns the ETSI name of the indication.
func (i Indication) String() string {
	if name, ok := indicationNames[i]; ok {
		return name
	}
	return ""
}

// ParseIndication returns the indication with the given ETSI name.
func ParseIndication(s string) (Indication, error) {
	for ind, name := range indicationNames {
		if name == s {
			return ind, nil
		}
	}
	return IndicationNone, fmt.Errorf("%w: %q", ErrUnknownIndication, s)
}

// MarshalText implements encoding.TextMarshaler.
func (i Indication) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Indication) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*i = IndicationNone
		return nil
	}
	ind, err := ParseIndication(string(text))
	if err != nil {
		return err
	}
	*i = ind
	return nil
}

// AllowsSubIndication reports whether a sub-indication may accompany the indication.
func (i Indication) AllowsSubIndication() bool {
	return i == IndicationFailed || i == IndicationIndeterminate
}

// Collapse maps a process indication onto the final report vocabulary:
// PASSED becomes TOTAL_PASSED and FAILED becomes TOTAL_FAILED.
func (i Indication) Collapse() Indication {
	switch i {
	case IndicationPassed, IndicationTotalPassed:
		return IndicationTotalPassed
	case IndicationFailed, IndicationTotalFailed:
		return IndicationTotalFailed
	case IndicationNoSignatureFound:
		return IndicationNoSignatureFound
	default:
		return IndicationIndeterminate
	}
}

// Rank orders indications from most to least optimistic. Higher is worse.
func (i Indication) Rank() int {
	switch i {
	case IndicationPassed, IndicationTotalPassed:
		return 0
	case IndicationIndeterminate:
		return 1
	case IndicationFailed, IndicationTotalFailed:
		return 2
	default:
		return 3
	}
}

// Main indication URNs from ETSI TS 119 102-2.
const (
	MainIndicationURNPassed           = "urn:etsi:019102:mainindication:total-passed"
	MainIndicationURNFailed           = "urn:etsi:019102:mainindication:total-failed"
	MainIndicationURNIndeterminate    = "urn:etsi:019102:mainindication:indeterminate"
	MainIndicationURNPassedProcess    = "urn:etsi:019102:mainindication:passed"
	MainIndicationURNFailedProcess    = "urn:etsi:019102:mainindication:failed"
	MainIndicationURNNoSignatureFound = "urn:etsi:019102:mainindication:noSignatureFound"
)

// URN returns the ETSI TS 119 102-2 URN for the indication.
func (i Indication) URN() string {
	switch i {
	case IndicationTotalPassed:
		return MainIndicationURNPassed
	case IndicationTotalFailed:
		return MainIndicationURNFailed
	case IndicationPassed:
		return MainIndicationURNPassedProcess
	case IndicationFailed:
		return MainIndicationURNFailedProcess
	case IndicationNoSignatureFound:
		return MainIndicationURNNoSignatureFound
	default:
		return MainIndicationURNIndeterminate
	}
}
