package ades

import "fmt"

// SubIndication refines a FAILED or INDETERMINATE indication.
type SubIndication int

// Sub-indication values per ETSI EN 319 102-1.
const (
	// SubIndicationNone means no sub-indication.
	SubIndicationNone SubIndication = iota

	SubIndicationFormatFailure
	SubIndicationHashFailure
	SubIndicationSigCryptoFailure
	SubIndicationRevoked
	SubIndicationSigConstraintsFailure
	SubIndicationChainConstraintsFailure
	SubIndicationCertificateChainGeneralFailure
	SubIndicationCryptoConstraintsFailure
	SubIndicationExpired
	SubIndicationNotYetValid
	SubIndicationPolicyProcessingError
	SubIndicationSignaturePolicyNotAvailable
	SubIndicationTimestampOrderFailure
	SubIndicationNoSigningCertificateFound
	SubIndicationNoCertificateChainFound
	SubIndicationRevokedNoPOE
	SubIndicationRevokedCANoPOE
	SubIndicationOutOfBoundsNoPOE
	SubIndicationOutOfBoundsNotRevoked
	SubIndicationRevocationOutOfBoundsNoPOE
	SubIndicationCryptoConstraintsFailureNoPOE
	SubIndicationNoPOE
	SubIndicationTryLater
	SubIndicationSignedDataNotFound
	SubIndicationNoValidTimestamp
	SubIndicationCustom
)

var subIndicationNames = map[SubIndication]string{
	SubIndicationFormatFailure:                  "FORMAT_FAILURE",
	SubIndicationHashFailure:                    "HASH_FAILURE",
	SubIndicationSigCryptoFailure:               "SIG_CRYPTO_FAILURE",
	SubIndicationRevoked:                        "REVOKED",
	SubIndicationSigConstraintsFailure:          "SIG_CONSTRAINTS_FAILURE",
	SubIndicationChainConstraintsFailure:        "CHAIN_CONSTRAINTS_FAILURE",
	SubIndicationCertificateChainGeneralFailure: "CERTIFICATE_CHAIN_GENERAL_FAILURE",
	SubIndicationCryptoConstraintsFailure:       "CRYPTO_CONSTRAINTS_FAILURE",
	SubIndicationExpired:                        "EXPIRED",
	SubIndicationNotYetValid:                    "NOT_YET_VALID",
	SubIndicationPolicyProcessingError:          "POLICY_PROCESSING_ERROR",
	SubIndicationSignaturePolicyNotAvailable:    "SIGNATURE_POLICY_NOT_AVAILABLE",
	SubIndicationTimestampOrderFailure:          "TIMESTAMP_ORDER_FAILURE",
	SubIndicationNoSigningCertificateFound:      "NO_SIGNING_CERTIFICATE_FOUND",
	SubIndicationNoCertificateChainFound:        "NO_CERTIFICATE_CHAIN_FOUND",
	SubIndicationRevokedNoPOE:                   "REVOKED_NO_POE",
	SubIndicationRevokedCANoPOE:                 "REVOKED_CA_NO_POE",
	SubIndicationOutOfBoundsNoPOE:               "OUT_OF_BOUNDS_NO_POE",
	SubIndicationOutOfBoundsNotRevoked:          "OUT_OF_BOUNDS_NOT_REVOKED",
	SubIndicationRevocationOutOfBoundsNoPOE:     "REVOCATION_OUT_OF_BOUNDS_NO_POE",
	SubIndicationCryptoConstraintsFailureNoPOE:  "CRYPTO_CONSTRAINTS_FAILURE_NO_POE",
	SubIndicationNoPOE:                          "NO_POE",
	SubIndicationTryLater:                       "TRY_LATER",
	SubIndicationSignedDataNotFound:             "SIGNED_DATA_NOT_FOUND",
	SubIndicationNoValidTimestamp:               "NO_VALID_TIMESTAMP",
	SubIndicationCustom:                         "CUSTOM",
}

// String returns the ETSI name of the sub-indication, or "" for SubIndicationNone.
func (s SubIndication) String() string {
	return subIndicationNames[s]
}

// ParseSubIndication returns the sub-indication with the given ETSI name.
// An empty string yields SubIndicationNone.
func ParseSubIndication(s string) (SubIndication, error) {
	if s == "" {
		return SubIndicationNone, nil
	}
	for sub, name := range subIndicationNames {
		if name == s {
			return sub, nil
		}
	}
	return SubIndicationNone, fmt.Errorf("%w: %q", ErrUnknownSubIndication, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s SubIndication) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SubIndication) UnmarshalText(text []byte) error {
	sub, err := ParseSubIndication(string(text))
	if err != nil {
		return err
	}
	*s = sub
	return nil
}

// URN returns the ETSI TS 119 102-2 URN, or "" for SubIndicationNone.
func (s SubIndication) URN() string {
	if s == SubIndicationNone {
		return ""
	}
	return "urn:etsi:019102:subindication:" + s.String()
}

// TimeRelated reports whether the sub-indication describes a problem that a
// proof of existence at an earlier time can remediate.
func (s SubIndication) TimeRelated() bool {
	switch s {
	case SubIndicationRevokedNoPOE,
		SubIndicationRevokedCANoPOE,
		SubIndicationOutOfBoundsNoPOE,
		SubIndicationOutOfBoundsNotRevoked,
		SubIndicationRevocationOutOfBoundsNoPOE,
		SubIndicationCryptoConstraintsFailureNoPOE,
		SubIndicationTryLater,
		SubIndicationNoPOE:
		return true
	}
	return false
}
