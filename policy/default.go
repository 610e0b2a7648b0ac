package policy

import "time"

func fail() *Constraint   { return &Constraint{Level: Fail} }
func warn() *Constraint   { return &Constraint{Level: Warn} }
func inform() *Constraint { return &Constraint{Level: Inform} }

// DefaultPolicy returns the built-in policy. It follows the usual AdES
// baseline expectations: every cryptographic and chain check fails hard,
// attribute and usage checks warn.
func DefaultPolicy() *Policy {
	return &Policy{
		Name:        "default",
		Description: "Default AdES validation policy",
		Signature: &ContextConstraints{
			StructuralValidation:          fail(),
			SigningCertificateRecognition: fail(),
			SigningCertificateAttribute:   warn(),
			SigningCertificateDigestMatch: fail(),
			ProspectiveCertificateChain:   fail(),
			ReferenceDataExistence:        fail(),
			ReferenceDataIntact:           fail(),
			SignatureIntact:               fail(),
			SigningTime:                   warn(),
			Cryptographic:                 fail(),
			TimestampCoherence:            fail(),
			ArchivalCoverage:              warn(),
			SigningCertificate: &CertificateConstraints{
				Recognition:              fail(),
				Signature:                fail(),
				NotExpired:               fail(),
				KeyUsage:                 &MultiValuesConstraint{Level: Warn, Values: []string{"non-repudiation", "digital-signature"}},
				Cryptographic:            fail(),
				RevocationDataAvailable:  fail(),
				AcceptableRevocationData: fail(),
				RevocationFreshness:      &TimeConstraint{Level: Fail},
				NotRevoked:               fail(),
				NotOnHold:                fail(),
			},
			CACertificate: defaultCA(),
		},
		Timestamp: &ContextConstraints{
			StructuralValidation:          fail(),
			SigningCertificateRecognition: fail(),
			ProspectiveCertificateChain:   fail(),
			ReferenceDataExistence:        fail(),
			ReferenceDataIntact:           fail(),
			SignatureIntact:               fail(),
			Cryptographic:                 fail(),
			SigningCertificate: &CertificateConstraints{
				Recognition:              fail(),
				Signature:                fail(),
				NotExpired:               fail(),
				ExtendedKeyUsage:         &MultiValuesConstraint{Level: Warn, Values: []string{"time-stamping"}},
				Cryptographic:            fail(),
				RevocationDataAvailable:  warn(),
				AcceptableRevocationData: warn(),
				NotRevoked:               fail(),
				NotOnHold:                fail(),
			},
			CACertificate: defaultCA(),
		},
		Revocation: &ContextConstraints{
			SigningCertificateRecognition: fail(),
			ProspectiveCertificateChain:   fail(),
			SignatureIntact:               fail(),
			Cryptographic:                 fail(),
			SigningCertificate: &CertificateConstraints{
				Recognition:   fail(),
				Signature:     fail(),
				NotExpired:    fail(),
				Cryptographic: fail(),
			},
			CACertificate: defaultCA(),
		},
		EvidenceRecord: &ContextConstraints{
			StructuralValidation:   fail(),
			ReferenceDataExistence: fail(),
			ReferenceDataIntact:    fail(),
			Cryptographic:          fail(),
		},
		Cryptographic: DefaultCryptographicSuite(),
		EIDAS: &TrustedListConstraints{
			Freshness:  &TimeConstraint{Level: Warn, Value: 6 * 30 * 24 * time.Hour},
			NotExpired: warn(),
			WellSigned: warn(),
		},
	}
}

func defaultCA() *CertificateConstraints {
	return &CertificateConstraints{
		Recognition:              fail(),
		Signature:                fail(),
		NotExpired:               fail(),
		CA:                       fail(),
		Cryptographic:            fail(),
		RevocationDataAvailable:  fail(),
		AcceptableRevocationData: fail(),
		NotRevoked:               fail(),
		NotOnHold:                inform(),
	}
}

// DefaultCryptographicSuite returns the built-in algorithm table.
func DefaultCryptographicSuite() *CryptographicSuite {
	return &CryptographicSuite{
		AcceptableDigestAlgorithms: []string{
			"MD5", "SHA1", "SHA224", "SHA256", "SHA384", "SHA512",
			"SHA3-224", "SHA3-256", "SHA3-384", "SHA3-512", "RIPEMD160", "WHIRLPOOL",
		},
		AcceptableEncryptionAlgorithms: []string{"RSA", "RSASSA-PSS", "DSA", "ECDSA", "EdDSA"},
		MinimumKeyLengths: map[string]int{
			"RSA":        1024,
			"RSASSA-PSS": 1024,
			"DSA":        1024,
			"ECDSA":      160,
		},
		AlgorithmExpiration: map[string]Date{
			"MD5":       NewDate(2004, time.August, 1),
			"SHA1":      NewDate(2012, time.August, 1),
			"SHA224":    NewDate(2029, time.January, 1),
			"RIPEMD160": NewDate(2011, time.August, 1),
			"WHIRLPOOL": NewDate(2020, time.December, 1),
			"RSA1024":   NewDate(2016, time.January, 1),
			"RSA1536":   NewDate(2019, time.January, 1),
			"RSA2048":   NewDate(2029, time.January, 1),
			"DSA1024":   NewDate(2016, time.January, 1),
			"DSA2048":   NewDate(2029, time.January, 1),
			"ECDSA160":  NewDate(2013, time.January, 1),
			"ECDSA192":  NewDate(2016, time.January, 1),
			"ECDSA224":  NewDate(2021, time.January, 1),
		},
	}
}
