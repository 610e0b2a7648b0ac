package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/georgepadayatti/trustval/diagnostic"
)

// CryptographicSuite is the table of acceptable algorithms and their expiry
// dates. Expiration keys are a digest algorithm ("SHA1"), an encryption
// algorithm ("DSA") or an encryption algorithm with a key length ("RSA1024");
// the earliest applicable date wins.
type CryptographicSuite struct {
	// AcceptableDigestAlgorithms lists the digest algorithms accepted at all.
	AcceptableDigestAlgorithms []string `yaml:"acceptable-digest-algorithms"`

	// AcceptableEncryptionAlgorithms lists the signature algorithms accepted at all.
	AcceptableEncryptionAlgorithms []string `yaml:"acceptable-encryption-algorithms"`

	// MinimumKeyLengths maps an encryption algorithm to its minimum key length.
	MinimumKeyLengths map[string]int `yaml:"minimum-key-lengths"`

	// AlgorithmExpiration maps algorithm keys to the date after which they
	// are no longer reliable.
	AlgorithmExpiration map[string]Date `yaml:"algorithm-expiration"`
}

// CryptoResult is the outcome of checking a token's algorithms.
type CryptoResult struct {
	// Acceptable is false when the algorithms are rejected at the checked time.
	Acceptable bool

	// ExpiredOnly is set when the algorithms are rejected only because their
	// expiry date lies before the checked time.
	ExpiredOnly bool

	// NotAfter is the earliest expiry date applying to the algorithms.
	NotAfter *time.Time

	Reason string
}

// Check evaluates algorithms at the given time.
func (s *CryptographicSuite) Check(alg diagnostic.Algorithms, at time.Time) CryptoResult {
	if s == nil {
		return CryptoResult{Acceptable: true}
	}
	if alg.DigestAlgorithm != "" && len(s.AcceptableDigestAlgorithms) > 0 && !containsFold(s.AcceptableDigestAlgorithms, alg.DigestAlgorithm) {
		return CryptoResult{Reason: fmt.Sprintf("digest algorithm %s is not acceptable", alg.DigestAlgorithm)}
	}
	if alg.EncryptionAlgorithm != "" && len(s.AcceptableEncryptionAlgorithms) > 0 && !containsFold(s.AcceptableEncryptionAlgorithms, alg.EncryptionAlgorithm) {
		return CryptoResult{Reason: fmt.Sprintf("encryption algorithm %s is not acceptable", alg.EncryptionAlgorithm)}
	}
	if minLen, ok := lookupFold(s.MinimumKeyLengths, alg.EncryptionAlgorithm); ok && alg.KeyLength > 0 && alg.KeyLength < minLen {
		return CryptoResult{Reason: fmt.Sprintf("key length %d of %s is below %d", alg.KeyLength, alg.EncryptionAlgorithm, minLen)}
	}

	res := CryptoResult{Acceptable: true}
	if exp, ok := s.Expiration(alg); ok {
		res.NotAfter = &exp
		if at.After(exp) {
			res.Acceptable = false
			res.ExpiredOnly = true
			res.Reason = fmt.Sprintf("%s is not reliable after %s", alg.Name(), exp.Format("2006-01-02"))
		}
	}
	return res
}

// Expiration returns the earliest expiry date applying to the algorithms.
func (s *CryptographicSuite) Expiration(alg diagnostic.Algorithms) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	keys := []string{alg.DigestAlgorithm, alg.EncryptionAlgorithm}
	if alg.EncryptionAlgorithm != "" && alg.KeyLength > 0 {
		keys = append(keys, alg.EncryptionAlgorithm+strconv.Itoa(alg.KeyLength))
	}
	var earliest time.Time
	found := false
	for _, k := range keys {
		if k == "" {
			continue
		}
		d, ok := lookupFold(s.AlgorithmExpiration, k)
		if !ok {
			continue
		}
		if !found || d.Before(earliest) {
			earliest = d.Time
			found = true
		}
	}
	return earliest, found
}

// ExpirationKeys returns the configured expiration keys, sorted.
func (s *CryptographicSuite) ExpirationKeys() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.AlgorithmExpiration)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func lookupFold[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}
