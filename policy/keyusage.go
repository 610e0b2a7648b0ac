package policy

// NormalizeKeyUsage normalizes a KeyUsage flag name to its canonical
// kebab-case form, so "digitalSignature" and "digital-signature" compare equal.
func NormalizeKeyUsage(flag string) string {
	if normalized, ok := keyUsageNames[flag]; ok {
		return normalized
	}
	return flag
}

// NormalizeExtendedKeyUsage normalizes an ExtKeyUsage flag name.
func NormalizeExtendedKeyUsage(flag string) string {
	if normalized, ok := extKeyUsageNames[flag]; ok {
		return normalized
	}
	return flag
}

var keyUsageNames = map[string]string{
	"digitalSignature":  "digital-signature",
	"contentCommitment": "non-repudiation",
	"nonRepudiation":    "non-repudiation",
	"keyEncipherment":   "key-encipherment",
	"dataEncipherment":  "data-encipherment",
	"keyAgreement":      "key-agreement",
	"keyCertSign":       "key-cert-sign",
	"cRLSign":           "crl-sign",
	"crlSign":           "crl-sign",
	"encipherOnly":      "encipher-only",
	"decipherOnly":      "decipher-only",
}

var extKeyUsageNames = map[string]string{
	"serverAuth":      "server-auth",
	"clientAuth":      "client-auth",
	"codeSigning":     "code-signing",
	"emailProtection": "email-protection",
	"timeStamping":    "time-stamping",
	"OCSPSigning":     "ocsp-signing",
	"ocspSigning":     "ocsp-signing",
}

// AcceptsAnyKeyUsage reports whether one of the certificate's usages is
// accepted by m. Names are compared after normalization.
func (m *MultiValuesConstraint) AcceptsAnyKeyUsage(usages []string, normalize func(string) string) bool {
	if m == nil || len(m.Values) == 0 {
		return true
	}
	for _, u := range usages {
		for _, v := range m.Values {
			if v == "*" || normalize(v) == normalize(u) {
				return true
			}
		}
	}
	return false
}
