package bbb

// Message keys of the building block constraints.
const (
	KeyStructure          = "bbb.fc.structural-validation"
	KeyFormat             = "bbb.fc.acceptable-format"
	KeySigningCertificate = "bbb.isc.signing-certificate-recognition"
	KeySigningCertAttr    = "bbb.isc.signing-certificate-attribute"
	KeySigningCertDigest  = "bbb.isc.signing-certificate-digest-match"
	KeyConstraintSet      = "bbb.vci.constraint-set"
	KeyValidationTime     = "bbb.vci.validation-time"
	KeySignaturePolicy    = "bbb.vci.signature-policy"
	KeyChain              = "bbb.xcv.prospective-certificate-chain"
	KeySubXCV             = "bbb.xcv.sub"
	KeyCertRecognition    = "bbb.xcv.sub.recognition"
	KeyCertSignature      = "bbb.xcv.sub.signature"
	KeyCertCA             = "bbb.xcv.sub.ca"
	KeyCertKeyUsage       = "bbb.xcv.sub.key-usage"
	KeyCertExtKeyUsage    = "bbb.xcv.sub.extended-key-usage"
	KeyCertCrypto         = "bbb.xcv.sub.cryptographic"
	KeyRevocationData     = "bbb.xcv.sub.revocation-data-available"
	KeyRevocationAccepted = "bbb.xcv.sub.acceptable-revocation-data"
	KeyRevocationFresh    = "bbb.xcv.sub.revocation-freshness"
	KeyNotRevoked         = "bbb.xcv.sub.not-revoked"
	KeyNotOnHold          = "bbb.xcv.sub.not-on-hold"
	KeyNotExpired         = "bbb.xcv.sub.not-expired"
	KeyReferenceFound     = "bbb.cv.reference-data-existence"
	KeyReferenceIntact    = "bbb.cv.reference-data-intact"
	KeySignatureIntact    = "bbb.cv.signature-intact"
	KeySigningTime        = "bbb.sav.signing-time"
	KeySignedAttributes   = "bbb.sav.required-signed-attributes"
	KeyCommitmentTypes    = "bbb.sav.commitment-types"
	KeyCrypto             = "bbb.sav.cryptographic"
	KeyVTSRevocation      = "bbb.vts.revocation"
	KeyPCV                = "bbb.pcv.control-time"
	KeyPSV                = "bbb.psv.poe"
)
