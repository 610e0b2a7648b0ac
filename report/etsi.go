package report

import (
	"encoding/xml"
	"time"

	"github.com/georgepadayatti/trustval/ades"
	"github.com/georgepadayatti/trustval/bbb"
	"github.com/georgepadayatti/trustval/diagnostic"
	"github.com/georgepadayatti/trustval/poe"
	"github.com/georgepadayatti/trustval/policy"
)

// ETSINamespace is the ETSI TS 119 102-2 namespace.
const ETSINamespace = "http://uri.etsi.org/19102/v1.2.1#"

// Validation object types.
const (
	ObjectTypeCertificate    = "urn:etsi:019102:validationObject:certificate"
	ObjectTypeCRL            = "urn:etsi:019102:validationObject:CRL"
	ObjectTypeOCSPResponse   = "urn:etsi:019102:validationObject:OCSPResponse"
	ObjectTypeTimestamp      = "urn:etsi:019102:validationObject:timestamp"
	ObjectTypeEvidenceRecord = "urn:etsi:019102:validationObject:evidencerecord"
	ObjectTypeSignedData     = "urn:etsi:019102:validationObject:signedData"
	ObjectTypeOther          = "urn:etsi:019102:validationObject:other"
)

// Proof of existence and constraint status URNs.
const (
	POETypeValidation = "urn:etsi:019102:poetype:validation"
	POETypeProvided   = "urn:etsi:019102:poetype:provided"

	ConstraintStatusApplied  = "urn:etsi:019102:constraintStatus:applied"
	ConstraintStatusDisabled = "urn:etsi:019102:constraintStatus:disabled"
)

// Validation process identifiers.
const (
	ProcessBasic = "urn:etsi:019102:validationprocess:Basic"
	ProcessLTVM  = "urn:etsi:019102:validationprocess:LTVM"
	ProcessLTA   = "urn:etsi:019102:validationprocess:LTA"
)

// ETSIReport is the TS 119 102-2 validation report.
type ETSIReport struct {
	XMLName                    xml.Name                    `json:"-" xml:"ValidationReport"`
	Namespace                  string                      `json:"-" xml:"xmlns,attr,omitempty"`
	ID                         string                      `json:"id" xml:"Id,attr"`
	SignatureValidationReport  []SignatureValidationReport `json:"signatureValidationReport" xml:"SignatureValidationReport"`
	SignatureValidationObjects []ValidationObject          `json:"signatureValidationObjects,omitempty" xml:"SignatureValidationObjects>ValidationObject,omitempty"`
	SignatureValidator         *SignatureValidator         `json:"signatureValidator,omitempty" xml:"SignatureValidator,omitempty"`
}

// JSON serializes the report to JSON.
func (r *ETSIReport) JSON() ([]byte, error) {
	return marshalJSON(r)
}

// XML serializes the report to XML.
func (r *ETSIReport) XML() ([]byte, error) {
	return marshalXML(r)
}

// Object returns a validation object by id.
func (r *ETSIReport) Object(id string) (*ValidationObject, bool) {
	for i := range r.SignatureValidationObjects {
		if r.SignatureValidationObjects[i].ID == id {
			return &r.SignatureValidationObjects[i], true
		}
	}
	return nil, false
}

// VOReference references a validation object.
type VOReference struct {
	VOReference string `json:"voReference" xml:"VOReference,attr"`
}

// SignatureValidator identifies the validating application.
type SignatureValidator struct {
	DigitalID string `json:"digitalId" xml:"DigitalId>X509SubjectName"`
}

// SignatureIdentifier identifies a signature.
type SignatureIdentifier struct {
	ID          string `json:"id" xml:"id,attr"`
	HashOnly    bool   `json:"hashOnly" xml:"HashOnly"`
	DocHashOnly bool   `json:"docHashOnly" xml:"DocHashOnly"`
}

// ConstraintStatus is the status of an evaluated constraint.
type ConstraintStatus struct {
	Status       string `json:"status" xml:"Status"`
	OverriddenBy string `json:"overriddenBy,omitempty" xml:"OverriddenBy,omitempty"`
}

// IndividualConstraint reports one evaluated constraint.
type IndividualConstraint struct {
	Name             string            `json:"validationConstraintIdentifier" xml:"ValidationConstraintIdentifier"`
	Status           ConstraintStatus  `json:"constraintStatus" xml:"ConstraintStatus"`
	ValidationStatus *ValidationStatus `json:"validationStatus,omitempty" xml:"ValidationStatus,omitempty"`
}

// ConstraintsEvaluationReport lists the constraints applied to a signature.
type ConstraintsEvaluationReport struct {
	PolicyName           string                 `json:"policyName,omitempty" xml:"SignatureValidationPolicy>PolicyName,omitempty"`
	ValidationConstraint []IndividualConstraint `json:"validationConstraint,omitempty" xml:"ValidationConstraint,omitempty"`
}

// POE is a proof of existence of a validation object.
type POE struct {
	POETime     time.Time    `json:"poeTime" xml:"POETime"`
	TypeOfProof string       `json:"typeOfProof" xml:"TypeOfProof"`
	POEObject   *VOReference `json:"poeObject,omitempty" xml:"POEObject,omitempty"`
}

// ValidationTimeInfo holds the validation and best signature times.
type ValidationTimeInfo struct {
	ValidationTime    time.Time `json:"validationTime" xml:"ValidationTime"`
	BestSignatureTime *POE      `json:"bestSignatureTime,omitempty" xml:"BestSignatureTime,omitempty"`
}

// SignerInformation identifies the signer.
type SignerInformation struct {
	SignerCertificate VOReference `json:"signerCertificate" xml:"SignerCertificate"`
	Signer            string      `json:"signer,omitempty" xml:"Signer,omitempty"`
}

// SignatureAttributes is the subset of signature attributes the reports keep.
type SignatureAttributes struct {
	SigningTime        *time.Time    `json:"signingTime,omitempty" xml:"SigningTime>Time,omitempty"`
	SignatureTimeStamp []VOReference `json:"signatureTimeStamp,omitempty" xml:"SignatureTimeStamp>AttributeObject,omitempty"`
	ArchiveTimeStamp   []VOReference `json:"archiveTimeStamp,omitempty" xml:"ArchiveTimeStamp>AttributeObject,omitempty"`
	CounterSignature   []VOReference `json:"counterSignature,omitempty" xml:"CounterSignature>AttributeObject,omitempty"`
	SigPolicyID        string        `json:"sigPolicyIdentifier,omitempty" xml:"SigPolicyIdentifier>SigPolicyId,omitempty"`
	CommitmentTypes    []string      `json:"commitmentTypeIndication,omitempty" xml:"CommitmentTypeIndication>CommitmentTypeIdentifier,omitempty"`
}

// CertificateChain is the chain of the signer.
type CertificateChain struct {
	SigningCertificate      VOReference   `json:"signingCertificate" xml:"SigningCertificate"`
	IntermediateCertificate []VOReference `json:"intermediateCertificate,omitempty" xml:"IntermediateCertificate,omitempty"`
	TrustAnchor             *VOReference  `json:"trustAnchor,omitempty" xml:"TrustAnchor,omitempty"`
}

// RevocationStatusInformation records a revocation found for a certificate.
type RevocationStatusInformation struct {
	ValidationObjectID VOReference  `json:"validationObjectId" xml:"ValidationObjectId"`
	RevocationTime     time.Time    `json:"revocationTime" xml:"RevocationTime"`
	RevocationReason   string       `json:"revocationReason,omitempty" xml:"RevocationReason,omitempty"`
	RevocationObject   *VOReference `json:"revocationObject,omitempty" xml:"RevocationObject,omitempty"`
}

// CryptoInformation records the acceptability of the algorithms of an object.
type CryptoInformation struct {
	ValidationObjectID VOReference `json:"validationObjectId" xml:"ValidationObjectId"`
	Algorithm          string      `json:"algorithm" xml:"Algorithm"`
	SecureAlgorithm    bool        `json:"secureAlgorithm" xml:"SecureAlgorithm"`
	NotAfter           *time.Time  `json:"notAfter,omitempty" xml:"NotAfter,omitempty"`
}

// ValidationReportData is the data backing a status.
type ValidationReportData struct {
	TrustAnchor                 *VOReference                 `json:"trustAnchor,omitempty" xml:"TrustAnchor,omitempty"`
	CertificateChain            *CertificateChain            `json:"certificateChain,omitempty" xml:"CertificateChain,omitempty"`
	RelatedValidationObject     []VOReference                `json:"relatedValidationObject,omitempty" xml:"RelatedValidationObject,omitempty"`
	RevocationStatusInformation *RevocationStatusInformation `json:"revocationStatusInformation,omitempty" xml:"RevocationStatusInformation,omitempty"`
	CryptoInformation           *CryptoInformation           `json:"cryptoInformation,omitempty" xml:"CryptoInformation,omitempty"`
}

// ValidationStatus is a main indication with its sub-indications.
type ValidationStatus struct {
	MainIndication                 string                 `json:"mainIndication" xml:"MainIndication"`
	SubIndication                  []string               `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	AssociatedValidationReportData []ValidationReportData `json:"associatedValidationReportData,omitempty" xml:"AssociatedValidationReportData,omitempty"`
}

// SignatureValidationReport is the report of one signature, or of a
// timestamp, revocation or evidence record inside a validation object.
type SignatureValidationReport struct {
	SignatureIdentifier         *SignatureIdentifier         `json:"signatureIdentifier,omitempty" xml:"SignatureIdentifier,omitempty"`
	ConstraintsEvaluationReport *ConstraintsEvaluationReport `json:"validationConstraintsEvaluationReport,omitempty" xml:"ValidationConstraintsEvaluationReport,omitempty"`
	ValidationTimeInfo          *ValidationTimeInfo          `json:"validationTimeInfo,omitempty" xml:"ValidationTimeInfo,omitempty"`
	SignersDocument             []VOReference                `json:"signersDocument,omitempty" xml:"SignersDocument>SignersDocumentRef,omitempty"`
	SignatureAttributes         *SignatureAttributes         `json:"signatureAttributes,omitempty" xml:"SignatureAttributes,omitempty"`
	SignerInformation           *SignerInformation           `json:"signerInformation,omitempty" xml:"SignerInformation,omitempty"`
	SignatureQuality            []string                     `json:"signatureQuality,omitempty" xml:"SignatureQuality>SignatureQualityInformation,omitempty"`
	SignatureValidationProcess  string                       `json:"signatureValidationProcess,omitempty" xml:"SignatureValidationProcess>SignatureValidationProcessID,omitempty"`
	SignatureValidationStatus   ValidationStatus             `json:"signatureValidationStatus" xml:"SignatureValidationStatus"`
}

// ValidationObject is a token used during validation.
type ValidationObject struct {
	ID               string                     `json:"id" xml:"id,attr"`
	ObjectType       string                     `json:"objectType" xml:"ObjectType"`
	Representation   string                     `json:"validationObjectRepresentation" xml:"ValidationObjectRepresentation>direct"`
	POE              *POE                       `json:"poe,omitempty" xml:"POE,omitempty"`
	ValidationReport *SignatureValidationReport `json:"validationReport,omitempty" xml:"ValidationReport,omitempty"`
}

func (s *assembly) etsi() *ETSIReport {
	r := &ETSIReport{
		Namespace: s.config.Namespace,
		ID:        s.reportID(),
	}
	if s.config.ValidatorName != "" {
		r.SignatureValidator = &SignatureValidator{DigitalID: s.config.ValidatorName}
	}
	if len(s.in.Signatures) == 0 {
		r.SignatureValidationReport = []SignatureValidationReport{{
			ValidationTimeInfo: &ValidationTimeInfo{ValidationTime: s.in.ValidationTime},
			SignatureValidationStatus: ValidationStatus{
				MainIndication: ades.IndicationNoSignatureFound.URN(),
			},
		}}
	}
	for _, sig := range s.in.Signatures {
		r.SignatureValidationReport = append(r.SignatureValidationReport, s.signatureReport(sig))
	}
	if s.in.Index != nil {
		for _, t := range s.in.Index.Tokens() {
			if vo, ok := s.validationObject(t); ok {
				r.SignatureValidationObjects = append(r.SignatureValidationObjects, vo)
			}
		}
	}
	return r
}

func (s *assembly) signatureReport(in SignatureInput) SignatureValidationReport {
	out := SignatureValidationReport{
		SignatureIdentifier:        &SignatureIdentifier{ID: in.ID},
		ValidationTimeInfo:         &ValidationTimeInfo{ValidationTime: s.in.ValidationTime},
		SignatureValidationProcess: processID(s.in.Level),
	}
	final, ok := in.Final()
	if !ok {
		out.SignatureValidationStatus = ValidationStatus{MainIndication: ades.IndicationIndeterminate.URN()}
		return out
	}
	out.SignatureValidationStatus = status(final.Conclusion)
	if !final.BestSignatureTime.IsZero() {
		out.ValidationTimeInfo.BestSignatureTime = s.bestSignatureTime(in.ID, final.BestSignatureTime)
	}
	if final.BBB != nil {
		out.ConstraintsEvaluationReport = &ConstraintsEvaluationReport{
			PolicyName:           s.in.policyName(),
			ValidationConstraint: constraints(final.BBB),
		}
	}
	if in.Qualification != nil {
		out.SignatureQuality = []string{string(in.Qualification.Qualification)}
	}
	if s.in.Index == nil {
		return out
	}
	sig, ok := s.in.Index.Signature(in.ID)
	if !ok {
		return out
	}
	for _, id := range sig.SignerDocumentIDs {
		out.SignersDocument = append(out.SignersDocument, ref(diagnostic.KindSignerData, id))
	}
	out.SignatureAttributes = s.attributes(sig, in)
	if cert, ok := s.in.Index.SigningCertificate(sig); ok {
		out.SignerInformation = &SignerInformation{
			SignerCertificate: ref(diagnostic.KindCertificate, cert.ID),
			Signer:            signerName(sig, s.in.Index),
		}
	}
	if data, ok := s.reportData(sig, final.BBB); ok {
		out.SignatureValidationStatus.AssociatedValidationReportData = []ValidationReportData{data}
	}
	return out
}

// bestSignatureTime returns the proof the best signature time is based on.
func (s *assembly) bestSignatureTime(id string, at time.Time) *POE {
	out := &POE{POETime: at, TypeOfProof: POETypeValidation}
	if s.in.POEs == nil {
		return out
	}
	for _, p := range s.in.POEs.Candidates(id) {
		if p.Time.Equal(at) && !p.IsFallback() {
			out.POEObject = s.poeObject(p)
			break
		}
	}
	return out
}

func (s *assembly) poeObject(p poe.POE) *VOReference {
	kind := diagnostic.KindTimestamp
	if p.Type == poe.TypeEvidenceRecord {
		kind = diagnostic.KindEvidenceRecord
	}
	r := ref(kind, p.ProvenBy)
	return &r
}

func (s *assembly) attributes(sig *diagnostic.Signature, in SignatureInput) *SignatureAttributes {
	a := &SignatureAttributes{
		SigningTime:     sig.ClaimedSigningTime,
		SigPolicyID:     sig.SignaturePolicyID,
		CommitmentTypes: sig.CommitmentTypes,
	}
	for _, id := range in.Timestamps {
		ts, ok := s.in.Index.Timestamp(id)
		if !ok {
			continue
		}
		if ts.Type.IsArchival() {
			a.ArchiveTimeStamp = append(a.ArchiveTimeStamp, ref(diagnostic.KindTimestamp, id))
		} else {
			a.SignatureTimeStamp = append(a.SignatureTimeStamp, ref(diagnostic.KindTimestamp, id))
		}
	}
	for _, cs := range s.in.Index.CounterSignatures(sig.ID) {
		a.CounterSignature = append(a.CounterSignature, ref(diagnostic.KindSignature, cs.ID))
	}
	return a
}

// reportData binds the chain, the revocation status of the signing
// certificate and the algorithm of the signature to the status.
func (s *assembly) reportData(sig *diagnostic.Signature, b *bbb.BasicBuildingBlocks) (ValidationReportData, bool) {
	var data ValidationReportData
	chain := s.in.Index.Chain(sig)
	if len(chain) > 0 {
		cc := &CertificateChain{SigningCertificate: ref(diagnostic.KindCertificate, chain[0].ID)}
		for i, c := range chain {
			if c.Trusted {
				r := ref(diagnostic.KindCertificate, c.ID)
				cc.TrustAnchor = &r
				break
			}
			if i > 0 {
				cc.IntermediateCertificate = append(cc.IntermediateCertificate, ref(diagnostic.KindCertificate, c.ID))
			}
		}
		data.CertificateChain = cc
		data.TrustAnchor = cc.TrustAnchor
		data.RevocationStatusInformation = s.revocationStatus(chain[0], b)
	}
	if ci, ok := s.cryptoInformation(sig, sig.Algorithms); ok {
		data.CryptoInformation = ci
	}
	for _, ts := range s.in.Index.TimestampsFor(sig.ID) {
		data.RelatedValidationObject = append(data.RelatedValidationObject, ref(diagnostic.KindTimestamp, ts.ID))
	}
	empty := data.CertificateChain == nil && data.CryptoInformation == nil && len(data.RelatedValidationObject) == 0
	return data, !empty
}

// revocationStatus reports the revocation the chain validation used for the
// signing certificate when it attests a revocation.
func (s *assembly) revocationStatus(cert *diagnostic.Certificate, b *bbb.BasicBuildingBlocks) *RevocationStatusInformation {
	if b == nil || b.XCV == nil {
		return nil
	}
	for _, sub := range b.XCV.SubXCV {
		if sub.CertificateID != cert.ID || sub.RevocationID == "" {
			continue
		}
		entry, ok := cert.RevocationEntry(sub.RevocationID)
		if !ok || entry.Status != diagnostic.StatusRevoked || entry.RevocationDate == nil {
			return nil
		}
		object := ref(diagnostic.KindRevocation, sub.RevocationID)
		return &RevocationStatusInformation{
			ValidationObjectID: ref(diagnostic.KindCertificate, cert.ID),
			RevocationTime:     *entry.RevocationDate,
			RevocationReason:   string(entry.Reason),
			RevocationObject:   &object,
		}
	}
	return nil
}

func (s *assembly) cryptoInformation(t diagnostic.Token, alg diagnostic.Algorithms) (*CryptoInformation, bool) {
	name := alg.Name()
	if name == "" {
		return nil, false
	}
	var suite *policy.CryptographicSuite
	if s.in.Policy != nil {
		suite = s.in.Policy.Cryptographic
	}
	res := suite.Check(alg, s.in.ValidationTime)
	ci := &CryptoInformation{
		ValidationObjectID: ref(t.Kind(), t.TokenID()),
		Algorithm:          name,
		SecureAlgorithm:    res.Acceptable,
	}
	if exp, ok := suite.Expiration(alg); ok {
		ci.NotAfter = &exp
	}
	return ci, true
}

func (s *assembly) validationObject(t diagnostic.Token) (ValidationObject, bool) {
	vo := ValidationObject{
		ID:             voID(t.Kind(), t.TokenID()),
		Representation: t.TokenID(),
	}
	switch v := t.(type) {
	case *diagnostic.Signature:
		return vo, false
	case *diagnostic.Certificate:
		vo.ObjectType = ObjectTypeCertificate
	case *diagnostic.Revocation:
		if v.Type == diagnostic.RevocationOCSP {
			vo.ObjectType = ObjectTypeOCSPResponse
		} else {
			vo.ObjectType = ObjectTypeCRL
		}
	case *diagnostic.Timestamp:
		vo.ObjectType = ObjectTypeTimestamp
	case *diagnostic.EvidenceRecord:
		vo.ObjectType = ObjectTypeEvidenceRecord
	case *diagnostic.SignerData:
		vo.ObjectType = ObjectTypeSignedData
		if v.DigestValue != "" {
			vo.Representation = v.DigestAlgorithm + ":" + v.DigestValue
		}
	default:
		vo.ObjectType = ObjectTypeOther
	}
	if s.in.POEs != nil {
		p := s.in.POEs.Lowest(t.TokenID())
		vo.POE = &POE{POETime: p.Time, TypeOfProof: POETypeValidation}
		if !p.IsFallback() {
			vo.POE.TypeOfProof = POETypeProvided
			vo.POE.POEObject = s.poeObject(p)
		}
	}
	if b, ok := s.latest[t.TokenID()]; ok {
		vo.ValidationReport = s.objectReport(t, b)
	}
	return vo, true
}

// objectReport is the validation status of a timestamp, revocation or
// evidence record.
func (s *assembly) objectReport(t diagnostic.Token, b *bbb.BasicBuildingBlocks) *SignatureValidationReport {
	out := &SignatureValidationReport{
		ValidationTimeInfo:        &ValidationTimeInfo{ValidationTime: b.ValidationTime},
		SignatureValidationStatus: status(b.Conclusion),
	}
	if cert, ok := s.in.Index.SigningCertificate(t); ok {
		out.SignerInformation = &SignerInformation{
			SignerCertificate: ref(diagnostic.KindCertificate, cert.ID),
			Signer:            normalizeName(cert.Name()),
		}
	}
	if ts, ok := t.(*diagnostic.Timestamp); ok {
		if q, ok := s.in.TimestampQualifications[ts.ID]; ok && q != nil {
			out.SignatureQuality = []string{string(q.Qualification)}
		}
		if ci, ok := s.cryptoInformation(ts, ts.Algorithms); ok {
			out.SignatureValidationStatus.AssociatedValidationReportData = []ValidationReportData{{CryptoInformation: ci}}
		}
	}
	return out
}

func status(c *ades.Conclusion) ValidationStatus {
	if c == nil {
		return ValidationStatus{MainIndication: ades.IndicationIndeterminate.URN()}
	}
	st := ValidationStatus{MainIndication: c.Indication.Collapse().URN()}
	if urn := c.SubIndication.URN(); urn != "" {
		st.SubIndication = []string{urn}
	}
	return st
}

// constraints flattens the constraint results of the blocks, past
// validation included.
func constraints(b *bbb.BasicBuildingBlocks) []IndividualConstraint {
	blocks := b.Blocks()
	if b.XCV != nil {
		for i := range b.XCV.SubXCV {
			blocks = append(blocks, &b.XCV.SubXCV[i].Block)
		}
	}
	if b.PSV != nil {
		blocks = append(blocks, &b.PSV.Block)
	}
	if b.PCV != nil {
		blocks = append(blocks, &b.PCV.Block)
	}
	if b.VTS != nil {
		blocks = append(blocks, &b.VTS.Block)
	}
	var out []IndividualConstraint
	for _, blk := range blocks {
		for _, c := range blk.Constraints {
			ic := IndividualConstraint{
				Name:   c.Key,
				Status: ConstraintStatus{Status: ConstraintStatusApplied},
			}
			if c.Status == bbb.StatusIgnored {
				ic.Status.Status = ConstraintStatusDisabled
			} else {
				st := ValidationStatus{MainIndication: ades.IndicationPassed.URN()}
				if c.Status == bbb.StatusNotOK {
					st = status(ades.New(c.Indication, c.SubIndication))
				}
				ic.ValidationStatus = &st
			}
			out = append(out, ic)
		}
	}
	return out
}

func processID(l policy.ValidationLevel) string {
	switch l {
	case policy.BasicSignatures:
		return ProcessBasic
	case policy.ArchivalData:
		return ProcessLTA
	default:
		return ProcessLTVM
	}
}

// voID prefixes token ids by kind so that ids of different kinds never
// collide inside one report.
func voID(kind diagnostic.TokenKind, id string) string {
	switch kind {
	case diagnostic.KindCertificate:
		return "C-" + id
	case diagnostic.KindRevocation:
		return "R-" + id
	case diagnostic.KindTimestamp:
		return "T-" + id
	case diagnostic.KindEvidenceRecord:
		return "E-" + id
	case diagnostic.KindSignerData:
		return "D-" + id
	case diagnostic.KindSignature:
		return "S-" + id
	default:
		return "O-" + id
	}
}

func ref(kind diagnostic.TokenKind, id string) VOReference {
	return VOReference{VOReference: voID(kind, id)}
}
