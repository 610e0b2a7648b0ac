// Package qualified determines the eIDAS qualification of signatures and
// timestamps from a trusted list analysis.
package qualified

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// URI bases for ETSI trust service identifiers.
const (
	TrstSvcURIBase     = "http://uri.etsi.org/TrstSvc"
	CAQCUri            = TrstSvcURIBase + "/Svctype/CA/QC"
	QTSTUri            = TrstSvcURIBase + "/Svctype/TSA/QTST"
	TrustedListURIBase = TrstSvcURIBase + "/TrustedList"
	SvcInfoExtURIBase  = TrustedListURIBase + "/SvcInfoExt"
	StatusGrantedURI   = TrustedListURIBase + "/Svcstatus/granted"
	StatusWithdrawnURI = TrustedListURIBase + "/Svcstatus/withdrawn"

	// Statuses used before eIDAS.
	StatusUnderSupervisionURI = TrstSvcURIBase + "/TrustedList/Svcstatus/undersupervision"
	StatusAccreditedURI       = TrstSvcURIBase + "/TrustedList/Svcstatus/accredited"
)

// QcCertType is the type of a qualified certificate.
type QcCertType string

const (
	QcCertTypeUnknown QcCertType = ""
	QcCertTypeEsign   QcCertType = "qct_esign"
	QcCertTypeEseal   QcCertType = "qct_eseal"
	QcCertTypeWeb     QcCertType = "qct_web"
)

// Certificate type URIs.
const (
	ForeSignaturesURI           = SvcInfoExtURIBase + "/ForeSignatures"
	ForeSealsURI                = SvcInfoExtURIBase + "/ForeSeals"
	ForWebSiteAuthenticationURI = SvcInfoExtURIBase + "/ForWebSiteAuthentication"
)

// QcCertTypeFromURI returns the QcCertType from an additional service
// information URI.
func QcCertTypeFromURI(uri string) (QcCertType, bool) {
	switch uri {
	case ForeSignaturesURI:
		return QcCertTypeEsign, true
	case ForeSealsURI:
		return QcCertTypeEseal, true
	case ForWebSiteAuthenticationURI:
		return QcCertTypeWeb, true
	default:
		return QcCertTypeUnknown, false
	}
}

// Qualifier is a qualifier as specified in ETSI TS 119 612, 5.5.9.2.
type Qualifier string

const (
	QualifierWithSSCD            Qualifier = "QCWithSSCD"
	QualifierNoSSCD              Qualifier = "QCNoSSCD"
	QualifierSSCDAsInCert        Qualifier = "QCSSCDStatusAsInCert"
	QualifierWithQSCD            Qualifier = "QCWithQSCD"
	QualifierNoQSCD              Qualifier = "QCNoQSCD"
	QualifierQSCDAsInCert        Qualifier = "QCQSCDStatusAsInCert"
	QualifierQSCDManagedOnBehalf Qualifier = "QCQSCDManagedOnBehalf"
	QualifierLegalPerson         Qualifier = "QCForLegalPerson"
	QualifierForESig             Qualifier = "QCForESig"
	QualifierForESeal            Qualifier = "QCForESeal"
	QualifierForWSA              Qualifier = "QCForWSA"
	QualifierNotQualified        Qualifier = "NotQualified"
	QualifierQCStatement         Qualifier = "QCStatement"
)

// URI returns the ETSI URI for this qualifier.
func (q Qualifier) URI() string {
	return SvcInfoExtURIBase + "/" + string(q)
}

// ServiceStatus is one entry of a trust service status history.
type ServiceStatus struct {
	Status    string     `json:"status"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	// Qualifiers apply to every certificate issued under this status.
	Qualifiers []Qualifier `json:"qualifiers,omitempty"`
	// AdditionalInfo holds additional service information URIs.
	AdditionalInfo []string `json:"additionalInfo,omitempty"`
}

// Covers reports whether t falls in the status period.
func (s ServiceStatus) Covers(t time.Time) bool {
	if t.Before(s.StartDate) {
		return false
	}
	return s.EndDate == nil || t.Before(*s.EndDate)
}

// Granted reports whether the status makes the service qualified.
func (s ServiceStatus) Granted() bool {
	switch s.Status {
	case StatusGrantedURI, StatusUnderSupervisionURI, StatusAccreditedURI:
		return true
	}
	return false
}

// CertificateTypes returns the certificate types the status is restricted to.
func (s ServiceStatus) CertificateTypes() map[QcCertType]bool {
	var out map[QcCertType]bool
	for _, uri := range s.AdditionalInfo {
		if t, ok := QcCertTypeFromURI(uri); ok {
			if out == nil {
				out = make(map[QcCertType]bool)
			}
			out[t] = true
		}
	}
	return out
}

// TrustService is a service of a trusted list matched against the
// certificates of the snapshot.
type TrustService struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	TypeURI string          `json:"type"`
	History []ServiceStatus `json:"history"`
	// CertificateIDs are the snapshot certificates identified as service
	// certificates.
	CertificateIDs []string `json:"certificateIds,omitempty"`
}

// StatusAt returns the status in force at t.
func (s *TrustService) StatusAt(t time.Time) (ServiceStatus, bool) {
	for _, st := range s.History {
		if st.Covers(t) {
			return st, true
		}
	}
	return ServiceStatus{}, false
}

// Identifies reports whether the certificate is one of the service certificates.
func (s *TrustService) Identifies(certificateID string) bool {
	for _, id := range s.CertificateIDs {
		if id == certificateID {
			return true
		}
	}
	return false
}

// TrustedList is one national trusted list.
type TrustedList struct {
	Country    string         `json:"country"`
	URL        string         `json:"url,omitempty"`
	IssueDate  time.Time      `json:"issueDate"`
	NextUpdate *time.Time     `json:"nextUpdate,omitempty"`
	WellSigned bool           `json:"wellSigned"`
	Services   []TrustService `json:"services,omitempty"`
}

// TrustedListAnalysis is the result of matching trusted lists against the
// certificates of a snapshot.
type TrustedListAnalysis struct {
	Lists []TrustedList `json:"lists"`
}

// LoadAnalysis reads a trusted list analysis from a JSON file.
func LoadAnalysis(filename string) (*TrustedListAnalysis, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted list analysis: %w", err)
	}
	return ParseAnalysis(data)
}

// ParseAnalysis decodes a trusted list analysis.
func ParseAnalysis(data []byte) (*TrustedListAnalysis, error) {
	var a TrustedListAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse trusted list analysis: %w", err)
	}
	return &a, nil
}
