package entity

// Status is the workflow stage of an application record
type Status string

// Status constants for ApplicationRecord
const (
	StatusDraft          Status = "draft"
	StatusPendingReview  Status = "pending_review"
	StatusRequiresReview Status = "requires_review"
	StatusValidated      Status = "validated"
	StatusReadyForReview Status = "ready_for_review"
	StatusApproved       Status = "approved"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusRequiresReview,
		StatusValidated, StatusReadyForReview, StatusApproved:
		return true
	default:
		return false
	}
}

// DocumentType groups uploaded file references
type DocumentType string

// Document type constants
const (
	DocumentTypePassport   DocumentType = "passport"
	DocumentTypeResume     DocumentType = "resume"
	DocumentTypeEmployment DocumentType = "employment"
	DocumentTypeSupporting DocumentType = "supporting"
)

// DocumentTypes lists every document type in display order
var DocumentTypes = []DocumentType{
	DocumentTypePassport,
	DocumentTypeResume,
	DocumentTypeEmployment,
	DocumentTypeSupporting,
}

// IsValid reports whether t is a known document type
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeResume, DocumentTypeEmployment, DocumentTypeSupporting:
		return true
	default:
		return false
	}
}

// AllowsMultiple reports whether several live documents of this type may coexist.
// Only supporting documents accumulate; every other type is replaced on upload.
func (t DocumentType) AllowsMultiple() bool {
	return t == DocumentTypeSupporting
}

// Severity of a validation finding
type Severity string

// Severity constants
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Record defaults
const (
	DefaultCountry  = "Australia"
	DefaultVisaType = "482"
)
