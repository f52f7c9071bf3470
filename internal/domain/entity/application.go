package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is the applicant's postal address
type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// DocumentRef references an uploaded supporting file
type DocumentRef struct {
	ID            string       `json:"id"`
	Type          DocumentType `json:"type"`
	FileName      string       `json:"fileName"`
	FileSizeBytes int64        `json:"fileSizeBytes"`
	UploadedAt    time.Time    `json:"uploadedAt"`
}

// Finding is one validation result item tied to a field
type Finding struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	AllowBypass bool     `json:"allowBypass"`
}

// ApplicationRecord is the single in-progress visa application
type ApplicationRecord struct {
	VisaType        string `json:"visaType"`
	Status          Status `json:"status"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`

	// Applicant
	FullName       string  `json:"fullName"`
	DateOfBirth    string  `json:"dateOfBirth"`
	Nationality    string  `json:"nationality"`
	PassportNumber string  `json:"passportNumber"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Address        Address `json:"address"`

	// Employment
	EmployerName        string           `json:"employerName"`
	JobTitle            string           `json:"jobTitle"`
	EmploymentStartDate string           `json:"employmentStartDate"`
	Salary              *decimal.Decimal `json:"salary,omitempty"`

	Documents        []DocumentRef `json:"documents"`
	ValidationErrors []Finding     `json:"validationErrors"`
	ValidationBypass []string      `json:"validationBypass"`

	CreatedAt   time.Time  `json:"createdAt"`
	SubmittedAt *time.Time `json:"submittedAt"`
	ApprovedAt  *time.Time `json:"approvedAt"`
}

// NewDefaultRecord returns a fresh draft record created at now
func NewDefaultRecord(now time.Time) ApplicationRecord {
	return ApplicationRecord{
		Status:           StatusDraft,
		Address:          Address{Country: DefaultCountry},
		Documents:        []DocumentRef{},
		ValidationErrors: []Finding{},
		ValidationBypass: []string{},
		CreatedAt:        now,
	}
}

// Clone returns a deep copy of the record
func (r ApplicationRecord) Clone() ApplicationRecord {
	out := r
	out.Documents = append([]DocumentRef{}, r.Documents...)
	out.ValidationErrors = append([]Finding{}, r.ValidationErrors...)
	out.ValidationBypass = append([]string{}, r.ValidationBypass...)
	if r.Salary != nil {
		s := *r.Salary
		out.Salary = &s
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		out.SubmittedAt = &t
	}
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		out.ApprovedAt = &t
	}
	return out
}

// Normalize replaces nil collections with empty ones so that a persisted
// record reads back identical to the one written.
func (r *ApplicationRecord) Normalize() {
	if r.Documents == nil {
		r.Documents = []DocumentRef{}
	}
	if r.ValidationErrors == nil {
		r.ValidationErrors = []Finding{}
	}
	if r.ValidationBypass == nil {
		r.ValidationBypass = []string{}
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}
}

// FormatSalary renders the salary for display, empty when unset
func (r ApplicationRecord) FormatSalary() string {
	if r.Salary == nil {
		return ""
	}
	return r.Salary.StringFixed(2)
}
