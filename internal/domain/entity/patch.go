package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ptr returns a pointer to v, handy when building patches
func Ptr[T any](v T) *T {
	return &v
}

// AddressPatch overlays only the non-nil address keys
type AddressPatch struct {
	Street   *string `json:"street,omitempty"`
	City     *string `json:"city,omitempty"`
	State    *string `json:"state,omitempty"`
	Postcode *string `json:"postcode,omitempty"`
	Country  *string `json:"country,omitempty"`
}

// ApplicationPatch is a partial update of an ApplicationRecord.
// Nil fields leave the record untouched.
type ApplicationPatch struct {
	VisaType        *string `json:"visaType,omitempty"`
	Status          *Status `json:"status,omitempty"`
	ReferenceNumber *string `json:"referenceNumber,omitempty"`

	FullName       *string       `json:"fullName,omitempty"`
	DateOfBirth    *string       `json:"dateOfBirth,omitempty"`
	Nationality    *string       `json:"nationality,omitempty"`
	PassportNumber *string       `json:"passportNumber,omitempty"`
	Email          *string       `json:"email,omitempty"`
	Phone          *string       `json:"phone,omitempty"`
	Address        *AddressPatch `json:"address,omitempty"`

	EmployerName        *string          `json:"employerName,omitempty"`
	JobTitle            *string          `json:"jobTitle,omitempty"`
	EmploymentStartDate *string          `json:"employmentStartDate,omitempty"`
	Salary              *decimal.Decimal `json:"salary,omitempty"`

	Documents        *[]DocumentRef `json:"documents,omitempty"`
	ValidationErrors *[]Finding     `json:"validationErrors,omitempty"`
	ValidationBypass *[]string      `json:"validationBypass,omitempty"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ApplicationPatch) IsEmpty() bool {
	return p == ApplicationPatch{}
}

// Merge applies patch onto rec and returns the result; rec is not modified.
// submittedAt and approvedAt are write-once and createdAt is never patched.
func Merge(rec ApplicationRecord, patch ApplicationPatch) ApplicationRecord {
	out := rec.Clone()

	setString(&out.VisaType, patch.VisaType)
	setString(&out.ReferenceNumber, patch.ReferenceNumber)
	if patch.Status != nil {
		out.Status = *patch.Status
	}

	setString(&out.FullName, patch.FullName)
	setString(&out.DateOfBirth, patch.DateOfBirth)
	setString(&out.Nationality, patch.Nationality)
	setString(&out.PassportNumber, patch.PassportNumber)
	setString(&out.Email, patch.Email)
	setString(&out.Phone, patch.Phone)
	if patch.Address != nil {
		out.Address = mergeAddress(out.Address, *patch.Address)
	}

	setString(&out.EmployerName, patch.EmployerName)
	setString(&out.JobTitle, patch.JobTitle)
	setString(&out.EmploymentStartDate, patch.EmploymentStartDate)
	if patch.Salary != nil {
		s := canonicalDecimal(*patch.Salary)
		out.Salary = &s
	}

	if patch.Documents != nil {
		out.Documents = append([]DocumentRef{}, (*patch.Documents)...)
	}
	if patch.ValidationErrors != nil {
		out.ValidationErrors = append([]Finding{}, (*patch.ValidationErrors)...)
	}
	if patch.ValidationBypass != nil {
		out.ValidationBypass = append([]string{}, (*patch.ValidationBypass)...)
	}

	if out.SubmittedAt == nil && patch.SubmittedAt != nil {
		t := *patch.SubmittedAt
		out.SubmittedAt = &t
	}
	if out.ApprovedAt == nil && patch.ApprovedAt != nil {
		t := *patch.ApprovedAt
		out.ApprovedAt = &t
	}

	out.Normalize()
	return out
}

func mergeAddress(a Address, p AddressPatch) Address {
	setString(&a.Street, p.Street)
	setString(&a.City, p.City)
	setString(&a.State, p.State)
	setString(&a.Postcode, p.Postcode)
	setString(&a.Country, p.Country)
	return a
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// canonicalDecimal rewrites d in the coefficient/exponent form its JSON
// encoding decodes to, so a merged record equals its reloaded copy
func canonicalDecimal(d decimal.Decimal) decimal.Decimal {
	c, err := decimal.NewFromString(d.String())
	if err != nil {
		return d
	}
	return c
}
