package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/garyjia/visaflow/internal/application/checklist"
	"github.com/garyjia/visaflow/internal/domain/entity"
)

// DateLayout is the wire format of date fields
const DateLayout = "2006-01-02"

// Age bounds
const (
	MinimumAge = 18
	ReviewAge  = 45
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Australian mobile or landline: +61 or trunk 0, then 9 digits not starting with 0/1
	phonePattern = regexp.MustCompile(`^(\+61|0)[2-9]\d{8}$`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Check inspects a record and returns zero or more messages for one field
type Check func(rec entity.ApplicationRecord, now time.Time) []Issue

// Issue is a rule outcome before it is turned into a Finding
type Issue struct {
	Message  string
	Severity entity.Severity
}

// Rule binds a check to the field it reports on.
// AllowBypass is carried onto every finding the rule emits.
type Rule struct {
	Name        string
	Field       string
	AllowBypass bool
	Check       Check
}

// DefaultRules returns the rule table in display order
func DefaultRules() []Rule {
	return []Rule{
		{Name: "full_name_required", Field: "fullName", AllowBypass: true, Check: required(func(r entity.ApplicationRecord) string { return r.FullName }, "Full name is required")},
		{Name: "date_of_birth_required", Field: "dateOfBirth", AllowBypass: true, Check: required(func(r entity.ApplicationRecord) string { return r.DateOfBirth }, "Date of birth is required")},
		{Name: "passport_number_required", Field: "passportNumber", AllowBypass: true, Check: required(func(r entity.ApplicationRecord) string { return r.PassportNumber }, "Passport number is required")},
		{Name: "email", Field: "email", AllowBypass: true, Check: checkEmail},
		{Name: "employer_name_required", Field: "employerName", AllowBypass: true, Check: required(func(r entity.ApplicationRecord) string { return r.EmployerName }, "Employer name is required")},
		{Name: "job_title_required", Field: "jobTitle", AllowBypass: true, Check: required(func(r entity.ApplicationRecord) string { return r.JobTitle }, "Job title is required")},
		{Name: "phone_format", Field: "phone", AllowBypass: true, Check: checkPhone},
		{Name: "age", Field: "dateOfBirth", AllowBypass: true, Check: checkAge},
		{Name: "documents_present", Field: "documents", AllowBypass: true, Check: checkAnyDocument},
		{Name: "passport_document", Field: "documents", AllowBypass: true, Check: checkPassportDocument},
	}
}

func required(get func(entity.ApplicationRecord) string, message string) Check {
	return func(rec entity.ApplicationRecord, _ time.Time) []Issue {
		if strings.TrimSpace(get(rec)) == "" {
			return []Issue{{Message: message, Severity: entity.SeverityError}}
		}
		return nil
	}
}

func checkEmail(rec entity.ApplicationRecord, _ time.Time) []Issue {
	if strings.TrimSpace(rec.Email) == "" {
		return []Issue{{Message: "Email address is required", Severity: entity.SeverityError}}
	}
	// the shape check sees the value as entered, surrounding whitespace included
	if !IsValidEmail(rec.Email) {
		return []Issue{{Message: "Please provide a valid email address", Severity: entity.SeverityError}}
	}
	return nil
}

func checkPhone(rec entity.ApplicationRecord, _ time.Time) []Issue {
	if rec.Phone == "" || IsValidPhone(rec.Phone) {
		return nil
	}
	return []Issue{{Message: "Please provide a valid Australian phone number", Severity: entity.SeverityWarning}}
}

func checkAge(rec entity.ApplicationRecord, now time.Time) []Issue {
	if strings.TrimSpace(rec.DateOfBirth) == "" {
		return nil
	}

	dob, err := ParseDate(rec.DateOfBirth, now.Location())
	if err != nil {
		return []Issue{{Message: "Date of birth must be a valid date (YYYY-MM-DD)", Severity: entity.SeverityError}}
	}

	var issues []Issue
	age := Age(dob, now)
	if age < MinimumAge {
		issues = append(issues, Issue{Message: "Applicant must be at least 18 years old", Severity: entity.SeverityError})
	}
	if age > ReviewAge {
		issues = append(issues, Issue{Message: "Age may affect visa eligibility - review required", Severity: entity.SeverityWarning})
	}
	return issues
}

func checkAnyDocument(rec entity.ApplicationRecord, _ time.Time) []Issue {
	if len(rec.Documents) == 0 {
		return []Issue{{Message: "At least one supporting document is required", Severity: entity.SeverityError}}
	}
	return nil
}

func checkPassportDocument(rec entity.ApplicationRecord, _ time.Time) []Issue {
	if !checklist.Has(rec.Documents, entity.DocumentTypePassport) {
		return []Issue{{Message: "Passport copy is required", Severity: entity.SeverityError}}
	}
	return nil
}

// IsValidEmail reports whether email has a local-part@domain.tld shape
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone reports whether phone is a recognised Australian number once
// whitespace is removed
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(whitespace.ReplaceAllString(phone, ""))
}

// ParseDate parses a YYYY-MM-DD date in loc
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
}

// Age returns whole years between dob and now, counting a birthday only once
// its month and day have been reached
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
