// Package bypass tracks the fields a user has chosen to override and decides
// which findings still block progression.
package bypass

import (
	"strings"

	"github.com/garyjia/visaflow/internal/domain/entity"
)

// Ledger is an insertion-ordered set of bypassed field names
type Ledger struct {
	fields []string
	index  map[string]struct{}
}

// NewLedger builds a ledger from previously persisted field names.
// Blank names and duplicates are dropped.
func NewLedger(fields []string) *Ledger {
	l := &Ledger{
		fields: make([]string, 0, len(fields)),
		index:  make(map[string]struct{}, len(fields)),
	}
	for _, f := range fields {
		l.Bypass(f)
	}
	return l
}

// Bypass adds field to the ledger. Calling it again for the same field has no
// effect. Reports whether the field was newly added.
func (l *Ledger) Bypass(field string) bool {
	field = strings.TrimSpace(field)
	if field == "" {
		return false
	}
	if _, ok := l.index[field]; ok {
		return false
	}
	l.index[field] = struct{}{}
	l.fields = append(l.fields, field)
	return true
}

// Contains reports whether field has been bypassed
func (l *Ledger) Contains(field string) bool {
	_, ok := l.index[field]
	return ok
}

// Fields returns the bypassed field names in the order they were added
func (l *Ledger) Fields() []string {
	return append([]string{}, l.fields...)
}

// Len returns the number of bypassed fields
func (l *Ledger) Len() int {
	return len(l.fields)
}

// RemainingBlocking returns the findings that still block progression: every
// finding whose field is not in the ledger, plus any finding that does not
// allow bypass. Severity is not considered.
func RemainingBlocking(findings []entity.Finding, ledger *Ledger) []entity.Finding {
	remaining := make([]entity.Finding, 0)
	for _, f := range findings {
		if !f.AllowBypass || ledger == nil || !ledger.Contains(f.Field) {
			remaining = append(remaining, f)
		}
	}
	return remaining
}

// Blocked reports whether field has at least one finding that cannot be bypassed
func Blocked(findings []entity.Finding, field string) bool {
	for _, f := range findings {
		if f.Field == field && !f.AllowBypass {
			return true
		}
	}
	return false
}
