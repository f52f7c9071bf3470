package bypass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/visaflow/internal/domain/entity"
)

func finding(field string, sev entity.Severity) entity.Finding {
	return entity.Finding{Field: field, Message: field + " issue", Severity: sev, AllowBypass: true}
}

func TestLedger_BypassIsIdempotent(t *testing.T) {
	l := NewLedger(nil)

	assert.True(t, l.Bypass("email"))
	assert.False(t, l.Bypass("email"))
	assert.False(t, l.Bypass("  "))
	assert.True(t, l.Bypass("phone"))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"email", "phone"}, l.Fields())
	assert.True(t, l.Contains("email"))
	assert.False(t, l.Contains("fullName"))
}

func TestNewLedger_DropsDuplicatesAndBlanks(t *testing.T) {
	l := NewLedger([]string{"documents", "", "email", "documents"})

	assert.Equal(t, []string{"documents", "email"}, l.Fields())
}

func TestLedger_FieldsReturnsCopy(t *testing.T) {
	l := NewLedger([]string{"email"})

	fields := l.Fields()
	fields[0] = "changed"

	assert.Equal(t, []string{"email"}, l.Fields())
}

func TestRemainingBlocking(t *testing.T) {
	findings := []entity.Finding{
		finding("fullName", entity.SeverityError),
		finding("phone", entity.SeverityWarning),
		finding("documents", entity.SeverityError),
		finding("documents", entity.SeverityError),
	}

	tests := []struct {
		name     string
		bypassed []string
		want     []string
	}{
		{"nothing bypassed", nil, []string{"fullName", "phone", "documents", "documents"}},
		{"warnings block too", []string{"fullName", "documents"}, []string{"phone"}},
		{"bypassing a field clears all its findings", []string{"documents"}, []string{"fullName", "phone"}},
		{"everything bypassed", []string{"fullName", "phone", "documents"}, []string{}},
		{"unrelated field", []string{"email"}, []string{"fullName", "phone", "documents", "documents"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := RemainingBlocking(findings, NewLedger(tt.bypassed))

			got := make([]string, 0, len(remaining))
			for _, f := range remaining {
				got = append(got, f.Field)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemainingBlocking_Monotonic(t *testing.T) {
	findings := []entity.Finding{
		finding("email", entity.SeverityError),
		finding("fullName", entity.SeverityError),
	}
	l := NewLedger(nil)
	l.Bypass("email")

	for i := 0; i < 3; i++ {
		l.Bypass("email")
		for _, f := range RemainingBlocking(findings, l) {
			assert.NotEqual(t, "email", f.Field)
		}
	}
	require.Len(t, RemainingBlocking(findings, l), 1)
}

func TestRemainingBlocking_NonBypassableAlwaysRemains(t *testing.T) {
	hard := entity.Finding{Field: "passportNumber", Message: "Passport flagged", Severity: entity.SeverityError}
	findings := []entity.Finding{hard, finding("email", entity.SeverityError)}

	remaining := RemainingBlocking(findings, NewLedger([]string{"passportNumber", "email"}))

	assert.Equal(t, []entity.Finding{hard}, remaining)
	assert.True(t, Blocked(findings, "passportNumber"))
	assert.False(t, Blocked(findings, "email"))
}

func TestRemainingBlocking_NilLedger(t *testing.T) {
	findings := []entity.Finding{finding("email", entity.SeverityError)}

	assert.Equal(t, findings, RemainingBlocking(findings, nil))
	assert.NotNil(t, RemainingBlocking(nil, nil))
}
