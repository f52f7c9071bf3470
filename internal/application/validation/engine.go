// Package validation holds the rule engine that inspects an application record.
// Findings are data: Validate always returns a result and never fails.
package validation

import (
	"time"

	"github.com/garyjia/visaflow/internal/domain/entity"
)

// Result is the outcome of one validation run
type Result struct {
	IsValid bool             `json:"isValid"`
	Errors  []entity.Finding `json:"errors"`
}

// CountBySeverity returns how many findings have the given severity
func (r Result) CountBySeverity(sev entity.Severity) int {
	n := 0
	for _, f := range r.Errors {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Engine evaluates the rule table against a record
type Engine struct {
	rules []Rule
	now   func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithClock overrides the time source used for age checks
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRules replaces the rule table
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// NewEngine creates an engine with the default rules
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rules: DefaultRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate runs every rule independently and collects findings in rule order.
// Warnings count against IsValid like errors do.
func (e *Engine) Validate(rec entity.ApplicationRecord) Result {
	now := e.now()
	findings := make([]entity.Finding, 0)

	for _, rule := range e.rules {
		for _, issue := range rule.Check(rec, now) {
			findings = append(findings, entity.Finding{
				Field:       rule.Field,
				Message:     issue.Message,
				Severity:    issue.Severity,
				AllowBypass: rule.AllowBypass,
			})
		}
	}

	return Result{
		IsValid: len(findings) == 0,
		Errors:  findings,
	}
}

// Rules returns a copy of the engine's rule table
func (e *Engine) Rules() []Rule {
	return append([]Rule{}, e.rules...)
}
