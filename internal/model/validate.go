package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateActor checks an Actor for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the actor is valid.
func ValidateActor(a Actor) error {
	var ve ValidationError
	validateActorInto(&ve, "actor", a)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateActorInto(ve *ValidationError, field string, a Actor) {
	if strings.TrimSpace(a.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: field + ".id", Message: "is required"})
	}
	if !a.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid value %q", a.Type),
		})
	}
}

// ValidateProposal checks a Proposal for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the proposal is valid.
func ValidateProposal(p *Proposal) error {
	var ve ValidationError

	// ID: required, it seeds the idempotency key.
	if strings.TrimSpace(p.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "proposal.id", Message: "is required"})
	}

	// Kind: must be a valid enum value (closed set, one adapter call each).
	if !p.Kind.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "proposal.kind",
			Message: fmt.Sprintf("invalid value %q", p.Kind),
		})
	}

	// Estimated savings: zero is valid, negative is not.
	if p.EstimatedSecondsSaved < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "proposal.estimatedSecondsSaved",
			Message: fmt.Sprintf("must not be negative, got %v", p.EstimatedSecondsSaved),
		})
	}

	// Payload: must be valid JSON if present.
	if len(p.Payload) > 0 && !json.Valid(p.Payload) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "proposal.payload",
			Message: "contains invalid JSON",
		})
	}

	if p.ProposedBy != nil {
		validateActorInto(&ve, "proposal.proposedBy", *p.ProposedBy)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateImpact checks an Impact for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the impact is valid.
func ValidateImpact(i Impact) error {
	var ve ValidationError

	if i.SecondsSaved < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "impact.secondsSaved",
			Message: fmt.Sprintf("must not be negative, got %v", i.SecondsSaved),
		})
	}
	if i.Quality != nil && (*i.Quality < 0 || *i.Quality > 1) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "impact.quality",
			Message: fmt.Sprintf("must be between 0 and 1, got %v", *i.Quality),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
