package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskInput is the externally supplied shape of a task submission before
// it becomes a domain task. Range checks live in the struct tags; charset
// and markup rules are enforced by sanitization.
type TaskInput struct {
	ID         string          `json:"id"          validate:"required,max=64"`
	Type       string          `json:"type"        validate:"required,oneof=harvesting crafting combat"`
	DurationMs int64           `json:"duration_ms" validate:"required,gt=0,lte=86400000"`
	Priority   int             `json:"priority"    validate:"gte=0,lte=10"`
	Note       string          `json:"note"        validate:"max=256"`
	Rewards    json.RawMessage `json:"rewards,omitempty"`
}

// Duration converts the millisecond input field into a time.Duration.
func (in TaskInput) Duration() time.Duration {
	return time.Duration(in.DurationMs) * time.Millisecond
}

// ValidationResult carries the sanitized input alongside the verdict.
// Callers must use Sanitized, never the raw input, downstream.
type ValidationResult struct {
	IsValid   bool      `json:"is_valid"`
	Sanitized TaskInput `json:"sanitized"`
	Errors    []string  `json:"errors,omitempty"`
}

var (
	// Identifiers are restricted to a safe character set.
	safeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// Markup and script-like substrings stripped from free text.
	markupPattern  = regexp.MustCompile(`(?i)<[^>]*>|javascript:|on\w+\s*=`)
	controlPattern = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// Validator rejects or sanitizes task input at the boundary, before any
// lock is taken or shared state is touched.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a task input validator.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateTask checks and sanitizes one task submission.
func (v *Validator) ValidateTask(in TaskInput) ValidationResult {
	sanitized := in
	sanitized.ID = strings.TrimSpace(sanitized.ID)
	sanitized.Note = sanitizeFreeText(sanitized.Note)

	var errs []string

	if err := v.validate.Struct(sanitized); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if sanitized.ID != "" && !safeIDPattern.MatchString(sanitized.ID) {
		errs = append(errs, "field ID contains characters outside [A-Za-z0-9_-]")
	}

	if sanitized.Rewards != nil && !json.Valid(sanitized.Rewards) {
		errs = append(errs, "field Rewards is not valid JSON")
	}

	return ValidationResult{
		IsValid:   len(errs) == 0,
		Sanitized: sanitized,
		Errors:    errs,
	}
}

// sanitizeFreeText strips markup, script-like substrings, and control
// characters from free text. Sanitization never fails; it only removes.
func sanitizeFreeText(s string) string {
	s = markupPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
