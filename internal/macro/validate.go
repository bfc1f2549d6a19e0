package macro

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Problem is one reason a macro is invalid
type Problem struct {
	StepID  string
	Field   string
	Message string
}

func (p Problem) String() string {
	var b strings.Builder
	if p.StepID != "" {
		fmt.Fprintf(&b, "step %s: ", p.StepID)
	}
	if p.Field != "" {
		fmt.Fprintf(&b, "%s: ", p.Field)
	}
	b.WriteString(p.Message)
	return b.String()
}

// ValidationError collects every problem found in a macro. It is never retried.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid macro: " + e.Problems[0].String()
	}
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "\n • "+p.String())
	}
	return fmt.Sprintf("invalid macro (%d problems):%s", len(e.Problems), strings.Join(lines, ""))
}

// Add records a problem
func (e *ValidationError) Add(stepID, field, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{StepID: stepID, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the problems of another validation error
func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Problems = append(e.Problems, other.Problems...)
	}
}

// Err returns e when problems were recorded and nil otherwise
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// IsValidationError reports whether err wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks every step's fields and the structural rules that do not
// depend on repeat block pairing.
func Validate(m *Macro) error {
	verr := &ValidationError{}
	if m == nil {
		verr.Add("", "", "macro is nil")
		return verr
	}
	if len(m.Steps) == 0 {
		verr.Add("", "steps", "macro has no steps")
	}

	for name := range m.Variables {
		if strings.TrimSpace(name) == "" {
			verr.Add("", "variables", "variable with empty name")
		}
	}

	seen := map[string]bool{}
	Walk(m.Steps, func(s Step, depth int) {
		if s.ID == "" {
			verr.Add("", "id", "step %q has no id", s.Name)
		} else if seen[s.ID] {
			verr.Add(s.ID, "id", "duplicate step id")
		}
		seen[s.ID] = true

		if depth > 0 && s.Kind().IsMarker() {
			verr.Add(s.ID, "kind", "%s is only allowed at the top level", s.Kind())
		}
		validateStep(m, s, verr)
	})

	return verr.Err()
}

// ValidateStep checks a single step in isolation
func ValidateStep(s Step) error {
	verr := &ValidationError{}
	validateStep(nil, s, verr)
	return verr.Err()
}

func validateStep(m *Macro, s Step, verr *ValidationError) {
	if s.Action == nil {
		verr.Add(s.ID, "kind", "step has no action")
		return
	}

	switch s.OnError {
	case PolicyStop, PolicyContinue, PolicyRetry:
	default:
		verr.Add(s.ID, "on_error", "unknown error policy %q", s.OnError)
	}
	if s.RetryCount < 0 {
		verr.Add(s.ID, "retry_count", "must be >= 0, got %d", s.RetryCount)
	}

	if err := validate.Struct(s.Action); err != nil {
		addFieldErrors(s.ID, err, verr)
	}

	switch a := s.Action.(type) {
	case RepeatBegin:
		switch a.Mode {
		case RepeatSpecificCount:
			if a.Count <= 0 {
				verr.Add(s.ID, "count", "specific-count requires count > 0")
			}
		case RepeatRange:
			if a.End < a.Start {
				verr.Add(s.ID, "end", "range end %d is before start %d", a.End, a.Start)
			}
		}
	case Loop:
		if a.Mode == LoopCount && a.Count < 1 {
			verr.Add(s.ID, "count", "count loop requires count >= 1")
		}
		if m == nil {
			return
		}
		for _, ref := range a.StepIDs {
			target, ok := m.StepByID(ref)
			switch {
			case ref == s.ID:
				verr.Add(s.ID, "steps", "loop references itself")
			case !ok:
				verr.Add(s.ID, "steps", "unknown step id %q", ref)
			case target.Kind().IsMarker():
				verr.Add(s.ID, "steps", "loop cannot reference repeat marker %q", ref)
			case target.Kind() == KindLoop:
				verr.Add(s.ID, "steps", "nested loop reference %q is not supported", ref)
			}
		}
	}
}

// addFieldErrors formats validator failures one problem per field
func addFieldErrors(stepID string, err error, verr *ValidationError) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(stepID, "", "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("failed rule '%s'", fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
		msg += fmt.Sprintf(", got '%v'", fe.Value())
		verr.Add(stepID, fe.Namespace(), "%s", msg)
	}
}
