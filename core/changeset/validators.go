package changeset

import (
	"fmt"
	"reflect"
	"regexp"
	"unicode/utf8"
)

// Length bounds for ValidateLength. A zero Min or Max means that side is
// unbounded. Messages override the defaults when set; the defaults are
// "too short" and "too long".
type Length struct {
	Min        int
	Max        int
	MinMessage string
	MaxMessage string
}

// ValidateRequired appends an error for every listed field whose effective
// value (staged change first, then base entity) is missing or blank.
// Re-invoking the stage with the same field set on an already processed
// changeset does not double-append.
func (cs *Changeset) ValidateRequired(fields ...string) *Changeset {
	for _, field := range fields {
		if !cs.desc.HasField(field) {
			cs.appendError(field, "unknown field")
			continue
		}
		if blank(cs.GetField(field)) {
			cs.appendError(field, "is required")
		}
	}
	return cs
}

// ValidateLength checks the length of a staged string value against bounds.
// It is a no-op when the field has no staged change, so unchanged persisted
// values are never re-validated.
func (cs *Changeset) ValidateLength(field string, bounds Length) *Changeset {
	value, ok := cs.changes[field]
	if !ok {
		return cs
	}
	s, isString := value.(string)
	if !isString {
		cs.appendError(field, "invalid type")
		return cs
	}

	length := utf8.RuneCountInString(s)
	if bounds.Min > 0 && length < bounds.Min {
		msg := bounds.MinMessage
		if msg == "" {
			msg = "too short"
		}
		cs.appendError(field, msg)
	}
	if bounds.Max > 0 && length > bounds.Max {
		msg := bounds.MaxMessage
		if msg == "" {
			msg = "too long"
		}
		cs.appendError(field, msg)
	}
	return cs
}

// ValidateFormat checks a staged string value against a pattern. No-op when
// the field has no staged change.
func (cs *Changeset) ValidateFormat(field string, pattern *regexp.Regexp) *Changeset {
	value, ok := cs.changes[field]
	if !ok {
		return cs
	}
	s, isString := value.(string)
	if !isString || !pattern.MatchString(s) {
		cs.appendError(field, "has invalid format")
	}
	return cs
}

// ValidateInclusion checks that a staged value is one of the allowed values.
// No-op when the field has no staged change.
func (cs *Changeset) ValidateInclusion(field string, allowed []any) *Changeset {
	value, ok := cs.changes[field]
	if !ok {
		return cs
	}
	for _, a := range allowed {
		if reflect.DeepEqual(value, a) {
			return cs
		}
	}
	cs.appendError(field, "is not included in the list")
	return cs
}

// ValidateChange runs a caller-supplied predicate against a field's staged
// value and appends whatever errors it returns. The predicate sees only the
// staged change; it is not invoked when the field is unchanged.
func (cs *Changeset) ValidateChange(field string, fn func(field string, value any) []FieldError) *Changeset {
	value, ok := cs.changes[field]
	if !ok {
		return cs
	}
	for _, e := range fn(field, value) {
		cs.appendError(e.Field, e.Message)
	}
	return cs
}

// ValidateConfirmation checks that the staged value of a field matches the
// effective value of its "<field>_confirmation" counterpart, the usual shape
// for password or email confirmation inputs.
func (cs *Changeset) ValidateConfirmation(field string) *Changeset {
	value, ok := cs.changes[field]
	if !ok {
		return cs
	}
	confirmation := cs.GetField(fmt.Sprintf("%s_confirmation", field))
	if !reflect.DeepEqual(value, confirmation) {
		cs.appendError(field, "does not match confirmation")
	}
	return cs
}
