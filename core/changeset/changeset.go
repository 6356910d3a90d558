// Package changeset implements the staged change-tracking and validation
// pipeline. A Changeset is built from an entity snapshot and raw input
// parameters, threaded through cast/validate/constraint stages that
// accumulate field-level errors as ordinary data, and finally either
// committed through a repo or discarded.
//
// Stages never short-circuit: an invalid changeset can keep running through
// further stages so a caller receives the full error set in one pass.
package changeset

import (
	"fmt"
	"strings"

	"github.com/mwakio/go-mizani/core/schema"
)

// Action records how a changeset is about to be consumed. It is set by the
// repo right before commit.
type Action string

const (
	ActionNone   Action = ""
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// FieldError is a single field-level failure collected by a pipeline stage.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error returns the error message for a FieldError.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Constraint is a declared store-enforced rule carried by the changeset so
// that a violation detected at commit time can be mapped back onto a field.
type Constraint struct {
	Field   string
	Name    string
	Message string
}

// Changeset tracks proposed changes to an entity together with the errors
// accumulated while validating them. All stage methods mutate and return the
// receiver so pipelines compose by chaining.
type Changeset struct {
	desc        *schema.Descriptor
	base        schema.Entity
	changes     map[string]any
	errors      []FieldError
	castFields  map[string]struct{}
	constraints []Constraint
	action      Action
}

// New creates an empty changeset over an entity snapshot without considering
// any parameters. The entity map is copied; later stages never mutate it.
func New(desc *schema.Descriptor, entity schema.Entity) *Changeset {
	base := make(schema.Entity, len(entity))
	for k, v := range entity {
		base[k] = v
	}
	return &Changeset{
		desc:       desc,
		base:       base,
		changes:    make(map[string]any),
		castFields: make(map[string]struct{}),
	}
}

// Cast builds a changeset from an entity snapshot and raw parameters. Only
// names listed in allowed are considered; anything else in params is silently
// ignored, which makes the allowed list a mass-assignment whitelist. Each
// considered value is coerced against the field's declared kind; a value that
// cannot be coerced records a field error and processing continues with the
// remaining fields.
func Cast(desc *schema.Descriptor, entity schema.Entity, params map[string]any, allowed []string) *Changeset {
	cs := New(desc, entity)
	for _, name := range allowed {
		spec, ok := desc.Field(name)
		if !ok {
			cs.appendError(name, "unknown field")
			continue
		}
		cs.castFields[name] = struct{}{}

		raw, present := params[name]
		if !present {
			continue
		}

		value, err := coerce(raw, spec.Kind)
		if err != nil {
			cs.appendError(name, "invalid type")
			continue
		}
		if equalValues(value, cs.base[name]) {
			continue
		}
		cs.changes[name] = value
	}
	return cs
}

// Valid reports whether the changeset has accumulated no errors.
func (cs *Changeset) Valid() bool {
	return len(cs.errors) == 0
}

// Errors returns the accumulated field errors in the order they were added.
func (cs *Changeset) Errors() []FieldError {
	return cs.errors
}

// ErrorsOn returns the messages recorded against a single field.
func (cs *Changeset) ErrorsOn(field string) []string {
	var msgs []string
	for _, e := range cs.errors {
		if e.Field == field {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// Changes returns the staged changes. The returned map is shared; callers
// must treat it as read-only.
func (cs *Changeset) Changes() map[string]any {
	return cs.changes
}

// CastFields returns the set of field names the cast stage considered.
func (cs *Changeset) CastFields() []string {
	names := make([]string, 0, len(cs.castFields))
	for _, f := range cs.desc.Fields() {
		if _, ok := cs.castFields[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// Descriptor returns the schema descriptor the changeset is bound to.
func (cs *Changeset) Descriptor() *schema.Descriptor {
	return cs.desc
}

// Action returns how the changeset is being consumed, if commit has started.
func (cs *Changeset) Action() Action {
	return cs.action
}

// WithAction marks the changeset with the commit action about to consume it.
func (cs *Changeset) WithAction(a Action) *Changeset {
	cs.action = a
	return cs
}

// GetChange returns the staged value for a field and whether one is staged.
func (cs *Changeset) GetChange(field string) (any, bool) {
	v, ok := cs.changes[field]
	return v, ok
}

// GetField returns the staged value for a field if present, falling back to
// the base entity's value.
func (cs *Changeset) GetField(field string) any {
	if v, ok := cs.changes[field]; ok {
		return v
	}
	return cs.base[field]
}

// PutChange stages a value for a field unconditionally, without coercion or
// re-validation. It is meant for server-computed fields (e.g. a hashed
// secret) and must run after any validation that inspects the raw input.
func (cs *Changeset) PutChange(field string, value any) *Changeset {
	if !cs.desc.HasField(field) {
		cs.appendError(field, "unknown field")
		return cs
	}
	cs.changes[field] = value
	return cs
}

// DeleteChange removes a staged change, restoring the base entity's value as
// the field's effective value.
func (cs *Changeset) DeleteChange(field string) *Changeset {
	delete(cs.changes, field)
	return cs
}

// AddError appends a field error. Unlike the built-in validators it never
// deduplicates, so calling it twice records two entries.
func (cs *Changeset) AddError(field, message string) *Changeset {
	cs.errors = append(cs.errors, FieldError{Field: field, Message: message})
	return cs
}

// UniqueConstraint declares that the store enforces uniqueness for a field
// under the given constraint name. No query is issued here; at commit time a
// store-reported violation whose name matches exactly is translated into a
// field error on this changeset.
func (cs *Changeset) UniqueConstraint(field, name string) *Changeset {
	return cs.ConstraintWithMessage(field, name, "has already been taken")
}

// ConstraintWithMessage declares a named store-enforced constraint with a
// custom violation message.
func (cs *Changeset) ConstraintWithMessage(field, name, message string) *Changeset {
	cs.constraints = append(cs.constraints, Constraint{Field: field, Name: name, Message: message})
	return cs
}

// Constraints returns the declared store-enforced constraints.
func (cs *Changeset) Constraints() []Constraint {
	return cs.constraints
}

// MatchConstraint maps a store-reported violation of the named constraint
// back onto the changeset as a field error. Matching is exact by declared
// name; it reports whether a declaration matched.
func (cs *Changeset) MatchConstraint(name string) bool {
	for _, c := range cs.constraints {
		if c.Name == name {
			cs.appendError(c.Field, c.Message)
			return true
		}
	}
	return false
}

// ApplyChanges merges the staged changes over the base entity and returns the
// resulting snapshot without touching any store. Virtual fields are included;
// this is the in-memory view of the entity, not a commit payload.
func (cs *Changeset) ApplyChanges() schema.Entity {
	out := make(schema.Entity, len(cs.base)+len(cs.changes))
	for k, v := range cs.base {
		out[k] = v
	}
	for k, v := range cs.changes {
		out[k] = v
	}
	return out
}

// CommitChanges returns the staged changes that may be written to the store:
// everything staged except fields declared virtual.
func (cs *Changeset) CommitChanges() map[string]any {
	out := make(map[string]any, len(cs.changes))
	for k, v := range cs.changes {
		if spec, ok := cs.desc.Field(k); ok && spec.Virtual {
			continue
		}
		out[k] = v
	}
	return out
}

// InsertPayload is CommitChanges extended with declared defaults for
// persisted fields that are absent from both the changes and the base
// entity.
func (cs *Changeset) InsertPayload() map[string]any {
	out := cs.CommitChanges()
	for _, f := range cs.desc.Fields() {
		if f.Virtual || f.Default == nil {
			continue
		}
		if _, staged := out[f.Name]; staged {
			continue
		}
		if v, ok := cs.base[f.Name]; ok && v != nil {
			continue
		}
		out[f.Name] = f.Default
	}
	return out
}

// PrimaryKeyValue returns the effective value of the descriptor's primary key
// field, staged change first.
func (cs *Changeset) PrimaryKeyValue() any {
	pk := cs.desc.PrimaryKey()
	if pk == "" {
		return nil
	}
	return cs.GetField(pk)
}

// appendError records a field error unless an identical one is already
// present. Validators use it so that re-running a stage on an already
// processed changeset does not double-append.
func (cs *Changeset) appendError(field, message string) {
	for _, e := range cs.errors {
		if e.Field == field && e.Message == message {
			return
		}
	}
	cs.errors = append(cs.errors, FieldError{Field: field, Message: message})
}

// blank reports whether a value counts as missing for required-field checks:
// nil or a string that is empty after trimming.
func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
