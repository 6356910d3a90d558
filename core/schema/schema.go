// Package schema defines the static field descriptors that every changeset
// and query in mizani is bound to. A Descriptor is declared once per entity
// kind at process start and is immutable afterwards; all casting, validation
// and compilation decisions are made against it.
package schema

import (
	"fmt"
)

// FieldKind represents the closed set of semantic field types supported by
// the descriptor system.
type FieldKind string

const (
	KindString    FieldKind = "string"    // Text data
	KindInteger   FieldKind = "integer"   // Whole numbers
	KindFloat     FieldKind = "float"     // Floating-point numbers
	KindBoolean   FieldKind = "boolean"   // True/false values
	KindTimestamp FieldKind = "timestamp" // Points in time, stored as RFC 3339 text
)

// knownKinds is the set of kinds a FieldSpec may declare.
var knownKinds = map[FieldKind]struct{}{
	KindString:    {},
	KindInteger:   {},
	KindFloat:     {},
	KindBoolean:   {},
	KindTimestamp: {},
}

// Valid reports whether the kind is one of the supported field kinds.
func (k FieldKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// FieldSpec declares a single field of a relation: its name, semantic kind,
// and whether it participates in persistence.
type FieldSpec struct {
	// Name is the field's name, unique within its descriptor.
	Name string
	// Kind is the field's semantic type, checked during Cast.
	Kind FieldKind
	// Virtual marks a field that may be cast and validated but is never
	// written to the store (e.g. a plaintext password).
	Virtual bool
	// Default is the value used for a field absent from an insert payload.
	// A nil Default means the store decides.
	Default any
	// PrimaryKey marks the field used to address the entity on updates and
	// deletes. At most one field per descriptor may set it.
	PrimaryKey bool
}

// UniqueIndex names a store-enforced uniqueness rule over one or more fields.
// The adapter uses the declared name to identify which rule a store-reported
// violation belongs to.
type UniqueIndex struct {
	Name   string
	Fields []string
}

// Entity is a decoded row: a snapshot of an entity's persisted fields keyed
// by field name.
type Entity map[string]any

// Descriptor binds an ordered set of FieldSpecs to a relation name. It is
// immutable once built; Define returns an error rather than a partially
// constructed descriptor.
type Descriptor struct {
	relation string
	fields   []FieldSpec
	byName   map[string]int
	pk       string
	uniques  []UniqueIndex
}

// DescriptorOption customizes descriptor construction.
type DescriptorOption func(*descriptorConfig)

type descriptorConfig struct {
	uniques []UniqueIndex
	noAutoPK bool
}

// WithUniqueIndex declares a named store-enforced uniqueness rule on the
// descriptor.
func WithUniqueIndex(name string, fields ...string) DescriptorOption {
	return func(c *descriptorConfig) {
		c.uniques = append(c.uniques, UniqueIndex{Name: name, Fields: fields})
	}
}

// WithoutAutoPrimaryKey suppresses the implicit integer "id" primary key for
// descriptors that declare their own.
func WithoutAutoPrimaryKey() DescriptorOption {
	return func(c *descriptorConfig) { c.noAutoPK = true }
}

// Define builds a Descriptor for a relation from an ordered list of field
// specs. Unless a spec sets PrimaryKey or WithoutAutoPrimaryKey is given, an
// integer "id" primary key field is prepended automatically.
func Define(relation string, fields []FieldSpec, opts ...DescriptorOption) (*Descriptor, error) {
	if relation == "" {
		return nil, fmt.Errorf("descriptor requires a relation name")
	}

	cfg := descriptorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	pk := ""
	for _, f := range fields {
		if f.PrimaryKey {
			if pk != "" {
				return nil, fmt.Errorf("relation '%s' declares more than one primary key ('%s' and '%s')", relation, pk, f.Name)
			}
			pk = f.Name
		}
	}
	if pk == "" && !cfg.noAutoPK {
		fields = append([]FieldSpec{{Name: "id", Kind: KindInteger, PrimaryKey: true}}, fields...)
		pk = "id"
	}

	d := &Descriptor{
		relation: relation,
		fields:   make([]FieldSpec, 0, len(fields)),
		byName:   make(map[string]int, len(fields)),
		pk:       pk,
		uniques:  cfg.uniques,
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("relation '%s' declares a field with no name", relation)
		}
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("field '%s' of relation '%s' has unknown kind '%s'", f.Name, relation, f.Kind)
		}
		if _, dup := d.byName[f.Name]; dup {
			return nil, fmt.Errorf("field '%s' declared twice on relation '%s'", f.Name, relation)
		}
		if f.Virtual && f.PrimaryKey {
			return nil, fmt.Errorf("field '%s' of relation '%s' cannot be both virtual and primary key", f.Name, relation)
		}
		d.byName[f.Name] = len(d.fields)
		d.fields = append(d.fields, f)
	}

	for _, ix := range d.uniques {
		if ix.Name == "" {
			return nil, fmt.Errorf("unique index on relation '%s' requires a name", relation)
		}
		for _, fn := range ix.Fields {
			if !d.HasField(fn) {
				return nil, fmt.Errorf("unique index '%s' references unknown field '%s'", ix.Name, fn)
			}
		}
	}

	return d, nil
}

// MustDefine is Define for package-level descriptor declarations; it panics
// on a malformed definition.
func MustDefine(relation string, fields []FieldSpec, opts ...DescriptorOption) *Descriptor {
	d, err := Define(relation, fields, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Relation returns the relation (table) name the descriptor is bound to.
func (d *Descriptor) Relation() string {
	return d.relation
}

// Fields returns the descriptor's field specs in declaration order. The
// returned slice must not be modified.
func (d *Descriptor) Fields() []FieldSpec {
	return d.fields
}

// FieldNames returns the names of all declared fields in declaration order.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field spec by name.
func (d *Descriptor) Field(name string) (FieldSpec, bool) {
	i, ok := d.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return d.fields[i], true
}

// HasField reports whether the descriptor declares a field with the name.
func (d *Descriptor) HasField(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// PrimaryKey returns the name of the descriptor's primary key field. It is
// empty only when WithoutAutoPrimaryKey was used and no field declared one.
func (d *Descriptor) PrimaryKey() string {
	return d.pk
}

// UniqueIndexes returns the descriptor's declared uniqueness rules.
func (d *Descriptor) UniqueIndexes() []UniqueIndex {
	return d.uniques
}

// UniqueIndexFor returns the name of the declared unique index covering the
// given column, if any. Adapters use it to translate driver-level violation
// reports into declared constraint names.
func (d *Descriptor) UniqueIndexFor(column string) (string, bool) {
	for _, ix := range d.uniques {
		for _, f := range ix.Fields {
			if f == column {
				return ix.Name, true
			}
		}
	}
	return "", false
}
