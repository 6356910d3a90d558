package schema

import (
	"fmt"
	"sync"
)

// RelationshipKind classifies how two descriptors relate.
type RelationshipKind string

const (
	HasMany   RelationshipKind = "has_many"
	HasOne    RelationshipKind = "has_one"
	BelongsTo RelationshipKind = "belongs_to"
)

// Relationship declares an association between two descriptors. Association
// joins resolve their join condition from this declaration instead of a
// hand-written predicate.
type Relationship struct {
	// Name is the association name, unique per owner descriptor.
	Name string
	// Owner is the descriptor the association is declared on.
	Owner *Descriptor
	// Target is the descriptor the association points at.
	Target *Descriptor
	// Kind determines which side carries the foreign key: the target for
	// HasMany/HasOne, the owner for BelongsTo.
	Kind RelationshipKind
	// ForeignKey is the foreign key field name. Empty means the conventional
	// "<owner relation singular>_id" cannot be guessed and declaration fails.
	ForeignKey string
}

// Registry holds the process-wide set of descriptors and relationships.
// Registration happens once at startup; lookups afterwards are read-only and
// safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	descriptors  map[string]*Descriptor
	associations map[string]map[string]Relationship
}

// NewRegistry creates an empty descriptor registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors:  make(map[string]*Descriptor),
		associations: make(map[string]map[string]Relationship),
	}
}

// Register adds a descriptor to the registry. Registering the same relation
// name twice is a definition error.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("cannot register a nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Relation()]; exists {
		return fmt.Errorf("relation '%s' is already registered", d.Relation())
	}
	r.descriptors[d.Relation()] = d
	return nil
}

// Lookup returns the descriptor registered for a relation name.
func (r *Registry) Lookup(relation string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[relation]
	return d, ok
}

// Relate declares an association between two registered descriptors. The
// foreign key field must exist on whichever descriptor carries it.
func (r *Registry) Relate(rel Relationship) error {
	if rel.Owner == nil || rel.Target == nil {
		return fmt.Errorf("relationship '%s' requires both owner and target descriptors", rel.Name)
	}
	if rel.Name == "" {
		return fmt.Errorf("relationship between '%s' and '%s' requires a name", rel.Owner.Relation(), rel.Target.Relation())
	}
	if rel.ForeignKey == "" {
		return fmt.Errorf("relationship '%s' requires an explicit foreign key field", rel.Name)
	}

	carrier := rel.Target
	if rel.Kind == BelongsTo {
		carrier = rel.Owner
	}
	if !carrier.HasField(rel.ForeignKey) {
		return fmt.Errorf("relationship '%s': foreign key '%s' is not a field of relation '%s'", rel.Name, rel.ForeignKey, carrier.Relation())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	owner := rel.Owner.Relation()
	if _, ok := r.descriptors[owner]; !ok {
		return fmt.Errorf("relationship '%s': owner relation '%s' is not registered", rel.Name, owner)
	}
	if _, ok := r.descriptors[rel.Target.Relation()]; !ok {
		return fmt.Errorf("relationship '%s': target relation '%s' is not registered", rel.Name, rel.Target.Relation())
	}
	if r.associations[owner] == nil {
		r.associations[owner] = make(map[string]Relationship)
	}
	if _, dup := r.associations[owner][rel.Name]; dup {
		return fmt.Errorf("relationship '%s' already declared on relation '%s'", rel.Name, owner)
	}
	r.associations[owner][rel.Name] = rel
	return nil
}

// Association resolves a declared relationship by owner relation and
// association name.
func (r *Registry) Association(owner, name string) (Relationship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.associations[owner][name]
	return rel, ok
}
