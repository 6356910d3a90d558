package schema

import (
	"encoding/json"
	"fmt"
)

// ToStruct decodes an Entity into a new instance of the struct type T,
// honoring its json tags. It is the usual last step after a repo query when
// a caller wants typed access to a decoded row.
func ToStruct[T any](entity Entity) (T, error) {
	var result T
	if entity == nil {
		return result, fmt.Errorf("entity cannot be nil")
	}
	raw, err := json.Marshal(entity)
	if err != nil {
		return result, fmt.Errorf("failed to encode entity: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("failed to decode entity into %T: %w", result, err)
	}
	return result, nil
}

// FromStruct converts a struct into an Entity via its json tags, typically
// to produce raw parameters for a changeset Cast.
func FromStruct[T any](record T) (Entity, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var entity Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return nil, fmt.Errorf("failed to decode record into an entity: %w", err)
	}
	return entity, nil
}
