package changeset

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mwakio/go-mizani/core/schema"
)

// coerce converts a raw parameter value to the canonical Go representation of
// a field kind: string, int64, float64, bool or time.Time. A nil raw value
// stays nil so required-field validation can catch it later.
func coerce(raw any, kind schema.FieldKind) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch kind {
	case schema.KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case schema.KindInteger:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		case float32:
			if float64(v) == float64(int64(v)) {
				return int64(v), nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, nil
			}
		}
	case schema.KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, nil
			}
		}
	case schema.KindBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		case int64:
			if v == 0 || v == 1 {
				return v == 1, nil
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	case schema.KindTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
				return ts.UTC(), nil
			}
		}
	}

	return nil, fmt.Errorf("cannot coerce %T to %s", raw, kind)
}

// equalValues compares a coerced value against a base entity value, treating
// timestamps by instant rather than location.
func equalValues(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
