package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mwakio/go-mizani/core/schema"
)

// decodeRows reads all rows from a result set into schema.Entity maps,
// converting each column to the canonical Go representation of its declared
// kind. Columns not declared on the descriptor (computed projections,
// aggregates, joined columns) keep the driver's raw value.
func decodeRows(logger *zap.Logger, desc *schema.Descriptor, rows *sql.Rows) ([]schema.Entity, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var results []schema.Entity
	for rows.Next() {
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entity := make(schema.Entity, len(columns))
		for i, col := range columns {
			val := values[i]
			if val == nil {
				entity[col] = nil
				continue
			}
			if desc == nil {
				entity[col] = rawValue(val)
				continue
			}
			spec, declared := desc.Field(col)
			if !declared {
				entity[col] = rawValue(val)
				continue
			}
			decoded, err := decodeValue(spec.Kind, val)
			if err != nil {
				logger.Warn("could not decode column, keeping raw value",
					zap.String("column", col), zap.Error(err))
				entity[col] = rawValue(val)
				continue
			}
			entity[col] = decoded
		}
		results = append(results, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// rawValue normalizes driver byte slices to strings so unknown columns stay
// usable without exposing mutable buffers.
func rawValue(val any) any {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

// decodeValue converts one stored value to the canonical representation of
// a field kind: string, int64, float64, bool or time.Time.
func decodeValue(kind schema.FieldKind, val any) (any, error) {
	switch kind {
	case schema.KindString:
		switch v := val.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case schema.KindInteger:
		switch v := val.(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		}
	case schema.KindFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		}
	case schema.KindBoolean:
		switch v := val.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
	case schema.KindTimestamp:
		switch v := val.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, err
			}
			return ts.UTC(), nil
		case []byte:
			ts, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return nil, err
			}
			return ts.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", val, kind)
}
