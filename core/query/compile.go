package query

import (
	"fmt"

	"github.com/mwakio/go-mizani/core/schema"
)

// CompiledQuery is the immutable product of lowering a Query: the target
// language text with placeholder slots and the parameter values in the order
// their placeholders appear in the text.
type CompiledQuery struct {
	Text   string
	Params []any
}

// CompileErrorCode classifies why a compilation attempt was rejected.
type CompileErrorCode string

const (
	ErrUndefinedBinding CompileErrorCode = "undefined_binding"
	ErrShadowedBinding  CompileErrorCode = "shadowed_binding"
	ErrAggregateMisuse  CompileErrorCode = "aggregate_misuse"
	ErrFragmentArity    CompileErrorCode = "fragment_arity"
	ErrUnknownRelation  CompileErrorCode = "unknown_relation"
	ErrUnknownField     CompileErrorCode = "unknown_field"
	ErrMalformedQuery   CompileErrorCode = "malformed_query"
)

// CompileError is a query-level failure. It is fatal to the compilation
// attempt and returned directly; it never accumulates the way changeset
// field errors do.
type CompileError struct {
	Code   CompileErrorCode
	Detail string
}

// Error returns the error message for a CompileError.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error (%s): %s", e.Code, e.Detail)
}

func compileErrorf(code CompileErrorCode, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Compiler lowers the IR and changeset commit payloads into a concrete query
// dialect. Compilation is pure: it never touches the network and the same
// input always yields the same CompiledQuery.
type Compiler interface {
	// CompileSelect lowers a Query into a parameterized SELECT statement.
	CompileSelect(q *Query) (*CompiledQuery, error)

	// CompileInsert builds a parameterized INSERT for one record that
	// returns the stored row, so server-assigned fields come back without a
	// second round trip.
	CompileInsert(desc *schema.Descriptor, record map[string]any) (*CompiledQuery, error)

	// CompileUpdate builds a parameterized UPDATE of one entity addressed by
	// its primary key, returning the stored row.
	CompileUpdate(desc *schema.Descriptor, changes map[string]any, pkValue any) (*CompiledQuery, error)

	// CompileDelete builds a parameterized DELETE of one entity addressed by
	// its primary key.
	CompileDelete(desc *schema.Descriptor, pkValue any) (*CompiledQuery, error)
}
