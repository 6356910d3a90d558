package query

// Expr is a node of an expression tree referenced by filters, projections,
// grouping and ordering clauses. Expression construction performs no
// validation; binding and aggregate placement are checked when the query is
// compiled.
type Expr interface{ isExpr() }

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpEq   CompareOp = "eq"
	OpNeq  CompareOp = "neq"
	OpLt   CompareOp = "lt"
	OpLte  CompareOp = "lte"
	OpGt   CompareOp = "gt"
	OpGte  CompareOp = "gte"
	OpLike CompareOp = "like"
	OpIn   CompareOp = "in"
)

// LogicalOp combines predicate expressions.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
)

// ColumnExpr references a field through a binding introduced by From or a
// join.
type ColumnExpr struct {
	Binding string
	Field   string
}

// ValueExpr is an external value bound as a query parameter, never
// interpolated into the compiled text.
type ValueExpr struct {
	Value any
}

// ListExpr is an ordered list of values, used with OpIn.
type ListExpr struct {
	Values []any
}

// CompareExpr applies a comparison operator to two operands.
type CompareExpr struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// LogicExpr combines predicate operands with a logical operator. OpNot takes
// exactly one operand.
type LogicExpr struct {
	Op       LogicalOp
	Operands []Expr
}

// IsNullExpr tests a column for NULL (or NOT NULL when negated).
type IsNullExpr struct {
	Operand Expr
	Negated bool
}

// CountExpr is the aggregate count form. A nil Operand counts rows; Distinct
// counts distinct values of the operand. Aggregates are only permitted in
// projections and Having predicates.
type CountExpr struct {
	Operand Expr
	Distinct bool
}

// RawExpr embeds raw dialect-specific expression text with positional "?"
// placeholders bound to Params in order.
type RawExpr struct {
	SQL    string
	Params []any
}

// AliasExpr names a projected expression in the result set.
type AliasExpr struct {
	Expr  Expr
	Alias string
}

func (ColumnExpr) isExpr()  {}
func (ValueExpr) isExpr()   {}
func (ListExpr) isExpr()    {}
func (CompareExpr) isExpr() {}
func (LogicExpr) isExpr()   {}
func (IsNullExpr) isExpr()  {}
func (CountExpr) isExpr()   {}
func (RawExpr) isExpr()     {}
func (AliasExpr) isExpr()   {}

// Col references binding.field.
func Col(binding, field string) Expr {
	return ColumnExpr{Binding: binding, Field: field}
}

// Val wraps an external value as a bound parameter.
func Val(v any) Expr {
	return ValueExpr{Value: v}
}

// Eq compares two expressions for equality.
func Eq(left, right Expr) Expr { return CompareExpr{Op: OpEq, Left: left, Right: right} }

// Neq compares two expressions for inequality.
func Neq(left, right Expr) Expr { return CompareExpr{Op: OpNeq, Left: left, Right: right} }

// Lt is the less-than comparison.
func Lt(left, right Expr) Expr { return CompareExpr{Op: OpLt, Left: left, Right: right} }

// Lte is the less-than-or-equal comparison.
func Lte(left, right Expr) Expr { return CompareExpr{Op: OpLte, Left: left, Right: right} }

// Gt is the greater-than comparison.
func Gt(left, right Expr) Expr { return CompareExpr{Op: OpGt, Left: left, Right: right} }

// Gte is the greater-than-or-equal comparison.
func Gte(left, right Expr) Expr { return CompareExpr{Op: OpGte, Left: left, Right: right} }

// Like is the SQL LIKE comparison.
func Like(left, right Expr) Expr { return CompareExpr{Op: OpLike, Left: left, Right: right} }

// In tests membership of a column in a list of values.
func In(left Expr, values ...any) Expr {
	return CompareExpr{Op: OpIn, Left: left, Right: ListExpr{Values: values}}
}

// And combines predicates; all must hold.
func And(operands ...Expr) Expr { return LogicExpr{Op: OpAnd, Operands: operands} }

// Or combines predicates; at least one must hold.
func Or(operands ...Expr) Expr { return LogicExpr{Op: OpOr, Operands: operands} }

// Not negates a predicate.
func Not(operand Expr) Expr { return LogicExpr{Op: OpNot, Operands: []Expr{operand}} }

// IsNull tests a column for NULL.
func IsNull(operand Expr) Expr { return IsNullExpr{Operand: operand} }

// IsNotNull tests a column for NOT NULL.
func IsNotNull(operand Expr) Expr { return IsNullExpr{Operand: operand, Negated: true} }

// Count counts rows when operand is nil, otherwise non-null values of the
// operand.
func Count(operand Expr) Expr { return CountExpr{Operand: operand} }

// CountDistinct counts distinct values of the operand.
func CountDistinct(operand Expr) Expr { return CountExpr{Operand: operand, Distinct: true} }

// Raw embeds raw expression text with positional "?" placeholders.
func Raw(sql string, params ...any) Expr {
	return RawExpr{SQL: sql, Params: params}
}

// As aliases a projected expression.
func As(e Expr, alias string) Expr {
	return AliasExpr{Expr: e, Alias: alias}
}
