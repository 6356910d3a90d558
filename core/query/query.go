// Package query defines the intermediate representation for queries: an
// immutable, composable tree built by fluent calls and lowered to a concrete
// dialect by a Compiler. Composition never validates bindings; all semantic
// checks are deferred to compile time so a partially built query can be
// shared and extended divergently by multiple call sites.
package query

// JoinKind specifies the type of join to be performed.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// Direction specifies an ordering direction.
type Direction string

const (
	DirectionAsc  Direction = "asc"
	DirectionDesc Direction = "desc"
)

// OrderEntry pairs an expression with an ordering direction.
type OrderEntry struct {
	Expr Expr
	Dir  Direction
}

// Asc builds an ascending order entry.
func Asc(e Expr) OrderEntry {
	return OrderEntry{Expr: e, Dir: DirectionAsc}
}

// Desc builds a descending order entry.
func Desc(e Expr) OrderEntry {
	return OrderEntry{Expr: e, Dir: DirectionDesc}
}

// node is one clause of the IR tree. The concrete types are consumed by the
// analysis pass in this package; dialect compilers never see them directly.
type node interface{ isNode() }

type sourceNode struct {
	relation string
	binding  string
}

type joinNode struct {
	kind     JoinKind
	relation string // empty for association joins
	assoc    string // empty for explicit joins
	binding  string
	on       Expr // nil for association joins; resolved at compile time
}

type whereNode struct{ pred Expr }

type havingNode struct{ pred Expr }

type selectNode struct{ exprs []Expr }

type groupByNode struct{ exprs []Expr }

type orderByNode struct{ entries []OrderEntry }

type fragmentNode struct {
	raw    string
	params []any
}

type limitNode struct{ n int }

type offsetNode struct{ n int }

func (sourceNode) isNode()   {}
func (joinNode) isNode()     {}
func (whereNode) isNode()    {}
func (havingNode) isNode()   {}
func (selectNode) isNode()   {}
func (groupByNode) isNode()  {}
func (orderByNode) isNode()  {}
func (fragmentNode) isNode() {}
func (limitNode) isNode()    {}
func (offsetNode) isNode()   {}

// Query is one node of the persistent IR tree. Every composition method
// returns a new Query wrapping the receiver, so existing values are never
// mutated and remain safe to reuse as a base for divergent continuations.
type Query struct {
	prev *Query
	node node
}

// From starts a query over a relation, introducing a named binding that
// expressions elsewhere in the tree reference.
func From(relation, binding string) *Query {
	return &Query{node: sourceNode{relation: relation, binding: binding}}
}

func (q *Query) extend(n node) *Query {
	return &Query{prev: q, node: n}
}

// Where adds a filter predicate. Multiple Where clauses combine with AND.
func (q *Query) Where(pred Expr) *Query {
	return q.extend(whereNode{pred: pred})
}

// Join adds an explicit join against a relation under a new binding, with a
// caller-supplied join condition.
func (q *Query) Join(kind JoinKind, relation, binding string, on Expr) *Query {
	return q.extend(joinNode{kind: kind, relation: relation, binding: binding, on: on})
}

// InnerJoin is Join with the default inner kind.
func (q *Query) InnerJoin(relation, binding string, on Expr) *Query {
	return q.Join(JoinInner, relation, binding, on)
}

// JoinAssoc adds an inner join following a relationship declared between the
// source descriptor and another. The join condition is resolved from the
// relationship registry at compile time, not spelled out here.
func (q *Query) JoinAssoc(assoc, binding string) *Query {
	return q.extend(joinNode{kind: JoinInner, assoc: assoc, binding: binding})
}

// Select sets the projection. Later Select calls replace earlier ones.
func (q *Query) Select(exprs ...Expr) *Query {
	return q.extend(selectNode{exprs: exprs})
}

// GroupBy adds grouping expressions.
func (q *Query) GroupBy(exprs ...Expr) *Query {
	return q.extend(groupByNode{exprs: exprs})
}

// Having adds a post-grouping filter predicate. Aggregate expressions are
// permitted here and in Select only.
func (q *Query) Having(pred Expr) *Query {
	return q.extend(havingNode{pred: pred})
}

// OrderBy adds ordering entries. Entries compose left to right across calls
// in decreasing precedence; direction defaults to ascending via Asc.
func (q *Query) OrderBy(entries ...OrderEntry) *Query {
	return q.extend(orderByNode{entries: entries})
}

// Fragment appends a raw dialect-specific predicate with positional "?"
// placeholders. The compiler binds params into parameter slots in order; raw
// text is the sole escape hatch and values are never interpolated into it.
func (q *Query) Fragment(raw string, params ...any) *Query {
	return q.extend(fragmentNode{raw: raw, params: params})
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	return q.extend(limitNode{n: n})
}

// Offset skips rows before the first returned one.
func (q *Query) Offset(n int) *Query {
	return q.extend(offsetNode{n: n})
}

// clauses returns the tree's nodes in declaration order.
func (q *Query) clauses() []node {
	var rev []node
	for cur := q; cur != nil; cur = cur.prev {
		rev = append(rev, cur.node)
	}
	out := make([]node, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return out
}
