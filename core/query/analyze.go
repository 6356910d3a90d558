package query

import (
	"strings"

	"github.com/mwakio/go-mizani/core/schema"
)

// Source is the resolved root relation of a plan.
type Source struct {
	Relation string
	Binding  string
	Desc     *schema.Descriptor
}

// PlannedJoin is a join whose target descriptor and condition have been
// resolved, including association joins whose condition came from the
// relationship registry.
type PlannedJoin struct {
	Kind     JoinKind
	Relation string
	Binding  string
	On       Expr
	Desc     *schema.Descriptor
}

// FragmentClause is a raw predicate fragment with its ordered parameters.
type FragmentClause struct {
	Raw    string
	Params []any
}

// Plan is the validated, clause-ordered form of a Query that dialect
// compilers render. Producing a Plan performs every semantic check the IR
// defers: binding resolution and shadowing, field existence, aggregate
// placement and fragment placeholder arity.
type Plan struct {
	Source    Source
	Joins     []PlannedJoin
	Wheres    []Expr
	Fragments []FragmentClause
	Selects   []Expr
	GroupBys  []Expr
	Havings   []Expr
	Orders    []OrderEntry
	Limit     *int
	Offset    *int

	bindings map[string]*schema.Descriptor
}

// Binding returns the descriptor a binding name resolves to.
func (p *Plan) Binding(name string) (*schema.Descriptor, bool) {
	d, ok := p.bindings[name]
	return d, ok
}

// Analyze validates a Query against the descriptor registry and lowers it to
// a Plan. It is pure; a nil error guarantees every binding, field and
// aggregate in the tree is well-placed.
func Analyze(q *Query, reg *schema.Registry) (*Plan, error) {
	if q == nil {
		return nil, compileErrorf(ErrMalformedQuery, "query is nil")
	}
	clauses := q.clauses()

	src, ok := clauses[0].(sourceNode)
	if !ok {
		return nil, compileErrorf(ErrMalformedQuery, "query does not start with a source relation")
	}
	if src.binding == "" {
		return nil, compileErrorf(ErrMalformedQuery, "source relation '%s' requires a binding name", src.relation)
	}
	srcDesc, ok := reg.Lookup(src.relation)
	if !ok {
		return nil, compileErrorf(ErrUnknownRelation, "relation '%s' is not registered", src.relation)
	}

	plan := &Plan{
		Source:   Source{Relation: src.relation, Binding: src.binding, Desc: srcDesc},
		bindings: map[string]*schema.Descriptor{src.binding: srcDesc},
	}

	for _, c := range clauses[1:] {
		switch n := c.(type) {
		case sourceNode:
			return nil, compileErrorf(ErrMalformedQuery, "query declares a second source relation '%s'", n.relation)
		case joinNode:
			join, err := plan.resolveJoin(n, reg)
			if err != nil {
				return nil, err
			}
			if _, dup := plan.bindings[join.Binding]; dup {
				return nil, compileErrorf(ErrShadowedBinding, "binding '%s' is defined more than once", join.Binding)
			}
			plan.bindings[join.Binding] = join.Desc
			plan.Joins = append(plan.Joins, join)
		case whereNode:
			plan.Wheres = append(plan.Wheres, n.pred)
		case havingNode:
			plan.Havings = append(plan.Havings, n.pred)
		case selectNode:
			plan.Selects = n.exprs
		case groupByNode:
			plan.GroupBys = append(plan.GroupBys, n.exprs...)
		case orderByNode:
			plan.Orders = append(plan.Orders, n.entries...)
		case fragmentNode:
			if strings.Count(n.raw, "?") != len(n.params) {
				return nil, compileErrorf(ErrFragmentArity, "fragment %q has %d placeholders but %d parameters", n.raw, strings.Count(n.raw, "?"), len(n.params))
			}
			plan.Fragments = append(plan.Fragments, FragmentClause{Raw: n.raw, Params: n.params})
		case limitNode:
			limit := n.n
			plan.Limit = &limit
		case offsetNode:
			offset := n.n
			plan.Offset = &offset
		}
	}

	for _, pred := range plan.Wheres {
		if err := plan.checkExpr(pred, false); err != nil {
			return nil, err
		}
	}
	for _, join := range plan.Joins {
		if err := plan.checkExpr(join.On, false); err != nil {
			return nil, err
		}
	}
	for _, e := range plan.Selects {
		if err := plan.checkExpr(e, true); err != nil {
			return nil, err
		}
	}
	for _, e := range plan.GroupBys {
		if err := plan.checkExpr(e, false); err != nil {
			return nil, err
		}
	}
	for _, pred := range plan.Havings {
		if err := plan.checkExpr(pred, true); err != nil {
			return nil, err
		}
	}
	for _, entry := range plan.Orders {
		if err := plan.checkExpr(entry.Expr, false); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// resolveJoin resolves an explicit or association join to a planned join.
func (p *Plan) resolveJoin(n joinNode, reg *schema.Registry) (PlannedJoin, error) {
	if n.binding == "" {
		return PlannedJoin{}, compileErrorf(ErrMalformedQuery, "join requires a binding name")
	}

	if n.assoc == "" {
		desc, ok := reg.Lookup(n.relation)
		if !ok {
			return PlannedJoin{}, compileErrorf(ErrUnknownRelation, "relation '%s' is not registered", n.relation)
		}
		if n.on == nil {
			return PlannedJoin{}, compileErrorf(ErrMalformedQuery, "join on relation '%s' requires a condition", n.relation)
		}
		return PlannedJoin{Kind: n.kind, Relation: n.relation, Binding: n.binding, On: n.on, Desc: desc}, nil
	}

	rel, ok := reg.Association(p.Source.Relation, n.assoc)
	if !ok {
		return PlannedJoin{}, compileErrorf(ErrUnknownRelation, "relation '%s' declares no association '%s'", p.Source.Relation, n.assoc)
	}

	var on Expr
	switch rel.Kind {
	case schema.BelongsTo:
		on = Eq(Col(p.Source.Binding, rel.ForeignKey), Col(n.binding, rel.Target.PrimaryKey()))
	default: // HasMany, HasOne: the target carries the foreign key
		on = Eq(Col(p.Source.Binding, p.Source.Desc.PrimaryKey()), Col(n.binding, rel.ForeignKey))
	}
	return PlannedJoin{
		Kind:     n.kind,
		Relation: rel.Target.Relation(),
		Binding:  n.binding,
		On:       on,
		Desc:     rel.Target,
	}, nil
}

// checkExpr validates bindings, fields, aggregate placement and raw
// placeholder arity throughout an expression tree. allowAggregate is true
// only for projection and having contexts.
func (p *Plan) checkExpr(e Expr, allowAggregate bool) error {
	switch x := e.(type) {
	case nil:
		return compileErrorf(ErrMalformedQuery, "nil expression")
	case ColumnExpr:
		desc, ok := p.bindings[x.Binding]
		if !ok {
			return compileErrorf(ErrUndefinedBinding, "binding '%s' is not introduced by the query", x.Binding)
		}
		if !desc.HasField(x.Field) {
			return compileErrorf(ErrUnknownField, "relation '%s' (bound as '%s') has no field '%s'", desc.Relation(), x.Binding, x.Field)
		}
	case ValueExpr, ListExpr:
		return nil
	case CompareExpr:
		if err := p.checkExpr(x.Left, allowAggregate); err != nil {
			return err
		}
		return p.checkExpr(x.Right, allowAggregate)
	case LogicExpr:
		if x.Op == OpNot && len(x.Operands) != 1 {
			return compileErrorf(ErrMalformedQuery, "not takes exactly one operand, got %d", len(x.Operands))
		}
		if len(x.Operands) == 0 {
			return compileErrorf(ErrMalformedQuery, "%s requires at least one operand", x.Op)
		}
		for _, op := range x.Operands {
			if err := p.checkExpr(op, allowAggregate); err != nil {
				return err
			}
		}
	case IsNullExpr:
		return p.checkExpr(x.Operand, false)
	case CountExpr:
		if !allowAggregate {
			return compileErrorf(ErrAggregateMisuse, "count is only permitted in projections and having predicates")
		}
		if x.Operand != nil {
			return p.checkExpr(x.Operand, false)
		}
	case RawExpr:
		if strings.Count(x.SQL, "?") != len(x.Params) {
			return compileErrorf(ErrFragmentArity, "raw expression %q has %d placeholders but %d parameters", x.SQL, strings.Count(x.SQL, "?"), len(x.Params))
		}
	case AliasExpr:
		return p.checkExpr(x.Expr, allowAggregate)
	}
	return nil
}
