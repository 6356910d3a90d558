// Package sqlite lowers the query IR to SQLite SQL and executes compiled
// queries over database/sql. It is the only dialect shipped with the module;
// the rest of the engine is dialect-agnostic behind the query.Compiler and
// repo.Adapter contracts.
package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwakio/go-mizani/core/query"
	"github.com/mwakio/go-mizani/core/schema"
)

// Compiler translates analyzed query plans and changeset commit payloads
// into parameterized SQLite statements. Compilation is pure; parameter
// values are always bound through "?" slots and never interpolated.
type Compiler struct {
	registry *schema.Registry
}

// Ensure Compiler implements the query.Compiler interface.
var _ query.Compiler = (*Compiler)(nil)

// NewCompiler creates a compiler over a descriptor registry. The registry
// resolves relation names, field specs and association join conditions.
func NewCompiler(registry *schema.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CompileSelect lowers a Query into a SELECT statement. The semantic checks
// (bindings, fields, aggregates, fragment arity) run as part of the analysis
// pass; any violation is returned as a *query.CompileError.
func (c *Compiler) CompileSelect(q *query.Query) (*query.CompiledQuery, error) {
	plan, err := query.Analyze(q, c.registry)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	var params []any

	sb.WriteString("SELECT ")
	if len(plan.Selects) == 0 {
		sb.WriteString(quoteIdentifier(plan.Source.Binding) + ".*")
	} else {
		cols := make([]string, len(plan.Selects))
		for i, e := range plan.Selects {
			rendered, err := c.renderExpr(e, &params)
			if err != nil {
				return nil, err
			}
			cols[i] = rendered
		}
		sb.WriteString(strings.Join(cols, ", "))
	}

	sb.WriteString(fmt.Sprintf(" FROM %s AS %s", quoteIdentifier(plan.Source.Relation), quoteIdentifier(plan.Source.Binding)))

	for _, join := range plan.Joins {
		kind := "INNER JOIN"
		if join.Kind == query.JoinLeft {
			kind = "LEFT JOIN"
		}
		on, err := c.renderExpr(join.On, &params)
		if err != nil {
			return nil, err
		}
		sb.WriteString(fmt.Sprintf(" %s %s AS %s ON %s", kind, quoteIdentifier(join.Relation), quoteIdentifier(join.Binding), on))
	}

	var wheres []string
	for _, pred := range plan.Wheres {
		rendered, err := c.renderExpr(pred, &params)
		if err != nil {
			return nil, err
		}
		wheres = append(wheres, rendered)
	}
	for _, frag := range plan.Fragments {
		wheres = append(wheres, "("+frag.Raw+")")
		params = append(params, frag.Params...)
	}
	if len(wheres) > 0 {
		sb.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	if len(plan.GroupBys) > 0 {
		groups := make([]string, len(plan.GroupBys))
		for i, e := range plan.GroupBys {
			rendered, err := c.renderExpr(e, &params)
			if err != nil {
				return nil, err
			}
			groups[i] = rendered
		}
		sb.WriteString(" GROUP BY " + strings.Join(groups, ", "))
	}

	if len(plan.Havings) > 0 {
		havings := make([]string, len(plan.Havings))
		for i, pred := range plan.Havings {
			rendered, err := c.renderExpr(pred, &params)
			if err != nil {
				return nil, err
			}
			havings[i] = rendered
		}
		sb.WriteString(" HAVING " + strings.Join(havings, " AND "))
	}

	if len(plan.Orders) > 0 {
		orders := make([]string, len(plan.Orders))
		for i, entry := range plan.Orders {
			rendered, err := c.renderExpr(entry.Expr, &params)
			if err != nil {
				return nil, err
			}
			dir := "ASC"
			if entry.Dir == query.DirectionDesc {
				dir = "DESC"
			}
			orders[i] = rendered + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}

	if plan.Limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", *plan.Limit))
	}
	if plan.Offset != nil {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", *plan.Offset))
	}

	return &query.CompiledQuery{Text: sb.String() + ";", Params: params}, nil
}

// renderExpr translates one expression into SQL, appending bound parameter
// values in the order their placeholders appear.
func (c *Compiler) renderExpr(e query.Expr, params *[]any) (string, error) {
	switch x := e.(type) {
	case query.ColumnExpr:
		return quoteIdentifier(x.Binding) + "." + quoteIdentifier(x.Field), nil
	case query.ValueExpr:
		*params = append(*params, encodeParam(x.Value))
		return "?", nil
	case query.CompareExpr:
		return c.renderCompare(x, params)
	case query.LogicExpr:
		if x.Op == query.OpNot {
			operand, err := c.renderExpr(x.Operands[0], params)
			if err != nil {
				return "", err
			}
			return "NOT (" + operand + ")", nil
		}
		op := " AND "
		if x.Op == query.OpOr {
			op = " OR "
		}
		parts := make([]string, len(x.Operands))
		for i, operand := range x.Operands {
			rendered, err := c.renderExpr(operand, params)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return "(" + strings.Join(parts, op) + ")", nil
	case query.IsNullExpr:
		operand, err := c.renderExpr(x.Operand, params)
		if err != nil {
			return "", err
		}
		if x.Negated {
			return operand + " IS NOT NULL", nil
		}
		return operand + " IS NULL", nil
	case query.CountExpr:
		if x.Operand == nil {
			return "COUNT(*)", nil
		}
		operand, err := c.renderExpr(x.Operand, params)
		if err != nil {
			return "", err
		}
		if x.Distinct {
			return "COUNT(DISTINCT " + operand + ")", nil
		}
		return "COUNT(" + operand + ")", nil
	case query.RawExpr:
		for _, p := range x.Params {
			*params = append(*params, encodeParam(p))
		}
		return "(" + x.SQL + ")", nil
	case query.AliasExpr:
		inner, err := c.renderExpr(x.Expr, params)
		if err != nil {
			return "", err
		}
		return inner + " AS " + quoteIdentifier(x.Alias), nil
	default:
		return "", fmt.Errorf("unsupported expression type %T", e)
	}
}

// renderCompare translates a comparison, handling IN lists specially since
// an empty list has no valid placeholder form.
func (c *Compiler) renderCompare(x query.CompareExpr, params *[]any) (string, error) {
	left, err := c.renderExpr(x.Left, params)
	if err != nil {
		return "", err
	}

	if x.Op == query.OpIn {
		list, ok := x.Right.(query.ListExpr)
		if !ok {
			return "", fmt.Errorf("IN requires a list operand, got %T", x.Right)
		}
		if len(list.Values) == 0 {
			// IN over an empty list matches nothing.
			return "1=0", nil
		}
		placeholders := make([]string, len(list.Values))
		for i, v := range list.Values {
			placeholders[i] = "?"
			*params = append(*params, encodeParam(v))
		}
		return fmt.Sprintf("%s IN (%s)", left, strings.Join(placeholders, ", ")), nil
	}

	right, err := c.renderExpr(x.Right, params)
	if err != nil {
		return "", err
	}

	var op string
	switch x.Op {
	case query.OpEq:
		op = "="
	case query.OpNeq:
		op = "!="
	case query.OpLt:
		op = "<"
	case query.OpLte:
		op = "<="
	case query.OpGt:
		op = ">"
	case query.OpGte:
		op = ">="
	case query.OpLike:
		op = "LIKE"
	default:
		return "", fmt.Errorf("unsupported comparison operator '%s'", x.Op)
	}
	return fmt.Sprintf("%s %s %s", left, op, right), nil
}

// CompileInsert builds an INSERT ... RETURNING * statement for one record.
// Columns follow descriptor declaration order so compiled texts are stable
// and cacheable. NOTE: RETURNING requires SQLite 3.35.0+.
func (c *Compiler) CompileInsert(desc *schema.Descriptor, record map[string]any) (*query.CompiledQuery, error) {
	if len(record) == 0 {
		return nil, fmt.Errorf("no fields provided for insert into '%s'", desc.Relation())
	}

	var columns []string
	var params []any
	for _, f := range desc.Fields() {
		value, ok := record[f.Name]
		if !ok {
			continue
		}
		columns = append(columns, quoteIdentifier(f.Name))
		params = append(params, encodeField(f.Kind, value))
	}
	if len(columns) != len(record) {
		for name := range record {
			if !desc.HasField(name) {
				return nil, fmt.Errorf("field '%s' is not declared on relation '%s'", name, desc.Relation())
			}
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *;",
		quoteIdentifier(desc.Relation()), strings.Join(columns, ", "), placeholders)
	return &query.CompiledQuery{Text: sql, Params: params}, nil
}

// CompileUpdate builds an UPDATE ... RETURNING * statement addressing one
// entity by primary key.
func (c *Compiler) CompileUpdate(desc *schema.Descriptor, changes map[string]any, pkValue any) (*query.CompiledQuery, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("no fields provided for update of '%s'", desc.Relation())
	}
	pk := desc.PrimaryKey()
	if pk == "" {
		return nil, fmt.Errorf("relation '%s' has no primary key to address updates by", desc.Relation())
	}

	var sets []string
	var params []any
	for _, f := range desc.Fields() {
		value, ok := changes[f.Name]
		if !ok {
			continue
		}
		sets = append(sets, quoteIdentifier(f.Name)+" = ?")
		params = append(params, encodeField(f.Kind, value))
	}
	if len(sets) != len(changes) {
		for name := range changes {
			if !desc.HasField(name) {
				return nil, fmt.Errorf("field '%s' is not declared on relation '%s'", name, desc.Relation())
			}
		}
	}
	params = append(params, encodeParam(pkValue))

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? RETURNING *;",
		quoteIdentifier(desc.Relation()), strings.Join(sets, ", "), quoteIdentifier(pk))
	return &query.CompiledQuery{Text: sql, Params: params}, nil
}

// CompileDelete builds a DELETE statement addressing one entity by primary
// key.
func (c *Compiler) CompileDelete(desc *schema.Descriptor, pkValue any) (*query.CompiledQuery, error) {
	pk := desc.PrimaryKey()
	if pk == "" {
		return nil, fmt.Errorf("relation '%s' has no primary key to address deletes by", desc.Relation())
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?;", quoteIdentifier(desc.Relation()), quoteIdentifier(pk))
	return &query.CompiledQuery{Text: sql, Params: []any{encodeParam(pkValue)}}, nil
}

// encodeField maps a canonical Go value to SQLite's storage representation
// based on the field's declared kind.
func encodeField(kind schema.FieldKind, value any) any {
	if value == nil {
		return nil
	}
	switch kind {
	case schema.KindBoolean:
		if b, ok := value.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case schema.KindTimestamp:
		if ts, ok := value.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	return value
}

// encodeParam maps external parameter values whose kind is unknown; only
// representations SQLite cannot store natively are rewritten.
func encodeParam(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	}
	return value
}
