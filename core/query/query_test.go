package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_CompositionIsImmutable(t *testing.T) {
	base := From("users", "u")
	extended := base.Where(Eq(Col("u", "username"), Val("doomspork")))

	assert.NotSame(t, base, extended)
	assert.Len(t, base.clauses(), 1)
	assert.Len(t, extended.clauses(), 2)
}

func TestQuery_DivergentReuse(t *testing.T) {
	base := From("users", "u").Where(Eq(Col("u", "is_active"), Val(true)))

	byName := base.Where(Like(Col("u", "username"), Val("doom%")))
	paged := base.Limit(10).Offset(20)

	// Each continuation sees the shared prefix plus only its own clauses.
	assert.Len(t, base.clauses(), 2)
	assert.Len(t, byName.clauses(), 3)
	assert.Len(t, paged.clauses(), 4)
}

func TestQuery_ClausesInDeclarationOrder(t *testing.T) {
	q := From("users", "u").
		Where(Eq(Col("u", "is_active"), Val(true))).
		OrderBy(Asc(Col("u", "username"))).
		Limit(5)

	clauses := q.clauses()
	require.Len(t, clauses, 4)
	assert.IsType(t, sourceNode{}, clauses[0])
	assert.IsType(t, whereNode{}, clauses[1])
	assert.IsType(t, orderByNode{}, clauses[2])
	assert.IsType(t, limitNode{}, clauses[3])
}

func TestOrderEntryConstructors(t *testing.T) {
	col := Col("u", "inserted_at")
	assert.Equal(t, OrderEntry{Expr: col, Dir: DirectionAsc}, Asc(col))
	assert.Equal(t, OrderEntry{Expr: col, Dir: DirectionDesc}, Desc(col))
}

func TestExprConstructors(t *testing.T) {
	t.Run("comparisons", func(t *testing.T) {
		cmp, ok := Gt(Col("u", "age"), Val(18)).(CompareExpr)
		require.True(t, ok)
		assert.Equal(t, OpGt, cmp.Op)
	})

	t.Run("in builds a list operand", func(t *testing.T) {
		cmp, ok := In(Col("u", "plan"), "free", "pro").(CompareExpr)
		require.True(t, ok)
		assert.Equal(t, OpIn, cmp.Op)
		list, ok := cmp.Right.(ListExpr)
		require.True(t, ok)
		assert.Equal(t, []any{"free", "pro"}, list.Values)
	})

	t.Run("not wraps a single operand", func(t *testing.T) {
		logic, ok := Not(IsNull(Col("u", "email"))).(LogicExpr)
		require.True(t, ok)
		assert.Equal(t, OpNot, logic.Op)
		assert.Len(t, logic.Operands, 1)
	})

	t.Run("count variants", func(t *testing.T) {
		star, ok := Count(nil).(CountExpr)
		require.True(t, ok)
		assert.Nil(t, star.Operand)
		assert.False(t, star.Distinct)

		distinct, ok := CountDistinct(Col("u", "email")).(CountExpr)
		require.True(t, ok)
		assert.True(t, distinct.Distinct)
	})

	t.Run("alias", func(t *testing.T) {
		alias, ok := As(Count(nil), "total").(AliasExpr)
		require.True(t, ok)
		assert.Equal(t, "total", alias.Alias)
	})
}

func TestCompileError_Message(t *testing.T) {
	err := compileErrorf(ErrUndefinedBinding, "binding '%s' is not introduced by the query", "x")
	assert.Equal(t, "compile error (undefined_binding): binding 'x' is not introduced by the query", err.Error())
}
