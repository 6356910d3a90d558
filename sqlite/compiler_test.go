package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwakio/go-mizani/core/query"
	"github.com/mwakio/go-mizani/core/schema"
)

func testRegistry(t *testing.T) (*schema.Registry, *schema.Descriptor) {
	t.Helper()
	users := schema.MustDefine("users", []schema.FieldSpec{
		{Name: "username", Kind: schema.KindString},
		{Name: "email", Kind: schema.KindString},
		{Name: "is_active", Kind: schema.KindBoolean, Default: true},
		{Name: "inserted_at", Kind: schema.KindTimestamp},
	},
		schema.WithUniqueIndex("unique_usernames", "username"),
	)
	posts := schema.MustDefine("posts", []schema.FieldSpec{
		{Name: "title", Kind: schema.KindString},
		{Name: "user_id", Kind: schema.KindInteger},
	})

	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(users))
	require.NoError(t, reg.Register(posts))
	require.NoError(t, reg.Relate(schema.Relationship{
		Name: "posts", Owner: users, Target: posts,
		Kind: schema.HasMany, ForeignKey: "user_id",
	}))
	return reg, users
}

func TestCompileSelect_DefaultProjection(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	compiled, err := c.CompileSelect(query.From("users", "u"))
	require.NoError(t, err)

	assert.Equal(t, `SELECT "u".* FROM "users" AS "u";`, compiled.Text)
	assert.Empty(t, compiled.Params)
}

func TestCompileSelect_WhereAndOrder(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	q := query.From("users", "u").
		Where(query.Eq(query.Col("u", "is_active"), query.Val(true))).
		OrderBy(
			query.Desc(query.Col("u", "inserted_at")),
			query.Asc(query.Col("u", "username")),
		)

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "u".* FROM "users" AS "u" WHERE "u"."is_active" = ? ORDER BY "u"."inserted_at" DESC, "u"."username" ASC;`,
		compiled.Text)
	assert.Equal(t, []any{int64(1)}, compiled.Params)
}

func TestCompileSelect_OrderingComposesAcrossCalls(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	// Entries added first keep higher precedence regardless of how many
	// OrderBy calls contributed them.
	q := query.From("users", "u").
		OrderBy(query.Desc(query.Col("u", "inserted_at"))).
		OrderBy(query.Asc(query.Col("u", "username")))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.Text, `ORDER BY "u"."inserted_at" DESC, "u"."username" ASC`)
}

func TestCompileSelect_MultipleWheresCombineWithAnd(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	q := query.From("users", "u").
		Where(query.Eq(query.Col("u", "is_active"), query.Val(true))).
		Where(query.Like(query.Col("u", "username"), query.Val("doom%")))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)

	assert.Contains(t, compiled.Text, `WHERE "u"."is_active" = ? AND "u"."username" LIKE ?`)
	assert.Equal(t, []any{int64(1), "doom%"}, compiled.Params)
}

func TestCompileSelect_Joins(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	t.Run("explicit left join", func(t *testing.T) {
		q := query.From("users", "u").
			Join(query.JoinLeft, "posts", "p", query.Eq(query.Col("u", "id"), query.Col("p", "user_id")))

		compiled, err := c.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, compiled.Text, `LEFT JOIN "posts" AS "p" ON "u"."id" = "p"."user_id"`)
	})

	t.Run("association join resolves its condition", func(t *testing.T) {
		q := query.From("users", "u").JoinAssoc("posts", "p")

		compiled, err := c.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, compiled.Text, `INNER JOIN "posts" AS "p" ON "u"."id" = "p"."user_id"`)
	})
}

func TestCompileSelect_ProjectionGroupingHaving(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	q := query.From("posts", "p").
		Select(query.Col("p", "user_id"), query.As(query.Count(nil), "total")).
		GroupBy(query.Col("p", "user_id")).
		Having(query.Gt(query.Count(nil), query.Val(1)))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "p"."user_id", COUNT(*) AS "total" FROM "posts" AS "p" GROUP BY "p"."user_id" HAVING COUNT(*) > ?;`,
		compiled.Text)
	assert.Equal(t, []any{1}, compiled.Params)
}

func TestCompileSelect_FragmentParamsFollowClauseOrder(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	q := query.From("users", "u").
		Where(query.Eq(query.Col("u", "is_active"), query.Val(true))).
		Fragment("u.username LIKE ? ESCAPE ?", "doom\\%%", "\\")

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)

	assert.Contains(t, compiled.Text, `WHERE "u"."is_active" = ? AND (u.username LIKE ? ESCAPE ?)`)
	assert.Equal(t, []any{int64(1), "doom\\%%", "\\"}, compiled.Params)
}

func TestCompileSelect_InList(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	t.Run("values become placeholders", func(t *testing.T) {
		q := query.From("users", "u").
			Where(query.In(query.Col("u", "username"), "doomspork", "impostor"))

		compiled, err := c.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, compiled.Text, `"u"."username" IN (?, ?)`)
		assert.Equal(t, []any{"doomspork", "impostor"}, compiled.Params)
	})

	t.Run("empty list matches nothing", func(t *testing.T) {
		q := query.From("users", "u").
			Where(query.In(query.Col("u", "username")))

		compiled, err := c.CompileSelect(q)
		require.NoError(t, err)
		assert.Contains(t, compiled.Text, "WHERE 1=0")
		assert.Empty(t, compiled.Params)
	})
}

func TestCompileSelect_LimitOffset(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	compiled, err := c.CompileSelect(query.From("users", "u").Limit(10).Offset(20))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "u".* FROM "users" AS "u" LIMIT 10 OFFSET 20;`, compiled.Text)
}

func TestCompileSelect_NullChecksAndNot(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	q := query.From("users", "u").
		Where(query.Not(query.IsNull(query.Col("u", "email")))).
		Where(query.IsNotNull(query.Col("u", "inserted_at")))

	compiled, err := c.CompileSelect(q)
	require.NoError(t, err)
	assert.Contains(t, compiled.Text, `NOT ("u"."email" IS NULL) AND "u"."inserted_at" IS NOT NULL`)
}

func TestCompileSelect_RejectsInvalidQuery(t *testing.T) {
	reg, _ := testRegistry(t)
	c := NewCompiler(reg)

	_, err := c.CompileSelect(query.From("users", "u").Where(query.Eq(query.Col("x", "username"), query.Val("a"))))
	var cerr *query.CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, query.ErrUndefinedBinding, cerr.Code)
}

func TestCompileInsert(t *testing.T) {
	_, users := testRegistry(t)
	c := NewCompiler(schema.NewRegistry())

	t.Run("columns follow descriptor order", func(t *testing.T) {
		when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		compiled, err := c.CompileInsert(users, map[string]any{
			"inserted_at": when,
			"username":    "doomspork",
			"is_active":   true,
		})
		require.NoError(t, err)

		assert.Equal(t,
			`INSERT INTO "users" ("username", "is_active", "inserted_at") VALUES (?, ?, ?) RETURNING *;`,
			compiled.Text)
		assert.Equal(t, []any{"doomspork", int64(1), "2026-03-01T10:00:00Z"}, compiled.Params)
	})

	t.Run("empty record", func(t *testing.T) {
		_, err := c.CompileInsert(users, map[string]any{})
		assert.Error(t, err)
	})

	t.Run("undeclared field", func(t *testing.T) {
		_, err := c.CompileInsert(users, map[string]any{"nickname": "x"})
		assert.Error(t, err)
	})
}

func TestCompileUpdate(t *testing.T) {
	_, users := testRegistry(t)
	c := NewCompiler(schema.NewRegistry())

	compiled, err := c.CompileUpdate(users, map[string]any{"email": "new@example.com"}, int64(7))
	require.NoError(t, err)

	assert.Equal(t, `UPDATE "users" SET "email" = ? WHERE "id" = ? RETURNING *;`, compiled.Text)
	assert.Equal(t, []any{"new@example.com", int64(7)}, compiled.Params)

	_, err = c.CompileUpdate(users, map[string]any{}, int64(7))
	assert.Error(t, err)
}

func TestCompileDelete(t *testing.T) {
	_, users := testRegistry(t)
	c := NewCompiler(schema.NewRegistry())

	compiled, err := c.CompileDelete(users, int64(7))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = ?;`, compiled.Text)
	assert.Equal(t, []any{int64(7)}, compiled.Params)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdentifier("users"))
	assert.Equal(t, `"odd""name"`, quoteIdentifier(`odd"name`))
}
