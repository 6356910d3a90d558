package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptors(t *testing.T) (*Descriptor, *Descriptor) {
	t.Helper()
	users := MustDefine("users", []FieldSpec{
		{Name: "username", Kind: KindString},
	})
	posts := MustDefine("posts", []FieldSpec{
		{Name: "title", Kind: KindString},
		{Name: "user_id", Kind: KindInteger},
	})
	return users, posts
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	users, _ := testDescriptors(t)
	reg := NewRegistry()

	require.NoError(t, reg.Register(users))

	got, ok := reg.Lookup("users")
	require.True(t, ok)
	assert.Same(t, users, got)

	_, ok = reg.Lookup("comments")
	assert.False(t, ok)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	users, _ := testDescriptors(t)
	reg := NewRegistry()

	require.NoError(t, reg.Register(users))
	assert.Error(t, reg.Register(users))
}

func TestRegistry_RegisterNil(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Register(nil))
}

func TestRegistry_Relate(t *testing.T) {
	users, posts := testDescriptors(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(users))
	require.NoError(t, reg.Register(posts))

	err := reg.Relate(Relationship{
		Name:       "posts",
		Owner:      users,
		Target:     posts,
		Kind:       HasMany,
		ForeignKey: "user_id",
	})
	require.NoError(t, err)

	rel, ok := reg.Association("users", "posts")
	require.True(t, ok)
	assert.Equal(t, HasMany, rel.Kind)
	assert.Equal(t, "user_id", rel.ForeignKey)
	assert.Same(t, posts, rel.Target)

	_, ok = reg.Association("users", "comments")
	assert.False(t, ok)
}

func TestRegistry_RelateBelongsTo(t *testing.T) {
	users, posts := testDescriptors(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(users))
	require.NoError(t, reg.Register(posts))

	// BelongsTo carries the foreign key on the owner side.
	err := reg.Relate(Relationship{
		Name:       "author",
		Owner:      posts,
		Target:     users,
		Kind:       BelongsTo,
		ForeignKey: "user_id",
	})
	require.NoError(t, err)

	rel, ok := reg.Association("posts", "author")
	require.True(t, ok)
	assert.Equal(t, BelongsTo, rel.Kind)
}

func TestRegistry_RelateRejections(t *testing.T) {
	users, posts := testDescriptors(t)

	t.Run("foreign key not on carrier", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(users))
		require.NoError(t, reg.Register(posts))
		err := reg.Relate(Relationship{
			Name:       "posts",
			Owner:      users,
			Target:     posts,
			Kind:       HasMany,
			ForeignKey: "author_id",
		})
		assert.Error(t, err)
	})

	t.Run("unregistered target", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(users))
		err := reg.Relate(Relationship{
			Name:       "posts",
			Owner:      users,
			Target:     posts,
			Kind:       HasMany,
			ForeignKey: "user_id",
		})
		assert.Error(t, err)
	})

	t.Run("missing name", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(users))
		require.NoError(t, reg.Register(posts))
		err := reg.Relate(Relationship{
			Owner:      users,
			Target:     posts,
			Kind:       HasMany,
			ForeignKey: "user_id",
		})
		assert.Error(t, err)
	})

	t.Run("duplicate association name", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(users))
		require.NoError(t, reg.Register(posts))
		rel := Relationship{
			Name:       "posts",
			Owner:      users,
			Target:     posts,
			Kind:       HasMany,
			ForeignKey: "user_id",
		}
		require.NoError(t, reg.Relate(rel))
		assert.Error(t, reg.Relate(rel))
	})
}

func TestToStruct(t *testing.T) {
	type user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Active   bool   `json:"is_active"`
	}

	entity := Entity{"id": int64(7), "username": "doomspork", "is_active": true}
	got, err := ToStruct[user](entity)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 7, Username: "doomspork", Active: true}, got)

	_, err = ToStruct[user](nil)
	assert.Error(t, err)
}

func TestFromStruct(t *testing.T) {
	type signup struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	entity, err := FromStruct(signup{Username: "doomspork", Email: "sean@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "doomspork", entity["username"])
	assert.Equal(t, "sean@example.com", entity["email"])
}
