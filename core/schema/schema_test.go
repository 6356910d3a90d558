package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldKind_Valid(t *testing.T) {
	tests := []struct {
		kind     FieldKind
		expected bool
	}{
		{KindString, true},
		{KindInteger, true},
		{KindFloat, true},
		{KindBoolean, true},
		{KindTimestamp, true},
		{"blob", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.Valid())
		})
	}
}

func TestDefine_AutoPrimaryKey(t *testing.T) {
	d, err := Define("users", []FieldSpec{
		{Name: "username", Kind: KindString},
	})
	require.NoError(t, err)

	assert.Equal(t, "users", d.Relation())
	assert.Equal(t, "id", d.PrimaryKey())
	assert.Equal(t, []string{"id", "username"}, d.FieldNames())

	id, ok := d.Field("id")
	require.True(t, ok)
	assert.Equal(t, KindInteger, id.Kind)
	assert.True(t, id.PrimaryKey)
}

func TestDefine_ExplicitPrimaryKey(t *testing.T) {
	d, err := Define("sessions", []FieldSpec{
		{Name: "token", Kind: KindString, PrimaryKey: true},
		{Name: "expires_at", Kind: KindTimestamp},
	})
	require.NoError(t, err)

	assert.Equal(t, "token", d.PrimaryKey())
	assert.False(t, d.HasField("id"))
}

func TestDefine_WithoutAutoPrimaryKey(t *testing.T) {
	d, err := Define("audit_entries", []FieldSpec{
		{Name: "message", Kind: KindString},
	}, WithoutAutoPrimaryKey())
	require.NoError(t, err)

	assert.Equal(t, "", d.PrimaryKey())
	assert.Equal(t, []string{"message"}, d.FieldNames())
}

func TestDefine_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		relation string
		fields   []FieldSpec
		opts     []DescriptorOption
	}{
		{
			name:     "empty relation name",
			relation: "",
			fields:   []FieldSpec{{Name: "a", Kind: KindString}},
		},
		{
			name:     "unnamed field",
			relation: "users",
			fields:   []FieldSpec{{Name: "", Kind: KindString}},
		},
		{
			name:     "unknown kind",
			relation: "users",
			fields:   []FieldSpec{{Name: "payload", Kind: "blob"}},
		},
		{
			name:     "duplicate field",
			relation: "users",
			fields: []FieldSpec{
				{Name: "email", Kind: KindString},
				{Name: "email", Kind: KindString},
			},
		},
		{
			name:     "two primary keys",
			relation: "users",
			fields: []FieldSpec{
				{Name: "a", Kind: KindInteger, PrimaryKey: true},
				{Name: "b", Kind: KindInteger, PrimaryKey: true},
			},
		},
		{
			name:     "virtual primary key",
			relation: "users",
			fields:   []FieldSpec{{Name: "a", Kind: KindInteger, PrimaryKey: true, Virtual: true}},
		},
		{
			name:     "unnamed unique index",
			relation: "users",
			fields:   []FieldSpec{{Name: "email", Kind: KindString}},
			opts:     []DescriptorOption{WithUniqueIndex("", "email")},
		},
		{
			name:     "unique index over unknown field",
			relation: "users",
			fields:   []FieldSpec{{Name: "email", Kind: KindString}},
			opts:     []DescriptorOption{WithUniqueIndex("unique_handles", "handle")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Define(tt.relation, tt.fields, tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestDescriptor_UniqueIndexFor(t *testing.T) {
	d := MustDefine("users", []FieldSpec{
		{Name: "username", Kind: KindString},
		{Name: "email", Kind: KindString},
		{Name: "bio", Kind: KindString},
	},
		WithUniqueIndex("unique_usernames", "username"),
		WithUniqueIndex("unique_emails", "email"),
	)

	name, ok := d.UniqueIndexFor("username")
	require.True(t, ok)
	assert.Equal(t, "unique_usernames", name)

	name, ok = d.UniqueIndexFor("email")
	require.True(t, ok)
	assert.Equal(t, "unique_emails", name)

	_, ok = d.UniqueIndexFor("bio")
	assert.False(t, ok)

	assert.Len(t, d.UniqueIndexes(), 2)
}

func TestMustDefine_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustDefine("", nil)
	})
}
