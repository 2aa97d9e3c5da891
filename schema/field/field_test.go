package field_test

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggstore/schema"
	"github.com/syssam/aggstore/schema/field"
)

type account struct {
	ID      uuid.UUID
	Key     string
	Version int32
	Name    string
	Balance *float64
}

func TestValue(t *testing.T) {
	p := field.Value("name", func(a *account) *string { return &a.Name }, field.Column("display_name"))
	assert.Equal(t, "name", p.Name)
	assert.Equal(t, schema.KindScalar, p.Kind)
	assert.Equal(t, reflect.TypeFor[string](), p.Type)
	assert.Equal(t, "display_name", p.Column)
	assert.False(t, p.ID)

	a := &account{}
	require.NoError(t, p.Set(a, "ada"))
	assert.Equal(t, "ada", a.Name)
	assert.Equal(t, "ada", p.Get(a))

	require.NoError(t, p.Set(a, nil))
	assert.Empty(t, a.Name)

	err := p.Set(a, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "name"`)
}

func TestValuePointer(t *testing.T) {
	p := field.Value("balance", func(a *account) **float64 { return &a.Balance })
	assert.Equal(t, reflect.TypeFor[*float64](), p.Type)

	a := &account{}
	assert.True(t, schema.IsZero(p.Get(a)))
	v := 1.5
	require.NoError(t, p.Set(a, &v))
	assert.Equal(t, 1.5, *a.Balance)
}

func TestID(t *testing.T) {
	p := field.ID("id", func(a *account) *uuid.UUID { return &a.ID }, field.UUID())
	assert.True(t, p.ID)
	require.NotNil(t, p.Generator)
	id, ok := p.Generator().(uuid.UUID)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NotEqual(t, id, p.Generator())
}

func TestULID(t *testing.T) {
	p := field.ID("key", func(a *account) *string { return &a.Key }, field.ULID())
	s, ok := p.Generator().(string)
	require.True(t, ok)
	_, err := ulid.Parse(s)
	assert.NoError(t, err)
}

func TestGeneratedBy(t *testing.T) {
	next := int64(0)
	p := field.Value("name", func(a *account) *string { return &a.Name }, field.GeneratedBy(func() int64 {
		next++
		return next
	}))
	assert.Equal(t, int64(1), p.Generator())
	assert.Equal(t, int64(2), p.Generator())
}

func TestVersion(t *testing.T) {
	p := field.Version("version", func(a *account) *int32 { return &a.Version })
	assert.True(t, p.Version)
	assert.False(t, p.ID)
	a := &account{Version: 3}
	assert.Equal(t, int32(3), p.Get(a))
}
