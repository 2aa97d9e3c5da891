package convert_test

import (
	"database/sql/driver"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggstore/convert"
	"github.com/syssam/aggstore/internal/fixture"
)

type cents int64

type point struct {
	X, Y int
}

func TestRead(t *testing.T) {
	t.Parallel()
	id := uuid.MustParse("7b0b5f9c-2c8e-4f6e-9a34-1c1d1b9d2f10")
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := 2.5

	tests := []struct {
		name   string
		raw    any
		target reflect.Type
		want   any
	}{
		{"nil to string", nil, reflect.TypeFor[string](), ""},
		{"nil to pointer", nil, reflect.TypeFor[*int](), (*int)(nil)},
		{"int64 to int", int64(7), reflect.TypeFor[int](), 7},
		{"int64 to named int", int64(7), reflect.TypeFor[cents](), cents(7)},
		{"int64 to float", int64(2), reflect.TypeFor[float64](), 2.0},
		{"bytes to int", []byte("42"), reflect.TypeFor[int64](), int64(42)},
		{"bytes to string", []byte("ada"), reflect.TypeFor[string](), "ada"},
		{"string to bytes", "ada", reflect.TypeFor[[]byte](), []byte("ada")},
		{"int64 to bool", int64(1), reflect.TypeFor[bool](), true},
		{"string to bool", "false", reflect.TypeFor[bool](), false},
		{"float to pointer", 2.5, reflect.TypeFor[*float64](), &f},
		{"time", ts, reflect.TypeFor[time.Time](), ts},
		{"string to time", "2024-01-02 03:04:05", reflect.TypeFor[time.Time](), ts},
		{"scanner", id.String(), reflect.TypeFor[uuid.UUID](), id},
		{"scanner pointer", id.String(), reflect.TypeFor[*uuid.UUID](), &id},
		{"interface", int64(3), reflect.TypeFor[any](), int64(3)},
		{"int64 to status", int64(2), reflect.TypeFor[fixture.Status](), fixture.Shipped},
	}
	c := convert.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.Read(tt.raw, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unconvertible", func(t *testing.T) {
		t.Parallel()
		_, err := c.Read("abc", reflect.TypeFor[int]())
		require.Error(t, err)
		var ce *convert.Error
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "int", ce.Target)
		assert.Error(t, errors.Unwrap(err))
	})
}

func TestWrite(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	n := 3
	ts := time.Now()

	tests := []struct {
		name string
		v    any
		want any
	}{
		{"nil", nil, nil},
		{"int", 3, int64(3)},
		{"named int", cents(5), int64(5)},
		{"uint", uint16(5), int64(5)},
		{"float32", float32(0.5), 0.5},
		{"string", "x", "x"},
		{"bytes", []byte("x"), []byte("x")},
		{"pointer", &n, int64(3)},
		{"nil pointer", (*int)(nil), nil},
		{"valuer", id, id},
		{"time", ts, ts},
		{"status", fixture.Cancelled, int64(3)},
	}
	c := convert.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.Write(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()
		_, err := c.Write(point{})
		assert.Error(t, err)
	})
}

func TestRegisterFunc(t *testing.T) {
	t.Parallel()
	c := convert.New()
	convert.RegisterFunc(c, func(v cents) (string, error) {
		return strconv.FormatInt(int64(v), 10) + "c", nil
	})
	convert.RegisterFunc(c, func(s string) (cents, error) {
		n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
		return cents(n), err
	})

	w, err := c.Write(cents(12))
	require.NoError(t, err)
	assert.Equal(t, "12c", w)

	r, err := c.Read("12c", reflect.TypeFor[cents]())
	require.NoError(t, err)
	assert.Equal(t, cents(12), r)

	// Other source types fall back to the defaults.
	r, err = c.Read(int64(4), reflect.TypeFor[cents]())
	require.NoError(t, err)
	assert.Equal(t, cents(4), r)
}

func TestRegisterEnum(t *testing.T) {
	t.Parallel()
	c := convert.New()
	convert.RegisterEnum(c, fixture.Placed, fixture.Shipped, fixture.Cancelled)

	w, err := c.Write(fixture.Shipped)
	require.NoError(t, err)
	assert.Equal(t, "SHIPPED", w)

	r, err := c.Read([]byte("CANCELLED"), reflect.TypeFor[fixture.Status]())
	require.NoError(t, err)
	assert.Equal(t, fixture.Cancelled, r)

	_, err = c.Read("LOST", reflect.TypeFor[fixture.Status]())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown name "LOST"`)
}

func TestRegisterMsgpack(t *testing.T) {
	t.Parallel()
	c := convert.New()
	convert.RegisterMsgpack[point](c)

	w, err := c.Write(point{X: 1, Y: 2})
	require.NoError(t, err)
	b, ok := w.([]byte)
	require.True(t, ok)

	r, err := c.Read(b, reflect.TypeFor[point]())
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, r)
}

func TestPostgresArrays(t *testing.T) {
	t.Parallel()
	c := convert.New(convert.PostgresArrays())

	w, err := c.Write([]int64{1, 2})
	require.NoError(t, err)
	valuer, ok := w.(driver.Valuer)
	require.True(t, ok)
	v, err := valuer.Value()
	require.NoError(t, err)
	assert.Equal(t, "{1,2}", v)

	r, err := c.Read([]byte("{a,b}"), reflect.TypeFor[[]string]())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r)

	_, err = convert.New().Write([]int64{1})
	assert.Error(t, err, "slices need PostgresArrays")
}

// TestStoreType tests the column types derived from property types.
func TestStoreType(t *testing.T) {
	t.Parallel()
	c := convert.New()
	convert.RegisterEnum(c, fixture.Placed, fixture.Shipped)
	convert.RegisterMsgpack[point](c)

	tests := []struct {
		name string
		in   reflect.Type
		want reflect.Type
	}{
		{"int", reflect.TypeFor[int](), reflect.TypeFor[int64]()},
		{"named uint", reflect.TypeFor[uint16](), reflect.TypeFor[int64]()},
		{"pointer", reflect.TypeFor[*float32](), reflect.TypeFor[float64]()},
		{"bool", reflect.TypeFor[bool](), reflect.TypeFor[bool]()},
		{"string", reflect.TypeFor[string](), reflect.TypeFor[string]()},
		{"bytes", reflect.TypeFor[[]byte](), reflect.TypeFor[[]byte]()},
		{"time", reflect.TypeFor[time.Time](), reflect.TypeFor[time.Time]()},
		{"valuer", reflect.TypeFor[uuid.UUID](), reflect.TypeFor[string]()},
		{"enum", reflect.TypeFor[fixture.Status](), reflect.TypeFor[string]()},
		{"custom", reflect.TypeFor[point](), reflect.TypeFor[[]byte]()},
		{"slice", reflect.TypeFor[[]string](), nil},
		{"struct", reflect.TypeFor[struct{ A int }](), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.StoreType(tt.in))
		})
	}
	arrays := convert.New(convert.PostgresArrays())
	assert.Equal(t, reflect.TypeFor[[]string](), arrays.StoreType(reflect.TypeFor[[]string]()))
}
