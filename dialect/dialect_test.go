package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      string
		bind      BindVar
		returning bool
	}{
		{"Postgres", Postgres, Postgres, BindDollar, true},
		{"Pgx", "pgx", Postgres, BindDollar, true},
		{"MySQL", MySQL, MySQL, BindQuestion, false},
		{"SQLite", SQLite, SQLite, BindQuestion, false},
		{"SQLite3", "sqlite3", SQLite, BindQuestion, false},
		{"Generic", "", "generic", BindQuestion, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Get(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
			assert.Equal(t, tt.bind, d.BindVar())
			assert.Equal(t, tt.returning, d.ReturnsGeneratedKeys())
		})
	}

	_, err := Get("oracle")
	require.Error(t, err)
	assert.Panics(t, func() { MustGet("oracle") })
}

func TestIdentifierProcessing(t *testing.T) {
	tests := []struct {
		name string
		ip   IdentifierProcessing
		in   string
		want string
	}{
		{"None", IdentifierProcessing{}, "order", "order"},
		{"ANSI", IdentifierProcessing{Quoting: QuotingANSI}, "order", `"order"`},
		{"Backtick", IdentifierProcessing{Quoting: QuotingBacktick}, "order", "`order`"},
		{"Upper", IdentifierProcessing{Quoting: QuotingANSI, Casing: UpperCase}, "line_item", `"LINE_ITEM"`},
		{"Lower", IdentifierProcessing{Casing: LowerCase}, "LineItem", "lineitem"},
		{"EscapeSuffix", IdentifierProcessing{Quoting: QuotingANSI}, `we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ip.Process(tt.in))
		})
	}
}

func TestEmptyInsert(t *testing.T) {
	assert.Equal(t, "INSERT INTO t DEFAULT VALUES", MustGet(Postgres).EmptyInsert("t"))
	assert.Equal(t, "INSERT INTO t DEFAULT VALUES", MustGet(SQLite).EmptyInsert("t"))
	assert.Equal(t, "INSERT INTO t () VALUES ()", MustGet(MySQL).EmptyInsert("t"))
	assert.Equal(t, "INSERT INTO t () VALUES ()", Generic().EmptyInsert("t"))
}

func TestLimitOffset(t *testing.T) {
	tests := []struct {
		dialect       string
		limit, offset int64
		want          string
	}{
		{Postgres, 10, 0, "LIMIT 10"},
		{Postgres, 10, 20, "LIMIT 10 OFFSET 20"},
		{Postgres, -1, 20, "OFFSET 20"},
		{MySQL, -1, 5, "LIMIT 18446744073709551615 OFFSET 5"},
		{SQLite, -1, 5, "LIMIT -1 OFFSET 5"},
		{SQLite, -1, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, MustGet(tt.dialect).LimitOffset(tt.limit, tt.offset))
		})
	}
}

func TestWithIdentifierProcessing(t *testing.T) {
	d := MustGet(Postgres, WithIdentifierProcessing(IdentifierProcessing{Casing: UpperCase}))
	assert.Equal(t, "ORDER", d.IdentifierProcessing().Process("order"))
}
