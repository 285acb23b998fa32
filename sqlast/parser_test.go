package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade_Parse_Select(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	h, err := f.Parse("SELECT id FROM users WHERE id = 1")
	require.NoError(t, err)
	require.NotNil(t, h.Primary)
	assert.Equal(t, KindSelect, h.Kind)
	assert.Len(t, h.Statements, 1)
	assert.False(t, h.Degraded)
}

func TestFacade_Parse_Kinds(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	cases := map[string]Kind{
		"SELECT 1":                        KindSelect,
		"SELECT 1 UNION SELECT 2":         KindSelect,
		"UPDATE users SET name = 'a'":     KindUpdate,
		"DELETE FROM users WHERE id = 1":  KindDelete,
		"INSERT INTO users (id) VALUES (1)": KindInsert,
		"SHOW TABLES":                     KindOther,
	}
	for sql, want := range cases {
		h, err := f.Parse(sql)
		require.NoErrorf(t, err, "sql: %s", sql)
		assert.Equalf(t, want, h.Kind, "sql: %s", sql)
	}
}

func TestFacade_Parse_Empty(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	h, err := f.Parse("   ")
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, h.Kind)
	assert.Nil(t, h.Primary)
	assert.False(t, h.Degraded)
}

func TestFacade_Parse_MultiStatement(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	h, err := f.Parse("SELECT 1; SELECT 2")
	require.NoError(t, err)
	assert.Len(t, h.Statements, 2)
}

func TestFacade_Parse_SyntaxError(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	_, err := f.Parse("SELEKT * FROM")
	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestFacade_ParseLenient_NeverErrors(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	h := f.ParseLenient("not valid sql at all (((")
	require.NotNil(t, h)
	assert.True(t, h.Degraded)
	assert.Equal(t, KindUnknown, h.Kind)
	assert.EqualValues(t, 1, f.ParseFailures())
}

func TestFacade_Parse_CachesResult(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()

	const sql = "SELECT 1"
	h1, err := f.Parse(sql)
	require.NoError(t, err)
	h2, err := f.Parse(sql)
	require.NoError(t, err)
	assert.Same(t, h1, h2, "expected the second parse to hit the cache and return the identical handle")
}

func TestFacade_DefaultCacheSize(t *testing.T) {
	f := NewFacade(-1)
	defer f.Close()
	assert.NotNil(t, f.cache)
}
