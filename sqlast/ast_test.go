package sqlast

import (
	"testing"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindSelect:  "SELECT",
		KindUpdate:  "UPDATE",
		KindDelete:  "DELETE",
		KindInsert:  "INSERT",
		KindOther:   "OTHER",
		KindUnknown: "UNKNOWN",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}

func TestWalk_VisitsEveryNode(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()
	h, err := f.Parse("SELECT id FROM users WHERE id = 1 AND name = 'a'")
	require.NoError(t, err)

	var names []string
	Walk(h.Primary, func(n ast.Node) (skip, ok bool) {
		names = append(names, nodeTypeName(n))
		return false, true
	})
	assert.Contains(t, names, "*ast.SelectStmt")
	assert.Contains(t, names, "*ast.BinaryOperationExpr")
}

func TestWalk_AbortStopsTraversal(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()
	h, err := f.Parse("SELECT id FROM users WHERE id = 1 AND name = 'a'")
	require.NoError(t, err)

	count := 0
	Walk(h.Primary, func(n ast.Node) (skip, ok bool) {
		count++
		return false, count < 2 // abort after the second visited node
	})
	assert.Equal(t, 2, count)
}

func TestWalk_Nil(t *testing.T) {
	// Must not panic.
	Walk(nil, func(ast.Node) (bool, bool) { return false, true })
}

func TestRestore_RoundTripsExpression(t *testing.T) {
	f := NewFacade(0)
	defer f.Close()
	h, err := f.Parse("SELECT id FROM users WHERE id = 1")
	require.NoError(t, err)

	sel := h.Primary.(*ast.SelectStmt)
	text, err := Restore(sel.Where)
	require.NoError(t, err)
	assert.Contains(t, text, "id")
	assert.Contains(t, text, "1")
}

func TestRestore_Nil(t *testing.T) {
	text, err := Restore(nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func nodeTypeName(n ast.Node) string {
	switch n.(type) {
	case *ast.SelectStmt:
		return "*ast.SelectStmt"
	case *ast.BinaryOperationExpr:
		return "*ast.BinaryOperationExpr"
	default:
		return "other"
	}
}
