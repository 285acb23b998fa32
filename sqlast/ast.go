// Package sqlast wraps the tidb SQL parser behind a small façade, exposing
// just enough of the AST for the rule chassis: statement-kind
// identification, visitor dispatch, and sub-expression formatting.
package sqlast

import (
	"bytes"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
)

// Kind is the top-level statement kind, used for visitor dispatch and for
// the statement context's "command kind" field.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelect
	KindUpdate
	KindDelete
	KindInsert
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindInsert:
		return "INSERT"
	case KindOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// Handle is the opaque AST value produced by the parser façade. It is
// immutable once constructed and safe to share across every rule checker
// dispatched against the same statement context.
type Handle struct {
	// Statements holds every top-level statement found in the source text,
	// in order. A single valid statement (with at most a trailing `;`)
	// yields exactly one entry; more than one is what the multi-statement
	// injection rule looks for.
	Statements []ast.StmtNode
	// Primary is Statements[0], or nil for an empty handle.
	Primary ast.StmtNode
	// Kind classifies Primary; KindUnknown for an empty handle.
	Kind Kind
	// Degraded is set when the handle was produced by lenient parsing
	// after a parse failure (an empty handle standing in for a real one).
	Degraded bool
}

func classify(stmt ast.StmtNode) Kind {
	switch stmt.(type) {
	case *ast.SelectStmt, *ast.SetOprStmt:
		return KindSelect
	case *ast.UpdateStmt:
		return KindUpdate
	case *ast.DeleteStmt:
		return KindDelete
	case *ast.InsertStmt:
		return KindInsert
	case nil:
		return KindUnknown
	default:
		return KindOther
	}
}

func newHandle(stmts []ast.StmtNode) *Handle {
	h := &Handle{Statements: stmts}
	if len(stmts) > 0 {
		h.Primary = stmts[0]
		h.Kind = classify(stmts[0])
	}
	return h
}

// emptyHandle is returned for whitespace-only SQL and for degraded
// (lenient) parse failures.
func emptyHandle(degraded bool) *Handle {
	return &Handle{Kind: KindUnknown, Degraded: degraded}
}

// Visitor adapts a plain callback to ast.Visitor. fn returns (skip, ok):
// skip true means don't descend into this node's children; ok false means
// abort the whole walk immediately (used to propagate an error out of the
// callback without a sentinel value).
type Visitor struct {
	fn   func(node ast.Node) (skip, ok bool)
	done bool
}

func NewVisitor(fn func(node ast.Node) (skip, ok bool)) *Visitor {
	return &Visitor{fn: fn}
}

func (x *Visitor) Enter(node ast.Node) (ast.Node, bool) {
	if x.done {
		return node, true
	}
	skip, ok := x.fn(node)
	if !ok {
		x.done = true
		return node, true
	}
	return node, skip
}

func (x *Visitor) Leave(node ast.Node) (ast.Node, bool) {
	return node, !x.done
}

// Walk visits node and its descendants with fn, using the same
// Enter/Leave short-circuiting as Visitor.
func Walk(node ast.Node, fn func(node ast.Node) (skip, ok bool)) {
	if node == nil {
		return
	}
	node.Accept(NewVisitor(fn))
}

// Restore renders node back to SQL text using the default restore flags.
// Used by the set-operation rule to recover the operator keyword.
func Restore(node ast.Node) (string, error) {
	if node == nil {
		return "", nil
	}
	var b bytes.Buffer
	if err := node.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &b)); err != nil {
		return "", err
	}
	return b.String(), nil
}
