// Package ast is the minimal source syntax tree the Branch Pre-Instrumenter
// walks before compilation (spec.md §4.C). It exists only to give that walk
// something concrete to operate on; a real embedding host instruments its
// own native parse tree the same way.
package ast

// Stmt is any statement node. stmtNode is an unexported marker method, the
// same "sum type via marker method" convention the teacher's assembly
// operand tree uses to keep the node set closed to this package.
type Stmt interface {
	stmtNode()
	Pos() int
}

// Expr is any expression node.
type Expr interface {
	exprNode()
	Pos() int
}
