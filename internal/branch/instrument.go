// Package branch implements the Branch Pre-Instrumenter: it walks a parsed
// source syntax tree before compilation and inserts synthetic sentinel
// assignments at every control edge, so the line-level probe mechanism of
// internal/editor sees branches as ordinary line events without a second
// probe kind (spec.md §4.C).
package branch

import (
	"github.com/plasma-umass/slipcover/internal/branch/ast"
	"github.com/plasma-umass/slipcover/internal/bytecode"
)

// SentinelName is the reserved variable every inserted assignment targets.
// Real source may never bind this name; a real front end would reject a
// program that tries.
const SentinelName = "__branch__"

// Edge pairs a tracked branch key with the line number a probe must
// actually attach to in order to observe it. That line is almost never the
// edge's own Key.Line (the branching statement's source line): two edges
// out of the same statement — an if's then- and else-arms, a loop's
// body-entry and exit — share that line, so keying a probe by Key.Line
// alone makes the second registration silently overwrite the first
// (driver.InstrumentCode's byLine map). ProbeLine instead names the
// distinct synthetic line the corresponding SentinelAssign/SentinelExpr
// occupies once compiled, which prependSentinel and condEdges always
// allocate fresh.
type Edge struct {
	ProbeLine int
	Key       bytecode.Key
}

// ctx threads the pieces of state instrumentation needs across recursive
// calls: the line allocator, the accumulated set of branch edges, and the
// exit line of the nearest enclosing Loop (for Break edges).
type ctx struct {
	alloc     *LineAllocator
	edges     []Edge
	loopExits []int
}

// Instrument returns stmts rewritten with a sentinel assignment at every
// branch edge, and the Edge for each one the editor must later reserve a
// probe site for. maxSourceLine is the highest line number appearing
// anywhere in stmts, used to seed synthetic line allocation.
func Instrument(stmts []ast.Stmt, maxSourceLine int) ([]ast.Stmt, []Edge) {
	c := &ctx{alloc: NewLineAllocator(maxSourceLine)}
	out := c.block(stmts)
	return out, c.edges
}

func (c *ctx) block(stmts []ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if loop, ok := s.(*ast.Loop); ok {
			out = append(out, c.loop(loop)...)
			continue
		}
		out = append(out, c.stmt(s))
	}
	return out
}

func (c *ctx) stmt(s ast.Stmt) ast.Stmt {
	switch n := s.(type) {
	case *ast.ExprStmt:
		n.Value = c.expr(n.Value)
		return n

	case *ast.Assign:
		n.Value = c.expr(n.Value)
		return n

	case *ast.Return:
		if n.Value != nil {
			n.Value = c.expr(n.Value)
		}
		return n

	case *ast.Break:
		// The break's own line already carries a real jump instruction once
		// compiled, so unlike the edges below it needs no synthetic sentinel
		// of its own — the probe simply attaches to n.Line.
		if len(c.loopExits) > 0 {
			exit := c.loopExits[len(c.loopExits)-1]
			c.edges = append(c.edges, Edge{ProbeLine: n.Line, Key: bytecode.BranchKey(n.Line, exit)})
		}
		return n

	case *ast.If:
		n.Cond = c.expr(n.Cond)
		n.Then = c.prependSentinel(c.block(n.Then), n.Line)
		n.Else = c.prependSentinel(c.block(n.Else), n.Line)
		return n

	case *ast.Match:
		n.Subject = c.expr(n.Subject)
		for i := range n.Arms {
			n.Arms[i].Body = c.prependSentinel(c.block(n.Arms[i].Body), n.Line)
		}
		return n

	case *ast.Try:
		n.Body = c.block(n.Body)
		for i := range n.Handlers {
			n.Handlers[i].Body = c.prependSentinel(c.block(n.Handlers[i].Body), n.Line)
		}
		return n

	default:
		return s
	}
}

// loop instruments a single Loop statement and returns it together with a
// trailing SentinelAssign recording its own normal-exit edge (the condition
// evaluating false, as opposed to a Break). That edge shares its
// destination line (exit) with every Break inside the loop, but — like the
// body-entry edge below — needs its own distinct ProbeLine so it doesn't
// collapse with them: the body-entry edge's Key.Line is also n.Line, so a
// probe keyed by Key.Line alone could never tell "entered the body" from
// "exited normally" apart. The trailing sentinel is placed in the enclosing
// block, not the loop body, so it only runs once the loop is actually left
// by falling out of the condition check; a host compiling this tree must
// place a Break's jump past it, straight to whatever follows.
func (c *ctx) loop(n *ast.Loop) []ast.Stmt {
	n.Cond = c.expr(n.Cond)
	exit := c.alloc.Allocate(n.Line)
	exitProbeLine := c.alloc.Allocate(n.Line)
	c.edges = append(c.edges, Edge{ProbeLine: exitProbeLine, Key: bytecode.BranchKey(n.Line, exit)})

	c.loopExits = append(c.loopExits, exit)
	body := c.block(n.Body)
	c.loopExits = c.loopExits[:len(c.loopExits)-1]

	n.Body = c.prependSentinel(body, n.Line)

	exitSentinel := &ast.SentinelAssign{Name: SentinelName, Src: n.Line, Dst: exit, Line: exitProbeLine}
	return []ast.Stmt{n, exitSentinel}
}

// prependSentinel inserts a SentinelAssign at the head of block recording
// the edge from src to block's entry line, allocating a synthetic entry
// line if block is empty (an untaken-by-default arm still needs a distinct
// destination identity).
func (c *ctx) prependSentinel(block []ast.Stmt, src int) []ast.Stmt {
	dst := c.entryLine(block, src)
	sentinelLine := c.alloc.Allocate(src)
	c.edges = append(c.edges, Edge{ProbeLine: sentinelLine, Key: bytecode.BranchKey(src, dst)})

	sentinel := &ast.SentinelAssign{Name: SentinelName, Src: src, Dst: dst, Line: sentinelLine}
	return append([]ast.Stmt{sentinel}, block...)
}

func (c *ctx) entryLine(block []ast.Stmt, src int) int {
	if len(block) > 0 {
		return block[0].Pos()
	}
	return c.alloc.Allocate(src)
}

// expr recurses into an expression, desugaring short-circuit BinaryExpr
// nodes into the CondExpr case they are semantically equivalent to
// (`a && b` only evaluates b when a is truthy, exactly a CondExpr with
// Then=b, Else=a; `a || b` is the mirror) so both are instrumented by one
// code path.
func (c *ctx) expr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		n.Left = c.expr(n.Left)
		switch n.Op {
		case "&&":
			return c.condEdges(n.Line, n.Left, c.expr(n.Right), n.Left)
		case "||":
			return c.condEdges(n.Line, n.Left, n.Left, c.expr(n.Right))
		default:
			n.Right = c.expr(n.Right)
			return n
		}

	case *ast.CondExpr:
		n.Cond = c.expr(n.Cond)
		return c.condEdges(n.Line, n.Cond, c.expr(n.Then), c.expr(n.Else))

	default:
		return e
	}
}

// condEdges wraps then and els in SentinelExpr, recording one branch key
// per arm, and returns a CondExpr assembling the three pieces. Both CondExpr
// and short-circuit instrumentation bottom out here; If statements use
// prependSentinel instead.
func (c *ctx) condEdges(line int, cond, then, els ast.Expr) ast.Expr {
	thenDst := c.alloc.Allocate(line)
	elseDst := c.alloc.Allocate(line)
	// Each SentinelExpr's own Line is thenDst/elseDst, so the arm's synthetic
	// destination line doubles as its ProbeLine — there's no separate
	// sentinel statement the way prependSentinel has one.
	c.edges = append(c.edges, Edge{ProbeLine: thenDst, Key: bytecode.BranchKey(line, thenDst)})
	c.edges = append(c.edges, Edge{ProbeLine: elseDst, Key: bytecode.BranchKey(line, elseDst)})

	return &ast.CondExpr{
		Cond: cond,
		Then: &ast.SentinelExpr{Value: then, Src: line, Dst: thenDst, Line: thenDst},
		Else: &ast.SentinelExpr{Value: els, Src: line, Dst: elseDst, Line: elseDst},
		Line: line,
	}
}
