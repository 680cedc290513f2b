package branch

import (
	"testing"

	"github.com/plasma-umass/slipcover/internal/branch/ast"
	"github.com/plasma-umass/slipcover/internal/bytecode"
)

func hasKey(edges []Edge, k bytecode.Key) bool {
	for _, e := range edges {
		if e.Key == k {
			return true
		}
	}
	return false
}

// distinctProbeLines reports whether every edge in edges was given its own
// ProbeLine — the property driver.InstrumentCode's byLine map depends on to
// avoid one edge's probe overwriting another's.
func distinctProbeLines(edges []Edge) bool {
	seen := make(map[int]bool, len(edges))
	for _, e := range edges {
		if seen[e.ProbeLine] {
			return false
		}
		seen[e.ProbeLine] = true
	}
	return true
}

func TestInstrument_IfWithElse(t *testing.T) {
	src := []ast.Stmt{
		&ast.If{
			Line: 1,
			Cond: &ast.Ident{Name: "x", Line: 1},
			Then: []ast.Stmt{&ast.Assign{Name: "a", Line: 2}},
			Else: []ast.Stmt{&ast.Assign{Name: "b", Line: 3}},
		},
	}

	out, edges := Instrument(src, 3)

	if !hasKey(edges, bytecode.BranchKey(1, 2)) {
		t.Errorf("expected a branch key for the taken then-edge (1->2), got %v", edges)
	}
	if !hasKey(edges, bytecode.BranchKey(1, 3)) {
		t.Errorf("expected a branch key for the taken else-edge (1->3), got %v", edges)
	}
	if !distinctProbeLines(edges) {
		t.Errorf("expected the then- and else-edges to get distinct probe lines, got %v", edges)
	}

	ifStmt := out[0].(*ast.If)
	if _, ok := ifStmt.Then[0].(*ast.SentinelAssign); !ok {
		t.Error("expected a SentinelAssign prepended to the then-block")
	}
	if _, ok := ifStmt.Else[0].(*ast.SentinelAssign); !ok {
		t.Error("expected a SentinelAssign prepended to the else-block")
	}
}

func TestInstrument_IfWithoutElseGetsSyntheticElse(t *testing.T) {
	src := []ast.Stmt{
		&ast.If{
			Line: 5,
			Cond: &ast.Ident{Name: "x", Line: 5},
			Then: []ast.Stmt{&ast.Assign{Name: "a", Line: 6}},
		},
	}

	out, edges := Instrument(src, 6)

	ifStmt := out[0].(*ast.If)
	if len(ifStmt.Else) != 1 {
		t.Fatalf("expected a synthetic one-statement else block, got %d statements", len(ifStmt.Else))
	}
	sentinel, ok := ifStmt.Else[0].(*ast.SentinelAssign)
	if !ok {
		t.Fatal("expected the synthetic else block to hold a SentinelAssign")
	}
	if sentinel.Src != 5 {
		t.Errorf("sentinel.Src = %d, want 5", sentinel.Src)
	}
	if !hasKey(edges, bytecode.BranchKey(5, sentinel.Dst)) {
		t.Error("expected the synthetic else edge to be recorded as a branch key")
	}
}

func TestInstrument_SyntheticLinesNeverCollideWithSource(t *testing.T) {
	src := []ast.Stmt{
		&ast.If{
			Line: 1,
			Cond: &ast.Ident{Name: "x", Line: 1},
			Then: []ast.Stmt{&ast.Assign{Name: "a", Line: 2}},
		},
	}
	const maxSourceLine = 2

	out, _ := Instrument(src, maxSourceLine)

	ifStmt := out[0].(*ast.If)
	thenSentinel := ifStmt.Then[0].(*ast.SentinelAssign)
	elseSentinel := ifStmt.Else[0].(*ast.SentinelAssign)

	if thenSentinel.Line <= maxSourceLine {
		t.Errorf("then sentinel line %d collides with source lines", thenSentinel.Line)
	}
	if elseSentinel.Line <= maxSourceLine {
		t.Errorf("else sentinel line %d collides with source lines", elseSentinel.Line)
	}
	if elseSentinel.Dst <= maxSourceLine {
		t.Errorf("synthetic else destination %d collides with source lines", elseSentinel.Dst)
	}
}

func TestInstrument_LoopBodyAndExitEdges(t *testing.T) {
	src := []ast.Stmt{
		&ast.Loop{
			Line: 1,
			Cond: &ast.Ident{Name: "n", Line: 1},
			Body: []ast.Stmt{
				&ast.Assign{Name: "total", Line: 2},
				&ast.Break{Line: 3},
			},
		},
	}

	out, edges := Instrument(src, 3)

	if len(out) != 2 {
		t.Fatalf("expected the loop plus its trailing exit sentinel, got %d statements", len(out))
	}
	loop := out[0].(*ast.Loop)
	if _, ok := loop.Body[0].(*ast.SentinelAssign); !ok {
		t.Error("expected a SentinelAssign prepended to the loop body")
	}
	if !hasKey(edges, bytecode.BranchKey(1, loop.Body[0].(*ast.SentinelAssign).Dst)) {
		t.Error("expected the body-entry edge to be recorded")
	}

	exitSentinel, ok := out[1].(*ast.SentinelAssign)
	if !ok {
		t.Fatal("expected a trailing SentinelAssign recording the loop's normal-exit edge")
	}
	if !hasKey(edges, bytecode.BranchKey(1, exitSentinel.Dst)) {
		t.Error("expected the loop's own exit edge to be recorded")
	}

	// The loop registers its own exit edge, and the break inside shares it.
	exitKeyCount := 0
	for _, e := range edges {
		if e.Key.Line == 1 || e.Key.Line == 3 {
			exitKeyCount++
		}
	}
	if exitKeyCount < 2 {
		t.Errorf("expected at least 2 edges involving the loop or its break, got %d in %v", exitKeyCount, edges)
	}
	if !distinctProbeLines(edges) {
		t.Errorf("expected the body-entry and exit edges to get distinct probe lines, got %v", edges)
	}
}

func TestInstrument_MatchArms(t *testing.T) {
	src := []ast.Stmt{
		&ast.Match{
			Line:    1,
			Subject: &ast.Ident{Name: "x", Line: 1},
			Arms: []ast.MatchArm{
				{Pattern: "A", Body: []ast.Stmt{&ast.Assign{Name: "a", Line: 2}}},
				{Pattern: "B", Body: []ast.Stmt{&ast.Assign{Name: "b", Line: 3}}},
			},
		},
	}

	out, edges := Instrument(src, 3)

	m := out[0].(*ast.Match)
	for _, arm := range m.Arms {
		if _, ok := arm.Body[0].(*ast.SentinelAssign); !ok {
			t.Errorf("expected arm %q to have a prepended SentinelAssign", arm.Pattern)
		}
	}
	if len(edges) != 2 {
		t.Errorf("expected one branch edge per arm, got %d", len(edges))
	}
	if !distinctProbeLines(edges) {
		t.Errorf("expected each arm to get its own probe line, got %v", edges)
	}
}

func TestInstrument_TryHandlerEntry(t *testing.T) {
	src := []ast.Stmt{
		&ast.Try{
			Line: 1,
			Body: []ast.Stmt{&ast.Assign{Name: "a", Line: 2}},
			Handlers: []ast.ExceptHandler{
				{Name: "ValueError", Body: []ast.Stmt{&ast.Assign{Name: "b", Line: 3}}},
			},
		},
	}

	out, edges := Instrument(src, 3)

	tryStmt := out[0].(*ast.Try)
	if _, ok := tryStmt.Handlers[0].Body[0].(*ast.SentinelAssign); !ok {
		t.Error("expected the handler body to have a prepended SentinelAssign")
	}
	if len(edges) != 1 {
		t.Errorf("expected exactly one branch edge for the handler entry, got %d", len(edges))
	}
}

func TestInstrument_ShortCircuitDesugarsToCondExpr(t *testing.T) {
	src := []ast.Stmt{
		&ast.Assign{
			Name: "r",
			Line: 1,
			Value: &ast.BinaryExpr{
				Op:    "&&",
				Left:  &ast.Ident{Name: "a", Line: 1},
				Right: &ast.Ident{Name: "b", Line: 1},
				Line:  1,
			},
		},
	}

	out, edges := Instrument(src, 1)

	assign := out[0].(*ast.Assign)
	cond, ok := assign.Value.(*ast.CondExpr)
	if !ok {
		t.Fatalf("expected the short-circuit to desugar into a CondExpr, got %T", assign.Value)
	}
	if _, ok := cond.Then.(*ast.SentinelExpr); !ok {
		t.Error("expected the then-arm to be wrapped in a SentinelExpr")
	}
	if _, ok := cond.Else.(*ast.SentinelExpr); !ok {
		t.Error("expected the else-arm to be wrapped in a SentinelExpr")
	}
	if len(edges) != 2 {
		t.Errorf("expected 2 branch edges for the short-circuit, got %d", len(edges))
	}
	if !distinctProbeLines(edges) {
		t.Errorf("expected distinct probe lines for the two arms, got %v", edges)
	}
}

func TestInstrument_CondExprBothArms(t *testing.T) {
	src := []ast.Stmt{
		&ast.Assign{
			Name: "r",
			Line: 1,
			Value: &ast.CondExpr{
				Cond: &ast.Ident{Name: "x", Line: 1},
				Then: &ast.Literal{Value: 1, Line: 1},
				Else: &ast.Literal{Value: 2, Line: 1},
				Line: 1,
			},
		},
	}

	_, edges := Instrument(src, 1)
	if len(edges) != 2 {
		t.Errorf("expected 2 branch edges for the conditional expression, got %d", len(edges))
	}
	if !distinctProbeLines(edges) {
		t.Errorf("expected distinct probe lines for the two arms, got %v", edges)
	}
}
