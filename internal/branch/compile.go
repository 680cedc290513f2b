package branch

import (
	"fmt"

	"github.com/plasma-umass/slipcover/internal/branch/ast"
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/hostvm"
)

// CompileError reports a node Compile has no codegen for — Match and Try are
// rejected outright, since this front end has no dispatch or exception
// machinery, not even enough to justify the opcodes it would take.
type CompileError struct {
	Filename string
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("branch: cannot compile %s: %s", e.Filename, e.Reason)
}

// Compile turns a statement tree already rewritten by Instrument into a
// bytecode.CodeUnit a hostvm.Frame can run, so PreInstrumentSource's output
// has somewhere to go besides a real embedding host's own front end. params
// names the function's arguments, pre-assigned to locals 0..len(params)-1 in
// order; every other name seen (SentinelName included) gets the next free
// slot on first use.
//
// Supported nodes: ExprStmt, Assign, Return, If, Loop, Break,
// SentinelAssign, SentinelExpr, CondExpr, BinaryExpr with +/-/>, Ident,
// Literal. Match and Try, which Instrument passes through with sentinels
// added to their arms, are rejected with a CompileError: this module has no
// opcode for a multi-way dispatch or an exception table, so neither is given
// a silently wrong lowering.
func Compile(filename string, params []string, body []ast.Stmt) (*bytecode.CodeUnit, error) {
	c := &cc{
		b:        hostvm.NewBuilder(filename),
		filename: filename,
		slots:    make(map[string]byte),
	}
	for _, p := range params {
		c.slot(p)
	}

	c.block(body)
	if c.err != nil {
		return nil, c.err
	}

	// A tree that falls off the end of its last statement without an
	// explicit Return still needs RETURN_VALUE to have something on the
	// stack; the trailing instructions are unreachable whenever the source
	// already returned on every path.
	zero := c.b.Const(0)
	c.b.Emit(bytecode.LOAD_CONST, byte(zero))
	c.b.Emit(bytecode.RETURN_VALUE, 0)

	return c.b.Build(), nil
}

// cc threads compiler state across the recursive descent: the Builder, the
// local-slot assignment, a generator for unique label names, the stack of
// loop-exit labels a Break must jump to, and the first error seen (codegen
// keeps walking after one so a caller gets the Builder's own panics only for
// genuinely malformed label use, never for an unsupported node reported
// twice).
type cc struct {
	b        *hostvm.Builder
	filename string
	slots    map[string]byte
	nextSlot byte
	labelNum int
	breaks   []string
	err      error
}

func (c *cc) slot(name string) byte {
	if s, ok := c.slots[name]; ok {
		return s
	}
	s := c.nextSlot
	c.slots[name] = s
	c.nextSlot++
	return s
}

func (c *cc) newLabel(prefix string) string {
	c.labelNum++
	return fmt.Sprintf("%s_%d", prefix, c.labelNum)
}

func (c *cc) fail(reason string) {
	if c.err == nil {
		c.err = &CompileError{Filename: c.filename, Reason: reason}
	}
}

// block compiles stmts in order, special-casing a Loop immediately followed
// by the trailing SentinelAssign Instrument's loop() appends after it: the
// pair is compiled together so Break can jump past the sentinel to whatever
// follows it, landing at the same place a normal (condition-false) exit
// reaches after the sentinel runs.
func (c *cc) block(stmts []ast.Stmt) {
	for i := 0; i < len(stmts); i++ {
		loop, ok := stmts[i].(*ast.Loop)
		if !ok {
			c.stmt(stmts[i])
			continue
		}
		var trailing *ast.SentinelAssign
		if i+1 < len(stmts) {
			if sa, ok := stmts[i+1].(*ast.SentinelAssign); ok {
				trailing = sa
				i++
			}
		}
		c.loop(loop, trailing)
	}
}

func (c *cc) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		c.expr(n.Value)
		c.b.SetLine(n.Line).Emit(bytecode.POP_TOP, 0)

	case *ast.Assign:
		c.expr(n.Value)
		c.b.SetLine(n.Line).Emit(bytecode.STORE_FAST, c.slot(n.Name))

	case *ast.Return:
		if n.Value != nil {
			c.expr(n.Value)
		} else {
			zero := c.b.Const(0)
			c.b.SetLine(n.Line).Emit(bytecode.LOAD_CONST, byte(zero))
		}
		c.b.Emit(bytecode.RETURN_VALUE, 0)

	case *ast.Break:
		if len(c.breaks) == 0 {
			c.fail("break outside a loop")
			return
		}
		c.b.SetLine(n.Line).EmitJump(bytecode.JUMP_FORWARD, c.breaks[len(c.breaks)-1])

	case *ast.If:
		elseLabel := c.newLabel("if_else")
		endLabel := c.newLabel("if_end")

		c.expr(n.Cond)
		c.b.EmitJump(bytecode.POP_JUMP_IF_FALSE, elseLabel)
		c.block(n.Then)
		c.b.EmitJump(bytecode.JUMP_FORWARD, endLabel)
		c.b.Label(elseLabel)
		c.block(n.Else)
		c.b.Label(endLabel)

	case *ast.SentinelAssign:
		dst := c.b.Const(n.Dst)
		c.b.SetLine(n.Line).
			Emit(bytecode.LOAD_CONST, byte(dst)).
			Emit(bytecode.STORE_FAST, c.slot(n.Name))

	case *ast.Match:
		c.fail("Match has no dispatch opcode to compile to")
	case *ast.Try:
		c.fail("Try has no exception table to compile to")

	default:
		c.fail(fmt.Sprintf("unsupported statement %T", n))
	}
}

// loop compiles a single Loop together with its optional trailing exit
// sentinel. The condition-false exit falls into condFalse, runs the
// sentinel there, and falls through into after; a Break jumps straight to
// after, skipping the sentinel entirely — it already recorded its own edge
// at its own source line (see instrument.go's Break case).
func (c *cc) loop(n *ast.Loop, trailing *ast.SentinelAssign) {
	start := c.newLabel("loop_start")
	condFalse := c.newLabel("loop_cond_false")
	after := c.newLabel("loop_after")

	c.b.Label(start)
	c.expr(n.Cond)
	c.b.EmitJump(bytecode.POP_JUMP_IF_FALSE, condFalse)

	c.breaks = append(c.breaks, after)
	c.block(n.Body)
	c.breaks = c.breaks[:len(c.breaks)-1]

	c.b.EmitJump(bytecode.JUMP_BACKWARD, start)
	c.b.Label(condFalse)
	if trailing != nil {
		c.stmt(trailing)
	}
	c.b.Label(after)
}

func (c *cc) expr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Ident:
		c.b.SetLine(n.Line).Emit(bytecode.LOAD_FAST, c.slot(n.Name))

	case *ast.Literal:
		v, ok := n.Value.(int)
		if !ok {
			c.fail(fmt.Sprintf("literal %v is not an int", n.Value))
			return
		}
		idx := c.b.Const(v)
		c.b.SetLine(n.Line).Emit(bytecode.LOAD_CONST, byte(idx))

	case *ast.BinaryExpr:
		c.expr(n.Left)
		c.expr(n.Right)
		switch n.Op {
		case "+":
			c.b.SetLine(n.Line).Emit(bytecode.BINARY_ADD, 0)
		case "-":
			c.b.SetLine(n.Line).Emit(bytecode.BINARY_SUBTRACT, 0)
		case ">":
			c.b.SetLine(n.Line).Emit(bytecode.COMPARE_GT, 0)
		default:
			c.fail(fmt.Sprintf("unsupported binary operator %q", n.Op))
		}

	case *ast.CondExpr:
		elseLabel := c.newLabel("cond_else")
		endLabel := c.newLabel("cond_end")

		c.expr(n.Cond)
		c.b.EmitJump(bytecode.POP_JUMP_IF_FALSE, elseLabel)
		c.expr(n.Then)
		c.b.EmitJump(bytecode.JUMP_FORWARD, endLabel)
		c.b.Label(elseLabel)
		c.expr(n.Else)
		c.b.Label(endLabel)

	case *ast.SentinelExpr:
		// The NOP gives this synthetic line an instruction of its own for
		// the editor to splice a probe prelude before, the same reason
		// SentinelAssign emits one to a real local instead of just a NOP:
		// either way something has to execute on Line for the probe to fire.
		c.b.SetLine(n.Line).Emit(bytecode.NOP, 0)
		c.expr(n.Value)

	default:
		c.fail(fmt.Sprintf("unsupported expression %T", n))
	}
}
