package ast

// Ident references a bound name.
type Ident struct {
	Name string
	Line int
}

// Literal is a constant value.
type Literal struct {
	Value any
	Line  int
}

// BinaryExpr covers every binary operator, including the two short-circuit
// forms ("&&", "||") the instrumenter treats as branches: each operand's
// truthiness decides whether Right is evaluated at all (spec.md §4.C).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Line  int
}

// CondExpr is a ternary conditional expression `Cond ? Then : Else`.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Line int
}

// SentinelExpr wraps an operand the instrumenter decided is a branch
// target: evaluating it records (Src, Dst) before producing Value's result,
// the expression-level equivalent of ast.SentinelAssign. It never appears
// in input the instrumenter was given.
type SentinelExpr struct {
	Value Expr
	Src   int
	Dst   int
	Line  int
}

func (e *Ident) exprNode()        {}
func (e *Literal) exprNode()      {}
func (e *BinaryExpr) exprNode()   {}
func (e *CondExpr) exprNode()     {}
func (e *SentinelExpr) exprNode() {}

func (e *Ident) Pos() int        { return e.Line }
func (e *Literal) Pos() int      { return e.Line }
func (e *BinaryExpr) Pos() int   { return e.Line }
func (e *CondExpr) Pos() int     { return e.Line }
func (e *SentinelExpr) Pos() int { return e.Line }
