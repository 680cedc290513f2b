package hostvm

import "github.com/plasma-umass/slipcover/internal/bytecode"

// Frame is one activation of a CodeUnit: a program counter, an operand
// stack, and local-variable storage. Frames never outlive the Run call that
// created them — the VM keeps no frame registry of its own, since that is
// internal/replacer's job (spec.md §4.F walks the host's live roots, not the
// interpreter's call stack).
type Frame struct {
	Code   *bytecode.CodeUnit
	PC     int
	Stack  []any
	Locals []any

	// Line is the source line the instruction at PC maps to, refreshed
	// before every dispatch. internal/driver reads it indirectly through
	// probe signals, never by polling a Frame directly.
	Line int
}

func newFrame(code *bytecode.CodeUnit, args []any) *Frame {
	locals := make([]any, len(args)+len(code.CellVars)+len(code.FreeVars))
	copy(locals, args)
	return &Frame{
		Code:   code,
		Locals: locals,
	}
}

func (f *Frame) push(v any) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() any {
	n := len(f.Stack) - 1
	v := f.Stack[n]
	f.Stack = f.Stack[:n]
	return v
}
