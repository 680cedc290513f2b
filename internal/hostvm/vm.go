// Package hostvm is a minimal interpreter for the CPython-wordcode-shaped
// instruction set internal/bytecode describes (SPEC_FULL.md §0). It exists
// only so the rest of this module has something to run: a real embedding
// host compiles and executes its own CodeUnits, but the editor, branch,
// driver, and replacer packages need an executable stand-in to exercise
// against in tests.
package hostvm

import (
	"fmt"

	"github.com/plasma-umass/slipcover/internal/bytecode"
)

// Callable is the only value CALL_FUNCTION knows how to invoke: a Go closure
// standing in for a host-native function, such as the probe-signal callable
// the Editor installs in a CodeUnit's ConstPool (spec.md §4.B step 2).
type Callable func(args ...any) any

// RunError reports a failure encountered while executing a CodeUnit, naming
// the offset so a failing test points straight at the offending word.
type RunError struct {
	Filename string
	Offset   int
	Reason   string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s@%d: %s", e.Filename, e.Offset, e.Reason)
}

// Run executes code from offset 0 with args bound to its first len(args)
// locals, and returns whatever RETURN_VALUE pushes. An unknown opcode, a
// non-Callable CALL_FUNCTION target, or running off the end of Code is
// returned as a RunError; stack underflow and other malformed bytecode
// panics — those are bugs in the caller's CodeUnit construction, not
// conditions this module needs to recover from.
func Run(code *bytecode.CodeUnit, args ...any) (any, error) {
	f := newFrame(code, args)

	for {
		if f.PC >= len(code.Code) {
			return nil, &RunError{Filename: code.Filename, Offset: f.PC, Reason: "fell off the end of Code without RETURN_VALUE"}
		}
		if line, ok := code.Lines.LineAt(f.PC); ok {
			f.Line = line
		}

		op, arg, nextPC := decode(code.Code, f.PC)

		switch op {
		case bytecode.NOP:
			f.PC = nextPC

		case bytecode.LOAD_CONST:
			f.push(code.ConstPool[arg])
			f.PC = nextPC

		case bytecode.LOAD_FAST:
			f.push(f.Locals[arg])
			f.PC = nextPC

		case bytecode.STORE_FAST:
			for arg >= len(f.Locals) {
				f.Locals = append(f.Locals, nil)
			}
			f.Locals[arg] = f.pop()
			f.PC = nextPC

		case bytecode.BINARY_ADD:
			b, a := f.pop(), f.pop()
			f.push(toInt(a) + toInt(b))
			f.PC = nextPC

		case bytecode.BINARY_SUBTRACT:
			b, a := f.pop(), f.pop()
			f.push(toInt(a) - toInt(b))
			f.PC = nextPC

		case bytecode.COMPARE_GT:
			b, a := f.pop(), f.pop()
			f.push(toInt(a) > toInt(b))
			f.PC = nextPC

		case bytecode.POP_JUMP_IF_FALSE:
			if truthy(f.pop()) {
				f.PC = nextPC
			} else {
				f.PC = nextPC + arg*bytecode.WordSize
			}

		case bytecode.JUMP_FORWARD:
			f.PC = nextPC + arg*bytecode.WordSize

		case bytecode.JUMP_BACKWARD:
			f.PC = arg * bytecode.WordSize

		case bytecode.CALL_FUNCTION:
			callArgs := make([]any, arg)
			for i := arg - 1; i >= 0; i-- {
				callArgs[i] = f.pop()
			}
			callee, ok := f.pop().(Callable)
			if !ok {
				return nil, &RunError{Filename: code.Filename, Offset: f.PC, Reason: "CALL_FUNCTION target is not a Callable"}
			}
			f.push(callee(callArgs...))
			f.PC = nextPC

		case bytecode.POP_TOP:
			f.pop()
			f.PC = nextPC

		case bytecode.RETURN_VALUE:
			return f.pop(), nil

		default:
			return nil, &RunError{Filename: code.Filename, Offset: f.PC, Reason: fmt.Sprintf("unknown opcode %s", op)}
		}
	}
}

// decode reads the instruction at off, consuming any EXTENDED_ARG prefix
// chain first, and returns the effective opcode, its widened argument, and
// the offset of the next instruction (spec.md §4.B's "prefix-instruction
// convention for extended operands").
func decode(code []byte, off int) (bytecode.Opcode, int, int) {
	ext := 0
	for bytecode.Opcode(code[off]) == bytecode.EXTENDED_ARG {
		ext = ext<<8 | int(code[off+1])
		off += bytecode.WordSize
	}
	op := bytecode.Opcode(code[off])
	arg := ext<<8 | int(code[off+1])
	return op, arg, off + bytecode.WordSize
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	default:
		return v != nil
	}
}

func toInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("hostvm: value %v is not numeric", v))
	}
}
