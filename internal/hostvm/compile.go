package hostvm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/plasma-umass/slipcover/internal/bytecode"
)

// CompileError reports a malformed line in a source program handed to
// Compile, naming the line number so a failing script points straight at
// the offending instruction.
type CompileError struct {
	Filename string
	Line     int
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Reason)
}

// Compile parses a minimal line-oriented instruction listing into a
// CodeUnit — just enough of a front end for cmd/covrun to load a script
// file instead of only the CodeUnits package tests build directly with
// Builder. It is not a general-purpose language; it exists to give the demo
// CLI something to read off disk.
//
// One instruction per non-blank, non-comment ('#') line:
//
//	line <n>             attribute following instructions to source line n
//	label <name>          mark the current offset under name
//	const <int>            push an int constant, emit bytecode.LOAD_CONST for it
//	load_fast <n>
//	store_fast <n>
//	add / sub / cmpgt / pop / return
//	call <n>               bytecode.CALL_FUNCTION with n arguments
//	jmp_if_false <label>
//	jmp_back <label>
//	jmp_fwd <label>
//	nop
func Compile(filename, source string) (*bytecode.CodeUnit, error) {
	b := NewBuilder(filename)
	consts := make(map[int]int) // literal value -> const pool index, for reuse across LOAD_CONSTs

	loadConst := func(v int) byte {
		idx, ok := consts[v]
		if !ok {
			idx = b.Const(v)
			consts[v] = idx
		}
		return byte(idx)
	}

	scanner := bufio.NewScanner(strings.NewReader(source))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		op := fields[0]
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch op {
		case "line":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, &CompileError{filename, lineNo, "line expects an integer"}
			}
			b.SetLine(n)

		case "label":
			if arg == "" {
				return nil, &CompileError{filename, lineNo, "label expects a name"}
			}
			b.Label(arg)

		case "const":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, &CompileError{filename, lineNo, "const expects an integer literal"}
			}
			b.Emit(bytecode.LOAD_CONST, loadConst(n))

		case "load_fast":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, &CompileError{filename, lineNo, "load_fast expects a slot index"}
			}
			b.Emit(bytecode.LOAD_FAST, byte(n))

		case "store_fast":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, &CompileError{filename, lineNo, "store_fast expects a slot index"}
			}
			b.Emit(bytecode.STORE_FAST, byte(n))

		case "add":
			b.Emit(bytecode.BINARY_ADD, 0)
		case "sub":
			b.Emit(bytecode.BINARY_SUBTRACT, 0)
		case "cmpgt":
			b.Emit(bytecode.COMPARE_GT, 0)
		case "pop":
			b.Emit(bytecode.POP_TOP, 0)
		case "return":
			b.Emit(bytecode.RETURN_VALUE, 0)
		case "nop":
			b.Emit(bytecode.NOP, 0)

		case "call":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, &CompileError{filename, lineNo, "call expects an argument count"}
			}
			b.Emit(bytecode.CALL_FUNCTION, byte(n))

		case "jmp_if_false":
			if arg == "" {
				return nil, &CompileError{filename, lineNo, "jmp_if_false expects a label"}
			}
			b.EmitJump(bytecode.POP_JUMP_IF_FALSE, arg)
		case "jmp_back":
			if arg == "" {
				return nil, &CompileError{filename, lineNo, "jmp_back expects a label"}
			}
			b.EmitJump(bytecode.JUMP_BACKWARD, arg)
		case "jmp_fwd":
			if arg == "" {
				return nil, &CompileError{filename, lineNo, "jmp_fwd expects a label"}
			}
			b.EmitJump(bytecode.JUMP_FORWARD, arg)

		default:
			return nil, &CompileError{filename, lineNo, fmt.Sprintf("unknown instruction %q", op)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &CompileError{filename, lineNo, err.Error()}
	}

	return b.Build(), nil
}
