package hostvm

import (
	"fmt"

	"github.com/plasma-umass/slipcover/internal/bytecode"
)

type jumpKind int

const (
	jumpRelative jumpKind = iota
	jumpAbsolute
)

type fixup struct {
	offset int
	label  string
	kind   jumpKind
}

// Builder assembles a bytecode.CodeUnit one instruction at a time, the same
// two-pass shape the teacher's code generator uses: emit a flat instruction
// stream while collecting named label references, then resolve every label
// to a concrete word offset in a second pass over the fixup list.
type Builder struct {
	filename string
	code     []byte
	consts   []any
	freeVars []string
	cellVars []string

	lines       bytecode.Builder
	currentLine int

	labels map[string]int
	fixups []fixup
}

// NewBuilder is the sole constructor. It always returns a Builder ready to
// accept Emit calls.
func NewBuilder(filename string) *Builder {
	return &Builder{
		filename: filename,
		labels:   make(map[string]int),
	}
}

// SetLine sets the source line attributed to every instruction emitted
// until the next SetLine call.
func (b *Builder) SetLine(line int) *Builder {
	b.currentLine = line
	return b
}

// Const appends v to the constant pool and returns its index. Indices
// beyond 0xff need EmitWide rather than Emit to reach the pool entry.
func (b *Builder) Const(v any) int {
	b.consts = append(b.consts, v)
	return len(b.consts) - 1
}

// Emit appends a single [op, arg] word at the current line.
func (b *Builder) Emit(op bytecode.Opcode, arg byte) *Builder {
	b.lines.Add(len(b.code), b.currentLine)
	b.code = append(b.code, byte(op), arg)
	return b
}

// EmitWide emits op with a value wider than one byte, prefixing it with as
// many EXTENDED_ARG words as needed (spec.md §4.B's extended-operand
// convention).
func (b *Builder) EmitWide(op bytecode.Opcode, value int) *Builder {
	if value > 0xff {
		b.EmitWide(bytecode.EXTENDED_ARG, value>>8)
	}
	return b.Emit(op, byte(value))
}

// Label marks the current offset under name, resolvable by a later jump
// emitted with EmitJump.
func (b *Builder) Label(name string) *Builder {
	b.labels[name] = len(b.code)
	return b
}

// EmitJump emits a jump instruction whose target is the offset Label(name)
// will mark — possibly later in the stream. The argument is patched in
// Build's second pass once every label is known.
func (b *Builder) EmitJump(op bytecode.Opcode, label string) *Builder {
	kind := jumpRelative
	if bytecode.IsAbsoluteJump(op) {
		kind = jumpAbsolute
	}
	b.fixups = append(b.fixups, fixup{offset: len(b.code), label: label, kind: kind})
	return b.Emit(op, 0)
}

// CurrentOffset returns the byte offset the next Emit call will land at,
// useful for labels a caller wants to capture without naming them.
func (b *Builder) CurrentOffset() int {
	return len(b.code)
}

// Build resolves every pending jump fixup against the recorded labels and
// returns the finished CodeUnit. It panics if a fixup references a label
// that was never marked — a malformed test fixture, not a runtime
// condition.
func (b *Builder) Build() *bytecode.CodeUnit {
	for _, fx := range b.fixups {
		target, ok := b.labels[fx.label]
		if !ok {
			panic(fmt.Sprintf("hostvm: builder %q: unresolved label %q", b.filename, fx.label))
		}

		var words int
		switch fx.kind {
		case jumpAbsolute:
			words = target / bytecode.WordSize
		default:
			words = (target - (fx.offset + bytecode.WordSize)) / bytecode.WordSize
		}
		if words < 0 || words > 0xff {
			panic(fmt.Sprintf("hostvm: builder %q: jump to %q does not fit in one byte (%d words)", b.filename, fx.label, words))
		}
		b.code[fx.offset+1] = byte(words)
	}

	return &bytecode.CodeUnit{
		Filename:  b.filename,
		Code:      b.code,
		Lines:     b.lines.Build(len(b.code)),
		ConstPool: b.consts,
		FreeVars:  b.freeVars,
		CellVars:  b.cellVars,
		StackSize: 8,
	}
}
