// Package editor implements the Bytecode Editor: it turns a CodeUnit's raw
// instruction stream into a mutable element list, splices in probe
// preludes, and re-emits bytes, line table, exception table, and stack
// depth in one fixpoint pass (spec.md §4.B). Instrument and Deinstrument
// are pure functions of their arguments; the package holds no state of its
// own.
package editor

import "github.com/plasma-umass/slipcover/internal/bytecode"

// PreludeWords is the fixed word count of a probe insert: NOP,
// LOAD_CONST(signal), LOAD_CONST(capsule), CALL_FUNCTION 1, POP_TOP
// (spec.md §4.B step 3). Every insert this editor produces is exactly this
// long, satisfying invariant I1.
const PreludeWords = 5

// InsertLen is PreludeWords in bytes.
const InsertLen = PreludeWords * bytecode.WordSize

// instrElem is one decoded instruction. The editor operates exclusively on
// a list of these and re-emits bytes only once re-encoding reaches a
// fixpoint (spec.md §4.B: "internal representation... re-emits bytes only
// at the end").
type instrElem struct {
	Op  bytecode.Opcode
	Arg int

	// Target is the resolved jump destination for jump instructions, a
	// pointer into the same element list rather than a raw offset, so an
	// insertion anywhere in the list never invalidates an existing jump
	// (spec.md §4.B step 2).
	Target *instrElem

	// Line is the source line this instruction's first byte maps to.
	// Synthetic elements (probe preludes) carry the line of the real
	// instruction they were inserted before, per invariant I2.
	Line int

	// synthetic marks an element the Editor introduced; it has no
	// corresponding entry in the original CodeUnit's exception table
	// remapping source.
	synthetic bool

	// origOffset is this element's byte offset in the CodeUnit Instrument
	// or Deinstrument was given. -1 for synthetic elements.
	origOffset int

	// origNextOffset is the byte offset immediately following this
	// element's original encoding (prefixes included), used once to
	// resolve relative jump targets before any re-encoding has happened.
	origNextOffset int

	// offset and prefixWords are re-computed on every re-encode pass;
	// offset is this element's final byte offset, prefixWords is how many
	// EXTENDED_ARG words precede it.
	offset      int
	prefixWords int
}

// widthWords returns how many EXTENDED_ARG words are needed to carry arg,
// the host's "prefix-instruction convention for extended operands"
// (spec.md §4.B step 4).
func widthWords(arg int) int {
	n := 0
	for arg > 0xff {
		arg >>= 8
		n++
	}
	return n
}

// totalWords is this element's full width in words: its EXTENDED_ARG
// prefixes plus its own instruction word.
func (e *instrElem) totalWords() int {
	return e.prefixWords + 1
}
