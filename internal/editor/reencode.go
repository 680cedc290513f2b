package editor

import (
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
)

// maxReencodePasses bounds the fixpoint loop. Because insert length is
// fixed and each pass can only ever grow an operand's width by the bytes
// the previous pass already accounted for, real programs converge in at
// most a handful of passes (spec.md §4.B: "typical ≤3"); this is a fatal
// backstop, not a performance knob.
const maxReencodePasses = 32

// reencode assigns byte offsets to every element, resolving jump operands
// and EXTENDED_ARG prefix counts to a fixpoint, then emits the final
// instruction stream (spec.md §4.B step 4). It returns the bytes and a map
// from every non-synthetic element's original offset to its offset in the
// new stream, for metadata.go to remap the exception table through.
func reencode(elems []*instrElem, filename string) ([]byte, map[int]int, error) {
	for pass := 0; ; pass++ {
		assignOffsets(elems)

		dirty := false
		for _, e := range elems {
			want := requiredWidth(e)
			if want != e.prefixWords {
				e.prefixWords = want
				dirty = true
			}
		}
		if !dirty {
			break
		}
		if pass >= maxReencodePasses {
			return nil, nil, &covcfg.BytecodeError{Filename: filename, Reason: "re-encode did not reach a fixpoint"}
		}
	}

	// Offsets are now final. Freeze jump elements' Arg to the value they
	// must encode, then emit.
	for _, e := range elems {
		if bytecode.IsJump(e.Op) {
			e.Arg = jumpValue(e)
		}
	}

	code := make([]byte, 0, totalBytes(elems))
	offsetMap := make(map[int]int)
	for _, e := range elems {
		for i := e.prefixWords - 1; i >= 0; i-- {
			shift := uint(i) * 8
			code = append(code, byte(bytecode.EXTENDED_ARG), byte((e.Arg>>shift)&0xff))
		}
		code = append(code, byte(e.Op), byte(e.Arg&0xff))

		if !e.synthetic {
			offsetMap[e.origOffset] = e.offset
		}
	}

	return code, offsetMap, nil
}

// assignOffsets lays out every element sequentially using each element's
// currently committed prefixWords, the layout requiredWidth's next call
// checks proposed widths against.
func assignOffsets(elems []*instrElem) {
	off := 0
	for _, e := range elems {
		e.offset = off
		off += e.totalWords() * bytecode.WordSize
	}
}

// requiredWidth returns the EXTENDED_ARG prefix count e's operand needs,
// given the offsets assignOffsets just committed.
func requiredWidth(e *instrElem) int {
	if bytecode.IsJump(e.Op) {
		return widthWords(jumpValue(e))
	}
	return widthWords(e.Arg)
}

// jumpValue computes the word-granular operand a jump element must encode
// against its Target, using this pass's committed offsets.
func jumpValue(e *instrElem) int {
	if bytecode.IsAbsoluteJump(e.Op) {
		return e.Target.offset / bytecode.WordSize
	}
	nextPC := e.offset + e.totalWords()*bytecode.WordSize
	return (e.Target.offset - nextPC) / bytecode.WordSize
}

func totalBytes(elems []*instrElem) int {
	if len(elems) == 0 {
		return 0
	}
	last := elems[len(elems)-1]
	return last.offset + last.totalWords()*bytecode.WordSize
}
