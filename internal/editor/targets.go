package editor

import (
	"fmt"

	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
)

// resolveTargets replaces every jump element's raw operand with a pointer
// to the element it targets, using each element's original offset (spec.md
// §4.B step 2). A jump landing on a byte that is not the start of a decoded
// element — the middle of a multi-prefix instruction — is a fatal error.
func resolveTargets(elems []*instrElem, byOffset map[int]*instrElem) error {
	for _, e := range elems {
		if !bytecode.IsJump(e.Op) {
			continue
		}

		var targetOffset int
		if bytecode.IsAbsoluteJump(e.Op) {
			targetOffset = e.Arg * bytecode.WordSize
		} else {
			targetOffset = e.origNextOffset + e.Arg*bytecode.WordSize
		}

		target, ok := byOffset[targetOffset]
		if !ok {
			return &covcfg.BytecodeError{
				Reason: fmt.Sprintf("%s at offset %d targets offset %d, which is not the start of an instruction", e.Op, e.origOffset, targetOffset),
			}
		}
		e.Target = target
	}
	return nil
}
