package editor

import "github.com/plasma-umass/slipcover/internal/bytecode"

// probeCallStackCost is the operand-stack depth reserved for a probe
// prelude on top of whatever depth the surrounding code already needed. The
// prelude itself pushes at most two values (the callable and its capsule,
// consumed by a one-argument call); the reservation is 3, one slot more
// (spec.md §4.B step 5: "typically +3").
const probeCallStackCost = 3

// rebuildMetadata regenerates the line table and exception table for a
// re-encoded element list, and returns the new stack-size requirement
// (spec.md §4.B step 5). offsetMap carries every surviving original
// element's old offset to its new one, for exceptionTable.Remap.
func rebuildMetadata(elems []*instrElem, codeLen int, exceptions bytecode.ExceptionTable, offsetMap map[int]int, origStackSize int, probesAdded bool) (bytecode.LineTable, bytecode.ExceptionTable, int) {
	var lb bytecode.Builder
	for _, e := range elems {
		lb.Add(e.offset, e.Line)
	}

	stackSize := origStackSize
	if probesAdded {
		stackSize += probeCallStackCost
	}

	return lb.Build(codeLen), exceptions.Remap(offsetMap), stackSize
}
