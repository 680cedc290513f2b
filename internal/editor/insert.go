package editor

import (
	"fmt"
	"sort"

	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
	"github.com/plasma-umass/slipcover/internal/hostvm"
)

// insertion is the bookkeeping the editor keeps per requested key while it
// still only has element pointers, before a final offset exists to build a
// bytecode.ProbeSite from.
type insertion struct {
	key bytecode.Key
	nop *instrElem
}

// insertProbes splices a PreludeWords-long synthetic sequence before the
// first element on each key's line, for every key in keys (spec.md §4.B
// step 3: "locate the first instruction on that line, insert a prelude
// sequence before it"). signal is appended to the constant pool once;
// capsules[i] is appended once per key and referenced only by that key's
// insert.
func insertProbes(elems []*instrElem, keys []bytecode.Key, consts *[]any, signal hostvm.Callable, capsules map[bytecode.Key]any) ([]*instrElem, []insertion, error) {
	byLine := make(map[int]*instrElem)
	for _, e := range elems {
		if e.synthetic {
			continue
		}
		if _, ok := byLine[e.Line]; !ok {
			byLine[e.Line] = e
		}
	}

	signalIdx := len(*consts)
	*consts = append(*consts, signal)

	sorted := append([]bytecode.Key(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		return sorted[i].Dst < sorted[j].Dst
	})

	insertions := make([]insertion, 0, len(sorted))
	for _, key := range sorted {
		target, ok := byLine[key.Line]
		if !ok {
			return nil, nil, &covcfg.BytecodeError{Reason: fmt.Sprintf("no instruction found on line %d for key %s", key.Line, key)}
		}

		capsule, ok := capsules[key]
		if !ok {
			return nil, nil, &covcfg.BytecodeError{Reason: fmt.Sprintf("no capsule supplied for key %s", key)}
		}
		capsuleIdx := len(*consts)
		*consts = append(*consts, capsule)

		prelude := []*instrElem{
			{Op: bytecode.NOP, synthetic: true, Line: key.Line, origOffset: -1},
			{Op: bytecode.LOAD_CONST, Arg: signalIdx, synthetic: true, Line: key.Line, origOffset: -1},
			{Op: bytecode.LOAD_CONST, Arg: capsuleIdx, synthetic: true, Line: key.Line, origOffset: -1},
			{Op: bytecode.CALL_FUNCTION, Arg: 1, synthetic: true, Line: key.Line, origOffset: -1},
			{Op: bytecode.POP_TOP, synthetic: true, Line: key.Line, origOffset: -1},
		}

		elems = spliceBefore(elems, target, prelude)
		retarget(elems, target, prelude[0])
		insertions = append(insertions, insertion{key: key, nop: prelude[0]})
	}

	return elems, insertions, nil
}

// spliceBefore inserts newElems immediately before target in elems,
// preserving every existing Target pointer — pointers, not indices, carry
// jump identity across the insertion (spec.md §4.B's element-list design).
func spliceBefore(elems []*instrElem, target *instrElem, newElems []*instrElem) []*instrElem {
	out := make([]*instrElem, 0, len(elems)+len(newElems))
	for _, e := range elems {
		if e == target {
			out = append(out, newElems...)
		}
		out = append(out, e)
	}
	return out
}

// retarget redirects every jump in elems whose Target is target to entry
// instead. A line reached only by a jump (a loop-exit, an else-arm, a
// handler entry) must still run its prelude, so once a prelude has been
// spliced before target, every incoming jump has to land on the prelude's
// first word rather than skip straight past it to the real instruction.
func retarget(elems []*instrElem, target, entry *instrElem) {
	for _, e := range elems {
		if e.Target == target {
			e.Target = entry
		}
	}
}
