package bytecode

// ExceptionRegion is one entry of a CodeUnit's exception-handler table: the
// half-open byte range [Start, End) is protected by the handler starting at
// byte offset Handler.
type ExceptionRegion struct {
	Start, End, Handler int
}

// ExceptionTable is the ordered list of exception regions for a CodeUnit.
// Order matters: the host resolves the innermost (first matching, narrowest)
// region for a given faulting offset, so Remap must preserve relative order.
type ExceptionTable []ExceptionRegion

// Remap rewrites every region's Start/End/Handler through offsetMap, the
// old-offset-to-new-offset mapping the Editor produces while re-encoding a
// CodeUnit (spec.md §4.B step 5: "regenerate the exception-region table by
// remapping each region's start/end/handler offsets through the offset
// map"). A region whose Start or Handler is missing from offsetMap is
// dropped rather than left dangling — it protected code the rewrite deleted
// entirely, which never happens for probe insertion (inserts are additive)
// but is a safe outcome for any future transform that does remove code.
func (et ExceptionTable) Remap(offsetMap map[int]int) ExceptionTable {
	out := make(ExceptionTable, 0, len(et))
	for _, r := range et {
		start, ok1 := offsetMap[r.Start]
		handler, ok2 := offsetMap[r.Handler]
		end, ok3 := mapEnd(offsetMap, r.End)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		out = append(out, ExceptionRegion{Start: start, End: end, Handler: handler})
	}
	return out
}

// mapEnd resolves the end of a half-open range through offsetMap. End often
// equals the code length (one past the last real offset), which is never a
// key of offsetMap itself, so it is resolved as the new offset of the
// largest mapped key less than End, plus one word.
func mapEnd(offsetMap map[int]int, end int) (int, bool) {
	if v, ok := offsetMap[end]; ok {
		return v, true
	}
	// Fall back to the maximum mapped offset + its word size. The Editor's
	// offsetMap has no entry at the old code length, so an End equal to the
	// code length always takes this path.
	max := -1
	var maxNew int
	for old, new := range offsetMap {
		if old < end && old > max {
			max, maxNew = old, new
		}
	}
	if max < 0 {
		return 0, false
	}
	return maxNew + WordSize, true
}
