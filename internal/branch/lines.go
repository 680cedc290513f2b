package branch

import "sort"

// LineAllocator hands out fresh source line numbers for synthetic sentinel
// assignments, each recorded against the real statement that required it.
// Adapted from the teacher's macro-expansion line-provenance bookkeeping
// (`ExpandLine`/`LineNumberToOrigin`): there, a synthetic line tracks which
// `.kasm` macro invocation produced it; here, one tracks which control edge
// produced it. The Driver does not read these records: its report has no
// missing-lines set, and synthetic lines are not filtered out of
// executed_lines.
type LineAllocator struct {
	next    int
	origins map[int]int
}

// NewLineAllocator returns an allocator that starts handing out line
// numbers immediately after maxSourceLine, the highest line number present
// in the original source.
func NewLineAllocator(maxSourceLine int) *LineAllocator {
	return &LineAllocator{
		next:    maxSourceLine + 1,
		origins: make(map[int]int),
	}
}

// Allocate reserves a new synthetic line attributed to origin, the real
// source line of the branching statement that needed it, and returns it.
func (a *LineAllocator) Allocate(origin int) int {
	line := a.next
	a.next++
	a.origins[line] = origin
	return line
}

// OriginOf reports the source line that caused a synthetic line to be
// allocated, and whether line is synthetic at all.
func (a *LineAllocator) OriginOf(line int) (int, bool) {
	origin, ok := a.origins[line]
	return origin, ok
}

// SyntheticLines returns every line this allocator has handed out, sorted
// ascending.
func (a *LineAllocator) SyntheticLines() []int {
	out := make([]int, 0, len(a.origins))
	for line := range a.origins {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}
