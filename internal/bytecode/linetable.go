package bytecode

import "sort"

// lineRun covers a contiguous half-open range of byte offsets, [Start, End),
// that all belong to the same source line. Runs are how CPython's own
// co_linetable is shaped, and the Editor preserves that shape when it
// rebuilds a LineTable after inserting probes (spec.md §4.B step 5).
type lineRun struct {
	Start, End int
	Line       int
}

// LineTable maps an instruction's byte offset to the source line that
// produced it. A LineTable value is only ever built through NewLineTable or
// Builder; the zero value has no runs and reports every offset as unmapped.
type LineTable struct {
	runs []lineRun // sorted, non-overlapping, by Start
}

// NewLineTable builds a LineTable from (offset, line) pairs describing where
// each line's first instruction begins. pairs must be sorted by offset;
// codeLen is the total byte length of the owning CodeUnit's instruction
// stream, used to close the final run.
func NewLineTable(pairs []struct{ Offset, Line int }, codeLen int) LineTable {
	lt := LineTable{}
	for i, p := range pairs {
		end := codeLen
		if i+1 < len(pairs) {
			end = pairs[i+1].Offset
		}
		lt.runs = append(lt.runs, lineRun{Start: p.Offset, End: end, Line: p.Line})
	}
	return lt
}

// LineAt returns the source line owning byte offset off, and false if off
// falls outside every run.
func (lt LineTable) LineAt(off int) (int, bool) {
	i := sort.Search(len(lt.runs), func(i int) bool { return lt.runs[i].End > off })
	if i >= len(lt.runs) || off < lt.runs[i].Start {
		return 0, false
	}
	return lt.runs[i].Line, true
}

// Lines returns every distinct line number reachable from the line table, in
// ascending order. This is the default `line_set` spec.md §4.B's instrument
// contract falls back to when the caller does not name one explicitly.
func (lt LineTable) Lines() []int {
	seen := make(map[int]bool, len(lt.runs))
	var out []int
	for _, r := range lt.runs {
		if !seen[r.Line] {
			seen[r.Line] = true
			out = append(out, r.Line)
		}
	}
	sort.Ints(out)
	return out
}

// FirstOffset returns the byte offset of the first instruction that belongs
// to line, and false if the line is not present in the table. The Bytecode
// Editor uses this to find "the first instruction on that line" before
// inserting a probe prelude (spec.md §4.B step 3).
func (lt LineTable) FirstOffset(line int) (int, bool) {
	for _, r := range lt.runs {
		if r.Line == line {
			return r.Start, true
		}
	}
	return 0, false
}

// Builder accumulates (offset, line) runs incrementally while the Editor
// walks the re-encoded instruction list, then freezes them into a
// LineTable. Building incrementally (rather than assembling pairs up front)
// lets the Editor emit a run per element as it iterates once, without a
// second pass purely to collect line transitions.
type Builder struct {
	pairs   []struct{ Offset, Line int }
	lastSet bool
	last    int
}

// Add records that byte offset off begins a (possibly new) line, line. Calls
// with a line equal to the previous call's line are coalesced into a single
// run, the same compaction CPython applies when it emits co_linetable.
func (b *Builder) Add(off, line int) {
	if b.lastSet && b.last == line {
		return
	}
	b.pairs = append(b.pairs, struct{ Offset, Line int }{off, line})
	b.last, b.lastSet = line, true
}

// Build freezes the accumulated runs into a LineTable covering byte range
// [0, codeLen).
func (b *Builder) Build(codeLen int) LineTable {
	return NewLineTable(b.pairs, codeLen)
}
