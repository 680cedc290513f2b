package bytecode

import "testing"

func TestLineTable_LineAt(t *testing.T) {
	pairs := []struct{ Offset, Line int }{
		{0, 1},
		{2, 2},
		{6, 3},
	}
	lt := NewLineTable(pairs, 10)

	cases := []struct {
		off      int
		wantLine int
		wantOK   bool
	}{
		{0, 1, true},
		{1, 1, true},
		{2, 2, true},
		{5, 2, true},
		{6, 3, true},
		{9, 3, true},
		{10, 0, false},
	}
	for _, c := range cases {
		line, ok := lt.LineAt(c.off)
		if ok != c.wantOK || (ok && line != c.wantLine) {
			t.Errorf("LineAt(%d) = (%d, %v), want (%d, %v)", c.off, line, ok, c.wantLine, c.wantOK)
		}
	}
}

func TestLineTable_Lines(t *testing.T) {
	pairs := []struct{ Offset, Line int }{
		{0, 1}, {2, 2}, {4, 2}, {8, 3},
	}
	lt := NewLineTable(pairs, 12)
	got := lt.Lines()
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Lines() = %v, want %v", got, want)
		}
	}
}

func TestLineTable_FirstOffset(t *testing.T) {
	pairs := []struct{ Offset, Line int }{{0, 1}, {4, 3}}
	lt := NewLineTable(pairs, 8)

	if off, ok := lt.FirstOffset(3); !ok || off != 4 {
		t.Errorf("FirstOffset(3) = (%d, %v), want (4, true)", off, ok)
	}
	if _, ok := lt.FirstOffset(99); ok {
		t.Errorf("FirstOffset(99) unexpectedly found")
	}
}

func TestBuilder_CoalescesRuns(t *testing.T) {
	var b Builder
	b.Add(0, 1)
	b.Add(2, 1) // same line, should coalesce
	b.Add(4, 2)
	lt := b.Build(6)

	if n := len(lt.Lines()); n != 2 {
		t.Fatalf("expected 2 distinct lines after coalescing, got %d", n)
	}
	if line, ok := lt.LineAt(2); !ok || line != 1 {
		t.Errorf("LineAt(2) = (%d, %v), want (1, true)", line, ok)
	}
}

func TestKey_BranchVsLine(t *testing.T) {
	line := LineKey(5)
	if line.IsBranch() {
		t.Error("LineKey should not be a branch")
	}
	if got := line.Lines(); len(got) != 1 || got[0] != 5 {
		t.Errorf("Lines() = %v, want [5]", got)
	}

	branch := BranchKey(3, 6)
	if !branch.IsBranch() {
		t.Error("BranchKey should be a branch")
	}
	if got := branch.Lines(); len(got) != 2 || got[0] != 3 || got[1] != 6 {
		t.Errorf("Lines() = %v, want [3 6]", got)
	}
	if branch.String() != "3->6" {
		t.Errorf("String() = %q, want %q", branch.String(), "3->6")
	}
}

func TestExceptionTable_Remap(t *testing.T) {
	et := ExceptionTable{{Start: 0, End: 4, Handler: 4}}
	offsetMap := map[int]int{0: 0, 2: 4, 4: 8}
	remapped := et.Remap(offsetMap)
	if len(remapped) != 1 {
		t.Fatalf("expected 1 region, got %d", len(remapped))
	}
	r := remapped[0]
	if r.Start != 0 || r.Handler != 8 || r.End != 8 {
		t.Errorf("Remap() = %+v, want {Start:0 End:8 Handler:8}", r)
	}
}
