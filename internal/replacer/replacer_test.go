package replacer

import (
	"errors"
	"testing"

	"github.com/plasma-umass/slipcover/internal/bytecode"
)

// fakeRoot is a minimal Root for tests: a named node in a hand-built graph,
// optionally holding a CodeUnit, optionally a live top frame, with explicit
// children (possibly forming a cycle back to an ancestor).
type fakeRoot struct {
	name     string
	code     *bytecode.CodeUnit
	topFrame bool
	children []Root
	onSet    func(*bytecode.CodeUnit)
	panics   bool
}

func (f *fakeRoot) CodeUnit() *bytecode.CodeUnit { return f.code }
func (f *fakeRoot) SetCodeUnit(cu *bytecode.CodeUnit) {
	if f.panics {
		panic("boom")
	}
	f.code = cu
	if f.onSet != nil {
		f.onSet(cu)
	}
}
func (f *fakeRoot) IsLiveTopFrame() bool { return f.topFrame }
func (f *fakeRoot) Children() []Root     { return f.children }
func (f *fakeRoot) Identity() any        { return f.name }

func TestReplace_SwapsMatchingCodeUnit(t *testing.T) {
	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	newCU := &bytecode.CodeUnit{Filename: "a.py"}
	module := &fakeRoot{name: "module", code: oldCU}

	errs := Replace([]Root{module}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if module.code != newCU {
		t.Error("expected module's CodeUnit to be swapped")
	}
}

func TestReplace_SkipsLiveTopFrame(t *testing.T) {
	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	newCU := &bytecode.CodeUnit{Filename: "a.py"}
	frame := &fakeRoot{name: "frame", code: oldCU, topFrame: true}

	Replace([]Root{frame}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if frame.code != oldCU {
		t.Error("a live top frame's CodeUnit must never be swapped")
	}
}

func TestReplace_WalksChildrenBreadthFirst(t *testing.T) {
	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	newCU := &bytecode.CodeUnit{Filename: "a.py"}
	fn := &fakeRoot{name: "fn", code: oldCU}
	class := &fakeRoot{name: "class", children: []Root{fn}}
	module := &fakeRoot{name: "module", children: []Root{class}}

	Replace([]Root{module}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if fn.code != newCU {
		t.Error("expected the nested function root to be reached and swapped")
	}
}

func TestReplace_CycleVisitsEachRootOnce(t *testing.T) {
	a := &fakeRoot{name: "a"}
	b := &fakeRoot{name: "b"}
	a.children = []Root{b}
	b.children = []Root{a} // cycle back to a

	visits := 0
	a.onSet = func(*bytecode.CodeUnit) { visits++ }
	b.onSet = func(*bytecode.CodeUnit) { visits++ }

	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	a.code = oldCU
	b.code = oldCU
	newCU := &bytecode.CodeUnit{Filename: "a.py"}

	errs := Replace([]Root{a}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if visits != 2 {
		t.Fatalf("expected exactly one swap per root despite the cycle, got %d", visits)
	}
}

func TestReplace_PanicOnOneRootIsIsolated(t *testing.T) {
	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	newCU := &bytecode.CodeUnit{Filename: "a.py"}
	bad := &fakeRoot{name: "bad", code: oldCU, panics: true}
	good := &fakeRoot{name: "good", code: oldCU}

	errs := Replace([]Root{bad, good}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if len(errs) != 1 {
		t.Fatalf("expected exactly one error from the panicking root, got %d: %v", len(errs), errs)
	}
	var target interface{ Error() string }
	if !errors.As(errs[0], &target) {
		t.Fatalf("expected errs[0] to satisfy error, got %T", errs[0])
	}
	if good.code != newCU {
		t.Error("expected the other root to still be swapped despite the first root's panic")
	}
	if bad.code != oldCU {
		t.Error("expected the panicking root's CodeUnit to stay unswapped")
	}
}

func TestReplace_UnrelatedCodeUnitUntouched(t *testing.T) {
	other := &bytecode.CodeUnit{Filename: "b.py"}
	root := &fakeRoot{name: "root", code: other}

	oldCU := &bytecode.CodeUnit{Filename: "a.py"}
	newCU := &bytecode.CodeUnit{Filename: "a.py"}
	Replace([]Root{root}, map[*bytecode.CodeUnit]*bytecode.CodeUnit{oldCU: newCU})

	if root.code != other {
		t.Error("a root holding an unrelated CodeUnit must be left alone")
	}
}
