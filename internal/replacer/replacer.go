package replacer

import (
	"fmt"

	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
)

// Replace walks every Root reachable from roots breadth-first, keyed by
// Identity() to break cycles, and swaps in replacement[old] wherever it
// finds a root currently holding one of replacement's keys — except a root
// that reports IsLiveTopFrame, which is never touched (invariant I6: a
// currently-executing top frame keeps running the CodeUnit it started
// with).
//
// A panic recovered while visiting one root is turned into a ReplacerError
// and that root is simply left unswapped; every other root in the walk
// still gets visited (spec.md §7: "rolled back for the affected root
// only").
func Replace(roots []Root, replacement map[*bytecode.CodeUnit]*bytecode.CodeUnit) []error {
	var errs []error
	visited := make(map[any]bool)
	queue := append([]Root(nil), roots...)

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		id := r.Identity()
		if visited[id] {
			continue
		}
		visited[id] = true

		if err := visit(r, replacement); err != nil {
			errs = append(errs, err)
		}

		queue = append(queue, r.Children()...)
	}

	return errs
}

func visit(r Root, replacement map[*bytecode.CodeUnit]*bytecode.CodeUnit) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &covcfg.ReplacerError{Root: fmt.Sprint(r.Identity()), Reason: fmt.Sprint(rec)}
		}
	}()

	if r.IsLiveTopFrame() {
		return nil
	}
	cu := r.CodeUnit()
	if cu == nil {
		return nil
	}
	if newCU, ok := replacement[cu]; ok {
		r.SetCodeUnit(newCU)
	}
	return nil
}
