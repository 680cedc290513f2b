// Package replacer implements the Code-Object Replacer: given a map of
// old CodeUnits to their de-instrumented successors, it walks the
// embedding host's live object graph breadth-first and swaps every
// reference it finds, skipping any root that is a live thread's top frame
// (spec.md §4.F).
package replacer

import "github.com/plasma-umass/slipcover/internal/bytecode"

// Root is one node of the host's live object graph the Replacer can visit:
// a module namespace entry, a class attribute dict entry, a function
// object, an inner CodeUnit's constant-pool slot, or a suspended frame.
// The embedding host implements Root over its own data structures; this
// package never constructs one itself.
type Root interface {
	// CodeUnit returns the CodeUnit this root currently references, or nil
	// if this root does not hold one directly (it may still have Children
	// that do).
	CodeUnit() *bytecode.CodeUnit

	// SetCodeUnit installs replacement as this root's CodeUnit. Never
	// called if IsLiveTopFrame reports true.
	SetCodeUnit(replacement *bytecode.CodeUnit)

	// IsLiveTopFrame reports whether this root is the top frame of a
	// currently-executing thread. Such roots are never swapped — this is
	// the walk's only synchronization primitive (invariant I6).
	IsLiveTopFrame() bool

	// Children returns every Root directly reachable from this one.
	Children() []Root

	// Identity returns a value stable across calls and comparable with
	// ==, used to break cycles with a visited set keyed by object
	// identity.
	Identity() any
}
