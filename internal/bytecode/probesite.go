package bytecode

// ProbeSite is one insertion point inside a CodeUnit (spec.md §3). It is
// created by the Editor during instrumentation and retired — Instrumented
// set to false — after a deinstrument round. A ProbeSite never moves once
// created: Offset and InsertLen describe where the *original* insert landed,
// and stay valid across deinstrument because deinstrument never deletes
// bytes (spec.md §4.B: "No bytes are deleted; sizes are preserved").
type ProbeSite struct {
	Owner *CodeUnit

	// Offset is the byte offset of the first word of the insert (the
	// reserved NOP that immediate removal later overwrites).
	Offset int

	// InsertLen is the fixed byte length of this insert; it equals every
	// other ProbeSite's InsertLen for the same host version (invariant I1).
	InsertLen int

	Key Key

	Instrumented bool

	// DMiss counts probe firings that occurred while Instrumented was true,
	// excluding the first (spec.md glossary: "D-miss"). UMiss counts
	// firings that occurred after Instrumented went false.
	DMiss, UMiss int

	// immediateOffset mirrors Offset but is only meaningful once the host
	// has been handed a concrete, live backing array for Owner.Code — it is
	// the index immediate removal patches a single byte at. Kept distinct
	// from Offset so a ProbeSite can be constructed before the CodeUnit it
	// will live in is finalised.
	immediateOffset int
	immediateReady  bool
}

// NewProbeSite is the sole constructor. It always returns a ProbeSite ready
// to be attached to a Probe; there is no partially-initialised state.
func NewProbeSite(owner *CodeUnit, offset, insertLen int, key Key) *ProbeSite {
	return &ProbeSite{
		Owner:        owner,
		Offset:       offset,
		InsertLen:    insertLen,
		Key:          key,
		Instrumented: true,
	}
}

// ArmImmediate records that offset is safe for signal() to patch in place
// (the single reserved NOP byte of this site's insert). Called once, after
// the owning CodeUnit's backing array is final.
func (p *ProbeSite) ArmImmediate(offset int) {
	p.immediateOffset = offset
	p.immediateReady = true
}

// ImmediateOffset returns the byte offset of the reserved NOP and true if
// ArmImmediate was called for this site.
func (p *ProbeSite) ImmediateOffset() (int, bool) {
	return p.immediateOffset, p.immediateReady
}

// MarkRemoved retires the site after the Replacer has swapped its owning
// CodeUnit for a de-instrumented successor. Future signals from dormant
// frames still executing the old CodeUnit are now U-misses (spec.md §4.D
// state machine: Removed).
func (p *ProbeSite) MarkRemoved() {
	p.Instrumented = false
}
