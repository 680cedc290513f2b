package probe

import (
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
)

// Probe is the runtime companion to a bytecode.ProbeSite (spec.md §4.A).
// Its lifetime is tied to the CodeUnit that references it as a constant —
// once that CodeUnit is collected, so is the Probe. A Probe is deliberately
// small: a back-reference, a (filename, key) tuple, a threshold, its site,
// signalled/removed flags, a hit count, and the immediate-removal patch.
// The D-miss and U-miss counters live on the ProbeSite it wraps so the
// Editor and diagnostics can read them without going through the Probe
// itself.
type Probe struct {
	recorder  Recorder
	filename  string
	key       bytecode.Key
	threshold int
	site      *bytecode.ProbeSite

	signalled bool
	removed   bool
	hitCount  int

	immediateArmed bool
	immediateOp    bytecode.Opcode
	immediateSkip  byte

	onInternalError func(error)
}

// New is the sole constructor. It is infallible and always returns a Probe
// ready for Signal() to be called.
func New(recorder Recorder, filename string, key bytecode.Key, threshold int, site *bytecode.ProbeSite) *Probe {
	return &Probe{
		recorder:  recorder,
		filename:  filename,
		key:       key,
		threshold: threshold,
		site:      site,
	}
}

// OnInternalError registers a callback invoked (instead of panicking out)
// when Signal hits an internal error. Optional; a nil callback just
// discards the error, matching "signal() never raises" (spec.md §4.A).
func (p *Probe) OnInternalError(fn func(error)) *Probe {
	p.onInternalError = fn
	return p
}

// SetImmediate arms immediate single-byte removal: op is the host's
// unconditional forward jump opcode, and skip is its argument, pre-
// calibrated by the Editor to span the rest of this site's insert
// (spec.md §4.A, §4.B step 3 — the reserved leading NOP is the byte this
// patches).
func (p *Probe) SetImmediate(op bytecode.Opcode, skip byte) {
	p.immediateArmed = true
	p.immediateOp = op
	p.immediateSkip = skip
}

// WasRemoved reports whether this Probe has already self-disabled via
// immediate removal. It says nothing about whether the owning CodeUnit has
// itself been replaced — that is MarkRemoved's job.
func (p *Probe) WasRemoved() bool {
	return p.removed
}

// Hits, DMisses, and UMisses expose the diagnostic counters described in
// spec.md §4.A.
func (p *Probe) Hits() int    { return p.hitCount }
func (p *Probe) DMisses() int { return p.site.DMiss }
func (p *Probe) UMisses() int { return p.site.UMiss }

// MarkRemoved is called by the Driver after the Replacer has swapped this
// probe's owning CodeUnit for a de-instrumented successor. Firings from
// dormant frames still running the old CodeUnit now count as U-misses
// rather than D-misses (spec.md §4.A mark_removed()).
func (p *Probe) MarkRemoved() {
	p.removed = true
	p.site.MarkRemoved()
}

// Signal is invoked by the inserted instruction sequence every time control
// passes through this probe's site. It never panics: an internal error is
// reported through onInternalError (if set) and Signal returns normally, per
// spec.md §4.A.
func (p *Probe) Signal() {
	defer func() {
		if r := recover(); r != nil {
			if p.onInternalError != nil {
				p.onInternalError(&covcfg.ProbeRuntimeError{
					Filename: p.filename,
					Key:      p.key.String(),
					Reason:   internalErrorReason(r),
				})
			}
		}
	}()

	if p.removed || !p.site.Instrumented {
		p.site.UMiss++
		return
	}

	p.hitCount++

	if !p.signalled {
		p.signalled = true
		p.recorder.RecordKey(p.filename, p.key)

		if p.threshold == covcfg.ThresholdRemoveOnly {
			p.selfRemove()
		}
		return
	}

	if p.threshold == covcfg.ThresholdNeverRemove {
		return
	}

	p.site.DMiss++
	if p.threshold >= 0 && p.site.DMiss >= p.threshold {
		if p.immediateArmed {
			p.selfRemove()
			return
		}
		p.recorder.RequestDeinstrument()
	}
}

// selfRemove performs the single-byte immediate patch described in spec.md
// §4.A: it overwrites the insert's reserved leading NOP with a calibrated
// unconditional forward jump and marks the Probe removed. The byte write is
// the only mutation to live CodeUnit bytes outside a full deinstrument round
// (spec.md §5).
func (p *Probe) selfRemove() {
	if off, ok := p.site.ImmediateOffset(); ok && p.immediateArmed {
		code := p.site.Owner.Code
		code[off] = byte(p.immediateOp)
		code[off+1] = p.immediateSkip
	}
	p.removed = true
	p.site.MarkRemoved()
}

func internalErrorReason(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic in signal()"
}
