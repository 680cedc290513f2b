// Package probe implements the per-site hit state described in spec.md
// §4.A: the only hot-path object in the engine. A Probe must be small,
// branchless on the already-seen fast path, and must never allocate after
// construction.
package probe

import "github.com/plasma-umass/slipcover/internal/bytecode"

// Recorder is the capability object a Probe holds a non-owning back-
// reference to, instead of reaching into the Driver's internals directly.
// spec.md §9 flags "dynamic attribute lookup on the driver from probes" as
// something to replace with exactly this: an explicit capability carrying
// only the two operations a probe ever needs.
type Recorder interface {
	// RecordKey records that key was observed in filename. Called at most
	// once per Probe, on its first signal.
	RecordKey(filename string, key bytecode.Key)

	// RequestDeinstrument asks the Driver to schedule a deinstrument round.
	// The Driver may batch several requests into a single round; this call
	// never blocks on that round completing.
	RequestDeinstrument()
}
