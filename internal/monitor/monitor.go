// Package monitor implements the Monitoring Backend (spec.md §4.E): an
// alternate collection strategy for hosts that expose their own structured
// execution-event API, so the Bytecode Editor never has to touch a single
// byte. It is an alternative to bytecode editing: a host reports its own
// line/branch events through this package instead of being instrumented by
// internal/editor. Nothing in this package or in internal/driver keeps the
// two from being used together; covcfg.Config.Backend records the choice,
// and the Driver does not read it.
package monitor

import "github.com/plasma-umass/slipcover/internal/bytecode"

// HostMonitor is the structured monitoring API an embedding host
// implements when it can report execution events itself. fn passed to
// either method must be cheap and non-blocking — it runs on the host's
// hot execution path, the same constraint spec.md §4.A places on a
// Probe's Signal.
type HostMonitor interface {
	// OnLine registers fn to run every time the host executes line in
	// filename.
	OnLine(filename string, line int, fn func())
	// OnBranch registers fn to run every time the host takes the (src,
	// dst) control-flow edge in filename.
	OnBranch(filename string, src, dst int, fn func())
}

// recorder is the minimal slice of probe.Recorder this backend needs: it
// never asks for a deinstrument round, since there is nothing here for the
// Editor to remove.
type recorder interface {
	RecordKey(filename string, key bytecode.Key)
}

// Backend is the Driver-side HostMonitor consumer: for every key the
// Driver wants tracked, it registers one closure against the host and
// wires it straight to recorder.RecordKey, bypassing internal/editor and
// internal/probe entirely (spec.md §9's capability-object resolution,
// applied here instead of a second dynamic lookup path).
type Backend struct {
	host     HostMonitor
	recorder recorder
}

// New is the sole constructor. It is infallible: a Backend is always ready
// for TrackLine/TrackBranch once returned.
func New(host HostMonitor, rec recorder) *Backend {
	return &Backend{host: host, recorder: rec}
}

// TrackLine registers a callback for filename:line with the host so every
// future execution of that line is recorded.
func (b *Backend) TrackLine(filename string, line int) {
	key := bytecode.LineKey(line)
	b.host.OnLine(filename, line, func() {
		b.recorder.RecordKey(filename, key)
	})
}

// TrackBranch registers a callback for the (src, dst) edge in filename with
// the host so every future traversal of that edge is recorded.
func (b *Backend) TrackBranch(filename string, src, dst int) {
	key := bytecode.BranchKey(src, dst)
	b.host.OnBranch(filename, src, dst, func() {
		b.recorder.RecordKey(filename, key)
	})
}
