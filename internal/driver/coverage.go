package driver

// reportVersion identifies the shape of the persisted coverage document
// (spec.md §6), so a future incompatible change can be detected by a reader
// instead of silently misparsed.
const reportVersion = "1"

// Report is the top-level persisted coverage document. encoding/json
// already sorts map[string]V keys lexicographically on Marshal, which is
// exactly the filename ordering spec.md §6 requires — no custom
// MarshalJSON is needed on top of the already-sorted per-file slices
// buildReport produces.
type Report struct {
	Meta  Meta                    `json:"meta"`
	Files map[string]FileCoverage `json:"files"`
}

// Meta carries document-level metadata a reader needs before looking at any
// per-file entry.
type Meta struct {
	Version string `json:"version"`
	Branch  bool   `json:"branch"`
}

// FileCoverage is one file's entry in a Report: every line execution
// reached at least once, and — in branch mode — every (src, dst) edge taken
// at least once. ExecutedBranches is always a subset consistent with
// ExecutedLines per invariant P7: both endpoints of every reported edge
// also appear in ExecutedLines.
type FileCoverage struct {
	ExecutedLines    []int    `json:"executed_lines"`
	ExecutedBranches [][2]int `json:"executed_branches,omitempty"`
}
