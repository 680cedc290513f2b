// Package driver implements the Instrumentation Driver (spec.md §4.D): the
// component an embedding host actually talks to. It owns the seen-key sets,
// the registry of instrumented CodeUnits and their ProbeSites, and
// orchestrates the Editor and Replacer across a deinstrument round.
package driver

import (
	"sort"
	"sync"

	"github.com/plasma-umass/slipcover/internal/branch"
	"github.com/plasma-umass/slipcover/internal/branch/ast"
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
	"github.com/plasma-umass/slipcover/internal/diagnostics"
	"github.com/plasma-umass/slipcover/internal/editor"
	"github.com/plasma-umass/slipcover/internal/hostvm"
	"github.com/plasma-umass/slipcover/internal/probe"
	"github.com/plasma-umass/slipcover/internal/replacer"
)

// unitEntry is everything the Driver remembers about one instrumented
// CodeUnit: the current (possibly already de-instrumented) CodeUnit itself,
// its ProbeSites, and the Probe each site's key maps to.
type unitEntry struct {
	code   *bytecode.CodeUnit
	sites  []*bytecode.ProbeSite
	probes map[bytecode.Key]*probe.Probe
}

// Driver is the sole engine entry point an embedding host constructs
// (spec.md §6). It satisfies probe.Recorder so the probe-signal callable it
// installs in every instrumented CodeUnit can call straight back into it.
type Driver struct {
	mu  sync.Mutex
	cfg covcfg.Config
	log *diagnostics.Log

	newlySeen map[string]map[bytecode.Key]bool
	allSeen   map[string]map[bytecode.Key]bool

	units               map[string][]*unitEntry
	pendingDeinstrument bool
}

// New is the sole constructor. It validates cfg and returns a ConfigError if
// it is unusable, per spec.md §7's "ConfigError is always fatal" rule.
func New(cfg covcfg.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		cfg:       cfg,
		log:       diagnostics.NewLog("driver"),
		newlySeen: make(map[string]map[bytecode.Key]bool),
		allSeen:   make(map[string]map[bytecode.Key]bool),
		units:     make(map[string][]*unitEntry),
	}, nil
}

// Log returns the Driver's diagnostic log, for a host that wants to surface
// instrumentation-time warnings (e.g. a BytecodeError that left one
// CodeUnit uninstrumented) without aborting the run.
func (d *Driver) Log() *diagnostics.Log { return d.log }

// RecordKey implements probe.Recorder. It is called by a Probe's Signal the
// first time that probe fires.
func (d *Driver) RecordKey(filename string, key bytecode.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.newlySeen[filename] == nil {
		d.newlySeen[filename] = make(map[bytecode.Key]bool)
	}
	d.newlySeen[filename][key] = true
}

// RequestDeinstrument implements probe.Recorder. A Probe calls this once its
// D-miss count crosses Config.DMissThreshold; the actual deinstrument round
// only happens when the host later calls DeinstrumentSeen.
func (d *Driver) RequestDeinstrument() {
	d.mu.Lock()
	d.pendingDeinstrument = true
	d.mu.Unlock()
}

// PendingDeinstrument reports whether some probe has asked for a
// deinstrument round since the last one ran.
func (d *Driver) PendingDeinstrument() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingDeinstrument
}

// PreInstrumentSource rewrites stmts with branch sentinels if Config.Branch
// is set, returning the branch edges InstrumentCode must fold into that
// CodeUnit's tracked key set once the rewritten source is compiled
// (spec.md §4.C, §6). With Config.Branch false it is a no-op passthrough.
func (d *Driver) PreInstrumentSource(stmts []ast.Stmt, maxSourceLine int) ([]ast.Stmt, []branch.Edge) {
	if !d.cfg.Branch {
		return stmts, nil
	}
	return branch.Instrument(stmts, maxSourceLine)
}

// InstrumentCode instruments code in place of the host's own compiled
// CodeUnit and returns the replacement to actually run. branchEdges, if
// non-nil, came from a prior PreInstrumentSource call on the same source and
// are folded in by ProbeLine so each edge gets its own probe site — keying by
// Key.Line (the shared branching statement's source line) would let one
// edge's registration silently overwrite a sibling edge sharing that line.
//
// A CodeUnit excluded by Config.SourceFilter (scenario S4) is returned
// unmodified and is never added to the registry, so it can never appear in a
// coverage report or a deinstrument round.
func (d *Driver) InstrumentCode(code *bytecode.CodeUnit, branchEdges []branch.Edge) (*bytecode.CodeUnit, error) {
	if !d.cfg.Filter(code.Filename) {
		return code, nil
	}

	byLine := make(map[int]bytecode.Key)
	for _, line := range code.Lines.Lines() {
		byLine[line] = bytecode.LineKey(line)
	}
	for _, edge := range branchEdges {
		byLine[edge.ProbeLine] = edge.Key
	}
	// The editor places each probe by its key's Line, so every probe is
	// requested as the LineKey of the line it attaches to; the tracked key
	// itself travels as that probe's capsule and replaces site.Key below.
	keys := make([]bytecode.Key, 0, len(byLine))
	capsules := make(map[bytecode.Key]any, len(byLine))
	for line, k := range byLine {
		keys = append(keys, bytecode.LineKey(line))
		capsules[bytecode.LineKey(line)] = k
	}

	probes := make(map[bytecode.Key]*probe.Probe, len(keys))
	signal := hostvm.Callable(func(args ...any) any {
		if len(args) == 0 {
			return nil
		}
		key, ok := args[0].(bytecode.Key)
		if !ok {
			return nil
		}
		if p := probes[key]; p != nil {
			p.Signal()
		}
		return nil
	})

	instrumented, sites, err := editor.Instrument(code, keys, signal, capsules)
	if err != nil {
		d.log.Error("instrument failed, running uninstrumented").WithDetail(err.Error())
		return code, nil
	}

	for _, site := range sites {
		site.Key = byLine[site.Key.Line]
		p := probe.New(d, code.Filename, site.Key, d.cfg.DMissThreshold, site)
		if d.cfg.Immediate {
			p.SetImmediate(bytecode.JUMP_FORWARD, byte((editor.InsertLen-bytecode.WordSize)/bytecode.WordSize))
		}
		probes[site.Key] = p
	}

	d.mu.Lock()
	d.units[code.Filename] = append(d.units[code.Filename], &unitEntry{
		code:   instrumented,
		sites:  sites,
		probes: probes,
	})
	d.mu.Unlock()

	return instrumented, nil
}

// DeinstrumentSeen runs one deinstrument round (spec.md §4.D): every key
// recorded since the last round is folded into the permanent all_seen set,
// the corresponding ProbeSites are patched out via the Editor, and roots is
// walked by the Replacer to swap every live reference to an affected
// CodeUnit for its de-instrumented successor. roots is supplied by the
// embedding host — the Driver has no visibility into the host's object
// graph on its own.
//
// A per-root ReplacerError leaves that root's CodeUnit un-swapped and its
// Probes still reporting D-misses; it is recorded to the log rather than
// aborting the round for every other root (spec.md §7).
func (d *Driver) DeinstrumentSeen(roots []replacer.Root) error {
	d.mu.Lock()
	newlySeen := d.newlySeen
	d.newlySeen = make(map[string]map[bytecode.Key]bool)
	d.pendingDeinstrument = false
	for filename, keys := range newlySeen {
		if d.allSeen[filename] == nil {
			d.allSeen[filename] = make(map[bytecode.Key]bool)
		}
		for k := range keys {
			d.allSeen[filename][k] = true
		}
	}
	units := d.units
	d.mu.Unlock()

	replacement := make(map[*bytecode.CodeUnit]*bytecode.CodeUnit)
	var toMarkRemoved []*probe.Probe

	for filename, keys := range newlySeen {
		for _, entry := range units[filename] {
			var toRemove []*bytecode.ProbeSite
			for _, site := range entry.sites {
				if keys[site.Key] && site.Instrumented {
					toRemove = append(toRemove, site)
				}
			}
			if len(toRemove) == 0 {
				continue
			}
			newCode, err := editor.Deinstrument(entry.code, toRemove)
			if err != nil {
				d.log.Error("deinstrument failed, leaving CodeUnit instrumented").WithDetail(err.Error())
				continue
			}
			replacement[entry.code] = newCode
			entry.code = newCode
			for _, site := range toRemove {
				toMarkRemoved = append(toMarkRemoved, entry.probes[site.Key])
			}
		}
	}

	if len(replacement) == 0 {
		return nil
	}

	for _, err := range replacer.Replace(roots, replacement) {
		d.log.Error("replacer failed for one root").WithDetail(err.Error())
	}

	for _, p := range toMarkRemoved {
		p.MarkRemoved()
	}
	return nil
}

// GetCoverage drains newly_seen into all_seen and returns the accumulated
// coverage as of this call (spec.md §4.D get_coverage(), §6 persisted
// shape). Calling it does not itself trigger a deinstrument round.
func (d *Driver) GetCoverage() *Report {
	d.mu.Lock()
	for filename, keys := range d.newlySeen {
		if d.allSeen[filename] == nil {
			d.allSeen[filename] = make(map[bytecode.Key]bool)
		}
		for k := range keys {
			d.allSeen[filename][k] = true
		}
	}
	d.newlySeen = make(map[string]map[bytecode.Key]bool)

	snapshot := make(map[string]map[bytecode.Key]bool, len(d.allSeen))
	for filename, keys := range d.allSeen {
		cp := make(map[bytecode.Key]bool, len(keys))
		for k := range keys {
			cp[k] = true
		}
		snapshot[filename] = cp
	}
	d.mu.Unlock()

	return buildReport(snapshot, d.cfg.Branch)
}

func buildReport(seen map[string]map[bytecode.Key]bool, branchMode bool) *Report {
	report := &Report{
		Files: make(map[string]FileCoverage, len(seen)),
		Meta:  Meta{Version: reportVersion, Branch: branchMode},
	}

	filenames := make([]string, 0, len(seen))
	for filename := range seen {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	for _, filename := range filenames {
		lineSet := make(map[int]bool)
		var edges [][2]int
		for k := range seen[filename] {
			for _, line := range k.Lines() {
				lineSet[line] = true
			}
			if k.IsBranch() {
				edges = append(edges, [2]int{k.Line, k.Dst})
			}
		}

		lines := make([]int, 0, len(lineSet))
		for l := range lineSet {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		sort.Slice(edges, func(i, j int) bool {
			if edges[i][0] != edges[j][0] {
				return edges[i][0] < edges[j][0]
			}
			return edges[i][1] < edges[j][1]
		})

		report.Files[filename] = FileCoverage{ExecutedLines: lines, ExecutedBranches: edges}
	}

	return report
}
