package editor

import (
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
	"github.com/plasma-umass/slipcover/internal/hostvm"
)

// Instrument returns a semantically equivalent CodeUnit with a probe
// prelude inserted before the first instruction on each key's line, plus
// one bytecode.ProbeSite per key describing where it landed (spec.md
// §4.B's public contract). signal is the single probe-signal callable
// shared by every inserted call; capsules supplies the per-key opaque
// value passed to it. Instrument never mutates code; it works on a clone.
func Instrument(code *bytecode.CodeUnit, keys []bytecode.Key, signal hostvm.Callable, capsules map[bytecode.Key]any) (*bytecode.CodeUnit, []*bytecode.ProbeSite, error) {
	clone := code.Clone()

	elems, err := decode(clone)
	if err != nil {
		return nil, nil, err
	}

	consts := append([]any(nil), clone.ConstPool...)
	elems, insertions, err := insertProbes(elems, keys, &consts, signal, capsules)
	if err != nil {
		return nil, nil, err
	}

	newBytes, offsetMap, err := reencode(elems, clone.Filename)
	if err != nil {
		return nil, nil, err
	}

	lines, exceptions, stackSize := rebuildMetadata(elems, len(newBytes), clone.Exceptions, offsetMap, clone.StackSize, len(insertions) > 0)

	result := &bytecode.CodeUnit{
		Filename:   clone.Filename,
		Code:       newBytes,
		Lines:      lines,
		Exceptions: exceptions,
		ConstPool:  consts,
		FreeVars:   clone.FreeVars,
		CellVars:   clone.CellVars,
		StackSize:  stackSize,
	}

	sites := make([]*bytecode.ProbeSite, 0, len(insertions))
	for _, ins := range insertions {
		site := bytecode.NewProbeSite(result, ins.nop.offset, InsertLen, ins.key)
		site.ArmImmediate(ins.nop.offset)
		sites = append(sites, site)
	}

	return result, sites, nil
}

// Deinstrument returns a CodeUnit in which every listed site's insert
// begins with an unconditional forward jump spanning the rest of the
// insert. No bytes are deleted or moved — sizes are preserved exactly,
// which is what lets the Replacer swap this CodeUnit in for frames that
// may resume mid-insert (spec.md §4.B's deinstrument contract).
func Deinstrument(code *bytecode.CodeUnit, sites []*bytecode.ProbeSite) (*bytecode.CodeUnit, error) {
	clone := code.Clone()
	skip := byte((InsertLen - bytecode.WordSize) / bytecode.WordSize)

	for _, s := range sites {
		if s.Offset < 0 || s.Offset+1 >= len(clone.Code) {
			return nil, &covcfg.BytecodeError{Filename: clone.Filename, Reason: "probe site offset out of range for this CodeUnit"}
		}
		clone.Code[s.Offset] = byte(bytecode.JUMP_FORWARD)
		clone.Code[s.Offset+1] = skip
	}

	return clone, nil
}
