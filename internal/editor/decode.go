package editor

import (
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/covcfg"
)

// decode scans code's instruction stream, respecting the EXTENDED_ARG
// prefix-chain convention, and produces the mutable element list (spec.md
// §4.B step 1). Each element records the line its first byte maps to.
func decode(code *bytecode.CodeUnit) ([]*instrElem, error) {
	var elems []*instrElem
	byOffset := make(map[int]*instrElem)

	off := 0
	for off < len(code.Code) {
		start := off
		ext := 0
		for off < len(code.Code) && bytecode.Opcode(code.Code[off]) == bytecode.EXTENDED_ARG {
			ext = ext<<8 | int(code.Code[off+1])
			off += bytecode.WordSize
		}
		if off >= len(code.Code) {
			return nil, &covcfg.BytecodeError{Filename: code.Filename, Reason: "EXTENDED_ARG prefix chain runs past the end of Code"}
		}

		op := bytecode.Opcode(code.Code[off])
		arg := ext<<8 | int(code.Code[off+1])
		off += bytecode.WordSize

		line, _ := code.Lines.LineAt(start)
		e := &instrElem{
			Op:             op,
			Arg:            arg,
			Line:           line,
			origOffset:     start,
			origNextOffset: off,
		}
		elems = append(elems, e)
		byOffset[start] = e
	}

	if err := resolveTargets(elems, byOffset); err != nil {
		return nil, err
	}
	return elems, nil
}
