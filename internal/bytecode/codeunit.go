package bytecode

// CodeUnit is one compiled unit of the host: a function body, module body,
// class body, or comprehension (spec.md §3). Identity is reference-based —
// two CodeUnits are never compared by content, only by pointer — because the
// Replacer (internal/replacer) must be able to tell "this exact object" from
// "an equal-looking one" when it swaps old code for de-instrumented code.
//
// A CodeUnit is produced by a host compiler (out of scope here — tests build
// one directly via internal/hostvm's assembler helper), possibly replaced by
// the Replacer, and eventually destroyed by the host's garbage collector.
type CodeUnit struct {
	Filename string

	// Code is the raw instruction stream: WordSize-byte [opcode, arg] pairs.
	Code []byte

	Lines      LineTable
	Exceptions ExceptionTable

	// ConstPool holds every constant the instruction stream's LOAD_CONST
	// operands index into, including probe callables and capsules the
	// Editor appends during instrumentation.
	ConstPool []any

	FreeVars []string
	CellVars []string

	// StackSize is the maximum operand-stack depth this CodeUnit's frame
	// must allocate. The Editor bumps it when it inserts a probe call
	// (spec.md §4.B step 5).
	StackSize int
}

// Clone returns a CodeUnit with its own Code/ConstPool/FreeVars/CellVars/
// Exceptions backing arrays, so the Editor can build a new CodeUnit without
// mutating the one still referenced by a live frame (invariant I6). Lines is
// copied by value, which shares its underlying runs slice with c.Lines — safe
// only because metadata.go always rebuilds Lines wholesale rather than
// mutating runs in place; a future in-place editor of Lines would need to
// deep-copy here first. StackSize is a plain value type and copies
// automatically.
func (c *CodeUnit) Clone() *CodeUnit {
	clone := &CodeUnit{
		Filename:  c.Filename,
		Code:      append([]byte(nil), c.Code...),
		Lines:     c.Lines,
		StackSize: c.StackSize,
	}
	clone.Exceptions = append(ExceptionTable(nil), c.Exceptions...)
	clone.ConstPool = append([]any(nil), c.ConstPool...)
	clone.FreeVars = append([]string(nil), c.FreeVars...)
	clone.CellVars = append([]string(nil), c.CellVars...)
	return clone
}

// InstructionCount returns the number of [opcode, arg] words in Code.
func (c *CodeUnit) InstructionCount() int {
	return len(c.Code) / WordSize
}

// OpcodeAt returns the opcode at byte offset off.
func (c *CodeUnit) OpcodeAt(off int) Opcode {
	return Opcode(c.Code[off])
}

// ArgAt returns the raw (single-byte, pre-EXTENDED_ARG) argument at byte
// offset off.
func (c *CodeUnit) ArgAt(off int) byte {
	return c.Code[off+1]
}
