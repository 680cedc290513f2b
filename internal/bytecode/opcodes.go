package bytecode

// Opcode identifies a single virtual-machine instruction. Instructions are
// fixed-width words: one opcode byte followed by one argument byte, mirroring
// the CPython "wordcode" layout that original_source/ (plasma-umass/
// slipcover) targets (see SPEC_FULL.md §0).
type Opcode byte

// WordSize is the number of bytes occupied by a single [opcode, arg] pair.
// Every instruction — including EXTENDED_ARG and the probe prelude — is a
// whole number of words; there are no byte-granular instructions.
const WordSize = 2

const (
	NOP Opcode = iota
	// EXTENDED_ARG shifts its argument eight bits into the following
	// instruction's argument, the host's "prefix-instruction convention for
	// extended operands" referenced throughout spec.md §4.B. A chain of N
	// EXTENDED_ARG words widens the next instruction's effective operand by
	// 8*N bits.
	EXTENDED_ARG

	LOAD_CONST
	LOAD_FAST
	STORE_FAST

	BINARY_ADD
	BINARY_SUBTRACT
	COMPARE_GT

	POP_JUMP_IF_FALSE
	JUMP_FORWARD
	JUMP_BACKWARD

	CALL_FUNCTION
	POP_TOP
	RETURN_VALUE
)

var names = map[Opcode]string{
	NOP:               "NOP",
	EXTENDED_ARG:      "EXTENDED_ARG",
	LOAD_CONST:        "LOAD_CONST",
	LOAD_FAST:         "LOAD_FAST",
	STORE_FAST:        "STORE_FAST",
	BINARY_ADD:        "BINARY_ADD",
	BINARY_SUBTRACT:   "BINARY_SUBTRACT",
	COMPARE_GT:        "COMPARE_GT",
	POP_JUMP_IF_FALSE: "POP_JUMP_IF_FALSE",
	JUMP_FORWARD:      "JUMP_FORWARD",
	JUMP_BACKWARD:     "JUMP_BACKWARD",
	CALL_FUNCTION:     "CALL_FUNCTION",
	POP_TOP:           "POP_TOP",
	RETURN_VALUE:      "RETURN_VALUE",
}

// String returns the mnemonic for the opcode, or "UNKNOWN" if it is not
// one the virtual machine recognises.
func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// IsAbsoluteJump reports whether op's argument is an absolute word offset
// into the same CodeUnit rather than a relative displacement or a plain
// value.
func IsAbsoluteJump(op Opcode) bool {
	return op == JUMP_BACKWARD
}

// IsRelativeJump reports whether op's argument is a displacement, measured in
// words, from the instruction immediately following it.
func IsRelativeJump(op Opcode) bool {
	return op == JUMP_FORWARD || op == POP_JUMP_IF_FALSE
}

// IsJump reports whether op can transfer control away from the next
// instruction in program order.
func IsJump(op Opcode) bool {
	return IsAbsoluteJump(op) || IsRelativeJump(op)
}

// IsConditionalJump reports whether op only jumps for some stack states —
// the instruction still falls through to the next word on the other branch.
func IsConditionalJump(op Opcode) bool {
	return op == POP_JUMP_IF_FALSE
}
