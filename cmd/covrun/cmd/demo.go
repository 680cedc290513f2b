package cmd

import (
	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/hostvm"
	"github.com/plasma-umass/slipcover/internal/replacer"
)

// demoProgram builds the canonical sum-loop CodeUnit the run command
// instruments and executes: total = 0; while n>0 { total += n; n -= 1 };
// return total, on source lines 1-5.
func demoProgram() *bytecode.CodeUnit {
	b := hostvm.NewBuilder("demo.src")
	zero := b.Const(0)
	one := b.Const(1)

	b.SetLine(1).
		Emit(bytecode.LOAD_CONST, byte(zero)).
		Emit(bytecode.STORE_FAST, 1)

	b.Label("loop_start")
	b.SetLine(2).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.LOAD_CONST, byte(zero)).
		Emit(bytecode.COMPARE_GT, 0).
		EmitJump(bytecode.POP_JUMP_IF_FALSE, "loop_end")

	b.SetLine(3).
		Emit(bytecode.LOAD_FAST, 1).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.BINARY_ADD, 0).
		Emit(bytecode.STORE_FAST, 1)

	b.SetLine(4).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.LOAD_CONST, byte(one)).
		Emit(bytecode.BINARY_SUBTRACT, 0).
		Emit(bytecode.STORE_FAST, 0).
		EmitJump(bytecode.JUMP_BACKWARD, "loop_start")

	b.Label("loop_end")
	b.SetLine(5).
		Emit(bytecode.LOAD_FAST, 1).
		Emit(bytecode.RETURN_VALUE, 0)

	return b.Build()
}

// moduleRoot is the run command's stand-in for an embedding host's module
// namespace entry: a single replacer.Root with no children, never a live
// top frame (the CLI has already finished executing by the time a
// deinstrument round runs).
type moduleRoot struct {
	code *bytecode.CodeUnit
}

func (r *moduleRoot) CodeUnit() *bytecode.CodeUnit      { return r.code }
func (r *moduleRoot) SetCodeUnit(cu *bytecode.CodeUnit) { r.code = cu }
func (r *moduleRoot) IsLiveTopFrame() bool              { return false }
func (r *moduleRoot) Children() []replacer.Root         { return nil }
func (r *moduleRoot) Identity() any                     { return "demo-module" }
