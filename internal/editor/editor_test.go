package editor

import (
	"testing"

	"github.com/plasma-umass/slipcover/internal/bytecode"
	"github.com/plasma-umass/slipcover/internal/hostvm"
)

// sumLoop mirrors hostvm's own fixture: total = 0; while n>0 { total+=n;
// n-=1 }; return total. Built directly with hostvm.Builder so the editor's
// test is independent of the hostvm test file.
func sumLoop() *bytecode.CodeUnit {
	b := hostvm.NewBuilder("loop.src")
	zero := b.Const(0)
	one := b.Const(1)

	b.SetLine(10).
		Emit(bytecode.LOAD_CONST, byte(zero)).
		Emit(bytecode.STORE_FAST, 1)

	b.Label("loop_start")
	b.SetLine(11).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.LOAD_CONST, byte(zero)).
		Emit(bytecode.COMPARE_GT, 0).
		EmitJump(bytecode.POP_JUMP_IF_FALSE, "loop_end")

	b.SetLine(12).
		Emit(bytecode.LOAD_FAST, 1).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.BINARY_ADD, 0).
		Emit(bytecode.STORE_FAST, 1)

	b.SetLine(13).
		Emit(bytecode.LOAD_FAST, 0).
		Emit(bytecode.LOAD_CONST, byte(one)).
		Emit(bytecode.BINARY_SUBTRACT, 0).
		Emit(bytecode.STORE_FAST, 0).
		EmitJump(bytecode.JUMP_BACKWARD, "loop_start")

	b.Label("loop_end")
	b.SetLine(14).
		Emit(bytecode.LOAD_FAST, 1).
		Emit(bytecode.RETURN_VALUE, 0)

	return b.Build()
}

func TestInstrument_PreservesSemantics(t *testing.T) {
	code := sumLoop()
	keys := []bytecode.Key{bytecode.LineKey(11), bytecode.LineKey(12), bytecode.LineKey(14)}
	capsules := map[bytecode.Key]any{
		bytecode.LineKey(11): "cap-11",
		bytecode.LineKey(12): "cap-12",
		bytecode.LineKey(14): "cap-14",
	}

	var fired []string
	signal := hostvm.Callable(func(args ...any) any {
		fired = append(fired, args[0].(string))
		return nil
	})

	instrumented, sites, err := Instrument(code, keys, signal, capsules)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if len(sites) != 3 {
		t.Fatalf("expected 3 probe sites, got %d", len(sites))
	}

	got, err := hostvm.Run(instrumented, 3)
	if err != nil {
		t.Fatalf("Run instrumented: %v", err)
	}
	if got != 6 {
		t.Errorf("instrumented Run(3) = %v, want 6 (same result as uninstrumented)", got)
	}
	if len(fired) == 0 {
		t.Error("expected at least one probe to fire")
	}

	want, err := hostvm.Run(code, 3)
	if err != nil {
		t.Fatalf("Run original: %v", err)
	}
	if got != want {
		t.Errorf("instrumented result %v diverged from original result %v", got, want)
	}
}

func TestInstrument_InsertsFixedLengthSites(t *testing.T) {
	code := sumLoop()
	keys := []bytecode.Key{bytecode.LineKey(11)}
	capsules := map[bytecode.Key]any{bytecode.LineKey(11): "cap"}
	signal := hostvm.Callable(func(args ...any) any { return nil })

	_, sites, err := Instrument(code, keys, signal, capsules)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	for _, s := range sites {
		if s.InsertLen != InsertLen {
			t.Errorf("site InsertLen = %d, want %d", s.InsertLen, InsertLen)
		}
	}
}

func TestInstrument_LineTableMapsInsertedBytesToTrackedLine(t *testing.T) {
	code := sumLoop()
	keys := []bytecode.Key{bytecode.LineKey(12)}
	capsules := map[bytecode.Key]any{bytecode.LineKey(12): "cap"}
	signal := hostvm.Callable(func(args ...any) any { return nil })

	instrumented, sites, err := Instrument(code, keys, signal, capsules)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}

	site := sites[0]
	line, ok := instrumented.Lines.LineAt(site.Offset)
	if !ok || line != 12 {
		t.Errorf("probe insert at offset %d maps to line (%d,%v), want 12", site.Offset, line, ok)
	}
}

func TestDeinstrument_PreservesSizeAndSkipsProbe(t *testing.T) {
	code := sumLoop()
	keys := []bytecode.Key{bytecode.LineKey(12)}
	capsules := map[bytecode.Key]any{bytecode.LineKey(12): "cap"}

	var fired int
	signal := hostvm.Callable(func(args ...any) any {
		fired++
		return nil
	})

	instrumented, sites, err := Instrument(code, keys, signal, capsules)
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}

	deinstrumented, err := Deinstrument(instrumented, sites)
	if err != nil {
		t.Fatalf("Deinstrument: %v", err)
	}
	if len(deinstrumented.Code) != len(instrumented.Code) {
		t.Fatalf("Deinstrument changed code length: %d -> %d", len(instrumented.Code), len(deinstrumented.Code))
	}

	got, err := hostvm.Run(deinstrumented, 3)
	if err != nil {
		t.Fatalf("Run deinstrumented: %v", err)
	}
	if got != 6 {
		t.Errorf("deinstrumented Run(3) = %v, want 6", got)
	}
	if fired != 0 {
		t.Errorf("expected the deinstrumented probe to never fire, got %d firings", fired)
	}
}

func TestInstrument_UnknownLineIsFatal(t *testing.T) {
	code := sumLoop()
	keys := []bytecode.Key{bytecode.LineKey(999)}
	capsules := map[bytecode.Key]any{bytecode.LineKey(999): "cap"}
	signal := hostvm.Callable(func(args ...any) any { return nil })

	if _, _, err := Instrument(code, keys, signal, capsules); err == nil {
		t.Fatal("expected an error instrumenting a line absent from the code")
	}
}
