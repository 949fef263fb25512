package stoke_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Invariant 6: deserialize(Spec.get_binary_with_instrs(seq)) yields a
// module whose exported function body equals seq ++ end.
func TestGetBinaryWithInstrsRoundTrips(t *testing.T) {
	sig := wasm.FunctionSig{
		ParamTypes:  []wasm.ValueType{wasm.ValueTypeI32},
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	}
	original := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Add},
		stoke.End(),
	}
	desc := stoke.NewDescriptor(sig, nil, original)

	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: 2},
		{Op: stoke.OpI32Mul},
	}

	raw := desc.GetBinaryWithInstrs(seq)
	m, err := wasm.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	idx, ok := m.Exports[stoke.ExportName]
	if !ok {
		t.Fatalf("no export named %q", stoke.ExportName)
	}
	got, err := stoke.DecodeSequence(m.Code[idx].Code)
	if err != nil {
		t.Fatalf("DecodeSequence: %v", err)
	}

	want := append(append([]stoke.Instruction{}, seq...), stoke.End())
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestNumInstrsExcludesTerminalEnd(t *testing.T) {
	sig := wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Add},
		stoke.End(),
	}
	desc := stoke.NewDescriptor(sig, nil, body)
	if desc.NumInstrs() != 3 {
		t.Fatalf("NumInstrs() = %d, want 3", desc.NumInstrs())
	}
}
