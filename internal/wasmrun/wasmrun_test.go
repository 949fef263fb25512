package wasmrun_test

import (
	"testing"

	"github.com/wasm-superopt/rocinante/internal/oracle"
	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
	"github.com/wasm-superopt/rocinante/internal/wasmrun"
)

func sig1to1() wasm.FunctionSig {
	return wasm.FunctionSig{
		ParamTypes:  []wasm.ValueType{wasm.ValueTypeI32},
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	}
}

// S1 - times-two via add: local.get 0; local.get 0; i32.add; end.
func TestRunTimesTwoViaAdd(t *testing.T) {
	desc := stoke.NewDescriptor(sig1to1(), nil, nil)
	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Add},
	}
	binary := append([]byte{}, desc.GetBinaryWithInstrs(seq)...)

	out, err := (wasmrun.Native{}).Run(binary, []int32{21})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != oracle.TrapNone || out.Values[0] != 42 {
		t.Fatalf("Run(21) = %+v, want 42", out)
	}
}

// S1's candidate: local.get 0; i32.const 2; i32.mul; end.
func TestRunTimesTwoViaMul(t *testing.T) {
	desc := stoke.NewDescriptor(sig1to1(), nil, nil)
	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: 2},
		{Op: stoke.OpI32Mul},
	}
	binary := append([]byte{}, desc.GetBinaryWithInstrs(seq)...)

	out, err := (wasmrun.Native{}).Run(binary, []int32{21})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != oracle.TrapNone || out.Values[0] != 42 {
		t.Fatalf("Run(21) = %+v, want 42", out)
	}
}

func TestRunDivisionByZeroTraps(t *testing.T) {
	desc := stoke.NewDescriptor(sig1to1(), nil, nil)
	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: 0},
		{Op: stoke.OpI32DivS},
	}
	binary := append([]byte{}, desc.GetBinaryWithInstrs(seq)...)

	out, err := (wasmrun.Native{}).Run(binary, []int32{7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != oracle.TrapDivisionByZero {
		t.Fatalf("Run = %+v, want TrapDivisionByZero", out)
	}
}

func TestRunSignedDivisionOverflowTraps(t *testing.T) {
	desc := stoke.NewDescriptor(sig1to1(), nil, nil)
	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: -1},
		{Op: stoke.OpI32DivS},
	}
	binary := append([]byte{}, desc.GetBinaryWithInstrs(seq)...)

	out, err := (wasmrun.Native{}).Run(binary, []int32{-2147483648})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Err != oracle.TrapIntegerOverflow {
		t.Fatalf("Run = %+v, want TrapIntegerOverflow", out)
	}
}

func TestRunLocalTee(t *testing.T) {
	desc := stoke.NewDescriptor(wasm.FunctionSig{
		ParamTypes:  []wasm.ValueType{wasm.ValueTypeI32},
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	}, []wasm.ValueType{wasm.ValueTypeI32}, nil)
	seq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalTee, Index: 1},
		{Op: stoke.OpLocalGet, Index: 1},
		{Op: stoke.OpI32Add},
	}
	binary := append([]byte{}, desc.GetBinaryWithInstrs(seq)...)

	out, err := (wasmrun.Native{}).Run(binary, []int32{10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Values[0] != 20 {
		t.Fatalf("Run(10) = %+v, want 20", out)
	}
}
