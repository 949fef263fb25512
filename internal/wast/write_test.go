package wast_test

import (
	"strings"
	"testing"

	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
	"github.com/wasm-superopt/rocinante/internal/wast"
)

func TestWriteFunctionTimesTwoViaMul(t *testing.T) {
	sig := wasm.FunctionSig{
		ParamTypes:  []wasm.ValueType{wasm.ValueTypeI32},
		ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32},
	}
	body := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: 2},
		{Op: stoke.OpI32Mul},
		stoke.End(),
	}

	text := wast.WriteFunction(stoke.ExportName, sig, nil, body)

	for _, want := range []string{
		"(module",
		"(func $candidate",
		"(param i32) (result i32)",
		"local.get 0",
		"i32.const 2",
		"i32.mul",
		`(export "candidate" (func 0))`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestWriteFunctionRendersDeclaredLocals(t *testing.T) {
	sig := wasm.FunctionSig{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []stoke.Instruction{stoke.End()}
	text := wast.WriteFunction("candidate", sig, []wasm.ValueType{wasm.ValueTypeI32}, body)
	if !strings.Contains(text, "(local i32)") {
		t.Fatalf("output missing declared local:\n%s", text)
	}
}
