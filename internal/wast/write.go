// Package wast renders a whitelisted instruction sequence as WASM text,
// grounded on go-interpreter/wagon/wast/write.go, trimmed identically:
// with no blocks, branches, calls, or memory ops to render, writeCode's
// switch collapses to the whitelist's instructions plus
// local.get/set/tee and i32.const. Used by internal/supervisor to print
// the winning candidate.
package wast

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

const tab = `  `

// WriteFunction renders a single-function module exporting name, with
// the given signature, declared locals, and body (including its
// terminal End).
func WriteFunction(name string, sig wasm.FunctionSig, locals []wasm.ValueType, body []stoke.Instruction) string {
	var buf bytes.Buffer
	w := &writer{bw: bufio.NewWriter(&buf)}

	w.WriteString("(module")
	w.WriteString("\n" + tab + "(type (;0;) ")
	w.writeFuncType(sig)
	w.WriteString(")")

	w.WriteString("\n" + tab + "(func $" + name + " (type 0)")
	w.writeFuncType(sig)
	if len(locals) > 0 {
		w.WriteString(" (local")
		for _, l := range locals {
			w.WriteString(" " + l.String())
		}
		w.WriteString(")")
	}
	w.writeCode(body)
	w.WriteString(")")

	w.Print("\n"+tab+"(export %q (func 0))", name)
	w.WriteString(")\n")

	w.bw.Flush()
	return buf.String()
}

type writer struct {
	bw  *bufio.Writer
	err error
}

func (w *writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.bw.WriteString(s)
}

func (w *writer) Print(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.bw, format, args...)
}

func (w *writer) writeFuncType(t wasm.FunctionSig) {
	if len(t.ParamTypes) != 0 {
		w.WriteString(" (param")
		for _, p := range t.ParamTypes {
			w.WriteString(" " + p.String())
		}
		w.WriteString(")")
	}
	if len(t.ReturnTypes) != 0 {
		w.WriteString(" (result")
		for _, p := range t.ReturnTypes {
			w.WriteString(" " + p.String())
		}
		w.WriteString(")")
	}
}

// writeCode is writeModule's writeCode collapsed to straight-line,
// unnested instructions: no block/label bookkeeping, since nothing in
// the whitelist introduces one.
func (w *writer) writeCode(instrs []stoke.Instruction) {
	for _, instr := range instrs {
		if instr.Op == stoke.OpEnd {
			// The closing paren ends the function in text form.
			continue
		}
		w.WriteString("\n" + tab + tab)
		w.WriteString(instr.Op.String())
		switch instr.Op {
		case stoke.OpI32Const:
			w.Print(" %d", instr.Const)
		case stoke.OpLocalGet, stoke.OpLocalSet, stoke.OpLocalTee:
			w.Print(" %d", instr.Index)
		}
	}
}
