// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wasm implements the subset of the WebAssembly MVP binary format
// needed to carry straight-line, memory-free, table-free integer
// functions: the type, function, export and code sections. Imports,
// tables, memories, globals, elements and data are out of scope (see
// spec.md §1 Non-goals) and are rejected the same way the teacher this
// package is grounded on (go-interpreter/wagon/wasm) rejects imports it
// never implemented.
package wasm

import "fmt"

// ValueType represents the type of a value in a WASM module. Only i32 is
// semantically exercised by this repo; the other tags exist so that
// signatures from an arbitrary input file round-trip without erroring.
type ValueType int8

const (
	ValueTypeI32 ValueType = -0x01
	ValueTypeI64 ValueType = -0x02
	ValueTypeF32 ValueType = -0x03
	ValueTypeF64 ValueType = -0x04
)

var valueTypeStrMap = map[ValueType]string{
	ValueTypeI32: "i32",
	ValueTypeI64: "i64",
	ValueTypeF32: "f32",
	ValueTypeF64: "f64",
}

func (t ValueType) String() string {
	if s, ok := valueTypeStrMap[t]; ok {
		return s
	}
	return fmt.Sprintf("<unknown value_type %d>", int8(t))
}

// BitWidth returns the symbolic/runtime bit width used by the SMT
// encoder and the interpreter's result widening.
func (t ValueType) BitWidth() uint32 {
	switch t {
	case ValueTypeI64, ValueTypeF64:
		return 64
	default:
		return 32
	}
}

// FunctionSig describes the signature of a function: its ordered
// parameter types and an optional single return type (0 or 1 entries,
// per spec.md §3 — multi-value returns are a Non-goal).
type FunctionSig struct {
	ParamTypes  []ValueType
	ReturnTypes []ValueType
}

func (f FunctionSig) String() string {
	return fmt.Sprintf("<func %v -> %v>", f.ParamTypes, f.ReturnTypes)
}

// LocalEntry is a run of locals sharing a declared type, as they are
// packed in the code section (WASM groups consecutive same-typed locals
// to save space).
type LocalEntry struct {
	Count uint32
	Type  ValueType
}

// FunctionBody is a function's locals declaration plus its raw,
// un-interpreted instruction bytes. Like the teacher, this package does
// not know how to decode the bytes themselves — that is
// internal/stoke's job (it owns the closed instruction set) and
// internal/wasmrun's job (it owns execution).
type FunctionBody struct {
	Locals []LocalEntry
	Code   []byte
}

// Module is a parsed WASM module restricted to the sections this repo
// supports.
type Module struct {
	Types     []FunctionSig
	Functions []uint32 // index into Types, one per function
	Exports   map[string]uint32
	Code      []FunctionBody
}

// ErrInvalidMagic is returned by Decode when the input does not start
// with the WASM magic number.
var ErrInvalidMagic = fmt.Errorf("wasm: invalid magic number")

// ErrUnsupportedSection is returned by Decode for any section ID this
// module does not implement (import, table, memory, global, element,
// data — all Non-goals per spec.md §1).
type ErrUnsupportedSection byte

func (e ErrUnsupportedSection) Error() string {
	return fmt.Sprintf("wasm: unsupported section id %d (imports/memory/tables/globals/control-flow are out of scope)", byte(e))
}

const (
	Magic   uint32 = 0x6d736100
	Version uint32 = 0x1
)

const (
	sectionType     byte = 1
	sectionFunction byte = 3
	sectionExport   byte = 7
	sectionCode     byte = 10
)

const externalFunction byte = 0x00

// the one func-type constructor byte WASM defines.
const typeFuncForm int8 = -0x20
