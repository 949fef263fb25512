// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/wasm-superopt/rocinante/internal/wasm"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FunctionSig{
			{ParamTypes: []wasm.ValueType{wasm.ValueTypeI32}, ReturnTypes: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		Functions: []uint32{0},
		Exports:   map[string]uint32{"candidate": 0},
		Code: []wasm.FunctionBody{
			{
				Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValueTypeI32}},
				Code:   []byte{0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b}, // local.get 0; local.get 0; i32.add; end
			},
		},
	}

	raw := wasm.Encode(m)
	got, err := wasm.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !reflect.DeepEqual(got.Types, m.Types) {
		t.Errorf("Types = %+v, want %+v", got.Types, m.Types)
	}
	if !reflect.DeepEqual(got.Functions, m.Functions) {
		t.Errorf("Functions = %+v, want %+v", got.Functions, m.Functions)
	}
	if !reflect.DeepEqual(got.Exports, m.Exports) {
		t.Errorf("Exports = %+v, want %+v", got.Exports, m.Exports)
	}
	if !reflect.DeepEqual(got.Code, m.Code) {
		t.Errorf("Code = %+v, want %+v", got.Code, m.Code)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := wasm.Decode(bytes.NewReader([]byte{0, 1, 2, 3, 1, 0, 0, 0}))
	if err != wasm.ErrInvalidMagic {
		t.Fatalf("err = %v, want ErrInvalidMagic", err)
	}
}

func TestDecodeRejectsUnsupportedSection(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	buf.Write([]byte{2, 1, 0}) // section id 2 (import), len 1, empty-ish payload
	_, err := wasm.Decode(&buf)
	if _, ok := err.(wasm.ErrUnsupportedSection); !ok {
		t.Fatalf("err = %v (%T), want ErrUnsupportedSection", err, err)
	}
}
