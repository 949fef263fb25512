// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wasm-superopt/rocinante/internal/wasm/leb128"
)

var endian = binary.LittleEndian

// Encode serializes m to the WASM binary format, writing only the
// sections this package understands.
func Encode(m *Module) []byte {
	var buf bytes.Buffer
	writeU32(&buf, Magic)
	writeU32(&buf, Version)
	buf.Write(EncodeTypeSection(m.Types))
	buf.Write(EncodeFunctionSection(m.Functions))
	buf.Write(EncodeExportSection(m.Exports))
	buf.Write(EncodeCodeSection(m.Code))
	return buf.Bytes()
}

// EncodeHeaderTypeFunc serializes just the magic number, version, type
// section and function section: the part of the module that never
// changes across candidates of a fixed signature. Spec Descriptor
// (internal/stoke) uses this to build its cached binary prefix.
func EncodeHeaderTypeFunc(sig FunctionSig) []byte {
	var buf bytes.Buffer
	writeU32(&buf, Magic)
	writeU32(&buf, Version)
	buf.Write(EncodeTypeSection([]FunctionSig{sig}))
	buf.Write(EncodeFunctionSection([]uint32{0}))
	return buf.Bytes()
}

// EncodeTypeSection serializes the type section.
func EncodeTypeSection(types []FunctionSig) []byte {
	var body bytes.Buffer
	_ = leb128.WriteVarUint32(&body, uint32(len(types)))
	form := typeFuncForm
	for _, t := range types {
		body.WriteByte(byte(form))
		_ = leb128.WriteVarUint32(&body, uint32(len(t.ParamTypes)))
		for _, p := range t.ParamTypes {
			body.WriteByte(byte(p))
		}
		_ = leb128.WriteVarUint32(&body, uint32(len(t.ReturnTypes)))
		for _, r := range t.ReturnTypes {
			body.WriteByte(byte(r))
		}
	}
	return section(sectionType, body.Bytes())
}

// EncodeFunctionSection serializes the function section: one type index
// per declared function.
func EncodeFunctionSection(typeIdxs []uint32) []byte {
	var body bytes.Buffer
	_ = leb128.WriteVarUint32(&body, uint32(len(typeIdxs)))
	for _, idx := range typeIdxs {
		_ = leb128.WriteVarUint32(&body, idx)
	}
	return section(sectionFunction, body.Bytes())
}

// EncodeExportSection serializes the export section. Every export in
// this repo names a function (the candidate/spec under test); exports
// of other kinds are never produced.
func EncodeExportSection(exports map[string]uint32) []byte {
	var body bytes.Buffer
	_ = leb128.WriteVarUint32(&body, uint32(len(exports)))
	for name, idx := range exports {
		_ = leb128.WriteVarUint32(&body, uint32(len(name)))
		body.WriteString(name)
		body.WriteByte(externalFunction)
		_ = leb128.WriteVarUint32(&body, idx)
	}
	return section(sectionExport, body.Bytes())
}

// EncodeCodeSection serializes the code section: one FunctionBody per
// declared function.
func EncodeCodeSection(bodies []FunctionBody) []byte {
	var body bytes.Buffer
	_ = leb128.WriteVarUint32(&body, uint32(len(bodies)))
	for _, fb := range bodies {
		body.Write(EncodeFunctionBody(fb))
	}
	return section(sectionCode, body.Bytes())
}

// EncodeFunctionBody serializes a single function body: its
// length-prefixed (local-decl-count, locals..., code) payload.
func EncodeFunctionBody(fb FunctionBody) []byte {
	var payload bytes.Buffer
	_ = leb128.WriteVarUint32(&payload, uint32(len(fb.Locals)))
	for _, l := range fb.Locals {
		_ = leb128.WriteVarUint32(&payload, l.Count)
		payload.WriteByte(byte(l.Type))
	}
	payload.Write(fb.Code)

	var out bytes.Buffer
	_ = leb128.WriteVarUint32(&out, uint32(payload.Len()))
	out.Write(payload.Bytes())
	return out.Bytes()
}

func section(id byte, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(id)
	_ = leb128.WriteVarUint32(&buf, uint32(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

func writeU32(w io.Writer, v uint32) {
	var b [4]byte
	endian.PutUint32(b[:], v)
	w.Write(b[:])
}

// Decode parses a WASM module from r, accepting only the type, function,
// export and code sections (see the package doc for why).
func Decode(r io.Reader) (*Module, error) {
	var magic, version uint32
	if err := binary.Read(r, endian, &magic); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	if err := binary.Read(r, endian, &version); err != nil {
		return nil, err
	}

	m := &Module{Exports: map[string]uint32{}}
	for {
		id, err := readByte(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		size, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		pr := bytes.NewReader(payload)
		switch id {
		case sectionType:
			if m.Types, err = decodeTypeSection(pr); err != nil {
				return nil, err
			}
		case sectionFunction:
			if m.Functions, err = decodeFunctionSection(pr); err != nil {
				return nil, err
			}
		case sectionExport:
			if m.Exports, err = decodeExportSection(pr); err != nil {
				return nil, err
			}
		case sectionCode:
			if m.Code, err = decodeCodeSection(pr); err != nil {
				return nil, err
			}
		case 0:
			// custom section: skip, like an unrecognized name subsection.
		default:
			return nil, ErrUnsupportedSection(id)
		}
	}
	return m, nil
}

func decodeTypeSection(r io.Reader) ([]FunctionSig, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	sigs := make([]FunctionSig, n)
	for i := range sigs {
		form, err := readByte(r)
		if err != nil {
			return nil, err
		}
		if int8(form) != typeFuncForm {
			return nil, fmt.Errorf("wasm: invalid type constructor: wanted %d, got %d", typeFuncForm, int8(form))
		}
		pc, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		params := make([]ValueType, pc)
		for j := range params {
			b, err := readByte(r)
			if err != nil {
				return nil, err
			}
			params[j] = ValueType(int8(b))
		}
		rc, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		rets := make([]ValueType, rc)
		for j := range rets {
			b, err := readByte(r)
			if err != nil {
				return nil, err
			}
			rets[j] = ValueType(int8(b))
		}
		sigs[i] = FunctionSig{ParamTypes: params, ReturnTypes: rets}
	}
	return sigs, nil
}

func decodeFunctionSection(r io.Reader) ([]uint32, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	idxs := make([]uint32, n)
	for i := range idxs {
		if idxs[i], err = leb128.ReadVarUint32(r); err != nil {
			return nil, err
		}
	}
	return idxs, nil
}

func decodeExportSection(r io.Reader) (map[string]uint32, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	exports := make(map[string]uint32, n)
	for i := uint32(0); i < n; i++ {
		nameLen, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, err
		}
		kind, err := readByte(r)
		if err != nil {
			return nil, err
		}
		idx, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		if kind == externalFunction {
			exports[string(name)] = idx
		}
	}
	return exports, nil
}

func decodeCodeSection(r io.Reader) ([]FunctionBody, error) {
	n, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	bodies := make([]FunctionBody, n)
	for i := range bodies {
		bodyLen, err := leb128.ReadVarUint32(r)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, bodyLen)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		br := bytes.NewReader(raw)
		localCount, err := leb128.ReadVarUint32(br)
		if err != nil {
			return nil, err
		}
		locals := make([]LocalEntry, localCount)
		for j := range locals {
			c, err := leb128.ReadVarUint32(br)
			if err != nil {
				return nil, err
			}
			t, err := readByte(br)
			if err != nil {
				return nil, err
			}
			locals[j] = LocalEntry{Count: c, Type: ValueType(int8(t))}
		}
		rest := make([]byte, br.Len())
		io.ReadFull(br, rest)
		bodies[i] = FunctionBody{Locals: locals, Code: rest}
	}
	return bodies, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}
