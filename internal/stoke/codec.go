package stoke

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasm-superopt/rocinante/internal/wasm/leb128"
)

// EncodeInstruction appends instr's WASM-MVP-compatible byte encoding to
// buf and returns the extended slice.
func EncodeInstruction(buf []byte, instr Instruction) []byte {
	buf = append(buf, byte(instr.Op))
	switch instr.Op {
	case OpI32Const:
		buf = leb128.AppendVarint32(buf, instr.Const)
	case OpLocalGet, OpLocalSet, OpLocalTee:
		buf = leb128.AppendVarUint32(buf, instr.Index)
	}
	return buf
}

// EncodeSequence serializes seq, instruction by instruction, with no
// terminator. Callers append End() themselves where the format calls
// for it (spec.md §3 invariant 4: end is implicit in a Candidate).
func EncodeSequence(seq []Instruction) []byte {
	var buf []byte
	for _, instr := range seq {
		buf = EncodeInstruction(buf, instr)
	}
	return buf
}

// DecodeSequence parses code back into an Instruction slice. It is the
// inverse of EncodeSequence (plus a trailing End), used by internal/wasmrun
// to interpret a function body and by tests to assert the round-trip
// property from spec.md §8 invariant 6.
func DecodeSequence(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	var out []Instruction
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		op := Opcode(b)
		instr := Instruction{Op: op}
		switch op {
		case OpI32Const:
			v, err := leb128.ReadVarint32(r)
			if err != nil {
				return nil, err
			}
			instr.Const = v
		case OpLocalGet, OpLocalSet, OpLocalTee:
			v, err := leb128.ReadVarUint32(r)
			if err != nil {
				return nil, err
			}
			instr.Index = v
		case OpNop, OpEnd,
			OpI32Eqz, OpI32Eq, OpI32Ne, OpI32LtS, OpI32LtU, OpI32GtS, OpI32GtU,
			OpI32LeS, OpI32LeU, OpI32GeS, OpI32GeU,
			OpI32Clz, OpI32Ctz, OpI32Popcnt, OpI32Add, OpI32Sub, OpI32Mul,
			OpI32DivS, OpI32DivU, OpI32RemS, OpI32RemU,
			OpI32And, OpI32Or, OpI32Xor, OpI32Shl, OpI32ShrS, OpI32ShrU,
			OpI32Rotl, OpI32Rotr:
			// no operand
		default:
			return nil, fmt.Errorf("stoke: opcode 0x%02x outside the whitelist", b)
		}
		out = append(out, instr)
		if op == OpEnd {
			return out, nil
		}
	}
}
