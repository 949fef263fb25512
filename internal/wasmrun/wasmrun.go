// Package wasmrun is the default, in-process Executor: a straight-line
// bytecode interpreter for the whitelist, grounded on
// go-interpreter/wagon/exec/vm.go but trimmed to this repo's Non-goals
// (no linear memory, no branch tables, no native compile backend —
// those exist in the teacher only to support control flow and memory).
//
// It implements oracle.Runner and stands in for the "Wasmer"/"Wasmtime"
// names spec.md §6 reserves, under the name Native (see
// cmd/rocinante's selectRunner).
package wasmrun

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/wasm-superopt/rocinante/internal/oracle"
	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Native is the default oracle.Runner implementation.
type Native struct{}

// Run decodes binary, locates its "candidate" export, and interprets it
// over input. A decode/instantiation failure is returned as a Go error
// (the Oracle maps that to its invalid score); a WASM trap during
// execution is returned as an Output with a non-empty Err, per
// oracle.Runner's contract.
func (Native) Run(binary []byte, input []int32) (oracle.Output, error) {
	m, err := wasm.Decode(bytes.NewReader(binary))
	if err != nil {
		return oracle.Output{}, fmt.Errorf("wasmrun: decode: %w", err)
	}
	fnIdx, ok := m.Exports[stoke.ExportName]
	if !ok {
		return oracle.Output{}, fmt.Errorf("wasmrun: no export named %q", stoke.ExportName)
	}
	if int(fnIdx) >= len(m.Functions) || int(fnIdx) >= len(m.Code) {
		return oracle.Output{}, fmt.Errorf("wasmrun: export index %d out of range", fnIdx)
	}
	sig := m.Types[m.Functions[fnIdx]]
	if len(sig.ParamTypes) != len(input) {
		return oracle.Output{}, fmt.Errorf("wasmrun: expected %d arguments, got %d", len(sig.ParamTypes), len(input))
	}
	for _, t := range sig.ParamTypes {
		if t != wasm.ValueTypeI32 {
			return oracle.Output{}, fmt.Errorf("wasmrun: only i32 parameters are supported, got %v", t)
		}
	}

	body := m.Code[fnIdx]
	instrs, err := stoke.DecodeSequence(body.Code)
	if err != nil {
		return oracle.Output{}, fmt.Errorf("wasmrun: %w", err)
	}

	numLocals := len(sig.ParamTypes)
	for _, l := range body.Locals {
		numLocals += int(l.Count)
	}
	locals := make([]int32, numLocals)
	copy(locals, input)

	vm := &vm{locals: locals}
	result, trap := vm.exec(instrs)
	if trap != oracle.TrapNone {
		return oracle.Output{Err: trap}, nil
	}
	if len(sig.ReturnTypes) == 0 {
		return oracle.Output{}, nil
	}
	if sig.ReturnTypes[0] != wasm.ValueTypeI32 {
		return oracle.Output{}, fmt.Errorf("wasmrun: only an i32 return type is supported, got %v", sig.ReturnTypes[0])
	}
	return oracle.Output{Values: []int32{result}}, nil
}

// vm is the per-call execution context: a value stack and the combined
// params+locals index space, mirroring wagon/exec's context struct
// (stack []uint64, locals []uint64) narrowed to i32.
type vm struct {
	stack  []int32
	locals []int32
}

func (v *vm) push(x int32) { v.stack = append(v.stack, x) }

func (v *vm) pop() int32 {
	n := len(v.stack) - 1
	x := v.stack[n]
	v.stack = v.stack[:n]
	return x
}

// exec runs instrs to completion (there is no control flow to jump
// through, so this is a single linear pass, unlike the teacher's
// jump-table-driven loop) and returns the top-of-stack result at End,
// or a trap kind if one of the whitelisted partial operations failed
// its precondition.
func (v *vm) exec(instrs []stoke.Instruction) (int32, oracle.TrapKind) {
	for _, instr := range instrs {
		switch instr.Op {
		case stoke.OpEnd:
			if len(v.stack) == 0 {
				return 0, oracle.TrapNone
			}
			return v.stack[len(v.stack)-1], oracle.TrapNone
		case stoke.OpNop:
		case stoke.OpI32Const:
			v.push(instr.Const)
		case stoke.OpLocalGet:
			v.push(v.locals[instr.Index])
		case stoke.OpLocalSet:
			v.locals[instr.Index] = v.pop()
		case stoke.OpLocalTee:
			v.locals[instr.Index] = v.stack[len(v.stack)-1]
		case stoke.OpI32Eqz:
			v.push(boolI32(v.pop() == 0))
		case stoke.OpI32Clz:
			v.push(int32(bits.LeadingZeros32(uint32(v.pop()))))
		case stoke.OpI32Ctz:
			v.push(int32(bits.TrailingZeros32(uint32(v.pop()))))
		case stoke.OpI32Popcnt:
			v.push(int32(bits.OnesCount32(uint32(v.pop()))))
		default:
			b := v.pop()
			a := v.pop()
			result, trap := binop(instr.Op, a, b)
			if trap != oracle.TrapNone {
				return 0, trap
			}
			v.push(result)
		}
	}
	if len(v.stack) == 0 {
		return 0, oracle.TrapNone
	}
	return v.stack[len(v.stack)-1], oracle.TrapNone
}

func boolI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// binop evaluates a pop-2-push-1 instruction. Division and remainder
// trap per the WASM spec's documented partial-operation preconditions
// (spec.md §4.5's lowering table): division by zero always traps;
// signed division additionally traps on INT32_MIN / -1 overflow.
func binop(op stoke.Opcode, a, b int32) (int32, oracle.TrapKind) {
	ua, ub := uint32(a), uint32(b)
	switch op {
	case stoke.OpI32Add:
		return a + b, oracle.TrapNone
	case stoke.OpI32Sub:
		return a - b, oracle.TrapNone
	case stoke.OpI32Mul:
		return a * b, oracle.TrapNone
	case stoke.OpI32DivS:
		if b == 0 {
			return 0, oracle.TrapDivisionByZero
		}
		if a == -2147483648 && b == -1 {
			return 0, oracle.TrapIntegerOverflow
		}
		return a / b, oracle.TrapNone
	case stoke.OpI32DivU:
		if ub == 0 {
			return 0, oracle.TrapDivisionByZero
		}
		return int32(ua / ub), oracle.TrapNone
	case stoke.OpI32RemS:
		if b == 0 {
			return 0, oracle.TrapDivisionByZero
		}
		if a == -2147483648 && b == -1 {
			return 0, oracle.TrapNone
		}
		return a % b, oracle.TrapNone
	case stoke.OpI32RemU:
		if ub == 0 {
			return 0, oracle.TrapDivisionByZero
		}
		return int32(ua % ub), oracle.TrapNone
	case stoke.OpI32And:
		return a & b, oracle.TrapNone
	case stoke.OpI32Or:
		return a | b, oracle.TrapNone
	case stoke.OpI32Xor:
		return a ^ b, oracle.TrapNone
	case stoke.OpI32Shl:
		return int32(ua << (ub & 31)), oracle.TrapNone
	case stoke.OpI32ShrS:
		return a >> (ub & 31), oracle.TrapNone
	case stoke.OpI32ShrU:
		return int32(ua >> (ub & 31)), oracle.TrapNone
	case stoke.OpI32Rotl:
		return int32(bits.RotateLeft32(ua, int(ub&31))), oracle.TrapNone
	case stoke.OpI32Rotr:
		return int32(bits.RotateLeft32(ua, -int(ub&31))), oracle.TrapNone
	case stoke.OpI32Eq:
		return boolI32(a == b), oracle.TrapNone
	case stoke.OpI32Ne:
		return boolI32(a != b), oracle.TrapNone
	case stoke.OpI32LtS:
		return boolI32(a < b), oracle.TrapNone
	case stoke.OpI32LtU:
		return boolI32(ua < ub), oracle.TrapNone
	case stoke.OpI32GtS:
		return boolI32(a > b), oracle.TrapNone
	case stoke.OpI32GtU:
		return boolI32(ua > ub), oracle.TrapNone
	case stoke.OpI32LeS:
		return boolI32(a <= b), oracle.TrapNone
	case stoke.OpI32LeU:
		return boolI32(ua <= ub), oracle.TrapNone
	case stoke.OpI32GeS:
		return boolI32(a >= b), oracle.TrapNone
	case stoke.OpI32GeU:
		return boolI32(ua >= ub), oracle.TrapNone
	default:
		panic(fmt.Sprintf("wasmrun: unhandled opcode %v", op))
	}
}
