// Package smt lowers a straight-line whitelisted WASM body to an
// SMT-LIB2 bit-vector formula and checks spec/candidate equivalence by
// handing that formula to an external solver process (spec.md §4.5).
//
// No Go binding for an SMT solver appears anywhere in this module's
// example corpus (see DESIGN.md), so — exactly as the original Rust
// implementation's src/solver/z3.rs drives the z3 crate — this package
// drives a solver binary as a subprocess over SMT-LIB2 text
// (internal/smt/solver.go), the idiomatic Go substitute when no native
// binding exists.
package smt

import (
	"fmt"
	"strings"

	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Unsupported is returned by Encode when either body contains an
// instruction outside the whitelist (spec.md §4.5 Verification
// contract).
type Unsupported struct {
	Instr stoke.Instruction
}

func (e Unsupported) Error() string {
	return fmt.Sprintf("smt: instruction %v is outside the whitelist", e.Instr.Op)
}

// formula is the encoded result of one side (spec or candidate):
// Value is the symbolic i32 result at End; Traps is a boolean SMT-LIB
// expression that is true iff execution hits a trapping partial
// operation before reaching End.
type formula struct {
	Value string
	Traps string
}

// paramName returns the declared symbol for parameter i.
func paramName(i int) string { return fmt.Sprintf("p%d", i) }

// Encode builds the ∀-free equivalence check described in spec.md
// §4.5: a single SMT-LIB2 script that declares one free bit-vector
// constant per parameter, lowers both bodies, and asserts the NEGATION
// of "spec ≡ candidate" — so that the solver reports unsat iff the
// two bodies are equivalent for every input, and sat with a model
// otherwise (that model is the counterexample).
func Encode(sig wasm.FunctionSig, specLocals, candLocals []wasm.ValueType, specBody, candBody []stoke.Instruction) (string, error) {
	for _, instr := range specBody {
		if !stoke.IsEncodable(instr) {
			return "", Unsupported{instr}
		}
	}
	for _, instr := range candBody {
		if !stoke.IsEncodable(instr) {
			return "", Unsupported{instr}
		}
	}

	var b strings.Builder
	b.WriteString("(set-logic QF_BV)\n")
	for i := range sig.ParamTypes {
		fmt.Fprintf(&b, "(declare-const %s (_ BitVec 32))\n", paramName(i))
	}

	specF := lower(sig, specLocals, specBody)
	candF := lower(sig, candLocals, candBody)

	// (spec_traps <-> cand_traps) AND (not spec_traps -> spec_value = cand_value)
	equiv := fmt.Sprintf(
		"(and (= %s %s) (=> (not %s) (= %s %s)))",
		specF.Traps, candF.Traps, specF.Traps, specF.Value, candF.Value,
	)
	fmt.Fprintf(&b, "(assert (not %s))\n", equiv)
	b.WriteString("(check-sat)\n")
	return b.String(), nil
}

// lower symbolically executes body over a stack of SMT-LIB expression
// strings, following the table in spec.md §4.5.
func lower(sig wasm.FunctionSig, locals []wasm.ValueType, body []stoke.Instruction) formula {
	numLocals := len(sig.ParamTypes) + len(locals)
	symLocals := make([]string, numLocals)
	for i := range sig.ParamTypes {
		symLocals[i] = paramName(i)
	}
	for i := len(sig.ParamTypes); i < numLocals; i++ {
		symLocals[i] = bvLiteral(0)
	}

	var stack []string
	var traps []string
	push := func(s string) { stack = append(stack, s) }
	pop := func() string {
		n := len(stack) - 1
		s := stack[n]
		stack = stack[:n]
		return s
	}

	for _, instr := range body {
		switch instr.Op {
		case stoke.OpEnd, stoke.OpNop:
		case stoke.OpI32Const:
			push(bvLiteral(instr.Const))
		case stoke.OpLocalGet:
			push(symLocals[instr.Index])
		case stoke.OpLocalSet:
			symLocals[instr.Index] = pop()
		case stoke.OpLocalTee:
			symLocals[instr.Index] = stack[len(stack)-1]
		case stoke.OpI32Eqz:
			a := pop()
			push(iteBool(eq(a, bvLiteral(0))))
		case stoke.OpI32Clz:
			push(clz32(pop()))
		case stoke.OpI32Ctz:
			push(ctz32(pop()))
		case stoke.OpI32Popcnt:
			push(popcount32(pop()))
		default:
			b := pop()
			a := pop()
			val, trap := binop(instr.Op, a, b)
			if trap != "" {
				traps = append(traps, trap)
			}
			push(val)
		}
	}

	value := bvLiteral(0)
	if len(stack) > 0 {
		value = stack[len(stack)-1]
	}
	return formula{Value: value, Traps: orAll(traps)}
}

func bvLiteral(v int32) string {
	return fmt.Sprintf("(_ bv%d 32)", uint32(v))
}

func eq(a, b string) string { return fmt.Sprintf("(= %s %s)", a, b) }

func iteBool(cond string) string {
	return fmt.Sprintf("(ite %s %s %s)", cond, bvLiteral(1), bvLiteral(0))
}

func orAll(terms []string) string {
	switch len(terms) {
	case 0:
		return "false"
	case 1:
		return terms[0]
	default:
		return "(or " + strings.Join(terms, " ") + ")"
	}
}

func maskShift(b string) string {
	return fmt.Sprintf("(bvand %s (_ bv31 32))", b)
}

// binop returns the value expression and, for partial operations, the
// trap-precondition expression (empty string if the op can't trap).
func binop(op stoke.Opcode, a, b string) (value string, trapCond string) {
	bin := func(name string) string { return fmt.Sprintf("(%s %s %s)", name, a, b) }
	rel := func(name string) string { return iteBool(bin(name)) }

	switch op {
	case stoke.OpI32Add:
		return bin("bvadd"), ""
	case stoke.OpI32Sub:
		return bin("bvsub"), ""
	case stoke.OpI32Mul:
		return bin("bvmul"), ""
	case stoke.OpI32DivS:
		overflow := fmt.Sprintf("(and (= %s (_ bv2147483648 32)) (= %s (_ bv4294967295 32)))", a, b)
		return bin("bvsdiv"), fmt.Sprintf("(or %s %s)", eq(b, bvLiteral(0)), overflow)
	case stoke.OpI32DivU:
		return bin("bvudiv"), eq(b, bvLiteral(0))
	case stoke.OpI32RemS:
		return bin("bvsrem"), eq(b, bvLiteral(0))
	case stoke.OpI32RemU:
		return bin("bvurem"), eq(b, bvLiteral(0))
	case stoke.OpI32And:
		return bin("bvand"), ""
	case stoke.OpI32Or:
		return bin("bvor"), ""
	case stoke.OpI32Xor:
		return bin("bvxor"), ""
	case stoke.OpI32Shl:
		return fmt.Sprintf("(bvshl %s %s)", a, maskShift(b)), ""
	case stoke.OpI32ShrS:
		return fmt.Sprintf("(bvashr %s %s)", a, maskShift(b)), ""
	case stoke.OpI32ShrU:
		return fmt.Sprintf("(bvlshr %s %s)", a, maskShift(b)), ""
	case stoke.OpI32Rotl:
		n := maskShift(b)
		return fmt.Sprintf("(bvor (bvshl %s %s) (bvlshr %s (bvsub (_ bv32 32) %s)))", a, n, a, n), ""
	case stoke.OpI32Rotr:
		n := maskShift(b)
		return fmt.Sprintf("(bvor (bvlshr %s %s) (bvshl %s (bvsub (_ bv32 32) %s)))", a, n, a, n), ""
	case stoke.OpI32Eq:
		return rel("="), ""
	case stoke.OpI32Ne:
		return iteBool(fmt.Sprintf("(not %s)", bin("="))), ""
	case stoke.OpI32LtS:
		return rel("bvslt"), ""
	case stoke.OpI32LtU:
		return rel("bvult"), ""
	case stoke.OpI32GtS:
		return rel("bvsgt"), ""
	case stoke.OpI32GtU:
		return rel("bvugt"), ""
	case stoke.OpI32LeS:
		return rel("bvsle"), ""
	case stoke.OpI32LeU:
		return rel("bvule"), ""
	case stoke.OpI32GeS:
		return rel("bvsge"), ""
	case stoke.OpI32GeU:
		return rel("bvuge"), ""
	default:
		panic(fmt.Sprintf("smt: unhandled opcode %v", op))
	}
}

// popcount32 encodes i32.popcnt as the classic SWAR bit-twiddling
// population count, expressed purely in bit-vector arithmetic — the
// same algorithm math/bits falls back to, just written as a formula
// instead of Go (internal/wasmrun computes the identical semantics
// concretely via bits.OnesCount32).
func popcount32(x string) string {
	c1 := "(_ bv1431655765 32)" // 0x55555555
	c2 := "(_ bv858993459 32)"  // 0x33333333
	c3 := "(_ bv252645135 32)"  // 0x0f0f0f0f
	c4 := "(_ bv16843009 32)"   // 0x01010101

	step1 := fmt.Sprintf("(bvsub %s (bvand (bvlshr %s (_ bv1 32)) %s))", x, x, c1)
	step2 := fmt.Sprintf("(bvadd (bvand %s %s) (bvand (bvlshr %s (_ bv2 32)) %s))", step1, c2, step1, c2)
	step3 := fmt.Sprintf("(bvand (bvadd %s (bvlshr %s (_ bv4 32))) %s)", step2, step2, c3)
	step4 := fmt.Sprintf("(bvlshr (bvmul %s %s) (_ bv24 32))", step3, c4)
	return step4
}

// clz32 encodes i32.clz as the standard binary-reduction leading-zero
// count: at each stage, if the upper half of the current window is all
// zero, shift it out and add the window width to the running count.
func clz32(x string) string {
	type stage struct {
		mask  string
		shift int
	}
	stages := []stage{
		{"(_ bv4294901760 32)", 16}, // 0xFFFF0000
		{"(_ bv4278190080 32)", 8},  // 0xFF000000
		{"(_ bv4026531840 32)", 4},  // 0xF0000000
		{"(_ bv3221225472 32)", 2},  // 0xC0000000
		{"(_ bv2147483648 32)", 1},  // 0x80000000
	}
	cur := x
	count := bvLiteral(0)
	for _, s := range stages {
		cond := eq(fmt.Sprintf("(bvand %s %s)", cur, s.mask), bvLiteral(0))
		cur = fmt.Sprintf("(ite %s (bvshl %s (_ bv%d 32)) %s)", cond, cur, s.shift, cur)
		count = fmt.Sprintf("(bvadd %s (ite %s (_ bv%d 32) (_ bv0 32)))", count, cond, s.shift)
	}
	return fmt.Sprintf("(ite %s (_ bv32 32) %s)", eq(x, bvLiteral(0)), count)
}

// ctz32 is clz32's mirror image, testing and shifting out the low bits
// instead of the high bits.
func ctz32(x string) string {
	type stage struct {
		mask  string
		shift int
	}
	stages := []stage{
		{"(_ bv65535 32)", 16}, // 0x0000FFFF
		{"(_ bv255 32)", 8},    // 0x000000FF
		{"(_ bv15 32)", 4},     // 0x0000000F
		{"(_ bv3 32)", 2},      // 0x00000003
		{"(_ bv1 32)", 1},      // 0x00000001
	}
	cur := x
	count := bvLiteral(0)
	for _, s := range stages {
		cond := eq(fmt.Sprintf("(bvand %s %s)", cur, s.mask), bvLiteral(0))
		cur = fmt.Sprintf("(ite %s (bvlshr %s (_ bv%d 32)) %s)", cond, cur, s.shift, cur)
		count = fmt.Sprintf("(bvadd %s (ite %s (_ bv%d 32) (_ bv0 32)))", count, cond, s.shift)
	}
	return fmt.Sprintf("(ite %s (_ bv32 32) %s)", eq(x, bvLiteral(0)), count)
}
