// Package oracle implements the Test Oracle of spec.md §4.4: it caches
// (input, output) pairs for the spec function, scores arbitrary
// candidate binaries against that cache by Hamming distance, and grows
// the cache as the Verifier (internal/smt) reports counterexamples —
// the CEGIS loop's "teach the oracle" half.
package oracle

import (
	"math/bits"
	"math/rand"
)

// TrapKind is an opaque runtime failure kind (spec.md §3 TestCase).
// Two traps compare equal iff their kinds match; the oracle never
// inspects a trap's details beyond that.
type TrapKind string

const (
	TrapNone              TrapKind = ""
	TrapDivisionByZero    TrapKind = "division_by_zero"
	TrapIntegerOverflow   TrapKind = "integer_overflow"
	TrapUnreachable       TrapKind = "unreachable_executed"
	TrapInvalidConversion TrapKind = "invalid_conversion"
)

// Output is a function evaluation's result: either a vector of returned
// values (Err == TrapNone) or an opaque trap kind.
type Output struct {
	Values []int32
	Err    TrapKind
}

// TestCase is a cached (input, spec_output) pair.
type TestCase struct {
	Input  []int32
	Output Output
}

// Runner evaluates one exported "candidate" function against one input.
// The returned error is reserved for binary-level failures (a
// malformed module, a missing export) — a WASM trap during execution is
// reported as an Output with a non-empty Err, not a Go error. This is
// the seam internal/wasmrun fills by default; spec.md §6 names
// Wasmer/Wasmtime as the out-of-process alternatives this repo does not
// wire (see DESIGN.md).
type Runner interface {
	Run(binary []byte, input []int32) (Output, error)
}

// NumInitialTests is N from spec.md §4.4: the number of random inputs
// the Oracle draws at construction.
const NumInitialTests = 32

// Oracle is the Test Oracle: it owns a Runner handle against the spec
// binary and a monotonically-growing vector of TestCases.
type Oracle struct {
	runner         Runner
	specBinary     []byte
	numParams      int
	returnBitWidth uint32 // 0 if the function has no return value
	tests          []TestCase
}

// NewOracle draws NumInitialTests random i32 inputs, uniform over the
// whole int32 range, runs the spec on each via runner, and records the
// results.
func NewOracle(rng *rand.Rand, runner Runner, specBinary []byte, numParams int, returnBitWidth uint32) (*Oracle, error) {
	o := &Oracle{
		runner:         runner,
		specBinary:     specBinary,
		numParams:      numParams,
		returnBitWidth: returnBitWidth,
	}
	for i := 0; i < NumInitialTests; i++ {
		input := make([]int32, numParams)
		for j := range input {
			input[j] = int32(rng.Uint32())
		}
		if err := o.AddTestCase(input); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// AddTestCase runs the spec on input and appends (input, spec_output)
// to the test set. This is both spec.md §4.4's add_counterexample and
// §6's add_test_case — the CEGIS loop and the initial random seeding
// are the same operation with a different caller.
func (o *Oracle) AddTestCase(input []int32) error {
	out, err := o.runner.Run(o.specBinary, input)
	if err != nil {
		return err
	}
	o.tests = append(o.tests, TestCase{Input: input, Output: out})
	return nil
}

// Score instantiates candidateBinary in the Runner and accumulates the
// Hamming distance between its output and the cached spec output, over
// every stored test case (spec.md §4.4). An instantiation failure
// yields InvalidScore, the worst possible score, so that any candidate
// that fails to validate is strictly worse than one that merely returns
// wrong bits everywhere (monotonicity, per the Rationale in §4.4).
func (o *Oracle) Score(candidateBinary []byte) uint32 {
	var total uint32
	for _, tc := range o.tests {
		out, err := o.runner.Run(candidateBinary, tc.Input)
		if err != nil {
			return o.InvalidScore()
		}
		total += hamming(out, tc.Output, o.returnBitWidth)
	}
	return total
}

func hamming(got, want Output, bitWidth uint32) uint32 {
	switch {
	case got.Err == TrapNone && want.Err == TrapNone:
		var d uint32
		for i := range want.Values {
			var g int32
			if i < len(got.Values) {
				g = got.Values[i]
			}
			d += uint32(bits.OnesCount32(uint32(g ^ want.Values[i])))
		}
		return d
	case got.Err != TrapNone && want.Err != TrapNone:
		if got.Err == want.Err {
			return 0
		}
		return bitWidth
	default:
		return bitWidth
	}
}

// ReturnTypeLen reports how many values the spec returns: 0 or 1 per
// spec.md's Non-goal of multi-value returns.
func (o *Oracle) ReturnTypeLen() int {
	if o.returnBitWidth == 0 {
		return 0
	}
	return 1
}

// ReturnBitWidth reports the spec's return type's bit width (0 if the
// function returns nothing).
func (o *Oracle) ReturnBitWidth() uint32 { return o.returnBitWidth }

// NumTestCases reports the current size of the cached test set.
func (o *Oracle) NumTestCases() int { return len(o.tests) }

// InvalidScore is N × (bits per return value), the worst possible
// score, assigned to any candidate binary that fails to instantiate.
func (o *Oracle) InvalidScore() uint32 {
	return uint32(len(o.tests)) * o.returnBitWidth
}

// TestCases exposes the cached set for callers that want to inspect
// it; nothing in this module calls it.
func (o *Oracle) TestCases() []TestCase { return o.tests }
