package smt

import (
	"fmt"

	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Result is the outcome of one Verify call (spec.md §4.5).
type Result struct {
	// Verified is true iff spec and candidate are equivalent on every
	// input (the solver reported unsat on the negated equivalence
	// formula).
	Verified bool

	// CounterExample holds one disagreeing input when !Verified.
	CounterExample []int32
}

// Verifier is the Test Oracle's formal counterpart: spec.md §4.4/§6's
// Verifier, backed by an external SMT solver process.
type Verifier struct {
	solver *Solver
	sig    wasm.FunctionSig
}

// NewVerifier starts a solver process (see NewSolver) scoped to
// functions of the given signature.
func NewVerifier(solverPath string, sig wasm.FunctionSig) (*Verifier, error) {
	solver, err := NewSolver(solverPath)
	if err != nil {
		return nil, err
	}
	return &Verifier{solver: solver, sig: sig}, nil
}

// Close shuts down the underlying solver process.
func (v *Verifier) Close() error { return v.solver.Close() }

// Verify checks whether specBody and candBody compute the same result
// (and trap on the same inputs) for every possible input, per the
// equivalence relation in spec.md §4.5. Returns Unsupported if either
// body uses an instruction outside the whitelist.
func (v *Verifier) Verify(specLocals, candLocals []wasm.ValueType, specBody, candBody []stoke.Instruction) (Result, error) {
	script, err := Encode(v.sig, specLocals, candLocals, specBody, candBody)
	if err != nil {
		return Result{}, err
	}

	sat, model, err := v.solver.checkSat(script)
	if err != nil {
		return Result{}, err
	}
	if !sat {
		return Result{Verified: true}, nil
	}

	names := make([]string, len(v.sig.ParamTypes))
	for i := range names {
		names[i] = paramName(i)
	}
	assignments, err := parseModel(model, names)
	if err != nil {
		return Result{}, fmt.Errorf("smt: parsing counterexample: %w", err)
	}
	input := make([]int32, len(names))
	for i, n := range names {
		input[i] = assignments[n]
	}
	return Result{Verified: false, CounterExample: input}, nil
}
