// Package supervisor drives one optimization run end to end (spec.md
// §4.8): build the Spec Descriptor and search dependencies, run a
// single search under a time budget in a worker, and report either a
// verified replacement body or a timeout.
//
// Grounded on go-interpreter/wagon/exec/vm.go's top-level "run one
// function to completion" entry point, generalized from interpreting
// one call to driving one whole search.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wasm-superopt/rocinante/internal/oracle"
	"github.com/wasm-superopt/rocinante/internal/search"
	"github.com/wasm-superopt/rocinante/internal/smt"
	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
	"github.com/wasm-superopt/rocinante/internal/wast"
)

// Algorithm selects a search strategy. Only Stoke is implemented;
// spec.md §6 reserves the flag's other values for future algorithms.
type Algorithm string

const (
	AlgorithmStoke Algorithm = "stoke"
)

// ErrTimeout is returned by Run when the time budget expires before a
// verified replacement is found. The Supervisor's caller (cmd/rocinante)
// maps this to exit code 1.
var ErrTimeout = errors.New("supervisor: time budget exceeded with no result")

// Config bundles a Supervisor run's inputs (spec.md §4.8).
type Config struct {
	Module       *wasm.Module
	FunctionName string // exported name of the function to optimize

	Algorithm    Algorithm
	TimeBudget   time.Duration
	Constants    []int32
	Length       int // candidate length; 0 means "default to spec.num_instrs"
	StochasticMax int // max stochastic steps per attempt; 0 means a built-in default

	Runner oracle.Runner
	Solver string // path to the SMT solver binary ("" defaults to "z3")
	Seed   int64

	// Verifier overrides the default SMT-backed Verifier; nil means
	// "start a real solver process via Solver". Tests supply a fake
	// here so they never need an actual solver binary on PATH.
	Verifier search.Verifier
}

// Result is a successful run's output: the optimized body, ready to be
// rendered as text via internal/wast.
type Result struct {
	Instructions []stoke.Instruction
}

// Run executes one search to completion or until cfg.TimeBudget
// expires, whichever comes first (spec.md §4.8/§5: a timer sends a
// one-shot cancellation signal; the search loop observes it
// cooperatively at its next poll, never returning a partial candidate).
func Run(ctx context.Context, cfg Config) (*Result, error) {
	fnIdx, ok := cfg.Module.Exports[cfg.FunctionName]
	if !ok {
		return nil, fmt.Errorf("supervisor: no exported function named %q", cfg.FunctionName)
	}
	sig := cfg.Module.Types[cfg.Module.Functions[fnIdx]]
	body := cfg.Module.Code[fnIdx]

	specBody, err := stoke.DecodeSequence(body.Code)
	if err != nil {
		return nil, fmt.Errorf("supervisor: decoding spec body: %w", err)
	}
	if n := len(specBody); n == 0 || specBody[n-1].Op != stoke.OpEnd {
		specBody = append(specBody, stoke.End())
	}

	locals := make([]wasm.ValueType, 0, len(body.Locals))
	for _, e := range body.Locals {
		for i := uint32(0); i < e.Count; i++ {
			locals = append(locals, e.Type)
		}
	}

	desc := stoke.NewDescriptor(sig, locals, specBody)
	length := cfg.Length
	if length == 0 {
		length = desc.NumInstrs()
	}

	returnBitWidth := uint32(0)
	if len(sig.ReturnTypes) > 0 {
		returnBitWidth = sig.ReturnTypes[0].BitWidth()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	specBinary := append([]byte{}, desc.GetBinaryWithInstrs(specBody[:len(specBody)-1])...)
	o, err := oracle.NewOracle(rng, cfg.Runner, specBinary, len(sig.ParamTypes), returnBitWidth)
	if err != nil {
		return nil, fmt.Errorf("supervisor: seeding oracle: %w", err)
	}

	verifier := cfg.Verifier
	if verifier == nil {
		v, err := smt.NewVerifier(cfg.Solver, sig)
		if err != nil {
			return nil, fmt.Errorf("supervisor: starting solver: %w", err)
		}
		defer v.Close()
		verifier = v
	}

	wl := stoke.NewWhitelist(rng, len(sig.ParamTypes), len(locals), cfg.Constants)

	cancel := make(chan struct{})
	var closeOnce sync.Once
	signalCancel := func() { closeOnce.Do(func() { close(cancel) }) }
	timer := time.AfterFunc(cfg.TimeBudget, signalCancel)
	defer timer.Stop()

	done := make(chan struct{})
	var found *search.Found
	var runErr error
	go func() {
		defer close(done)
		switch cfg.Algorithm {
		case AlgorithmStoke, "":
			stochasticMax := cfg.StochasticMax
			if stochasticMax == 0 {
				stochasticMax = 1_000_000
			}
			s := &search.Stochastic{
				Whitelist:  wl,
				Descriptor: desc,
				Oracle:     o,
				Verifier:   verifier,
				Sig:        sig,
				Locals:     locals,
				Rng:        rng,
				Cancel:     cancel,
			}
			found, runErr = s.Run(length, stochasticMax)
		default:
			runErr = fmt.Errorf("supervisor: unknown algorithm %q", cfg.Algorithm)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		signalCancel()
		<-done
	}

	if runErr == search.Cancelled {
		return nil, ErrTimeout
	}
	if runErr != nil {
		return nil, runErr
	}
	if found == nil {
		return nil, ErrTimeout
	}
	return &Result{Instructions: found.Instructions}, nil
}

// Render renders a Result's body as WASM text, for the Supervisor's
// success output (spec.md §4.8).
func Render(sig wasm.FunctionSig, locals []wasm.ValueType, r *Result) string {
	return wast.WriteFunction(stoke.ExportName, sig, locals, r.Instructions)
}
