// Package search implements the two search strategies of spec.md
// §4.6/§4.7 over a stoke.Candidate: an exhaustive depth-first
// enumeration and a Metropolis-style stochastic local search. Both are
// grounded on go-interpreter/wagon/exec/vm.go's recursive-call /
// cooperative-polling shape, adapted from WASM bytecode interpretation
// to WASM bytecode search.
package search

import (
	"github.com/wasm-superopt/rocinante/internal/oracle"
	"github.com/wasm-superopt/rocinante/internal/smt"
	"github.com/wasm-superopt/rocinante/internal/stoke"
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Cancelled is returned by Run when the search's cancellation channel
// fired before a result was found.
var Cancelled = cancelledErr{}

type cancelledErr struct{}

func (cancelledErr) Error() string { return "search: cancelled" }

// Found is the successful outcome of a search: a verified-equivalent
// candidate instruction sequence (including its terminal End).
type Found struct {
	Instructions []stoke.Instruction
}

// Verifier is the subset of *smt.Verifier the search strategies depend
// on, narrowed to an interface so tests can substitute a fake solver
// instead of spawning a real one.
type Verifier interface {
	Verify(specLocals, candLocals []wasm.ValueType, specBody, candBody []stoke.Instruction) (smt.Result, error)
}

// Enumerative is spec.md §4.6's exhaustive depth-first search.
type Enumerative struct {
	Whitelist  *stoke.Whitelist
	Descriptor *stoke.Descriptor
	Oracle     *oracle.Oracle
	Verifier   Verifier
	Sig        wasm.FunctionSig
	Locals     []wasm.ValueType

	// Cancel is polled before each loop iteration at every depth; a
	// closed channel aborts the whole recursion (spec.md §5).
	Cancel <-chan struct{}
}

// Run searches for a ShapeComplete, Oracle-score-0, Verifier-confirmed
// candidate of exactly length instructions. It returns Cancelled if the
// cancellation channel fires first, or (nil, nil) if the whole space is
// exhausted without a result.
func (e *Enumerative) Run(length int) (*Found, error) {
	c := stoke.NewCandidate(length, e.oracleReturnArity())
	return e.search(c)
}

func (e *Enumerative) oracleReturnArity() int {
	return e.Oracle.ReturnTypeLen()
}

// search is the recursive DFS step described in spec.md §4.6: try every
// whitelist entry (other than nop — an all-nop slot only ever exists as
// an unfilled placeholder, never a deliberate choice) at the current
// depth.
func (e *Enumerative) search(c *stoke.Candidate) (*Found, error) {
	for _, instr := range e.Whitelist.Entries() {
		if instr.Op == stoke.OpNop {
			continue
		}
		select {
		case <-e.Cancel:
			return nil, Cancelled
		default:
		}

		err := c.TryAppend(e.Whitelist, instr)
		switch err {
		case stoke.ErrStackUnderflow, stoke.ErrStackOverflow:
			continue
		case stoke.ErrNextIndexOutOfBounds:
			return nil, nil
		case nil:
			// fallthrough to the shape-complete / recurse handling below
		default:
			return nil, err
		}

		if c.ShapeComplete() {
			found, err := e.tryShapeComplete(c)
			if err != nil {
				c.DropLast()
				return nil, err
			}
			if found != nil {
				return found, nil
			}
		} else {
			found, err := e.search(c)
			if err != nil || found != nil {
				c.DropLast()
				return found, err
			}
		}
		c.DropLast()
	}
	return nil, nil
}

// tryShapeComplete scores a shape-complete candidate and, on a
// perfect score, hands it to the Verifier. A CounterExample grows the
// Oracle's test set and the search continues (the candidate is not
// pruned solely for having been wrong on the enlarged set — spec.md
// §4.6 only discards on score > 0 *before* verification is attempted).
func (e *Enumerative) tryShapeComplete(c *stoke.Candidate) (*Found, error) {
	binary := c.Serialize(e.Descriptor)
	if e.Oracle.Score(binary) != 0 {
		return nil, nil
	}

	seq := append([]stoke.Instruction{}, c.Instructions()...)
	seq = append(seq, stoke.End())
	specBody := e.Descriptor.OriginalBody

	result, err := e.Verifier.Verify(e.Locals, e.Locals, specBody, seq)
	if err != nil {
		return nil, err
	}
	if result.Verified {
		return &Found{Instructions: seq}, nil
	}
	if err := e.Oracle.AddTestCase(result.CounterExample); err != nil {
		return nil, err
	}
	return nil, nil
}
