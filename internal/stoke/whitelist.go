package stoke

import "math/rand"

// Whitelist is the closed, statically-known instruction set search is
// allowed to draw from for a given function signature: every
// arithmetic/relational/test opcode, one local.{get,set,tee} per local
// index, and one i32.const per supplied constant. Grounded on spec.md
// §4.1.
type Whitelist struct {
	entries   []Instruction
	constants []int32
	numLocals int // combined index space size: params + locals
}

// NewWhitelist builds the whitelist for a function with numParams
// parameters, numLocals additional declared locals, and the given pool
// of i32 constants available to i32.const. The internal list is
// shuffled once so that uniform sampling and the deterministic DFS
// order of the enumerative search (spec.md §4.6) aren't biased toward
// opcodes declared first in source.
func NewWhitelist(rng *rand.Rand, numParams, numLocals int, constants []int32) *Whitelist {
	w := &Whitelist{constants: constants, numLocals: numParams + numLocals}

	for _, op := range binops {
		w.entries = append(w.entries, Instruction{Op: op})
	}
	for _, op := range relops {
		w.entries = append(w.entries, Instruction{Op: op})
	}
	for _, op := range unops {
		w.entries = append(w.entries, Instruction{Op: op})
	}
	w.entries = append(w.entries, Instruction{Op: OpI32Eqz})

	for i := 0; i < w.numLocals; i++ {
		idx := uint32(i)
		w.entries = append(w.entries,
			Instruction{Op: OpLocalGet, Index: idx},
			Instruction{Op: OpLocalSet, Index: idx},
			Instruction{Op: OpLocalTee, Index: idx},
		)
	}
	for _, c := range constants {
		w.entries = append(w.entries, Instruction{Op: OpI32Const, Const: c})
	}

	rng.Shuffle(len(w.entries), func(i, j int) {
		w.entries[i], w.entries[j] = w.entries[j], w.entries[i]
	})
	return w
}

// Entries returns the whitelist's members in its (shuffled, fixed-once)
// order. Callers must not mutate the returned slice.
func (w *Whitelist) Entries() []Instruction { return w.entries }

// NumLocals returns the combined params+locals index space size.
func (w *Whitelist) NumLocals() int { return w.numLocals }

// Sample draws a uniformly random instruction from the whitelist.
func (w *Whitelist) Sample(rng *rand.Rand) Instruction {
	return w.entries[rng.Intn(len(w.entries))]
}

// SampleConstant draws a uniformly random constant from the pool passed
// to NewWhitelist.
func (w *Whitelist) SampleConstant(rng *rand.Rand) int32 {
	return w.constants[rng.Intn(len(w.constants))]
}

// IsWhitelisted reports syntactic (not semantic) membership: exact tag
// plus payload shape, per spec.md §9. nop is always accepted.
func (w *Whitelist) IsWhitelisted(instr Instruction) bool {
	switch {
	case instr.Op == OpNop, instr.Op == OpEnd:
		return true
	case isBinop(instr.Op), isRelop(instr.Op), isUnop(instr.Op), instr.Op == OpI32Eqz:
		return true
	case instr.Op == OpLocalGet, instr.Op == OpLocalSet, instr.Op == OpLocalTee:
		return instr.Index < uint32(w.numLocals)
	case instr.Op == OpI32Const:
		for _, c := range w.constants {
			if c == instr.Const {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// PushPop delegates to the package-level PushPop, panicking on a
// non-whitelisted instruction exactly as spec.md §4.1 specifies.
func (w *Whitelist) PushPop(instr Instruction) (pop, push int) {
	if !w.IsWhitelisted(instr) {
		panic("stoke: PushPop of non-whitelisted instruction")
	}
	return PushPop(instr)
}

// Equivalent returns a uniformly random member of instr's equivalence
// class: typed and arity-preserving, so an opcode swap can never
// invalidate stack discipline (spec.md §4.1 Rationale), and index- or
// value-preserving for local.* and i32.const respectively.
func (w *Whitelist) Equivalent(rng *rand.Rand, instr Instruction) Instruction {
	switch {
	case isBinop(instr.Op):
		return Instruction{Op: binops[rng.Intn(len(binops))]}
	case isRelop(instr.Op):
		return Instruction{Op: relops[rng.Intn(len(relops))]}
	case isUnop(instr.Op):
		return Instruction{Op: unops[rng.Intn(len(unops))]}
	case instr.Op == OpI32Eqz:
		return Instruction{Op: OpI32Eqz}
	case instr.Op == OpI32Const:
		return Instruction{Op: OpI32Const, Const: instr.Const}
	case instr.Op == OpLocalGet, instr.Op == OpLocalSet, instr.Op == OpLocalTee:
		// get, set and tee each have a different (pop, push), so the
		// only arity-preserving member of a local op's class is itself.
		return Instruction{Op: instr.Op, Index: instr.Index}
	case instr.Op == OpNop:
		return Instruction{Op: OpNop}
	case instr.Op == OpEnd:
		return Instruction{Op: OpEnd}
	default:
		return instr
	}
}
