package stoke

import "errors"

// Sentinel errors returned by (*Candidate).TryAppend, following the
// teacher's convention of package-level error vars for payload-free
// conditions (exec.ErrMultipleLinearMemories and friends).
var (
	// ErrNextIndexOutOfBounds means the candidate is already full;
	// prune-globally (backtrack) per spec.md §4.2 Rationale.
	ErrNextIndexOutOfBounds = errors.New("stoke: next index out of bounds")
	// ErrStackUnderflow means instr would pop more values than are on
	// the stack; prune-locally (try a different opcode).
	ErrStackUnderflow = errors.New("stoke: stack underflow")
	// ErrStackOverflow means the resulting stack depth could not
	// possibly be drained to the return arity by the time the last slot
	// is filled; prune-locally.
	ErrStackOverflow = errors.New("stoke: stack overflow")
)

// Candidate is a fixed-length, stack-well-formed sequence of
// instructions under construction, per spec.md §3–§4.2. Unfilled slots
// are nop; the terminating end is implicit and appended only by
// Serialize.
type Candidate struct {
	instrs      []Instruction
	nextIndex   int
	stackDepth  int
	returnArity int
}

// NewCandidate allocates a Candidate of the given length, all nop, with
// next_index=0 and stack_depth=0.
func NewCandidate(length, returnArity int) *Candidate {
	instrs := make([]Instruction, length)
	for i := range instrs {
		instrs[i] = Nop()
	}
	return &Candidate{instrs: instrs, returnArity: returnArity}
}

// Len returns the candidate's fixed length.
func (c *Candidate) Len() int { return len(c.instrs) }

// NextIndex returns the position of the next write.
func (c *Candidate) NextIndex() int { return c.nextIndex }

// StackDepth returns the net operand-stack size after the filled prefix.
func (c *Candidate) StackDepth() int { return c.stackDepth }

// ReturnArity returns the arity this candidate must reach once full.
func (c *Candidate) ReturnArity() int { return c.returnArity }

// ShapeComplete reports whether the candidate is both full and drained
// to exactly its return arity (spec.md §4.6).
func (c *Candidate) ShapeComplete() bool {
	return c.nextIndex == len(c.instrs) && c.stackDepth == c.returnArity
}

// Instructions returns the filled-and-unfilled instruction slice.
// Callers must not mutate it.
func (c *Candidate) Instructions() []Instruction { return c.instrs }

// Clone returns an independent copy; the stochastic search mutates a
// Clone for each proposal so the current candidate stays intact.
func (c *Candidate) Clone() *Candidate {
	cp := &Candidate{
		instrs:      make([]Instruction, len(c.instrs)),
		nextIndex:   c.nextIndex,
		stackDepth:  c.stackDepth,
		returnArity: c.returnArity,
	}
	copy(cp.instrs, c.instrs)
	return cp
}

// TryAppend writes instr at next_index, mutating the candidate in
// place, and returns one of ErrNextIndexOutOfBounds,
// ErrStackUnderflow, or ErrStackOverflow if the append cannot be made
// without violating Candidate's invariants (spec.md §3 invariants 1–2,
// §4.2).
func (c *Candidate) TryAppend(wl *Whitelist, instr Instruction) error {
	if c.nextIndex == len(c.instrs) {
		return ErrNextIndexOutOfBounds
	}
	pop, push := wl.PushPop(instr)
	if c.stackDepth-pop < 0 {
		return ErrStackUnderflow
	}
	slotsLeft := len(c.instrs) - c.nextIndex - 1
	newDepth := c.stackDepth - pop + push
	if c.returnArity < newDepth-slotsLeft {
		return ErrStackOverflow
	}

	c.instrs[c.nextIndex] = instr
	c.stackDepth = newDepth
	c.nextIndex++
	return nil
}

// DropLast reverses the most recent TryAppend, for enumerative
// backtracking. It is an error to call DropLast on an empty candidate.
func (c *Candidate) DropLast() error {
	if c.nextIndex == 0 {
		return errors.New("stoke: DropLast on empty candidate")
	}
	c.nextIndex--
	last := c.instrs[c.nextIndex]
	pop, push := PushPop(last)
	c.stackDepth = c.stackDepth - push + pop
	c.instrs[c.nextIndex] = Nop()
	return nil
}

// Less orders candidates by next_index descending, so a max-priority
// queue keyed on Candidate yields the most-complete partial program
// first (spec.md §4.2 Ordering).
func Less(a, b *Candidate) bool {
	return a.nextIndex > b.nextIndex
}
