package stoke

import (
	"github.com/wasm-superopt/rocinante/internal/wasm"
)

// Descriptor is the immutable record of the function being optimized:
// its signature, its declared locals, the length of its original body,
// and a pre-rendered binary prefix that lets GetBinaryWithInstrs avoid
// re-serializing module boilerplate on every evaluation (spec.md §4.3).
//
// A Descriptor is created once per optimization session and is
// read-only after construction, except for its internal scratch buffer
// (see GetBinaryWithInstrs).
type Descriptor struct {
	Sig    wasm.FunctionSig
	Locals []wasm.ValueType

	// OriginalBody is the spec's own instruction sequence, including
	// its trailing End.
	OriginalBody []Instruction

	localEntries []wasm.LocalEntry // locals, run-length packed
	prefix       []byte            // header+type+function+export, ending just before the code section
	scratch      []byte            // reused across calls; see GetBinaryWithInstrs
}

// NewDescriptor builds a Descriptor for a function with signature sig,
// additional locals beyond its parameters, and original body
// (including its trailing End instruction).
func NewDescriptor(sig wasm.FunctionSig, locals []wasm.ValueType, originalBody []Instruction) *Descriptor {
	d := &Descriptor{Sig: sig, Locals: locals, OriginalBody: originalBody}
	d.localEntries = packLocals(locals)
	d.prefix = buildPrefix(sig)
	return d
}

func packLocals(locals []wasm.ValueType) []wasm.LocalEntry {
	var entries []wasm.LocalEntry
	for _, t := range locals {
		if n := len(entries); n > 0 && entries[n-1].Type == t {
			entries[n-1].Count++
			continue
		}
		entries = append(entries, wasm.LocalEntry{Count: 1, Type: t})
	}
	return entries
}

func buildPrefix(sig wasm.FunctionSig) []byte {
	var buf []byte
	buf = append(buf, wasm.EncodeHeaderTypeFunc(sig)...)
	buf = append(buf, wasm.EncodeExportSection(map[string]uint32{ExportName: 0})...)
	return buf
}

// ExportName is the fixed export name every candidate and spec binary
// must use (spec.md §6 Executor contract: "The candidate binary must
// export its function under the fixed name `candidate`").
const ExportName = "candidate"

// NumInstrs is the original body's length minus its terminal End
// (spec.md §4.3). Candidates are generated with this count.
func (d *Descriptor) NumInstrs() int {
	if len(d.OriginalBody) == 0 {
		return 0
	}
	return len(d.OriginalBody) - 1
}

// GetBinaryWithInstrs is the hot path: it truncates the scratch buffer
// back to the cached prefix and appends a freshly serialized code
// section for seq++End. The returned slice is only valid until the next
// call (it aliases d.scratch), matching the teacher's buffer-reuse
// idiom and spec.md §5's aliasing warning — callers evaluating
// candidates concurrently must use independent Descriptors.
func (d *Descriptor) GetBinaryWithInstrs(seq []Instruction) []byte {
	body := EncodeSequence(seq)
	body = EncodeInstruction(body, End())

	fb := wasm.FunctionBody{Locals: d.localEntries, Code: body}
	codeSection := wasm.EncodeCodeSection([]wasm.FunctionBody{fb})

	d.scratch = append(d.scratch[:0], d.prefix...)
	d.scratch = append(d.scratch, codeSection...)
	return d.scratch
}

// Serialize is Candidate's equivalent: given a Descriptor, render c's
// current instructions (including unfilled nop slots) as a full binary.
func (c *Candidate) Serialize(d *Descriptor) []byte {
	return d.GetBinaryWithInstrs(c.instrs)
}
