package search

import (
	"math/rand"
	"testing"

	"github.com/wasm-superopt/rocinante/internal/oracle"
	"github.com/wasm-superopt/rocinante/internal/stoke"
)

// S1 - stochastic search eventually lands on a score-0, verified
// candidate for the times-two spec within a generous step budget.
func TestStochasticFindsTimesTwo(t *testing.T) {
	sig := sig1to1()
	specSeq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Add},
		stoke.End(),
	}
	wantSeq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Const, Const: 2},
		{Op: stoke.OpI32Mul},
		stoke.End(),
	}

	runner := decodingRunner{specSeq: specSeq}
	o, err := oracle.NewOracle(rand.New(rand.NewSource(1)), runner, []byte("spec"), 1, 32)
	if err != nil {
		t.Fatalf("NewOracle: %v", err)
	}
	desc := stoke.NewDescriptor(sig, nil, specSeq)
	wl := stoke.NewWhitelist(rand.New(rand.NewSource(2)), 1, 0, []int32{-2, -1, 0, 1, 2})

	s := &Stochastic{
		Whitelist:  wl,
		Descriptor: desc,
		Oracle:     o,
		Verifier:   exactVerifier{wantSeq: wantSeq},
		Sig:        sig,
		Rng:        rand.New(rand.NewSource(3)),
		Cancel:     make(chan struct{}),
	}

	found, err := s.Run(3, 20000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if found == nil {
		t.Fatalf("Run found nothing within the step budget")
	}
	if len(found.Instructions) != len(wantSeq) {
		t.Fatalf("found %v, want %v", found.Instructions, wantSeq)
	}
	for i := range wantSeq {
		if found.Instructions[i] != wantSeq[i] {
			t.Fatalf("found %v, want %v", found.Instructions, wantSeq)
		}
	}
}

func TestStochasticRespectsCancellation(t *testing.T) {
	sig := sig1to1()
	specSeq := []stoke.Instruction{
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpLocalGet, Index: 0},
		{Op: stoke.OpI32Add},
		stoke.End(),
	}
	runner := decodingRunner{specSeq: specSeq}
	o, err := oracle.NewOracle(rand.New(rand.NewSource(1)), runner, []byte("spec"), 1, 32)
	if err != nil {
		t.Fatalf("NewOracle: %v", err)
	}
	desc := stoke.NewDescriptor(sig, nil, specSeq)
	wl := stoke.NewWhitelist(rand.New(rand.NewSource(2)), 1, 0, []int32{-2, -1, 0, 1, 2})

	cancel := make(chan struct{})
	close(cancel)
	s := &Stochastic{
		Whitelist:  wl,
		Descriptor: desc,
		Oracle:     o,
		Verifier:   exactVerifier{},
		Sig:        sig,
		Rng:        rand.New(rand.NewSource(3)),
		Cancel:     cancel,
	}
	_, err = s.Run(3, 1000)
	if err != Cancelled {
		t.Fatalf("Run error = %v, want Cancelled", err)
	}
}

// TestAcceptIsDeterministicWhenNotWorse confirms step 3's "accept iff
// score' <= score" half never needs the random draw.
func TestAcceptIsDeterministicWhenNotWorse(t *testing.T) {
	s := &Stochastic{Rng: rand.New(rand.NewSource(0))}
	if !s.accept(10, 10) {
		t.Fatal("accept(10, 10) = false, want true (equal score always accepted)")
	}
	if !s.accept(10, 5) {
		t.Fatal("accept(10, 5) = false, want true (strict improvement always accepted)")
	}
}
