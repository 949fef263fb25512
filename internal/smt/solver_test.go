package smt

import "testing"

func TestParseModelHexLiteral(t *testing.T) {
	model := "(model\n  (define-fun p0 () (_ BitVec 32) #x0000002a)\n)\n"
	got, err := parseModel(model, []string{"p0"})
	if err != nil {
		t.Fatalf("parseModel: %v", err)
	}
	if got["p0"] != 42 {
		t.Fatalf("p0 = %d, want 42", got["p0"])
	}
}

func TestParseModelBvLiteral(t *testing.T) {
	model := "(model\n  (define-fun p1 () (_ BitVec 32) (_ bv7 32))\n)\n"
	got, err := parseModel(model, []string{"p1"})
	if err != nil {
		t.Fatalf("parseModel: %v", err)
	}
	if got["p1"] != 7 {
		t.Fatalf("p1 = %d, want 7", got["p1"])
	}
}

func TestParseModelUnconstrainedParamDefaultsToZero(t *testing.T) {
	model := "(model\n  (define-fun p0 () (_ BitVec 32) #x00000001)\n)\n"
	got, err := parseModel(model, []string{"p0", "p1"})
	if err != nil {
		t.Fatalf("parseModel: %v", err)
	}
	if got["p1"] != 0 {
		t.Fatalf("p1 = %d, want 0 (unconstrained default)", got["p1"])
	}
}
