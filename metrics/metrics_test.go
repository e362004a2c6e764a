package metrics

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFromCounts(t *testing.T) {
	s := FromCounts(Counts{TP: 3, FP: 1, FN: 3})
	if !almostEqual(s.Precision, 0.75) {
		t.Fatalf("precision = %v, want 0.75", s.Precision)
	}
	if !almostEqual(s.Recall, 0.5) {
		t.Fatalf("recall = %v, want 0.5", s.Recall)
	}
	if !almostEqual(s.F1, 0.6) {
		t.Fatalf("f1 = %v, want 0.6", s.F1)
	}
}

func TestFromCountsZeroDivision(t *testing.T) {
	s := FromCounts(Counts{})
	if s.Precision != 0 || s.Recall != 0 || s.F1 != 0 {
		t.Fatalf("empty counts should score zero, got %+v", s)
	}
}

func TestMicroVsMacro(t *testing.T) {
	byLabel := map[string]Counts{
		// Perfect on a frequent label.
		"works_for": {TP: 90, FP: 0, FN: 0},
		// Useless on a rare one.
		"born_in": {TP: 0, FP: 10, FN: 10},
	}

	micro := Micro(byLabel)
	macro := Macro(byLabel)

	if !almostEqual(micro.Precision, 0.9) {
		t.Fatalf("micro precision = %v, want 0.9", micro.Precision)
	}
	if !almostEqual(macro.Precision, 0.5) {
		t.Fatalf("macro precision = %v, want 0.5", macro.Precision)
	}
	if macro.F1 >= micro.F1 {
		t.Fatalf("expected macro F1 < micro F1 here, got macro=%v micro=%v", macro.F1, micro.F1)
	}
}

func TestMacroEmpty(t *testing.T) {
	if s := Macro(nil); s != (Scores{}) {
		t.Fatalf("Macro(nil) = %+v, want zero", s)
	}
}
