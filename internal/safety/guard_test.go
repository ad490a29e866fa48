package safety

import (
	"errors"
	"testing"

	"healthrag/internal/domain"
)

func TestCheck(t *testing.T) {
	g, err := NewGuard([]string{`\bmetformin\b`, `\binsulin[ae]?\b`, `\d+\s*(mg|ml|unidades)\b`})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		answer string
		unsafe bool
	}{
		{"Revise sus niveles dos veces al día y anote los resultados.", false},
		{"Check your levels twice daily and record the results.", false},
		{"Take Metformin with breakfast.", true},
		{"Puede usar insulina rápida.", true},
		{"Tome 500 mg por la mañana.", true},
		{"Hable con su médico sobre su tratamiento.", false},
	}
	for _, tc := range cases {
		err := g.Check(tc.answer)
		if tc.unsafe != errors.Is(err, domain.ErrUnsafeAnswer) {
			t.Errorf("%q: unsafe=%v, got err %v", tc.answer, tc.unsafe, err)
		}
	}
}

func TestNewGuard_InvalidPattern(t *testing.T) {
	if _, err := NewGuard([]string{"("}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestCheck_NilGuard(t *testing.T) {
	var g *Guard
	if err := g.Check("anything"); err != nil {
		t.Errorf("nil guard should accept, got %v", err)
	}
}
