package normalize

import (
	"reflect"
	"testing"
)

func TestNormalize_Pipeline(t *testing.T) {
	n := NewNormalizer()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			"lowercase and punctuation",
			"The Plaintiff, filed; a CLAIM!",
			[]string{"plaintiff", "file", "claim"},
		},
		{
			"stopwords removed",
			"the and of in a",
			nil,
		},
		{
			"stemming to base form",
			"damages damaged damaging",
			[]string{"damag", "damag", "damag"},
		},
		{
			"digits and single letters dropped",
			"section 42 b applies",
			[]string{"section", "appli"},
		},
		{
			"empty input",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer()
	text := "The tenant alleged wrongful eviction; damages were awarded under Section 12(b)."
	first := n.Normalize(text)
	for i := 0; i < 10; i++ {
		if got := n.Normalize(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
	// A fresh Normalizer must agree too (cross-restart determinism).
	if got := NewNormalizer().Normalize(text); !reflect.DeepEqual(got, first) {
		t.Errorf("fresh normalizer differs: %v vs %v", got, first)
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  a\t b\n\nc  "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}
