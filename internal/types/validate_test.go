package types

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	if err := ValidateName("Fill expense report"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	if err := ValidateName(""); err == nil {
		t.Error("empty name accepted")
	}
	if err := ValidateName("   "); err == nil {
		t.Error("whitespace-only name accepted")
	}
	if err := ValidateName(strings.Repeat("A", 101)); err == nil {
		t.Error("101-char name accepted")
	}
	if err := ValidateName(strings.Repeat("A", 100)); err != nil {
		t.Errorf("100-char name rejected: %v", err)
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription(""); err != nil {
		t.Errorf("empty description rejected: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("x", 500)); err != nil {
		t.Errorf("500-char description rejected: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("x", 501)); err == nil {
		t.Error("501-char description accepted")
	}
}

func TestValidateItemCount(t *testing.T) {
	for _, n := range []int{1, 50, 100} {
		if err := ValidateItemCount(n); err != nil {
			t.Errorf("count %d rejected: %v", n, err)
		}
	}
	for _, n := range []int{0, -1, 101, 150} {
		if err := ValidateItemCount(n); err == nil {
			t.Errorf("count %d accepted", n)
		}
	}
}

func TestClampItemCount(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {5, 5}, {100, 100}, {250, 100},
	}
	for _, c := range cases {
		if got := ClampItemCount(c.in); got != c.want {
			t.Errorf("ClampItemCount(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPatternValidate(t *testing.T) {
	p := Pattern{ID: "pat-1", Type: PatternNavigation, Confidence: 80, OccurrenceCount: 3}
	if err := p.Validate(); err != nil {
		t.Errorf("valid pattern rejected: %v", err)
	}

	bad := []Pattern{
		{Type: PatternForm, Confidence: 50, OccurrenceCount: 1},             // no id
		{ID: "p", Type: "weird", Confidence: 50, OccurrenceCount: 1},        // bad type
		{ID: "p", Type: PatternForm, Confidence: 120, OccurrenceCount: 1},   // confidence
		{ID: "p", Type: PatternForm, Confidence: 50, OccurrenceCount: 0},    // occurrences
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: invalid pattern accepted", i)
		}
	}
}
