package taxonomy

import "testing"

func TestDefaultTaxonomy(t *testing.T) {
	tax := Default()
	if got := len(tax.All()); got != 5 {
		t.Fatalf("All: want=5 got=%d", got)
	}
	c, ok := tax.Lookup(2)
	if !ok || c.Name != "loose_joint_yellow" || c.Reason != "Loose Joint (Potential)" {
		t.Fatalf("Lookup(2): got=%+v ok=%v", c, ok)
	}
	if _, ok := tax.Lookup(9); ok {
		t.Fatalf("Lookup(9): expected miss")
	}
}

func TestImageLabel(t *testing.T) {
	tax := Default()
	cases := []struct {
		classes []int
		want    string
	}{
		{nil, LabelNormal},
		{[]int{0, 4}, LabelPotentiallyFaulty},
		{[]int{2, 3}, LabelFaulty},
		{[]int{1}, LabelFaulty},
		{[]int{42}, LabelNormal},
	}
	for _, tc := range cases {
		if got := tax.ImageLabel(tc.classes); got != tc.want {
			t.Fatalf("ImageLabel(%v): want=%q got=%q", tc.classes, tc.want, got)
		}
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	raw := []byte("classes:\n  - {id: 1, name: a, severity: faulty}\n  - {id: 1, name: b, severity: potential}\n")
	if _, err := Load(raw); err == nil {
		t.Fatalf("Load: expected duplicate id error")
	}
}
