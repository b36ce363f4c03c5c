package network

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// twoPairDissimilarity has two tight pairs (a,b) and (c,d) far from each
// other, so the merge order is fully determined.
func twoPairDissimilarity() *mat.SymDense {
	d := mat.NewSymDense(4, nil)
	d.SetSym(0, 1, 0.1)
	d.SetSym(2, 3, 0.2)
	d.SetSym(0, 2, 0.9)
	d.SetSym(0, 3, 0.9)
	d.SetSym(1, 2, 0.9)
	d.SetSym(1, 3, 0.9)
	return d
}

func TestAverageLinkageKnownTree(t *testing.T) {
	dend := AverageLinkage(twoPairDissimilarity(), []string{"a", "b", "c", "d"})

	wantMerge := [][2]int{{-1, -2}, {-3, -4}, {1, 2}}
	if !reflect.DeepEqual(dend.Merge, wantMerge) {
		t.Fatalf("Merge = %v, want %v", dend.Merge, wantMerge)
	}
	wantHeight := []float64{0.1, 0.2, 0.9}
	for i, h := range wantHeight {
		if math.Abs(dend.Height[i]-h) > 1e-12 {
			t.Errorf("Height[%d] = %g, want %g", i, dend.Height[i], h)
		}
	}
	if !reflect.DeepEqual(dend.Order, []int{0, 1, 2, 3}) {
		t.Errorf("Order = %v, want [0 1 2 3]", dend.Order)
	}
}

func TestAverageLinkageLanceWilliams(t *testing.T) {
	// After merging (a,b), its distance to c must be the size-weighted mean
	// of the leaf distances, which surfaces as the final merge height.
	d := mat.NewSymDense(3, nil)
	d.SetSym(0, 1, 0.1)
	d.SetSym(0, 2, 0.6)
	d.SetSym(1, 2, 0.8)

	dend := AverageLinkage(d, []string{"a", "b", "c"})
	if got, want := dend.Height[1], 0.7; math.Abs(got-want) > 1e-12 {
		t.Errorf("merged cluster distance = %g, want %g", got, want)
	}
}

func TestAverageLinkageSingleLeaf(t *testing.T) {
	dend := AverageLinkage(mat.NewSymDense(1, nil), []string{"a"})
	if len(dend.Merge) != 0 {
		t.Errorf("Merge = %v, want empty", dend.Merge)
	}
	if !reflect.DeepEqual(dend.Order, []int{0}) {
		t.Errorf("Order = %v, want [0]", dend.Order)
	}
}

func TestCutDynamicTwoBranches(t *testing.T) {
	dend := AverageLinkage(twoPairDissimilarity(), []string{"a", "b", "c", "d"})

	got := CutDynamic(dend, 2, 2)
	want := []int{1, 1, 2, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CutDynamic = %v, want %v", got, want)
	}
}

func TestCutDynamicMinSizeFilter(t *testing.T) {
	dend := AverageLinkage(twoPairDissimilarity(), []string{"a", "b", "c", "d"})

	got := CutDynamic(dend, 3, 2)
	for i, a := range got {
		if a != 0 {
			t.Errorf("leaf %d assigned to module %d, want unassigned", i, a)
		}
	}
}

func TestCutDynamicDeepSplit(t *testing.T) {
	// Six leaves: two tight pairs under a mid-height join, plus a distant
	// pair. With deepSplit the mid branch splits into two modules of size 2;
	// without it the branch stays whole.
	d := mat.NewSymDense(6, nil)
	set := func(i, j int, v float64) { d.SetSym(i, j, v) }
	for i := 0; i < 6; i++ {
		for j := i + 1; j < 6; j++ {
			set(i, j, 0.95)
		}
	}
	set(0, 1, 0.05)
	set(2, 3, 0.05)
	set(0, 2, 0.5)
	set(0, 3, 0.5)
	set(1, 2, 0.5)
	set(1, 3, 0.5)
	set(4, 5, 0.05)

	dend := AverageLinkage(d, []string{"a", "b", "c", "d", "e", "f"})

	shallow := CutDynamic(dend, 2, 0)
	deep := CutDynamic(dend, 2, 4)

	if n := countModules(shallow); n != 2 {
		t.Errorf("deepSplit=0 yielded %d modules, want 2 (%v)", n, shallow)
	}
	if n := countModules(deep); n != 3 {
		t.Errorf("deepSplit=4 yielded %d modules, want 3 (%v)", n, deep)
	}
	if deep[0] != deep[1] || deep[2] != deep[3] || deep[0] == deep[2] {
		t.Errorf("deep split did not separate the pairs: %v", deep)
	}
}

func countModules(assignment []int) int {
	seen := make(map[int]bool)
	for _, a := range assignment {
		if a != 0 {
			seen[a] = true
		}
	}
	return len(seen)
}
