package dme

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/coexnet/coexnet/pkg/summary"
	"gonum.org/v1/gonum/mat"
)

// shiftedEigengenes builds a two-module score matrix where the first module
// separates the two halves of the observations and the second has identical
// value distributions in both halves.
func shiftedEigengenes(t *testing.T, nPerGroup int) (*summary.Eigengenes, []string, []string) {
	t.Helper()
	rng := rand.New(rand.NewSource(9))
	n := 2 * nPerGroup
	scores := mat.NewDense(n, 2, nil)
	obs := make([]string, n)
	for i := 0; i < n; i++ {
		obs[i] = fmt.Sprintf("c%d", i)
		shift := 0.0
		if i < nPerGroup {
			shift = 2
		}
		scores.Set(i, 0, shift+0.3*rng.NormFloat64())
		scores.Set(i, 1, float64(i%5))
	}
	eg := &summary.Eigengenes{
		Name:    "MEs",
		Obs:     obs,
		Modules: []string{"turquoise", "blue"},
		Scores:  scores,
	}
	return eg, obs[:nPerGroup], obs[nPerGroup:]
}

func TestCompareGroupsSeparation(t *testing.T) {
	eg, g1, g2 := shiftedEigengenes(t, 20)

	results, err := CompareGroups(eg, g1, g2, Options{Kind: Wilcoxon})
	if err != nil {
		t.Fatalf("CompareGroups failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want one per module", len(results))
	}

	// Ordered by ascending adjusted p: the separating module comes first.
	if results[0].Module != "turquoise" {
		t.Errorf("top result is %s, want turquoise", results[0].Module)
	}
	if results[0].PValue > 1e-4 {
		t.Errorf("separated module has p = %g, want tiny", results[0].PValue)
	}
	if results[1].PValue < 0.05 {
		t.Errorf("noise module has p = %g, want large", results[1].PValue)
	}
	if results[0].AvgLog2FC <= 0 {
		t.Errorf("foreground shifted up but log2FC = %g", results[0].AvgLog2FC)
	}
	for _, r := range results {
		if r.PAdj < r.PValue {
			t.Errorf("module %s: adjusted p %g below raw p %g", r.Module, r.PAdj, r.PValue)
		}
		if r.Group != "group1" {
			t.Errorf("module %s tagged %q, want group1", r.Module, r.Group)
		}
	}
}

func TestCompareGroupsOverlap(t *testing.T) {
	eg, g1, _ := shiftedEigengenes(t, 10)
	if _, err := CompareGroups(eg, g1, g1[:5], Options{}); err == nil {
		t.Fatal("expected error for overlapping groups")
	}
}

func TestCompareGroupsEmpty(t *testing.T) {
	eg, g1, _ := shiftedEigengenes(t, 10)
	var empty *EmptyGroupError
	if _, err := CompareGroups(eg, nil, g1, Options{}); !errors.As(err, &empty) {
		t.Fatalf("expected EmptyGroupError, got %v", err)
	}
}

func TestCompareGroupsUnknownObservation(t *testing.T) {
	eg, g1, g2 := shiftedEigengenes(t, 10)
	if _, err := CompareGroups(eg, append(g1, "ghost"), g2, Options{}); err == nil {
		t.Fatal("expected error for unknown observation")
	}
}

func TestOneVsRestBlocks(t *testing.T) {
	eg, _, _ := shiftedEigengenes(t, 15)
	categories := make([]string, len(eg.Obs))
	for i := range categories {
		switch {
		case i < 10:
			categories[i] = "A"
		case i < 20:
			categories[i] = "B"
		default:
			categories[i] = "C"
		}
	}

	results, err := OneVsRest(eg, categories, Options{Kind: Wilcoxon})
	if err != nil {
		t.Fatalf("OneVsRest failed: %v", err)
	}

	perCategory := make(map[string]int)
	for _, r := range results {
		perCategory[r.Group]++
		if r.PAdj < r.PValue {
			t.Errorf("%s/%s: adjusted p %g below raw p %g", r.Group, r.Module, r.PAdj, r.PValue)
		}
	}
	for _, c := range []string{"A", "B", "C"} {
		if perCategory[c] != len(eg.Modules) {
			t.Errorf("category %s has %d rows, want %d", c, perCategory[c], len(eg.Modules))
		}
	}
	// Blocks come out in sorted category order.
	if results[0].Group != "A" {
		t.Errorf("first block is %q, want A", results[0].Group)
	}
}

func TestOneVsRestShapeMismatch(t *testing.T) {
	eg, _, _ := shiftedEigengenes(t, 5)
	if _, err := OneVsRest(eg, []string{"A"}, Options{}); err == nil {
		t.Fatal("expected error for wrong label count")
	}
}

func TestMinPctFilter(t *testing.T) {
	// Both groups sit entirely below the threshold: the module is dropped.
	scores := mat.NewDense(4, 1, []float64{-1, -2, -1, -2})
	eg := &summary.Eigengenes{
		Name:    "MEs",
		Obs:     []string{"c0", "c1", "c2", "c3"},
		Modules: []string{"blue"},
		Scores:  scores,
	}
	results, err := CompareGroups(eg, []string{"c0", "c1"}, []string{"c2", "c3"},
		Options{MinPct: 0.5, Threshold: 0})
	if err != nil {
		t.Fatalf("CompareGroups failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0 after MinPct filtering", len(results))
	}
}

func TestRankSumP(t *testing.T) {
	// Identical distributions: no evidence.
	same := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if p := rankSumP(same, same); p < 0.9 {
		t.Errorf("identical samples give p = %g, want near 1", p)
	}

	// Fully separated samples: strong evidence.
	lo := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	hi := []float64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	if p := rankSumP(lo, hi); p > 1e-3 {
		t.Errorf("separated samples give p = %g, want tiny", p)
	}

	// All values tied: defined and uninformative.
	if p := rankSumP([]float64{5, 5, 5}, []float64{5, 5, 5}); p != 1 {
		t.Errorf("all-tied samples give p = %g, want 1", p)
	}
}

func TestTiedRanks(t *testing.T) {
	ranks, tieSum := tiedRanks([]float64{2, 1, 2, 3})
	want := []float64{2.5, 1, 2.5, 4}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("rank[%d] = %g, want %g", i, ranks[i], want[i])
		}
	}
	// One tie group of size 2: 2^3 - 2 = 6.
	if tieSum != 6 {
		t.Errorf("tieSum = %g, want 6", tieSum)
	}
}

func TestBenjaminiHochberg(t *testing.T) {
	p := []float64{0.01, 0.04, 0.03, 0.005}
	adj := benjaminiHochberg(p)

	// Hand-computed: sorted p = [.005 .01 .03 .04], m=4.
	// raw candidates = [.02 .02 .04 .04]; running min from the top keeps them.
	want := map[float64]float64{0.005: 0.02, 0.01: 0.02, 0.03: 0.04, 0.04: 0.04}
	for i, raw := range p {
		if math.Abs(adj[i]-want[raw]) > 1e-12 {
			t.Errorf("adj[%g] = %g, want %g", raw, adj[i], want[raw])
		}
	}
}

func TestParseTestKind(t *testing.T) {
	for _, s := range []string{"wilcox", "wilcoxon", "mann-whitney"} {
		if k, err := ParseTestKind(s); err != nil || k != Wilcoxon {
			t.Errorf("ParseTestKind(%q) = %v,%v", s, k, err)
		}
	}
	if _, err := ParseTestKind("t-test"); err == nil {
		t.Error("expected error for unsupported kind")
	}
}

func TestLog2FoldChangeOrdering(t *testing.T) {
	if fc := log2FoldChange([]float64{4, 4}, []float64{2, 2}); math.Abs(fc-1) > 1e-12 {
		t.Errorf("log2FC(4,2) = %g, want 1", fc)
	}
	// Negative scores shift before the ratio; the sign of the comparison
	// still follows the means.
	if fc := log2FoldChange([]float64{-1, 0}, []float64{-3, -2}); fc <= 0 {
		t.Errorf("higher-mean group has log2FC %g, want positive", fc)
	}
}
