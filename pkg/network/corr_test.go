package network

import (
	"math"
	"testing"

	"github.com/coexnet/coexnet/pkg/expr"
	"gonum.org/v1/gonum/mat"
)

func corrMatrix(t *testing.T) *expr.Matrix {
	t.Helper()
	// gA and gB move together, gC moves opposite, gD is constant.
	m, err := expr.NewMatrix(
		[]string{"c1", "c2", "c3", "c4"},
		[]string{"gA", "gB", "gC", "gD"},
		[]float64{
			1, 2, 8, 5,
			2, 4, 6, 5,
			3, 6, 4, 5,
			4, 8, 2, 5,
		},
	)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	return m
}

func TestCorrelatePearson(t *testing.T) {
	corr := Correlate(corrMatrix(t), Pearson)

	for i := 0; i < 4; i++ {
		if corr.At(i, i) != 1 {
			t.Errorf("diagonal [%d] = %g, want 1", i, corr.At(i, i))
		}
	}
	if got := corr.At(0, 1); math.Abs(got-1) > 1e-12 {
		t.Errorf("corr(gA,gB) = %g, want 1", got)
	}
	if got := corr.At(0, 2); math.Abs(got+1) > 1e-12 {
		t.Errorf("corr(gA,gC) = %g, want -1", got)
	}
	// Constant feature correlates with nothing instead of NaN.
	if got := corr.At(0, 3); got != 0 {
		t.Errorf("corr(gA,gD) = %g, want 0", got)
	}
}

func TestCorrelateSpearmanMonotone(t *testing.T) {
	// A monotone but nonlinear relationship: Spearman sees rho=1.
	m, err := expr.NewMatrix(
		[]string{"c1", "c2", "c3", "c4", "c5"},
		[]string{"gA", "gB"},
		[]float64{
			1, 1,
			2, 4,
			3, 9,
			4, 100,
			5, 101,
		},
	)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	corr := Correlate(m, Spearman)
	if got := corr.At(0, 1); math.Abs(got-1) > 1e-12 {
		t.Errorf("spearman(gA,gB) = %g, want 1", got)
	}
}

func TestAdjacencyTransforms(t *testing.T) {
	corr := mat.NewSymDense(2, nil)
	corr.SetSym(0, 0, 1)
	corr.SetSym(1, 1, 1)
	corr.SetSym(0, 1, -0.5)

	tests := []struct {
		nt   NetworkType
		want float64
	}{
		{Signed, math.Pow(0.25, 2)},
		{Unsigned, math.Pow(0.5, 2)},
		{SignedHybrid, 0}, // negative correlation clipped to zero
	}
	for _, tc := range tests {
		adj := Adjacency(corr, 2, tc.nt)
		if got := adj.At(0, 1); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s adjacency = %g, want %g", tc.nt, got, tc.want)
		}
		if adj.At(0, 0) != 0 {
			t.Errorf("%s diagonal = %g, want 0", tc.nt, adj.At(0, 0))
		}
	}
}

func TestAdjacencyPowerMonotone(t *testing.T) {
	corr := Correlate(corrMatrix(t), Pearson)
	lo := Adjacency(corr, 2, Unsigned)
	hi := Adjacency(corr, 6, Unsigned)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if hi.At(i, j) > lo.At(i, j)+1e-15 {
				t.Errorf("raising the power increased adjacency at (%d,%d): %g > %g",
					i, j, hi.At(i, j), lo.At(i, j))
			}
		}
	}
}

func TestConnectivity(t *testing.T) {
	adj := mat.NewSymDense(3, nil)
	adj.SetSym(0, 1, 0.5)
	adj.SetSym(0, 2, 0.25)
	adj.SetSym(1, 2, 1)

	k := Connectivity(adj)
	want := []float64{0.75, 1.5, 1.25}
	for i := range want {
		if math.Abs(k[i]-want[i]) > 1e-12 {
			t.Errorf("k[%d] = %g, want %g", i, k[i], want[i])
		}
	}
}

func TestAverageRanksTies(t *testing.T) {
	ranks := averageRanks([]float64{3, 1, 3, 2})
	want := []float64{3.5, 1, 3.5, 2}
	for i := range want {
		if ranks[i] != want[i] {
			t.Errorf("rank[%d] = %g, want %g", i, ranks[i], want[i])
		}
	}
}
