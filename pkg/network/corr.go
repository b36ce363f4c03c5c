package network

import (
	"math"
	"sort"

	"github.com/coexnet/coexnet/pkg/expr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Correlate computes the feature-by-feature correlation matrix of an
// expression matrix. Zero-variance features get zero correlation to
// everything instead of NaN. The diagonal is exactly 1.
func Correlate(m *expr.Matrix, kind CorrelationKind) *mat.SymDense {
	x := m.Data()
	if kind == Spearman {
		x = rankTransform(x)
	}

	p := m.NumFeatures()
	corr := mat.NewSymDense(p, nil)
	stat.CorrelationMatrix(corr, x, nil)

	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := corr.At(i, j)
			if math.IsNaN(v) {
				corr.SetSym(i, j, 0)
			}
		}
		corr.SetSym(i, i, 1)
	}
	return corr
}

// rankTransform replaces each column with average ranks, turning a Pearson
// correlation of the result into Spearman's rho.
func rankTransform(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		ranks := averageRanks(col)
		out.SetCol(j, ranks)
	}
	return out
}

// averageRanks assigns 1-based ranks with ties receiving the mean of the
// ranks they span.
func averageRanks(v []float64) []float64 {
	n := len(v)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		// ranks i+1 .. j+1 share the average
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Adjacency applies the soft-thresholding power transform to a correlation
// matrix. The diagonal is zero; the TOM step restores a unit diagonal.
// All entries lie in [0,1].
func Adjacency(corr *mat.SymDense, power float64, nt NetworkType) *mat.SymDense {
	p := corr.SymmetricDim()
	adj := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			r := corr.At(i, j)
			var s float64
			switch nt {
			case Signed:
				s = (r + 1) / 2
			case Unsigned:
				s = math.Abs(r)
			case SignedHybrid:
				s = r
			}
			if s < 0 {
				s = 0
			} else if s > 1 {
				s = 1
			}
			adj.SetSym(i, j, math.Pow(s, power))
		}
	}
	return adj
}

// Connectivity returns per-feature whole-network connectivity: the row sums
// of the adjacency matrix, excluding the diagonal.
func Connectivity(adj *mat.SymDense) []float64 {
	p := adj.SymmetricDim()
	k := make([]float64, p)
	for i := 0; i < p; i++ {
		sum := 0.0
		for j := 0; j < p; j++ {
			if j == i {
				continue
			}
			sum += adj.At(i, j)
		}
		k[i] = sum
	}
	return k
}
