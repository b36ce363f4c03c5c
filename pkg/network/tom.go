package network

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/coexnet/coexnet/pkg/logging"
	"gonum.org/v1/gonum/mat"
)

// TOMMatrix is a topological overlap matrix tagged with its feature order.
// Entries lie in [0,1], the matrix is symmetric, and the diagonal is 1.
type TOMMatrix struct {
	Labels []string
	Data   *mat.SymDense
}

// TOM derives the topological overlap matrix from an adjacency matrix:
//
//	k_i         = sum_{u != i} a_{iu}
//	numerator   = sum_{u != i,j} a_{iu} * a_{ju} + a_{ij}
//	denominator = min(k_i, k_j) + 1 - a_{ij}
//	TOM_{ij}    = numerator / denominator, TOM_{ii} = 1
//
// The signed variant weights each shared-neighbor product by the sign of the
// two underlying correlations and takes the absolute numerator, so paths
// through oppositely-correlated neighbors cancel instead of adding.
//
// Rows are computed in parallel; cancellation via ctx abandons the partial
// matrix.
func TOM(ctx context.Context, adj, corr *mat.SymDense, tt TOMType, labels []string) (*TOMMatrix, error) {
	n := adj.SymmetricDim()
	start := time.Now()
	logging.DebugContext(ctx, "starting TOM calculation", "features", n, "tomType", tt.String())

	k := Connectivity(adj)

	tom := mat.NewSymDense(n, nil)
	numCPU := runtime.NumCPU()
	rowsPerWorker := (n + numCPU - 1) / numCPU

	var wg sync.WaitGroup
	var cancelled bool
	var mu sync.Mutex

	worker := func(startRow, endRow int) {
		defer wg.Done()
		for i := startRow; i < endRow; i++ {
			if ctx.Err() != nil {
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return
			}
			tomRow(adj, corr, tt, k, tom, i, n)
		}
	}

	for w := 0; w < numCPU; w++ {
		lo := w * rowsPerWorker
		if lo >= n {
			break
		}
		hi := lo + rowsPerWorker
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go worker(lo, hi)
	}
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	logging.DebugContext(ctx, "TOM calculation finished",
		"features", n,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return &TOMMatrix{Labels: append([]string(nil), labels...), Data: tom}, nil
}

// tomRow fills row i of the upper triangle. SymDense writes to distinct
// (i,j>=i) cells are disjoint across workers, so no locking is needed.
func tomRow(adj, corr *mat.SymDense, tt TOMType, k []float64, tom *mat.SymDense, i, n int) {
	tom.SetSym(i, i, 1)
	for j := i + 1; j < n; j++ {
		dot := 0.0
		for u := 0; u < n; u++ {
			if u == i || u == j {
				continue
			}
			prod := adj.At(i, u) * adj.At(j, u)
			if tt == TOMSigned && corr.At(i, u)*corr.At(j, u) < 0 {
				prod = -prod
			}
			dot += prod
		}
		numerator := dot + adj.At(i, j)
		if tt == TOMSigned {
			numerator = math.Abs(numerator)
		}
		denominator := math.Min(k[i], k[j]) + 1 - adj.At(i, j)

		v := 0.0
		if denominator > 0 {
			v = numerator / denominator
		}
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		tom.SetSym(i, j, v)
	}
}

// Dissimilarity converts topological overlap into the 1-TOM distance used
// for clustering.
func (t *TOMMatrix) Dissimilarity() *mat.SymDense {
	n := t.Data.SymmetricDim()
	diss := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			diss.SetSym(i, j, 1-t.Data.At(i, j))
		}
	}
	return diss
}
