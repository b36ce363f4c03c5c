package network

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dendrogram is the linkage structure of an agglomerative clustering run.
// Merge follows the R hclust convention: a negative entry -(i+1) refers to
// leaf i, a positive entry m refers to the cluster formed at step m (1-based).
type Dendrogram struct {
	Merge  [][2]int
	Height []float64
	Order  []int
	Labels []string
}

// AverageLinkage clusters leaves by UPGMA over a dissimilarity matrix.
// Ties in the minimum inter-cluster distance break on the smallest cluster
// id pair, so identical inputs always produce identical dendrograms.
func AverageLinkage(diss *mat.SymDense, labels []string) *Dendrogram {
	n := diss.SymmetricDim()
	d := &Dendrogram{
		Merge:  make([][2]int, 0, n-1),
		Height: make([]float64, 0, n-1),
		Labels: append([]string(nil), labels...),
	}
	if n == 0 {
		return d
	}

	// Working distance matrix over cluster slots. Slot i starts as leaf i;
	// a merge collapses into the lower slot and deactivates the higher.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i != j {
				dist[i][j] = diss.At(i, j)
			}
		}
	}
	active := make([]bool, n)
	size := make([]int, n)
	// ref holds the hclust-convention reference of the cluster in each slot.
	ref := make([]int, n)
	for i := 0; i < n; i++ {
		active[i] = true
		size[i] = 1
		ref[i] = -(i + 1)
	}

	for step := 1; step < n; step++ {
		// Find the closest active pair, smallest (a,b) on ties.
		a, b := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if dist[i][j] < best {
					best = dist[i][j]
					a, b = i, j
				}
			}
		}

		d.Merge = append(d.Merge, [2]int{ref[a], ref[b]})
		d.Height = append(d.Height, best)

		// Lance-Williams update for average linkage.
		na, nb := float64(size[a]), float64(size[b])
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			upd := (na*dist[a][k] + nb*dist[b][k]) / (na + nb)
			dist[a][k] = upd
			dist[k][a] = upd
		}
		size[a] += size[b]
		active[b] = false
		ref[a] = step
	}

	d.Order = leafOrder(d.Merge, n)
	return d
}

// leafOrder flattens the merge tree left-to-right so plotting layers can lay
// leaves out without crossings.
func leafOrder(merge [][2]int, n int) []int {
	if len(merge) == 0 {
		if n == 1 {
			return []int{0}
		}
		return nil
	}
	order := make([]int, 0, n)
	var walk func(ref int)
	walk = func(ref int) {
		if ref < 0 {
			order = append(order, -ref-1)
			return
		}
		walk(merge[ref-1][0])
		walk(merge[ref-1][1])
	}
	walk(len(merge))
	return order
}

// leavesUnder collects the leaf indices under a merge reference.
func leavesUnder(merge [][2]int, ref int) []int {
	var leaves []int
	var walk func(ref int)
	walk = func(ref int) {
		if ref < 0 {
			leaves = append(leaves, -ref-1)
			return
		}
		walk(merge[ref-1][0])
		walk(merge[ref-1][1])
	}
	walk(ref)
	return leaves
}
