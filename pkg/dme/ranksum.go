package dme

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// rankSumP computes the two-sided Mann-Whitney U p-value using the normal
// approximation with tie correction and continuity correction. This is the
// external rank-sum primitive of the pipeline; any correct implementation
// with the same contract may replace it.
func rankSumP(x1, x2 []float64) float64 {
	n1, n2 := float64(len(x1)), float64(len(x2))
	combined := make([]float64, 0, len(x1)+len(x2))
	combined = append(combined, x1...)
	combined = append(combined, x2...)
	ranks, tieSum := tiedRanks(combined)

	r1 := 0.0
	for i := range x1 {
		r1 += ranks[i]
	}
	u1 := r1 - n1*(n1+1)/2

	n := n1 + n2
	mu := n1 * n2 / 2
	variance := n1 * n2 / 12 * ((n + 1) - tieSum/(n*(n-1)))
	if variance <= 0 {
		// All values tied: no evidence either way.
		return 1
	}

	z := u1 - mu
	// Continuity correction toward the mean.
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= math.Sqrt(variance)

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * normal.CDF(-math.Abs(z))
	if p > 1 {
		p = 1
	}
	return p
}

// tiedRanks assigns 1-based average ranks and returns the tie-correction
// term sum(t^3 - t) over tie groups of size t.
func tiedRanks(v []float64) (ranks []float64, tieSum float64) {
	n := len(v)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	ranks = make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		t := float64(j - i + 1)
		tieSum += t*t*t - t
		i = j + 1
	}
	return ranks, tieSum
}

// benjaminiHochberg adjusts p-values for multiple testing. Adjusted values
// are monotone over the ranked raw values and never smaller than the raw
// p-value they correct.
func benjaminiHochberg(p []float64) []float64 {
	m := len(p)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m - 1; rank >= 0; rank-- {
		i := order[rank]
		candidate := p[i] * float64(m) / float64(rank+1)
		if candidate < running {
			running = candidate
		}
		adjusted[i] = running
	}
	return adjusted
}
