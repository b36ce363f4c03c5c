// Package softpower sweeps candidate soft-thresholding exponents and scores
// each trial network against a scale-free topology model. The sweep only
// produces a diagnostic table; picking a power is left to the caller or to
// the network constructor's default policy.
package softpower

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/logging"
	"github.com/coexnet/coexnet/pkg/network"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// InvalidPowerRangeError reports a sweep request with no usable candidate
// exponents.
type InvalidPowerRangeError struct {
	Powers []float64
}

func (e *InvalidPowerRangeError) Error() string {
	if len(e.Powers) == 0 {
		return "softpower: empty candidate power list"
	}
	return fmt.Sprintf("softpower: candidate powers must be positive, got %v", e.Powers)
}

// FitRow is the scale-free fit summary for one candidate power.
type FitRow struct {
	Power   float64
	SFTR2   float64 // signed fit index: -sign(slope) * R^2
	Slope   float64
	MeanK   float64
	MedianK float64
	MaxK    float64
}

// Table is the sweep output, one row per candidate power in input order.
type Table struct {
	NetworkType network.NetworkType
	Rows        []FitRow
}

// DefaultPowers returns the conventional candidate list: 1-10 then even
// powers up to 20 (unsigned) or 30 (signed), where higher exponents are
// routinely needed.
func DefaultPowers(nt network.NetworkType) []float64 {
	max := 20
	if nt == network.Signed || nt == network.SignedHybrid {
		max = 30
	}
	var powers []float64
	for p := 1; p <= 10; p++ {
		powers = append(powers, float64(p))
	}
	for p := 12; p <= max; p += 2 {
		powers = append(powers, float64(p))
	}
	return powers
}

// Sweep evaluates every candidate power against the expression matrix.
// Candidates are independent, so they run in parallel; the shared
// correlation matrix is computed once and read concurrently.
func Sweep(ctx context.Context, m *expr.Matrix, powers []float64, nt network.NetworkType, kind network.CorrelationKind) (*Table, error) {
	if len(powers) == 0 {
		return nil, &InvalidPowerRangeError{}
	}
	for _, p := range powers {
		if p <= 0 {
			return nil, &InvalidPowerRangeError{Powers: powers}
		}
	}

	start := time.Now()
	logging.InfoContext(ctx, "sweeping soft powers",
		"candidates", len(powers),
		"features", m.NumFeatures(),
		"networkType", nt.String(),
	)

	corr := network.Correlate(m, kind)

	rows := make([]FitRow, len(powers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, power := range powers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			adj := network.Adjacency(corr, power, nt)
			k := network.Connectivity(adj)
			r2, slope := scaleFreeFit(k)
			rows[i] = FitRow{
				Power:   power,
				SFTR2:   r2,
				Slope:   slope,
				MeanK:   stat.Mean(k, nil),
				MedianK: median(k),
				MaxK:    maxConnectivity(k),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "soft power sweep finished",
		"candidates", len(powers),
		"durationMs", time.Since(start).Milliseconds(),
	)
	return &Table{NetworkType: nt, Rows: rows}, nil
}

// scaleFreeFit bins the connectivity distribution, fits
// log10(p(k)) ~ log10(k) by least squares, and returns the signed fit index
// and the slope. Fewer than three usable bins yields a zero fit.
func scaleFreeFit(k []float64) (sftR2, slope float64) {
	const nBreaks = 10

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range k {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return 0, 0
	}

	width := (hi - lo) / nBreaks
	counts := make([]int, nBreaks)
	sums := make([]float64, nBreaks)
	for _, v := range k {
		bin := int((v - lo) / width)
		if bin >= nBreaks {
			bin = nBreaks - 1
		}
		counts[bin]++
		sums[bin] += v
	}

	var logK, logP []float64
	total := float64(len(k))
	for b := 0; b < nBreaks; b++ {
		if counts[b] == 0 {
			continue
		}
		meanK := sums[b] / float64(counts[b])
		freq := float64(counts[b]) / total
		if meanK <= 0 || freq <= 0 {
			continue
		}
		logK = append(logK, math.Log10(meanK))
		logP = append(logP, math.Log10(freq))
	}
	if len(logK) < 3 {
		return 0, 0
	}

	alpha, beta := stat.LinearRegression(logK, logP, nil, false)
	r2 := stat.RSquared(logK, logP, nil, alpha, beta)
	sign := 1.0
	if beta > 0 {
		sign = -1.0
	}
	return sign * r2, beta
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func maxConnectivity(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		if x > m {
			m = x
		}
	}
	return m
}

// PowerFits converts the table into the form the network constructor's
// default selection policy consumes.
func (t *Table) PowerFits() []network.PowerFit {
	fits := make([]network.PowerFit, len(t.Rows))
	for i, r := range t.Rows {
		fits[i] = network.PowerFit{Power: r.Power, SFTR2: r.SFTR2, Slope: r.Slope}
	}
	return fits
}

// Pick applies the default selection policy: lowest power reaching the fit
// threshold, otherwise the best-fitting power.
func (t *Table) Pick(threshold float64) (float64, error) {
	return network.SelectPower(t.PowerFits(), threshold)
}
