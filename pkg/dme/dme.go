// Package dme tests module eigengene distributions between observation
// groups: a two-group comparison and a one-vs-rest sweep over a categorical
// label, with rank-based statistics and Benjamini-Hochberg correction.
package dme

import (
	"fmt"
	"math"
	"sort"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/summary"
	"gonum.org/v1/gonum/mat"
)

// TestKind is the closed set of supported statistical tests.
type TestKind int

const (
	// Wilcoxon is the Mann-Whitney U rank-sum test (the default).
	Wilcoxon TestKind = iota
)

// ParseTestKind converts a config string to a TestKind.
func ParseTestKind(s string) (TestKind, error) {
	switch s {
	case "wilcox", "wilcoxon", "mann-whitney":
		return Wilcoxon, nil
	}
	return 0, fmt.Errorf("dme: unknown test kind %q", s)
}

// Options configure a differential test invocation.
type Options struct {
	Kind TestKind
	// MinPct drops modules where neither group has at least this fraction
	// of observations scoring above Threshold. Zero disables the filter.
	MinPct float64
	// Threshold is the near-zero score cutoff used for the group fractions.
	Threshold float64
}

// EmptyGroupError reports a comparison set that is empty after filtering.
type EmptyGroupError struct {
	Group string
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("dme: comparison group %q is empty", e.Group)
}

// Result is one module's differential test outcome. Results are never
// mutated after creation.
type Result struct {
	Module string
	// Group tags the foreground category in one-vs-rest sweeps; it is
	// "group1" for plain two-group comparisons.
	Group     string
	AvgLog2FC float64
	PctIn     float64 // fraction of the foreground group above Threshold
	PctOut    float64 // fraction of the background group above Threshold
	PValue    float64
	PAdj      float64
}

// CompareGroups runs the two-group test over every module of an eigengene
// matrix (raw or harmonized, the caller picks which). The two observation
// sets must be disjoint. Output is ordered by ascending adjusted p-value.
func CompareGroups(eg *summary.Eigengenes, group1, group2 []string, opts Options) ([]Result, error) {
	rows1, err := resolveRows(eg, group1, "group1")
	if err != nil {
		return nil, err
	}
	rows2, err := resolveRows(eg, group2, "group2")
	if err != nil {
		return nil, err
	}
	for r := range rows1 {
		if _, shared := rows2[r]; shared {
			return nil, fmt.Errorf("dme: comparison groups overlap at observation %q", eg.Obs[r])
		}
	}
	return compareRows(eg, sortedKeys(rows1), sortedKeys(rows2), "group1", opts)
}

// OneVsRest repeats the two-group test for every category of a label,
// foreground vs. the union of all others, tagging each block with its
// category. P-value correction runs within each block, not globally,
// matching repeated pairwise marker-test semantics.
func OneVsRest(eg *summary.Eigengenes, categories []string, opts Options) ([]Result, error) {
	if len(categories) != len(eg.Obs) {
		return nil, &expr.ShapeError{
			Op:   "dme.OneVsRest",
			Want: fmt.Sprintf("%d category labels", len(eg.Obs)),
			Got:  fmt.Sprintf("%d category labels", len(categories)),
		}
	}

	distinct := make(map[string][]int)
	for i, c := range categories {
		distinct[c] = append(distinct[c], i)
	}
	names := make([]string, 0, len(distinct))
	for c := range distinct {
		names = append(names, c)
	}
	sort.Strings(names)

	var all []Result
	for _, category := range names {
		fg := distinct[category]
		var bg []int
		for i, c := range categories {
			if c != category {
				bg = append(bg, i)
			}
		}
		block, err := compareRows(eg, fg, bg, category, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, block...)
	}
	return all, nil
}

func resolveRows(eg *summary.Eigengenes, obs []string, label string) (map[int]bool, error) {
	idx := make(map[string]int, len(eg.Obs))
	for i, o := range eg.Obs {
		idx[o] = i
	}
	rows := make(map[int]bool, len(obs))
	for _, o := range obs {
		i, ok := idx[o]
		if !ok {
			return nil, fmt.Errorf("dme: unknown observation %q in %s", o, label)
		}
		rows[i] = true
	}
	if len(rows) == 0 {
		return nil, &EmptyGroupError{Group: label}
	}
	return rows, nil
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func compareRows(eg *summary.Eigengenes, rows1, rows2 []int, tag string, opts Options) ([]Result, error) {
	if len(rows1) == 0 {
		return nil, &EmptyGroupError{Group: tag}
	}
	if len(rows2) == 0 {
		return nil, &EmptyGroupError{Group: "rest"}
	}

	col := make([]float64, len(eg.Obs))
	var results []Result
	for j, module := range eg.Modules {
		mat.Col(col, j, eg.Scores)
		x1 := pick(col, rows1)
		x2 := pick(col, rows2)

		pct1 := fractionAbove(x1, opts.Threshold)
		pct2 := fractionAbove(x2, opts.Threshold)
		if opts.MinPct > 0 && pct1 < opts.MinPct && pct2 < opts.MinPct {
			continue
		}

		results = append(results, Result{
			Module:    module,
			Group:     tag,
			AvgLog2FC: log2FoldChange(x1, x2),
			PctIn:     pct1,
			PctOut:    pct2,
			PValue:    rankSumP(x1, x2),
		})
	}
	if len(results) == 0 {
		return results, nil
	}

	pvals := make([]float64, len(results))
	for i, r := range results {
		pvals[i] = r.PValue
	}
	adjusted := benjaminiHochberg(pvals)
	for i := range results {
		results[i].PAdj = adjusted[i]
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].PAdj != results[b].PAdj {
			return results[a].PAdj < results[b].PAdj
		}
		if results[a].PValue != results[b].PValue {
			return results[a].PValue < results[b].PValue
		}
		return results[a].Module < results[b].Module
	})
	return results, nil
}

func pick(col []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = col[r]
	}
	return out
}

func fractionAbove(v []float64, threshold float64) float64 {
	n := 0
	for _, x := range v {
		if x > threshold {
			n++
		}
	}
	return float64(n) / float64(len(v))
}

// log2FoldChange compares group means. Eigengene scores can be negative, so
// when either group dips to or below zero both groups are shifted by the
// global minimum plus a small epsilon before the ratio, keeping log2 defined
// while preserving the ordering of the means.
func log2FoldChange(x1, x2 []float64) float64 {
	minVal := math.Inf(1)
	for _, v := range x1 {
		minVal = math.Min(minVal, v)
	}
	for _, v := range x2 {
		minVal = math.Min(minVal, v)
	}
	shift := 0.0
	if minVal <= 0 {
		shift = -minVal + 1e-9
	}

	mean := func(v []float64) float64 {
		s := 0.0
		for _, x := range v {
			s += x
		}
		return s/float64(len(v)) + shift
	}
	return math.Log2(mean(x1) / mean(x2))
}
