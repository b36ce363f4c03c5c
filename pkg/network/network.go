// Package network builds weighted gene co-expression networks: correlation,
// soft-thresholded adjacency, topological overlap, hierarchical clustering
// with dynamic branch cutting, and eigengene-based module merging.
package network

import (
	"context"
	"time"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/logging"
	"github.com/coexnet/coexnet/pkg/summary"
	"gonum.org/v1/gonum/stat"
)

const defaultMinModuleSize = 30

// Construct runs the full network construction pipeline on an expression
// matrix (metacell-resolution by convention, but any matrix works). Given
// identical inputs and an explicit power, the output is bit-reproducible:
// there is no unseeded randomness anywhere in the chain.
func Construct(ctx context.Context, m *expr.Matrix, opts Options) (*Result, error) {
	if opts.Name == "" {
		opts.Name = "net"
	}
	if opts.MinModuleSize <= 0 {
		opts.MinModuleSize = defaultMinModuleSize
	}

	power := opts.Power
	if power <= 0 {
		selected, err := SelectPower(opts.PowerFits, 0.8)
		if err != nil {
			return nil, err
		}
		power = selected
		logging.InfoContext(ctx, "soft power selected from sweep table", "power", power)
	}

	start := time.Now()
	logging.InfoContext(ctx, "constructing network",
		"name", opts.Name,
		"features", m.NumFeatures(),
		"observations", m.NumObs(),
		"power", power,
		"networkType", opts.NetworkType.String(),
	)

	corr := Correlate(m, opts.Correlation)
	adj := Adjacency(corr, power, opts.NetworkType)
	tom, err := TOM(ctx, adj, corr, opts.TOMType, m.Features())
	if err != nil {
		return nil, err
	}

	dendro := AverageLinkage(tom.Dissimilarity(), m.Features())
	assignment := CutDynamic(dendro, opts.MinModuleSize, opts.DeepSplit)

	table, err := buildModuleTable(m.Features(), assignment)
	if err != nil {
		return nil, err
	}
	if opts.MergeCutHeight > 0 {
		if err := mergeCloseModules(m, table, opts.MergeCutHeight); err != nil {
			return nil, err
		}
	}

	if n := len(table.ModuleNames()); n < 2 {
		return nil, &DegenerateNetworkError{Modules: n, Power: power}
	}

	logging.InfoContext(ctx, "network constructed",
		"name", opts.Name,
		"modules", len(table.ModuleNames()),
		"unassigned", table.Size(expr.UnassignedModule),
		"durationMs", time.Since(start).Milliseconds(),
	)

	return &Result{
		Name:       opts.Name,
		Power:      power,
		TOM:        tom,
		Dendrogram: dendro,
		Table:      table,
	}, nil
}

// mergeCloseModules repeatedly merges the pair of modules whose eigengenes
// correlate above 1-cutHeight, smaller into larger, until no pair qualifies.
func mergeCloseModules(m *expr.Matrix, table *expr.ModuleTable, cutHeight float64) error {
	threshold := 1 - cutHeight
	for {
		modules := table.ModuleNames()
		if len(modules) < 2 {
			return nil
		}
		eg, err := summary.Compute(m, table)
		if err != nil {
			return err
		}

		bestA, bestB := "", ""
		bestCorr := threshold
		for i := 0; i < len(eg.Modules); i++ {
			ci, _ := eg.Column(eg.Modules[i])
			for j := i + 1; j < len(eg.Modules); j++ {
				cj, _ := eg.Column(eg.Modules[j])
				r := stat.Correlation(ci, cj, nil)
				if r > bestCorr {
					bestCorr = r
					bestA, bestB = eg.Modules[i], eg.Modules[j]
				}
			}
		}
		if bestA == "" {
			return nil
		}

		// Absorb the smaller module; ties keep the lexically smaller name.
		keep, drop := bestA, bestB
		if table.Size(bestB) > table.Size(bestA) {
			keep, drop = bestB, bestA
		}
		logging.Debug("merging correlated modules",
			"keep", keep, "drop", drop, "correlation", bestCorr)
		for i, mod := range table.Modules {
			if mod == drop {
				table.Modules[i] = keep
				table.Colors[i] = keep
			}
		}
	}
}
