// Package metacell aggregates transcriptomically similar cells into
// metacells: small k-nearest-neighbor neighborhoods in a low-dimensional
// embedding, collapsed into single expression profiles. Aggregation runs
// independently per group (e.g. sample x cell type), so metacells never mix
// observations from different groups.
package metacell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/logging"
	"github.com/google/uuid"
	"github.com/hupe1980/vecgo"
)

// AggregateKind selects how neighborhood expression vectors collapse.
type AggregateKind int

const (
	AggregateMean AggregateKind = iota
	AggregateSum
)

// ParseAggregateKind converts a config string to an AggregateKind.
func ParseAggregateKind(s string) (AggregateKind, error) {
	switch s {
	case "mean", "average":
		return AggregateMean, nil
	case "sum":
		return AggregateSum, nil
	}
	return 0, fmt.Errorf("metacell: unknown aggregate kind %q", s)
}

// Options control neighborhood construction.
type Options struct {
	// K is the neighborhood size (the seed cell counts toward it).
	K int
	// MaxShared caps how many source cells any two metacells may share.
	MaxShared int
	// MinCells is the smallest group that will be aggregated at all.
	MinCells int

	Aggregate AggregateKind
}

// InsufficientGroupSizeError reports a group too small to aggregate.
type InsufficientGroupSizeError struct {
	Group    string
	Size     int
	MinCells int
}

func (e *InsufficientGroupSizeError) Error() string {
	return fmt.Sprintf("metacell: group %q has %d cells, need at least %d", e.Group, e.Size, e.MinCells)
}

// ErrNoMetacells is returned when every group was skipped or filtered away.
var ErrNoMetacells = errors.New("metacell: no metacells produced by any group")

// Metacell records the provenance of one aggregated observation.
type Metacell struct {
	ID      string
	Group   string
	Sources []string
}

// Result is the output of one aggregation run.
type Result struct {
	// Matrix holds one row per metacell over the full feature set.
	Matrix *expr.Matrix
	// Metacells is parallel to the matrix rows.
	Metacells []Metacell
	// Groups carries the composite "group" key plus each original grouping
	// key, recovered per metacell, for downstream grouping and testing.
	Groups *expr.GroupAssignment
	// Skipped lists groups dropped with a warning (too small, or no valid
	// neighborhoods after overlap filtering).
	Skipped []string
	// RunID tags the run for provenance.
	RunID string
}

// Aggregate builds metacells for every group defined by the Cartesian
// product of the given label keys. Groups that cannot be aggregated are
// skipped with a warning; the run fails only when nothing at all survives.
// The input matrix is never modified.
func Aggregate(ctx context.Context, m *expr.Matrix, emb *expr.Embedding, labels *expr.GroupAssignment, keys []string, opts Options) (*Result, error) {
	if err := emb.AlignedWith(m); err != nil {
		return nil, err
	}
	if opts.K <= 0 {
		return nil, fmt.Errorf("metacell: k must be positive, got %d", opts.K)
	}

	groups, err := labels.GroupBy(keys...)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	start := time.Now()
	logging.InfoContext(ctx, "aggregating metacells",
		"groups", len(groups),
		"k", opts.K,
		"maxShared", opts.MaxShared,
		"minCells", opts.MinCells,
	)

	var (
		cells   []Metacell
		rows    []float64
		skipped []string
	)
	for _, group := range groups {
		groupCells, groupRows, err := aggregateGroup(ctx, m, emb, group, opts)
		if err != nil {
			var small *InsufficientGroupSizeError
			if errors.As(err, &small) {
				logging.WarnContext(ctx, "skipping group", "group", group.Name, "error", err.Error())
				skipped = append(skipped, group.Name)
				continue
			}
			return nil, err
		}
		if len(groupCells) == 0 {
			logging.WarnContext(ctx, "group yielded no metacells after overlap filtering", "group", group.Name)
			skipped = append(skipped, group.Name)
			continue
		}
		cells = append(cells, groupCells...)
		rows = append(rows, groupRows...)
	}
	if len(cells) == 0 {
		return nil, ErrNoMetacells
	}

	obs := make([]string, len(cells))
	for i, c := range cells {
		obs[i] = c.ID
	}
	matrix, err := expr.NewMatrix(obs, m.Features(), rows)
	if err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "metacell aggregation finished",
		"metacells", len(cells),
		"skippedGroups", len(skipped),
		"durationMs", time.Since(start).Milliseconds(),
	)

	return &Result{
		Matrix:    matrix,
		Metacells: cells,
		Groups:    metacellGroups(cells, keys),
		Skipped:   skipped,
		RunID:     runID,
	}, nil
}

// aggregateGroup runs kNN search and greedy neighborhood selection within a
// single group.
func aggregateGroup(ctx context.Context, m *expr.Matrix, emb *expr.Embedding, group expr.Group, opts Options) ([]Metacell, []float64, error) {
	if len(group.Rows) < opts.MinCells {
		return nil, nil, &InsufficientGroupSizeError{Group: group.Name, Size: len(group.Rows), MinCells: opts.MinCells}
	}

	k := opts.K
	if k > len(group.Rows) {
		k = len(group.Rows)
	}

	db, err := vecgo.Flat[int](emb.Dims()).SquaredL2().Build()
	if err != nil {
		return nil, nil, fmt.Errorf("metacell: building kNN index for group %q: %w", group.Name, err)
	}
	for local, row := range group.Rows {
		coords := emb.Row(row)
		vec := make([]float32, len(coords))
		for d, v := range coords {
			vec[d] = float32(v)
		}
		if _, err := db.Insert(ctx, vecgo.VectorWithData[int]{Vector: vec, Data: local}); err != nil {
			return nil, nil, fmt.Errorf("metacell: indexing group %q: %w", group.Name, err)
		}
	}

	// Greedy selection: walk seeds in order, accept a neighborhood only if
	// it shares at most MaxShared cells with every neighborhood already
	// accepted. memberOf tracks which accepted neighborhoods contain a cell.
	var (
		cells    []Metacell
		rows     []float64
		memberOf = make(map[int][]int)
	)
	obsNames := m.Obs()
	for _, row := range group.Rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		coords := emb.Row(row)
		query := make([]float32, len(coords))
		for d, v := range coords {
			query[d] = float32(v)
		}
		results, err := db.Search(query).KNN(k).Execute(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("metacell: kNN search in group %q: %w", group.Name, err)
		}

		neighborhood := make([]int, 0, len(results))
		for _, r := range results {
			neighborhood = append(neighborhood, r.Data)
		}
		if !withinOverlapCap(neighborhood, memberOf, len(cells), opts.MaxShared) {
			continue
		}

		selected := len(cells)
		sources := make([]string, len(neighborhood))
		for i, n := range neighborhood {
			memberOf[n] = append(memberOf[n], selected)
			sources[i] = obsNames[group.Rows[n]]
		}
		cells = append(cells, Metacell{
			ID:      fmt.Sprintf("%s#%d", group.Name, selected+1),
			Group:   group.Name,
			Sources: sources,
		})
		rows = append(rows, aggregateRows(m, group.Rows, neighborhood, opts.Aggregate)...)
	}
	return cells, rows, nil
}

// withinOverlapCap checks the candidate neighborhood against every accepted
// neighborhood without materializing pairwise intersections.
func withinOverlapCap(candidate []int, memberOf map[int][]int, accepted, maxShared int) bool {
	if accepted == 0 {
		return true
	}
	overlap := make(map[int]int)
	for _, cell := range candidate {
		for _, sel := range memberOf[cell] {
			overlap[sel]++
			if overlap[sel] > maxShared {
				return false
			}
		}
	}
	return true
}

// aggregateRows collapses the expression rows of a neighborhood.
func aggregateRows(m *expr.Matrix, groupRows, neighborhood []int, kind AggregateKind) []float64 {
	out := make([]float64, m.NumFeatures())
	for _, n := range neighborhood {
		row := m.Row(groupRows[n])
		for j, v := range row {
			out[j] += v
		}
	}
	if kind == AggregateMean {
		scale := 1 / float64(len(neighborhood))
		for j := range out {
			out[j] *= scale
		}
	}
	return out
}

// metacellGroups rebuilds per-key labels from composite group names.
func metacellGroups(cells []Metacell, keys []string) *expr.GroupAssignment {
	obs := make([]string, len(cells))
	composite := make([]string, len(cells))
	perKey := make([][]string, len(keys))
	for i := range perKey {
		perKey[i] = make([]string, len(cells))
	}
	for i, c := range cells {
		obs[i] = c.ID
		composite[i] = c.Group
		parts := strings.Split(c.Group, "#")
		for ki := range keys {
			if ki < len(parts) {
				perKey[ki][i] = parts[ki]
			}
		}
	}
	ga := expr.NewGroupAssignment(obs)
	_ = ga.SetKey("group", composite)
	for ki, key := range keys {
		_ = ga.SetKey(key, perKey[ki])
	}
	return ga
}
