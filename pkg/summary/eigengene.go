package summary

import (
	"fmt"
	"math"
	"sort"

	"github.com/coexnet/coexnet/pkg/expr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Eigengenes holds one summary score per observation per module: the first
// principal component of the module's scaled feature sub-matrix, with its
// sign oriented so that it correlates positively with the module's mean
// expression. Raw and harmonized variants coexist under distinct names.
type Eigengenes struct {
	Name    string
	Obs     []string
	Modules []string
	Scores  *mat.Dense // observations x modules

	// VarExplained is the fraction of variance captured by the first
	// component, per module.
	VarExplained []float64
}

// Compute calculates module eigengenes over the full-resolution expression
// matrix. The unassigned module is skipped.
func Compute(m *expr.Matrix, table *expr.ModuleTable) (*Eigengenes, error) {
	modules := table.ModuleNames()
	if len(modules) == 0 {
		return nil, fmt.Errorf("summary.Compute: module table has no assigned modules")
	}

	nObs := m.NumObs()
	scores := mat.NewDense(nObs, len(modules), nil)
	varExplained := make([]float64, len(modules))

	for j, module := range modules {
		members := table.MembersOf(module)
		sub, err := m.SubsetFeatures(members)
		if err != nil {
			return nil, fmt.Errorf("summary.Compute: module %s: %w", module, err)
		}
		pc, ve, err := firstPrincipalComponent(sub.Data())
		if err != nil {
			return nil, fmt.Errorf("summary.Compute: module %s: %w", module, err)
		}
		orientSign(pc, sub.Data())
		scores.SetCol(j, pc)
		varExplained[j] = ve
	}

	return &Eigengenes{
		Name:         "MEs",
		Obs:          append([]string(nil), m.Obs()...),
		Modules:      modules,
		Scores:       scores,
		VarExplained: varExplained,
	}, nil
}

// firstPrincipalComponent returns the first left singular vector of the
// column-centered, column-scaled matrix, and the variance fraction it
// explains. The result does not depend on column order (up to sign, which
// the caller fixes).
func firstPrincipalComponent(x *mat.Dense) ([]float64, float64, error) {
	r, c := x.Dims()
	scaled := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := range col {
			scaled.Set(i, j, (col[i]-mean)/std)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(scaled, mat.SVDThin); !ok {
		return nil, 0, fmt.Errorf("svd did not converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	pc := make([]float64, r)
	mat.Col(pc, 0, &u)

	total := 0.0
	for _, s := range values {
		total += s * s
	}
	ve := 0.0
	if total > 0 {
		ve = values[0] * values[0] / total
	}
	return pc, ve, nil
}

// orientSign flips pc in place if it anti-correlates with the module's mean
// expression profile, so repeated runs agree on direction.
func orientSign(pc []float64, sub *mat.Dense) {
	r, c := sub.Dims()
	means := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += sub.At(i, j)
		}
		means[i] = sum / float64(c)
	}
	if stat.Correlation(pc, means, nil) < 0 {
		for i := range pc {
			pc[i] = -pc[i]
		}
	}
}

// Column copies the score vector for one module.
func (e *Eigengenes) Column(module string) ([]float64, bool) {
	for j, m := range e.Modules {
		if m == module {
			col := make([]float64, len(e.Obs))
			mat.Col(col, j, e.Scores)
			return col, true
		}
	}
	return nil, false
}

// Score returns the summary score for a named observation and module.
func (e *Eigengenes) Score(obs, module string) (float64, bool) {
	oi := -1
	for i, o := range e.Obs {
		if o == obs {
			oi = i
			break
		}
	}
	if oi < 0 {
		return 0, false
	}
	for j, m := range e.Modules {
		if m == module {
			return e.Scores.At(oi, j), true
		}
	}
	return 0, false
}

// Hub is a feature ranked by connectivity to its own module.
type Hub struct {
	Feature string
	KME     float64
}

// AppendKME computes eigengene-based connectivity for every feature against
// every module eigengene and appends the columns to the module table. The
// matrix must cover the same observation set the eigengenes were computed on.
func AppendKME(m *expr.Matrix, table *expr.ModuleTable, eg *Eigengenes) error {
	if m.NumObs() != len(eg.Obs) {
		return &expr.ShapeError{
			Op:   "summary.AppendKME",
			Want: fmt.Sprintf("%d observations", len(eg.Obs)),
			Got:  fmt.Sprintf("%d observations", m.NumObs()),
		}
	}
	egCol := make([]float64, len(eg.Obs))
	for j, module := range eg.Modules {
		mat.Col(egCol, j, eg.Scores)
		col := make([]float64, len(table.Features))
		for i, feature := range table.Features {
			fi, ok := m.FeatureIndex(feature)
			if !ok {
				return &expr.ShapeError{
					Op:   "summary.AppendKME",
					Want: fmt.Sprintf("feature %q present", feature),
					Got:  "absent",
				}
			}
			r := stat.Correlation(m.FeatureColumn(fi), egCol, nil)
			if math.IsNaN(r) {
				r = 0
			}
			col[i] = r
		}
		table.KME[module] = col
	}
	return nil
}

// HubGenes returns the top n features of each module ranked by descending
// kME to their own module. Ties break on feature identifier so results are
// stable between runs.
func HubGenes(table *expr.ModuleTable, n int) (map[string][]Hub, error) {
	if n <= 0 {
		return nil, fmt.Errorf("summary.HubGenes: n must be positive, got %d", n)
	}
	hubs := make(map[string][]Hub)
	for _, module := range table.ModuleNames() {
		kme, ok := table.KME[module]
		if !ok {
			return nil, fmt.Errorf("summary.HubGenes: no kME column for module %s (run AppendKME first)", module)
		}
		var ranked []Hub
		for i, feature := range table.Features {
			if table.Modules[i] != module {
				continue
			}
			ranked = append(ranked, Hub{Feature: feature, KME: kme[i]})
		}
		sort.Slice(ranked, func(a, b int) bool {
			if ranked[a].KME != ranked[b].KME {
				return ranked[a].KME > ranked[b].KME
			}
			return ranked[a].Feature < ranked[b].Feature
		})
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		hubs[module] = ranked
	}
	return hubs, nil
}
