package expr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an expression matrix: observations (cells or metacells) as rows,
// features (genes) as columns. Entries are nonnegative counts or normalized
// values. The feature set and its order are fixed for one analysis run; all
// derived matrices index features by the same order.
type Matrix struct {
	obs      []string
	features []string
	data     *mat.Dense

	featureIdx map[string]int
	obsIdx     map[string]int
}

// ShapeError reports an expression matrix whose dimensions or feature set do
// not line up with what a pipeline stage expects.
type ShapeError struct {
	Op   string
	Want string
	Got  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want %s, got %s", e.Op, e.Want, e.Got)
}

// NewMatrix creates a Matrix from row-major data of len(obs)*len(features).
func NewMatrix(obs, features []string, data []float64) (*Matrix, error) {
	if len(data) != len(obs)*len(features) {
		return nil, &ShapeError{
			Op:   "expr.NewMatrix",
			Want: fmt.Sprintf("%d values (%d x %d)", len(obs)*len(features), len(obs), len(features)),
			Got:  fmt.Sprintf("%d values", len(data)),
		}
	}
	m := &Matrix{
		obs:      append([]string(nil), obs...),
		features: append([]string(nil), features...),
		data:     mat.NewDense(len(obs), len(features), append([]float64(nil), data...)),
	}
	m.buildIndexes()
	return m, nil
}

func newMatrixFromDense(obs, features []string, data *mat.Dense) *Matrix {
	m := &Matrix{obs: obs, features: features, data: data}
	m.buildIndexes()
	return m
}

func (m *Matrix) buildIndexes() {
	m.featureIdx = make(map[string]int, len(m.features))
	for i, f := range m.features {
		m.featureIdx[f] = i
	}
	m.obsIdx = make(map[string]int, len(m.obs))
	for i, o := range m.obs {
		m.obsIdx[o] = i
	}
}

// NumObs returns the number of observations (rows).
func (m *Matrix) NumObs() int { return len(m.obs) }

// NumFeatures returns the number of features (columns).
func (m *Matrix) NumFeatures() int { return len(m.features) }

// Obs returns the observation identifiers in row order.
func (m *Matrix) Obs() []string { return m.obs }

// Features returns the feature identifiers in column order.
func (m *Matrix) Features() []string { return m.features }

// Data exposes the underlying dense matrix (observations x features).
// Callers must treat it as read-only.
func (m *Matrix) Data() *mat.Dense { return m.data }

// At returns the value for observation row i and feature column j.
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// FeatureIndex returns the column of the named feature.
func (m *Matrix) FeatureIndex(name string) (int, bool) {
	i, ok := m.featureIdx[name]
	return i, ok
}

// ObsIndex returns the row of the named observation.
func (m *Matrix) ObsIndex(name string) (int, bool) {
	i, ok := m.obsIdx[name]
	return i, ok
}

// FeatureColumn copies the expression vector of feature column j.
func (m *Matrix) FeatureColumn(j int) []float64 {
	col := make([]float64, len(m.obs))
	mat.Col(col, j, m.data)
	return col
}

// Row copies the expression vector of observation row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, len(m.features))
	mat.Row(row, i, m.data)
	return row
}

// SubsetFeatures returns a new matrix restricted to the named features, in
// the given order. The input matrix is not modified.
func (m *Matrix) SubsetFeatures(names []string) (*Matrix, error) {
	data := mat.NewDense(len(m.obs), len(names), nil)
	for j, name := range names {
		src, ok := m.featureIdx[name]
		if !ok {
			return nil, &ShapeError{
				Op:   "expr.SubsetFeatures",
				Want: fmt.Sprintf("feature %q present", name),
				Got:  "absent",
			}
		}
		for i := range m.obs {
			data.Set(i, j, m.data.At(i, src))
		}
	}
	return newMatrixFromDense(append([]string(nil), m.obs...), append([]string(nil), names...), data), nil
}

// SubsetObs returns a new matrix restricted to the given observation rows.
func (m *Matrix) SubsetObs(rows []int) (*Matrix, error) {
	obs := make([]string, len(rows))
	data := mat.NewDense(len(rows), len(m.features), nil)
	for i, r := range rows {
		if r < 0 || r >= len(m.obs) {
			return nil, &ShapeError{
				Op:   "expr.SubsetObs",
				Want: fmt.Sprintf("row in [0,%d)", len(m.obs)),
				Got:  fmt.Sprintf("%d", r),
			}
		}
		obs[i] = m.obs[r]
		data.SetRow(i, m.Row(r))
	}
	return newMatrixFromDense(obs, append([]string(nil), m.features...), data), nil
}

// SubsetObsNames is SubsetObs addressed by observation identifier.
func (m *Matrix) SubsetObsNames(names []string) (*Matrix, error) {
	rows := make([]int, len(names))
	for i, n := range names {
		r, ok := m.obsIdx[n]
		if !ok {
			return nil, &ShapeError{
				Op:   "expr.SubsetObsNames",
				Want: fmt.Sprintf("observation %q present", n),
				Got:  "absent",
			}
		}
		rows[i] = r
	}
	return m.SubsetObs(rows)
}

// SameFeatures verifies that other carries the identical ordered feature set.
func (m *Matrix) SameFeatures(other *Matrix) error {
	if len(m.features) != len(other.features) {
		return &ShapeError{
			Op:   "expr.SameFeatures",
			Want: fmt.Sprintf("%d features", len(m.features)),
			Got:  fmt.Sprintf("%d features", len(other.features)),
		}
	}
	for i, f := range m.features {
		if other.features[i] != f {
			return &ShapeError{
				Op:   "expr.SameFeatures",
				Want: fmt.Sprintf("feature %q at column %d", f, i),
				Got:  fmt.Sprintf("feature %q", other.features[i]),
			}
		}
	}
	return nil
}
