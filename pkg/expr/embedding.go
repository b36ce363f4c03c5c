package expr

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Embedding is a low-dimensional representation of observations (e.g. PCA or
// harmonized PCA coordinates), used only for neighbor search. Rows follow the
// same observation order as the expression matrix it was derived from.
type Embedding struct {
	obs  []string
	data *mat.Dense
}

// NewEmbedding creates an Embedding from row-major data of len(obs)*dims.
func NewEmbedding(obs []string, dims int, data []float64) (*Embedding, error) {
	if len(data) != len(obs)*dims {
		return nil, &ShapeError{
			Op:   "expr.NewEmbedding",
			Want: fmt.Sprintf("%d values (%d x %d)", len(obs)*dims, len(obs), dims),
			Got:  fmt.Sprintf("%d values", len(data)),
		}
	}
	return &Embedding{
		obs:  append([]string(nil), obs...),
		data: mat.NewDense(len(obs), dims, append([]float64(nil), data...)),
	}, nil
}

// NumObs returns the number of embedded observations.
func (e *Embedding) NumObs() int { return len(e.obs) }

// Dims returns the embedding dimensionality.
func (e *Embedding) Dims() int {
	_, c := e.data.Dims()
	return c
}

// Obs returns the observation identifiers in row order.
func (e *Embedding) Obs() []string { return e.obs }

// Row copies the coordinates of observation row i.
func (e *Embedding) Row(i int) []float64 {
	row := make([]float64, e.Dims())
	mat.Row(row, i, e.data)
	return row
}

// AlignedWith verifies the embedding covers the same observations, in the
// same order, as the expression matrix.
func (e *Embedding) AlignedWith(m *Matrix) error {
	if len(e.obs) != m.NumObs() {
		return &ShapeError{
			Op:   "expr.Embedding.AlignedWith",
			Want: fmt.Sprintf("%d observations", m.NumObs()),
			Got:  fmt.Sprintf("%d observations", len(e.obs)),
		}
	}
	for i, o := range e.obs {
		if m.obs[i] != o {
			return &ShapeError{
				Op:   "expr.Embedding.AlignedWith",
				Want: fmt.Sprintf("observation %q at row %d", m.obs[i], i),
				Got:  fmt.Sprintf("observation %q", o),
			}
		}
	}
	return nil
}
