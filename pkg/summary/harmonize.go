package summary

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Harmonizer removes batch structure from a score matrix. Input and output
// have identical shape; only the values move. Implementations must not
// modify the input.
type Harmonizer interface {
	Harmonize(scores *mat.Dense, batches []string) (*mat.Dense, error)
}

// CentroidAligner is the default batch correction: per column, each batch's
// scores are rescaled to the pooled location and spread. It satisfies the
// harmonization contract and can be swapped for a full mixture-based
// implementation without touching callers.
type CentroidAligner struct{}

func (CentroidAligner) Harmonize(scores *mat.Dense, batches []string) (*mat.Dense, error) {
	r, c := scores.Dims()
	if len(batches) != r {
		return nil, fmt.Errorf("summary.CentroidAligner: %d batch labels for %d rows", len(batches), r)
	}

	byBatch := make(map[string][]int)
	for i, b := range batches {
		byBatch[b] = append(byBatch[b], i)
	}

	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, scores)
		globalMean, globalStd := stat.MeanStdDev(col, nil)
		if globalStd == 0 || math.IsNaN(globalStd) {
			globalStd = 1
		}
		for _, rows := range byBatch {
			vals := make([]float64, len(rows))
			for k, i := range rows {
				vals[k] = col[i]
			}
			bMean, bStd := stat.MeanStdDev(vals, nil)
			if bStd == 0 || math.IsNaN(bStd) {
				bStd = 1
			}
			for _, i := range rows {
				out.Set(i, j, (col[i]-bMean)/bStd*globalStd+globalMean)
			}
		}
	}
	return out, nil
}

// Harmonized produces the batch-corrected variant of an eigengene matrix
// under a new name. The raw matrix is left untouched so both variants can be
// retained side by side.
func Harmonized(eg *Eigengenes, batches []string, h Harmonizer) (*Eigengenes, error) {
	if h == nil {
		h = CentroidAligner{}
	}
	corrected, err := h.Harmonize(eg.Scores, batches)
	if err != nil {
		return nil, err
	}
	return &Eigengenes{
		Name:         "h" + eg.Name,
		Obs:          append([]string(nil), eg.Obs...),
		Modules:      append([]string(nil), eg.Modules...),
		Scores:       corrected,
		VarExplained: append([]float64(nil), eg.VarExplained...),
	}, nil
}
