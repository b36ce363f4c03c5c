package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/coexnet/coexnet/pkg/dme"
	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/network"
	"github.com/coexnet/coexnet/pkg/softpower"
	"github.com/coexnet/coexnet/pkg/summary"
)

// CSV layout for all three inputs: first column is the observation
// identifier, remaining columns are named by the header.

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one data row", path)
	}
	return records, nil
}

func loadExpression(path string) (*expr.Matrix, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	features := records[0][1:]
	obs := make([]string, 0, len(records)-1)
	data := make([]float64, 0, (len(records)-1)*len(features))
	for _, row := range records[1:] {
		if len(row) != len(features)+1 {
			return nil, fmt.Errorf("%s: row %q has %d fields, want %d", path, row[0], len(row), len(features)+1)
		}
		obs = append(obs, row[0])
		for _, field := range row[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %q: %w", path, row[0], err)
			}
			data = append(data, v)
		}
	}
	return expr.NewMatrix(obs, features, data)
}

func loadEmbedding(path string, m *expr.Matrix) (*expr.Embedding, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	dims := len(records[0]) - 1
	obs := make([]string, 0, len(records)-1)
	data := make([]float64, 0, (len(records)-1)*dims)
	for _, row := range records[1:] {
		if len(row) != dims+1 {
			return nil, fmt.Errorf("%s: row %q has %d fields, want %d", path, row[0], len(row), dims+1)
		}
		obs = append(obs, row[0])
		for _, field := range row[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %q: %w", path, row[0], err)
			}
			data = append(data, v)
		}
	}
	emb, err := expr.NewEmbedding(obs, dims, data)
	if err != nil {
		return nil, err
	}
	if err := emb.AlignedWith(m); err != nil {
		return nil, err
	}
	return emb, nil
}

func loadLabels(path string, m *expr.Matrix) (*expr.GroupAssignment, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	keys := records[0][1:]
	obs := make([]string, 0, len(records)-1)
	columns := make([][]string, len(keys))
	for i := range columns {
		columns[i] = make([]string, 0, len(records)-1)
	}
	for _, row := range records[1:] {
		if len(row) != len(keys)+1 {
			return nil, fmt.Errorf("%s: row %q has %d fields, want %d", path, row[0], len(row), len(keys)+1)
		}
		obs = append(obs, row[0])
		for i, field := range row[1:] {
			columns[i] = append(columns[i], field)
		}
	}
	for i, o := range m.Obs() {
		if i >= len(obs) || obs[i] != o {
			return nil, fmt.Errorf("%s: labels must list the same observations in the same order as the expression matrix", path)
		}
	}

	ga := expr.NewGroupAssignment(obs)
	for i, key := range keys {
		if err := ga.SetKey(key, columns[i]); err != nil {
			return nil, err
		}
	}
	return ga, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeModuleTable(path string, table *expr.ModuleTable) error {
	header := []string{"feature", "module", "color"}
	kmeModules := table.ModuleNames()
	for _, m := range kmeModules {
		header = append(header, "kME_"+m)
	}
	rows := [][]string{header}
	for i, feature := range table.Features {
		row := []string{feature, table.Modules[i], table.Colors[i]}
		for _, m := range kmeModules {
			if kme, ok := table.KME[m]; ok {
				row = append(row, formatFloat(kme[i]))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func writePowerTable(path string, table *softpower.Table) error {
	rows := [][]string{{"power", "sft_r2", "slope", "mean_k", "median_k", "max_k"}}
	for _, r := range table.Rows {
		rows = append(rows, []string{
			formatFloat(r.Power),
			formatFloat(r.SFTR2),
			formatFloat(r.Slope),
			formatFloat(r.MeanK),
			formatFloat(r.MedianK),
			formatFloat(r.MaxK),
		})
	}
	return writeCSV(path, rows)
}

func writeDendrogram(path string, d *network.Dendrogram) error {
	rows := [][]string{{"step", "left", "right", "height"}}
	for i, merge := range d.Merge {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(merge[0]),
			strconv.Itoa(merge[1]),
			formatFloat(d.Height[i]),
		})
	}
	return writeCSV(path, rows)
}

func writeEigengenes(path string, eg *summary.Eigengenes) error {
	header := append([]string{"obs"}, eg.Modules...)
	rows := [][]string{header}
	for i, o := range eg.Obs {
		row := make([]string, 0, len(eg.Modules)+1)
		row = append(row, o)
		for j := range eg.Modules {
			row = append(row, formatFloat(eg.Scores.At(i, j)))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func writeDifferential(path string, diff []dme.Result) error {
	rows := [][]string{{"group", "module", "avg_log2fc", "pct_in", "pct_out", "p_value", "p_adj"}}
	for _, r := range diff {
		rows = append(rows, []string{
			r.Group,
			r.Module,
			formatFloat(r.AvgLog2FC),
			formatFloat(r.PctIn),
			formatFloat(r.PctOut),
			formatFloat(r.PValue),
			formatFloat(r.PAdj),
		})
	}
	return writeCSV(path, rows)
}
