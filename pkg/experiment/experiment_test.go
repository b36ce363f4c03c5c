package experiment

import (
	"path/filepath"
	"testing"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/metacell"
	"github.com/coexnet/coexnet/pkg/network"
	"gonum.org/v1/gonum/mat"
)

func TestSlotsAreWriteOnce(t *testing.T) {
	exp := New("test")
	if exp.RunID == "" {
		t.Fatal("missing run id")
	}

	table, err := expr.NewModuleTable([]string{"g1"}, []string{"blue"}, []string{"blue"})
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	net := &network.Result{Name: "net1", Power: 6, Table: table}

	if err := exp.AddNetwork(net); err != nil {
		t.Fatalf("AddNetwork failed: %v", err)
	}
	if err := exp.AddNetwork(net); err == nil {
		t.Error("overwriting a network slot succeeded")
	}
	if _, ok := exp.Network("net1"); !ok {
		t.Error("stored network not found")
	}
	if _, ok := exp.Network("other"); ok {
		t.Error("found a network that was never stored")
	}

	mc, err := expr.NewMatrix([]string{"mc1"}, []string{"g1"}, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	if err := exp.SetMetacells(&metacell.Result{Matrix: mc}); err != nil {
		t.Fatalf("SetMetacells failed: %v", err)
	}
	if err := exp.SetMetacells(&metacell.Result{Matrix: mc}); err == nil {
		t.Error("overwriting the metacell slot succeeded")
	}
}

func TestTOMRoundTrip(t *testing.T) {
	n := 4
	data := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		data.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			data.SetSym(i, j, 1/float64(i+j+2))
		}
	}
	tom := &network.TOMMatrix{
		Labels: []string{"g1", "g2", "g3", "g4"},
		Data:   data,
	}

	path := filepath.Join(t.TempDir(), "tom.bin.gz")
	if err := SaveTOM(path, tom); err != nil {
		t.Fatalf("SaveTOM failed: %v", err)
	}
	loaded, err := LoadTOM(path)
	if err != nil {
		t.Fatalf("LoadTOM failed: %v", err)
	}

	if len(loaded.Labels) != n {
		t.Fatalf("got %d labels, want %d", len(loaded.Labels), n)
	}
	for i, l := range tom.Labels {
		if loaded.Labels[i] != l {
			t.Errorf("label %d = %q, want %q", i, loaded.Labels[i], l)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if loaded.Data.At(i, j) != tom.Data.At(i, j) {
				t.Fatalf("round trip not bit-identical at (%d,%d): %v vs %v",
					i, j, loaded.Data.At(i, j), tom.Data.At(i, j))
			}
		}
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	m, err := expr.NewMatrix(
		[]string{"mc1", "mc2"},
		[]string{"g1", "g2", "g3"},
		[]float64{0.1, 0.2, 0.3, 1.0 / 3.0, 2.0 / 3.0, 0.999999},
	)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "matrix.bin.gz")
	if err := SaveMatrix(path, m); err != nil {
		t.Fatalf("SaveMatrix failed: %v", err)
	}
	loaded, err := LoadMatrix(path)
	if err != nil {
		t.Fatalf("LoadMatrix failed: %v", err)
	}

	if err := m.SameFeatures(loaded); err != nil {
		t.Fatalf("features changed: %v", err)
	}
	for i := 0; i < m.NumObs(); i++ {
		if loaded.Obs()[i] != m.Obs()[i] {
			t.Errorf("obs %d = %q, want %q", i, loaded.Obs()[i], m.Obs()[i])
		}
		for j := 0; j < m.NumFeatures(); j++ {
			if loaded.At(i, j) != m.At(i, j) {
				t.Fatalf("round trip not bit-identical at (%d,%d)", i, j)
			}
		}
	}
}

func TestLoadTOMRejectsWrongMagic(t *testing.T) {
	m, err := expr.NewMatrix([]string{"c1"}, []string{"g1"}, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "matrix.bin.gz")
	if err := SaveMatrix(path, m); err != nil {
		t.Fatalf("SaveMatrix failed: %v", err)
	}
	if _, err := LoadTOM(path); err == nil {
		t.Fatal("LoadTOM accepted a matrix artifact")
	}
}

func TestPersistWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	exp := New("exp1")

	data := mat.NewSymDense(2, nil)
	data.SetSym(0, 0, 1)
	data.SetSym(1, 1, 1)
	data.SetSym(0, 1, 0.5)
	table, err := expr.NewModuleTable([]string{"g1", "g2"}, []string{"blue", "blue"}, []string{"blue", "blue"})
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	if err := exp.AddNetwork(&network.Result{
		Name:  "net1",
		Power: 6,
		TOM:   &network.TOMMatrix{Labels: []string{"g1", "g2"}, Data: data},
		Table: table,
	}); err != nil {
		t.Fatalf("AddNetwork failed: %v", err)
	}

	if err := exp.Persist(dir); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if _, err := LoadTOM(TOMPath(dir, "exp1", "net1")); err != nil {
		t.Fatalf("persisted TOM unreadable: %v", err)
	}
}
