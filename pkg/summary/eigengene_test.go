package summary

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/coexnet/coexnet/pkg/expr"
	"gonum.org/v1/gonum/stat"
)

// factorMatrix builds expression where one module tracks a latent factor and
// a second module tracks another, with mild noise.
func factorMatrix(t *testing.T, seed int64) (*expr.Matrix, *expr.ModuleTable, []float64) {
	t.Helper()
	const (
		nObs          = 50
		genesPerBlock = 5
	)
	rng := rand.New(rand.NewSource(seed))
	f1 := make([]float64, nObs)
	f2 := make([]float64, nObs)
	for i := range f1 {
		f1[i] = rng.NormFloat64()
		f2[i] = rng.NormFloat64()
	}

	features := make([]string, 2*genesPerBlock)
	modules := make([]string, 2*genesPerBlock)
	for g := 0; g < genesPerBlock; g++ {
		features[g] = fmt.Sprintf("m1g%d", g)
		modules[g] = "turquoise"
		features[genesPerBlock+g] = fmt.Sprintf("m2g%d", g)
		modules[genesPerBlock+g] = "blue"
	}

	data := make([]float64, nObs*2*genesPerBlock)
	for i := 0; i < nObs; i++ {
		for g := 0; g < genesPerBlock; g++ {
			data[i*2*genesPerBlock+g] = f1[i] + 0.2*rng.NormFloat64()
			data[i*2*genesPerBlock+genesPerBlock+g] = f2[i] + 0.2*rng.NormFloat64()
		}
	}

	obs := make([]string, nObs)
	for i := range obs {
		obs[i] = fmt.Sprintf("c%d", i)
	}
	m, err := expr.NewMatrix(obs, features, data)
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	table, err := expr.NewModuleTable(features, modules, modules)
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	return m, table, f1
}

func TestComputeRecoversFactor(t *testing.T) {
	m, table, f1 := factorMatrix(t, 1)

	eg, err := Compute(m, table)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if eg.Name != "MEs" {
		t.Errorf("Name = %q, want MEs", eg.Name)
	}
	if len(eg.Modules) != 2 || len(eg.Obs) != m.NumObs() {
		t.Fatalf("got %d modules x %d obs", len(eg.Modules), len(eg.Obs))
	}

	// The turquoise eigengene must track the latent factor closely and, by
	// sign orientation, positively.
	score, ok := eg.Column("turquoise")
	if !ok {
		t.Fatal("no turquoise column")
	}
	r := stat.Correlation(score, f1, nil)
	if r < 0.95 {
		t.Errorf("eigengene correlates %g with its factor, want > 0.95", r)
	}

	for j, ve := range eg.VarExplained {
		if ve <= 0 || ve > 1 {
			t.Errorf("VarExplained[%d] = %g outside (0,1]", j, ve)
		}
	}
}

func TestComputeColumnOrderInvariant(t *testing.T) {
	m, table, _ := factorMatrix(t, 2)
	a, err := Compute(m, table)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// Reverse the feature order in the table; eigengenes must not move.
	rev, err := expr.NewModuleTable(
		reverse(table.Features), reverse(table.Modules), reverse(table.Colors))
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	b, err := Compute(m, rev)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	for _, module := range a.Modules {
		ca, _ := a.Column(module)
		cb, _ := b.Column(module)
		for i := range ca {
			if math.Abs(ca[i]-cb[i]) > 1e-9 {
				t.Fatalf("module %s eigengene depends on feature order at obs %d: %g vs %g",
					module, i, ca[i], cb[i])
			}
		}
	}
}

func reverse(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

func TestComputeNoModules(t *testing.T) {
	m, _, _ := factorMatrix(t, 3)
	empty, err := expr.NewModuleTable(m.Features(),
		fill(len(m.Features()), expr.UnassignedModule),
		fill(len(m.Features()), expr.UnassignedModule))
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	if _, err := Compute(m, empty); err == nil {
		t.Fatal("expected error for table without modules")
	}
}

func fill(n int, v string) []string {
	s := make([]string, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestAppendKME(t *testing.T) {
	m, table, _ := factorMatrix(t, 4)
	eg, err := Compute(m, table)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if err := AppendKME(m, table, eg); err != nil {
		t.Fatalf("AppendKME failed: %v", err)
	}

	kme, ok := table.KME["turquoise"]
	if !ok || len(kme) != len(table.Features) {
		t.Fatalf("turquoise kME missing or wrong length")
	}
	// Own-module members connect strongly, other-module members weakly.
	for i, feature := range table.Features {
		if table.Modules[i] == "turquoise" && kme[i] < 0.8 {
			t.Errorf("member %s has kME %g, want > 0.8", feature, kme[i])
		}
		if table.Modules[i] == "blue" && math.Abs(kme[i]) > 0.5 {
			t.Errorf("non-member %s has turquoise kME %g, want near 0", feature, kme[i])
		}
	}
}

func TestHubGenes(t *testing.T) {
	table, err := expr.NewModuleTable(
		[]string{"g1", "g2", "g3", "g4"},
		[]string{"blue", "blue", "blue", "blue"},
		[]string{"blue", "blue", "blue", "blue"},
	)
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	table.KME["blue"] = []float64{0.7, 0.9, 0.9, 0.5}

	hubs, err := HubGenes(table, 2)
	if err != nil {
		t.Fatalf("HubGenes failed: %v", err)
	}
	ranked := hubs["blue"]
	if len(ranked) != 2 {
		t.Fatalf("got %d hubs, want 2", len(ranked))
	}
	// g2 and g3 tie at 0.9; the lexically smaller name ranks first.
	if ranked[0].Feature != "g2" || ranked[1].Feature != "g3" {
		t.Errorf("hub order = %s,%s, want g2,g3", ranked[0].Feature, ranked[1].Feature)
	}

	if _, err := HubGenes(table, 0); err == nil {
		t.Error("expected error for non-positive n")
	}
}

func TestHubGenesRequiresKME(t *testing.T) {
	table, err := expr.NewModuleTable([]string{"g1"}, []string{"blue"}, []string{"blue"})
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	if _, err := HubGenes(table, 3); err == nil {
		t.Fatal("expected error when kME columns are missing")
	}
}
