package expr

import (
	"reflect"
	"testing"
)

func testModuleTable(t *testing.T) *ModuleTable {
	t.Helper()
	table, err := NewModuleTable(
		[]string{"g1", "g2", "g3", "g4", "g5", "g6"},
		[]string{"blue", "turquoise", "turquoise", "grey", "blue", "turquoise"},
		[]string{"blue", "turquoise", "turquoise", "grey", "blue", "turquoise"},
	)
	if err != nil {
		t.Fatalf("NewModuleTable failed: %v", err)
	}
	return table
}

func TestModuleNamesExcludesUnassigned(t *testing.T) {
	table := testModuleTable(t)
	got := table.ModuleNames()
	want := []string{"blue", "turquoise"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ModuleNames() = %v, want %v", got, want)
	}
}

func TestMembersAndSize(t *testing.T) {
	table := testModuleTable(t)
	if got := table.MembersOf("turquoise"); !reflect.DeepEqual(got, []string{"g2", "g3", "g6"}) {
		t.Errorf("MembersOf(turquoise) = %v", got)
	}
	if table.Size("blue") != 2 {
		t.Errorf("Size(blue) = %d, want 2", table.Size("blue"))
	}
	if table.Size(UnassignedModule) != 1 {
		t.Errorf("Size(grey) = %d, want 1", table.Size(UnassignedModule))
	}
	mod, ok := table.ModuleOf("g5")
	if !ok || mod != "blue" {
		t.Errorf("ModuleOf(g5) = %q,%v", mod, ok)
	}
}

func TestRenameBySize(t *testing.T) {
	table := testModuleTable(t)
	table.KME["turquoise"] = []float64{0, 1, 2, 3, 4, 5}
	table.Rename("M")

	// turquoise (3 members) becomes M1, blue (2) becomes M2, grey stays.
	if got := table.ModuleNames(); !reflect.DeepEqual(got, []string{"M1", "M2"}) {
		t.Fatalf("ModuleNames() after rename = %v", got)
	}
	if mod, _ := table.ModuleOf("g4"); mod != UnassignedModule {
		t.Errorf("unassigned module renamed to %q", mod)
	}
	if _, ok := table.KME["M1"]; !ok {
		t.Error("kME column not carried to the renamed module")
	}
}
