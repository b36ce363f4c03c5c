package expr

import (
	"fmt"
	"sort"
)

// UnassignedModule is the reserved module for features that did not cluster
// into any module. It is excluded from summarization and testing.
const UnassignedModule = "grey"

// ModuleTable assigns every feature of an analysis to exactly one module.
// kME columns (one per module) are appended by the summarizer after
// eigengenes are available.
type ModuleTable struct {
	Features []string
	Modules  []string // parallel to Features
	Colors   []string // parallel to Features

	// KME maps module name to a per-feature connectivity column
	// (correlation of each feature with that module's eigengene).
	KME map[string][]float64
}

// NewModuleTable builds a table from parallel feature/module/color slices.
func NewModuleTable(features, modules, colors []string) (*ModuleTable, error) {
	if len(modules) != len(features) || len(colors) != len(features) {
		return nil, &ShapeError{
			Op:   "expr.NewModuleTable",
			Want: fmt.Sprintf("%d modules and colors", len(features)),
			Got:  fmt.Sprintf("%d modules, %d colors", len(modules), len(colors)),
		}
	}
	return &ModuleTable{
		Features: append([]string(nil), features...),
		Modules:  append([]string(nil), modules...),
		Colors:   append([]string(nil), colors...),
		KME:      make(map[string][]float64),
	}, nil
}

// ModuleNames returns the distinct module names excluding the unassigned
// module, sorted for deterministic iteration.
func (t *ModuleTable) ModuleNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range t.Modules {
		if m == UnassignedModule || seen[m] {
			continue
		}
		seen[m] = true
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// MembersOf returns the features assigned to a module, in table order.
func (t *ModuleTable) MembersOf(module string) []string {
	var members []string
	for i, m := range t.Modules {
		if m == module {
			members = append(members, t.Features[i])
		}
	}
	return members
}

// ModuleOf returns the module of the named feature.
func (t *ModuleTable) ModuleOf(feature string) (string, bool) {
	for i, f := range t.Features {
		if f == feature {
			return t.Modules[i], true
		}
	}
	return "", false
}

// Size returns the number of features assigned to a module.
func (t *ModuleTable) Size(module string) int {
	n := 0
	for _, m := range t.Modules {
		if m == module {
			n++
		}
	}
	return n
}

// Rename maps module names to prefixN by descending module size (ties broken
// by current name), leaving the unassigned module untouched. It matches the
// convention of resetting auto-generated module names before reporting.
func (t *ModuleTable) Rename(prefix string) {
	type moduleSize struct {
		name string
		size int
	}
	sizes := make(map[string]int)
	for _, m := range t.Modules {
		if m != UnassignedModule {
			sizes[m]++
		}
	}
	ordered := make([]moduleSize, 0, len(sizes))
	for name, size := range sizes {
		ordered = append(ordered, moduleSize{name, size})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].size != ordered[j].size {
			return ordered[i].size > ordered[j].size
		}
		return ordered[i].name < ordered[j].name
	})
	rename := make(map[string]string, len(ordered))
	for i, ms := range ordered {
		rename[ms.name] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	for i, m := range t.Modules {
		if newName, ok := rename[m]; ok {
			t.Modules[i] = newName
		}
	}
	newKME := make(map[string][]float64, len(t.KME))
	for name, col := range t.KME {
		if newName, ok := rename[name]; ok {
			newKME[newName] = col
		} else {
			newKME[name] = col
		}
	}
	t.KME = newKME
}
