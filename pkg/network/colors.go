package network

import (
	"fmt"
	"sort"

	"github.com/coexnet/coexnet/pkg/expr"
)

// standardColors is the conventional module color sequence, assigned to
// modules in order of decreasing size. "grey" is reserved for the unassigned
// module and never appears here.
var standardColors = []string{
	"turquoise", "blue", "brown", "yellow", "green", "red", "black", "pink",
	"magenta", "purple", "greenyellow", "tan", "salmon", "cyan",
	"midnightblue", "lightcyan", "grey60", "lightgreen", "lightyellow",
	"royalblue", "darkred", "darkgreen", "darkturquoise", "darkgrey",
	"orange", "darkorange", "white", "skyblue", "saddlebrown", "steelblue",
	"paleturquoise", "violet", "darkolivegreen", "darkmagenta",
}

// buildModuleTable converts numeric branch labels into a module table with
// color names as module identifiers, largest module first.
func buildModuleTable(features []string, assignment []int) (*expr.ModuleTable, error) {
	if len(assignment) != len(features) {
		return nil, &expr.ShapeError{
			Op:   "network.buildModuleTable",
			Want: fmt.Sprintf("%d assignments", len(features)),
			Got:  fmt.Sprintf("%d assignments", len(assignment)),
		}
	}

	sizes := make(map[int]int)
	for _, a := range assignment {
		if a != 0 {
			sizes[a]++
		}
	}
	branches := make([]int, 0, len(sizes))
	for b := range sizes {
		branches = append(branches, b)
	}
	sort.Slice(branches, func(i, j int) bool {
		if sizes[branches[i]] != sizes[branches[j]] {
			return sizes[branches[i]] > sizes[branches[j]]
		}
		return branches[i] < branches[j]
	})

	colorOf := map[int]string{0: expr.UnassignedModule}
	for rank, b := range branches {
		if rank < len(standardColors) {
			colorOf[b] = standardColors[rank]
		} else {
			colorOf[b] = fmt.Sprintf("module%d", rank+1)
		}
	}

	modules := make([]string, len(features))
	colors := make([]string, len(features))
	for i, a := range assignment {
		modules[i] = colorOf[a]
		colors[i] = colorOf[a]
	}
	return expr.NewModuleTable(features, modules, colors)
}
