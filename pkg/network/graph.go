package network

import (
	"gonum.org/v1/gonum/graph/simple"
)

// ModuleGraph is the thresholded co-expression network in graph form, for
// consumption by plotting or graph-analysis layers. Features map to gonum
// node ids through the ids table.
type ModuleGraph struct {
	graph  *simple.WeightedUndirectedGraph
	ids    map[string]int64
	labels map[int64]string
	nextID int64
}

// NewModuleGraph builds a weighted undirected graph from a TOM, keeping only
// edges with overlap of at least minWeight. Self edges are never added.
func NewModuleGraph(tom *TOMMatrix, minWeight float64) *ModuleGraph {
	mg := &ModuleGraph{
		graph:  simple.NewWeightedUndirectedGraph(0, 0),
		ids:    make(map[string]int64),
		labels: make(map[int64]string),
	}
	for _, label := range tom.Labels {
		mg.addFeature(label)
	}
	n := tom.Data.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := tom.Data.At(i, j)
			if w < minWeight {
				continue
			}
			from := mg.graph.Node(mg.ids[tom.Labels[i]])
			to := mg.graph.Node(mg.ids[tom.Labels[j]])
			mg.graph.SetWeightedEdge(mg.graph.NewWeightedEdge(from, to, w))
		}
	}
	return mg
}

func (mg *ModuleGraph) addFeature(label string) {
	if _, exists := mg.ids[label]; exists {
		return
	}
	mg.ids[label] = mg.nextID
	mg.labels[mg.nextID] = label
	mg.graph.AddNode(simple.Node(mg.nextID))
	mg.nextID++
}

// Graph exposes the underlying gonum graph.
func (mg *ModuleGraph) Graph() *simple.WeightedUndirectedGraph { return mg.graph }

// Label returns the feature name of a gonum node id.
func (mg *ModuleGraph) Label(id int64) (string, bool) {
	label, ok := mg.labels[id]
	return label, ok
}

// Degree returns the number of retained edges at a feature, or -1 if the
// feature is not in the graph.
func (mg *ModuleGraph) Degree(feature string) int {
	id, ok := mg.ids[feature]
	if !ok {
		return -1
	}
	return mg.graph.From(id).Len()
}
