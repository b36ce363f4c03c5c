package expr

import (
	"fmt"
	"sort"
	"strings"
)

// GroupAssignment maps observations to categorical labels under one or more
// keys (e.g. "sample", "cell_type"). Grouping over several keys uses the
// Cartesian product of their labels.
type GroupAssignment struct {
	obs    []string
	labels map[string][]string
}

// Group is one aggregation or comparison group: a label and the observation
// rows that carry it.
type Group struct {
	Name string
	Rows []int
}

// NewGroupAssignment creates an assignment over the given observation order.
func NewGroupAssignment(obs []string) *GroupAssignment {
	return &GroupAssignment{
		obs:    append([]string(nil), obs...),
		labels: make(map[string][]string),
	}
}

// SetKey registers per-observation labels under the named key. The values
// slice must be parallel to the observation order.
func (g *GroupAssignment) SetKey(key string, values []string) error {
	if len(values) != len(g.obs) {
		return &ShapeError{
			Op:   "expr.GroupAssignment.SetKey",
			Want: fmt.Sprintf("%d labels", len(g.obs)),
			Got:  fmt.Sprintf("%d labels", len(values)),
		}
	}
	g.labels[key] = append([]string(nil), values...)
	return nil
}

// Keys returns the registered label keys, sorted.
func (g *GroupAssignment) Keys() []string {
	keys := make([]string, 0, len(g.labels))
	for k := range g.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Labels returns the per-observation labels for a key.
func (g *GroupAssignment) Labels(key string) ([]string, bool) {
	v, ok := g.labels[key]
	return v, ok
}

// LabelOf returns the label of observation row i under key.
func (g *GroupAssignment) LabelOf(key string, i int) (string, bool) {
	v, ok := g.labels[key]
	if !ok || i < 0 || i >= len(v) {
		return "", false
	}
	return v[i], true
}

// GroupBy partitions observations by the Cartesian product of the given
// keys' labels. Composite group names join the per-key labels with '#'.
// Groups are returned sorted by name so iteration order is deterministic.
func (g *GroupAssignment) GroupBy(keys ...string) ([]Group, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("expr.GroupBy: no grouping keys given")
	}
	cols := make([][]string, len(keys))
	for i, k := range keys {
		v, ok := g.labels[k]
		if !ok {
			return nil, fmt.Errorf("expr.GroupBy: unknown grouping key %q", k)
		}
		cols[i] = v
	}

	byName := make(map[string][]int)
	parts := make([]string, len(keys))
	for row := range g.obs {
		for i := range cols {
			parts[i] = cols[i][row]
		}
		name := strings.Join(parts, "#")
		byName[name] = append(byName[name], row)
	}

	groups := make([]Group, 0, len(byName))
	for name, rows := range byName {
		groups = append(groups, Group{Name: name, Rows: rows})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}
