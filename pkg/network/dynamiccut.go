package network

// Height-adaptive branch cutting. Instead of a single fixed cut height, the
// dendrogram is first cut just below its top join, then each branch large
// enough to contain two modules is re-cut at a fraction of its own internal
// height, recursively. DeepSplit tightens that fraction, producing more and
// smaller modules. Branches below the minimum module size fall into the
// unassigned module.

// deepSplitFraction maps the DeepSplit sensitivity (1-4) to the fraction of
// a branch's join height used for its internal re-cut.
var deepSplitFraction = map[int]float64{
	1: 0.90,
	2: 0.85,
	3: 0.80,
	4: 0.75,
}

// CutDynamic assigns a module number to every leaf of the dendrogram.
// The result is parallel to d.Labels; 0 marks the unassigned module, modules
// are numbered 1..K in discovery order.
func CutDynamic(d *Dendrogram, minSize, deepSplit int) []int {
	n := len(d.Labels)
	assignment := make([]int, n)
	if n == 0 {
		return assignment
	}
	if minSize < 1 {
		minSize = 1
	}
	if len(d.Merge) == 0 {
		// Single leaf: below any sensible minimum size.
		return assignment
	}

	maxHeight := 0.0
	for _, h := range d.Height {
		if h > maxHeight {
			maxHeight = h
		}
	}

	next := 0
	root := len(d.Merge)
	for _, branch := range cutBelow(d, root, 0.99*maxHeight) {
		next = assignBranch(d, branch, minSize, deepSplit, assignment, next)
	}
	return assignment
}

// cutBelow returns the maximal subtrees under ref whose join height does not
// exceed threshold. Leaves count as height-zero subtrees.
func cutBelow(d *Dendrogram, ref int, threshold float64) []int {
	if ref < 0 || d.Height[ref-1] <= threshold {
		return []int{ref}
	}
	left := cutBelow(d, d.Merge[ref-1][0], threshold)
	right := cutBelow(d, d.Merge[ref-1][1], threshold)
	return append(left, right...)
}

// assignBranch labels the leaves of one branch, splitting it recursively
// while the split yields at least two branches of minimum module size.
// Returns the updated module counter.
func assignBranch(d *Dendrogram, ref, minSize, deepSplit int, assignment []int, next int) int {
	leaves := leavesUnder(d.Merge, ref)
	if len(leaves) < minSize {
		for _, leaf := range leaves {
			assignment[leaf] = 0
		}
		return next
	}

	if deepSplit > 0 && ref > 0 && len(leaves) >= 2*minSize {
		frac := deepSplitFraction[deepSplit]
		children := cutBelow(d, ref, frac*d.Height[ref-1])
		viable := 0
		for _, child := range children {
			if len(leavesUnder(d.Merge, child)) >= minSize {
				viable++
			}
		}
		if viable >= 2 {
			for _, child := range children {
				next = assignBranch(d, child, minSize, deepSplit, assignment, next)
			}
			return next
		}
	}

	next++
	for _, leaf := range leaves {
		assignment[leaf] = next
	}
	return next
}
