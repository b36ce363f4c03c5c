package output

import (
	"fmt"
	"strings"

	"github.com/coexnet/coexnet/pkg/dme"
	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/experiment"
	"github.com/coexnet/coexnet/pkg/summary"
	"github.com/fatih/color"
)

// PrintRunReport prints a nicely formatted summary of a pipeline run with colors
func PrintRunReport(exp *experiment.Experiment, hubs map[string][]summary.Hub, diff []dme.Result) {
	// Color definitions
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Println("Co-expression Network Report")
	bold.Println("============================")
	fmt.Printf("Experiment: %s\n", exp.Name)
	fmt.Printf("Run: %s\n", exp.RunID)

	if mc, ok := exp.Metacells(); ok {
		fmt.Printf("Metacells: %d (%d features)\n", mc.Matrix.NumObs(), mc.Matrix.NumFeatures())
		if len(mc.Skipped) > 0 {
			yellow.Printf("Skipped groups: %s\n", strings.Join(mc.Skipped, ", "))
		}
	}
	fmt.Println()

	// Per-network module summary
	for _, name := range exp.NetworkNames() {
		net, _ := exp.Network(name)
		modules := net.Table.ModuleNames()
		bold.Printf("Network %s (power %g)\n", name, net.Power)
		if len(modules) == 0 {
			yellow.Println("  no modules")
			continue
		}
		for _, module := range modules {
			size := net.Table.Size(module)
			green.Printf("  %-16s", module)
			fmt.Printf("%4d genes", size)
			if ranked, ok := hubs[module]; ok && len(ranked) > 0 {
				names := make([]string, 0, len(ranked))
				for _, h := range ranked {
					names = append(names, h.Feature)
				}
				cyan.Printf("  hubs: %s", strings.Join(names, ", "))
			}
			fmt.Println()
		}
		if grey := net.Table.Size(expr.UnassignedModule); grey > 0 {
			yellow.Printf("  %-16s%4d genes\n", expr.UnassignedModule, grey)
		}
		fmt.Println()
	}

	// Top differential modules
	if len(diff) > 0 {
		bold.Println("Top differential modules")
		limit := len(diff)
		if limit > 10 {
			limit = 10
		}
		for _, r := range diff[:limit] {
			marker := green
			if r.PAdj > 0.05 {
				marker = yellow
			}
			marker.Printf("  %-12s %-16s log2FC=%+.3f p=%.3g padj=%.3g\n",
				r.Group, r.Module, r.AvgLog2FC, r.PValue, r.PAdj)
		}
	}
}
