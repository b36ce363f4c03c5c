package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coexnet/coexnet/pkg/config"
	"github.com/coexnet/coexnet/pkg/dme"
	"github.com/coexnet/coexnet/pkg/experiment"
	"github.com/coexnet/coexnet/pkg/logging"
	"github.com/coexnet/coexnet/pkg/metacell"
	"github.com/coexnet/coexnet/pkg/network"
	"github.com/coexnet/coexnet/pkg/output"
	"github.com/coexnet/coexnet/pkg/softpower"
	"github.com/coexnet/coexnet/pkg/summary"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("coexnet", pflag.ExitOnError)
	flags.String("expression", "", "Path to the expression matrix CSV (rows=cells, cols=genes)")
	flags.String("embedding", "", "Path to the low-dimensional embedding CSV (rows=cells)")
	flags.String("labels", "", "Path to the cell label CSV (rows=cells, one column per label key)")
	flags.String("out", "out", "Output directory for tables and persisted artifacts")
	flags.String("experiment", "default", "Experiment name keying persisted artifacts")
	flags.String("group_by", "", "Comma-separated label keys defining metacell groups")
	flags.String("test_by", "", "Label key for one-vs-rest differential eigengene tests")
	flags.String("batch_by", "", "Label key for eigengene harmonization (optional)")
	flags.Int("k", 25, "Metacell neighborhood size")
	flags.Int("max_shared", 10, "Maximum cells shared between two metacells")
	flags.Int("min_cells", 50, "Minimum group size for metacell aggregation")
	flags.String("aggregate", "mean", "Metacell aggregation: mean or sum")
	flags.Float64("power", 0, "Soft thresholding power (0 selects from the sweep)")
	flags.String("network_type", "signed", "Network type: signed, unsigned, signed_hybrid")
	flags.String("tom_type", "unsigned", "TOM variant: unsigned or signed")
	flags.String("correlation", "pearson", "Correlation: pearson or spearman")
	flags.Int("min_module_size", 30, "Minimum genes per module")
	flags.Int("deep_split", 2, "Branch split sensitivity (0-4)")
	flags.Float64("merge_cut_height", 0.15, "Merge modules with eigengene correlation above 1-h")
	flags.Int("hub_genes", 10, "Hub genes reported per module")
	flags.String("verbosity", "", "Log level: debug, info, warn, error")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyVerbosity(cfg.Verbosity)

	if err := run(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyVerbosity(v string) {
	switch v {
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	networkType, err := network.ParseNetworkType(cfg.NetworkType)
	if err != nil {
		return err
	}
	tomType, err := network.ParseTOMType(cfg.TOMType)
	if err != nil {
		return err
	}
	correlation, err := network.ParseCorrelationKind(cfg.Correlation)
	if err != nil {
		return err
	}
	aggregate, err := metacell.ParseAggregateKind(cfg.Aggregate)
	if err != nil {
		return err
	}

	// Phase 1: load inputs
	logging.Info("loading inputs",
		"expression", cfg.Expression,
		"embedding", cfg.Embedding,
		"labels", cfg.Labels,
	)
	matrix, err := loadExpression(cfg.Expression)
	if err != nil {
		return fmt.Errorf("loading expression matrix: %w", err)
	}
	embedding, err := loadEmbedding(cfg.Embedding, matrix)
	if err != nil {
		return fmt.Errorf("loading embedding: %w", err)
	}
	labels, err := loadLabels(cfg.Labels, matrix)
	if err != nil {
		return fmt.Errorf("loading labels: %w", err)
	}

	exp := experiment.New(cfg.Experiment)
	ctx = logging.WithRunID(ctx, exp.RunID)

	// Phase 2: metacell aggregation
	groupKeys := cfg.GroupKeys()
	if len(groupKeys) == 0 {
		return fmt.Errorf("group_by is required (comma-separated label keys)")
	}
	metacells, err := metacell.Aggregate(ctx, matrix, embedding, labels, groupKeys, metacell.Options{
		K:         cfg.K,
		MaxShared: cfg.MaxShared,
		MinCells:  cfg.MinCells,
		Aggregate: aggregate,
	})
	if err != nil {
		return fmt.Errorf("metacell aggregation: %w", err)
	}
	if err := exp.SetMetacells(metacells); err != nil {
		return err
	}

	// Phase 3: soft power sweep (diagnostic, feeds construction when no
	// explicit power is configured)
	table, err := softpower.Sweep(ctx, metacells.Matrix, softpower.DefaultPowers(networkType), networkType, correlation)
	if err != nil {
		return fmt.Errorf("soft power sweep: %w", err)
	}
	if err := exp.SetPowerTable(table); err != nil {
		return err
	}

	// Phase 4: network construction
	net, err := network.Construct(ctx, metacells.Matrix, network.Options{
		Power:          cfg.Power,
		PowerFits:      table.PowerFits(),
		NetworkType:    networkType,
		TOMType:        tomType,
		Correlation:    correlation,
		MinModuleSize:  cfg.MinModuleSize,
		DeepSplit:      cfg.DeepSplit,
		MergeCutHeight: cfg.MergeCutHeight,
		Name:           cfg.Experiment,
	})
	if err != nil {
		return fmt.Errorf("network construction: %w", err)
	}
	if err := exp.AddNetwork(net); err != nil {
		return err
	}

	// Phase 5: module eigengenes and connectivity on the full-resolution
	// matrix
	eigengenes, err := summary.Compute(matrix, net.Table)
	if err != nil {
		return fmt.Errorf("module eigengenes: %w", err)
	}
	if err := exp.AddEigengenes(eigengenes); err != nil {
		return err
	}
	if cfg.BatchBy != "" {
		batches, ok := labels.Labels(cfg.BatchBy)
		if !ok {
			return fmt.Errorf("unknown batch key %q", cfg.BatchBy)
		}
		harmonized, err := summary.Harmonized(eigengenes, batches, nil)
		if err != nil {
			return fmt.Errorf("harmonizing eigengenes: %w", err)
		}
		if err := exp.AddEigengenes(harmonized); err != nil {
			return err
		}
	}
	if err := summary.AppendKME(matrix, net.Table, eigengenes); err != nil {
		return fmt.Errorf("computing kME: %w", err)
	}
	hubs, err := summary.HubGenes(net.Table, cfg.HubGenes)
	if err != nil {
		return fmt.Errorf("ranking hub genes: %w", err)
	}

	// Phase 6: differential eigengene tests (one-vs-rest over test_by)
	var diff []dme.Result
	if cfg.TestBy != "" {
		scores := eigengenes
		if harmonized, ok := exp.Eigengenes("hMEs"); ok {
			scores = harmonized
		}
		categories, ok := labels.Labels(cfg.TestBy)
		if !ok {
			return fmt.Errorf("unknown test key %q", cfg.TestBy)
		}
		diff, err = dme.OneVsRest(scores, categories, dme.Options{Kind: dme.Wilcoxon})
		if err != nil {
			return fmt.Errorf("differential eigengene tests: %w", err)
		}
	}

	// Phase 7: persist expensive artifacts and write result tables
	if err := exp.Persist(cfg.OutDir); err != nil {
		return err
	}
	if err := writeResults(cfg.OutDir, exp, net, table, diff); err != nil {
		return err
	}
	logging.Info("results written", "dir", cfg.OutDir)

	output.PrintRunReport(exp, hubs, diff)
	return nil
}

func writeResults(dir string, exp *experiment.Experiment, net *network.Result, table *softpower.Table, diff []dme.Result) error {
	prefix := filepath.Join(dir, exp.Name)
	if err := writeModuleTable(prefix+"_modules.csv", net.Table); err != nil {
		return err
	}
	if err := writePowerTable(prefix+"_powers.csv", table); err != nil {
		return err
	}
	if err := writeDendrogram(prefix+"_dendrogram.csv", net.Dendrogram); err != nil {
		return err
	}
	for _, name := range exp.EigengeneNames() {
		eg, _ := exp.Eigengenes(name)
		if err := writeEigengenes(fmt.Sprintf("%s_%s.csv", prefix, name), eg); err != nil {
			return err
		}
	}
	if len(diff) > 0 {
		if err := writeDifferential(prefix+"_dme.csv", diff); err != nil {
			return err
		}
	}
	return nil
}
