package network

import (
	"fmt"

	"github.com/coexnet/coexnet/pkg/expr"
)

// NetworkType selects how correlations map to adjacency weights.
type NetworkType int

const (
	// Signed rescales correlation to [0,1] via (1+r)/2 before the power.
	Signed NetworkType = iota
	// Unsigned uses |r|^power, treating anti-correlation as connection.
	Unsigned
	// SignedHybrid uses r^power for positive correlations and 0 otherwise.
	SignedHybrid
)

// ParseNetworkType converts a config string to a NetworkType.
func ParseNetworkType(s string) (NetworkType, error) {
	switch s {
	case "signed":
		return Signed, nil
	case "unsigned":
		return Unsigned, nil
	case "signed_hybrid", "signed hybrid":
		return SignedHybrid, nil
	}
	return 0, fmt.Errorf("network: unknown network type %q", s)
}

func (t NetworkType) String() string {
	switch t {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	case SignedHybrid:
		return "signed_hybrid"
	}
	return fmt.Sprintf("NetworkType(%d)", int(t))
}

// CorrelationKind selects the correlation estimator.
type CorrelationKind int

const (
	Pearson CorrelationKind = iota
	Spearman
)

// ParseCorrelationKind converts a config string to a CorrelationKind.
func ParseCorrelationKind(s string) (CorrelationKind, error) {
	switch s {
	case "pearson":
		return Pearson, nil
	case "spearman":
		return Spearman, nil
	}
	return 0, fmt.Errorf("network: unknown correlation kind %q", s)
}

func (k CorrelationKind) String() string {
	switch k {
	case Pearson:
		return "pearson"
	case Spearman:
		return "spearman"
	}
	return fmt.Sprintf("CorrelationKind(%d)", int(k))
}

// TOMType selects the topological overlap variant.
type TOMType int

const (
	// TOMUnsigned accumulates shared-neighbor products without regard to
	// correlation sign.
	TOMUnsigned TOMType = iota
	// TOMSigned weights each shared-neighbor product by the sign of the
	// underlying correlations, so opposing paths cancel.
	TOMSigned
)

// ParseTOMType converts a config string to a TOMType.
func ParseTOMType(s string) (TOMType, error) {
	switch s {
	case "unsigned":
		return TOMUnsigned, nil
	case "signed":
		return TOMSigned, nil
	}
	return 0, fmt.Errorf("network: unknown TOM type %q", s)
}

func (t TOMType) String() string {
	if t == TOMSigned {
		return "signed"
	}
	return "unsigned"
}

// DegenerateNetworkError reports that clustering collapsed to fewer than two
// modules at the given power. The caller should retry with a different soft
// power; retrying unchanged can never succeed.
type DegenerateNetworkError struct {
	Modules int
	Power   float64
}

func (e *DegenerateNetworkError) Error() string {
	return fmt.Sprintf("network: only %d module(s) survived minimum-size filtering at power %g; pick a different soft power", e.Modules, e.Power)
}

// PowerFit is the per-power scale-free fit summary the selector exposes.
// The network constructor consumes it when no explicit power is supplied.
type PowerFit struct {
	Power float64
	// SFTR2 is the signed scale-free topology fit index:
	// -sign(slope) * R^2 of the log-log degree distribution model.
	SFTR2 float64
	Slope float64
}

// SelectPower applies the default policy: the lowest power whose signed fit
// index reaches threshold, or the power with the best fit if none qualifies.
func SelectPower(fits []PowerFit, threshold float64) (float64, error) {
	if len(fits) == 0 {
		return 0, fmt.Errorf("network: no power fits to select from")
	}
	best := fits[0]
	for _, f := range fits {
		if f.SFTR2 >= threshold {
			return f.Power, nil
		}
		if f.SFTR2 > best.SFTR2 {
			best = f
		}
	}
	return best.Power, nil
}

// Options configure network construction.
type Options struct {
	// Power is the soft-thresholding exponent. Zero means select one from
	// PowerFits using the default policy.
	Power     float64
	PowerFits []PowerFit

	NetworkType NetworkType
	TOMType     TOMType
	Correlation CorrelationKind

	MinModuleSize  int
	DeepSplit      int     // 0 disables recursive branch splitting, 1-4 split ever deeper
	MergeCutHeight float64 // modules with eigengene correlation > 1-h are merged

	// Name keys the persisted TOM and the result inside an experiment.
	Name string
}

// Result is the output of one network construction run.
type Result struct {
	Name       string
	Power      float64
	TOM        *TOMMatrix
	Dendrogram *Dendrogram
	Table      *expr.ModuleTable
}
