// Package registry wires the compiled-in reference algorithms
// (internal/harness) into catalog.Registration entries. A deployment
// with its own numerics library registers that library's functions
// here instead. Algorithms are addressable by name so rove.yaml test
// declarations can bind to them without recompiling.
package registry

import (
	"fmt"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/harness"
	"github.com/metno/rove/internal/qc"
)

// Build returns the algorithm registered under name, configured from
// a rove.yaml declaration's options bag. Unknown names fail; missing
// options fall back to the battery defaults below.
func Build(name string, opts map[string]any) (catalog.Algo, error) {
	switch name {
	case "climatology_check":
		return harness.SeriesAlgo(harness.ClimatologyCheck(
			floatOpt(opts, "min", -80),
			floatOpt(opts, "max", 60),
		)), nil

	case "dip_check":
		parent, err := parentOpt(opts, name)
		if err != nil {
			return nil, err
		}
		return harness.SeriesAlgo(harness.DipCheck(parent, floatOpt(opts, "threshold", 15))), nil

	case "step_check":
		parent, err := parentOpt(opts, name)
		if err != nil {
			return nil, err
		}
		return harness.SeriesAlgo(harness.StepCheck(parent, floatOpt(opts, "threshold", 12))), nil

	case "spatial_consistency_check":
		return harness.SpatialAlgo(harness.SpatialConsistencyCheck(floatOpt(opts, "mad_factor", 6))), nil

	case "buddy_check":
		return harness.SpatialAlgo(harness.BuddyCheck(
			floatOpt(opts, "radius_degrees", 0.5),
			floatOpt(opts, "stddev_factor", 3),
			intOpt(opts, "min_buddies", 3),
		)), nil

	default:
		return nil, fmt.Errorf("unknown algorithm %q", name)
	}
}

// parentOpt reads the required "parent" option naming the upstream
// test whose flags the algorithm consults.
func parentOpt(opts map[string]any, name string) (qc.TestID, error) {
	v, ok := opts["parent"]
	if !ok {
		return "", fmt.Errorf("algorithm %q requires options.parent", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("algorithm %q: options.parent must be a string", name)
	}
	return qc.TestID(s), nil
}

func floatOpt(opts map[string]any, key string, def float64) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case uint64:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func intOpt(opts map[string]any, key string, def int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Default returns the reference QC battery: a climatology bounds
// check at the root of the series chain, feeding a dip check and a
// step check; and, independently, a spatial consistency check feeding
// a buddy check. It is the compiled-in equivalent of the tests: block
// shipped in rove.yaml, used when no catalog file declares tests.
func Default() []catalog.Registration {
	return []catalog.Registration{
		{
			ID:   "climatology_check",
			Kind: qc.SeriesTest,
			Algo: harness.SeriesAlgo(harness.ClimatologyCheck(-80, 60)),
		},
		{
			ID:   "dip_check",
			Kind: qc.SeriesTest,
			Deps: []qc.TestID{"climatology_check"},
			Algo: harness.SeriesAlgo(harness.DipCheck("climatology_check", 15)),
		},
		{
			ID:   "step_check",
			Kind: qc.SeriesTest,
			Deps: []qc.TestID{"climatology_check"},
			Algo: harness.SeriesAlgo(harness.StepCheck("climatology_check", 12)),
		},
		{
			ID:   "spatial_consistency_check",
			Kind: qc.SpatialTest,
			Algo: harness.SpatialAlgo(harness.SpatialConsistencyCheck(6)),
		},
		{
			ID:   "buddy_check",
			Kind: qc.SpatialTest,
			Deps: []qc.TestID{"spatial_consistency_check"},
			Algo: harness.SpatialAlgo(harness.BuddyCheck(0.5, 3, 3)),
		},
	}
}
