package registry

import (
	"testing"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/harness"
	"github.com/stretchr/testify/require"
)

func TestBuildResolvesEveryDefaultBatteryAlgorithm(t *testing.T) {
	cases := []struct {
		name string
		opts map[string]any
	}{
		{"climatology_check", map[string]any{"min": -40.0, "max": 50.0}},
		{"dip_check", map[string]any{"parent": "climatology_check", "threshold": 10.0}},
		{"step_check", map[string]any{"parent": "climatology_check"}},
		{"spatial_consistency_check", nil},
		{"buddy_check", map[string]any{"min_buddies": 2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			algo, err := Build(tc.name, tc.opts)
			require.NoError(t, err)
			require.NotNil(t, algo)
		})
	}
}

func TestBuildUnknownAlgorithmFails(t *testing.T) {
	_, err := Build("no_such_check", nil)
	require.Error(t, err)
}

func TestBuildDipCheckRequiresParent(t *testing.T) {
	_, err := Build("dip_check", map[string]any{"threshold": 10.0})
	require.Error(t, err)
}

func TestDefaultBuildsAValidCatalog(t *testing.T) {
	cat, err := catalog.Build(Default())
	require.NoError(t, err)

	for _, reg := range Default() {
		desc, err := cat.Lookup(reg.ID)
		require.NoError(t, err)
		switch desc.Algo.(type) {
		case harness.SeriesAlgo, harness.SpatialAlgo:
		default:
			t.Fatalf("test %q has unexpected algo type %T", reg.ID, desc.Algo)
		}
	}
}
