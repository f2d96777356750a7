package dag

import (
	"testing"

	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
	"github.com/stretchr/testify/require"
)

// buildScenarioCatalog builds a diamond-shaped battery: t1
// (root), t2<-t1, t3<-t1, t4<-t2, t5<-t3, t6<-t4, t6<-t5.
func buildScenarioCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	regs := []catalog.Registration{
		{ID: "t1", Kind: qc.SeriesTest},
		{ID: "t2", Kind: qc.SeriesTest, Deps: []qc.TestID{"t1"}},
		{ID: "t3", Kind: qc.SeriesTest, Deps: []qc.TestID{"t1"}},
		{ID: "t4", Kind: qc.SeriesTest, Deps: []qc.TestID{"t2"}},
		{ID: "t5", Kind: qc.SeriesTest, Deps: []qc.TestID{"t3"}},
		{ID: "t6", Kind: qc.SeriesTest, Deps: []qc.TestID{"t4", "t5"}},
	}
	cat, err := catalog.Build(regs)
	require.NoError(t, err)
	return cat
}

func TestExtractSingleLeaf(t *testing.T) {
	cat := buildScenarioCatalog(t)
	d, err := Build(cat)
	require.NoError(t, err)

	sub, err := d.Extract([]qc.TestID{"t6"})
	require.NoError(t, err)
	require.Len(t, sub.Nodes(), 6)

	for _, id := range []qc.TestID{"t1", "t2", "t3", "t4", "t5", "t6"} {
		_, ok := sub.IndexOf(id)
		require.True(t, ok, "expected %s in sub-dag", id)
	}

	t6, _ := sub.IndexOf("t6")
	require.Empty(t, sub.Children(t6))
	t1, _ := sub.IndexOf("t1")
	require.Empty(t, sub.Parents(t1))
}

func TestExtractDisconnectedSubset(t *testing.T) {
	cat := buildScenarioCatalog(t)
	d, err := Build(cat)
	require.NoError(t, err)

	sub, err := d.Extract([]qc.TestID{"t2", "t3"})
	require.NoError(t, err)
	require.Len(t, sub.Nodes(), 3)

	for _, id := range []qc.TestID{"t1", "t2", "t3"} {
		_, ok := sub.IndexOf(id)
		require.True(t, ok)
	}
	for _, id := range []qc.TestID{"t4", "t5", "t6"} {
		_, ok := sub.IndexOf(id)
		require.False(t, ok)
	}

	leaves := sub.Leaves()
	require.Len(t, leaves, 2)
}

func TestExtractUnknownTest(t *testing.T) {
	cat := buildScenarioCatalog(t)
	d, err := Build(cat)
	require.NoError(t, err)

	_, err = d.Extract([]qc.TestID{"tX"})
	require.Error(t, err)
	require.Equal(t, qcerrors.UnknownTest, qcerrors.KindOf(err))
}

func TestExtractIsIdempotentAcrossCalls(t *testing.T) {
	cat := buildScenarioCatalog(t)
	d, err := Build(cat)
	require.NoError(t, err)

	sub1, err := d.Extract([]qc.TestID{"t6"})
	require.NoError(t, err)
	sub2, err := d.Extract([]qc.TestID{"t6"})
	require.NoError(t, err)

	require.Equal(t, len(sub1.Nodes()), len(sub2.Nodes()))
	for idx1, n := range sub1.Nodes() {
		idx2, ok := sub2.IndexOf(n.Descriptor.ID)
		require.True(t, ok)
		require.Equal(t, len(sub1.Parents(idx1)), len(sub2.Parents(idx2)))
		require.Equal(t, len(sub1.Children(idx1)), len(sub2.Children(idx2)))
	}
}

func TestCycleRejectedAtCatalogBuild(t *testing.T) {
	_, err := catalog.Build([]catalog.Registration{
		{ID: "a", Kind: qc.SeriesTest, Deps: []qc.TestID{"b"}},
		{ID: "b", Kind: qc.SeriesTest, Deps: []qc.TestID{"a"}},
	})
	require.Error(t, err)
}

func TestInsertAndAddEdgeRejectsDuplicatesAndCycles(t *testing.T) {
	d := &DAG{}
	a := d.InsertRoot(catalog.Descriptor{ID: "a", Kind: qc.SeriesTest})
	b, err := d.InsertChild(a, catalog.Descriptor{ID: "b", Kind: qc.SeriesTest})
	require.NoError(t, err)
	c, err := d.InsertChild(b, catalog.Descriptor{ID: "c", Kind: qc.SeriesTest})
	require.NoError(t, err)

	require.Error(t, d.AddEdge(a, b), "duplicate edge must be rejected")
	require.Error(t, d.AddEdge(c, a), "closing edge must be rejected as a cycle")
	require.Error(t, d.AddEdge(a, a), "self edge must be rejected")

	require.NoError(t, d.AddEdge(a, c))
	require.Len(t, d.Parents(c), 2)
}

func TestRootsAndLeaves(t *testing.T) {
	cat := buildScenarioCatalog(t)
	d, err := Build(cat)
	require.NoError(t, err)

	roots := d.Roots()
	require.Len(t, roots, 1)
	require.Equal(t, qc.TestID("t1"), d.Nodes()[roots[0]].Descriptor.ID)

	leaves := d.Leaves()
	require.Len(t, leaves, 1)
	require.Equal(t, qc.TestID("t6"), d.Nodes()[leaves[0]].Descriptor.ID)
}
