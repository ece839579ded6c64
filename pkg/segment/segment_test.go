package segment

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
)

func n(id uint64) node.NodeID { return node.NodeID(id) }

func TestBuildAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()

	edges := []InputEdge{
		{From: n(1), To: n(2), FromSortKey: 10, ToSortKey: 20, Label: "a", Rel: relflags.Nofollow},
		{From: n(1), To: n(3), FromSortKey: 10, ToSortKey: 5, Label: "b"},
		{From: n(2), To: n(3), FromSortKey: 20, ToSortKey: 5},
	}

	built, err := BuildAndWrite(dir, "seg-1", config.CompressionZstd, edges, nil)
	require.NoError(t, err)

	s, err := Open(dir, "seg-1")
	require.NoError(t, err)
	assert.Equal(t, "seg-1", s.ID())

	out := s.OutgoingEdges(n(1), -1)
	require.Len(t, out, 2)
	// Ordered by (sort_key, id): node 3 (sort_key 5) before node 2 (sort_key 20).
	assert.Equal(t, n(3), out[0].Other.ID)
	assert.Equal(t, n(2), out[1].Other.ID)
	assert.Equal(t, relflags.Nofollow, out[1].Rel)

	withLabel := s.OutgoingEdgesWithLabel(n(1), -1)
	require.Len(t, withLabel, 2)
	assert.Equal(t, "b", withLabel[0].Label)
	assert.Equal(t, "a", withLabel[1].Label)

	in := s.IngoingEdges(n(3), -1)
	require.Len(t, in, 2)

	_ = built
}

func TestOutgoingEdgesUnknownNode(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildAndWrite(dir, "seg-1", config.CompressionNone, nil, nil)
	require.NoError(t, err)

	s, err := Open(dir, "seg-1")
	require.NoError(t, err)

	assert.Empty(t, s.OutgoingEdges(n(999), -1))
}

func TestEdgeLimitAppliesAfterSort(t *testing.T) {
	dir := t.TempDir()

	edges := []InputEdge{
		{From: n(1), To: n(2), ToSortKey: 30},
		{From: n(1), To: n(3), ToSortKey: 10},
		{From: n(1), To: n(4), ToSortKey: 20},
	}

	_, err := BuildAndWrite(dir, "seg-1", config.CompressionNone, edges, nil)
	require.NoError(t, err)

	s, err := Open(dir, "seg-1")
	require.NoError(t, err)

	top2 := s.OutgoingEdges(n(1), 2)
	require.Len(t, top2, 2)
	assert.Equal(t, n(3), top2[0].Other.ID)
	assert.Equal(t, n(4), top2[1].Other.ID)
}

func TestPagesByHost(t *testing.T) {
	dir := t.TempDir()

	pages := []PagePair{
		{Host: n(100), Page: n(1)},
		{Host: n(100), Page: n(2)},
		{Host: n(200), Page: n(3)},
	}

	_, err := BuildAndWrite(dir, "seg-1", config.CompressionNone, nil, pages)
	require.NoError(t, err)

	s, err := Open(dir, "seg-1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []node.NodeID{n(1), n(2)}, s.PagesByHost(n(100)))
	assert.ElementsMatch(t, []node.NodeID{n(3)}, s.PagesByHost(n(200)))
	assert.Empty(t, s.PagesByHost(n(300)))
}

func TestMergeDedupesCrossSegmentEdges(t *testing.T) {
	dir := t.TempDir()

	segA, err := BuildAndWrite(dir, "seg-a", config.CompressionNone, []InputEdge{
		{From: n(1), To: n(2), ToSortKey: 5},
		{From: n(1), To: n(3), ToSortKey: 9},
	}, nil)
	require.NoError(t, err)

	segB, err := BuildAndWrite(dir, "seg-b", config.CompressionNone, []InputEdge{
		{From: n(1), To: n(2), ToSortKey: 5}, // duplicate: same sort_key as segA's edge to 2
		{From: n(1), To: n(4), ToSortKey: 1},
	}, nil)
	require.NoError(t, err)

	merged, err := Merge([]*Segment{segA, segB}, config.CompressionZstd, dir, "merged")
	require.NoError(t, err)

	out := merged.OutgoingEdges(n(1), -1)
	require.Len(t, out, 3, "duplicate sort_key 5 must be deduplicated across segments")

	gotSortKeys := make([]uint64, len(out))
	for i, e := range out {
		gotSortKeys[i] = e.Other.SortKey
	}
	assert.Equal(t, []uint64{1, 5, 9}, gotSortKeys)
}

func TestMergePreservesNonOverlappingNodes(t *testing.T) {
	dir := t.TempDir()

	segA, err := BuildAndWrite(dir, "seg-a", config.CompressionNone, []InputEdge{
		{From: n(1), To: n(2)},
	}, nil)
	require.NoError(t, err)

	segB, err := BuildAndWrite(dir, "seg-b", config.CompressionNone, []InputEdge{
		{From: n(5), To: n(6)},
	}, nil)
	require.NoError(t, err)

	merged, err := Merge([]*Segment{segA, segB}, config.CompressionNone, dir, "merged")
	require.NoError(t, err)

	assert.Len(t, merged.OutgoingEdges(n(1), -1), 1)
	assert.Len(t, merged.OutgoingEdges(n(5), -1), 1)
}

func TestCorruptEdgesBlobReturnsErrCorrupt(t *testing.T) {
	dir := t.TempDir()

	_, err := BuildAndWrite(dir, "seg-1", config.CompressionNone, []InputEdge{
		{From: n(1), To: n(2)},
	}, nil)
	require.NoError(t, err)

	path := dir + "/seg-1/forward/edges.bin"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(dir, "seg-1")
	require.ErrorIs(t, err, ErrCorrupt)
}
