package webgraph_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
	"github.com/orneryd/webgraph/pkg/webgraph"
	"github.com/orneryd/webgraph/pkg/writer"
)

func newTestConfig(dir string) config.Config {
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.WriterFlushEdges = 1_000_000 // keep every test graph as a single sub-segment unless stated otherwise
	return cfg
}

func buildGraph(t *testing.T, dir string, edges [][3]string) *webgraph.Webgraph {
	t.Helper()

	w, err := writer.New(dir, newTestConfig(dir))
	require.NoError(t, err)

	for _, e := range edges {
		require.NoError(t, w.Insert(e[0], e[1], e[2], relflags.RelFlags(0)))
	}

	g, err := w.Finalize()
	require.NoError(t, err)
	return g
}

// TestCrossSegmentMergeReachability is S3: seven single-edge graphs
// chained A->B->...->H, merged into one, BFS from A reaches H at
// distance 7 both before and after merge_all_segments.
func TestCrossSegmentMergeReachability(t *testing.T) {
	root := t.TempDir()
	chain := [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "E"}, {"E", "F"}, {"F", "G"}, {"G", "H"}}

	var merged *webgraph.Webgraph
	for i, pair := range chain {
		dir := filepath.Join(root, "seg"+string(rune('0'+i)))
		g := buildGraph(t, dir, [][3]string{{pair[0], pair[1], ""}})
		if merged == nil {
			merged = g
			continue
		}
		require.NoError(t, merged.Merge(g))
	}

	assertReachesHAtDistance7(t, merged)

	require.NoError(t, merged.MergeAllSegments(config.CompressionZstd))

	assertReachesHAtDistance7(t, merged)
}

func assertReachesHAtDistance7(t *testing.T, g *webgraph.Webgraph) {
	t.Helper()

	a := node.From("A").ID()
	h := node.From("H").ID()

	depth := map[node.NodeID]int{a: 0}
	queue := []node.NodeID{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		edges, err := g.RawOutgoingEdges(cur, config.Unlimited())
		require.NoError(t, err)

		for _, e := range edges {
			if _, ok := depth[e.To]; ok {
				continue
			}
			depth[e.To] = depth[cur] + 1
			queue = append(queue, e.To)
		}
	}

	require.Contains(t, depth, h)
	assert.Equal(t, 7, depth[h])
}

// TestLabelCap is S4: a label longer than MAX_LABEL_LENGTH is
// truncated to exactly MAX_LABEL_LENGTH bytes.
func TestLabelCap(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(dir)
	cfg.MaxLabelLength = 16

	w, err := writer.New(dir, cfg)
	require.NoError(t, err)

	longLabel := strings.Repeat("x", cfg.MaxLabelLength+1)
	require.NoError(t, w.Insert("A", "B", longLabel, 0))

	g, err := w.Finalize()
	require.NoError(t, err)

	edges, err := g.RawOutgoingEdgesWithLabels(node.From("A").ID(), config.Unlimited())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Len(t, edges[0].Label, cfg.MaxLabelLength)
}

// TestLimitSemanticsAcrossSegments is S5: two segments each contribute
// one A->* edge with a distinct sort_key; after merge, Limit(1) always
// returns the edge with the smaller sort_key.
func TestLimitSemanticsAcrossSegments(t *testing.T) {
	root := t.TempDir()

	dirB := filepath.Join(root, "b")
	wB, err := writer.New(dirB, newTestConfig(dirB), writer.WithSortKey(func(id node.NodeID) uint64 {
		if id == node.From("B").ID() {
			return 100
		}
		return uint64(id)
	}))
	require.NoError(t, err)
	require.NoError(t, wB.Insert("A", "B", "", 0))
	gB, err := wB.Finalize()
	require.NoError(t, err)

	dirC := filepath.Join(root, "c")
	wC, err := writer.New(dirC, newTestConfig(dirC), writer.WithSortKey(func(id node.NodeID) uint64 {
		if id == node.From("C").ID() {
			return 5
		}
		return uint64(id)
	}))
	require.NoError(t, err)
	require.NoError(t, wC.Insert("A", "C", "", 0))
	gC, err := wC.Finalize()
	require.NoError(t, err)

	require.NoError(t, gB.Merge(gC))

	checkTop1IsC := func() {
		edges, err := gB.RawOutgoingEdges(node.From("A").ID(), config.Limit(1))
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, node.From("C").ID(), edges[0].To)
	}

	checkTop1IsC()
	require.NoError(t, gB.OptimizeRead())
	checkTop1IsC()
	require.NoError(t, gB.MergeAllSegments(config.CompressionNone))
	checkTop1IsC()
}

// TestRelFlagsRoundTrip is S6.
func TestRelFlagsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.New(dir, newTestConfig(dir))
	require.NoError(t, err)

	rel := relflags.IsInFooter.Set(relflags.Tag)
	require.NoError(t, w.Insert("A", "B", "", rel))

	g, err := w.Finalize()
	require.NoError(t, err)

	edges, err := g.RawOutgoingEdges(node.From("A").ID(), config.Unlimited())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, rel, edges[0].Rel)
}

// TestBuilderRecordsVariants confirms WithHostGraph/WithFullGraph are
// persisted into metadata.json's variants field, additively across
// repeated Open calls on the same directory.
func TestBuilderRecordsVariants(t *testing.T) {
	dir := t.TempDir()

	g, err := webgraph.NewBuilder(dir).WithConfig(newTestConfig(dir)).WithHostGraph().Open()
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, g.Variants())
	require.NoError(t, g.Close())

	g2, err := webgraph.NewBuilder(dir).WithConfig(newTestConfig(dir)).WithFullGraph().Open()
	require.NoError(t, err)
	assert.Equal(t, []string{"full", "host"}, g2.Variants())
	require.NoError(t, g2.Close())
}

// TestOpenScrubsOrphanSegments confirms a segment directory not
// listed in metadata.json's comitted_segments is removed on Open.
func TestOpenScrubsOrphanSegments(t *testing.T) {
	dir := t.TempDir()
	g := buildGraph(t, dir, [][3]string{{"A", "B", ""}})
	require.NoError(t, g.Close())

	orphan := filepath.Join(dir, "segments", "not-committed")
	require.NoError(t, os.MkdirAll(orphan, 0o755))

	reopened, err := webgraph.Open(dir, newTestConfig(dir))
	require.NoError(t, err)
	defer reopened.Close()

	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	edges, err := reopened.RawOutgoingEdges(node.From("A").ID(), config.Unlimited())
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

// TestMergeDisjointNodeSets is property 5 from spec.md §8.
func TestMergeDisjointNodeSets(t *testing.T) {
	root := t.TempDir()

	dir1 := filepath.Join(root, "g1")
	g1 := buildGraph(t, dir1, [][3]string{{"A", "B", ""}})

	dir2 := filepath.Join(root, "g2")
	g2 := buildGraph(t, dir2, [][3]string{{"X", "Y", ""}})

	require.NoError(t, g1.Merge(g2))

	ab, err := g1.RawOutgoingEdges(node.From("A").ID(), config.Unlimited())
	require.NoError(t, err)
	assert.Len(t, ab, 1)

	xy, err := g1.RawOutgoingEdges(node.From("X").ID(), config.Unlimited())
	require.NoError(t, err)
	assert.Len(t, xy, 1)
}
