package shortestpath_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/shortestpath"
	"github.com/orneryd/webgraph/pkg/webgraph"
	"github.com/orneryd/webgraph/pkg/writer"
)

// buildS1Graph replicates original_source's test_graph fixture:
// A->B, B->C, A->C, C->A, D->C.
func buildS1Graph(t *testing.T) *webgraph.Webgraph {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir

	w, err := writer.New(dir, cfg)
	require.NoError(t, err)

	edges := [][2]string{
		{"A", "B"},
		{"B", "C"},
		{"A", "C"},
		{"C", "A"},
		{"D", "C"},
	}
	for _, e := range edges {
		require.NoError(t, w.Insert(e[0], e[1], "", 0))
	}

	g, err := w.Finalize()
	require.NoError(t, err)
	return g
}

// TestSmallReachability is S1.
func TestSmallReachability(t *testing.T) {
	g := buildS1Graph(t)

	distances, err := shortestpath.Distances(context.Background(), g, node.From("D"))
	require.NoError(t, err)

	assert.Equal(t, 1, distances[node.From("C").ID()])
	assert.Equal(t, 2, distances[node.From("A").ID()])
	assert.Equal(t, 3, distances[node.From("B").ID()])

	reversed, err := shortestpath.ReversedDistances(context.Background(), g, node.From("D"))
	require.NoError(t, err)
	assert.Empty(t, reversed)
}

// TestUnknownSource is S2.
func TestUnknownSource(t *testing.T) {
	g := buildS1Graph(t)

	distances, err := shortestpath.Distances(context.Background(), g, node.From("E"))
	require.NoError(t, err)
	assert.Empty(t, distances)

	reversed, err := shortestpath.ReversedDistances(context.Background(), g, node.From("E"))
	require.NoError(t, err)
	assert.Empty(t, reversed)
}

// TestReversedDistanceCalculation replicates original_source's
// reversed_distance_calculation test against the same fixture.
func TestReversedDistanceCalculation(t *testing.T) {
	g := buildS1Graph(t)

	distances, err := shortestpath.ReversedDistances(context.Background(), g, node.From("A"))
	require.NoError(t, err)

	assert.Equal(t, 1, distances[node.From("C").ID()])
	assert.Equal(t, 2, distances[node.From("D").ID()])
	assert.Equal(t, 2, distances[node.From("B").ID()])
}
