// Package shortestpath implements BFS distance computation over a
// webgraph, as an external collaborator consuming only the public
// query surface (spec.md's PURPOSE & SCOPE explicitly scopes
// shortest-path routines out of the core and names this the one
// interface the core exposes to them).
//
// Grounded on katalvlaran-lvlath/graph/bfs.go's traversal shape: a
// context-aware queue-driven BFS returning a depth map keyed by node
// identity, rather than a parent-pointer path reconstruction, since
// spec.md §8 S1/S2 only requires the distance map.
package shortestpath

import (
	"context"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/webgraph"
)

// neighborFunc abstracts over the direction of traversal: Distances
// walks outgoing edges, ReversedDistances walks incoming edges.
type neighborFunc func(g *webgraph.Webgraph, id node.NodeID) ([]node.NodeID, error)

func outgoingNeighbors(g *webgraph.Webgraph, id node.NodeID) ([]node.NodeID, error) {
	edges, err := g.RawOutgoingEdges(id, config.Unlimited())
	if err != nil {
		return nil, err
	}
	out := make([]node.NodeID, len(edges))
	for i, e := range edges {
		out[i] = e.To
	}
	return out, nil
}

func incomingNeighbors(g *webgraph.Webgraph, id node.NodeID) ([]node.NodeID, error) {
	edges, err := g.RawIngoingEdges(id, config.Unlimited())
	if err != nil {
		return nil, err
	}
	out := make([]node.NodeID, len(edges))
	for i, e := range edges {
		out[i] = e.From
	}
	return out, nil
}

// bfs runs a breadth-first traversal from start, returning the
// distance (in edge hops) from start to every node it reaches. start
// itself is not included, matching original_source's distances() test
// vectors (S1: distances from D give {C:1, A:2, B:3}, D itself absent).
func bfs(ctx context.Context, g *webgraph.Webgraph, start node.NodeID, neighbors neighborFunc) (map[node.NodeID]int, error) {
	dist := map[node.NodeID]int{}
	visited := map[node.NodeID]bool{start: true}
	queue := []node.NodeID{start}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return dist, ctx.Err()
		default:
		}

		cur := queue[0]
		queue = queue[1:]

		next, err := neighbors(g, cur)
		if err != nil {
			return nil, err
		}

		for _, n := range next {
			if visited[n] {
				continue
			}
			visited[n] = true
			dist[n] = dist[cur] + 1
			queue = append(queue, n)
		}
	}

	return dist, nil
}

// Distances returns, for every node reachable from start by following
// outgoing edges, its distance in hops. start need not exist in the
// graph; an unknown node simply yields an empty map (spec.md §8 S2).
func Distances(ctx context.Context, g *webgraph.Webgraph, start node.Node) (map[node.NodeID]int, error) {
	return bfs(ctx, g, start.ID(), outgoingNeighbors)
}

// ReversedDistances returns, for every node that can reach start by
// following outgoing edges (equivalently: every node reachable from
// start by following incoming edges in reverse), its distance in hops.
func ReversedDistances(ctx context.Context, g *webgraph.Webgraph, start node.Node) (map[node.NodeID]int, error) {
	return bfs(ctx, g, start.ID(), incomingNeighbors)
}
