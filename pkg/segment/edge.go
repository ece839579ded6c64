// Package segment implements the immutable on-disk segment: a sorted
// run of edges indexed in both directions, with a label heap and an
// optional host->pages secondary index.
package segment

import (
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
)

// Unit is the zero-cost label type used when an adjacency query does
// not need anchor text. Modeling the "with label" / "without label"
// split as a type parameter over EdgeLabel, rather than a dynamically
// dispatched interface per edge, keeps the hot query path (no labels)
// free of per-edge allocation.
type Unit struct{}

// EdgeLabel constrains the label type parameter of StoredEdge: either
// Unit (no label materialized) or string (anchor text).
type EdgeLabel interface {
	Unit | string
}

// NodeDatum is the in-adjacency-list neighbor record: a NodeID plus the
// node-level sort_key used to order adjacency lists and apply edge
// limits in rank order.
type NodeDatum struct {
	ID      node.NodeID
	SortKey uint64
}

// Less implements the total order (sort_key, id) lexicographically.
func (d NodeDatum) Less(other NodeDatum) bool {
	if d.SortKey != other.SortKey {
		return d.SortKey < other.SortKey
	}
	return d.ID < other.ID
}

// Compare returns -1, 0, 1 for d <, ==, > other, ordered by
// (sort_key, id).
func (d NodeDatum) Compare(other NodeDatum) int {
	switch {
	case d.SortKey < other.SortKey:
		return -1
	case d.SortKey > other.SortKey:
		return 1
	case d.ID < other.ID:
		return -1
	case d.ID > other.ID:
		return 1
	default:
		return 0
	}
}

// StoredEdge is an edge as persisted inside a segment: the neighbor
// (other side of the anchor node, which is implicit in the adjacency
// index the edge was read from), its label, and its rel flags.
//
// Equality and ordering of StoredEdge are defined by Other alone — a
// deliberate choice (see package merge) so that cross-segment dedup can
// be keyed on the neighbor's sort_key.
type StoredEdge[L EdgeLabel] struct {
	Other NodeDatum
	Label L
	Rel   relflags.RelFlags
}

// Less orders by Other only, matching spec.md §4.3/§9: a systems
// implementer must resist the temptation to order by (neighbor, label).
func (e StoredEdge[L]) Less(other StoredEdge[L]) bool {
	return e.Other.Less(other.Other)
}

// EdgeRange points from a node's entry in a direction's index into
// that direction's edges blob: a contiguous slice of a fixed-width
// adjacency array, identified by a logical (not byte) offset and
// count, since the on-disk blob is a gob-encoded slice of edges that
// is decoded whole on Open rather than read as raw bytes (see
// saveDirection and openDirection in segment.go).
type EdgeRange struct {
	Offset int
	Count  int
}
