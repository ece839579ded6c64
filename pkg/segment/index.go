package segment

import (
	"sort"

	"github.com/orneryd/webgraph/pkg/node"
)

// indexEntry maps one NodeID to its adjacency range within a
// direction's edges blob.
type indexEntry struct {
	ID    node.NodeID
	Range EdgeRange
}

// nodeIndex is the per-direction node index: a node.NodeID-sorted FST
// substitute (see DESIGN.md). No FST/succinct-index library appears in
// the example corpus, so a sorted slice plus binary search gives the
// same O(log n)-lookup, built-once-per-segment contract with nothing
// but the standard library.
type nodeIndex struct {
	entries []indexEntry
}

// buildIndex constructs a nodeIndex from entries already sorted by
// NodeID (invariant 2 of spec.md §3: within a segment, the node index
// is strictly sorted by NodeID).
func buildIndex(entries []indexEntry) nodeIndex {
	return nodeIndex{entries: entries}
}

// lookup returns the EdgeRange for id, or (zero, false) if id has no
// adjacency list in this direction.
func (idx nodeIndex) lookup(id node.NodeID) (EdgeRange, bool) {
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].ID >= id
	})
	if i < len(idx.entries) && idx.entries[i].ID == id {
		return idx.entries[i].Range, true
	}
	return EdgeRange{}, false
}

// len reports how many nodes have an adjacency list in this direction.
func (idx nodeIndex) len() int {
	return len(idx.entries)
}
