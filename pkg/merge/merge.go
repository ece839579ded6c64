// Package merge implements the two k-way heap-based merge iterators
// that drive segment compaction and query-time cross-segment
// deduplication: MergeIter (by key, e.g. NodeID) and EdgeMerger (by a
// secondary sort key, e.g. NodeDatum.sort_key).
//
// Both are generic over the item type so this package has no
// dependency on pkg/segment — pkg/segment depends on pkg/merge, not
// the other way around.
//
// Grounded on original_source/crates/core/src/webgraph/merge.rs: a
// std::collections::BinaryHeap<Reverse<Peekable<...>>> in the Rust
// source becomes a container/heap over a small generic entry type
// here. No priority-queue library appears in any example's go.mod, so
// container/heap is the documented standard-library choice for this
// one concern (see DESIGN.md).
package merge

import "container/heap"

// Seq is a single-pass, not-restartable, single-threaded input
// iterator. Next returns the next item and true, or the zero value and
// false once exhausted.
type Seq[T any] interface {
	Next() (T, bool)
}

// sliceSeq adapts a pre-sorted slice to Seq.
type sliceSeq[T any] struct {
	items []T
	pos   int
}

// NewSliceSeq returns a Seq over items, which must already be sorted
// the way the merger expects.
func NewSliceSeq[T any](items []T) Seq[T] {
	return &sliceSeq[T]{items: items}
}

func (s *sliceSeq[T]) Next() (T, bool) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, false
	}
	item := s.items[s.pos]
	s.pos++
	return item, true
}

// entry wraps one input's current head item together with the seq it
// came from, so the heap can refill it after popping.
type entry[T any] struct {
	item  T
	seq   Seq[T]
	valid bool
}

// entryHeap is a container/heap.Interface over *entry[T], ordered by a
// caller-supplied less function applied to the wrapped items.
type entryHeap[T any] struct {
	items []*entry[T]
	less  func(a, b T) bool
}

func (h *entryHeap[T]) Len() int { return len(h.items) }
func (h *entryHeap[T]) Less(i, j int) bool {
	return h.less(h.items[i].item, h.items[j].item)
}
func (h *entryHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *entryHeap[T]) Push(x any)    { h.items = append(h.items, x.(*entry[T])) }
func (h *entryHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return it
}

func newEntryHeap[T any](seqs []Seq[T], less func(a, b T) bool) *entryHeap[T] {
	h := &entryHeap[T]{less: less}
	for _, s := range seqs {
		if item, ok := s.Next(); ok {
			h.items = append(h.items, &entry[T]{item: item, seq: s, valid: true})
		}
	}
	heap.Init(h)
	return h
}

// refillTop replaces the heap's minimum entry with its seq's next item,
// or removes it entirely if the seq is exhausted, then restores the
// heap invariant.
func refillTop[T any](h *entryHeap[T]) {
	top := h.items[0]
	if item, ok := top.seq.Next(); ok {
		top.item = item
		heap.Fix(h, 0)
	} else {
		heap.Pop(h)
	}
}

// MergeIter merges multiple key-ordered input sequences into one,
// grouping together every input's head that shares the current minimum
// key. This drives compaction: a group is exactly the set of
// per-segment records for one NodeID that a merged segment must fuse.
type MergeIter[T any] struct {
	h     *entryHeap[T]
	keyOf func(T) uint64
}

// NewMergeIter builds a MergeIter over seqs, each already sorted by
// the key keyOf extracts.
func NewMergeIter[T any](seqs []Seq[T], keyOf func(T) uint64) *MergeIter[T] {
	return &MergeIter[T]{
		h:     newEntryHeap(seqs, func(a, b T) bool { return keyOf(a) < keyOf(b) }),
		keyOf: keyOf,
	}
}

// Advance clears buf, then fills it with every input's head sharing
// the smallest current key, advancing those inputs. Returns false (buf
// left empty) once all inputs are exhausted.
func (m *MergeIter[T]) Advance(buf *[]T) bool {
	*buf = (*buf)[:0]

	if m.h.Len() == 0 {
		return false
	}

	key := m.keyOf(m.h.items[0].item)
	*buf = append(*buf, m.h.items[0].item)
	refillTop(m.h)

	for m.h.Len() > 0 && m.keyOf(m.h.items[0].item) == key {
		*buf = append(*buf, m.h.items[0].item)
		refillTop(m.h)
	}

	return true
}

// EdgeMerger merges multiple sort-key-ordered input sequences into
// one, dropping any input whose head shares the sort key just emitted.
// This deduplicates the same logical edge appearing in multiple
// segments. Dedup is keyed on the sort key alone, not the full item
// identity, so two distinct items sharing a sort key collapse to one —
// see DESIGN.md for why (spec.md §9 open question, resolved here to
// match the original source verbatim).
type EdgeMerger[T any] struct {
	h         *entryHeap[T]
	sortKeyOf func(T) uint64
}

// NewEdgeMerger builds an EdgeMerger over seqs, each already sorted by
// the order less defines; dedup keys on sortKeyOf.
func NewEdgeMerger[T any](seqs []Seq[T], less func(a, b T) bool, sortKeyOf func(T) uint64) *EdgeMerger[T] {
	return &EdgeMerger[T]{
		h:         newEntryHeap(seqs, less),
		sortKeyOf: sortKeyOf,
	}
}

// Next returns the next deduplicated item in order, or (zero, false)
// once all inputs are exhausted.
func (m *EdgeMerger[T]) Next() (T, bool) {
	if m.h.Len() == 0 {
		var zero T
		return zero, false
	}

	res := m.h.items[0].item
	refillTop(m.h)

	for m.h.Len() > 0 && m.sortKeyOf(m.h.items[0].item) == m.sortKeyOf(res) {
		refillTop(m.h)
	}

	return res, true
}
