package merge

import "testing"

func TestMergeIterGroups(t *testing.T) {
	a := []uint64{1, 4, 5}
	b := []uint64{2, 3, 5}

	it := NewMergeIter([]Seq[uint64]{NewSliceSeq(a), NewSliceSeq(b)}, func(x uint64) uint64 { return x })

	var buf []uint64
	wantSizes := map[uint64]int{1: 1, 2: 1, 3: 1, 4: 1, 5: 2}

	seen := 0
	for it.Advance(&buf) {
		seen++
		key := buf[0]
		if len(buf) != wantSizes[key] {
			t.Errorf("group for key %d: got size %d, want %d", key, len(buf), wantSizes[key])
		}
	}
	if seen != 5 {
		t.Errorf("expected 5 groups, got %d", seen)
	}
	if it.Advance(&buf) {
		t.Errorf("expected no more groups")
	}
}

func TestEdgeMergerDedupBySortKey(t *testing.T) {
	type item struct{ sortKey uint64 }

	a := []item{{1}, {4}, {5}}
	b := []item{{2}, {3}, {5}}

	less := func(x, y item) bool { return x.sortKey < y.sortKey }
	sortKeyOf := func(x item) uint64 { return x.sortKey }

	m := NewEdgeMerger([]Seq[item]{NewSliceSeq(a), NewSliceSeq(b)}, less, sortKeyOf)

	var got []uint64
	for {
		v, ok := m.Next()
		if !ok {
			break
		}
		got = append(got, v.sortKey)
	}

	want := []uint64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
