package segment

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/merge"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
)

// ErrCorrupt is returned (wrapped) when a segment's edge blob fails its
// checksum. The segment is unusable; the graph remains usable via its
// other segments (spec.md §7.2).
var ErrCorrupt = errors.New("segment: corrupt")

// rawEdge is the on-disk (and in-memory, once loaded) representation
// of one adjacency entry, without its label: the neighbor plus rel
// flags. Labels live in a parallel slice so that the unit (no-label)
// query path never touches the label heap.
type rawEdge struct {
	Other node.NodeID
	Sort  uint64
	Rel   relflags.RelFlags
}

func (e rawEdge) datum() NodeDatum { return NodeDatum{ID: e.Other, SortKey: e.Sort} }

// direction holds one adjacency direction (forward or reverse): the
// node index and the edges it points into, plus the parallel label
// heap.
type direction struct {
	index  nodeIndex
	edges  []rawEdge
	labels []string // same length as edges; "" when no label was given
}

// InputEdge is one resolved (from, to) edge, with both endpoints'
// node-level sort_key already assigned, as fed to BuildAndWrite by
// pkg/writer or pkg/segment's own Merge.
type InputEdge struct {
	From, To             node.NodeID
	FromSortKey, ToSortKey uint64
	Label                string
	Rel                  relflags.RelFlags
}

// PagePair associates a page NodeID with its host NodeID, feeding the
// optional pages/ secondary index (spec.md §4.3).
type PagePair struct {
	Host node.NodeID
	Page node.NodeID
}

// Segment is an immutable on-disk container holding a sorted run of
// edges, indexed in both directions.
type Segment struct {
	id          string
	dir         string
	compression config.Compression
	forward     direction
	reverse     direction
	pages       []pageEntry
}

type pageEntry struct {
	Host  node.NodeID
	Pages []node.NodeID
}

// ID returns the segment's identifier.
func (s *Segment) ID() string { return s.id }

// NewID mints a fresh, collision-resistant segment identifier: 16
// bytes from crypto/rand, hex-encoded. original_source uses
// uuid::Uuid::new_v4 for the same purpose; no UUID library appears in
// any example's go.mod, so this is the standard-library substitute
// (same 128 bits of randomness, same "opaque directory name" contract,
// just not RFC-4122-formatted).
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("segment: reading random bytes: %v", err))
	}
	return hex.EncodeToString(b[:])
}

// Path returns the segment's directory.
func (s *Segment) Path() string { return s.dir }

// buildDirection groups edges by self-ID, sorts each adjacency list by
// NodeDatum total order (sort.Slice, stable not required since
// NodeDatum equality only occurs on true duplicates), and constructs
// the node index over the result.
func buildDirection(selfOf func(InputEdge) node.NodeID, otherOf func(InputEdge) (node.NodeID, uint64), edges []InputEdge) direction {
	byNode := map[node.NodeID][]rawEdge{}
	byNodeLabels := map[node.NodeID][]string{}

	for _, e := range edges {
		self := selfOf(e)
		other, sortKey := otherOf(e)
		byNode[self] = append(byNode[self], rawEdge{Other: other, Sort: sortKey, Rel: e.Rel})
		byNodeLabels[self] = append(byNodeLabels[self], e.Label)
	}

	ids := make([]node.NodeID, 0, len(byNode))
	for id := range byNode {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var d direction
	entries := make([]indexEntry, 0, len(ids))

	for _, id := range ids {
		list := byNode[id]
		labels := byNodeLabels[id]

		idx := make([]int, len(list))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			return list[idx[a]].datum().Less(list[idx[b]].datum())
		})

		start := len(d.edges)
		for _, i := range idx {
			d.edges = append(d.edges, list[i])
			d.labels = append(d.labels, labels[i])
		}

		entries = append(entries, indexEntry{ID: id, Range: EdgeRange{Offset: start, Count: len(list)}})
	}

	d.index = buildIndex(entries)
	return d
}

// BuildAndWrite constructs a new segment from edges (and optional
// pages) and persists it under dir/id.
func BuildAndWrite(dir, id string, compression config.Compression, edges []InputEdge, pages []PagePair) (*Segment, error) {
	fwd := buildDirection(
		func(e InputEdge) node.NodeID { return e.From },
		func(e InputEdge) (node.NodeID, uint64) { return e.To, e.ToSortKey },
		edges,
	)
	rev := buildDirection(
		func(e InputEdge) node.NodeID { return e.To },
		func(e InputEdge) (node.NodeID, uint64) { return e.From, e.FromSortKey },
		edges,
	)

	s := &Segment{
		id:          id,
		dir:         filepath.Join(dir, id),
		compression: compression,
		forward:     fwd,
		reverse:     rev,
		pages:       buildPages(pages),
	}

	if err := s.save(); err != nil {
		return nil, err
	}

	return s, nil
}

func buildPages(pairs []PagePair) []pageEntry {
	byHost := map[node.NodeID][]node.NodeID{}
	for _, p := range pairs {
		byHost[p.Host] = append(byHost[p.Host], p.Page)
	}

	hosts := make([]node.NodeID, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	entries := make([]pageEntry, 0, len(hosts))
	for _, h := range hosts {
		pages := byHost[h]
		sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
		entries = append(entries, pageEntry{Host: h, Pages: pages})
	}
	return entries
}

// save writes the segment's directory layout to disk: forward/ and
// reverse/, each with an index file, a labels file and an edges blob,
// plus pages/ holding the host->pages index; the edges blob is
// compressed and checksummed per spec.md §4.3/§7.
func (s *Segment) save() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("segment: creating %s: %w", s.dir, err)
	}

	if err := saveDirection(filepath.Join(s.dir, "forward"), s.compression, s.forward); err != nil {
		return err
	}
	if err := saveDirection(filepath.Join(s.dir, "reverse"), s.compression, s.reverse); err != nil {
		return err
	}
	if err := gobWriteFile(filepath.Join(s.dir, "pages", "pages.gob"), s.pages); err != nil {
		return err
	}

	return gobWriteFile(filepath.Join(s.dir, "compression.gob"), s.compression)
}

func saveDirection(dir string, c config.Compression, d direction) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("segment: creating %s: %w", dir, err)
	}

	if err := gobWriteFile(filepath.Join(dir, "index.gob"), d.index.entries); err != nil {
		return err
	}
	if err := gobWriteFile(filepath.Join(dir, "labels.gob"), d.labels); err != nil {
		return err
	}

	raw, err := gobEncode(d.edges)
	if err != nil {
		return fmt.Errorf("segment: encoding edges: %w", err)
	}

	compressed, err := compress(c, raw)
	if err != nil {
		return err
	}

	sum := checksum(raw)
	if err := os.WriteFile(filepath.Join(dir, "edges.sum"), sum[:], 0o644); err != nil {
		return fmt.Errorf("segment: writing checksum: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, "edges.bin"), compressed, 0o644)
}

// Open opens the segment directory at segmentsDir/id.
func Open(segmentsDir, id string) (*Segment, error) {
	dir := filepath.Join(segmentsDir, id)

	var compression config.Compression
	if err := gobReadFile(filepath.Join(dir, "compression.gob"), &compression); err != nil {
		return nil, err
	}

	fwd, err := openDirection(filepath.Join(dir, "forward"), compression)
	if err != nil {
		return nil, err
	}
	rev, err := openDirection(filepath.Join(dir, "reverse"), compression)
	if err != nil {
		return nil, err
	}

	var pages []pageEntry
	pagesPath := filepath.Join(dir, "pages", "pages.gob")
	if _, err := os.Stat(pagesPath); err == nil {
		if err := gobReadFile(pagesPath, &pages); err != nil {
			return nil, err
		}
	}

	return &Segment{id: id, dir: dir, compression: compression, forward: fwd, reverse: rev, pages: pages}, nil
}

func openDirection(dir string, c config.Compression) (direction, error) {
	var entries []indexEntry
	if err := gobReadFile(filepath.Join(dir, "index.gob"), &entries); err != nil {
		return direction{}, err
	}

	var labels []string
	if err := gobReadFile(filepath.Join(dir, "labels.gob"), &labels); err != nil {
		return direction{}, err
	}

	compressed, err := os.ReadFile(filepath.Join(dir, "edges.bin"))
	if err != nil {
		return direction{}, fmt.Errorf("segment: reading %s: %w", dir, err)
	}

	raw, err := decompress(c, compressed)
	if err != nil {
		return direction{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, dir, err)
	}

	sumBytes, err := os.ReadFile(filepath.Join(dir, "edges.sum"))
	if err == nil && len(sumBytes) == 32 {
		var want [32]byte
		copy(want[:], sumBytes)
		if err := verifyChecksum(raw, want); err != nil {
			return direction{}, fmt.Errorf("%w: %s", err, dir)
		}
	}

	var edges []rawEdge
	if err := gobDecode(raw, &edges); err != nil {
		return direction{}, fmt.Errorf("%w: decoding edges in %s: %v", ErrCorrupt, dir, err)
	}

	return direction{index: buildIndex(entries), edges: edges, labels: labels}, nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func gobWriteFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("segment: creating %s: %w", filepath.Dir(path), err)
	}
	data, err := gobEncode(v)
	if err != nil {
		return fmt.Errorf("segment: encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("segment: writing %s: %w", path, err)
	}
	return nil
}

func gobReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("segment: reading %s: %w", path, err)
	}
	if err := gobDecode(data, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

func adjacency[L EdgeLabel](d direction, id node.NodeID, limit int, withLabel bool, zero L, fromString func(string) L) []StoredEdge[L] {
	rng, ok := d.index.lookup(id)
	if !ok {
		return nil
	}

	n := rng.Count
	if limit >= 0 && limit < n {
		n = limit
	}

	out := make([]StoredEdge[L], 0, n)
	for i := 0; i < n; i++ {
		e := d.edges[rng.Offset+i]
		label := zero
		if withLabel {
			label = fromString(d.labels[rng.Offset+i])
		}
		out = append(out, StoredEdge[L]{Other: e.datum(), Label: label, Rel: e.Rel})
	}
	return out
}

// OutgoingEdges returns up to limit outgoing edges of node id without
// labels. limit < 0 means unlimited.
func (s *Segment) OutgoingEdges(id node.NodeID, limit int) []StoredEdge[Unit] {
	return adjacency(s.forward, id, limit, false, Unit{}, func(string) Unit { return Unit{} })
}

// OutgoingEdgesWithLabel returns up to limit outgoing edges of node id
// with labels materialized.
func (s *Segment) OutgoingEdgesWithLabel(id node.NodeID, limit int) []StoredEdge[string] {
	return adjacency(s.forward, id, limit, true, "", func(s string) string { return s })
}

// IngoingEdges returns up to limit incoming edges of node id without
// labels.
func (s *Segment) IngoingEdges(id node.NodeID, limit int) []StoredEdge[Unit] {
	return adjacency(s.reverse, id, limit, false, Unit{}, func(string) Unit { return Unit{} })
}

// IngoingEdgesWithLabel returns up to limit incoming edges of node id
// with labels materialized.
func (s *Segment) IngoingEdgesWithLabel(id node.NodeID, limit int) []StoredEdge[string] {
	return adjacency(s.reverse, id, limit, true, "", func(s string) string { return s })
}

// PagesByHost returns the page NodeIDs registered under hostID.
func (s *Segment) PagesByHost(hostID node.NodeID) []node.NodeID {
	i := sort.Search(len(s.pages), func(i int) bool { return s.pages[i].Host >= hostID })
	if i < len(s.pages) && s.pages[i].Host == hostID {
		return s.pages[i].Pages
	}
	return nil
}

// ForwardNodeIDs returns every NodeID with at least one outgoing edge
// in this segment, in index order (sorted by NodeID).
func (s *Segment) ForwardNodeIDs() []node.NodeID {
	ids := make([]node.NodeID, len(s.forward.index.entries))
	for i, e := range s.forward.index.entries {
		ids[i] = e.ID
	}
	return ids
}

// NodeCount reports how many distinct nodes have at least one outgoing
// edge in this segment (the size of the forward direction's index).
func (s *Segment) NodeCount() int {
	return s.forward.index.len()
}

// Edges performs a full scan of the segment's forward direction,
// yielding every edge at least once (order unspecified but stable
// across calls on an unchanged segment).
func (s *Segment) Edges() []StoredEdge[Unit] {
	out := make([]StoredEdge[Unit], len(s.forward.edges))
	for i, e := range s.forward.edges {
		out[i] = StoredEdge[Unit]{Other: e.datum(), Rel: e.Rel}
	}
	return out
}

// OptimizeRead is a no-op for this in-memory-resident implementation:
// the whole segment is already decoded on Open. Kept so the façade can
// fan OptimizeRead out uniformly across segments regardless of the
// underlying storage strategy.
func (s *Segment) OptimizeRead() error { return nil }

// Merge fuses segments into one new segment at dir/id, running
// pkg/merge's MergeIter over each direction's node index and
// pkg/merge's EdgeMerger over each resulting node group's adjacency
// lists, deduplicating edges that appear in more than one input
// segment (spec.md §4.3 Compaction).
func Merge(segments []*Segment, compression config.Compression, dir, id string) (*Segment, error) {
	fwd, err := mergeDirection(segments, func(s *Segment) direction { return s.forward })
	if err != nil {
		return nil, err
	}
	rev, err := mergeDirection(segments, func(s *Segment) direction { return s.reverse })
	if err != nil {
		return nil, err
	}

	pages := mergePages(segments)

	s := &Segment{
		id:          id,
		dir:         filepath.Join(dir, id),
		compression: compression,
		forward:     fwd,
		reverse:     rev,
		pages:       pages,
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// taggedEntry carries an index entry together with the index (into
// the dirs slice below) of the direction it came from, so that once a
// MergeIter group is formed its members can be traced back to the
// right adjacency list without guessing from the entry's contents
// alone.
type taggedEntry struct {
	indexEntry
	dirIdx int
}

// mergeNodeSeq adapts one segment's direction index entries into a
// merge.Seq[taggedEntry], sorted by NodeID as the index already is.
func mergeNodeSeq(d direction, dirIdx int) merge.Seq[taggedEntry] {
	tagged := make([]taggedEntry, len(d.index.entries))
	for i, e := range d.index.entries {
		tagged[i] = taggedEntry{indexEntry: e, dirIdx: dirIdx}
	}
	return merge.NewSliceSeq(tagged)
}

func mergeDirection(segments []*Segment, dirOf func(*Segment) direction) (direction, error) {
	seqs := make([]merge.Seq[taggedEntry], 0, len(segments))
	dirs := make([]direction, 0, len(segments))
	for i, s := range segments {
		d := dirOf(s)
		dirs = append(dirs, d)
		seqs = append(seqs, mergeNodeSeq(d, i))
	}

	it := merge.NewMergeIter(seqs, func(e taggedEntry) uint64 { return uint64(e.ID) })

	var out direction
	var group []taggedEntry

	for it.Advance(&group) {
		nodeID := group[0].ID

		edgeSeqs := make([]merge.Seq[rawEdgeWithLabel], 0, len(group))
		for _, entry := range group {
			edgeSeqs = append(edgeSeqs, sliceToSeq(dirs[entry.dirIdx], entry.Range))
		}

		merged := mergeAdjacency(edgeSeqs)

		start := len(out.edges)
		for _, e := range merged {
			out.edges = append(out.edges, e.rawEdge)
			out.labels = append(out.labels, e.label)
		}

		out.index.entries = append(out.index.entries, indexEntry{ID: nodeID, Range: EdgeRange{Offset: start, Count: len(merged)}})
	}

	return out, nil
}

// rawEdgeWithLabel pairs a rawEdge with its label for the duration of
// a merge, since the two live in parallel slices on disk.
type rawEdgeWithLabel struct {
	rawEdge rawEdge
	label   string
}

func sliceToSeq(d direction, r EdgeRange) merge.Seq[rawEdgeWithLabel] {
	items := make([]rawEdgeWithLabel, r.Count)
	for i := 0; i < r.Count; i++ {
		items[i] = rawEdgeWithLabel{rawEdge: d.edges[r.Offset+i], label: d.labels[r.Offset+i]}
	}
	return merge.NewSliceSeq(items)
}

func mergeAdjacency(seqs []merge.Seq[rawEdgeWithLabel]) []rawEdgeWithLabel {
	less := func(a, b rawEdgeWithLabel) bool { return a.rawEdge.datum().Less(b.rawEdge.datum()) }
	sortKeyOf := func(a rawEdgeWithLabel) uint64 { return a.rawEdge.Sort }

	m := merge.NewEdgeMerger(seqs, less, sortKeyOf)

	var out []rawEdgeWithLabel
	for {
		v, ok := m.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func mergePages(segments []*Segment) []pageEntry {
	byHost := map[node.NodeID]map[node.NodeID]struct{}{}
	for _, s := range segments {
		for _, pe := range s.pages {
			set, ok := byHost[pe.Host]
			if !ok {
				set = map[node.NodeID]struct{}{}
				byHost[pe.Host] = set
			}
			for _, p := range pe.Pages {
				set[p] = struct{}{}
			}
		}
	}

	hosts := make([]node.NodeID, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	out := make([]pageEntry, 0, len(hosts))
	for _, h := range hosts {
		set := byHost[h]
		pages := make([]node.NodeID, 0, len(set))
		for p := range set {
			pages = append(pages, p)
		}
		sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
		out = append(out, pageEntry{Host: h, Pages: pages})
	}
	return out
}
