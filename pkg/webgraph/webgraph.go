package webgraph

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/executor"
	"github.com/orneryd/webgraph/pkg/id2node"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
	"github.com/orneryd/webgraph/pkg/segment"
)

// Edge is a raw edge with both endpoints resolved to NodeIDs, as
// returned by the raw_* query variants.
type Edge[L segment.EdgeLabel] struct {
	From, To node.NodeID
	Label    L
	Rel      relflags.RelFlags
}

// FullEdge is an edge with both endpoints resolved all the way to
// their canonical Node string, as returned by the non-raw query
// variants.
type FullEdge struct {
	From, To node.Node
	Label    string
}

// Webgraph is the top-level handle on a graph directory: its
// committed segments, its id2node store, and the executor used to fan
// queries out across segments (spec.md §4.6).
type Webgraph struct {
	dir      string
	cfg      config.Config
	log      *zap.Logger
	exec     *executor.Executor
	segments []*segment.Segment
	id2node  *id2node.Db
	variants []string
}

// Builder constructs a Webgraph with non-default executor/logging
// options, mirroring original_source's WebgraphBuilder.
type Builder struct {
	dir  string
	cfg  config.Config
	exec *executor.Executor
	log  *zap.Logger
}

// NewBuilder starts building a Webgraph rooted at dir.
func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir, cfg: config.Default(), exec: executor.SingleThread(), log: zap.NewNop()}
}

// WithConfig overrides the default configuration.
func (b *Builder) WithConfig(cfg config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithExecutor overrides the default single-threaded executor.
func (b *Builder) WithExecutor(e *executor.Executor) *Builder {
	b.exec = e
	return b
}

// WithLogger overrides the default no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithHostGraph marks this directory as holding the host-level graph
// variant, recorded in metadata.json's variants field on Open,
// mirroring original_source's WebgraphBuilder::with_host_graph.
func (b *Builder) WithHostGraph() *Builder {
	b.cfg.Build.WithHostGraph = true
	return b
}

// WithFullGraph marks this directory as holding the full page-level
// graph variant, recorded in metadata.json's variants field on Open,
// mirroring original_source's WebgraphBuilder::with_full_graph.
func (b *Builder) WithFullGraph() *Builder {
	b.cfg.Build.WithFullGraph = true
	return b
}

// Open opens the directory, creating it (and its layout) if absent.
func (b *Builder) Open() (*Webgraph, error) {
	return open(b.dir, b.cfg, b.exec, b.log)
}

// Open opens dir with a single-threaded executor and a no-op logger —
// the common case. Use NewBuilder for more control.
func Open(dir string, cfg config.Config) (*Webgraph, error) {
	return open(dir, cfg, executor.SingleThread(), zap.NewNop())
}

func open(dir string, cfg config.Config, exec *executor.Executor, log *zap.Logger) (*Webgraph, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("webgraph: creating %s: %w", dir, err)
	}

	segmentsDir := filepath.Join(dir, segmentsDirName)
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("webgraph: creating %s: %w", segmentsDir, err)
	}

	m, err := openMeta(dir)
	if err != nil {
		return nil, err
	}

	if err := scrubOrphanSegments(segmentsDir, m.CommittedSegments, log); err != nil {
		return nil, err
	}

	segments := make([]*segment.Segment, 0, len(m.CommittedSegments))
	for _, id := range m.CommittedSegments {
		seg, err := segment.Open(segmentsDir, id)
		if err != nil {
			log.Warn("skipping unreadable segment", zap.String("segment_id", id), zap.Error(err))
			continue
		}
		segments = append(segments, seg)
	}

	variants := mergeVariants(m.Variants, buildVariants(cfg.Build))
	if !equalVariants(variants, m.Variants) {
		m.Variants = variants
		if err := m.save(dir); err != nil {
			return nil, fmt.Errorf("webgraph: recording variants: %w", err)
		}
	}

	db, err := id2node.Open(filepath.Join(dir, id2nodeDirName))
	if err != nil {
		return nil, fmt.Errorf("webgraph: opening id2node store: %w", err)
	}

	return &Webgraph{dir: dir, cfg: cfg, log: log, exec: exec, segments: segments, id2node: db, variants: variants}, nil
}

// scrubOrphanSegments deletes every directory under segmentsDir not
// named in committed (spec.md §5: partial segments left behind by a
// crash mid-commit "may be deleted by a startup scrubber"), logging
// each removal at Warn.
func scrubOrphanSegments(segmentsDir string, committed []string, log *zap.Logger) error {
	known := make(map[string]bool, len(committed))
	for _, id := range committed {
		known[id] = true
	}

	entries, err := os.ReadDir(segmentsDir)
	if err != nil {
		return fmt.Errorf("webgraph: scanning %s: %w", segmentsDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || known[entry.Name()] {
			continue
		}
		orphan := filepath.Join(segmentsDir, entry.Name())
		log.Warn("scrubbing orphan segment directory", zap.String("path", orphan))
		if err := os.RemoveAll(orphan); err != nil {
			return fmt.Errorf("webgraph: scrubbing %s: %w", orphan, err)
		}
	}
	return nil
}

// buildVariants translates BuildOptions into the variant names
// recorded in metadata.json.
func buildVariants(b config.BuildOptions) []string {
	var vs []string
	if b.WithHostGraph {
		vs = append(vs, variantHost)
	}
	if b.WithFullGraph {
		vs = append(vs, variantFull)
	}
	return vs
}

func equalVariants(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Variants reports which graph variant(s) this directory holds, as
// recorded in metadata.json.
func (g *Webgraph) Variants() []string { return g.variants }

// Close releases the id2node handle. Segments hold no external
// resources once loaded and need no explicit close.
func (g *Webgraph) Close() error {
	return g.id2node.Close()
}

// Dir returns the graph's root directory.
func (g *Webgraph) Dir() string { return g.dir }

// Id2Node resolves id to its canonical Node, if known.
func (g *Webgraph) Id2Node(id node.NodeID) (node.Node, bool) {
	return g.id2node.Get(id)
}

// Nodes returns every NodeID registered in the graph.
func (g *Webgraph) Nodes() ([]node.NodeID, error) {
	return g.id2node.Keys()
}

// Id2NodeIter returns every (NodeID, Node) pair registered in the
// graph, e.g. for a prefix scan over canonical node strings.
func (g *Webgraph) Id2NodeIter() ([]id2node.Pair, error) {
	return g.id2node.Iter()
}

// EstimateNumNodes approximates the graph's node count.
func (g *Webgraph) EstimateNumNodes() uint64 {
	return g.id2node.EstimateNumKeys()
}

// dedupAndSort implements step 3-4 of spec.md §4.6's query pipeline:
// sort by neighbor NodeID and drop adjacent duplicates (the same edge
// may appear in more than one uncompacted segment), then re-sort by
// neighbor sort_key ascending so EdgeLimit can be applied correctly.
func dedupAndSort[L segment.EdgeLabel](edges []segment.StoredEdge[L]) []segment.StoredEdge[L] {
	sort.Slice(edges, func(i, j int) bool { return edges[i].Other.ID < edges[j].Other.ID })

	out := edges[:0]
	var lastID node.NodeID
	haveLast := false
	for _, e := range edges {
		if haveLast && e.Other.ID == lastID {
			continue
		}
		out = append(out, e)
		lastID = e.Other.ID
		haveLast = true
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Other.SortKey < out[j].Other.SortKey })
	return out
}

// innerEdges fans loader out across every segment, concatenates the
// results, and applies dedupAndSort + limit.
func innerEdges[L segment.EdgeLabel](g *Webgraph, loader func(*segment.Segment) []segment.StoredEdge[L], limit config.EdgeLimit) ([]segment.StoredEdge[L], error) {
	perSegment, err := executor.Map(g.exec, g.segments, func(s *segment.Segment) ([]segment.StoredEdge[L], error) {
		return loader(s), nil
	})
	if err != nil {
		return nil, fmt.Errorf("webgraph: querying segments: %w", err)
	}

	var all []segment.StoredEdge[L]
	for _, batch := range perSegment {
		all = append(all, batch...)
	}

	deduped := dedupAndSort(all)
	return config.Apply(limit, deduped), nil
}

// RawOutgoingEdges returns unlabeled outgoing edges of id.
func (g *Webgraph) RawOutgoingEdges(id node.NodeID, limit config.EdgeLimit) ([]Edge[segment.Unit], error) {
	raw, err := innerEdges(g, func(s *segment.Segment) []segment.StoredEdge[segment.Unit] {
		return s.OutgoingEdges(id, -1)
	}, limit)
	if err != nil {
		return nil, err
	}
	return toEdges(id, raw, false), nil
}

// RawOutgoingEdgesWithLabels returns labeled outgoing edges of id.
func (g *Webgraph) RawOutgoingEdgesWithLabels(id node.NodeID, limit config.EdgeLimit) ([]Edge[string], error) {
	raw, err := innerEdges(g, func(s *segment.Segment) []segment.StoredEdge[string] {
		return s.OutgoingEdgesWithLabel(id, -1)
	}, limit)
	if err != nil {
		return nil, err
	}
	return toEdges(id, raw, false), nil
}

// RawIngoingEdges returns unlabeled incoming edges of id.
func (g *Webgraph) RawIngoingEdges(id node.NodeID, limit config.EdgeLimit) ([]Edge[segment.Unit], error) {
	raw, err := innerEdges(g, func(s *segment.Segment) []segment.StoredEdge[segment.Unit] {
		return s.IngoingEdges(id, -1)
	}, limit)
	if err != nil {
		return nil, err
	}
	return toEdges(id, raw, true), nil
}

// RawIngoingEdgesWithLabels returns labeled incoming edges of id.
func (g *Webgraph) RawIngoingEdgesWithLabels(id node.NodeID, limit config.EdgeLimit) ([]Edge[string], error) {
	raw, err := innerEdges(g, func(s *segment.Segment) []segment.StoredEdge[string] {
		return s.IngoingEdgesWithLabel(id, -1)
	}, limit)
	if err != nil {
		return nil, err
	}
	return toEdges(id, raw, true), nil
}

// toEdges assigns From/To around the queried id: for outgoing edges id
// is the source and Other is the destination; for incoming edges it is
// reversed.
func toEdges[L segment.EdgeLabel](id node.NodeID, raw []segment.StoredEdge[L], incoming bool) []Edge[L] {
	out := make([]Edge[L], len(raw))
	for i, e := range raw {
		if incoming {
			out[i] = Edge[L]{From: e.Other.ID, To: id, Label: e.Label, Rel: e.Rel}
		} else {
			out[i] = Edge[L]{From: id, To: e.Other.ID, Label: e.Label, Rel: e.Rel}
		}
	}
	return out
}

// OutgoingEdges returns n's outgoing edges with both endpoints and the
// label resolved to their canonical Node/string form.
func (g *Webgraph) OutgoingEdges(n node.Node, limit config.EdgeLimit) ([]FullEdge, error) {
	raw, err := g.RawOutgoingEdgesWithLabels(n.ID(), limit)
	if err != nil {
		return nil, err
	}
	return g.resolve(raw), nil
}

// IngoingEdges returns n's incoming edges with both endpoints and the
// label resolved to their canonical Node/string form.
func (g *Webgraph) IngoingEdges(n node.Node, limit config.EdgeLimit) ([]FullEdge, error) {
	raw, err := g.RawIngoingEdgesWithLabels(n.ID(), limit)
	if err != nil {
		return nil, err
	}
	return g.resolve(raw), nil
}

func (g *Webgraph) resolve(edges []Edge[string]) []FullEdge {
	out := make([]FullEdge, 0, len(edges))
	for _, e := range edges {
		from, ok1 := g.id2node.Get(e.From)
		to, ok2 := g.id2node.Get(e.To)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, FullEdge{From: from, To: to, Label: e.Label})
	}
	return out
}

// PagesByHost returns every page NodeID registered under hostID across
// all segments, deduplicated and sorted.
func (g *Webgraph) PagesByHost(hostID node.NodeID) ([]node.NodeID, error) {
	perSegment, err := executor.Map(g.exec, g.segments, func(s *segment.Segment) ([]node.NodeID, error) {
		return s.PagesByHost(hostID), nil
	})
	if err != nil {
		return nil, fmt.Errorf("webgraph: querying pages_by_host: %w", err)
	}

	var all []node.NodeID
	for _, batch := range perSegment {
		all = append(all, batch...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	out := all[:0]
	var last node.NodeID
	haveLast := false
	for _, id := range all {
		if haveLast && id == last {
			continue
		}
		out = append(out, id)
		last = id
		haveLast = true
	}
	return out, nil
}

// NumNodesWithOutgoing sums each segment's forward node-index size. A
// node present in more than one uncompacted segment is counted once
// per segment; call MergeAllSegments first for an exact count.
func (g *Webgraph) NumNodesWithOutgoing() int {
	total := 0
	for _, s := range g.segments {
		total += s.NodeCount()
	}
	return total
}

// Edges iterates every edge in the graph at least once. An edge may
// be returned more than once if it is present in more than one
// uncompacted segment (spec.md §4.6).
func (g *Webgraph) Edges() []segment.StoredEdge[segment.Unit] {
	var out []segment.StoredEdge[segment.Unit]
	for _, s := range g.segments {
		out = append(out, s.Edges()...)
	}
	return out
}

// RandomNodesWithOutgoing returns up to num distinct NodeIDs known to
// have at least one outgoing edge, sampled uniformly (reservoir
// sampling over every segment's forward index) and returned in
// shuffled order.
func (g *Webgraph) RandomNodesWithOutgoing(num int) []node.NodeID {
	seen := map[node.NodeID]struct{}{}
	var out []node.NodeID
	for _, s := range g.segments {
		for _, id := range s.ForwardNodeIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if len(out) < num {
				out = append(out, id)
			} else if j := rand.Intn(len(seen)); j < num {
				out[j] = id
			}
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Merge absorbs other's segments and id2node entries into g, renaming
// other's segment directories into g's segments/ directory and
// removing other's now-empty directory tree.
func (g *Webgraph) Merge(other *Webgraph) error {
	if err := g.id2node.Merge(other.id2node); err != nil {
		return fmt.Errorf("webgraph: merging id2node: %w", err)
	}
	if err := g.id2node.Flush(); err != nil {
		return fmt.Errorf("webgraph: flushing id2node: %w", err)
	}

	for _, seg := range other.segments {
		id := seg.ID()
		newPath := filepath.Join(g.dir, segmentsDirName, id)
		if err := os.Rename(seg.Path(), newPath); err != nil {
			return fmt.Errorf("webgraph: moving segment %s: %w", id, err)
		}

		if err := AppendCommittedSegment(g.dir, id); err != nil {
			return fmt.Errorf("webgraph: updating metadata: %w", err)
		}

		opened, err := segment.Open(filepath.Join(g.dir, segmentsDirName), id)
		if err != nil {
			return fmt.Errorf("webgraph: reopening moved segment %s: %w", id, err)
		}
		g.segments = append(g.segments, opened)
	}

	variants := mergeVariants(g.variants, other.variants)
	if !equalVariants(variants, g.variants) {
		m, err := openMeta(g.dir)
		if err != nil {
			return err
		}
		m.Variants = variants
		if err := m.save(g.dir); err != nil {
			return fmt.Errorf("webgraph: recording variants: %w", err)
		}
		g.variants = variants
	}

	return os.RemoveAll(other.dir)
}

// MergeAllSegments replaces every committed segment with one newly
// compacted segment, deleting the old ones (spec.md §4.6).
func (g *Webgraph) MergeAllSegments(compression config.Compression) error {
	if len(g.segments) <= 1 {
		return nil
	}

	id := segment.NewID()
	segmentsDir := filepath.Join(g.dir, segmentsDirName)

	merged, err := segment.Merge(g.segments, compression, segmentsDir, id)
	if err != nil {
		return fmt.Errorf("webgraph: merging all segments: %w", err)
	}

	old := g.segments
	g.segments = []*segment.Segment{merged}

	m := meta{CommittedSegments: []string{id}, Variants: g.variants}
	if err := m.save(g.dir); err != nil {
		return fmt.Errorf("webgraph: updating metadata: %w", err)
	}

	for _, s := range old {
		if s.ID() == id {
			continue
		}
		if err := os.RemoveAll(s.Path()); err != nil {
			g.log.Warn("failed to remove superseded segment", zap.String("path", s.Path()), zap.Error(err))
		}
	}

	return nil
}

// OptimizeRead prepares every segment and the id2node store for a
// read-heavy workload.
func (g *Webgraph) OptimizeRead() error {
	if err := executor.Each(g.exec, g.segments, func(s *segment.Segment) error {
		return s.OptimizeRead()
	}); err != nil {
		return fmt.Errorf("webgraph: optimizing segments: %w", err)
	}
	return g.id2node.OptimizeRead()
}
