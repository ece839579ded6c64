// Package writer implements the single-owner ingestion path: buffer
// edge insertions, spill sorted sub-segments once a threshold is
// reached, and fuse them into one committed segment on Commit.
//
// Grounded on spec.md §4.5 (no writer.rs file is present in
// original_source's extracted subset, so the contract is taken
// straight from the spec) and on the teacher's pkg/storage/wal.go
// buffer-then-flush idiom: accumulate in memory, cross a size
// threshold, persist, keep going.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/id2node"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
	"github.com/orneryd/webgraph/pkg/segment"
	"github.com/orneryd/webgraph/pkg/webgraph"

	"go.uber.org/zap"
)

// SortKeyFunc assigns a node-level sort_key, e.g. a precomputed rank.
// spec.md §3 leaves the source of this scalar external to the core;
// the default, identity-based SortKeyFunc below is a stand-in a caller
// is expected to override with a real ranking signal (PageRank,
// Harmonic centrality, crawl priority, ...).
type SortKeyFunc func(node.NodeID) uint64

// identitySortKey uses the NodeID itself as its sort_key, giving a
// deterministic (if not rank-meaningful) total order when the caller
// supplies no ranking signal.
func identitySortKey(id node.NodeID) uint64 { return uint64(id) }

// bufferedEdge is one insert call, resolved to NodeIDs, awaiting
// either another insert (buffered further) or a flush (spilled to a
// sub-segment).
type bufferedEdge struct {
	from, to         node.NodeID
	fromHost, toHost node.NodeID
	label            string
	rel              relflags.RelFlags
}

// Writer accepts edge insertions and produces a new segment. A Writer
// is single-owner: concurrent Insert calls on the same instance are
// not supported (spec.md §4.5).
type Writer struct {
	dir     string
	cfg     config.Config
	log     *zap.Logger
	sortKey SortKeyFunc

	id2node *id2node.Db

	mu       sync.Mutex
	buf      []bufferedEdge
	segments []*segment.Segment
}

// Option configures a Writer at construction time.
type Option func(*Writer)

// WithSortKey overrides the default identity sort_key assignment.
func WithSortKey(fn SortKeyFunc) Option {
	return func(w *Writer) { w.sortKey = fn }
}

// WithLogger overrides the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) { w.log = log }
}

// New creates a Writer rooted at dir, which need not yet exist.
func New(dir string, cfg config.Config, opts ...Option) (*Writer, error) {
	db, err := id2node.Open(filepath.Join(dir, "id2node"))
	if err != nil {
		return nil, fmt.Errorf("writer: opening id2node store: %w", err)
	}

	w := &Writer{
		dir:     dir,
		cfg:     cfg,
		log:     zap.NewNop(),
		sortKey: identitySortKey,
		id2node: db,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// truncateLabel caps s at cfg.MaxLabelLength bytes, cutting at the
// nearest rune boundary so a multi-byte UTF-8 sequence is never split
// (spec.md §4.5).
func truncateLabel(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	end := maxBytes
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

// Insert canonicalizes from/to, truncates label, registers both nodes
// in the id2node store, and buffers the edge. Once the buffer reaches
// cfg.WriterFlushEdges entries it is sorted and spilled to a new
// sub-segment on disk.
func (w *Writer) Insert(from, to string, label string, rel relflags.RelFlags) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fromNode := node.From(from)
	toNode := node.From(to)
	fromID := fromNode.ID()
	toID := toNode.ID()

	label = truncateLabel(label, w.cfg.MaxLabelLength)

	if err := w.id2node.Put(fromID, fromNode); err != nil {
		return fmt.Errorf("writer: registering %q: %w", from, err)
	}
	if err := w.id2node.Put(toID, toNode); err != nil {
		return fmt.Errorf("writer: registering %q: %w", to, err)
	}

	w.buf = append(w.buf, bufferedEdge{
		from:     fromID,
		to:       toID,
		fromHost: fromNode.IntoHost().ID(),
		toHost:   toNode.IntoHost().ID(),
		label:    label,
		rel:      rel,
	})

	if len(w.buf) >= w.cfg.WriterFlushEdges {
		return w.spillLocked()
	}
	return nil
}

// spillLocked writes the current buffer to a new sub-segment and
// resets it. Callers must hold w.mu.
func (w *Writer) spillLocked() error {
	if len(w.buf) == 0 {
		return nil
	}

	edges := make([]segment.InputEdge, len(w.buf))
	seen := map[segment.PagePair]struct{}{}
	var pages []segment.PagePair
	for i, e := range w.buf {
		edges[i] = segment.InputEdge{
			From:        e.from,
			To:          e.to,
			FromSortKey: w.sortKey(e.from),
			ToSortKey:   w.sortKey(e.to),
			Label:       e.label,
			Rel:         e.rel,
		}

		for _, pair := range [2]segment.PagePair{
			{Host: e.fromHost, Page: e.from},
			{Host: e.toHost, Page: e.to},
		} {
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			pages = append(pages, pair)
		}
	}

	id := segment.NewID()
	seg, err := segment.BuildAndWrite(filepath.Join(w.dir, "segments"), id, w.cfg.Compression, edges, pages)
	if err != nil {
		return fmt.Errorf("writer: spilling sub-segment %s: %w", id, err)
	}

	w.log.Debug("spilled sub-segment", zap.String("segment_id", id), zap.Int("edges", len(edges)))

	w.segments = append(w.segments, seg)
	w.buf = w.buf[:0]
	return nil
}

// Commit flushes any buffered edges, fuses every sub-segment produced
// during this session into one committed segment, and updates the
// graph directory's metadata.json atomically.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.spillLocked(); err != nil {
		return err
	}

	if err := w.id2node.Flush(); err != nil {
		return fmt.Errorf("writer: flushing id2node: %w", err)
	}

	if len(w.segments) == 0 {
		w.log.Info("commit: nothing to write")
		return nil
	}

	id := segment.NewID()
	merged, err := segment.Merge(w.segments, w.cfg.Compression, filepath.Join(w.dir, "segments"), id)
	if err != nil {
		return fmt.Errorf("writer: merging sub-segments: %w", err)
	}

	if err := webgraph.AppendCommittedSegment(w.dir, merged.ID()); err != nil {
		return fmt.Errorf("writer: updating metadata: %w", err)
	}

	for _, sub := range w.segments {
		if err := os.RemoveAll(sub.Path()); err != nil {
			w.log.Warn("failed to remove sub-segment", zap.String("path", sub.Path()), zap.Error(err))
		}
	}

	w.log.Info("committed segment", zap.String("segment_id", merged.ID()), zap.Int("sub_segments", len(w.segments)))

	w.segments = []*segment.Segment{merged}
	return nil
}

// Finalize commits any pending work and opens the resulting graph
// directory for read.
func (w *Writer) Finalize() (*webgraph.Webgraph, error) {
	if err := w.Commit(); err != nil {
		return nil, err
	}
	if err := w.id2node.Close(); err != nil {
		return nil, fmt.Errorf("writer: closing id2node: %w", err)
	}
	return webgraph.Open(w.dir, w.cfg)
}
