// Package webgraph is the top-level façade: it owns a graph directory
// (segments/, id2node/, metadata.json), fans queries out across
// segments via pkg/executor, and exposes the merge/compaction
// lifecycle described in spec.md §4.6.
package webgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	segmentsDirName = "segments"
	id2nodeDirName  = "id2node"
	metaFileName    = "metadata.json"
)

// variantHost and variantFull name the graph variant(s) a directory
// holds, mirroring original_source's WebgraphBuilder::with_host_graph/
// with_full_graph.
const (
	variantHost = "host"
	variantFull = "full"
)

// meta is the on-disk descriptor of which segments make up a graph
// directory. The field name CommittedSegments is intentionally spelled
// "comitted" in its JSON tag: original_source/crates/core/src/webgraph/mod.rs
// carries this exact typo in its serde struct, and metadata.json files
// written by that implementation are read verbatim here, so the wire
// name is preserved rather than corrected.
type meta struct {
	CommittedSegments []string `json:"comitted_segments"`

	// Variants records which graph variant(s) this directory holds
	// (BuildOptions.WithHostGraph/WithFullGraph, applied across every
	// Open/Builder.Open call on this directory). Additive: new to this
	// implementation, so it does not touch the preserved
	// comitted_segments typo field.
	Variants []string `json:"variants,omitempty"`
}

// mergeVariants unions current with additions, deduplicated and
// sorted, so recording a directory's variant selection is idempotent
// and order-independent across repeated Open calls.
func mergeVariants(current, additions []string) []string {
	set := make(map[string]struct{}, len(current)+len(additions))
	for _, v := range current {
		set[v] = struct{}{}
	}
	for _, v := range additions {
		set[v] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// openMeta reads metadata.json at dir, returning a zero meta (no
// segments committed yet) if the file does not exist.
func openMeta(dir string) (meta, error) {
	path := filepath.Join(dir, metaFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return meta{}, nil
	}
	if err != nil {
		return meta{}, fmt.Errorf("webgraph: reading %s: %w", path, err)
	}

	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return meta{}, fmt.Errorf("webgraph: parsing %s: %w", path, err)
	}
	return m, nil
}

// save writes m to dir/metadata.json atomically: encode to a temp file
// in the same directory, then rename over the target, so a crash never
// leaves a half-written metadata.json behind.
func (m meta) save(dir string) error {
	path := filepath.Join(dir, metaFileName)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("webgraph: encoding metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("webgraph: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// AppendCommittedSegment registers id as committed in dir's
// metadata.json, creating the file if absent. Exposed so pkg/writer
// can publish a freshly merged segment without needing a full
// Webgraph handle open on the same directory.
func AppendCommittedSegment(dir, id string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("webgraph: creating %s: %w", dir, err)
	}

	m, err := openMeta(dir)
	if err != nil {
		return err
	}
	m.CommittedSegments = append(m.CommittedSegments, id)
	return m.save(dir)
}
