// Package ingest is the batch construction driver: it turns a list of
// WARC files into per-job webgraph directories and reduces them into
// one. WARC parsing and HTML link extraction are external
// collaborators (spec.md's PURPOSE & SCOPE names both out of core
// scope); this package only defines the interfaces the driver needs
// from them and the Job/Map/Reduce batch shape.
//
// Grounded on original_source/core/src/entrypoint/webgraph.rs's Job,
// GraphPointer, and Map/Reduce impls, scoped down to a single-process
// parallel driver: no mapreduce/RPC library (the Rust source's
// mapreduce::Manager/Worker over a socket) appears in any example's
// go.mod, and spec.md's Non-goals exclude distributed replication, so
// fan-out here is pkg/executor rather than a network protocol.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/executor"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
	"github.com/orneryd/webgraph/pkg/webgraph"
	"github.com/orneryd/webgraph/pkg/writer"
)

// Link is one extracted (source, destination, anchor text) triple,
// already filtered to whatever policy the extractor applies (e.g.
// same-domain links dropped, matching original_source's
// link.source.domain() != link.destination.domain() filter).
type Link struct {
	Source      string
	Destination string
	Text        string
	Rel         relflags.RelFlags
}

// WarcRecord is one crawled HTTP response as read from a WARC file:
// the URL it was fetched from and its response body.
type WarcRecord struct {
	URL  string
	Body []byte
}

// LinkExtractor parses a fetched page's body into outgoing links. The
// core never parses HTML; this is the seam an HTML-parsing
// collaborator plugs into.
type LinkExtractor interface {
	ExtractLinks(rec WarcRecord) ([]Link, error)
}

// WarcFile is an open WARC archive yielding its records.
type WarcFile interface {
	Records() ([]WarcRecord, error)
}

// WarcOpener opens a WARC file by path. The core never fetches or
// decompresses WARC archives itself; this is the seam a WARC-reading
// collaborator plugs into.
type WarcOpener interface {
	Open(path string) (WarcFile, error)
}

// Job describes one unit of ingestion work: a batch of WARC file paths
// whose extracted links are written into their own graph directory
// under GraphBasePath, named after the first WARC path's base name.
type Job struct {
	WarcPaths       []string
	GraphBasePath   string
	CreateFullGraph bool
}

func (j Job) name() string {
	if len(j.WarcPaths) == 0 {
		return "job"
	}
	return filepath.Base(j.WarcPaths[0])
}

// Driver runs Jobs, each producing its own Webgraph, fanned out via an
// Executor and reduced into a single graph.
type Driver struct {
	cfg       config.Config
	extractor LinkExtractor
	opener    WarcOpener
	exec      *executor.Executor
}

// NewDriver builds a Driver. exec controls how many jobs run
// concurrently; extractor and opener are the external collaborators
// described above.
func NewDriver(cfg config.Config, extractor LinkExtractor, opener WarcOpener, exec *executor.Executor) *Driver {
	return &Driver{cfg: cfg, extractor: extractor, opener: opener, exec: exec}
}

// processJob is the "Map" half: build a fresh graph directory from
// job's WARC files.
func (d *Driver) processJob(job Job) (*webgraph.Webgraph, error) {
	graphDir := filepath.Join(job.GraphBasePath, job.name())

	cfg := d.cfg
	cfg.DataDir = graphDir
	cfg.Build.WithFullGraph = job.CreateFullGraph
	cfg.Build.WithHostGraph = true

	w, err := writer.New(graphDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("ingest: opening writer for %s: %w", graphDir, err)
	}

	for _, path := range job.WarcPaths {
		file, err := d.opener.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ingest: opening %s: %w", path, err)
		}

		records, err := file.Records()
		if err != nil {
			return nil, fmt.Errorf("ingest: reading records from %s: %w", path, err)
		}

		for _, rec := range records {
			links, err := d.extractor.ExtractLinks(rec)
			if err != nil {
				return nil, fmt.Errorf("ingest: extracting links from %s: %w", rec.URL, err)
			}
			for _, link := range links {
				srcDomain := node.From(link.Source).IntoHost().String()
				dstDomain := node.From(link.Destination).IntoHost().String()
				if SameDomain(srcDomain, dstDomain) {
					continue
				}
				if err := w.Insert(link.Source, link.Destination, link.Text, link.Rel); err != nil {
					return nil, fmt.Errorf("ingest: inserting link %s -> %s: %w", link.Source, link.Destination, err)
				}
			}
		}
	}

	return w.Finalize()
}

// Run is the "Reduce" half: processes every job (in parallel, bounded
// by the Driver's Executor) and merges the results into one Webgraph.
// The returned graph owns its directory; every other job's directory
// is absorbed and removed by Webgraph.Merge.
func (d *Driver) Run(jobs []Job) (*webgraph.Webgraph, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("ingest: no jobs to run")
	}

	graphs, err := executor.Map(d.exec, jobs, d.processJob)
	if err != nil {
		return nil, fmt.Errorf("ingest: running jobs: %w", err)
	}

	result := graphs[0]
	for _, g := range graphs[1:] {
		if err := result.Merge(g); err != nil {
			return nil, fmt.Errorf("ingest: merging job graphs: %w", err)
		}
	}
	return result, nil
}

// ChunkPaths splits warcPaths into batches of at most batchSize
// (original_source's itertools::chunks applied to the WARC path
// list), one Job per batch.
func ChunkPaths(warcPaths []string, batchSize int, graphBasePath string, createFullGraph bool) []Job {
	if batchSize <= 0 {
		batchSize = 1
	}

	var jobs []Job
	for i := 0; i < len(warcPaths); i += batchSize {
		end := i + batchSize
		if end > len(warcPaths) {
			end = len(warcPaths)
		}
		jobs = append(jobs, Job{
			WarcPaths:       warcPaths[i:end],
			GraphBasePath:   graphBasePath,
			CreateFullGraph: createFullGraph,
		})
	}
	return jobs
}

// SameDomain mirrors original_source's link-source-domain !=
// link-destination-domain filter, applied by processJob to drop
// same-domain links before they reach the writer. Exposed so a
// LinkExtractor implementation can reuse the same policy.
func SameDomain(a, b string) bool {
	return strings.EqualFold(a, b)
}
