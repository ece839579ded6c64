package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/executor"
	"github.com/orneryd/webgraph/pkg/ingest"
	"github.com/orneryd/webgraph/pkg/node"
)

type fakeWarcFile struct {
	records []ingest.WarcRecord
}

func (f fakeWarcFile) Records() ([]ingest.WarcRecord, error) { return f.records, nil }

type fakeOpener struct {
	files map[string]fakeWarcFile
}

func (o fakeOpener) Open(path string) (ingest.WarcFile, error) {
	return o.files[path], nil
}

// fakeExtractor turns each record's body (a "from\tto" string) into a
// single link, standing in for real HTML link extraction.
type fakeExtractor struct{}

func (fakeExtractor) ExtractLinks(rec ingest.WarcRecord) ([]ingest.Link, error) {
	return []ingest.Link{{Source: rec.URL, Destination: string(rec.Body), Text: "link"}}, nil
}

func TestDriverRunMergesJobGraphs(t *testing.T) {
	root := t.TempDir()

	opener := fakeOpener{files: map[string]fakeWarcFile{
		"batch1.warc": {records: []ingest.WarcRecord{{URL: "a.example", Body: []byte("b.example")}}},
		"batch2.warc": {records: []ingest.WarcRecord{{URL: "c.example", Body: []byte("d.example")}}},
	}}

	cfg := config.Default()
	driver := ingest.NewDriver(cfg, fakeExtractor{}, opener, executor.MultiThread(2))

	jobs := ingest.ChunkPaths([]string{"batch1.warc", "batch2.warc"}, 1, root, false)
	require.Len(t, jobs, 2)

	graph, err := driver.Run(jobs)
	require.NoError(t, err)

	edges, err := graph.RawOutgoingEdges(node.From("a.example").ID(), config.Unlimited())
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	edges, err = graph.RawOutgoingEdges(node.From("c.example").ID(), config.Unlimited())
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestChunkPathsSplitsIntoBatches(t *testing.T) {
	jobs := ingest.ChunkPaths([]string{"a", "b", "c", "d", "e"}, 2, "/data", true)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"a", "b"}, jobs[0].WarcPaths)
	assert.Equal(t, []string{"c", "d"}, jobs[1].WarcPaths)
	assert.Equal(t, []string{"e"}, jobs[2].WarcPaths)
}
