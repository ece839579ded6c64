// Package config loads webgraph configuration from environment variables,
// with an optional on-disk YAML overlay for settings better tracked in a
// repository than exported per-process.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.ApplyFile("graph.yaml"); err != nil {
//		log.Fatalf("invalid graph.yaml: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MaxLabelLengthDefault caps anchor text in bytes. Excess bytes are
// truncated at a character boundary by the writer.
const MaxLabelLengthDefault = 2048

// Compression selects the codec applied to a segment's edges blob.
// Each segment records its own compression in its header, so mixing
// compression variants across segments of the same graph is safe.
type Compression int

const (
	// CompressionNone stores the edges blob uncompressed.
	CompressionNone Compression = iota
	// CompressionZstd compresses the edges blob with zstd.
	CompressionZstd
)

// String renders the compression variant for logs and the segment header.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression parses the string form produced by Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("config: unknown compression %q", s)
	}
}

// EdgeLimit bounds the number of edges a query returns, applied after
// cross-segment dedup and sort so the top-k by sort_key is correct.
type EdgeLimit struct {
	unlimited bool
	limit     int
}

// Unlimited returns an EdgeLimit that applies no bound.
func Unlimited() EdgeLimit { return EdgeLimit{unlimited: true} }

// Limit returns an EdgeLimit bounded to n edges.
func Limit(n int) EdgeLimit { return EdgeLimit{limit: n} }

// Apply truncates items to the limit, returning items unchanged when
// unlimited.
func Apply[T any](l EdgeLimit, items []T) []T {
	if l.unlimited || len(items) <= l.limit {
		return items
	}
	return items[:l.limit]
}

// IsUnlimited reports whether l applies no bound.
func (l EdgeLimit) IsUnlimited() bool { return l.unlimited }

// N returns the numeric bound; only meaningful when !IsUnlimited().
func (l EdgeLimit) N() int { return l.limit }

// BuildOptions records which graph variant(s) a directory is built to
// hold: host-level, full page-level, or both.
type BuildOptions struct {
	WithHostGraph bool `yaml:"with_host_graph"`
	WithFullGraph bool `yaml:"with_full_graph"`
}

// Config is the full set of tunables for a webgraph instance.
type Config struct {
	// DataDir is the graph root directory (segments/, id2node/, metadata.json).
	DataDir string

	// MaxLabelLength caps anchor text in bytes.
	MaxLabelLength int

	// Compression is the default codec for newly written segments.
	Compression Compression

	// WriterFlushEdges is the in-memory edge count at which the Writer
	// spills a sorted sub-segment to disk.
	WriterFlushEdges int

	// Build records which graph variant(s) to construct.
	Build BuildOptions

	// LogLevel is the zap level name ("debug", "info", "warn", "error").
	LogLevel string
}

// Default returns a Config with sane defaults, equivalent to an empty
// environment.
func Default() Config {
	return Config{
		DataDir:          "./data/webgraph",
		MaxLabelLength:   MaxLabelLengthDefault,
		Compression:      CompressionZstd,
		WriterFlushEdges: 1_000_000,
		Build:            BuildOptions{WithHostGraph: true},
		LogLevel:         "info",
	}
}

// LoadFromEnv loads configuration from WEBGRAPH_* environment variables,
// falling back to Default() for anything unset.
func LoadFromEnv() Config {
	cfg := Default()

	if v := os.Getenv("WEBGRAPH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("WEBGRAPH_MAX_LABEL_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLabelLength = n
		}
	}
	if v := os.Getenv("WEBGRAPH_COMPRESSION"); v != "" {
		if c, err := ParseCompression(v); err == nil {
			cfg.Compression = c
		}
	}
	if v := os.Getenv("WEBGRAPH_WRITER_FLUSH_EDGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WriterFlushEdges = n
		}
	}
	if v := os.Getenv("WEBGRAPH_WITH_FULL_GRAPH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Build.WithFullGraph = b
		}
	}
	if v := os.Getenv("WEBGRAPH_WITH_HOST_GRAPH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Build.WithHostGraph = b
		}
	}
	if v := os.Getenv("WEBGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// fileOverlay is the subset of Config that may be overridden from YAML.
type fileOverlay struct {
	MaxLabelLength   *int          `yaml:"max_label_length"`
	Compression      *string       `yaml:"compression"`
	WriterFlushEdges *int          `yaml:"writer_flush_edges"`
	Build            *BuildOptions `yaml:"build"`
}

// ApplyFile overlays settings from a YAML file onto cfg. A missing file
// is not an error; a malformed one is.
func (cfg *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if overlay.MaxLabelLength != nil {
		cfg.MaxLabelLength = *overlay.MaxLabelLength
	}
	if overlay.Compression != nil {
		c, err := ParseCompression(*overlay.Compression)
		if err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
		cfg.Compression = c
	}
	if overlay.WriterFlushEdges != nil {
		cfg.WriterFlushEdges = *overlay.WriterFlushEdges
	}
	if overlay.Build != nil {
		cfg.Build = *overlay.Build
	}

	return nil
}

// Validate checks the config for internally-consistent values.
func (cfg Config) Validate() error {
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty")
	}
	if cfg.MaxLabelLength <= 0 {
		return fmt.Errorf("config: max label length must be positive, got %d", cfg.MaxLabelLength)
	}
	if cfg.WriterFlushEdges <= 0 {
		return fmt.Errorf("config: writer flush edges must be positive, got %d", cfg.WriterFlushEdges)
	}
	if !cfg.Build.WithHostGraph && !cfg.Build.WithFullGraph {
		return fmt.Errorf("config: build options must select at least one of with_host_graph, with_full_graph")
	}
	return nil
}
