// Package main provides the webgraph CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/webgraph/pkg/autosuggest"
	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/relflags"
	"github.com/orneryd/webgraph/pkg/webgraph"
	"github.com/orneryd/webgraph/pkg/writer"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webgraph",
		Short: "webgraph - segmented directed-graph storage engine",
		Long: `webgraph stores a directed graph of crawled pages and their links
as immutable, mergeable segments, with forward and reverse adjacency
indices for fast neighbor lookups at query time.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webgraph v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInsertCmd())
	rootCmd.AddCommand(newCommitCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newQueryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	configFile, _ := cmd.Flags().GetString("config")

	cfg := config.LoadFromEnv()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if configFile != "" {
		if err := cfg.ApplyFile(configFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = lvl
	}
	log, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "Graph directory (overrides WEBGRAPH_DATA_DIR)")
	cmd.Flags().String("config", "", "Optional YAML config overlay")
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve autosuggest and query endpoints over HTTP",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Int("suggest-limit", 10, "Max autosuggest results per query")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	suggestLimit, _ := cmd.Flags().GetInt("suggest-limit")

	log := newLogger(cfg)
	defer log.Sync()

	g, err := webgraph.NewBuilder(cfg.DataDir).WithConfig(cfg).WithLogger(log).Open()
	if err != nil {
		return fmt.Errorf("opening graph %s: %w", cfg.DataDir, err)
	}
	defer g.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/autosuggest", autosuggest.Handler(autosuggest.NewHostPrefixSuggester(g, suggestLimit)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", zap.String("addr", addr), zap.String("data_dir", cfg.DataDir))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-sigCh:
		log.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func newInsertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <edges-file>",
		Short: "Insert edges from a tab-separated file (from\\tto\\tlabel) and commit",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsert,
	}
	addCommonFlags(cmd)
	return cmd
}

func runInsert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	w, err := writer.New(cfg.DataDir, cfg, writer.WithLogger(log))
	if err != nil {
		return fmt.Errorf("opening writer for %s: %w", cfg.DataDir, err)
	}

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return fmt.Errorf("insert: malformed line %q: expected at least from\\tto", line)
		}
		label := ""
		if len(fields) >= 3 {
			label = fields[2]
		}
		if err := w.Insert(fields[0], fields[1], label, relflags.RelFlags(0)); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	g, err := w.Finalize()
	if err != nil {
		return fmt.Errorf("finalizing: %w", err)
	}
	defer g.Close()

	fmt.Printf("inserted %d edges into %s\n", count, cfg.DataDir)
	return nil
}

func newCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit an empty writer session on a graph directory, creating its layout if absent",
		RunE:  runCommit,
	}
	addCommonFlags(cmd)
	return cmd
}

func runCommit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	w, err := writer.New(cfg.DataDir, cfg, writer.WithLogger(log))
	if err != nil {
		return fmt.Errorf("opening writer for %s: %w", cfg.DataDir, err)
	}

	g, err := w.Finalize()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	defer g.Close()

	fmt.Printf("committed %s\n", cfg.DataDir)
	return nil
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <other-graph-dir>",
		Short: "Merge another graph directory into this one, absorbing and removing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runMerge,
	}
	addCommonFlags(cmd)
	return cmd
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	g, err := webgraph.NewBuilder(cfg.DataDir).WithConfig(cfg).WithLogger(log).Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DataDir, err)
	}
	defer g.Close()

	other, err := webgraph.Open(args[0], cfg)
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}

	if err := g.Merge(other); err != nil {
		return fmt.Errorf("merging: %w", err)
	}

	fmt.Printf("merged %s into %s\n", args[0], cfg.DataDir)
	return nil
}

func newOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compact all segments and optimize the id2node store for reads",
		RunE:  runOptimize,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("compression", "zstd", "Compression for the compacted segment (none, zstd)")
	return cmd
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	compressionStr, _ := cmd.Flags().GetString("compression")
	compression, err := config.ParseCompression(compressionStr)
	if err != nil {
		return err
	}

	g, err := webgraph.NewBuilder(cfg.DataDir).WithConfig(cfg).WithLogger(log).Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DataDir, err)
	}
	defer g.Close()

	if err := g.MergeAllSegments(compression); err != nil {
		return fmt.Errorf("merging all segments: %w", err)
	}
	if err := g.OptimizeRead(); err != nil {
		return fmt.Errorf("optimizing read: %w", err)
	}

	fmt.Printf("optimized %s\n", cfg.DataDir)
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print node and edge counts for a graph directory",
		RunE:  runStats,
	}
	addCommonFlags(cmd)
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	g, err := webgraph.NewBuilder(cfg.DataDir).WithConfig(cfg).WithLogger(log).Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DataDir, err)
	}
	defer g.Close()

	fmt.Printf("data dir:          %s\n", cfg.DataDir)
	fmt.Printf("nodes:             %d\n", g.EstimateNumNodes())
	fmt.Printf("nodes w/ outgoing: %d\n", g.NumNodesWithOutgoing())
	fmt.Printf("edges:             %d\n", len(g.Edges()))
	return nil
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <node>",
		Short: "Print outgoing or ingoing edges for a node",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	addCommonFlags(cmd)
	cmd.Flags().Bool("ingoing", false, "Query ingoing edges instead of outgoing")
	cmd.Flags().Int("limit", 0, "Max results (0 means unlimited)")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	ingoing, _ := cmd.Flags().GetBool("ingoing")
	limitN, _ := cmd.Flags().GetInt("limit")
	limit := config.Unlimited()
	if limitN > 0 {
		limit = config.Limit(limitN)
	}

	g, err := webgraph.NewBuilder(cfg.DataDir).WithConfig(cfg).WithLogger(log).Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.DataDir, err)
	}
	defer g.Close()

	n := node.From(args[0])

	var edges []webgraph.FullEdge
	if ingoing {
		edges, err = g.IngoingEdges(n, limit)
	} else {
		edges, err = g.OutgoingEdges(n, limit)
	}
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}

	for _, e := range edges {
		fmt.Printf("%s -> %s [%s]\n", e.From.String(), e.To.String(), e.Label)
	}
	return nil
}
