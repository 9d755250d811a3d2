package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"agentmail-search/internal/embedding"
	"agentmail-search/internal/index"
	"agentmail-search/internal/store"
)

var (
	indexKind      string
	indexScopeFlag string
	indexThreshold float64
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild, check, or repair the full-text index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run a full reindex for one document kind and scope",
	RunE:  runIndexRebuild,
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report index/source count drift without mutating anything",
	RunE:  runIndexCheck,
}

var indexRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Run check, then rebuild only if the check recommends it",
	RunE:  runIndexRepair,
}

func init() {
	for _, c := range []*cobra.Command{indexRebuildCmd, indexCheckCmd, indexRepairCmd} {
		c.Flags().StringVar(&indexKind, "kind", "message", "Document kind: message, agent, or project")
		c.Flags().StringVar(&indexScopeFlag, "scope", "global", "Index scope: global, project:<id>, or product:<id>")
	}
	indexCheckCmd.Flags().Float64Var(&indexThreshold, "threshold", 0, "Count-drift severity threshold (default: config's)")
	indexRepairCmd.Flags().Float64Var(&indexThreshold, "threshold", 0, "Count-drift severity threshold (default: config's)")

	indexCmd.AddCommand(indexRebuildCmd, indexCheckCmd, indexRepairCmd)
}

// schemaFields lists the document fields each kind's index build covers, for
// ComputeSchemaHash. Changing this list invalidates existing checkpoints.
var schemaFields = map[index.DocKind][]string{
	index.DocKindMessage: {"id", "project_id", "subject", "body"},
	index.DocKindAgent:   {"id", "project_id", "name", "program"},
	index.DocKindProject: {"id", "slug", "human_key"},
}

func parseDocKind(s string) (index.DocKind, error) {
	switch index.DocKind(s) {
	case index.DocKindMessage, index.DocKindAgent, index.DocKindProject:
		return index.DocKind(s), nil
	default:
		return "", fmt.Errorf("unknown --kind %q (want message, agent, or project)", s)
	}
}

func parseScope(s string) (index.Scope, error) {
	if s == "global" || s == "" {
		return index.Scope{Kind: index.ScopeGlobal}, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return index.Scope{}, fmt.Errorf("unknown --scope %q (want global, project:<id>, or product:<id>)", s)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return index.Scope{}, fmt.Errorf("--scope %q: invalid id: %w", s, err)
	}
	switch parts[0] {
	case "project":
		return index.Scope{Kind: index.ScopeProject, ID: id}, nil
	case "product":
		return index.Scope{Kind: index.ScopeProduct, ID: id}, nil
	default:
		return index.Scope{}, fmt.Errorf("unknown --scope %q (want global, project:<id>, or product:<id>)", s)
	}
}

func buildReindexer() (*index.Reindexer, *sql.DB, error) {
	kind, err := parseDocKind(indexKind)
	if err != nil {
		return nil, nil, err
	}
	scope, err := parseScope(indexScopeFlag)
	if err != nil {
		return nil, nil, err
	}
	if indexThreshold <= 0 {
		indexThreshold = cfg.Index.CountDriftSevereRatio
	}

	db, err := store.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	registry := embedding.NewRegistry(
		embedding.RegistryConfig{
			PreferredFast:    cfg.Embedding.PreferredFast,
			PreferredQuality: cfg.Embedding.PreferredQuality,
			AllowFallback:    cfg.Embedding.AllowFallback,
		},
		embedding.ProviderConfig{
			OllamaEndpoint:    cfg.Embedding.OllamaEndpoint,
			OllamaModel:       cfg.Embedding.OllamaModel,
			GenAIAPIKey:       cfg.Embedding.GenAIAPIKey,
			GenAIModel:        cfg.Embedding.GenAIModel,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		},
	)
	embedder, err := registry.GetEmbedder(embedding.TierQuality)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	lifecycle, err := store.NewEmbeddingLifecycle(db, kind, embedder)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	r := &index.Reindexer{
		Source:     lifecycle,
		Lifecycle:  lifecycle,
		Layout:     index.Layout{Root: cfg.Index.Root, Scope: scope, EngineName: "fts"},
		SchemaHash: index.ComputeSchemaHash(schemaFields[kind]),
		BatchSize:  cfg.Index.BatchSize,
	}
	return r, db, nil
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	r, db, err := buildReindexer()
	if err != nil {
		return err
	}
	defer db.Close()

	cp, err := r.FullReindex(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("reindex complete: schema=%s docs_indexed=%d\n", cp.SchemaHash, cp.DocsIndexed)
	return nil
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	r, db, err := buildReindexer()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := r.ConsistencyCheck(context.Background(), indexThreshold)
	if err != nil {
		return err
	}
	printConsistencyReport(report)
	if !report.Healthy {
		return fmt.Errorf("index is unhealthy: %d finding(s)", len(report.Findings))
	}
	return nil
}

func runIndexRepair(cmd *cobra.Command, args []string) error {
	r, db, err := buildReindexer()
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := r.RepairIfNeeded(context.Background(), indexThreshold)
	if err != nil {
		return err
	}
	printConsistencyReport(result.Report)
	if result.Rebuilt {
		fmt.Printf("rebuilt: schema=%s docs_indexed=%d\n", result.Checkpoint.SchemaHash, result.Checkpoint.DocsIndexed)
	} else {
		fmt.Println("no rebuild needed")
	}
	return nil
}

func printConsistencyReport(report index.ConsistencyReport) {
	if len(report.Findings) == 0 {
		fmt.Println("no findings")
		return
	}
	for _, f := range report.Findings {
		fmt.Printf("[%s] %s: %s\n", f.Severity, f.Category, f.Detail)
	}
}
