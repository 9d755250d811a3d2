package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agentmail-search/internal/searcherr"
)

// BundleSchema names the e2e artifact bundle's own schema, distinct from
// the per-file schemas in BundleFile.Schema.
type BundleSchema struct {
	Name  string `json:"name"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
}

// BundleFile is one manifest entry: a content-addressed reference to a
// file under the artifact directory.
type BundleFile struct {
	Path   string  `json:"path"`
	SHA256 string  `json:"sha256"`
	Bytes  int64   `json:"bytes"`
	Kind   string  `json:"kind"`
	Schema *string `json:"schema,omitempty"`
}

// Manifest is the top-level e2e artifact bundle document
// (mcp-agent-mail-artifacts.1.0 schema).
type Manifest struct {
	Schema      BundleSchema `json:"schema"`
	Suite       string       `json:"suite"`
	Seed        uint64       `json:"seed"`
	GeneratedAt string       `json:"generated_at"`
	Files       []BundleFile `json:"files"`
}

// schemaFor returns a pointer to the schema id name for a recognized
// artifact path. It never returns nil; ClassifyArtifact returns a nil schema
// itself for paths that carry no self-describing schema.
func schemaFor(name string) *string {
	s := name
	return &s
}

// ClassifyArtifact maps a manifest-relative path to (kind, schema). Unknown
// paths classify by directory prefix, falling back to "opaque".
func ClassifyArtifact(path string) (string, *string) {
	switch path {
	case "summary.json":
		return "metrics", schemaFor("summary.v1")
	case "meta.json":
		return "metadata", schemaFor("meta.v1")
	case "metrics.json":
		return "metrics", schemaFor("metrics.v1")
	case "fixtures.json":
		return "fixture", schemaFor("fixtures.v1")
	case "repro.json":
		return "replay", schemaFor("repro.v1")
	case "repro.txt", "repro.env":
		return "replay", nil
	case "trace/events.jsonl":
		return "trace", schemaFor("trace-events.v1")
	case "logs/index.json":
		return "logs", schemaFor("logs-index.v1")
	case "screenshots/index.json":
		return "screenshots", schemaFor("screenshots-index.v1")
	}
	switch {
	case strings.HasPrefix(path, "diagnostics/"):
		return "diagnostics", nil
	case strings.HasPrefix(path, "logs/"):
		return "logs", nil
	case strings.HasPrefix(path, "screenshots/"):
		return "screenshots", nil
	case strings.HasPrefix(path, "trace/"):
		return "trace", nil
	case strings.HasPrefix(path, "transcript/"):
		return "transcript", nil
	default:
		return "opaque", nil
	}
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildManifest walks artifactDir and produces a Manifest over every file
// found, skipping bundle.json itself (the manifest never references its
// own future contents). Files are sorted by path for determinism.
func BuildManifest(artifactDir, suite string, rc *RunContext) (Manifest, error) {
	var files []BundleFile
	err := filepath.Walk(artifactDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(artifactDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "bundle.json" {
			return nil
		}
		digest, err := sha256File(path)
		if err != nil {
			return err
		}
		kind, schema := ClassifyArtifact(rel)
		files = append(files, BundleFile{
			Path:   rel,
			SHA256: digest,
			Bytes:  info.Size(),
			Kind:   kind,
			Schema: schema,
		})
		return nil
	})
	if err != nil {
		return Manifest{}, searcherr.New(searcherr.IO, "triage.BuildManifest", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var seed uint64
	if rc != nil {
		seed = rc.Seed
	}
	return Manifest{
		Schema:      BundleSchema{Name: "mcp-agent-mail-artifacts", Major: 1, Minor: 0},
		Suite:       suite,
		Seed:        seed,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Files:       files,
	}, nil
}

// WriteManifest marshals m as bundle.json under artifactDir.
func WriteManifest(artifactDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return searcherr.New(searcherr.Serialization, "triage.WriteManifest", err)
	}
	path := filepath.Join(artifactDir, "bundle.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return searcherr.New(searcherr.IO, "triage.WriteManifest", err)
	}
	return nil
}
