package triage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyArtifactKnownPaths(t *testing.T) {
	cases := map[string]string{
		"meta.json":    "metadata",
		"metrics.json": "metrics",
		"summary.json": "metrics",
		"fixtures.json": "fixture",
		"repro.json":   "replay",
		"repro.txt":    "replay",
	}
	for path, wantKind := range cases {
		kind, _ := ClassifyArtifact(path)
		if kind != wantKind {
			t.Fatalf("ClassifyArtifact(%q) kind = %q, want %q", path, kind, wantKind)
		}
	}
}

func TestClassifyArtifactPrefixPaths(t *testing.T) {
	cases := map[string]string{
		"diagnostics/env.txt":   "diagnostics",
		"logs/extra.log":        "logs",
		"screenshots/shot.png":  "screenshots",
		"trace/other.jsonl":     "trace",
		"transcript/1.txt":      "transcript",
		"some/random/file.bin":  "opaque",
	}
	for path, wantKind := range cases {
		kind, schema := ClassifyArtifact(path)
		if kind != wantKind {
			t.Fatalf("ClassifyArtifact(%q) kind = %q, want %q", path, kind, wantKind)
		}
		if kind == "opaque" && schema != nil {
			t.Fatalf("ClassifyArtifact(%q): expected nil schema for opaque, got %v", path, *schema)
		}
	}
}

func TestBuildManifestEnumeratesAndSortsFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "meta.json"), `{"a":1}`)
	mustWrite(t, filepath.Join(dir, "summary.json"), `{"b":2}`)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustWrite(t, filepath.Join(dir, "logs", "index.json"), `{"c":3}`)

	rc := NewRunContext(ClockDeterministic, 42, 1000, "unit")
	m, err := BuildManifest(dir, "unit", rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Schema.Name != "mcp-agent-mail-artifacts" || m.Schema.Major != 1 {
		t.Fatalf("unexpected schema: %+v", m.Schema)
	}
	if len(m.Files) != 3 {
		t.Fatalf("expected 3 files, got %d: %+v", len(m.Files), m.Files)
	}
	for i := 1; i < len(m.Files); i++ {
		if m.Files[i-1].Path >= m.Files[i].Path {
			t.Fatalf("files not sorted: %q >= %q", m.Files[i-1].Path, m.Files[i].Path)
		}
	}
	if m.Files[0].SHA256 == "" {
		t.Fatal("expected a non-empty sha256")
	}
}

func TestBuildManifestSkipsBundleJSONItself(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "meta.json"), `{}`)
	mustWrite(t, filepath.Join(dir, "bundle.json"), `{"stale":true}`)

	m, err := BuildManifest(dir, "unit", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Files) != 1 || m.Files[0].Path != "meta.json" {
		t.Fatalf("expected only meta.json, got %+v", m.Files)
	}
}

func TestWriteManifestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "meta.json"), `{}`)
	m, err := BuildManifest(dir, "unit", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bundle.json")); err != nil {
		t.Fatalf("expected bundle.json to exist: %v", err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
