package archive

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"agentmail-search/internal/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := store.EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

func TestReconstructEmptyStorageRoot(t *testing.T) {
	db := openTestDB(t)
	root := filepath.Join(t.TempDir(), "storage")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := Reconstruct(db, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Projects != 0 || stats.Agents != 0 || stats.Messages != 0 {
		t.Fatalf("expected all-zero stats, got %+v", stats)
	}
}

func TestReconstructNonexistentStorageRoot(t *testing.T) {
	db := openTestDB(t)
	stats, err := Reconstruct(db, filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Projects != 0 {
		t.Fatalf("expected 0 projects, got %d", stats.Projects)
	}
	if len(stats.Warnings) == 0 {
		t.Fatal("expected a warning about the missing projects directory")
	}
}

func TestReconstructWithAgentProfile(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	agentDir := filepath.Join(root, "projects", "test-project", "agents", "TestAgent")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile := `{"name":"TestAgent","program":"claude-code","model":"opus","inception_ts":"2026-02-22T12:00:00Z","last_active_ts":"2026-02-22T12:00:00Z"}`
	if err := os.WriteFile(filepath.Join(agentDir, "profile.json"), []byte(profile), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := Reconstruct(db, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Projects != 1 || stats.Agents != 1 || stats.Messages != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ParseErrors != 0 {
		t.Fatalf("expected no parse errors, got %+v", stats.Warnings)
	}
}

func TestReconstructUsesProjectMetadataHumanKey(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	projectDir := filepath.Join(root, "projects", "test-project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metadata := `{"slug":"test-project","human_key":"/data/projects/exact-human-key"}`
	if err := os.WriteFile(filepath.Join(projectDir, "project.json"), []byte(metadata), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := Reconstruct(db, root); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var humanKey string
	if err := db.QueryRow("SELECT human_key FROM projects WHERE slug = 'test-project'").Scan(&humanKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if humanKey != "/data/projects/exact-human-key" {
		t.Fatalf("expected exact human_key, got %s", humanKey)
	}
}

func TestReconstructFallsBackWhenProjectMetadataMissing(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	projectDir := filepath.Join(root, "projects", "test-project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := Reconstruct(db, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, w := range stats.Warnings {
		if containsBoth(w, "missing", "project.json") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a missing-project.json warning, got %v", stats.Warnings)
	}

	var humanKey string
	if err := db.QueryRow("SELECT human_key FROM projects WHERE slug = 'test-project'").Scan(&humanKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if humanKey != "/test-project" {
		t.Fatalf("expected fallback human_key, got %s", humanKey)
	}
}

func TestReconstructWithMessage(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	projectDir := filepath.Join(root, "projects", "test-project")
	messagesDir := filepath.Join(projectDir, "messages", "2026", "02")
	if err := os.MkdirAll(messagesDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agentDir := filepath.Join(projectDir, "agents", "Alice")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile := `{"name":"Alice","program":"test","model":"test","inception_ts":"2026-02-22T12:00:00Z","last_active_ts":"2026-02-22T12:00:00Z"}`
	if err := os.WriteFile(filepath.Join(agentDir, "profile.json"), []byte(profile), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgContent := "---json\n" +
		`{"id":1,"from":"Alice","to":["Bob"],"cc":[],"bcc":[],"thread_id":"TEST-1","subject":"Hello Bob","importance":"normal","ack_required":false,"created_ts":"2026-02-22T12:00:00Z","attachments":[]}` +
		"\n---\n\nHello Bob, this is a test message.\n"
	if err := os.WriteFile(filepath.Join(messagesDir, "2026-02-22T12-00-00Z__hello-bob__1.md"), []byte(msgContent), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := Reconstruct(db, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Agents != 2 {
		t.Fatalf("expected Alice (profile) + Bob (placeholder), got %d agents", stats.Agents)
	}
	if stats.Messages != 1 || stats.Recipients != 1 {
		t.Fatalf("expected 1 message with 1 recipient, got %+v", stats)
	}

	var subject, body string
	if err := db.QueryRow("SELECT subject, body FROM messages LIMIT 1").Scan(&subject, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Bob" {
		t.Fatalf("expected subject 'Hello Bob', got %s", subject)
	}

	var bobProgram string
	if err := db.QueryRow("SELECT program FROM agents WHERE name = 'Bob'").Scan(&bobProgram); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bobProgram != "unknown" {
		t.Fatalf("expected Bob to be a placeholder agent, got program=%s", bobProgram)
	}
}

func TestReconstructHandlesMalformedFiles(t *testing.T) {
	db := openTestDB(t)
	root := t.TempDir()
	projectDir := filepath.Join(root, "projects", "test-project")
	messagesDir := filepath.Join(projectDir, "messages", "2026", "02")
	if err := os.MkdirAll(messagesDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(messagesDir, "2026-02-22T12-00-00Z__bad__1.md"), []byte("no frontmatter here"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(messagesDir, "2026-02-22T12-01-00Z__bad__2.md"), []byte("---json\n{invalid json}\n---\n\nBody.\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := Reconstruct(db, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Messages != 0 {
		t.Fatalf("expected 0 messages, got %d", stats.Messages)
	}
	if stats.ParseErrors != 2 {
		t.Fatalf("expected 2 parse errors, got %d", stats.ParseErrors)
	}
}

func containsBoth(s, a, b string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, strings.ToLower(a)) && strings.Contains(lower, strings.ToLower(b))
}
