package store

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureSchemaCreatesCoreTables(t *testing.T) {
	db := openTestDB(t)
	if _, err := EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, table := range []string{"projects", "agents", "messages", "message_recipients", "agent_links", "product_project_links", "embeddings"} {
		if !tableExists(db, table) {
			t.Errorf("expected table %s to exist after EnsureSchema", table)
		}
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if _, err := EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	if _, err := EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
}

func TestGetSchemaVersionInfersFromStructure(t *testing.T) {
	db := openTestDB(t)
	if v := GetSchemaVersion(db); v != 0 {
		t.Fatalf("expected version 0 for empty database, got %d", v)
	}

	if err := MigrateV0ToV1(db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := GetSchemaVersion(db); v != 1 {
		t.Fatalf("expected inferred version 1, got %d", v)
	}
}

func TestCheckMigrationNeeded(t *testing.T) {
	db := openTestDB(t)
	needed, version := CheckMigrationNeeded(db)
	if !needed || version != 0 {
		t.Fatalf("expected migration needed from version 0, got needed=%v version=%d", needed, version)
	}

	if _, err := EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needed, version := CheckMigrationNeeded(db); needed && version >= CurrentSchemaVersion {
		t.Fatalf("expected no migration needed once at current version, got needed=%v version=%d", needed, version)
	}
}

func TestColumnExistsAndTableExists(t *testing.T) {
	db := openTestDB(t)
	if tableExists(db, "messages") {
		t.Fatal("expected messages to not exist before schema creation")
	}
	if err := MigrateV0ToV1(db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tableExists(db, "messages") {
		t.Fatal("expected messages to exist after MigrateV0ToV1")
	}
	if !columnExists(db, "messages", "subject") {
		t.Fatal("expected messages.subject to exist")
	}
	if columnExists(db, "messages", "no_such_column") {
		t.Fatal("expected no_such_column to not exist")
	}
}

func TestComputeContentHashDeterministic(t *testing.T) {
	h1 := ComputeContentHash("Subject", "Body")
	h2 := ComputeContentHash("Subject", "Body")
	if h1 != h2 {
		t.Fatalf("expected deterministic hash, got %s vs %s", h1, h2)
	}
	h3 := ComputeContentHash("Subject", "Different body")
	if h1 == h3 {
		t.Fatal("expected different content to hash differently")
	}
}

func TestBackfillContentHashes(t *testing.T) {
	db := openTestDB(t)
	if _, err := EnsureSchema(db, ":memory:"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := db.Exec(
		`INSERT INTO projects (slug, human_key, created_ts) VALUES ('proj', '/abs/proj', 1)`,
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO agents (project_id, name, contact_policy) VALUES (1, 'agent-a', 'open')`,
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO messages (project_id, sender_agent_id, subject, body, created_ts) VALUES (1, 1, 'hello', 'world', 100)`,
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := BackfillContentHashes(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 message updated, got %d", updated)
	}

	var hash string
	if err := db.QueryRow("SELECT content_hash FROM messages WHERE id = 1").Scan(&hash); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != ComputeContentHash("hello", "world") {
		t.Fatalf("expected backfilled hash to match ComputeContentHash, got %s", hash)
	}
}
