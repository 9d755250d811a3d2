package store

import (
	"context"
	"database/sql"
	"testing"

	"agentmail-search/internal/index"
)

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) sql.Result {
	t.Helper()
	res, err := db.Exec(query, args...)
	if err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
	return res
}

func seedMessage(t *testing.T, db *sql.DB, projectID, agentID int64, subject, body string, createdTs int64) int64 {
	t.Helper()
	res := mustExec(t, db,
		"INSERT INTO messages (project_id, sender_agent_id, subject, body, created_ts) VALUES (?, ?, ?, ?, ?)",
		projectID, agentID, subject, body, createdTs,
	)
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return id
}

func seedProjectAndAgent(t *testing.T, db *sql.DB) {
	t.Helper()
	mustExec(t, db, "INSERT INTO projects (slug, human_key, created_ts) VALUES ('p', '/p', 0)")
	mustExec(t, db, "INSERT INTO agents (project_id, name) VALUES (1, 'a')")
}

func TestFTSLifecycleUnsupportedKind(t *testing.T) {
	db := openTestDB(t)
	if _, err := NewFTSLifecycle(db, index.DocKind("bogus")); err == nil {
		t.Fatal("expected an error for an unsupported doc kind")
	}
}

func TestFTSLifecycleFetchAllBatchedAndTotalCount(t *testing.T) {
	db := openTestDB(t)
	seedProjectAndAgent(t, db)
	seedMessage(t, db, 1, 1, "hello", "world", 0)
	seedMessage(t, db, 1, 1, "second", "msg", 1)

	lc, err := NewFTSLifecycle(db, index.DocKindMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	total, err := lc.TotalCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 rows, got %d", total)
	}

	docs, err := lc.FetchAllBatched(ctx, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Title != "hello" || docs[0].ProjectID != 1 {
		t.Fatalf("unexpected first doc: %+v", docs[0])
	}
}

func TestFTSLifecycleFetchBatchByID(t *testing.T) {
	db := openTestDB(t)
	seedProjectAndAgent(t, db)
	id := seedMessage(t, db, 1, 1, "hello", "world", 0)
	seedMessage(t, db, 1, 1, "second", "msg", 1)

	lc, err := NewFTSLifecycle(db, index.DocKindMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, err := lc.FetchBatch(context.Background(), []int64{id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id {
		t.Fatalf("expected exactly the requested doc, got %+v", docs)
	}
}

func TestFTSLifecycleRebuildAndHealth(t *testing.T) {
	db := openTestDB(t)
	seedProjectAndAgent(t, db)
	seedMessage(t, db, 1, 1, "hello", "world", 0)

	lc, err := NewFTSLifecycle(db, index.DocKindMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if err := lc.Rebuild(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	health, err := lc.Health(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !health.Ready || health.DocCount != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	var matches int
	if err := db.QueryRow("SELECT count(*) FROM fts_messages WHERE fts_messages MATCH 'hello'").Scan(&matches); err != nil {
		t.Fatalf("unexpected error querying fts_messages: %v", err)
	}
	if matches != 1 {
		t.Fatalf("expected rebuild to make 'hello' searchable, got %d matches", matches)
	}
}

func TestFTSLifecycleUpdateIncrementalUpsertAndDelete(t *testing.T) {
	db := openTestDB(t)
	seedProjectAndAgent(t, db)
	id := seedMessage(t, db, 1, 1, "before", "content", 0)

	lc, err := NewFTSLifecycle(db, index.DocKindMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	err = lc.UpdateIncremental(ctx, []index.DocChange{
		{
			Op: index.ChangeUpsert,
			Document: index.Document{
				ID: id, Kind: index.DocKindMessage, ProjectID: 1,
				Title: "after", Body: "content",
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var matches int
	if err := db.QueryRow("SELECT count(*) FROM fts_messages WHERE fts_messages MATCH 'after'").Scan(&matches); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != 1 {
		t.Fatalf("expected upserted title to be searchable, got %d matches", matches)
	}

	err = lc.UpdateIncremental(ctx, []index.DocChange{
		{Op: index.ChangeDelete, ID: id, Kind: index.DocKindMessage, Document: index.Document{Title: "after", Body: "content"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.QueryRow("SELECT count(*) FROM fts_messages WHERE fts_messages MATCH 'after'").Scan(&matches); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != 0 {
		t.Fatalf("expected delete to remove the fts entry, got %d matches", matches)
	}
}
