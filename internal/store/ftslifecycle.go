package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agentmail-search/internal/index"
	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// ftsKindConfig maps an index.DocKind to the base table and FTS5
// external-content table that mirror it, plus the two text columns FTS
// indexes (title, body).
type ftsKindConfig struct {
	kind        index.DocKind
	table       string
	ftsTable    string
	titleColumn string
	bodyColumn  string
	hasProject  bool
}

var ftsKindConfigs = map[index.DocKind]ftsKindConfig{
	index.DocKindMessage: {index.DocKindMessage, "messages", "fts_messages", "subject", "body", true},
	index.DocKindAgent:   {index.DocKindAgent, "agents", "fts_agents", "name", "program", true},
	index.DocKindProject: {index.DocKindProject, "projects", "fts_projects", "slug", "human_key", false},
}

// FTSLifecycle implements index.DocumentSource and index.IndexLifecycle
// against one of the FTS5 external-content tables created by
// internal/store/schema.go (fts_messages, fts_agents, fts_projects). Rows
// have no explicit version column in this schema, so the row id itself
// (monotonic, append-mostly) stands in as Document.Version.
type FTSLifecycle struct {
	db  *sql.DB
	cfg ftsKindConfig
}

// NewFTSLifecycle builds a lifecycle/source pair for one document kind.
// Returns an error for kinds this store schema doesn't back with FTS.
func NewFTSLifecycle(db *sql.DB, kind index.DocKind) (*FTSLifecycle, error) {
	cfg, ok := ftsKindConfigs[kind]
	if !ok {
		return nil, searcherr.New(searcherr.Unsupported, "store.NewFTSLifecycle", fmt.Errorf("no FTS table for kind %q", kind))
	}
	return &FTSLifecycle{db: db, cfg: cfg}, nil
}

func (f *FTSLifecycle) projectIDExpr() string {
	if f.cfg.hasProject {
		return "project_id"
	}
	return "id"
}

// FetchBatch loads specific rows by id, in no particular guaranteed order.
func (f *FTSLifecycle) FetchBatch(ctx context.Context, ids []int64) ([]index.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		"SELECT id, %s, %s, %s FROM %s WHERE id IN (%s)",
		f.projectIDExpr(), f.cfg.titleColumn, f.cfg.bodyColumn, f.cfg.table, strings.Join(placeholders, ","),
	)
	return f.queryDocuments(ctx, query, args...)
}

// FetchAllBatched pages through the table in id order.
func (f *FTSLifecycle) FetchAllBatched(ctx context.Context, size, offset int) ([]index.Document, error) {
	query := fmt.Sprintf(
		"SELECT id, %s, %s, %s FROM %s ORDER BY id LIMIT ? OFFSET ?",
		f.projectIDExpr(), f.cfg.titleColumn, f.cfg.bodyColumn, f.cfg.table,
	)
	return f.queryDocuments(ctx, query, size, offset)
}

func (f *FTSLifecycle) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]index.Document, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, searcherr.New(searcherr.IO, "store.FTSLifecycle.queryDocuments", err)
	}
	defer rows.Close()

	var docs []index.Document
	for rows.Next() {
		var id, projectID int64
		var title, body string
		if err := rows.Scan(&id, &projectID, &title, &body); err != nil {
			return nil, searcherr.New(searcherr.IO, "store.FTSLifecycle.scan", err)
		}
		docs = append(docs, index.Document{
			ID:        id,
			Kind:      f.cfg.kind,
			ProjectID: projectID,
			Title:     title,
			Body:      body,
			Version:   id,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, searcherr.New(searcherr.IO, "store.FTSLifecycle.rowsErr", err)
	}
	return docs, nil
}

// TotalCount reports the number of indexable rows in the base table.
func (f *FTSLifecycle) TotalCount(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", f.cfg.table)
	if err := f.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, searcherr.New(searcherr.IO, "store.FTSLifecycle.TotalCount", err)
	}
	return n, nil
}

// Rebuild resyncs the FTS5 shadow index from the external content table in
// one shot via the table's special 'rebuild' command.
func (f *FTSLifecycle) Rebuild(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryStorage, "FTSLifecycle.Rebuild:"+f.cfg.table)
	defer timer.Stop()

	query := fmt.Sprintf("INSERT INTO %s(%s) VALUES('rebuild')", f.cfg.ftsTable, f.cfg.ftsTable)
	if _, err := f.db.ExecContext(ctx, query); err != nil {
		return searcherr.New(searcherr.IndexCorrupted, "store.FTSLifecycle.Rebuild", err)
	}
	return nil
}

// UpdateIncremental resyncs the FTS5 shadow entries for the given changes.
// Each affected row is deleted then (for upserts) reinserted. FTS5's
// external-content 'delete' command needs the row's last known column
// values to locate the entry in the shadow index, so callers populate
// Document on DocChange even for ChangeDelete (ID/Kind alone isn't enough
// to clean up the index once the content row itself is already gone).
func (f *FTSLifecycle) UpdateIncremental(ctx context.Context, changes []index.DocChange) error {
	for _, c := range changes {
		id := c.ID
		if c.Op == index.ChangeUpsert {
			id = c.Document.ID
		}
		title, body := c.Document.Title, c.Document.Body

		deleteQuery := fmt.Sprintf(
			"INSERT INTO %s(%s, rowid, %s, %s) VALUES('delete', ?, ?, ?)",
			f.cfg.ftsTable, f.cfg.ftsTable, f.cfg.titleColumn, f.cfg.bodyColumn,
		)
		if _, err := f.db.ExecContext(ctx, deleteQuery, id, title, body); err != nil {
			return searcherr.New(searcherr.IndexCorrupted, "store.FTSLifecycle.UpdateIncremental:delete", err)
		}

		if c.Op != index.ChangeUpsert {
			continue
		}
		insertQuery := fmt.Sprintf(
			"INSERT INTO %s(rowid, %s, %s) VALUES(?, ?, ?)",
			f.cfg.ftsTable, f.cfg.titleColumn, f.cfg.bodyColumn,
		)
		if _, err := f.db.ExecContext(ctx, insertQuery, c.Document.ID, c.Document.Title, c.Document.Body); err != nil {
			return searcherr.New(searcherr.IndexCorrupted, "store.FTSLifecycle.UpdateIncremental:insert", err)
		}
	}
	return nil
}

// Health reports the base table's row count. The FTS shadow tables are
// always considered ready once schema migrations have run; external
// content tables never go "not ready" the way a standalone engine might.
func (f *FTSLifecycle) Health(ctx context.Context) (index.Health, error) {
	count, err := f.TotalCount(ctx)
	if err != nil {
		return index.Health{}, err
	}
	return index.Health{
		Ready:         true,
		DocCount:      count,
		StatusMessage: fmt.Sprintf("%s backed by %s", f.cfg.ftsTable, f.cfg.table),
	}, nil
}
