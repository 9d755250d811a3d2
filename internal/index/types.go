// Package index implements the index lifecycle: full reindex, incremental
// update, consistency checking, and repair over a scope × schema artifact
// set living on disk at root/scope_dir/engine_name/schema_hash.
package index

import (
	"context"
	"strconv"
)

// DocKind names the entity kind a Document represents.
type DocKind string

const (
	DocKindMessage DocKind = "message"
	DocKindAgent   DocKind = "agent"
	DocKindProject DocKind = "project"
)

// Document is a source record ready for indexing.
type Document struct {
	ID        int64
	Kind      DocKind
	ProjectID int64
	Title     string
	Body      string
	Version   int64
}

// ChangeOp distinguishes an upsert from a delete in an incremental update.
type ChangeOp string

const (
	ChangeUpsert ChangeOp = "upsert"
	ChangeDelete ChangeOp = "delete"
)

// DocChange is one unit of incremental work: either an upserted Document or
// a delete identified by (ID, Kind).
type DocChange struct {
	Op       ChangeOp
	Document Document
	ID       int64
	Kind     DocKind
}

// DocumentSource is the read side of the corpus being indexed.
type DocumentSource interface {
	FetchBatch(ctx context.Context, ids []int64) ([]Document, error)
	FetchAllBatched(ctx context.Context, size, offset int) ([]Document, error)
	TotalCount(ctx context.Context) (int64, error)
}

// Health reports an index's operational status.
type Health struct {
	Ready         bool
	DocCount      int64
	SizeBytes     int64
	LastUpdatedTs int64
	StatusMessage string
}

// IndexLifecycle is the write side an index engine must implement.
type IndexLifecycle interface {
	Rebuild(ctx context.Context) error
	UpdateIncremental(ctx context.Context, changes []DocChange) error
	Health(ctx context.Context) (Health, error)
}

// ScopeKind selects the breadth of an index artifact set.
type ScopeKind string

const (
	ScopeGlobal  ScopeKind = "global"
	ScopeProject ScopeKind = "project"
	ScopeProduct ScopeKind = "product"
)

// Scope identifies one index artifact set. ID is ignored for ScopeGlobal.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

// Dir is the scope's directory name under the index root.
func (s Scope) Dir() string {
	switch s.Kind {
	case ScopeProject:
		return "project_" + strconv.FormatInt(s.ID, 10)
	case ScopeProduct:
		return "product_" + strconv.FormatInt(s.ID, 10)
	default:
		return "global"
	}
}

// Checkpoint records the outcome of the most recent successful build or
// incremental batch for a (scope, schema_hash) artifact set.
type Checkpoint struct {
	SchemaHash  string `json:"schema_hash"`
	DocsIndexed int64  `json:"docs_indexed"`
	StartedTs   int64  `json:"started_ts"`
	CompletedTs int64  `json:"completed_ts,omitempty"`
	MaxVersion  int64  `json:"max_version"`
	Success     bool   `json:"success"`
}
