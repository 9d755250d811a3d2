// Package store - embedding storage for semantic search over messages,
// agents, and projects. Prefers the vec0 ANN tables created by schema.go
// when sqlite-vec is available, and falls back to brute-force cosine
// similarity over a JSON-encoded fallback table otherwise.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"agentmail-search/internal/embedding"
	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// DocKind names an embeddable entity kind; it selects which vec0 table and
// fallback partition a vector belongs to.
type DocKind string

const (
	DocKindMessage DocKind = "message"
	DocKindAgent   DocKind = "agent"
	DocKindProject DocKind = "project"
)

func (k DocKind) vecTable() (string, error) {
	switch k {
	case DocKindMessage:
		return "vec_messages", nil
	case DocKindAgent:
		return "vec_agents", nil
	case DocKindProject:
		return "vec_projects", nil
	default:
		return "", searcherr.New(searcherr.Unsupported, "store.DocKind.vecTable", fmt.Errorf("unknown doc kind %q", k))
	}
}

// VectorHit is a semantic search candidate: a document id with its
// similarity score against the query vector.
type VectorHit struct {
	DocID      int64
	Similarity float64
}

// EmbedStore persists and queries embedding vectors for a single SQLite
// database handle. It is safe for concurrent use; callers serialize writes
// through the standard *sql.DB connection pool.
type EmbedStore struct {
	db *sql.DB
}

// NewEmbedStore wraps an already-migrated database handle.
func NewEmbedStore(db *sql.DB) *EmbedStore {
	return &EmbedStore{db: db}
}

// UpsertEmbedding stores result for (kind, docID), writing to the vec0 ANN
// table when present and always writing the JSON fallback row so brute-force
// search and re-embedding decisions (via ContentHash) stay available even
// without sqlite-vec.
func (s *EmbedStore) UpsertEmbedding(ctx context.Context, kind DocKind, docID int64, result embedding.EmbeddingResult) error {
	timer := logging.StartTimer(logging.CategoryStorage, "UpsertEmbedding")
	defer timer.Stop()

	vecJSON, err := json.Marshal(result.Vector)
	if err != nil {
		return searcherr.New(searcherr.Serialization, "store.EmbedStore.UpsertEmbedding:marshal", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embeddings (doc_kind, doc_id, model_id, dimension, vector_json, content_hash, updated_ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_kind, doc_id) DO UPDATE SET
		   model_id=excluded.model_id, dimension=excluded.dimension,
		   vector_json=excluded.vector_json, content_hash=excluded.content_hash,
		   updated_ts=excluded.updated_ts`,
		string(kind), docID, result.ModelID, result.Dimension, string(vecJSON), result.ContentHash, time.Now().UnixMicro(),
	)
	if err != nil {
		return searcherr.New(searcherr.IO, "store.EmbedStore.UpsertEmbedding:fallback", err)
	}

	if len(result.Vector) == 0 {
		return nil
	}

	table, err := kind.vecTable()
	if err != nil {
		return err
	}
	if !tableExists(s.db, table) {
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT OR REPLACE INTO %s (rowid, embedding) VALUES (?, ?)", table),
		docID, encodeFloat32Slice(result.Vector),
	); err != nil {
		logging.Get(logging.CategoryStorage).Warn("vec0 upsert failed for %s/%d, ANN index stale until repair: %v", kind, docID, err)
	}
	return nil
}

// ContentHashOf returns the stored content hash for (kind, docID), or ""
// if no embedding has been stored yet. Callers use this to skip re-embedding
// unchanged documents.
func (s *EmbedStore) ContentHashOf(ctx context.Context, kind DocKind, docID int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM embeddings WHERE doc_kind = ? AND doc_id = ?", string(kind), docID,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", searcherr.New(searcherr.IO, "store.EmbedStore.ContentHashOf", err)
	}
	return hash, nil
}

// DeleteEmbedding removes a document's embedding from both the fallback
// table and, if present, the vec0 ANN table.
func (s *EmbedStore) DeleteEmbedding(ctx context.Context, kind DocKind, docID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM embeddings WHERE doc_kind = ? AND doc_id = ?", string(kind), docID); err != nil {
		return searcherr.New(searcherr.IO, "store.EmbedStore.DeleteEmbedding:fallback", err)
	}
	table, err := kind.vecTable()
	if err != nil {
		return err
	}
	if tableExists(s.db, table) {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", table), docID); err != nil {
			logging.Get(logging.CategoryStorage).Warn("vec0 delete failed for %s/%d: %v", kind, docID, err)
		}
	}
	return nil
}

// SemanticSearch returns up to limit document ids of kind ranked by cosine
// similarity to queryVec, using the vec0 ANN table when available and
// falling back to brute force over the JSON fallback table otherwise.
func (s *EmbedStore) SemanticSearch(ctx context.Context, kind DocKind, queryVec []float32, limit int) ([]VectorHit, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "SemanticSearch")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}

	table, err := kind.vecTable()
	if err != nil {
		return nil, err
	}
	if tableExists(s.db, table) {
		hits, err := s.semanticSearchANN(ctx, table, queryVec, limit)
		if err == nil {
			return hits, nil
		}
		logging.Get(logging.CategoryStorage).Warn("ANN search on %s failed, falling back to brute force: %v", table, err)
	}
	return s.semanticSearchBruteForce(ctx, kind, queryVec, limit)
}

func (s *EmbedStore) semanticSearchANN(ctx context.Context, table string, queryVec []float32, limit int) ([]VectorHit, error) {
	query := fmt.Sprintf("SELECT rowid, vec_distance_cosine(embedding, ?) AS dist FROM %s ORDER BY dist ASC LIMIT ?", table)
	rows, err := s.db.QueryContext(ctx, query, encodeFloat32Slice(queryVec), limit)
	if err != nil {
		return nil, searcherr.New(searcherr.IO, "store.EmbedStore.semanticSearchANN", err)
	}
	defer rows.Close()

	hits := make([]VectorHit, 0, limit)
	for rows.Next() {
		var id int64
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			continue
		}
		hits = append(hits, VectorHit{DocID: id, Similarity: 1 - dist})
	}
	return hits, rows.Err()
}

func (s *EmbedStore) semanticSearchBruteForce(ctx context.Context, kind DocKind, queryVec []float32, limit int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_id, vector_json FROM embeddings WHERE doc_kind = ? AND vector_json != '[]'", string(kind))
	if err != nil {
		return nil, searcherr.New(searcherr.IO, "store.EmbedStore.semanticSearchBruteForce", err)
	}
	defer rows.Close()

	type candidate struct {
		id         int64
		similarity float64
	}
	var candidates []candidate

	for rows.Next() {
		var id int64
		var vecJSON string
		if err := rows.Scan(&id, &vecJSON); err != nil {
			continue
		}
		vec, err := fastParseVectorJSON([]byte(vecJSON), nil)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{id: id, similarity: embedding.CosineSimilarity(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, searcherr.New(searcherr.IO, "store.EmbedStore.semanticSearchBruteForce:rowsErr", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]VectorHit, len(candidates))
	for i, c := range candidates {
		hits[i] = VectorHit{DocID: c.id, Similarity: c.similarity}
	}
	return hits, nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

// EnsureEmbeddingsTable creates the JSON fallback table used when sqlite-vec
// is unavailable or for documents embedded at the hash tier (no vector).
func EnsureEmbeddingsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		doc_kind TEXT NOT NULL,
		doc_id INTEGER NOT NULL,
		model_id TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector_json TEXT NOT NULL,
		content_hash TEXT,
		updated_ts INTEGER NOT NULL,
		PRIMARY KEY (doc_kind, doc_id)
	)`)
	if err != nil {
		return searcherr.New(searcherr.IO, "store.EnsureEmbeddingsTable", err)
	}
	return nil
}
