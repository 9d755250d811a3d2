package store

import (
	"context"
	"database/sql"

	"agentmail-search/internal/embedding"
	"agentmail-search/internal/index"
	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// EmbeddingLifecycle wraps an FTSLifecycle and adds embedding-on-upsert:
// every upsert that reaches UpdateIncremental also embeds the document
// (skipping unchanged content via its stored ContentHash) and stores the
// vector through EmbedStore; every delete removes the stored embedding
// alongside the FTS shadow entry. FetchBatch/FetchAllBatched/TotalCount/
// Health are inherited unchanged from the embedded *FTSLifecycle.
type EmbeddingLifecycle struct {
	*FTSLifecycle
	embeds   *EmbedStore
	embedder embedding.Embedder
	policy   embedding.CanonicalizePolicy
}

// NewEmbeddingLifecycle builds an EmbeddingLifecycle for kind, ensuring the
// embeddings fallback table exists. embedder is the tier resolved by the
// caller's embedding.ModelRegistry (Hash tier is always a valid choice: it
// produces a content hash with no vector, which still drives change
// detection even when no real embedder is configured).
func NewEmbeddingLifecycle(db *sql.DB, kind index.DocKind, embedder embedding.Embedder) (*EmbeddingLifecycle, error) {
	fts, err := NewFTSLifecycle(db, kind)
	if err != nil {
		return nil, err
	}
	if err := EnsureEmbeddingsTable(db); err != nil {
		return nil, err
	}
	return &EmbeddingLifecycle{
		FTSLifecycle: fts,
		embeds:       NewEmbedStore(db),
		embedder:     embedder,
		policy:       embedding.CanonicalizeWholeDocument,
	}, nil
}

// UpdateIncremental resyncs the FTS shadow index (via the embedded
// FTSLifecycle) and then embeds or deletes the corresponding vector for
// each change.
func (e *EmbeddingLifecycle) UpdateIncremental(ctx context.Context, changes []index.DocChange) error {
	timer := logging.StartTimer(logging.CategoryEmbedding, "EmbeddingLifecycle.UpdateIncremental")
	defer timer.Stop()

	if err := e.FTSLifecycle.UpdateIncremental(ctx, changes); err != nil {
		return err
	}

	for _, c := range changes {
		if c.Op == index.ChangeDelete {
			if err := e.embeds.DeleteEmbedding(ctx, DocKind(c.Kind), c.ID); err != nil {
				return err
			}
			continue
		}
		if err := e.embedOne(ctx, c.Document); err != nil {
			return err
		}
	}
	return nil
}

func (e *EmbeddingLifecycle) embedOne(ctx context.Context, doc index.Document) error {
	maxTokens := e.embedder.ModelInfo().MaxTokens
	canonical := embedding.CanonicalizeDocument(doc.Title, doc.Body, e.policy, maxTokens)
	targetHash := embedding.ContentHash(canonical)

	existingHash, err := e.embeds.ContentHashOf(ctx, DocKind(doc.Kind), doc.ID)
	if err != nil {
		return err
	}
	if existingHash == targetHash {
		return nil
	}

	result, err := embedding.EmbedDocument(ctx, e.embedder, doc.Title, doc.Body, e.policy)
	if err != nil {
		return searcherr.New(searcherr.IO, "store.EmbeddingLifecycle.embedOne", err)
	}
	return e.embeds.UpsertEmbedding(ctx, DocKind(doc.Kind), doc.ID, result)
}
