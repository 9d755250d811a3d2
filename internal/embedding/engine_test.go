package embedding

import (
	"context"
	"strings"
	"testing"
)

func TestCanonicalizeDocumentWholeDocumentIncludesTitleAndBody(t *testing.T) {
	out := CanonicalizeDocument("Status Update", "Deploy went fine.", CanonicalizeWholeDocument, 0)
	if !strings.Contains(out, "Status Update") || !strings.Contains(out, "Deploy went fine.") {
		t.Fatalf("expected both title and body in output, got %q", out)
	}
}

func TestCanonicalizeDocumentTitleOnlyOmitsBody(t *testing.T) {
	out := CanonicalizeDocument("Status Update", "Deploy went fine.", CanonicalizeTitleOnly, 0)
	if strings.Contains(out, "Deploy went fine.") {
		t.Fatalf("expected body to be omitted, got %q", out)
	}
	if !strings.Contains(out, "Status Update") {
		t.Fatalf("expected title present, got %q", out)
	}
}

func TestCanonicalizeDocumentStripsMarkdownAndCollapsesWhitespace(t *testing.T) {
	out := CanonicalizeDocument("# Title", "**bold**   text\n\nwith   gaps", CanonicalizeWholeDocument, 0)
	if strings.ContainsAny(out, "#*") {
		t.Fatalf("expected markdown markup stripped, got %q", out)
	}
	if strings.Contains(out, "  ") {
		t.Fatalf("expected whitespace collapsed, got %q", out)
	}
}

func TestCanonicalizeDocumentZeroMaxTokensMeansNoTruncation(t *testing.T) {
	body := strings.Repeat("word ", 5000)
	out := CanonicalizeDocument("Title", body, CanonicalizeWholeDocument, 0)
	if !strings.Contains(out, "word") {
		t.Fatalf("expected untruncated output to retain content")
	}
}

func TestCanonicalizeDocumentTruncatesToTokenBudget(t *testing.T) {
	body := strings.Repeat("alpha beta gamma delta ", 200)
	full := CanonicalizeDocument("Title", body, CanonicalizeWholeDocument, 0)
	truncated := CanonicalizeDocument("Title", body, CanonicalizeWholeDocument, 5)
	if len(truncated) >= len(full) {
		t.Fatalf("expected truncated output shorter than untruncated: %d vs %d", len(truncated), len(full))
	}
}

func TestEmbedDocumentAttachesContentHash(t *testing.T) {
	r, err := EmbedDocument(context.Background(), HashEmbedder{}, "Title", "Body text.", CanonicalizeWholeDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ContentHash == "" {
		t.Fatal("expected a non-empty content hash")
	}
	canonical := CanonicalizeDocument("Title", "Body text.", CanonicalizeWholeDocument, 0)
	if r.ContentHash != ContentHash(canonical) {
		t.Fatalf("expected content hash to match canonicalized document hash")
	}
}

func TestEmbedDocumentDeterministicForSameInput(t *testing.T) {
	r1, err := EmbedDocument(context.Background(), HashEmbedder{}, "Title", "Body text.", CanonicalizeWholeDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := EmbedDocument(context.Background(), HashEmbedder{}, "Title", "Body text.", CanonicalizeWholeDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.ContentHash != r2.ContentHash {
		t.Fatalf("expected deterministic content hash, got %s vs %s", r1.ContentHash, r2.ContentHash)
	}
}
