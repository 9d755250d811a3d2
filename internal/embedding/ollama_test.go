package embedding

import (
	"context"
	"testing"
)

func TestNewOllamaEmbedderDefaultsEndpointAndModel(t *testing.T) {
	e, err := newOllamaEmbedder("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := e.ModelInfo()
	if info.ID != "ollama-embeddinggemma" {
		t.Fatalf("expected default model id, got %s", info.ID)
	}
	if info.Tier != TierFast {
		t.Fatalf("expected TierFast, got %s", info.Tier)
	}
}

func TestNewOllamaEmbedderCustomEndpointAndModel(t *testing.T) {
	e, err := newOllamaEmbedder("http://example:1234", "nomic-embed-text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ModelInfo().ID != "ollama-nomic-embed-text" {
		t.Fatalf("expected custom model id, got %s", e.ModelInfo().ID)
	}
}

func TestNewOllamaEmbedderNotReadyWithoutServer(t *testing.T) {
	e, err := newOllamaEmbedder("http://127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsReady(context.Background()) {
		t.Fatal("expected embedder to report not ready when no server is listening")
	}
}
