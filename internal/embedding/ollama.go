package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentmail-search/internal/logging"
)

// ollamaEmbedder is the Fast-tier embedder: a local Ollama server.
type ollamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
	info     ModelInfo
}

func newOllamaEmbedder(endpoint, model string) (Embedder, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "newOllamaEmbedder")
	defer timer.Stop()

	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}

	logging.Embedding("Creating Ollama embedder: endpoint=%s, model=%s", endpoint, model)

	return &ollamaEmbedder{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		info:     ModelInfo{ID: "ollama-" + model, Tier: TierFast, Dimension: 768, MaxTokens: 2048},
	}, nil
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.Embed")
	defer timer.Stop()

	req := ollamaEmbedRequest{Model: e.model, Prompt: text}
	body, err := json.Marshal(req)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return EmbeddingResult{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return EmbeddingResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return EmbeddingResult{
		Vector:    result.Embedding,
		ModelID:   e.info.ID,
		Tier:      TierFast,
		Dimension: len(result.Embedding),
		Elapsed:   elapsed,
	}, nil
}

func (e *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([]EmbeddingResult, len(texts))
	for i, text := range texts {
		r, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = r
	}
	return results, nil
}

func (e *ollamaEmbedder) ModelInfo() ModelInfo { return e.info }

func (e *ollamaEmbedder) IsReady(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", e.endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
