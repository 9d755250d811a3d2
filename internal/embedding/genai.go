package embedding

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"agentmail-search/internal/logging"
)

// maxBatchSize is the maximum number of texts allowed in a single GenAI
// batch request; the API rejects batches larger than this.
const maxBatchSize = 100

func int32Ptr(i int32) *int32 { return &i }

// genaiEmbedder is the Quality-tier embedder: Google's Gemini API.
type genaiEmbedder struct {
	client *genai.Client
	info   ModelInfo
}

func newGenAIEmbedder(apiKey, model string) (Embedder, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "newGenAIEmbedder")
	defer timer.Stop()

	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &genaiEmbedder{
		client: client,
		info:   ModelInfo{ID: "genai-" + model, Tier: TierQuality, Dimension: 3072, MaxTokens: 2048},
	}, nil
}

func (e *genaiEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GenAI.Embed")
	defer timer.Stop()

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx,
		e.modelName(),
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(int32(e.info.Dimension))},
	)
	elapsed := time.Since(start)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return EmbeddingResult{}, fmt.Errorf("no embeddings returned")
	}

	return EmbeddingResult{
		Vector:    result.Embeddings[0].Values,
		ModelID:   e.info.ID,
		Tier:      TierQuality,
		Dimension: len(result.Embeddings[0].Values),
		Elapsed:   elapsed,
	}, nil
}

// EmbedBatch chunks into groups of at most maxBatchSize and processes
// sequentially, since the API rejects oversized batches.
func (e *genaiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GenAI.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	all := make([]EmbeddingResult, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunkResults, err := e.embedBatchChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("batch starting at %d failed: %w", start, err)
		}
		all = append(all, chunkResults...)
	}
	return all, nil
}

func (e *genaiEmbedder) embedBatchChunk(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	start := time.Now()
	result, err := e.client.Models.EmbedContent(ctx,
		e.modelName(),
		contents,
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(int32(e.info.Dimension))},
	)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("GenAI batch embed failed: %w", err)
	}

	out := make([]EmbeddingResult, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = EmbeddingResult{
			Vector:    emb.Values,
			ModelID:   e.info.ID,
			Tier:      TierQuality,
			Dimension: len(emb.Values),
			Elapsed:   elapsed,
		}
	}
	return out, nil
}

func (e *genaiEmbedder) ModelInfo() ModelInfo { return e.info }

func (e *genaiEmbedder) IsReady(ctx context.Context) bool {
	_, err := e.client.Models.EmbedContent(ctx,
		e.modelName(),
		[]*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(int32(e.info.Dimension))},
	)
	return err == nil
}

func (e *genaiEmbedder) modelName() string {
	return e.info.ID[len("genai-"):]
}
