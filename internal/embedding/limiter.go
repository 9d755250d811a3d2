package embedding

import (
	"context"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// rateLimitedEmbedder wraps a remote-API-backed Embedder with a token-bucket
// rate limiter and a singleflight group that collapses concurrent Embed
// calls for identical text into one upstream call, so a burst of documents
// sharing content (retries, duplicate messages) costs one request instead
// of one per caller.
type rateLimitedEmbedder struct {
	Embedder
	limiter *rate.Limiter
	group   singleflight.Group
}

// newRateLimitedEmbedder wraps embedder so calls are throttled to
// requestsPerSecond with a burst of one. requestsPerSecond <= 0 disables
// limiting and returns embedder unwrapped.
func newRateLimitedEmbedder(embedder Embedder, requestsPerSecond float64) Embedder {
	if requestsPerSecond <= 0 {
		return embedder
	}
	return &rateLimitedEmbedder{
		Embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (e *rateLimitedEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	v, err, _ := e.group.Do(ContentHash(text), func() (interface{}, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return EmbeddingResult{}, err
		}
		return e.Embedder.Embed(ctx, text)
	})
	if err != nil {
		return EmbeddingResult{}, err
	}
	return v.(EmbeddingResult), nil
}

func (e *rateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.Embedder.EmbedBatch(ctx, texts)
}
