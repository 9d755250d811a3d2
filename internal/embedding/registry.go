// Package embedding provides vector embedding generation for semantic
// search over messages, agents, and projects, with a tiered fallback
// registry (quality -> fast -> hash) in front of any single provider.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// ModelTier ranks embedding providers by cost and quality.
type ModelTier string

const (
	TierHash    ModelTier = "hash"
	TierFast    ModelTier = "fast"
	TierQuality ModelTier = "quality"
)

func (t ModelTier) lower() (ModelTier, bool) {
	switch t {
	case TierQuality:
		return TierFast, true
	case TierFast:
		return TierHash, true
	default:
		return "", false
	}
}

// ModelInfo describes a registered embedding model.
type ModelInfo struct {
	ID        string
	Tier      ModelTier
	Dimension int
	MaxTokens int
}

// EmbeddingResult is returned by every Embedder call. A hash-only result
// has an empty Vector and Tier == TierHash.
type EmbeddingResult struct {
	Vector      []float32
	ModelID     string
	Tier        ModelTier
	Dimension   int
	Elapsed     time.Duration
	ContentHash string
}

// Embedder is the capability set every registered model must provide.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error)
	ModelInfo() ModelInfo
	IsReady(ctx context.Context) bool
}

// ContentHash computes the stable SHA-256 content hash used for
// change detection independent of any embedding vector.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HashEmbedder is the always-registered fallback: it never fails and
// never produces a vector, only a content hash.
type HashEmbedder struct{}

func (HashEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	start := time.Now()
	return EmbeddingResult{
		ModelID:     "hash-sha256",
		Tier:        TierHash,
		Dimension:   0,
		Elapsed:     time.Since(start),
		ContentHash: ContentHash(text),
	}, nil
}

func (h HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]EmbeddingResult, error) {
	out := make([]EmbeddingResult, len(texts))
	for i, t := range texts {
		r, _ := h.Embed(ctx, t)
		out[i] = r
	}
	return out, nil
}

func (HashEmbedder) ModelInfo() ModelInfo {
	return ModelInfo{ID: "hash-sha256", Tier: TierHash, Dimension: 0, MaxTokens: 0}
}

func (HashEmbedder) IsReady(context.Context) bool { return true }

// registeredModel pairs catalog metadata with an activated embedder.
// An entry may be registered (present in the catalog) without being
// activated (embedder == nil), in which case it is not selectable.
type registeredModel struct {
	info      ModelInfo
	embedder  Embedder
	preferred bool
}

// RegistryConfig selects the preferred model id per tier and whether
// tier fallback is permitted.
type RegistryConfig struct {
	PreferredFast    string
	PreferredQuality string
	AllowFallback    bool
}

// ModelRegistry owns the set of activated embedders and the always-on
// hash fallback. Safe for concurrent use by many readers.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]*registeredModel
	cfg    RegistryConfig
}

// NewModelRegistry builds a registry pre-seeded with the well-known
// model catalog (hash tier always ready; fast/quality registered but
// not activated until SetEmbedder is called for their ids).
func NewModelRegistry(cfg RegistryConfig) *ModelRegistry {
	r := &ModelRegistry{models: make(map[string]*registeredModel), cfg: cfg}
	r.register(ModelInfo{ID: "hash-sha256", Tier: TierHash, Dimension: 0, MaxTokens: 0}, HashEmbedder{})

	r.register(ModelInfo{ID: "ollama-embeddinggemma", Tier: TierFast, Dimension: 768, MaxTokens: 2048}, nil)
	r.register(ModelInfo{ID: "ollama-nomic-embed-text", Tier: TierFast, Dimension: 768, MaxTokens: 8192}, nil)

	r.register(ModelInfo{ID: "genai-gemini-embedding-001", Tier: TierQuality, Dimension: 3072, MaxTokens: 2048}, nil)
	r.register(ModelInfo{ID: "genai-text-embedding-004", Tier: TierQuality, Dimension: 768, MaxTokens: 2048}, nil)

	return r
}

func (r *ModelRegistry) register(info ModelInfo, embedder Embedder) {
	preferred := (info.Tier == TierFast && info.ID == r.cfg.PreferredFast) ||
		(info.Tier == TierQuality && info.ID == r.cfg.PreferredQuality)
	r.models[info.ID] = &registeredModel{info: info, embedder: embedder, preferred: preferred}
}

// Activate attaches a live embedder value to a previously registered
// model id. Registering a model does not activate it; only Activate
// marks it available for selection.
func (r *ModelRegistry) Activate(modelID string, embedder Embedder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.models[modelID]
	if !ok {
		return searcherr.New(searcherr.Unsupported, "Activate", fmt.Errorf("unknown model id %q", modelID))
	}
	m.embedder = embedder
	return nil
}

// GetEmbedder resolves the embedder to use for a tier per the
// preference order: exact hash tier, preferred model for the tier,
// first available model at the tier, fallback to the next lower tier,
// or ModeUnavailable if fallback is disabled and nothing matched.
func (r *ModelRegistry) GetEmbedder(tier ModelTier) (Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getEmbedderLocked(tier)
}

func (r *ModelRegistry) getEmbedderLocked(tier ModelTier) (Embedder, error) {
	if tier == TierHash {
		return HashEmbedder{}, nil
	}

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var preferred, first Embedder
	for _, id := range ids {
		m := r.models[id]
		if m.info.Tier != tier || m.embedder == nil {
			continue
		}
		if !m.embedder.IsReady(context.Background()) {
			continue
		}
		if first == nil {
			first = m.embedder
		}
		if m.preferred {
			preferred = m.embedder
		}
	}

	switch {
	case preferred != nil:
		return preferred, nil
	case first != nil:
		return first, nil
	}

	if !r.cfg.AllowFallback {
		return nil, searcherr.New(searcherr.ModeUnavailable, "GetEmbedder", fmt.Errorf("no ready embedder at tier %s", tier))
	}
	lower, ok := tier.lower()
	if !ok {
		return HashEmbedder{}, nil
	}
	logging.Get(logging.CategoryEmbedding).Warn("no ready embedder at tier %s, falling back to %s", tier, lower)
	return r.getEmbedderLocked(lower)
}

// ProviderConfig supplies the provider-specific settings NewRegistry needs
// to activate the Fast and Quality tiers, independent of RegistryConfig's
// tier-selection policy.
type ProviderConfig struct {
	OllamaEndpoint    string
	OllamaModel       string
	GenAIAPIKey       string
	GenAIModel        string
	RequestsPerSecond float64
}

// NewRegistry builds a ModelRegistry and activates whichever tiers their
// provider config makes available: the Fast tier always (Ollama has no
// required credential), the Quality tier only when GenAIAPIKey is set.
// Activation failures are logged and leave that tier unavailable rather
// than failing registry construction, since the hash tier is always a
// usable fallback.
func NewRegistry(cfg RegistryConfig, providers ProviderConfig) *ModelRegistry {
	r := NewModelRegistry(cfg)

	fastID := "ollama-" + nonEmpty(providers.OllamaModel, "embeddinggemma")
	if fast, err := NewFastEmbedder(providers.OllamaEndpoint, providers.OllamaModel, providers.RequestsPerSecond); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("fast-tier embedder unavailable: %v", err)
	} else if err := r.Activate(fastID, fast); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("fast-tier embedder activation failed: %v", err)
	}

	if providers.GenAIAPIKey != "" {
		qualityID := "genai-" + nonEmpty(providers.GenAIModel, "gemini-embedding-001")
		if quality, err := NewQualityEmbedder(providers.GenAIAPIKey, providers.GenAIModel, providers.RequestsPerSecond); err != nil {
			logging.Get(logging.CategoryEmbedding).Warn("quality-tier embedder unavailable: %v", err)
		} else if err := r.Activate(qualityID, quality); err != nil {
			logging.Get(logging.CategoryEmbedding).Warn("quality-tier embedder activation failed: %v", err)
		}
	}

	return r
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Catalog returns the registered model catalog (registered, not
// necessarily activated), sorted by id for deterministic output.
func (r *ModelRegistry) Catalog() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CosineSimilarity returns the cosine similarity of a and b, or zero if
// the lengths differ or either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// L2Normalize returns a unit-length copy of v. Idempotent on a
// zero vector: returns a zero vector unchanged rather than dividing by
// zero.
func L2Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return append([]float32(nil), v...)
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
