package embedding

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"agentmail-search/internal/logging"
)

// CanonicalizePolicy selects which part of a document is canonicalized
// before embedding.
type CanonicalizePolicy string

const (
	CanonicalizeWholeDocument CanonicalizePolicy = "whole_document"
	CanonicalizeTitleOnly     CanonicalizePolicy = "title_only"
)

var (
	markdownMarkup = regexp.MustCompile("(?m)^#{1,6}\\s+|\\*\\*|__|`{1,3}|^[-*+]\\s+")
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// stripMarkdown removes common Markdown markup without a full parser; the
// embedding target cares about prose content, not rendering.
func stripMarkdown(s string) string {
	return markdownMarkup.ReplaceAllString(s, "")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// tiktokenEncoding is shared across calls; cl100k_base is a reasonable
// stand-in tokenizer for budgeting truncation against any provider's
// stated max_tokens, since exact provider tokenizers aren't available
// client-side.
var tiktokenEncoding, tiktokenErr = tiktoken.GetEncoding("cl100k_base")

// truncateToTokens truncates s to at most maxTokens tokens, respecting
// token boundaries rather than raw byte length.
func truncateToTokens(s string, maxTokens int) string {
	if maxTokens <= 0 || tiktokenErr != nil {
		return s
	}
	tokens := tiktokenEncoding.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return tiktokenEncoding.Decode(tokens[:maxTokens])
}

// CanonicalizeDocument prepares title/body for embedding: strips markdown,
// collapses whitespace, applies the policy, and truncates to the target
// model's max_tokens bound on token boundaries.
func CanonicalizeDocument(title, body string, policy CanonicalizePolicy, maxTokens int) string {
	var text string
	switch policy {
	case CanonicalizeTitleOnly:
		text = title
	default:
		text = title + "\n\n" + body
	}
	text = collapseWhitespace(stripMarkdown(text))
	return truncateToTokens(text, maxTokens)
}

// EmbedDocument canonicalizes a document, computes its content hash, and
// embeds it in one call; the hash is attached to the result so callers can
// detect unchanged documents without re-embedding.
func EmbedDocument(ctx context.Context, embedder Embedder, title, body string, policy CanonicalizePolicy) (EmbeddingResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "EmbedDocument")
	defer timer.Stop()

	info := embedder.ModelInfo()
	canonical := CanonicalizeDocument(title, body, policy, info.MaxTokens)
	result, err := embedder.Embed(ctx, canonical)
	if err != nil {
		return EmbeddingResult{}, err
	}
	result.ContentHash = ContentHash(canonical)
	return result, nil
}

// NewFastEmbedder constructs the local (Fast-tier) embedder from config,
// rate-limited and request-deduplicated at requestsPerSecond (<= 0 disables
// both).
func NewFastEmbedder(endpoint, model string, requestsPerSecond float64) (Embedder, error) {
	e, err := newOllamaEmbedder(endpoint, model)
	if err != nil {
		return nil, err
	}
	return newRateLimitedEmbedder(e, requestsPerSecond), nil
}

// NewQualityEmbedder constructs the remote (Quality-tier) embedder from
// config, rate-limited and request-deduplicated at requestsPerSecond (<= 0
// disables both). The Quality tier is a paid, quota-limited API, so this is
// where the registry's rate budget matters most.
func NewQualityEmbedder(apiKey, model string, requestsPerSecond float64) (Embedder, error) {
	e, err := newGenAIEmbedder(apiKey, model)
	if err != nil {
		return nil, err
	}
	return newRateLimitedEmbedder(e, requestsPerSecond), nil
}
