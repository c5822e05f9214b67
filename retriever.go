package loreforge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// DefaultTopK is the number of chunks Retrieve returns when the caller
// passes k <= 0.
const DefaultTopK = 5

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// RetrieverLogger sets a structured logger for retrieval operations.
func RetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// Retriever ranks a campaign's stored chunks against a query vector and
// returns the most relevant ones.
type Retriever struct {
	store  Store
	logger *slog.Logger
}

// NewRetriever creates a Retriever over the given store.
func NewRetriever(store Store, opts ...RetrieverOption) *Retriever {
	r := &Retriever{store: store, logger: nopLogger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve scores every chunk scoped to the campaign by cosine similarity
// against queryVec and returns the top k chunk texts, most relevant first.
// Ties keep insertion order. A campaign with no chunks yields an empty
// result, not an error. Chunks whose stored vector has zero magnitude are
// excluded rather than scored.
func (r *Retriever) Retrieve(ctx context.Context, campaignID string, queryVec []float32, k int) ([]string, error) {
	scored, err := r.RetrieveScored(ctx, campaignID, queryVec, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(scored))
	for i, sc := range scored {
		texts[i] = sc.Content
	}
	return texts, nil
}

// RetrieveScored is Retrieve with scores attached.
func (r *Retriever) RetrieveScored(ctx context.Context, campaignID string, queryVec []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	start := time.Now()

	chunks, err := r.store.GetChunksByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign chunks: %w", err)
	}

	var results []ScoredChunk
	for _, c := range chunks {
		score, ok := cosineSimilarity(queryVec, c.Embedding)
		if !ok {
			continue
		}
		results = append(results, ScoredChunk{Chunk: c, Score: score})
	}

	// Stable keeps insertion order on equal scores, for reproducibility.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	r.logger.Debug("retrieve ok", "campaign_id", campaignID, "scanned", len(chunks), "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// The boolean is false when the score is undefined: mismatched or empty
// vectors, or either vector having zero magnitude.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, false
	}
	return dot / denom, true
}

// CosineSimilarity exposes the similarity measure used for ranking.
// Undefined comparisons (zero-magnitude or mismatched vectors) return
// false instead of NaN.
func CosineSimilarity(a, b []float32) (float64, bool) {
	return cosineSimilarity(a, b)
}
