package loreforge

import (
	"context"
	"math"
	"testing"
)

func seedChunks(t *testing.T, store *memStore, campaignID, sourceID string, chunks []Chunk) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateSource(ctx, Source{ID: sourceID, CampaignID: campaignID, Text: "seed", CreatedAt: NowUnix()}); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceChunks(ctx, sourceID, chunks); err != nil {
		t.Fatal(err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
		ok   bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, true},
		{"scaled is identical", []float32{1, 1}, []float32{5, 5}, 1, true},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0, false},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0, false},
		{"empty", nil, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CosineSimilarity(tt.a, tt.b)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRetrieveRanksByScore(t *testing.T) {
	store := newMemStore()
	seedChunks(t, store, "c1", "s1", []Chunk{
		{ID: "1", SourceID: "s1", Content: "weak", ChunkIndex: 0, Embedding: []float32{0.2, 1}},
		{ID: "2", SourceID: "s1", Content: "strong", ChunkIndex: 1, Embedding: []float32{1, 0.1}},
		{ID: "3", SourceID: "s1", Content: "medium", ChunkIndex: 2, Embedding: []float32{1, 1}},
	})

	r := NewRetriever(store)
	texts, err := r.Retrieve(context.Background(), "c1", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	want := []string{"strong", "medium", "weak"}
	if len(texts) != len(want) {
		t.Fatalf("got %d texts, want %d", len(texts), len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("texts[%d] = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestRetrieveTopKTruncation(t *testing.T) {
	store := newMemStore()
	var chunks []Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, Chunk{
			ID: NewID(), SourceID: "s1", Content: "chunk", ChunkIndex: i,
			Embedding: []float32{1, float32(i) * 0.01},
		})
	}
	seedChunks(t, store, "c1", "s1", chunks)

	r := NewRetriever(store)
	texts, err := r.Retrieve(context.Background(), "c1", []float32{1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 4 {
		t.Errorf("got %d texts, want 4", len(texts))
	}

	// k <= 0 falls back to the default.
	texts, err = r.Retrieve(context.Background(), "c1", []float32{1, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != DefaultTopK {
		t.Errorf("got %d texts, want DefaultTopK (%d)", len(texts), DefaultTopK)
	}
}

func TestRetrieveExcludesZeroMagnitude(t *testing.T) {
	store := newMemStore()
	seedChunks(t, store, "c1", "s1", []Chunk{
		{ID: "1", SourceID: "s1", Content: "unembedded", ChunkIndex: 0, Embedding: []float32{0, 0}},
		{ID: "2", SourceID: "s1", Content: "missing", ChunkIndex: 1},
		{ID: "3", SourceID: "s1", Content: "real", ChunkIndex: 2, Embedding: []float32{1, 0}},
	})

	r := NewRetriever(store)
	texts, err := r.Retrieve(context.Background(), "c1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 || texts[0] != "real" {
		t.Errorf("texts = %v, want only the embedded chunk", texts)
	}
}

func TestRetrieveStableTies(t *testing.T) {
	store := newMemStore()
	seedChunks(t, store, "c1", "s1", []Chunk{
		{ID: "1", SourceID: "s1", Content: "first", ChunkIndex: 0, Embedding: []float32{1, 0}},
		{ID: "2", SourceID: "s1", Content: "second", ChunkIndex: 1, Embedding: []float32{2, 0}},
		{ID: "3", SourceID: "s1", Content: "third", ChunkIndex: 2, Embedding: []float32{3, 0}},
	})

	r := NewRetriever(store)
	for i := 0; i < 5; i++ {
		texts, err := r.Retrieve(context.Background(), "c1", []float32{1, 0}, 3)
		if err != nil {
			t.Fatal(err)
		}
		if texts[0] != "first" || texts[1] != "second" || texts[2] != "third" {
			t.Fatalf("tied scores must keep insertion order, got %v", texts)
		}
	}
}

func TestRetrieveEmptyCampaign(t *testing.T) {
	r := NewRetriever(newMemStore())
	texts, err := r.Retrieve(context.Background(), "empty", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty campaign should not error: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("texts = %v, want none", texts)
	}
}

func TestRetrieveScoredScores(t *testing.T) {
	store := newMemStore()
	seedChunks(t, store, "c1", "s1", []Chunk{
		{ID: "1", SourceID: "s1", Content: "exact", ChunkIndex: 0, Embedding: []float32{3, 0}},
	})

	r := NewRetriever(store)
	scored, err := r.RetrieveScored(context.Background(), "c1", []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Fatalf("got %d results", len(scored))
	}
	if math.Abs(scored[0].Score-1) > 1e-9 {
		t.Errorf("self-direction score = %f, want 1", scored[0].Score)
	}
}
