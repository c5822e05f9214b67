package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	loreforge "github.com/loreforge/loreforge"
)

// chunkStore records ReplaceChunks calls. The embedded interface panics on
// any other method, which is what we want: the ingestor must only write
// chunks.
type chunkStore struct {
	loreforge.Store
	mu     sync.Mutex
	chunks map[string][]loreforge.Chunk
	err    error
}

func newChunkStore() *chunkStore {
	return &chunkStore{chunks: make(map[string][]loreforge.Chunk)}
}

func (s *chunkStore) ReplaceChunks(_ context.Context, sourceID string, chunks []loreforge.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[sourceID] = chunks
	return nil
}

// flakyEmbedder fails on chunk indexes listed in failOn (0-based call
// order) and returns a unit vector otherwise.
type flakyEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()
	if f.failOn[call] {
		return nil, fmt.Errorf("embed call %d failed", call)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *flakyEmbedder) Dimensions() int { return 3 }
func (f *flakyEmbedder) Name() string    { return "flaky" }

func testSource(text string) loreforge.Source {
	return loreforge.Source{
		ID:         loreforge.NewID(),
		CampaignID: loreforge.NewID(),
		Name:       "tome.txt",
		Text:       text,
	}
}

func TestIngestSource(t *testing.T) {
	store := newChunkStore()
	ing := New(store, &flakyEmbedder{},
		WithChunker(mustChunker(t, 100, 10)),
		WithEmbedDelay(0))

	src := testSource(strings.Repeat("x", 450))
	n, err := ing.IngestSource(context.Background(), src)
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 chunks, got %d", n)
	}
	stored := store.chunks[src.ID]
	if len(stored) != 5 {
		t.Fatalf("store holds %d chunks, want 5", len(stored))
	}
	for i, c := range stored {
		if c.SourceID != src.ID {
			t.Errorf("chunk %d has source %q, want %q", i, c.SourceID, src.ID)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if len(c.Embedding) != 3 {
			t.Errorf("chunk %d missing embedding", i)
		}
	}
}

func TestIngestSourceSkipsFailedChunks(t *testing.T) {
	store := newChunkStore()
	emb := &flakyEmbedder{failOn: map[int]bool{1: true, 3: true}}
	ing := New(store, emb,
		WithChunker(mustChunker(t, 100, 10)),
		WithEmbedDelay(0))

	src := testSource(strings.Repeat("x", 450))
	n, err := ing.IngestSource(context.Background(), src)
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 surviving chunks, got %d", n)
	}
	for _, c := range store.chunks[src.ID] {
		if c.ChunkIndex == 1 || c.ChunkIndex == 3 {
			t.Errorf("failed chunk %d was persisted", c.ChunkIndex)
		}
	}
}

func TestIngestSourceAllChunksFail(t *testing.T) {
	emb := &flakyEmbedder{failOn: map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true}}
	ing := New(newChunkStore(), emb,
		WithChunker(mustChunker(t, 100, 10)),
		WithEmbedDelay(0))

	if _, err := ing.IngestSource(context.Background(), testSource(strings.Repeat("x", 450))); err == nil {
		t.Error("expected error when every chunk fails to embed")
	}
}

func TestIngestSourceEmptyText(t *testing.T) {
	ing := New(newChunkStore(), &flakyEmbedder{}, WithEmbedDelay(0))
	n, err := ing.IngestSource(context.Background(), testSource(""))
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if n != 0 {
		t.Errorf("empty text should yield 0 chunks, got %d", n)
	}
}

func TestQueueIngestsInBackground(t *testing.T) {
	store := newChunkStore()
	ing := New(store, &flakyEmbedder{},
		WithChunker(mustChunker(t, 100, 10)),
		WithEmbedDelay(0))
	q := NewQueue(ing, QueueWorkers(1))

	src := testSource(strings.Repeat("x", 250))
	if !q.Enqueue(src) {
		t.Fatal("Enqueue rejected with empty queue")
	}
	q.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.chunks[src.ID]) == 0 {
		t.Error("queued source was not ingested before Close returned")
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	ing := &blockingIngestor{release: block, started: make(chan struct{})}
	q := NewQueue(ing, QueueWorkers(1), QueueBuffer(1))
	defer func() {
		close(block)
		q.Close()
	}()

	// First job occupies the worker, second fills the buffer.
	q.Enqueue(testSource("a"))
	<-ing.started
	q.Enqueue(testSource("b"))

	deadline := time.After(time.Second)
	for {
		if !q.Enqueue(testSource("c")) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("full queue kept accepting sources")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	q := NewQueue(New(newChunkStore(), &flakyEmbedder{}, WithEmbedDelay(0)))
	q.Close()
	if q.Enqueue(testSource("x")) {
		t.Error("Enqueue should report false after Close")
	}
}

func TestQueueEnqueueDuringClose(t *testing.T) {
	// Enqueues racing Close must report false, never panic on a closed
	// channel.
	for i := 0; i < 50; i++ {
		q := NewQueue(New(newChunkStore(), &flakyEmbedder{}, WithEmbedDelay(0)),
			QueueWorkers(1), QueueBuffer(4))

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					q.Enqueue(testSource("x"))
				}
			}()
		}
		q.Close()
		wg.Wait()
	}
}

type blockingIngestor struct {
	release   chan struct{}
	started   chan struct{}
	startOnce sync.Once
}

func (b *blockingIngestor) IngestSource(context.Context, loreforge.Source) (int, error) {
	b.startOnce.Do(func() {
		if b.started != nil {
			close(b.started)
		}
	})
	<-b.release
	return 0, nil
}

func mustChunker(t *testing.T, size, overlap int) *WindowChunker {
	t.Helper()
	c, err := NewWindowChunker(WithChunkSize(size), WithChunkOverlap(overlap))
	if err != nil {
		t.Fatalf("NewWindowChunker: %v", err)
	}
	return c
}
