// Package ingest turns uploaded source material into embedded chunks:
// extract text from the raw upload, split it into overlapping windows, embed
// each window, and persist the result. A bounded Queue runs ingestion in the
// background so uploads return immediately.
package ingest

import "fmt"

// Chunker splits text into chunks suitable for embedding.
type Chunker interface {
	Chunk(text string) []string
}

// Default window geometry, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// ChunkerOption configures a WindowChunker.
type ChunkerOption func(*WindowChunker)

// WithChunkSize sets the window size in runes.
func WithChunkSize(n int) ChunkerOption {
	return func(c *WindowChunker) { c.size = n }
}

// WithChunkOverlap sets how many runes consecutive windows share.
func WithChunkOverlap(n int) ChunkerOption {
	return func(c *WindowChunker) { c.overlap = n }
}

// WindowChunker splits text into fixed-size overlapping windows. The split
// is purely positional, so the same text and geometry always produce the
// same chunks.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a WindowChunker. The geometry is validated once
// here: size must be positive and overlap must be non-negative and smaller
// than size, otherwise the window could never advance.
func NewWindowChunker(opts ...ChunkerOption) (*WindowChunker, error) {
	c := &WindowChunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, o := range opts {
		o(c)
	}
	if c.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", c.size)
	}
	if c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, size %d)", c.overlap, c.size)
	}
	return c, nil
}

// Chunk splits text into windows of the configured size, each starting
// size−overlap runes after the previous one. Windows are rune-indexed so a
// multi-byte character never straddles a boundary. The final window may be
// shorter; no text is dropped. Empty input yields nil.
func (c *WindowChunker) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

var _ Chunker = (*WindowChunker)(nil)
