// Package chunker splits document text into overlapping word windows that are
// embedded and stored individually.
package chunker

import (
	"strings"
)

const (
	DefaultMaxTokens = 400
	DefaultOverlap   = 80
)

// Options controls how text is chunked.
type Options struct {
	MaxTokens int
	Overlap   int
}

// Chunk represents a slice of the document text.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

func (o Options) normalized() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.MaxTokens {
		o.Overlap = 0
	}
	return o
}

// ChunkText performs a word-based sliding window with overlap.
// Tokens are approximated by whitespace-delimited words.
func ChunkText(text string, opts Options) []Chunk {
	opts = opts.normalized()

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := opts.MaxTokens - opts.Overlap
	chunks := make([]Chunk, 0, len(words)/step+1)
	for start := 0; start < len(words); start += step {
		end := min(start+opts.MaxTokens, len(words))
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(words[start:end], " "),
			TokenCount: end - start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}
