// Package stream frames chat answers as Server-Sent Events.
//
// Every event is a single line "data: <json>" followed by a blank line, where
// the JSON is one schema.StreamChunk. A stream ends with exactly one chunk
// whose done flag is set; an error chunk is such a terminal chunk.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"rag-chatbot/internal/schema"
)

// ContentType is the media type of an event stream response.
const ContentType = "text/event-stream"

var (
	// ErrClosed is returned by Send once a terminal chunk has been written.
	ErrClosed = errors.New("stream: already terminated")
	// ErrNoFlush is returned when the response writer cannot flush.
	ErrNoFlush = errors.New("stream: response writer does not support flushing")
)

// Writer serializes chunks onto an HTTP response.
type Writer struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	f      http.Flusher
	closed bool
}

// NewWriter writes the event-stream headers and a 200 status.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNoFlush
	}
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, f: f}, nil
}

// Send writes one chunk and flushes it to the client.
func (s *Writer) Send(c schema.StreamChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	frame, err := Encode(c)
	if err != nil {
		return err
	}
	if c.Terminal() {
		s.closed = true
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.f.Flush()
	return nil
}

// Closed reports whether a terminal chunk was sent.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Encode returns the complete SSE frame for c.
func Encode(c schema.StreamChunk) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	var b bytes.Buffer
	b.Grow(len(body) + 8)
	b.WriteString("data: ")
	b.Write(body)
	b.WriteString("\n\n")
	return b.Bytes(), nil
}
