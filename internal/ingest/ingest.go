// Package ingest puts extracted document text into the knowledge store,
// replacing any earlier document with the same name.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/internal/queue"
)

// ErrStore reports that the knowledge store rejected a document.
var ErrStore = errors.New("knowledge store failure")

// StoreError wraps the store failure behind an ingestion attempt.
type StoreError struct {
	Name string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storing %q: %v", e.Name, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

const (
	enqueueAttempts = 3
	enqueueBackoff  = 200 * time.Millisecond
)

// Coordinator ingests documents. q and m may be nil.
type Coordinator struct {
	store   knowledge.Store
	queue   queue.Queue
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(store knowledge.Store, q queue.Queue, m *metrics.Metrics, log *slog.Logger) *Coordinator {
	return &Coordinator{store: store, queue: q, metrics: m, log: log.With("component", "ingest")}
}

// Ingest stores content under name. Blank content is skipped without
// touching the store. Chunks previously stored under name are removed
// first; a removal failure is logged and ingestion continues. Concurrent
// ingests of the same name are not serialized.
func (c *Coordinator) Ingest(ctx context.Context, content, name string, metadata map[string]string) error {
	log := c.log.With("name", name)
	if strings.TrimSpace(content) == "" {
		log.Warn("skipping document with no text content")
		return nil
	}
	start := time.Now()

	replaced, err := c.store.RemoveByName(ctx, name)
	if err != nil {
		log.Warn("failed to remove previous version", "err", err)
	} else if replaced {
		log.Info("replacing previous version")
	}

	chunks, err := c.store.Add(ctx, name, content, cleanMetadata(metadata))
	if err != nil {
		log.Error("failed to add document", "err", err)
		return &StoreError{Name: name, Err: err}
	}

	c.invalidate(ctx, name)
	if c.metrics != nil {
		c.metrics.RecordIngest(chunks, replaced, time.Since(start))
	}
	log.Info("document ingested", "chunks", chunks, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// invalidate schedules removal of cached retrievals that predate name's
// new content.
func (c *Coordinator) invalidate(ctx context.Context, name string) {
	if c.queue == nil {
		return
	}
	task, err := queue.NewInvalidateTask(name)
	if err != nil {
		c.log.Warn("failed to build invalidation task", "name", name, "err", err)
		return
	}
	if err := queue.EnqueueWithRetry(ctx, c.queue, task, enqueueAttempts, enqueueBackoff); err != nil {
		c.log.Warn("failed to enqueue cache invalidation", "name", name, "err", err)
	}
}

// cleanMetadata drops entries with an empty key or value.
func cleanMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
