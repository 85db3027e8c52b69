// Package agent answers chat messages from the knowledge base: it loads the
// session's recent history, retrieves relevant chunks, and streams the
// model's reply while reporting progress as status events.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rag-chatbot/internal/cache"
	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/llm"
	"rag-chatbot/internal/metrics"
	"rag-chatbot/internal/schema"
	"rag-chatbot/internal/session"
	"rag-chatbot/internal/stream"
)

// History is the conversation store consulted and updated on every turn.
type History interface {
	Recent(ctx context.Context, sessionID string, n int) ([]session.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...session.Message) error
}

// Config tunes retrieval and history.
type Config struct {
	MaxResults      int
	HistoryMessages int
	CacheTTL        time.Duration
}

// Agent runs retrieval-augmented chat turns. It is safe for concurrent use.
type Agent struct {
	store   knowledge.Store
	client  llm.Client
	history History
	cache   cache.Cache
	metrics *metrics.Metrics
	cfg     Config
	log     *slog.Logger
}

// New builds an Agent. c and m may be nil.
func New(store knowledge.Store, client llm.Client, history History, c cache.Cache, m *metrics.Metrics, cfg Config, log *slog.Logger) *Agent {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Agent{
		store:   store,
		client:  client,
		history: history,
		cache:   c,
		metrics: m,
		cfg:     cfg,
		log:     log.With("component", "agent"),
	}
}

// Run starts answering message within sessionID, generating a session id
// when empty. Work happens as the returned source is consumed; canceling
// ctx aborts retrieval and generation.
func (a *Agent) Run(ctx context.Context, message, sessionID string) (stream.Source, string, error) {
	if message == "" {
		return nil, "", fmt.Errorf("message required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &run{
		agent:     a,
		ctx:       ctx,
		message:   message,
		sessionID: sessionID,
		log:       a.log.With("session_id", sessionID),
	}, sessionID, nil
}

// retrieve returns the chunks most relevant to question, consulting the
// cache first. Cache failures degrade to a miss.
func (a *Agent) retrieve(ctx context.Context, question string) ([]knowledge.Result, error) {
	key := cache.GenerateCacheKey(question, a.cfg.MaxResults)
	cached, entry, cacheErr := a.cache.GetRetrieval(ctx, key)
	if cacheErr != nil {
		a.log.Warn("retrieval cache read failed", "err", cacheErr)
	}
	if a.metrics != nil {
		a.metrics.RecordCacheLookup(cached != nil)
	}
	if cached != nil {
		return fromCache(cached), nil
	}

	results, err := a.store.Query(ctx, question, a.cfg.MaxResults)
	if err != nil {
		return nil, err
	}
	if a.cfg.CacheTTL > 0 && cacheErr == nil {
		if err := a.cache.SetRetrieval(ctx, entry, toCache(results), a.cfg.CacheTTL); err != nil {
			a.log.Warn("retrieval cache write failed", "err", err)
		}
	}
	return results, nil
}

func (a *Agent) loadHistory(ctx context.Context, sessionID string) []llm.Message {
	if a.history == nil || a.cfg.HistoryMessages <= 0 {
		return nil
	}
	msgs, err := a.history.Recent(ctx, sessionID, a.cfg.HistoryMessages)
	if err != nil {
		a.log.Warn("failed to load session history", "session_id", sessionID, "err", err)
		return nil
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

func toCache(results []knowledge.Result) *cache.Retrieval {
	out := &cache.Retrieval{Chunks: make([]cache.Chunk, len(results))}
	for i, r := range results {
		out.Chunks[i] = cache.Chunk{Name: r.Name, Index: r.Chunk, Content: r.Content, Metadata: r.Metadata, Score: r.Score}
	}
	return out
}

func fromCache(c *cache.Retrieval) []knowledge.Result {
	out := make([]knowledge.Result, len(c.Chunks))
	for i, ch := range c.Chunks {
		out[i] = knowledge.Result{Name: ch.Name, Chunk: ch.Index, Content: ch.Content, Metadata: ch.Metadata, Score: ch.Score}
	}
	return out
}

type phase int

const (
	phaseStart phase = iota
	phasePrepare
	phaseTokens
	phaseDone
)

// run is the stream.Source of a single chat turn.
type run struct {
	agent     *Agent
	ctx       context.Context
	message   string
	sessionID string
	log       *slog.Logger

	phase   phase
	tokens  llm.TokenStream
	current stream.Event
	answer  []byte
	err     error
}

func (r *run) Next() bool {
	switch r.phase {
	case phaseStart:
		r.phase = phasePrepare
		r.current = stream.Event{Status: schema.StatusSearching}
		return true

	case phasePrepare:
		history := r.agent.loadHistory(r.ctx, r.sessionID)
		results, err := r.agent.retrieve(r.ctx, r.message)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.fail(r.ctx.Err())
			}
			r.log.Warn("knowledge retrieval failed; answering without excerpts", "err", err)
		}
		r.log.Debug("retrieved excerpts", "count", len(results))

		tokens, err := r.agent.client.Stream(r.ctx, buildMessages(r.message, results, history))
		if err != nil {
			return r.fail(err)
		}
		r.tokens = tokens
		r.phase = phaseTokens
		r.current = stream.Event{Status: schema.StatusGenerating}
		return true

	case phaseTokens:
		if r.tokens.Next() {
			tok := r.tokens.Token()
			r.answer = append(r.answer, tok...)
			r.current = stream.Event{Content: tok}
			return true
		}
		r.phase = phaseDone
		if err := r.tokens.Err(); err != nil {
			r.err = err
			return false
		}
		r.remember()
		return false
	}
	return false
}

func (r *run) fail(err error) bool {
	r.phase = phaseDone
	r.err = err
	return false
}

// remember appends the completed turn to the session history.
func (r *run) remember() {
	if r.agent.history == nil {
		return
	}
	now := time.Now()
	err := r.agent.history.Append(r.ctx, r.sessionID,
		session.Message{Role: string(llm.RoleUser), Content: r.message, CreatedAt: now},
		session.Message{Role: string(llm.RoleAssistant), Content: string(r.answer), CreatedAt: now},
	)
	if err != nil {
		r.log.Warn("failed to save session history", "err", err)
	}
}

func (r *run) Current() stream.Event { return r.current }

func (r *run) Err() error { return r.err }

func (r *run) Close() error {
	r.phase = phaseDone
	if r.tokens != nil {
		return r.tokens.Close()
	}
	return nil
}
