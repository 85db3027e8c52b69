package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/cache"
	"rag-chatbot/internal/knowledge"
	"rag-chatbot/internal/llm"
	"rag-chatbot/internal/logger"
	"rag-chatbot/internal/schema"
	"rag-chatbot/internal/session"
	"rag-chatbot/internal/stream"
)

func newHistory(t *testing.T) *session.Store {
	t.Helper()
	s, err := session.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func drain(t *testing.T, src stream.Source) []stream.Event {
	t.Helper()
	var events []stream.Event
	for src.Next() {
		events = append(events, src.Current())
	}
	return events
}

func TestRunStreamsStatusesThenTokens(t *testing.T) {
	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "what is ISO 27001?", 5).Return([]knowledge.Result{
		{Name: "policy.pdf", Chunk: 2, Content: "Information security management."},
	}, nil).Once()

	tokens := &llm.ScriptedStream{Tokens: []string{"It is ", "a standard."}}
	client := new(llm.MockClient)
	client.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
		if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
			return false
		}
		return strings.Contains(msgs[0].Content, "[1] policy.pdf (chunk 2)\nInformation security management.") &&
			msgs[1].Content == "what is ISO 27001?"
	})).Return(tokens, nil).Once()

	history := newHistory(t)
	a := New(store, client, history, nil, nil, Config{MaxResults: 5, HistoryMessages: 20}, logger.Discard())

	src, sessionID, err := a.Run(context.Background(), "what is ISO 27001?", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sessionID)

	events := drain(t, src)
	require.NoError(t, src.Err())
	require.NoError(t, src.Close())

	assert.Equal(t, []stream.Event{
		{Status: schema.StatusSearching},
		{Status: schema.StatusGenerating},
		{Content: "It is "},
		{Content: "a standard."},
	}, events)
	assert.True(t, tokens.Closed())

	saved, err := history.Recent(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "user", saved[0].Role)
	assert.Equal(t, "what is ISO 27001?", saved[0].Content)
	assert.Equal(t, "assistant", saved[1].Role)
	assert.Equal(t, "It is a standard.", saved[1].Content)

	store.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestRunGeneratesSessionID(t *testing.T) {
	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "hi", 5).Return([]knowledge.Result{}, nil)
	client := new(llm.MockClient)
	client.On("Stream", mock.Anything, mock.Anything).Return(&llm.ScriptedStream{}, nil)

	a := New(store, client, nil, nil, nil, Config{}, logger.Discard())
	_, first, err := a.Run(context.Background(), "hi", "")
	require.NoError(t, err)
	_, second, err := a.Run(context.Background(), "hi", "")
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestRunRejectsEmptyMessage(t *testing.T) {
	a := New(new(knowledge.MockStore), new(llm.MockClient), nil, nil, nil, Config{}, logger.Discard())
	_, _, err := a.Run(context.Background(), "", "s1")
	assert.Error(t, err)
}

func TestRunIncludesHistory(t *testing.T) {
	ctx := context.Background()
	history := newHistory(t)
	require.NoError(t, history.Append(ctx, "s1",
		session.Message{Role: "user", Content: "first question", CreatedAt: time.Now()},
		session.Message{Role: "assistant", Content: "first answer", CreatedAt: time.Now()},
	))

	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "follow up", 5).Return([]knowledge.Result{}, nil)
	client := new(llm.MockClient)
	client.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
		return len(msgs) == 4 &&
			msgs[1] == llm.Message{Role: llm.RoleUser, Content: "first question"} &&
			msgs[2] == llm.Message{Role: llm.RoleAssistant, Content: "first answer"} &&
			msgs[3] == llm.Message{Role: llm.RoleUser, Content: "follow up"} &&
			strings.Contains(msgs[0].Content, "No relevant excerpts")
	})).Return(&llm.ScriptedStream{Tokens: []string{"ok"}}, nil).Once()

	a := New(store, client, history, nil, nil, Config{HistoryMessages: 20}, logger.Discard())
	src, _, err := a.Run(ctx, "follow up", "s1")
	require.NoError(t, err)
	drain(t, src)
	require.NoError(t, src.Err())

	client.AssertExpectations(t)
	saved, err := history.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, saved, 4)
}

func TestRunRetrievalFailureContinuesWithoutExcerpts(t *testing.T) {
	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "hi", 5).Return(nil, errors.New("index unavailable")).Once()
	client := new(llm.MockClient)
	client.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
		return strings.Contains(msgs[0].Content, "No relevant excerpts")
	})).Return(&llm.ScriptedStream{Tokens: []string{"answer"}}, nil).Once()

	a := New(store, client, nil, nil, nil, Config{}, logger.Discard())
	src, _, err := a.Run(context.Background(), "hi", "s1")
	require.NoError(t, err)

	events := drain(t, src)
	require.NoError(t, src.Err())
	assert.Equal(t, stream.Event{Content: "answer"}, events[len(events)-1])
	client.AssertExpectations(t)
}

func TestRunModelFailure(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*llm.MockClient)
		wantEvents int
		wantErr    string
	}{
		{
			name: "stream cannot start",
			setup: func(c *llm.MockClient) {
				c.On("Stream", mock.Anything, mock.Anything).Return(nil, errors.New("model unavailable"))
			},
			wantEvents: 1,
			wantErr:    "model unavailable",
		},
		{
			name: "stream fails mid-answer",
			setup: func(c *llm.MockClient) {
				c.On("Stream", mock.Anything, mock.Anything).
					Return(&llm.ScriptedStream{Tokens: []string{"partial"}, Fail: errors.New("connection reset")}, nil)
			},
			wantEvents: 3,
			wantErr:    "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(knowledge.MockStore)
			store.On("Query", mock.Anything, mock.Anything, mock.Anything).Return([]knowledge.Result{}, nil)
			client := new(llm.MockClient)
			tt.setup(client)
			history := newHistory(t)

			a := New(store, client, history, nil, nil, Config{HistoryMessages: 20}, logger.Discard())
			src, _, err := a.Run(context.Background(), "hi", "s1")
			require.NoError(t, err)

			events := drain(t, src)
			assert.Len(t, events, tt.wantEvents)
			require.Error(t, src.Err())
			assert.Contains(t, src.Err().Error(), tt.wantErr)

			saved, err := history.Recent(context.Background(), "s1", 10)
			require.NoError(t, err)
			assert.Empty(t, saved)
		})
	}
}

func TestRunUsesRetrievalCache(t *testing.T) {
	key := cache.GenerateCacheKey("hi", 5)
	cached := &cache.Retrieval{Chunks: []cache.Chunk{{Name: "a.pdf", Index: 0, Content: "cached excerpt"}}}

	t.Run("hit skips the store", func(t *testing.T) {
		c := new(cache.MockCache)
		c.On("GetRetrieval", mock.Anything, key).Return(cached, cache.Entry{Key: key}, nil).Once()
		store := new(knowledge.MockStore)
		client := new(llm.MockClient)
		client.On("Stream", mock.Anything, mock.MatchedBy(func(msgs []llm.Message) bool {
			return strings.Contains(msgs[0].Content, "cached excerpt")
		})).Return(&llm.ScriptedStream{}, nil).Once()

		a := New(store, client, nil, c, nil, Config{MaxResults: 5, CacheTTL: time.Minute}, logger.Discard())
		src, _, err := a.Run(context.Background(), "hi", "s1")
		require.NoError(t, err)
		drain(t, src)

		store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
		c.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("miss populates the cache", func(t *testing.T) {
		results := []knowledge.Result{{Name: "a.pdf", Chunk: 0, Content: "fresh excerpt"}}
		c := new(cache.MockCache)
		entry := cache.Entry{Key: key, Generation: 3}
		c.On("GetRetrieval", mock.Anything, key).Return(nil, entry, nil).Once()
		c.On("SetRetrieval", mock.Anything, entry, mock.MatchedBy(func(r *cache.Retrieval) bool {
			return len(r.Chunks) == 1 && r.Chunks[0].Content == "fresh excerpt"
		}), time.Minute).Return(errors.New("redis down")).Once()
		store := new(knowledge.MockStore)
		store.On("Query", mock.Anything, "hi", 5).Return(results, nil).Once()
		client := new(llm.MockClient)
		client.On("Stream", mock.Anything, mock.Anything).Return(&llm.ScriptedStream{Tokens: []string{"x"}}, nil).Once()

		a := New(store, client, nil, c, nil, Config{MaxResults: 5, CacheTTL: time.Minute}, logger.Discard())
		src, _, err := a.Run(context.Background(), "hi", "s1")
		require.NoError(t, err)
		drain(t, src)
		require.NoError(t, src.Err())

		c.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("read failure skips the write", func(t *testing.T) {
		results := []knowledge.Result{{Name: "a.pdf", Chunk: 0, Content: "fresh excerpt"}}
		c := new(cache.MockCache)
		c.On("GetRetrieval", mock.Anything, key).Return(nil, cache.Entry{}, errors.New("redis down")).Once()
		store := new(knowledge.MockStore)
		store.On("Query", mock.Anything, "hi", 5).Return(results, nil).Once()
		client := new(llm.MockClient)
		client.On("Stream", mock.Anything, mock.Anything).Return(&llm.ScriptedStream{Tokens: []string{"x"}}, nil).Once()

		a := New(store, client, nil, c, nil, Config{MaxResults: 5, CacheTTL: time.Minute}, logger.Discard())
		src, _, err := a.Run(context.Background(), "hi", "s1")
		require.NoError(t, err)
		drain(t, src)
		require.NoError(t, src.Err())

		c.AssertNotCalled(t, "SetRetrieval", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})
}

func TestRunCanceledDuringRetrieval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "hi", 5).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()
	client := new(llm.MockClient)

	a := New(store, client, nil, nil, nil, Config{}, logger.Discard())
	src, _, err := a.Run(ctx, "hi", "s1")
	require.NoError(t, err)

	events := drain(t, src)
	assert.Len(t, events, 1)
	assert.ErrorIs(t, src.Err(), context.Canceled)
	client.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestRunWithStubClientThroughPump(t *testing.T) {
	store := new(knowledge.MockStore)
	store.On("Query", mock.Anything, "what does it cover?", 5).Return([]knowledge.Result{
		{Name: "sample.pdf", Chunk: 0, Content: "Information security controls for suppliers."},
	}, nil)

	a := New(store, llm.NewStubClient(), nil, nil, nil, Config{}, logger.Discard())
	src, _, err := a.Run(context.Background(), "what does it cover?", "")
	require.NoError(t, err)

	var answer strings.Builder
	var statuses []schema.Status
	for src.Next() {
		ev := src.Current()
		if ev.Status != "" {
			statuses = append(statuses, ev.Status)
		}
		answer.WriteString(ev.Content)
	}
	require.NoError(t, src.Err())

	assert.Equal(t, []schema.Status{schema.StatusSearching, schema.StatusGenerating}, statuses)
	assert.Contains(t, answer.String(), "Information security controls for suppliers.")
}
