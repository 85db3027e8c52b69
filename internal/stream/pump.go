package stream

import (
	"context"
	"errors"

	"rag-chatbot/internal/schema"
)

// Event is one unit produced by an answer source. Either field may be empty.
type Event struct {
	Status  schema.Status
	Content string
}

// Source is a pull-based answer generator. Next blocks until an event is
// available and returns false when the source is exhausted or failed; Err
// then reports the failure, if any.
type Source interface {
	Next() bool
	Current() Event
	Err() error
	Close() error
}

// Outcome describes how a pumped stream ended.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Pump forwards events from src to w until src is exhausted, fails, or ctx
// is canceled. A successful or failed source ends with exactly one terminal
// chunk; a canceled context ends the stream without writing. src is always
// closed. The returned error is the source or write failure, if any.
func Pump(ctx context.Context, w *Writer, src Source) (Outcome, error) {
	defer src.Close()

	for src.Next() {
		if ctx.Err() != nil {
			return OutcomeCanceled, ctx.Err()
		}
		ev := src.Current()
		if ev.Status == "" && ev.Content == "" {
			continue
		}
		if err := w.Send(schema.StreamChunk{Content: ev.Content, Status: ev.Status}); err != nil {
			return OutcomeCanceled, err
		}
	}

	if ctx.Err() != nil {
		return OutcomeCanceled, ctx.Err()
	}
	if err := src.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return OutcomeCanceled, err
		}
		if sendErr := w.Send(schema.ErrorChunk(err.Error())); sendErr != nil {
			return OutcomeCanceled, sendErr
		}
		return OutcomeError, err
	}
	if err := w.Send(schema.DoneChunk()); err != nil {
		return OutcomeCanceled, err
	}
	return OutcomeComplete, nil
}

// SliceSource replays a fixed list of events, then fails with Fail if set.
type SliceSource struct {
	Events []Event
	Fail   error

	pos    int
	closed bool
}

func (s *SliceSource) Next() bool {
	if s.closed || s.pos >= len(s.Events) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Current() Event {
	if s.pos == 0 {
		return Event{}
	}
	return s.Events[s.pos-1]
}

func (s *SliceSource) Err() error {
	if s.pos >= len(s.Events) {
		return s.Fail
	}
	return nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceSource) Closed() bool { return s.closed }
