package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Stream(ctx context.Context, messages []Message) (TokenStream, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(TokenStream), args.Error(1)
}

// ScriptedStream yields Tokens and then ends, failing with Fail when set.
type ScriptedStream struct {
	Tokens []string
	Fail   error
	pos    int
	closed bool
}

func (f *ScriptedStream) Next() bool {
	if f.closed || f.pos >= len(f.Tokens) {
		return false
	}
	f.pos++
	return true
}

func (f *ScriptedStream) Token() string {
	if f.pos == 0 {
		return ""
	}
	return f.Tokens[f.pos-1]
}

func (f *ScriptedStream) Err() error {
	if f.pos >= len(f.Tokens) {
		return f.Fail
	}
	return nil
}

func (f *ScriptedStream) Close() error {
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *ScriptedStream) Closed() bool { return f.closed }
