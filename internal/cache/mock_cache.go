package cache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockCache is a mock implementation of the Cache interface for testing
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetRetrieval(ctx context.Context, key string) (*Retrieval, Entry, error) {
	args := m.Called(ctx, key)
	entry, _ := args.Get(1).(Entry)
	if args.Get(0) == nil {
		return nil, entry, args.Error(2)
	}
	return args.Get(0).(*Retrieval), entry, args.Error(2)
}

func (m *MockCache) SetRetrieval(ctx context.Context, entry Entry, result *Retrieval, ttl time.Duration) error {
	args := m.Called(ctx, entry, result, ttl)
	return args.Error(0)
}

func (m *MockCache) InvalidateDocument(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
