package knowledge

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Add(ctx context.Context, name, text string, metadata map[string]string) (int, error) {
	args := m.Called(ctx, name, text, metadata)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) RemoveByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Query(ctx context.Context, text string, k int) ([]Result, error) {
	args := m.Called(ctx, text, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Result), args.Error(1)
}
