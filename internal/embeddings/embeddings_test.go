package embeddings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float32
	}{
		{
			name:     "identical vectors",
			a:        Vector{1, 0, 0},
			b:        Vector{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        Vector{1, 0},
			b:        Vector{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        Vector{1, 0},
			b:        Vector{-1, 0},
			expected: -1.0,
		},
		{
			name:     "empty vectors",
			a:        Vector{},
			b:        Vector{},
			expected: 0.0,
		},
		{
			name:     "different length vectors",
			a:        Vector{1, 2},
			b:        Vector{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "normalized vectors 45 degrees",
			a:        Vector{1, 0},
			b:        Vector{0.707, 0.707},
			expected: 0.707,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(result-tt.expected)) > 0.01 {
				t.Errorf("got %f, want %f", result, tt.expected)
			}
		})
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "information security policy for employees")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "What does the information security policy say?")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "banana bread recipe with walnuts")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 0.0001)
	assert.Greater(t, CosineSimilarity(a, b), CosineSimilarity(a, c))
}

func TestHashEmbedderEmptyTextIsUnitVector(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 0, 0, 0, 0, 0, 0, 0}, v)
}

func TestHashEmbedderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToChromemFunc(t *testing.T) {
	m := new(MockEmbedder)
	m.On("Embed", mock.Anything, "hello").Return(Vector{0.6, 0.8}, nil).Once()
	m.On("Embed", mock.Anything, "fail").Return(nil, errors.New("quota")).Once()

	ef := ToChromemFunc(m)
	v, err := ef(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, v)

	_, err = ef(context.Background(), "fail")
	assert.EqualError(t, err, "quota")
	m.AssertExpectations(t)
}
