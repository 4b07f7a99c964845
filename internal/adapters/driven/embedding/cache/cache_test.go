package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	model  string
	calls  int
	inputs []string
	err    error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.inputs = append(e.inputs, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.inputs = append(e.inputs, texts...)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int              { return 1 }
func (e *countingEmbedder) ModelName() string            { return e.model }
func (e *countingEmbedder) Ping(_ context.Context) error { return nil }
func (e *countingEmbedder) Close() error                 { return nil }

func TestEmbed_CachesByText(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	s, err := New(inner, 10)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := s.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := s.Embed(ctx, "hello")
	require.NoError(t, err)
	_, err = s.Embed(ctx, "world!")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, s.Len())
}

func TestEmbed_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{model: "m", err: errors.New("rate limited")}
	s, err := New(inner, 10)
	require.NoError(t, err)

	_, err = s.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Zero(t, s.Len())

	inner.err = nil
	_, err = s.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestEmbedBatch_OnlyMissing(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	s, err := New(inner, 10)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Embed(ctx, "a")
	require.NoError(t, err)
	inner.inputs = nil

	vectors, err := s.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.Equal(t, []string{"bb", "ccc"}, inner.inputs)

	inner.inputs = nil
	_, err = s.EmbedBatch(ctx, []string{"ccc", "a"})
	require.NoError(t, err)
	assert.Empty(t, inner.inputs)
}

func TestEviction(t *testing.T) {
	inner := &countingEmbedder{model: "m"}
	s, err := New(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "a"} {
		_, err := s.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, inner.calls, "a was evicted by c")
	assert.Equal(t, 2, s.Len())
}

func TestKey_IncludesModel(t *testing.T) {
	a, err := New(&countingEmbedder{model: "ada"}, 1)
	require.NoError(t, err)
	b, err := New(&countingEmbedder{model: "small"}, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a.key("same"), b.key("same"))
	assert.Len(t, a.key("same"), 64)
}

func TestPassthrough(t *testing.T) {
	s, err := New(&countingEmbedder{model: "m"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "m", s.ModelName())
	assert.Equal(t, 1, s.Dimensions())
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}
