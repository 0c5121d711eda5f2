package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, name string, seed int64, n int) []int64 {
	t.Helper()
	r, err := New().SeededStream(context.Background(), name, seed)
	require.NoError(t, err)
	out := make([]int64, n)
	for i := range out {
		out[i] = r.Int63()
	}
	return out
}

func TestSeededStreamIsDeterministic(t *testing.T) {
	assert.Equal(t, draw(t, "split/label-0", 42, 8), draw(t, "split/label-0", 42, 8))
}

func TestSeededStreamNamesAreIndependent(t *testing.T) {
	assert.NotEqual(t, draw(t, "forest/tree-0", 42, 8), draw(t, "forest/tree-1", 42, 8))
	assert.NotEqual(t, draw(t, "split/label-0", 42, 8), draw(t, "split/label-1", 42, 8))
}

func TestSeededStreamSeedMatters(t *testing.T) {
	assert.NotEqual(t, draw(t, "split/label-0", 42, 8), draw(t, "split/label-0", 43, 8))
}

func TestSeededStreamHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().SeededStream(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamSeedEmptyName(t *testing.T) {
	assert.Equal(t, int64(7), StreamSeed("", 7))
}
