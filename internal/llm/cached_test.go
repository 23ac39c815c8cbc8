package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-voice/internal/cache"
)

type countingGenerator struct {
	out   string
	err   error
	calls int
}

func (g *countingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return g.out + ":" + prompt, g.err
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}
func (brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Close() error { return nil }

func TestCachedGenerator(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()
	next := &countingGenerator{out: "resp"}
	g := NewCachedGenerator(next, store, "m1", time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := g.Generate(ctx, "a")
	require.NoError(t, err)
	second, err := g.Generate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)

	_, err = g.Generate(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	other := NewCachedGenerator(next, store, "m2", time.Minute, zerolog.Nop())
	_, err = other.Generate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls, "model is part of the key")
}

func TestCachedGenerator_ErrorsNotCached(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()
	next := &countingGenerator{err: errors.New("quota")}
	g := NewCachedGenerator(next, store, "m", time.Minute, zerolog.Nop())

	_, err := g.Generate(context.Background(), "a")
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestCachedGenerator_BrokenStore(t *testing.T) {
	next := &countingGenerator{out: "resp"}
	g := NewCachedGenerator(next, brokenStore{}, "m", time.Minute, zerolog.Nop())

	out, err := g.Generate(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "resp:a", out)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("m", "p"), cacheKey("m", "p"))
	assert.NotEqual(t, cacheKey("m", "p"), cacheKey("mp", ""))
}

type emptyGenerator struct{ calls int }

func (g *emptyGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	return "", nil
}

func TestCachedGenerator_EmptyNotCached(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	defer store.Close()
	next := &emptyGenerator{}
	g := NewCachedGenerator(next, store, "m", time.Minute, zerolog.Nop())

	out, err := g.Generate(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, store.Len())

	_, _ = g.Generate(context.Background(), "a")
	assert.Equal(t, 2, next.calls)
}
