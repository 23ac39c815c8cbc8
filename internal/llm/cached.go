package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/cache"
)

// Generator is anything that turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CachedGenerator serves repeated prompts from a cache.
// Cache failures are logged and never fail the call.
type CachedGenerator struct {
	next  Generator
	store cache.Store
	model string
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedGenerator wraps next. model is part of the cache key.
func NewCachedGenerator(next Generator, store cache.Store, model string, ttl time.Duration, log zerolog.Logger) *CachedGenerator {
	return &CachedGenerator{next: next, store: store, model: model, ttl: ttl, log: log}
}

func (g *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(g.model, prompt)

	if val, ok, err := g.store.Get(ctx, key); err != nil {
		g.log.Warn().Err(err).Msg("Cache read failed")
	} else if ok {
		g.log.Debug().Str("key", key).Msg("Cache hit")
		return val, nil
	}

	out, err := g.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	if out == "" {
		return out, nil
	}
	if err := g.store.Set(ctx, key, out, g.ttl); err != nil {
		g.log.Warn().Err(err).Msg("Cache write failed")
	}
	return out, nil
}

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "llm:" + hex.EncodeToString(sum[:])
}
