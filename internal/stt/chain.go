package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Provider is a named transcriber.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, clip Audio) (string, error)
}

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	log       zerolog.Logger
}

// NewChain creates a Chain. Order matters: the first provider is preferred.
func NewChain(log zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, log: log}
}

// Len returns the number of configured providers.
func (c *Chain) Len() int { return len(c.providers) }

// Transcribe returns the first successful transcript. An empty transcript
// counts as success. When every provider fails the error wraps
// ErrAllProvidersFailed and each cause.
func (c *Chain) Transcribe(ctx context.Context, clip Audio) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}

	errs := []error{ErrAllProvidersFailed}
	for _, p := range c.providers {
		text, err := p.Transcribe(ctx, clip)
		if err == nil {
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.log.Warn().Err(err).Str("provider", p.Name()).Msg("Provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", errors.Join(errs...)
}
