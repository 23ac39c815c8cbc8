package stt

import (
	"errors"
	"fmt"

	"github.com/dvloznov/expense-voice/internal/retry"
)

// ErrAllProvidersFailed is returned by Chain when no provider produced a transcript.
var ErrAllProvidersFailed = errors.New("all speech-to-text providers failed")

// ProviderError is a non-2xx response from a provider's HTTP API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *ProviderError) Retryable() bool {
	return retry.IsRetryableHTTPStatus(e.StatusCode)
}
