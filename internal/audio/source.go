package audio

import (
	"context"
	"errors"
)

// ErrMicrophoneUnavailable is returned when the binary was built without portaudio.
var ErrMicrophoneUnavailable = errors.New("microphone not available: rebuild with -tags portaudio")

// Source produces 16-bit PCM frames.
type Source interface {
	Start(ctx context.Context) error
	// Read blocks until one buffer of samples is available.
	Read(ctx context.Context) ([]int16, error)
	Stop() error
}
