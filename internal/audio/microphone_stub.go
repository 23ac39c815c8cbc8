//go:build !portaudio

package audio

import (
	"context"

	"github.com/rs/zerolog"
)

// Microphone stub when portaudio is not available.
type Microphone struct{}

func NewMicrophone(sampleRate, framesPerBuffer int, log zerolog.Logger) *Microphone {
	return &Microphone{}
}

func (m *Microphone) Start(_ context.Context) error {
	return ErrMicrophoneUnavailable
}

func (m *Microphone) Read(_ context.Context) ([]int16, error) {
	return nil, ErrMicrophoneUnavailable
}

func (m *Microphone) Stop() error {
	return nil
}
