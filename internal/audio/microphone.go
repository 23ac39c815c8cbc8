//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Microphone reads the default input device through portaudio.
type Microphone struct {
	sampleRate      int
	framesPerBuffer int
	log             zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
}

// NewMicrophone creates a mono microphone source.
func NewMicrophone(sampleRate, framesPerBuffer int, log zerolog.Logger) *Microphone {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	return &Microphone{sampleRate: sampleRate, framesPerBuffer: framesPerBuffer, log: log}
}

func (m *Microphone) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	m.buffer = make([]int16, m.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(DefaultChannels, 0, float64(m.sampleRate), m.framesPerBuffer, m.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}
	m.stream = stream

	m.log.Info().Int("sample_rate", m.sampleRate).Int("frames_per_buffer", m.framesPerBuffer).Msg("Microphone started")
	return nil
}

func (m *Microphone) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil, fmt.Errorf("microphone not started")
	}
	// Overflow means frames were dropped; the buffer still holds valid audio.
	if err := m.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}
	out := make([]int16, len(m.buffer))
	copy(out, m.buffer)
	return out, nil
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	m.stream.Stop()
	err := m.stream.Close()
	m.stream = nil
	portaudio.Terminate()
	return err
}
