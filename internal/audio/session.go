package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrAlreadyRecording is returned by Start on a running session.
var ErrAlreadyRecording = errors.New("session already recording")

// emptyChunkBackoff paces retries when the source keeps failing.
var emptyChunkBackoff = 100 * time.Millisecond

// SessionConfig controls chunked capture.
type SessionConfig struct {
	SampleRate       int
	ChunkSeconds     int
	SilenceThreshold int
	// MaxEmptyChunks is how many consecutive empty chunks trigger a warning.
	MaxEmptyChunks int
}

// DefaultSessionConfig returns the realtime defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SampleRate:       DefaultSampleRate,
		ChunkSeconds:     DefaultChunkSeconds,
		SilenceThreshold: DefaultSilenceThreshold,
		MaxEmptyChunks:   5,
	}
}

// Chunk is one fixed-length slice of a recording.
type Chunk struct {
	Number     int
	Samples    []int16
	SampleRate int
	StartedAt  time.Time
	Peak       int
	// Quiet is set when Peak is below the silence threshold. Quiet chunks
	// are still delivered.
	Quiet bool
}

// WAV encodes the chunk as a mono WAV file.
func (c Chunk) WAV() []byte {
	return EncodeWAV(c.Samples, c.SampleRate, DefaultChannels)
}

// Seconds is the chunk duration.
func (c Chunk) Seconds() float64 {
	return Duration(c.Samples, c.SampleRate, DefaultChannels)
}

// ChunkHandler processes a chunk. It runs on its own goroutine.
type ChunkHandler func(ctx context.Context, chunk Chunk)

// Session is one realtime recording. Start and Stop may be called from any
// goroutine; Run owns the capture loop.
type Session struct {
	cfg SessionConfig
	log zerolog.Logger

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	stoppedAt time.Time
	chunks    int
	done      chan struct{}
}

// NewSession creates an idle session. Zero config fields take defaults.
func NewSession(cfg SessionConfig, log zerolog.Logger) *Session {
	def := DefaultSessionConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.ChunkSeconds <= 0 {
		cfg.ChunkSeconds = def.ChunkSeconds
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = def.SilenceThreshold
	}
	if cfg.MaxEmptyChunks <= 0 {
		cfg.MaxEmptyChunks = def.MaxEmptyChunks
	}
	return &Session{cfg: cfg, log: log, done: make(chan struct{})}
}

// Start marks the session as recording.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	s.recording = true
	s.startedAt = time.Now()
	s.stoppedAt = time.Time{}
	s.chunks = 0
	s.done = make(chan struct{})
	return nil
}

// Stop ends the recording. It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	s.recording = false
	s.stoppedAt = time.Now()
	close(s.done)
}

// Recording reports whether the session is active.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// ChunkCount is the number of chunks dispatched so far.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// StartedAt is when the session was last started.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Elapsed is the recording duration so far, or the total once stopped.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	if s.recording {
		return time.Since(s.startedAt)
	}
	return s.stoppedAt.Sub(s.startedAt)
}

// Done is closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) nextChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	return s.chunks
}

// Run records fixed-length chunks from src until the session stops or ctx
// ends, and hands each non-empty chunk to handle on a new goroutine.
// The session is started if it is not already. Run waits for in-flight
// handlers before returning. Handlers keep running after ctx is cancelled.
func (s *Session) Run(ctx context.Context, src Source, handle ChunkHandler) error {
	if !s.Recording() {
		if err := s.Start(); err != nil {
			return err
		}
	}
	defer s.Stop()

	handlerCtx := context.WithoutCancel(ctx)
	done := s.Done()
	samplesPerChunk := s.cfg.SampleRate * s.cfg.ChunkSeconds

	var wg sync.WaitGroup
	defer wg.Wait()

	consecutiveEmpty := 0
	for s.active(ctx, done) {
		startedAt := time.Now()
		samples, err := readSamples(ctx, src, samplesPerChunk, done)
		if err != nil && !isStopErr(ctx, err) {
			s.log.Error().Err(err).Msg("Error reading audio chunk")
		}

		if len(samples) == 0 {
			if !s.active(ctx, done) {
				break
			}
			consecutiveEmpty++
			s.log.Debug().Int("consecutive", consecutiveEmpty).Msg("Empty chunk")
			if consecutiveEmpty >= s.cfg.MaxEmptyChunks {
				s.log.Warn().Int("consecutive", consecutiveEmpty).Msg("Too many consecutive empty chunks, check the microphone")
				consecutiveEmpty = 0
			}
			select {
			case <-ctx.Done():
			case <-done:
			case <-time.After(emptyChunkBackoff):
			}
			continue
		}
		consecutiveEmpty = 0

		peak := PeakLevel(samples)
		chunk := Chunk{
			Number:     s.nextChunk(),
			Samples:    samples,
			SampleRate: s.cfg.SampleRate,
			StartedAt:  startedAt,
			Peak:       peak,
			Quiet:      peak < s.cfg.SilenceThreshold,
		}
		if chunk.Quiet {
			s.log.Debug().Int("chunk", chunk.Number).Int("peak", peak).Msg("Quiet chunk, processing anyway")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			handle(handlerCtx, chunk)
		}()
	}
	return nil
}

func (s *Session) active(ctx context.Context, done <-chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// readSamples reads until n samples are collected, done closes, ctx ends
// or src fails. Whatever was read is returned.
func readSamples(ctx context.Context, src Source, n int, done <-chan struct{}) ([]int16, error) {
	samples := make([]int16, 0, n)
	for len(samples) < n {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		case <-done:
			return samples, nil
		default:
		}
		buf, err := src.Read(ctx)
		if err != nil {
			return samples, err
		}
		samples = append(samples, buf...)
	}
	return samples, nil
}

func isStopErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// RecordUntil reads from src until stop is closed or ctx ends and returns
// everything captured.
func RecordUntil(ctx context.Context, src Source, stop <-chan struct{}) ([]int16, error) {
	samples := make([]int16, 0, DefaultSampleRate*10)
	for {
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		case <-stop:
			return samples, nil
		default:
		}
		buf, err := src.Read(ctx)
		if err != nil {
			return samples, err
		}
		samples = append(samples, buf...)
	}
}

// MicCheck is the result of CheckMicrophone.
type MicCheck struct {
	Peak    int  `json:"peak" yaml:"peak"`
	Healthy bool `json:"healthy" yaml:"healthy"`
	Samples int  `json:"samples" yaml:"samples"`
}

// CheckMicrophone records for d and reports the peak level.
func CheckMicrophone(ctx context.Context, src Source, d time.Duration, sampleRate int) (*MicCheck, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	want := int(d.Seconds() * float64(sampleRate))
	samples, err := readSamples(ctx, src, want, nil)
	if err != nil {
		return nil, err
	}
	peak := PeakLevel(samples)
	return &MicCheck{Peak: peak, Healthy: peak > HealthyPeakLevel, Samples: len(samples)}, nil
}
