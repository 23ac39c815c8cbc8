package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns fixed buffers and calls OnRead after every read.
type fakeSource struct {
	mu      sync.Mutex
	reads   int
	Buffer  []int16
	Err     error
	OnRead  func(n int)
	started bool
}

func (f *fakeSource) Start(context.Context) error { f.started = true; return nil }
func (f *fakeSource) Stop() error                 { f.started = false; return nil }

func (f *fakeSource) Read(ctx context.Context) ([]int16, error) {
	f.mu.Lock()
	f.reads++
	n := f.reads
	f.mu.Unlock()

	if f.OnRead != nil {
		defer f.OnRead(n)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]int16, len(f.Buffer))
	copy(out, f.Buffer)
	return out, nil
}

func TestSession_StartStop(t *testing.T) {
	s := NewSession(SessionConfig{}, zerolog.Nop())
	assert.False(t, s.Recording())

	require.NoError(t, s.Start())
	assert.True(t, s.Recording())
	assert.False(t, s.StartedAt().IsZero())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRecording)

	s.Stop()
	s.Stop()
	assert.False(t, s.Recording())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestSession_RunDispatchesChunks(t *testing.T) {
	s := NewSession(SessionConfig{SampleRate: 10, ChunkSeconds: 1, SilenceThreshold: 300}, zerolog.Nop())
	src := &fakeSource{Buffer: []int16{0, 500, -20, 0, 1}}
	src.OnRead = func(n int) {
		if n == 6 {
			s.Stop()
		}
	}

	var mu sync.Mutex
	var got []Chunk
	err := s.Run(context.Background(), src, func(ctx context.Context, c Chunk) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	})

	require.NoError(t, err)
	assert.False(t, s.Recording())
	assert.Equal(t, 3, s.ChunkCount())
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Len(t, c.Samples, 10)
		assert.Equal(t, 500, c.Peak)
		assert.False(t, c.Quiet)
		assert.Equal(t, 10, c.SampleRate)
	}
}

func TestSession_QuietChunksStillDelivered(t *testing.T) {
	s := NewSession(SessionConfig{SampleRate: 4, ChunkSeconds: 1, SilenceThreshold: 300}, zerolog.Nop())
	src := &fakeSource{Buffer: []int16{1, -2, 3, 0}}
	src.OnRead = func(n int) {
		if n == 1 {
			s.Stop()
		}
	}

	var quiet []bool
	var mu sync.Mutex
	require.NoError(t, s.Run(context.Background(), src, func(ctx context.Context, c Chunk) {
		mu.Lock()
		quiet = append(quiet, c.Quiet)
		mu.Unlock()
	}))
	assert.Equal(t, []bool{true}, quiet)
}

func TestSession_RunWaitsForHandlers(t *testing.T) {
	s := NewSession(SessionConfig{SampleRate: 2, ChunkSeconds: 1}, zerolog.Nop())
	src := &fakeSource{Buffer: []int16{900, 900}}
	src.OnRead = func(n int) {
		if n == 2 {
			s.Stop()
		}
	}

	var mu sync.Mutex
	finished := 0
	require.NoError(t, s.Run(context.Background(), src, func(ctx context.Context, c Chunk) {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		finished++
		mu.Unlock()
	}))
	assert.Equal(t, 2, finished)
}

func TestSession_EmptyChunksOnReadError(t *testing.T) {
	old := emptyChunkBackoff
	emptyChunkBackoff = time.Millisecond
	defer func() { emptyChunkBackoff = old }()

	s := NewSession(SessionConfig{SampleRate: 4, ChunkSeconds: 1}, zerolog.Nop())
	src := &fakeSource{Err: errors.New("device gone")}
	src.OnRead = func(n int) {
		if n == 7 {
			s.Stop()
		}
	}

	called := false
	require.NoError(t, s.Run(context.Background(), src, func(ctx context.Context, c Chunk) { called = true }))
	assert.False(t, called)
	assert.Equal(t, 0, s.ChunkCount())
}

func TestSession_RunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(SessionConfig{SampleRate: 4, ChunkSeconds: 1}, zerolog.Nop())
	src := &fakeSource{Buffer: []int16{1000, 1000}}
	src.OnRead = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	require.NoError(t, s.Run(ctx, src, func(ctx context.Context, c Chunk) {
		assert.NoError(t, ctx.Err(), "handlers are detached from cancellation")
	}))
	assert.False(t, s.Recording())
}

func TestRecordUntil(t *testing.T) {
	stop := make(chan struct{})
	src := &fakeSource{Buffer: []int16{1, 2}}
	src.OnRead = func(n int) {
		if n == 3 {
			close(stop)
		}
	}

	samples, err := RecordUntil(context.Background(), src, stop)
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 1, 2, 1, 2}, samples)
}

func TestCheckMicrophone(t *testing.T) {
	tests := []struct {
		name    string
		buffer  []int16
		healthy bool
	}{
		{"loud", []int16{0, 1500, -200, 0}, true},
		{"quiet", []int16{0, 999, -1000, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CheckMicrophone(context.Background(), &fakeSource{Buffer: tt.buffer}, time.Second, 8)
			require.NoError(t, err)
			assert.Equal(t, tt.healthy, res.Healthy)
			assert.Equal(t, 8, res.Samples)
		})
	}

	_, err := CheckMicrophone(context.Background(), &fakeSource{Err: ErrMicrophoneUnavailable}, time.Second, 8)
	assert.ErrorIs(t, err, ErrMicrophoneUnavailable)
}
