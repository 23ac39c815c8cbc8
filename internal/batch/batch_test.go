package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-voice/internal/stt"
)

type fakeTranscriber struct {
	calls atomic.Int32
	fn    func(clip stt.Audio) (string, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip stt.Audio) (string, error) {
	f.calls.Add(1)
	return f.fn(clip)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("data-"+n), 0o644))
	}
}

func TestScanFolder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.mp3", "a.WAV", "notes.txt", "c.flac", "d.aiff", "e.m4a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755))

	files, err := ScanFolder(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.WAV", "b.mp3", "c.flac", "d.aiff", "e.m4a"}, names)
}

func TestScanFolder_Missing(t *testing.T) {
	_, err := ScanFolder(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "one.wav", "two.mp3", "three.flac")

	tr := &fakeTranscriber{fn: func(clip stt.Audio) (string, error) {
		if clip.Filename == "two.mp3" {
			return "", errors.New("unsupported")
		}
		return " text " + string(clip.Data) + " ", nil
	}}
	var progress bytes.Buffer
	r := NewRunner(tr, Config{Workers: 2, Progress: &progress}, zerolog.Nop())

	res, err := r.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, res.Entries, 3)
	assert.Equal(t, "one.wav", res.Entries[0].File)
	assert.Equal(t, "text data-one.wav", res.Entries[0].Text)
	assert.Equal(t, "three.flac", res.Entries[1].File)
	assert.Equal(t, "two.mp3", res.Entries[2].File)
	assert.Equal(t, "Error: unsupported", res.Entries[2].Text)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int32(3), tr.calls.Load())
	assert.NotEmpty(t, progress.String())

	report := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, r.WriteReport(report, res))
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, "Batch Transcription Report\n"))
	assert.Less(t, strings.Index(out, "File: one.wav"), strings.Index(out, "File: three.flac"))
	assert.Less(t, strings.Index(out, "File: three.flac"), strings.Index(out, "File: two.mp3"))
}

func TestRunner_Run_EmptyFolder(t *testing.T) {
	r := NewRunner(&fakeTranscriber{}, Config{}, zerolog.Nop())
	res, err := r.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
}

func TestRunner_Run_MissingFolder(t *testing.T) {
	r := NewRunner(&fakeTranscriber{}, Config{}, zerolog.Nop())
	_, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

// blockingTranscriber waits for ctx on every call.
type blockingTranscriber struct {
	started chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, clip stt.Audio) (string, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunner_Run_CancelledLeavesNoGoroutines(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "one.wav", "two.wav", "three.wav")
	baseline := runtime.NumGoroutine()

	tr := &blockingTranscriber{started: make(chan struct{}, 1)}
	r := NewRunner(tr, Config{Workers: 1}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, dir)
		errCh <- err
	}()

	<-tr.started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Files still queued at cancel time must not leave anything parked.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond)
}
