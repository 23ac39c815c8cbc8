// Package batch transcribes every audio file in a folder through the job queue.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/dvloznov/expense-voice/internal/jobs"
	"github.com/dvloznov/expense-voice/internal/jobs/inmemory"
	"github.com/dvloznov/expense-voice/internal/stt"
	"github.com/dvloznov/expense-voice/internal/transcripts"
)

// SupportedExtensions are the audio formats picked up from a folder.
var SupportedExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".aiff"}

// Transcriber turns a clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip stt.Audio) (string, error)
}

// Config controls concurrency and progress output.
type Config struct {
	Workers int
	// MaxRetries per file on top of the provider's own retries.
	MaxRetries int
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// Result is the outcome of one batch.
type Result struct {
	BatchID string
	Entries []transcripts.ReportEntry
	Failed  int
}

// Runner transcribes folders.
type Runner struct {
	tr  Transcriber
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(tr Transcriber, cfg Config, log zerolog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{tr: tr, cfg: cfg, log: log, now: time.Now}
}

// ScanFolder lists supported audio files in dir, sorted by name.
func ScanFolder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isSupported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Run transcribes every supported file in dir. A failing file is reported
// with its error text and does not abort the batch.
func (r *Runner) Run(ctx context.Context, dir string) (*Result, error) {
	files, err := ScanFolder(dir)
	if err != nil {
		return nil, err
	}

	res := &Result{BatchID: uuid.New().String(), Entries: make([]transcripts.ReportEntry, len(files))}
	if len(files) == 0 {
		r.log.Warn().Str("folder", dir).Msg("No audio files found")
		return res, nil
	}

	r.log.Info().Str("folder", dir).Int("files", len(files)).Int("workers", r.cfg.Workers).Msg("Starting batch transcription")

	bar := r.newProgressBar(len(files))

	store := inmemory.NewStore()
	qcfg := inmemory.DefaultQueueConfig()
	qcfg.BufferSize = len(files)
	qcfg.Workers = r.cfg.Workers
	qcfg.MaxRetries = r.cfg.MaxRetries
	qcfg.Log = r.log
	queue := inmemory.NewQueue(qcfg, store)

	var (
		mu        sync.Mutex
		remaining = len(files)
		done      = make(chan struct{})
	)
	queue.OnFinish = func(job *jobs.TranscriptionJob) {
		entry := transcripts.ReportEntry{File: filepath.Base(job.FilePath), Date: r.now(), Text: job.Transcript}
		if job.Status == jobs.JobStatusFailed {
			entry.Text = "Error: " + job.Error
			r.log.Error().Str("file", entry.File).Str("error", job.Error).Msg("Transcription failed")
		}

		mu.Lock()
		res.Entries[job.Index] = entry
		if job.Status == jobs.JobStatusFailed {
			res.Failed++
		}
		remaining--
		if remaining == 0 {
			close(done)
		}
		mu.Unlock()

		if bar != nil {
			if err := bar.Add(1); err != nil {
				r.log.Warn().Err(err).Msg("Failed to update progress bar")
			}
		}
	}

	if err := queue.Start(ctx, r.handle); err != nil {
		return nil, err
	}
	// Workers exit on ctx, so a cancelled batch does not wait for queued files.
	defer queue.Stop(ctx)

	for i, f := range files {
		job := &jobs.TranscriptionJob{BatchID: res.BatchID, FilePath: f, Index: i}
		if err := queue.Publish(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", f, err)
		}
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if bar != nil {
		_ = bar.Finish()
	}
	r.log.Info().Int("files", len(files)).Int("failed", res.Failed).Msg("Batch transcription finished")
	return res, nil
}

func (r *Runner) handle(ctx context.Context, j jobs.Job) error {
	job, ok := j.(*jobs.TranscriptionJob)
	if !ok {
		return fmt.Errorf("unexpected job type %s", j.GetType())
	}
	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	text, err := r.tr.Transcribe(ctx, stt.Audio{Data: data, Filename: filepath.Base(job.FilePath)})
	if err != nil {
		return err
	}
	job.Transcript = strings.TrimSpace(text)
	return nil
}

func (r *Runner) newProgressBar(total int) *progressbar.ProgressBar {
	if r.cfg.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.cfg.Progress),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Transcribing files..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(r.cfg.Progress)
		}),
	)
}

// WriteReport writes the result in directory order.
func (r *Runner) WriteReport(path string, res *Result) error {
	return transcripts.WriteBatchReport(path, res.Entries, r.now())
}
