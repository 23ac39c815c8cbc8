// Package transcripts writes recorded chunks, per-chunk transcripts and the
// running conversation log to disk, optionally mirroring them to GCS.
package transcripts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/gcsuploader"
)

const (
	// CombinedFileName is the append-only conversation log.
	CombinedFileName = "full_conversation.txt"

	fileStampLayout = "20060102_150405"
	dateTimeLayout  = "2006-01-02 15:04:05"
	clockLayout     = "15:04:05"
)

var (
	sessionRule = strings.Repeat("=", 60)
	chunkRule   = strings.Repeat("-", 40)
	savedRule   = strings.Repeat("-", 50)
)

// Config controls where the archive writes.
type Config struct {
	AudioDir       string
	TranscriptsDir string
	// SaveAudio keeps each chunk's WAV next to its transcript.
	SaveAudio    bool
	ChunkSeconds int
}

// Archive is safe for use by concurrent chunk handlers.
type Archive struct {
	cfg    Config
	mirror gcsuploader.Uploader
	log    zerolog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewArchive creates the output folders. mirror may be nil.
func NewArchive(cfg Config, mirror gcsuploader.Uploader, log zerolog.Logger) (*Archive, error) {
	if cfg.TranscriptsDir == "" {
		return nil, fmt.Errorf("transcripts directory is required")
	}
	dirs := []string{cfg.TranscriptsDir}
	if cfg.SaveAudio {
		if cfg.AudioDir == "" {
			return nil, fmt.Errorf("audio directory is required when saving audio")
		}
		dirs = append(dirs, cfg.AudioDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Archive{cfg: cfg, mirror: mirror, log: log, now: time.Now}, nil
}

// CombinedPath is the location of the conversation log.
func (a *Archive) CombinedPath() string {
	return filepath.Join(a.cfg.TranscriptsDir, CombinedFileName)
}

// SaveAudioChunk writes audio_chunk_<stamp>_<nnnn>.wav. It returns "" when
// audio saving is disabled.
func (a *Archive) SaveAudioChunk(ctx context.Context, wav []byte, n int) (string, error) {
	if !a.cfg.SaveAudio {
		return "", nil
	}
	name := fmt.Sprintf("audio_chunk_%s_%04d.wav", a.now().Format(fileStampLayout), n)
	path := filepath.Join(a.cfg.AudioDir, name)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("save audio chunk %d: %w", n, err)
	}
	a.mirrorBytes(ctx, "audio/"+name, wav, "audio/wav")
	return path, nil
}

// SaveChunkTranscript writes transcript_<stamp>_<nnnn>.txt with a small header.
func (a *Archive) SaveChunkTranscript(ctx context.Context, text string, n int, at time.Time) (string, error) {
	stamp := at.Format(fileStampLayout)
	name := fmt.Sprintf("transcript_%s_%04d.txt", stamp, n)
	path := filepath.Join(a.cfg.TranscriptsDir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "Chunk #%d\n", n)
	fmt.Fprintf(&b, "Timestamp: %s\n", stamp)
	fmt.Fprintf(&b, "Duration: %ds\n", a.cfg.ChunkSeconds)
	b.WriteString(chunkRule + "\n")
	b.WriteString(text)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("save transcript %d: %w", n, err)
	}
	a.mirrorBytes(ctx, "transcripts/"+name, []byte(b.String()), "text/plain; charset=utf-8")
	return path, nil
}

// BeginSession appends the session banner to the conversation log.
func (a *Archive) BeginSession(startedAt time.Time) error {
	return a.appendCombined(fmt.Sprintf("\n%s\nNEW SESSION - %s\n%s\n\n",
		sessionRule, startedAt.Format(dateTimeLayout), sessionRule))
}

// AppendCombined adds one "[HH:MM:SS] text" line to the conversation log.
func (a *Archive) AppendCombined(text string, at time.Time) error {
	return a.appendCombined(fmt.Sprintf("[%s] %s\n", at.Format(clockLayout), text))
}

// EndSession closes the session in the conversation log and mirrors it.
func (a *Archive) EndSession(ctx context.Context) error {
	if err := a.appendCombined(fmt.Sprintf("\n%s\nSESSION ENDED - %s\n%s\n\n",
		sessionRule, a.now().Format(dateTimeLayout), sessionRule)); err != nil {
		return err
	}
	if a.mirror != nil {
		a.mu.Lock()
		data, err := os.ReadFile(a.CombinedPath())
		a.mu.Unlock()
		if err != nil {
			return fmt.Errorf("read conversation log: %w", err)
		}
		a.mirrorBytes(ctx, "transcripts/"+CombinedFileName, data, "text/plain; charset=utf-8")
	}
	return nil
}

func (a *Archive) appendCombined(s string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.CombinedPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open conversation log: %w", err)
	}
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return fmt.Errorf("append conversation log: %w", err)
	}
	return f.Close()
}

// SaveTranscription writes a one-off transcription. An empty name becomes
// transcription_<stamp>.txt inside the transcripts folder; a bare name is
// placed there too, a name with a directory is used as given.
func (a *Archive) SaveTranscription(ctx context.Context, text, name string) (string, error) {
	now := a.now()
	if name == "" {
		name = fmt.Sprintf("transcription_%s.txt", now.Format(fileStampLayout))
	}
	path := name
	if filepath.Base(name) == name {
		path = filepath.Join(a.cfg.TranscriptsDir, name)
	}

	content := fmt.Sprintf("Transcription Date: %s\n%s\n%s\n", now.Format(dateTimeLayout), savedRule, text)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save transcription: %w", err)
	}
	a.mirrorBytes(ctx, "transcripts/"+filepath.Base(path), []byte(content), "text/plain; charset=utf-8")
	return path, nil
}

// mirrorBytes uploads best-effort; failures are logged only.
func (a *Archive) mirrorBytes(ctx context.Context, object string, data []byte, contentType string) {
	if a.mirror == nil {
		return
	}
	uri, err := a.mirror.UploadBytes(ctx, object, data, contentType)
	if err != nil {
		a.log.Warn().Err(err).Str("object", object).Msg("Failed to mirror file to GCS")
		return
	}
	a.log.Debug().Str("uri", uri).Msg("Mirrored file to GCS")
}
