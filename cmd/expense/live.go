package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/audio"
	"github.com/dvloznov/expense-voice/internal/stt"
	"github.com/dvloznov/expense-voice/internal/transcripts"
)

func liveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Transcribe the microphone in fixed-length chunks until Enter is pressed",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	cmd.Flags().Bool("classify", false, "classify each chunk into expenses")
	cmd.Flags().Int("chunk-seconds", 0, "chunk length in seconds (default: audio.chunk_seconds)")
	return cmd
}

// liveRecorder handles the chunks of one live session.
type liveRecorder struct {
	app      *app.App
	archive  *transcripts.Archive
	classify bool
	out      io.Writer

	mu          sync.Mutex
	transcribed int
	failed      int
}

func runLive(cmd *cobra.Command, _ []string) error {
	classify, _ := cmd.Flags().GetBool("classify")
	chunkSeconds, _ := cmd.Flags().GetInt("chunk-seconds")
	if chunkSeconds <= 0 {
		chunkSeconds = cfg.Audio.ChunkSeconds
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, app.Options{RequireLLM: classify, Persist: classify})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Transcriber.Len() == 0 {
		return fmt.Errorf("no speech-to-text provider configured")
	}

	archive, err := a.NewArchive()
	if err != nil {
		return err
	}

	mic := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, log)
	if err := mic.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mic.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop microphone")
		}
	}()

	session := audio.NewSession(audio.SessionConfig{
		SampleRate:       cfg.Audio.SampleRate,
		ChunkSeconds:     chunkSeconds,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
	}, log)
	if err := session.Start(); err != nil {
		return err
	}
	if err := archive.BeginSession(session.StartedAt()); err != nil {
		return err
	}

	rec := &liveRecorder{app: a, archive: archive, classify: classify, out: cmd.OutOrStdout()}

	fmt.Fprintf(cmd.ErrOrStderr(), "Live transcription started (%ds chunks). Press Enter to stop.\n", chunkSeconds)
	go func() {
		select {
		case <-waitForEnter(ctx, cmd.InOrStdin()):
			session.Stop()
		case <-session.Done():
		}
	}()

	runErr := session.Run(ctx, mic, rec.handle)

	if err := archive.EndSession(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Msg("Failed to close session log")
	}
	rec.printStats(cmd.ErrOrStderr(), session)
	return runErr
}

func (r *liveRecorder) handle(ctx context.Context, chunk audio.Chunk) {
	clog := log.With().Int("chunk", chunk.Number).Logger()
	wav := chunk.WAV()

	if _, err := r.archive.SaveAudioChunk(ctx, wav, chunk.Number); err != nil {
		clog.Warn().Err(err).Msg("Failed to save audio chunk")
	}

	text, err := r.app.Transcriber.Transcribe(ctx, stt.Audio{
		Data:     wav,
		Filename: fmt.Sprintf("chunk_%d.wav", chunk.Number),
	})
	if err != nil {
		clog.Error().Err(err).Msg("Chunk transcription failed")
		r.count(false)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		clog.Debug().Msg("No speech in chunk")
		return
	}
	r.count(true)

	now := time.Now()
	if _, err := r.archive.SaveChunkTranscript(ctx, text, chunk.Number, now); err != nil {
		clog.Warn().Err(err).Msg("Failed to save chunk transcript")
	}
	if err := r.archive.AppendCombined(text, now); err != nil {
		clog.Warn().Err(err).Msg("Failed to append to session log")
	}

	r.mu.Lock()
	fmt.Fprintf(r.out, "%s #%d %s\n", mutedStyle.Render("["+now.Format("15:04:05")+"]"), chunk.Number, text)
	r.mu.Unlock()

	if !r.classify {
		return
	}
	res, err := r.app.Service.ProcessText(ctx, text, cfg.Categories)
	if err != nil {
		clog.Error().Err(err).Msg("Chunk classification failed")
		return
	}
	r.mu.Lock()
	for _, item := range res.ClassifiedItems {
		fmt.Fprintf(r.out, "    %s %s: %.2f\n", categoryStyle.Render("["+item.Category+"]"), item.Item, item.Amount)
	}
	r.mu.Unlock()
}

func (r *liveRecorder) count(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.transcribed++
	} else {
		r.failed++
	}
}

func (r *liveRecorder) printStats(w io.Writer, s *audio.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "Duration:     %s\n", s.Elapsed().Round(time.Second))
	fmt.Fprintf(w, "Chunks:       %d\n", s.ChunkCount())
	fmt.Fprintf(w, "Transcribed:  %d\n", r.transcribed)
	if r.failed > 0 {
		fmt.Fprintf(w, "Failed:       %d\n", r.failed)
	}
	fmt.Fprintf(w, "Session log:  %s\n", r.archive.CombinedPath())
}
