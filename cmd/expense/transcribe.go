package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/audio"
	"github.com/dvloznov/expense-voice/internal/pipeline"
	"github.com/dvloznov/expense-voice/internal/stt"
)

func transcribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe an audio file (local path or gs:// URI)",
		Args:  cobra.ExactArgs(1),
		RunE:  runTranscribe,
	}
	addSaveFlag(cmd)
	cmd.Flags().Bool("classify", false, "classify the transcript into expenses")
	addOutputFlag(cmd)
	return cmd
}

// autoSaveName is the --save value used when the flag is given bare.
const autoSaveName = "auto"

func addSaveFlag(cmd *cobra.Command) {
	cmd.Flags().String("save", "", "also write the transcript to this file (bare --save picks transcription_<timestamp>.txt)")
	cmd.Flags().Lookup("save").NoOptDefVal = autoSaveName
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	save, _ := cmd.Flags().GetString("save")
	classify, _ := cmd.Flags().GetBool("classify")

	ctx := cmd.Context()
	a, err := newApp(ctx, app.Options{RequireLLM: classify, Persist: classify})
	if err != nil {
		return err
	}
	defer a.Close()

	clip, err := loadAudio(ctx, a, args[0])
	if err != nil {
		return err
	}
	return handleClip(cmd, a, clip, save, classify, format)
}

// handleClip transcribes or classifies clip and prints the outcome.
func handleClip(cmd *cobra.Command, a *app.App, clip stt.Audio, save string, classify bool, format string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if classify {
		res, err := a.Service.ProcessAudio(ctx, clip, cfg.Categories)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoSpeech) {
				fmt.Fprintln(out, "No speech detected.")
				return nil
			}
			return err
		}
		if err := saveTranscript(ctx, a, res.OriginalText, save); err != nil {
			return err
		}
		return printResult(out, format, res)
	}

	text, err := a.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if err := saveTranscript(ctx, a, text, save); err != nil {
		return err
	}

	payload := struct {
		File       string `json:"file" yaml:"file"`
		Transcript string `json:"transcript" yaml:"transcript"`
	}{File: clip.Filename, Transcript: text}
	if handled, err := writeStructured(out, format, payload); handled {
		return err
	}
	if text == "" {
		fmt.Fprintln(out, "No speech detected.")
		return nil
	}
	fmt.Fprintln(out, text)
	return nil
}

func saveTranscript(ctx context.Context, a *app.App, text, name string) error {
	if name == "" || text == "" {
		return nil
	}
	if name == autoSaveName {
		name = ""
	}
	archive, err := a.NewArchive()
	if err != nil {
		return err
	}
	path, err := archive.SaveTranscription(ctx, text, name)
	if err != nil {
		return err
	}
	a.Log.Info().Str("path", path).Msg("Transcription saved")
	return nil
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Enter is pressed, then transcribe",
		Args:  cobra.NoArgs,
		RunE:  runRecord,
	}
	cmd.Flags().String("file", "recording.wav", "WAV file to keep the recording in (empty to skip)")
	addSaveFlag(cmd)
	cmd.Flags().Bool("classify", false, "classify the transcript into expenses")
	addOutputFlag(cmd)
	return cmd
}

func runRecord(cmd *cobra.Command, _ []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	save, _ := cmd.Flags().GetString("save")
	classify, _ := cmd.Flags().GetBool("classify")

	ctx := cmd.Context()
	a, err := newApp(ctx, app.Options{RequireLLM: classify, Persist: classify})
	if err != nil {
		return err
	}
	defer a.Close()

	mic := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, log)
	if err := mic.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Recording... press Enter to stop.")
	started := time.Now()
	samples, err := audio.RecordUntil(ctx, mic, waitForEnter(ctx, cmd.InOrStdin()))
	if stopErr := mic.Stop(); stopErr != nil {
		log.Warn().Err(stopErr).Msg("Failed to stop microphone")
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("recording failed: %w", err)
	}
	if len(samples) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing was recorded.")
		return nil
	}
	log.Info().
		Dur("duration", time.Since(started)).
		Int("peak", audio.PeakLevel(samples)).
		Msg("Recording finished")

	wav := audio.EncodeWAV(samples, cfg.Audio.SampleRate, audio.DefaultChannels)
	name := "recording.wav"
	if file != "" {
		if err := os.WriteFile(file, wav, 0o644); err != nil {
			return fmt.Errorf("write recording: %w", err)
		}
		name = filepath.Base(file)
		log.Info().Str("path", file).Msg("Recording saved")
	}
	return handleClip(cmd, a, stt.Audio{Data: wav, Filename: name}, save, classify, format)
}
