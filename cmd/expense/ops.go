package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/audio"
	"github.com/dvloznov/expense-voice/internal/gcsuploader"
	"github.com/dvloznov/expense-voice/internal/stt"
)

func probeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the ElevenLabs API key works",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			res := &stt.ProbeResult{Status: stt.ProbeMissingKey, Message: "ElevenLabs API key not configured"}
			if a.ElevenLabs != nil {
				res = a.ElevenLabs.Probe(cmd.Context())
			}
			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, format, res); handled {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", res.Status, res.Message)
			if res.UserEmail != "" {
				fmt.Fprintf(out, "Account: %s\n", res.UserEmail)
			}
			if !res.OK() {
				return fmt.Errorf("elevenlabs probe failed")
			}
			return nil
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func micCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mic-check",
		Short: "Record briefly and report the microphone level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			seconds, _ := cmd.Flags().GetDuration("duration")

			ctx := cmd.Context()
			mic := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, log)
			if err := mic.Start(ctx); err != nil {
				return err
			}
			defer mic.Stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "Speak now (%s)...\n", seconds)
			check, err := audio.CheckMicrophone(ctx, mic, seconds, cfg.Audio.SampleRate)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, format, check); handled {
				return err
			}
			fmt.Fprintf(out, "Peak level: %d\n", check.Peak)
			if check.Healthy {
				fmt.Fprintln(out, "Microphone is working.")
			} else {
				fmt.Fprintln(out, mutedStyle.Render("Audio level is very low. Check the microphone."))
			}
			return nil
		},
	}
	cmd.Flags().Duration("duration", 3*time.Second, "how long to record")
	addOutputFlag(cmd)
	return cmd
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an audio or transcript file to the configured bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Uploader == nil {
				return fmt.Errorf("storage.gcs_bucket is not configured")
			}

			object := gcsuploader.ObjectName("uploads", time.Now().Format("2006/01/02"), filepath.Base(args[0]))
			uri, err := a.Uploader.UploadFile(ctx, object, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent classification runs stored in BigQuery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			withItems, _ := cmd.Flags().GetBool("items")

			ctx := cmd.Context()
			a, err := newApp(ctx, app.Options{Persist: true})
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Results == nil {
				return fmt.Errorf("storage.bigquery_project and storage.bigquery_dataset are required")
			}

			runs, err := a.Results.ListRecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if handled, err := writeStructured(out, format, runs); handled {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No classification runs recorded.")
				return nil
			}
			for _, run := range runs {
				fmt.Fprintf(out, "%s  %-5s  %d items  %s\n",
					headerStyle.Render(run.CreatedTS.Local().Format("2006-01-02 15:04")), run.Source, run.ItemCount, run.OriginalText)
				if !withItems {
					continue
				}
				items, err := a.Results.ListItemsForRun(ctx, run.RunID)
				if err != nil {
					return err
				}
				for _, item := range items {
					fmt.Fprintf(out, "    %s %s: %.2f\n", categoryStyle.Render("["+item.Category+"]"), item.Item, item.Amount)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")
	cmd.Flags().Bool("items", false, "include the expense items of each run")
	addOutputFlag(cmd)
	return cmd
}
