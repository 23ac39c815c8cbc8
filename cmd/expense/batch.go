package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/batch"
)

// defaultBatchReport is written in the working directory.
const defaultBatchReport = "batch_transcriptions.txt"

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Transcribe every audio file in a folder into one report",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().String("output", defaultBatchReport, "report file")
	cmd.Flags().Int("workers", 3, "files transcribed concurrently")
	cmd.Flags().Int("retries", 0, "extra attempts per failed file")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	workers, _ := cmd.Flags().GetInt("workers")
	retries, _ := cmd.Flags().GetInt("retries")

	ctx := cmd.Context()
	a, err := newApp(ctx, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Transcriber.Len() == 0 {
		return fmt.Errorf("no speech-to-text provider configured")
	}

	runner := batch.NewRunner(a.Transcriber, batch.Config{
		Workers:    workers,
		MaxRetries: retries,
		Progress:   cmd.ErrOrStderr(),
	}, log)

	res, err := runner.Run(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(res.Entries) == 0 {
		fmt.Fprintf(out, "No audio files found in %s\n", args[0])
		return nil
	}
	if err := runner.WriteReport(output, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "Transcribed %d of %d files. Report saved to %s\n",
		len(res.Entries)-res.Failed, len(res.Entries), output)
	return nil
}
