package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/gcsuploader"
	"github.com/dvloznov/expense-voice/internal/stt"
)

// Output formats for --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", outputText, "output format (text, json, yaml)")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format = strings.ToLower(format); format {
	case outputText, outputJSON, outputYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid --output %q (want text, json or yaml)", format)
	}
}

// writeStructured prints v as JSON or YAML. It returns false for text output
// so the caller can render its own summary.
func writeStructured(w io.Writer, format string, v interface{}) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// parseCategories splits comma-separated values and drops blanks.
func parseCategories(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func newApp(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, cfg, log, opts)
}

// loadAudio reads a local file or downloads a gs:// object.
func loadAudio(ctx context.Context, a *app.App, path string) (stt.Audio, error) {
	if gcsuploader.IsURI(path) {
		if a.Uploader == nil {
			return stt.Audio{}, fmt.Errorf("cannot read %s: storage.gcs_bucket is not configured", path)
		}
		data, err := a.Uploader.Download(ctx, path)
		if err != nil {
			return stt.Audio{}, err
		}
		return stt.Audio{Data: data, Filename: gcsuploader.ExtractFilenameFromGCSURI(path)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return stt.Audio{}, fmt.Errorf("read audio file: %w", err)
	}
	return stt.Audio{Data: data, Filename: filepath.Base(path)}, nil
}

// waitForEnter closes the returned channel when a line is read from r or
// ctx ends.
func waitForEnter(ctx context.Context, r io.Reader) <-chan struct{} {
	stop := make(chan struct{})
	go func() {
		defer close(stop)
		lines := make(chan struct{})
		go func() {
			_, _ = bufio.NewReader(r).ReadString('\n')
			close(lines)
		}()
		select {
		case <-lines:
		case <-ctx.Done():
		}
	}()
	return stop
}
