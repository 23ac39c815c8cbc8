package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-voice/internal/app"
	"github.com/dvloznov/expense-voice/internal/pipeline"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"single flag with commas", []string{"going out, groceries"}, []string{"going out", "groceries"}},
		{"repeated flags", []string{"rent", "food"}, []string{"rent", "food"}},
		{"blanks dropped", []string{" , ,rent,"}, []string{"rent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCategories(tt.in))
		})
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{"text", outputText, false},
		{"JSON", outputJSON, false},
		{"yaml", outputYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cmd := &cobra.Command{}
			addOutputFlag(cmd)
			require.NoError(t, cmd.Flags().Set("output", tt.value))

			got, err := outputFormat(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func sampleResult() *pipeline.ClassificationResult {
	return &pipeline.ClassificationResult{
		OriginalText:    "paine 5 lei",
		TranslatedText:  "bread 5 lei",
		ClassifiedItems: []pipeline.ExpenseRecord{{Category: "groceries", Item: "bread", Amount: 5}},
		Status:          pipeline.StatusSuccess,
	}
}

func TestPrintResult(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, outputJSON, sampleResult()))
		assert.Contains(t, buf.String(), `"classified_items": [`)
		assert.Contains(t, buf.String(), `"category": "groceries"`)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, outputYAML, sampleResult()))
		assert.Contains(t, buf.String(), "original_text: paine 5 lei")
		assert.Contains(t, buf.String(), "  - category: groceries")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, outputText, sampleResult()))
		out := buf.String()
		assert.Contains(t, out, "Translated: bread 5 lei")
		assert.Contains(t, out, "1. [groceries] bread: 5.00")
		assert.Contains(t, out, "Total: 5.00")
	})

	t.Run("text without items", func(t *testing.T) {
		var buf bytes.Buffer
		res := &pipeline.ClassificationResult{OriginalText: "hello", TranslatedText: "hello"}
		require.NoError(t, printResult(&buf, outputText, res))
		assert.NotContains(t, buf.String(), "Translated:")
		assert.Contains(t, buf.String(), "No expenses detected.")
	})
}

func TestLoadAudio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	a := &app.App{}

	clip, err := loadAudio(context.Background(), a, path)
	require.NoError(t, err)
	assert.Equal(t, "note.wav", clip.Filename)
	assert.Equal(t, []byte("RIFF"), clip.Data)

	_, err = loadAudio(context.Background(), a, filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)

	_, err = loadAudio(context.Background(), a, "gs://bucket/note.wav")
	assert.ErrorContains(t, err, "gcs_bucket")
}

func TestWaitForEnter(t *testing.T) {
	t.Run("line read", func(t *testing.T) {
		stop := waitForEnter(context.Background(), strings.NewReader("\n"))
		select {
		case <-stop:
		case <-time.After(time.Second):
			t.Fatal("stop was not closed after Enter")
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		defer r.Close()
		defer w.Close()

		ctx, cancel := context.WithCancel(context.Background())
		stop := waitForEnter(ctx, r)
		cancel()
		select {
		case <-stop:
		case <-time.After(time.Second):
			t.Fatal("stop was not closed after cancel")
		}
	})
}

func TestRootCommandTree(t *testing.T) {
	want := []string{"batch", "classify", "history", "live", "mic-check", "probe", "record", "transcribe", "upload", "version"}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, got, name)
	}
}
