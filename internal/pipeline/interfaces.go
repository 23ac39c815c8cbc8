package pipeline

import (
	"context"

	"github.com/dvloznov/expense-voice/internal/stt"
)

// TextGenerator sends a prompt to a generative model and returns its text.
// This interface allows for easy mocking in tests.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio stt.Audio) (string, error)
}

// ResultRecorder persists classification runs.
type ResultRecorder interface {
	RecordClassification(ctx context.Context, run *ClassificationRun) error
}
