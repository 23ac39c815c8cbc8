package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/stt"
)

// PipelineStep represents a single step in the expense pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source         string
	Audio          *stt.Audio
	OriginalText   string
	TranslatedText string
	Categories     []string
	Classification *Classification
	RunID          string
}

// Result builds the response envelope from the final state.
func (s *PipelineState) Result() *ClassificationResult {
	res := &ClassificationResult{
		OriginalText:    s.OriginalText,
		TranslatedText:  s.TranslatedText,
		ClassifiedItems: []ExpenseRecord{},
		Status:          StatusSuccess,
	}
	if s.Classification != nil {
		res.ClassifiedItems = s.Classification.Items
	}
	return res
}

// TranscribeStep converts state.Audio into state.OriginalText.
type TranscribeStep struct {
	Transcriber Transcriber
}

func (s *TranscribeStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Transcriber == nil {
		return fmt.Errorf("%w: no transcriber configured", ErrTranscriptionFailed)
	}
	if state.Audio == nil {
		return fmt.Errorf("%w: no audio provided", ErrTranscriptionFailed)
	}
	text, err := s.Transcriber.Transcribe(ctx, *state.Audio)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoSpeech
	}
	state.OriginalText = text
	return nil
}

// TranslateStep fills state.TranslatedText. With a nil Translator the
// original text is used unchanged.
type TranslateStep struct {
	Translator *Translator
}

func (s *TranslateStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Translator == nil {
		state.TranslatedText = state.OriginalText
		return nil
	}
	translated, err := s.Translator.TranslateText(ctx, state.OriginalText)
	if err != nil {
		return &TranslationError{OriginalText: state.OriginalText, Err: err}
	}
	state.TranslatedText = translated
	return nil
}

// ClassifyStep classifies state.TranslatedText.
type ClassifyStep struct {
	Classifier *Classifier
	// RepairEmpty substitutes the fallback record when nothing was classified.
	RepairEmpty bool
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	req := ClassificationRequest{
		TranslatedText: state.TranslatedText,
		Categories:     state.Categories,
	}
	res, err := s.Classifier.Classify(ctx, req)
	if err != nil {
		return err
	}
	if res == nil {
		res = &Classification{Items: []ExpenseRecord{}}
		if s.RepairEmpty && len(req.Categories) > 0 {
			fallback := ExpenseRecord{
				Category: req.Categories[0],
				Item:     fallbackItemFor(state),
			}
			res.Items = []ExpenseRecord{fallback}
			res.Repaired = true
		}
	}
	state.Classification = res
	return nil
}

func fallbackItemFor(state *PipelineState) string {
	for _, text := range []string{state.TranslatedText, state.OriginalText} {
		if t := strings.TrimSpace(text); t != "" {
			return truncateRunes(t, MaxFallbackItemLength)
		}
	}
	return "unknown expense"
}

// RecordStep persists the run. Persistence errors are logged, never returned.
type RecordStep struct {
	Recorder  ResultRecorder
	ModelName string
	Log       zerolog.Logger
}

func (s *RecordStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.Recorder == nil || state.Classification == nil {
		return nil
	}
	if state.RunID == "" {
		state.RunID = uuid.New().String()
	}

	run := &ClassificationRun{
		RunID:          state.RunID,
		Source:         state.Source,
		OriginalText:   state.OriginalText,
		TranslatedText: state.TranslatedText,
		Categories:     state.Categories,
		Items:          state.Classification.Items,
		RawResponse:    state.Classification.RawResponse,
		ModelName:      s.ModelName,
		Repaired:       state.Classification.Repaired,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Recorder.RecordClassification(ctx, run); err != nil {
		s.Log.Error().Err(err).Str("run_id", run.RunID).Msg("Failed to record classification run")
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
