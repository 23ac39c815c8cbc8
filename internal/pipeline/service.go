package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/stt"
)

// ServiceDeps holds the collaborators for a Service.
type ServiceDeps struct {
	Generator   TextGenerator
	Transcriber Transcriber    // optional, required for ProcessAudio
	Recorder    ResultRecorder // optional
	ModelName   string
	// SkipTranslation classifies the original text directly.
	SkipTranslation bool
	Logger          zerolog.Logger
}

// Service runs the text and speech expense pipelines.
type Service struct {
	transcriber Transcriber
	translator  *Translator
	classifier  *Classifier
	recorder    ResultRecorder
	modelName   string
	log         zerolog.Logger
}

// NewService creates a Service from deps.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		transcriber: deps.Transcriber,
		classifier:  NewClassifier(deps.Generator, deps.Logger),
		recorder:    deps.Recorder,
		modelName:   deps.ModelName,
		log:         deps.Logger,
	}
	if !deps.SkipTranslation {
		s.translator = NewTranslator(deps.Generator, deps.Logger)
	}
	if s.modelName == "" {
		s.modelName = DefaultModelName
	}
	return s
}

// ProcessText translates and classifies a typed description.
func (s *Service) ProcessText(ctx context.Context, text string, categories []string) (*ClassificationResult, error) {
	state := &PipelineState{
		Source:       SourceText,
		OriginalText: text,
		Categories:   categories,
	}
	p := NewPipeline(
		&TranslateStep{Translator: s.translator},
		&ClassifyStep{Classifier: s.classifier},
		s.recordStep(),
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Result(), nil
}

// ProcessAudio transcribes, translates and classifies a recording.
// Empty categories fall back to DefaultCategories.
func (s *Service) ProcessAudio(ctx context.Context, audio stt.Audio, categories []string) (*ClassificationResult, error) {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	state := &PipelineState{
		Source:     SourceSpeech,
		Audio:      &audio,
		Categories: categories,
	}
	p := NewPipeline(
		&TranscribeStep{Transcriber: s.transcriber},
		&TranslateStep{Translator: s.translator},
		&ClassifyStep{Classifier: s.classifier, RepairEmpty: true},
		s.recordStep(),
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Result(), nil
}

func (s *Service) recordStep() *RecordStep {
	return &RecordStep{Recorder: s.recorder, ModelName: s.modelName, Log: s.log}
}
