package pipeline

import "errors"

var (
	// ErrUpstreamFailure means the generative provider call failed.
	ErrUpstreamFailure = errors.New("upstream provider failure")

	ErrTranslationFailed   = errors.New("translation failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrNoSpeech            = errors.New("no speech detected")
)

// ClassificationError is returned by Classifier when the model call fails.
// It matches ErrUpstreamFailure and the underlying cause with errors.Is.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return "classification failed: " + e.Err.Error()
}

func (e *ClassificationError) Unwrap() []error {
	return []error{ErrUpstreamFailure, e.Err}
}

// TranslationError carries the text that could not be translated.
// It matches ErrTranslationFailed and the underlying cause with errors.Is.
type TranslationError struct {
	OriginalText string
	Err          error
}

func (e *TranslationError) Error() string {
	return e.Err.Error()
}

func (e *TranslationError) Unwrap() []error {
	return []error{ErrTranslationFailed, e.Err}
}
