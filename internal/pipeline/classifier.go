package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Classifier turns an expense description into ExpenseRecords using a TextGenerator.
// It is safe for concurrent use if the generator is.
type Classifier struct {
	gen TextGenerator
	log zerolog.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(gen TextGenerator, log zerolog.Logger) *Classifier {
	return &Classifier{gen: gen, log: log}
}

// ClassifyExpense classifies req. Empty text or categories yield nil, nil
// without calling the model. The only error returned is *ClassificationError.
func (c *Classifier) ClassifyExpense(ctx context.Context, req ClassificationRequest) ([]ExpenseRecord, error) {
	res, err := c.Classify(ctx, req)
	if err != nil || res == nil {
		return nil, err
	}
	return res.Items, nil
}

// Classify is ClassifyExpense that also reports the raw model output.
func (c *Classifier) Classify(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	if !req.Valid() {
		c.log.Warn().
			Bool("empty_text", strings.TrimSpace(req.TranslatedText) == "").
			Int("categories", len(req.Categories)).
			Msg("Skipping classification: missing text or categories")
		return nil, nil
	}

	prompt := BuildClassificationPrompt(req)
	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.log.Error().Err(err).Msg("Classification model call failed")
		return nil, &ClassificationError{Err: err}
	}

	items, report := normalizeWithReport(raw, req)
	if report.Repaired {
		c.log.Warn().
			Str("reason", report.Reason).
			Str("raw_response", raw).
			Msg("Malformed classification response, using fallback record")
	}
	if report.Dropped > 0 {
		c.log.Debug().Int("dropped", report.Dropped).Msg("Dropped non-object entries")
	}

	return &Classification{
		Items:       items,
		RawResponse: raw,
		Repaired:    report.Repaired,
	}, nil
}

// Translator translates expense descriptions between English and Romanian.
type Translator struct {
	gen TextGenerator
	log zerolog.Logger
}

// NewTranslator creates a Translator.
func NewTranslator(gen TextGenerator, log zerolog.Logger) *Translator {
	return &Translator{gen: gen, log: log}
}

// TranslateText returns the translated and clarified text.
// Failures wrap ErrTranslationFailed.
func (t *Translator) TranslateText(ctx context.Context, text string) (string, error) {
	out, err := t.gen.Generate(ctx, BuildTranslationPrompt(text))
	if err != nil {
		t.log.Error().Err(err).Msg("Translation model call failed")
		return "", fmt.Errorf("%w: %w", ErrTranslationFailed, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty response", ErrTranslationFailed)
	}
	return out, nil
}
