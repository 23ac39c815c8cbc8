package pipeline

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ExpenseRecord is one detected expense line item.
type ExpenseRecord struct {
	Category string  `json:"category" yaml:"category"` // one of the allowed categories
	Item     string  `json:"item" yaml:"item"`         // what was purchased
	Amount   float64 `json:"amount" yaml:"amount"`     // 0 when unknown
}

// ClassificationRequest is the input to prompt construction and normalization.
type ClassificationRequest struct {
	TranslatedText string
	Categories     []string
}

// Valid reports whether the request has non-blank text and at least one category.
func (r ClassificationRequest) Valid() bool {
	return strings.TrimSpace(r.TranslatedText) != "" && len(r.Categories) > 0
}

// text returns the trimmed description.
func (r ClassificationRequest) text() string {
	return strings.TrimSpace(r.TranslatedText)
}

// fallbackItem is the item used whenever the model gives none.
func (r ClassificationRequest) fallbackItem() string {
	return truncateRunes(r.text(), MaxFallbackItemLength)
}

// repairRecord is the guaranteed entry used when nothing trustworthy was parsed.
func (r ClassificationRequest) repairRecord() ExpenseRecord {
	return ExpenseRecord{
		Category: r.Categories[0],
		Item:     r.fallbackItem(),
		Amount:   0,
	}
}

// Classification is the normalized output of a single model call.
type Classification struct {
	Items       []ExpenseRecord
	RawResponse string
	Repaired    bool
}

// ClassificationResult is the envelope returned to API and CLI callers.
type ClassificationResult struct {
	OriginalText    string          `json:"original_text" yaml:"original_text"`
	TranslatedText  string          `json:"translated_text" yaml:"translated_text"`
	ClassifiedItems []ExpenseRecord `json:"classified_items" yaml:"classified_items"`
	Status          string          `json:"status" yaml:"status"`
}

// ClassificationRun is what gets persisted for analytics.
type ClassificationRun struct {
	RunID          string
	Source         string
	OriginalText   string
	TranslatedText string
	Categories     []string
	Items          []ExpenseRecord
	RawResponse    string
	ModelName      string
	Repaired       bool
	CreatedAt      time.Time
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
