package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildClassificationPrompt(t *testing.T) {
	req := ClassificationRequest{
		TranslatedText: "  I bought bread for 5 lei  ",
		Categories:     []string{"groceries", "going out"},
	}

	prompt := BuildClassificationPrompt(req)

	assert.Contains(t, prompt, `"I bought bread for 5 lei"`)
	assert.Contains(t, prompt, `["groceries","going out"]`)
	assert.Contains(t, prompt, "JSON array")
	assert.Contains(t, prompt, "at least one element")
	assert.Contains(t, prompt, "code fences")
	assert.Equal(t, prompt, BuildClassificationPrompt(req), "prompt must be deterministic")
}

func TestBuildTranslationPrompt(t *testing.T) {
	prompt := BuildTranslationPrompt("am cumparat paine cu 5 lei")

	assert.Contains(t, prompt, "am cumparat paine cu 5 lei")
	assert.Contains(t, prompt, "Romanian")
	assert.Contains(t, prompt, "English")
	assert.Contains(t, prompt, "amount")
}
