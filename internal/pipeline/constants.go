package pipeline

// Default values for classification requests.
// These can be overridden via configuration.
const (
	// DefaultModelName is the default Gemini model used for translation and classification.
	DefaultModelName = "gemini-2.5-flash"

	// MaxFallbackItemLength caps the item description used by the repair record.
	MaxFallbackItemLength = 50

	// StatusSuccess is the status reported in a successful ClassificationResult.
	StatusSuccess = "success"

	// SourceText and SourceSpeech identify where a classification run originated.
	SourceText   = "text"
	SourceSpeech = "speech"
)

// DefaultCategories returns the categories used when a caller supplies none.
func DefaultCategories() []string {
	return []string{"going out", "house expense", "groceries"}
}
