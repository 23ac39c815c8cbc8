package pipeline

import (
	"encoding/json"
	"strings"
)

// BuildClassificationPrompt renders the classification instructions for req.
// The output depends only on req.
func BuildClassificationPrompt(req ClassificationRequest) string {
	var b strings.Builder

	b.WriteString("You are an expense classifier.\n\n")
	b.WriteString("Analyze the following expense description and identify every distinct expense in it.\n\n")

	b.WriteString("Expense description: \"")
	b.WriteString(req.text())
	b.WriteString("\"\n\n")

	b.WriteString("Available categories: ")
	b.WriteString(formatCategories(req.Categories))
	b.WriteString("\n\n")

	b.WriteString("Task:\n")
	b.WriteString("- Classify each distinct expense into exactly ONE of the available categories.\n")
	b.WriteString("- Extract the monetary amount and a short description of the purchased item.\n")
	b.WriteString("- If the amount is not stated, set \"amount\" to 0.\n")
	b.WriteString("- If the item is not stated, use a generic description.\n\n")

	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"category\": string (one of the available categories, spelled exactly)\n")
	b.WriteString("- \"item\": string\n")
	b.WriteString("- \"amount\": number\n\n")

	b.WriteString("Example output:\n")
	b.WriteString("[{\"category\": \"groceries\", \"item\": \"bread\", \"amount\": 5.50}]\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Return ONLY a valid raw JSON array.\n")
	b.WriteString("- Do NOT wrap the response in code fences or Markdown.\n")
	b.WriteString("- Do NOT add explanations or any other text.\n")
	b.WriteString("- Always return at least one element.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n")

	return b.String()
}

// BuildTranslationPrompt renders the English/Romanian translate-and-clarify prompt.
func BuildTranslationPrompt(text string) string {
	var b strings.Builder

	b.WriteString("You are a translator for expense descriptions.\n\n")
	b.WriteString("Text: \"")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\"\n\n")

	b.WriteString("Task:\n")
	b.WriteString("1. Detect whether the text is in English or Romanian.\n")
	b.WriteString("2. If it is in Romanian, translate it to English. If it is in English, translate it to Romanian.\n")
	b.WriteString("3. Clarify informal or colloquial phrasing so the meaning is unambiguous.\n")
	b.WriteString("4. Make the type of expense explicit (for example groceries, dining out, utilities).\n")
	b.WriteString("5. Preserve every monetary amount and currency exactly as given.\n\n")

	b.WriteString("Return ONLY the translated text, with no explanations or quotes.\n")

	return b.String()
}

func formatCategories(categories []string) string {
	out, err := json.Marshal(categories)
	if err != nil {
		return strings.Join(categories, ", ")
	}
	return string(out)
}
