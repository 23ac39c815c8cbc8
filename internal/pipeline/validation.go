package pipeline

import "strings"

// CategoryResolver maps free-form model categories onto an allowed list.
type CategoryResolver struct {
	allowed    []string
	normalized []string
}

// NewCategoryResolver creates a resolver. categories must be non-empty.
func NewCategoryResolver(categories []string) *CategoryResolver {
	r := &CategoryResolver{
		allowed:    categories,
		normalized: make([]string, len(categories)),
	}
	for i, c := range categories {
		r.normalized[i] = normalizeCategory(c)
	}
	return r
}

// Default returns the fallback category.
func (r *CategoryResolver) Default() string {
	return r.allowed[0]
}

// Resolve returns the first allowed category that equals, contains or is
// contained in candidate (case-insensitive), or Default.
func (r *CategoryResolver) Resolve(candidate string) string {
	if c, ok := r.Match(candidate); ok {
		return c
	}
	return r.Default()
}

// Match is Resolve without the fallback.
func (r *CategoryResolver) Match(candidate string) (string, bool) {
	norm := normalizeCategory(candidate)
	for i, allowed := range r.normalized {
		if norm == allowed || strings.Contains(norm, allowed) || strings.Contains(allowed, norm) {
			return r.allowed[i], true
		}
	}
	return "", false
}

// normalizeCategory lower-cases a category name for comparison.
// Whitespace is kept so that matching follows containment exactly.
func normalizeCategory(name string) string {
	return strings.ToLower(name)
}
