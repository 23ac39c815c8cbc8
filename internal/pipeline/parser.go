package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const codeFence = "```"

// normalizeReport describes what the normalizer had to repair.
type normalizeReport struct {
	Repaired bool   // the repair record was substituted for the whole response
	Reason   string // why the response was repaired
	Dropped  int    // non-object entries discarded
}

// NormalizeResponse turns raw model text into a non-empty list of records.
// Malformed output never fails: it degrades to the repair record.
// req must satisfy Valid.
func NormalizeResponse(raw string, req ClassificationRequest) []ExpenseRecord {
	records, _ := normalizeWithReport(raw, req)
	return records
}

func normalizeWithReport(raw string, req ClassificationRequest) ([]ExpenseRecord, normalizeReport) {
	var report normalizeReport

	repair := func(reason string) ([]ExpenseRecord, normalizeReport) {
		report.Repaired = true
		report.Reason = reason
		return []ExpenseRecord{req.repairRecord()}, report
	}

	value, err := decodeModelJSON(quoteNonFiniteTokens(cleanModelJSON(raw)))
	if err != nil {
		return repair(fmt.Sprintf("invalid JSON: %v", err))
	}

	entries, ok := value.([]interface{})
	if !ok {
		return repair(fmt.Sprintf("expected JSON array, got %s", jsonKind(value)))
	}
	if len(entries) == 0 {
		return repair("empty array")
	}

	resolver := NewCategoryResolver(req.Categories)
	records := make([]ExpenseRecord, 0, len(entries))
	for _, entry := range entries {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			report.Dropped++
			continue
		}
		records = append(records, transformEntry(obj, req, resolver))
	}

	if len(records) == 0 {
		return repair("no object entries")
	}
	return records, report
}

// cleanModelJSON strips a Markdown code fence if the model added one anyway.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, codeFence) {
		return s
	}

	s = strings.TrimPrefix(s, codeFence)
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.ReplaceAll(s, codeFence, "")
	return strings.TrimSpace(s)
}

// nonFiniteTokens are the bare literals some models emit for non-finite
// numbers, with the text each one becomes.
var nonFiniteTokens = []struct{ token, text string }{
	{"-Infinity", "-inf"},
	{"Infinity", "inf"},
	{"NaN", "nan"},
}

// quoteNonFiniteTokens turns bare NaN, Infinity and -Infinity outside string
// literals into JSON strings. Amount coercion then maps them to 0.
func quoteNonFiniteTokens(s string) string {
	if !strings.Contains(s, "NaN") && !strings.Contains(s, "Infinity") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if n, text := matchNonFinite(s, i); n > 0 {
			b.WriteString(strconv.Quote(text))
			i += n - 1
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func matchNonFinite(s string, i int) (int, string) {
	if i > 0 && isIdentByte(s[i-1]) {
		return 0, ""
	}
	for _, t := range nonFiniteTokens {
		end := i + len(t.token)
		if strings.HasPrefix(s[i:], t.token) && (end == len(s) || !isIdentByte(s[end])) {
			return len(t.token), t.text
		}
	}
	return 0, ""
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// decodeModelJSON parses exactly one JSON value, keeping numbers as json.Number.
func decodeModelJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
