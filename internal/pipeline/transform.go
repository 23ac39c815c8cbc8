package pipeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// transformEntry converts one model object into an ExpenseRecord, repairing
// each field independently.
func transformEntry(obj map[string]interface{}, req ClassificationRequest, resolver *CategoryResolver) ExpenseRecord {
	category := resolver.Default()
	if candidate, ok := getOptionalStringField(obj, "category"); ok {
		category = resolver.Resolve(candidate)
	}

	item := req.fallbackItem()
	if v, ok := obj["item"]; ok {
		item = stringifyValue(v)
	}

	return ExpenseRecord{
		Category: category,
		Item:     item,
		Amount:   getFloat64Field(obj, "amount"),
	}
}

// getOptionalStringField returns the field rendered as a string.
// A missing or null field reports false.
func getOptionalStringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	return stringifyValue(v), true
}

// getFloat64Field coerces the field to a finite float64, or 0.
func getFloat64Field(m map[string]interface{}, key string) float64 {
	var f float64
	switch v := m[key].(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// stringifyValue renders a decoded JSON value as text. Null and booleans
// use None/True/False.
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		out, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(out)
	}
}
