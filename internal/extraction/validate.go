package extraction

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// Confidence is the model's self-reported reliability for an extraction.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Result holds the sanitized fields extracted from a receipt image. Every
// field except Confidence is independently nullable; Confidence always
// resolves to one of the three enum values.
type Result struct {
	TotalAmount *float64   `json:"total_amount"`
	Currency    *string    `json:"currency"`
	Date        *string    `json:"date"`
	VendorName  *string    `json:"vendor_name"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Confidence  Confidence `json:"confidence"`
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Validate parses and sanitizes a model reply. This is the trust boundary:
// the reply is arbitrary free text and no field crosses without its own
// type and shape check. The second return is false when the text cannot be
// interpreted as a JSON object at all; per-field problems degrade to null
// (or low confidence) instead of failing the whole reply.
func Validate(raw string) (Result, bool) {
	s := stripFences(raw)
	if s == "" {
		return Result{}, false
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return Result{}, false
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return Result{}, false
	}

	result := Result{Confidence: ConfidenceLow}

	if c, ok := obj["confidence"].(string); ok {
		switch Confidence(c) {
		case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
			result.Confidence = Confidence(c)
		}
	}

	if n, ok := obj["total_amount"].(float64); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
		result.TotalAmount = &n
	}

	result.Currency = nonEmptyString(obj["currency"])
	result.VendorName = nonEmptyString(obj["vendor_name"])
	result.Description = nonEmptyString(obj["description"])
	result.Category = nonEmptyString(obj["category"])

	if d, ok := obj["date"].(string); ok && datePattern.MatchString(d) {
		result.Date = &d
	}

	return result, true
}

// stripFences removes one enclosing three-backtick code fence and an
// optional leading "json" language tag. Text without a fence passes
// through unchanged.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)

	const fence = "```"
	if strings.HasPrefix(s, fence) {
		if end := strings.Index(s[len(fence):], fence); end != -1 {
			s = strings.TrimSpace(s[len(fence) : len(fence)+end])
		}
	}
	s = strings.TrimPrefix(s, "json")

	return strings.TrimSpace(s)
}

func nonEmptyString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
