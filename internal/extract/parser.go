package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports model output that could not be decoded as a transaction
// array. RawText holds the full original response so it can be shown to the
// user for manual inspection.
type ParseError struct {
	RawText string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: decoding model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseResponse strips presentation artifacts from the raw model text and
// decodes it into transaction candidates. Missing or oddly typed fields are
// carried through as-is; the normalizer decides how to coerce them.
func ParseResponse(raw string) ([]Candidate, error) {
	clean := cleanModelJSON(raw)

	var records []map[string]any
	if err := json.Unmarshal([]byte(clean), &records); err != nil {
		return nil, &ParseError{RawText: raw, Err: err}
	}

	candidates := make([]Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, Candidate{
			Date:        stringField(rec, "date"),
			Description: stringField(rec, "description"),
			Withdrawal:  rec["withdrawal"],
			Deposit:     rec["deposit"],
			Balance:     rec["balance"],
		})
	}

	return candidates, nil
}

// cleanModelJSON removes Markdown code fences and surrounding junk the model
// sometimes emits despite being told not to.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: if there's still junk around the JSON array, keep only
	// from the first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// stringField reads a field that should be a string; anything else (missing,
// null, number) becomes the empty string.
func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
