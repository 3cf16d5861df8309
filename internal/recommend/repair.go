package recommend

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/shelfmate/shelfmate-server/internal/errors"
)

// Candidate is one title/reason pair parsed from model output.
type Candidate struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// fencePattern matches markdown code fence markers (```json, ``` JSON, ````)
// at the start of a line. Backticks inside JSON strings are left alone.
var fencePattern = regexp.MustCompile("(?im)^[ \t]*`{3,}[ \t]*(?:json)?")

// Clean strips the noise models wrap around JSON: code fences, a preamble
// before the first '[' or '{', and anything after the matching last ']' or '}'.
// Returns a MALFORMED_OUTPUT error if no JSON opener is present.
func Clean(raw string) (string, error) {
	s := fencePattern.ReplaceAllString(raw, "")

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", errors.MalformedOutput("model output contains no JSON array or object")
	}
	s = s[start:]

	closer := "]"
	if s[0] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end >= 0 {
		s = s[:end+1]
	}

	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return "", errors.MalformedOutput("model output does not start with a JSON array or object")
	}
	return s, nil
}

// Parse decodes cleaned output into candidates. Elements whose title or
// reason is missing, not a string, or blank are dropped. A top-level object
// is accepted either as {"recommendations": [...]} or as a single element.
// Returns MALFORMED_OUTPUT for invalid JSON and NO_VALID_RECOMMENDATIONS
// when nothing usable remains.
func Parse(cleaned string) ([]Candidate, error) {
	var root any
	// Decoder stops after the first JSON value, so trailing junk is ignored.
	if err := json.NewDecoder(strings.NewReader(cleaned)).Decode(&root); err != nil {
		return nil, errors.MalformedOutput("model output is not valid JSON").WithCause(err)
	}

	var elements []any
	switch v := root.(type) {
	case []any:
		elements = v
	case map[string]any:
		if list, ok := v["recommendations"].([]any); ok {
			elements = list
		} else {
			elements = []any{v}
		}
	default:
		return nil, errors.MalformedOutput("model output is not a JSON array or object")
	}

	candidates := make([]Candidate, 0, len(elements))
	for _, el := range elements {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		title := stringField(obj, "title")
		reason := stringField(obj, "reason")
		if title == "" || reason == "" {
			continue
		}
		candidates = append(candidates, Candidate{Title: title, Reason: reason})
	}

	if len(candidates) == 0 {
		return nil, errors.NoValidRecommendations("model output has no element with both a title and a reason")
	}
	return candidates, nil
}

// Repair runs Clean then Parse, returning the first failure.
func Repair(raw string) ([]Candidate, error) {
	cleaned, err := Clean(raw)
	if err != nil {
		return nil, err
	}
	return Parse(cleaned)
}

func stringField(obj map[string]any, key string) string {
	s, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
