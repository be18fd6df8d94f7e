// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consensus

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Steps named in ResponseError.
const (
	StepClassify  = "classify"
	StepExtract   = "extract"
	StepJudge     = "judge"
	StepTranslate = "translate"
)

// ResponseError reports a model reply that does not match the expected shape.
type ResponseError struct {
	Step   string
	Raw    string
	Reason string
}

func (e *ResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("%s: %s (response %q)", e.Step, e.Reason, raw)
}

// judgeMarker is the phrase some models prepend to their judge verdict.
const judgeMarker = "The correct answer is:"

// ParseLogoVerdict parses {"is_logo": "Yes"|"No"}. A surrounding Markdown
// code fence is tolerated; anything else that is not that object is an error.
func ParseLogoVerdict(raw string) (bool, error) {
	body := stripCodeFence(strings.TrimSpace(raw))

	dec := json.NewDecoder(strings.NewReader(body))
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return false, &ResponseError{Step: StepClassify, Raw: raw, Reason: "not a JSON object: " + err.Error()}
	}
	if dec.More() {
		return false, &ResponseError{Step: StepClassify, Raw: raw, Reason: "trailing data after JSON object"}
	}

	val, ok := obj["is_logo"]
	if !ok {
		return false, &ResponseError{Step: StepClassify, Raw: raw, Reason: `missing "is_logo" key`}
	}
	var verdict string
	if err := json.Unmarshal(val, &verdict); err != nil {
		return false, &ResponseError{Step: StepClassify, Raw: raw, Reason: `"is_logo" is not a string`}
	}

	switch verdict {
	case "Yes":
		return true, nil
	case "No":
		return false, nil
	default:
		return false, &ResponseError{Step: StepClassify, Raw: raw, Reason: fmt.Sprintf(`"is_logo" must be "Yes" or "No", got %q`, verdict)}
	}
}

// ParseJudgeVerdict extracts the 1-based index of the chosen candidate out
// of n. The reply must be a single digit, optionally preceded by
// "The correct answer is:".
func ParseJudgeVerdict(raw string, n int) (int, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, judgeMarker); i >= 0 {
		s = strings.TrimSpace(s[i+len(judgeMarker):])
	}
	s = strings.TrimRight(s, ".")

	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, &ResponseError{Step: StepJudge, Raw: raw, Reason: "expected a single digit"}
	}
	choice := int(s[0] - '0')
	if choice < 1 || choice > n {
		return 0, &ResponseError{Step: StepJudge, Raw: raw, Reason: fmt.Sprintf("choice %d out of range 1..%d", choice, n)}
	}
	return choice, nil
}

// ParseTranslation trims the reply and rejects empty output.
func ParseTranslation(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ResponseError{Step: StepTranslate, Raw: raw, Reason: "empty translation"}
	}
	return s, nil
}

// ParseExtraction trims the reply and rejects empty output.
func ParseExtraction(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ResponseError{Step: StepExtract, Raw: raw, Reason: "empty extraction"}
	}
	return s, nil
}

// stripCodeFence removes a ``` or ```json fence wrapping the whole body.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(inner[:nl]); lang == "" || lang == "json" {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
