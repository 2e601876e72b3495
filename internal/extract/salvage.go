// Package extract pulls structured medical facts out of free-form patient
// speech, combining model output with regex heuristics.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceRe      = regexp.MustCompile("```json|```")
	objectRe     = regexp.MustCompile(`(?s)\{.*\}`)
	bareKeyRe    = regexp.MustCompile(`(['"])?([a-zA-Z0-9_]+)(['"])?:`)
	trailCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseJSONObject salvages a JSON object from model output. It strips
// markdown fences, takes the outermost brace block, and on a parse failure
// retries after quoting bare keys and dropping trailing commas. Returns
// false when nothing parseable remains.
func ParseJSONObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
	if text == "" {
		return nil, false
	}

	block := objectRe.FindString(text)
	if block == "" {
		return nil, false
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(block), &out); err == nil {
		return out, true
	}

	fixed := bareKeyRe.ReplaceAllString(block, `"${2}":`)
	fixed = trailCommaRe.ReplaceAllString(fixed, "$1")
	if err := json.Unmarshal([]byte(fixed), &out); err == nil {
		return out, true
	}
	return nil, false
}
