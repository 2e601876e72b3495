package policy

import "strings"

// internalPrefixes mark text that is almost certainly a system string echoed
// back into the audio path (a JSON payload, a session identity, a patient
// code) rather than something a patient said.
var internalPrefixes = []string{"{", "user-", "CC-PT"}

// LooksLikeInternalEcho reports whether text should be treated as pipeline
// noise instead of patient speech.
func LooksLikeInternalEcho(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, p := range internalPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
