// Package language picks the reply language mode for a patient message.
package language

import "strings"

// Mode is the reply language requested for a turn.
type Mode string

const (
	ModeEnglish Mode = "en"
	ModeHindi   Mode = "hi"
	ModeKannada Mode = "kn"
)

// Detect chooses a language mode from explicit switch commands, native
// script ranges, and a few transliteration keywords. English is the default.
func Detect(text string) Mode {
	lower := strings.ToLower(text)

	// Explicit user commands win over everything.
	if strings.Contains(lower, "speak hindi") || strings.Contains(lower, "hindi mein") {
		return ModeHindi
	}
	if strings.Contains(lower, "speak kannada") || strings.Contains(lower, "kannada") || strings.Contains(lower, "maathu") {
		return ModeKannada
	}

	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return ModeHindi
		}
		if r >= 0x0C80 && r <= 0x0CFF {
			return ModeKannada
		}
	}

	if containsWord(lower, "howdu") {
		return ModeKannada
	}
	if containsWord(lower, "hai") || containsWord(lower, "kya") {
		return ModeHindi
	}

	return ModeEnglish
}

// Instruction renders the system-prompt language clause for a mode.
func (m Mode) Instruction() string {
	switch m {
	case ModeHindi:
		return "Respond in Hindi only."
	case ModeKannada:
		return "Respond in Kannada only."
	default:
		return "Respond in English only."
	}
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || !isLetter(lower[start-1])
		rightOK := end == len(lower) || !isLetter(lower[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
