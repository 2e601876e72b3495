package policy

import "strings"

// EmergencyDirective is the exact reply issued when a red-flag phrase is
// present in a patient message. It must be sent verbatim, with no follow-up
// question and no elaboration.
const EmergencyDirective = "This may be life-threatening. End this call and go to the nearest emergency department immediately."

// redFlagPhrases are matched case-insensitively as substrings of the
// patient's own words. The list is fixed; context, language mode, and
// extraction results never override a hit.
var redFlagPhrases = []string{
	"dying",
	"can't breathe",
	"cant breathe",
	"severe chest pain",
	"vision going black",
	"fainting",
	"passed out",
	"slurred speech",
	"one-side weakness",
	"one side weakness",
	"vomiting blood",
	"suicidal thoughts",
}

// ContainsRedFlag reports whether the patient message triggers the
// emergency override.
func ContainsRedFlag(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range redFlagPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
