package extract

import (
	"regexp"
	"strings"
)

var (
	dateRes = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
		regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\b`),
		regexp.MustCompile(`(?i)\b(\d{1,2} (?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]* \d{2,4})\b`),
		regexp.MustCompile(`(?i)\b((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]* \d{1,2}, \d{4})\b`),
	}

	genderRe    = regexp.MustCompile(`(?i)\b(male|female|m|f)\b`)
	patientIDRe = regexp.MustCompile(`(?i)\b(CC[- ]?PT[- ]?[0-9A-Za-z]+)\b`)
	nameLineRe  = regexp.MustCompile(`(?i)(Patient Name|Name)[:\s]*([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3})`)

	bpRe   = regexp.MustCompile(`\b(\d{2,3}/\d{2,3})\b`)
	hrRe   = regexp.MustCompile(`(?i)\b(Heart Rate|HR|Pulse)[:\s]*?(\d{2,3})\b`)
	tempRe = regexp.MustCompile(`(?i)\b(Temp|Temperature)[:\s]*?([0-4]?\d(?:\.\d)? ?(?:°F|°C|F|C))\b`)
	spo2Re = regexp.MustCompile(`(?i)\b(SpO2|Oxygen Saturation)[:\s]*?(\d{2,3})%?\b`)
	rrRe   = regexp.MustCompile(`(?i)\b(Respiratory Rate|RR)[:\s]*?(\d{1,2})\b`)

	phoneRe = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\d{3,4}[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)

	medHeadingRe  = regexp.MustCompile(`(?i)(Medications(?: on Discharge)?|Medication Prescribed|Discharge Medications)[\s:]*`)
	sectionLineRe = regexp.MustCompile(`^[A-Z][^\n]*:`)
	pipeFormatRe  = regexp.MustCompile(`(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.*)`)
	bulletRe      = regexp.MustCompile(`(?:\d+\.|•|-)\s*([A-Za-z0-9 \-]+)\s+(\d+[^\s]+)\s*[–-]\s*(.+)`)
)

// RunHeuristics fills fields the model missed using regex scans over the raw
// text. Existing keys in current are never overwritten.
func RunHeuristics(text string, current map[string]any) map[string]any {
	out := make(map[string]any, len(current)+8)
	for k, v := range current {
		out[k] = v
	}

	if !has(out, "admissionDate") || !has(out, "dischargeDate") {
		for _, re := range dateRes {
			matches := re.FindAllStringSubmatch(text, -1)
			if len(matches) >= 2 {
				if !has(out, "admissionDate") {
					out["admissionDate"] = matches[0][1]
				}
				if !has(out, "dischargeDate") {
					out["dischargeDate"] = matches[1][1]
				}
			}
		}
	}

	if !has(out, "gender") {
		if m := genderRe.FindString(text); m != "" {
			if strings.HasPrefix(strings.ToLower(m), "m") {
				out["gender"] = "Male"
			} else {
				out["gender"] = "Female"
			}
		}
	}

	if !has(out, "patientId") {
		if m := patientIDRe.FindString(text); m != "" {
			out["patientId"] = m
		}
	}

	if !has(out, "patientName") {
		if m := nameLineRe.FindStringSubmatch(text); m != nil {
			out["patientName"] = strings.TrimSpace(m[2])
		}
	}

	if !has(out, "bloodPressure") {
		if m := bpRe.FindStringSubmatch(text); m != nil {
			out["bloodPressure"] = m[1]
		}
	}
	if !has(out, "heartRate") {
		if m := hrRe.FindStringSubmatch(text); m != nil {
			out["heartRate"] = m[2]
		}
	}
	if !has(out, "temperature") {
		if m := tempRe.FindStringSubmatch(text); m != nil {
			out["temperature"] = m[2]
		}
	}
	if !has(out, "oxygenSaturation") {
		if m := spo2Re.FindStringSubmatch(text); m != nil {
			out["oxygenSaturation"] = m[2]
		}
	}
	if !has(out, "respiratoryRate") {
		if m := rrRe.FindStringSubmatch(text); m != nil {
			out["respiratoryRate"] = m[2]
		}
	}

	if !has(out, "emergencyContacts") {
		if m := phoneRe.FindString(text); m != "" {
			out["emergencyContacts"] = m
		}
	}

	if meds := extractMedications(text); len(meds) > 0 {
		existing, _ := out["medications"].([]any)
		out["medications"] = append(existing, meds...)
	}

	return out
}

// extractMedications finds a medication section and parses pipe-separated or
// bullet-list entries. The section ends at the next "Heading:" line.
func extractMedications(text string) []any {
	loc := medHeadingRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	block := text[loc[1]:]
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if sectionLineRe.MatchString(line) && !strings.Contains(line, "|") {
			break
		}
		lines = append(lines, line)
	}
	block = strings.Join(lines, "\n")

	var meds []any
	for _, m := range pipeFormatRe.FindAllStringSubmatch(block, -1) {
		meds = append(meds, map[string]any{
			"name":     strings.TrimSpace(m[1]),
			"dose":     strings.TrimSpace(m[2]),
			"schedule": strings.TrimSpace(m[3]),
			"duration": strings.TrimSpace(m[4]),
			"notes":    strings.TrimSpace(m[5]),
		})
	}
	for _, m := range bulletRe.FindAllStringSubmatch(block, -1) {
		meds = append(meds, map[string]any{
			"name":     strings.TrimSpace(m[1]),
			"dose":     strings.TrimSpace(m[2]),
			"schedule": strings.TrimSpace(m[3]),
		})
	}
	return meds
}

func has(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}
