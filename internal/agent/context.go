// Package agent orchestrates a patient turn: transcript logging, extraction,
// context assembly, reply generation, and debounced summarization.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careconnect-health/careconnect/internal/memory"
	"github.com/careconnect-health/careconnect/internal/patient"
)

const (
	contextSymptomWindow = 6
	contextTurnWindow    = 8
)

// BuildContext assembles the reasoning blob handed to the reply model. It is
// explicitly marked as non-quotable so the model personalizes without reading
// records back to the patient.
func BuildContext(res patient.Resolution, mem *memory.PatientMemory, extracted map[string]any) (ctx, patientName string) {
	patientName = res.Key
	if res.Profile != nil && res.Profile.Name != "" {
		patientName = res.Profile.Name
	}
	if patientName == "" {
		patientName = "Patient"
	}

	longTerm := "No long-term summary available."
	if mem != nil && mem.LongTermSummary != "" {
		longTerm = mem.LongTermSummary
	}

	symptomLines := "None recorded"
	if mem != nil {
		var parts []string
		for _, s := range mem.RecentSymptoms(contextSymptomWindow) {
			parts = append(parts, fmt.Sprintf("%s (%d) - %s", s.Symptom, s.Severity, s.Date.Format("2006-01-02")))
		}
		if len(parts) > 0 {
			symptomLines = strings.Join(parts, " | ")
		}
	}

	turnLines := "No recent messages"
	if mem != nil {
		var parts []string
		for _, t := range mem.RecentTurns(contextTurnWindow) {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.ToUpper(t.Speaker), t.Text))
		}
		if len(parts) > 0 {
			turnLines = strings.Join(parts, " || ")
		}
	}

	extractedJSON := "{}"
	if len(extracted) > 0 {
		if raw, err := json.Marshal(extracted); err == nil {
			extractedJSON = string(raw)
		}
	}

	var b strings.Builder
	b.WriteString("PATIENT CONTEXT (FOR REASONING ONLY — DO NOT REPEAT VERBATIM):\n\n")
	fmt.Fprintf(&b, "Patient identity: %s\n", res.Key)
	fmt.Fprintf(&b, "PATIENT NAME: %s\n", patientName)
	fmt.Fprintf(&b, "Profile: %s\n\n", profileLine(res.Profile))
	fmt.Fprintf(&b, "Long-term summary: %s\n\n", longTerm)
	fmt.Fprintf(&b, "Recent symptoms (most recent first): %s\n\n", symptomLines)
	fmt.Fprintf(&b, "Recent conversation snippets: %s\n\n", turnLines)
	fmt.Fprintf(&b, "Extracted fields from latest message: %s\n\n", extractedJSON)
	b.WriteString("NOTE:\nUse this only to personalize. Never quote raw medical data directly.\nAsk only ONE question at a time.")

	return b.String(), patientName
}

func profileLine(p *patient.Profile) string {
	if p == nil {
		return "No profile on record."
	}

	var lines []string
	if p.Name != "" {
		lines = append(lines, "Name: "+p.Name)
	}
	if p.Age > 0 {
		lines = append(lines, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.Gender != "" {
		lines = append(lines, "Gender: "+p.Gender)
	}
	if p.Diagnosis != "" {
		lines = append(lines, "Diagnosis: "+p.Diagnosis)
	}
	if len(p.Medications) > 0 {
		lines = append(lines, "Medications: "+strings.Join(p.Medications, ", "))
	}
	if p.FollowUpPlan != "" {
		lines = append(lines, "Follow-up: "+p.FollowUpPlan)
	}
	if len(p.EmergencyContacts) > 0 {
		lines = append(lines, "EmergencyContacts: "+strings.Join(p.EmergencyContacts, ", "))
	}
	if len(lines) == 0 {
		return "No profile on record."
	}
	return strings.Join(lines, "; ")
}
