package policy

import "testing"

func TestContainsRedFlag(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I think I'm dying, I can't breathe", true},
		{"I Think I'm DYING", true},
		{"severe chest pain since breakfast", true},
		{"my vision going black when I stand", true},
		{"I keep having suicidal thoughts", true},
		{"he was vomiting blood last night", true},
		{"mild headache since morning", false},
		{"the chest physio went fine", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ContainsRedFlag(tc.text); got != tc.want {
			t.Fatalf("ContainsRedFlag(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestEmergencyDirectiveHasNoQuestion(t *testing.T) {
	if EmergencyDirective == "" {
		t.Fatalf("EmergencyDirective is empty")
	}
	for _, r := range EmergencyDirective {
		if r == '?' {
			t.Fatalf("EmergencyDirective must not contain a follow-up question: %q", EmergencyDirective)
		}
	}
}

func TestLooksLikeInternalEcho(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{`{"type":"client_audio_frame"}`, true},
		{"user-8f2e11", true},
		{"CC-PT-000123", true},
		{"  CC-PT-000123  ", true},
		{"I met a user today", false},
		{"my CC bill is high", false},
		{"hello doctor", false},
	}
	for _, tc := range cases {
		if got := LooksLikeInternalEcho(tc.text); got != tc.want {
			t.Fatalf("LooksLikeInternalEcho(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
