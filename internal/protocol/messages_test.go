package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageAudioFrame(t *testing.T) {
	raw := []byte(`{"type":"client_audio_frame","identity":"CC-PT-000123","seq":1,"float32_base64":"AQIDBA==","sample_rate":48000,"ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	frame, ok := msg.(ClientAudioFrame)
	if !ok {
		t.Fatalf("message type = %T, want ClientAudioFrame", msg)
	}
	if frame.Identity != "CC-PT-000123" || frame.SampleRate != 48000 {
		t.Fatalf("unexpected audio frame: %+v", frame)
	}
}

func TestParseClientMessageLeave(t *testing.T) {
	raw := []byte(`{"type":"client_leave","identity":"user-1"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	leave, ok := msg.(ClientLeave)
	if !ok {
		t.Fatalf("message type = %T, want ClientLeave", msg)
	}
	if leave.Identity != "user-1" {
		t.Fatalf("Identity = %q, want user-1", leave.Identity)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsInvalidFrame(t *testing.T) {
	raw := []byte(`{"type":"client_audio_frame","identity":"","float32_base64":"AQID","sample_rate":48000}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatal("expected error for missing identity")
	}

	raw = []byte(`{"type":"client_audio_frame","identity":"u1","float32_base64":"AQID","sample_rate":0}`)
	if _, err := ParseClientMessage(raw); err == nil {
		t.Fatal("expected error for invalid sample rate")
	}
}

func TestParseClientMessageBadJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
