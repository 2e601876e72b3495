// Package protocol defines the websocket wire format between call clients
// and the agent.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioFrame MessageType = "client_audio_frame"
	TypeClientLeave      MessageType = "client_leave"
	TypeAgentReply       MessageType = "agent_reply"
	TypeAgentAudio       MessageType = "agent_audio"
	TypeCallSummary      MessageType = "call_summary"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudioFrame carries one float32 PCM frame from a call participant.
type ClientAudioFrame struct {
	Type          MessageType `json:"type"`
	Identity      string      `json:"identity"`
	Seq           int         `json:"seq"`
	Float32Base64 string      `json:"float32_base64"`
	SampleRate    int         `json:"sample_rate"`
	TSMs          int64       `json:"ts_ms"`
}

// ClientLeave signals an explicit hang-up.
type ClientLeave struct {
	Type     MessageType `json:"type"`
	Identity string      `json:"identity"`
}

// AgentReply is the doctor's text reply plus fields extracted from the
// utterance it answers.
type AgentReply struct {
	Type      MessageType    `json:"type"`
	Identity  string         `json:"identity"`
	Utterance string         `json:"utterance"`
	Reply     string         `json:"reply"`
	Extracted map[string]any `json:"extracted"`
	TSMs      int64          `json:"ts_ms"`
}

// AgentAudio carries synthesized reply audio.
type AgentAudio struct {
	Type        MessageType `json:"type"`
	Identity    string      `json:"identity"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

// CallSummary is sent once when the participant's call is finalized.
type CallSummary struct {
	Type     MessageType `json:"type"`
	Identity string      `json:"identity"`
	Summary  string      `json:"summary"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Identity  string      `json:"identity"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound client payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioFrame:
		var msg ClientAudioFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Identity == "" || msg.Float32Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_frame")
		}
		return msg, nil
	case TypeClientLeave:
		var msg ClientLeave
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Identity == "" {
			return nil, errors.New("invalid client_leave")
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}
