// Package httpapi exposes the agent over REST and a websocket call
// transport.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/agent"
	"github.com/careconnect-health/careconnect/internal/call"
	"github.com/careconnect-health/careconnect/internal/config"
	"github.com/careconnect-health/careconnect/internal/observability"
	"github.com/careconnect-health/careconnect/internal/protocol"
	"github.com/careconnect-health/careconnect/internal/voice"
)

// AgentService is the orchestration surface the transport needs.
type AgentService interface {
	HandleUserMessage(ctx context.Context, identity, text string) agent.Result
	FinalizeCall(ctx context.Context, identity string) string
}

type Server struct {
	cfg         config.Config
	registry    *call.Registry
	svc         AgentService
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	gate        *voice.SpeakingGate
	metrics     *observability.Metrics
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

func New(
	cfg config.Config,
	registry *call.Registry,
	svc AgentService,
	transcriber voice.Transcriber,
	synthesizer voice.Synthesizer,
	gate *voice.SpeakingGate,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		registry:    registry,
		svc:         svc,
		transcriber: transcriber,
		synthesizer: synthesizer,
		gate:        gate,
		metrics:     metrics,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a call unless the
				// deployment explicitly opens it up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/agent/message", s.handleAgentMessage)
	r.Post("/v1/agent/finalize", s.handleFinalize)
	r.Post("/v1/agent/speech", s.handleSpeech)
	r.Get("/v1/call/ws", s.handleCallWS)
	r.Get("/v1/debug/latency", s.handleLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"active_participants": s.registry.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil || s.metrics.Stages == nil {
		respondJSON(w, http.StatusOK, observability.StageSnapshot{})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.Stages.Snapshot())
}

type messageRequest struct {
	PatientID string `json:"patient_id"`
	Text      string `json:"text"`
}

func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.PatientID) == "" {
		respondError(w, http.StatusBadRequest, "missing_patient_id", "patient_id is required")
		return
	}

	result := s.svc.HandleUserMessage(r.Context(), req.PatientID, req.Text)
	respondJSON(w, http.StatusOK, result)
}

type finalizeRequest struct {
	PatientID string `json:"patient_id"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.PatientID) == "" {
		respondError(w, http.StatusBadRequest, "missing_patient_id", "patient_id is required")
		return
	}

	summary := s.svc.FinalizeCall(r.Context(), req.PatientID)
	resp := map[string]any{"summary": nil}
	if summary != "" {
		resp["summary"] = summary
	}
	respondJSON(w, http.StatusOK, resp)
}

type speechRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "missing_text", "text is required")
		return
	}

	// The segmenter must not hear the agent's own voice while clients play
	// this audio back into the room.
	s.gate.Set(true)
	defer s.gate.Set(false)

	audio, err := s.synthesizer.Synthesize(r.Context(), req.Text)
	if err != nil {
		respondError(w, http.StatusBadGateway, "tts_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" {
		respondError(w, http.StatusBadRequest, "missing_identity", "query parameter identity is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	participant := s.registry.Join(identity)
	s.metrics.SetActiveParticipants(s.registry.ActiveCount())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)

	segmenter := voice.NewSegmenter(
		s.cfg.SilenceWindow, s.cfg.SampleRate, s.cfg.AgentIdentity,
		s.gate, s.transcriber,
		func(ctx context.Context, identity, text string) {
			s.deliverReply(ctx, identity, text, outbound)
		},
		func(ctx context.Context, identity string) {
			summary := s.svc.FinalizeCall(ctx, identity)
			enqueue(outbound, protocol.CallSummary{
				Type:     protocol.TypeCallSummary,
				Identity: identity,
				Summary:  summary,
			})
		},
		s.log,
	)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			enqueue(outbound, protocol.ErrorEvent{
				Type:     protocol.TypeErrorEvent,
				Identity: identity,
				Code:     "invalid_client_message",
				Detail:   err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.ClientAudioFrame:
			frame, err := base64.StdEncoding.DecodeString(msg.Float32Base64)
			if err != nil {
				enqueue(outbound, protocol.ErrorEvent{
					Type:     protocol.TypeErrorEvent,
					Identity: msg.Identity,
					Code:     "invalid_audio_frame",
					Detail:   "audio payload is not valid base64",
				})
				continue
			}
			_ = s.registry.Touch(participant.ID)
			segmenter.PushFrame(msg.Identity, frame)
		case protocol.ClientLeave:
			break readLoop
		}
	}

	segmenter.Disconnect(identity)
	_, _ = s.registry.Leave(participant.ID)
	s.metrics.SetActiveParticipants(s.registry.ActiveCount())

	cancel()
	<-writerDone
}

// deliverReply runs the turn and pushes the reply, plus synthesized audio
// when a synthesizer is configured.
func (s *Server) deliverReply(ctx context.Context, identity, text string, outbound chan<- any) {
	result := s.svc.HandleUserMessage(ctx, identity, text)
	enqueue(outbound, protocol.AgentReply{
		Type:      protocol.TypeAgentReply,
		Identity:  identity,
		Utterance: text,
		Reply:     result.Reply,
		Extracted: result.Extracted,
		TSMs:      time.Now().UnixMilli(),
	})

	if s.synthesizer == nil {
		return
	}
	s.gate.Set(true)
	audio, err := s.synthesizer.Synthesize(ctx, result.Reply)
	s.gate.Set(false)
	if err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("reply synthesis failed")
		return
	}
	if len(audio) == 0 {
		return
	}
	enqueue(outbound, protocol.AgentAudio{
		Type:        protocol.TypeAgentAudio,
		Identity:    identity,
		Format:      "mp3",
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	})
}

// enqueue keeps websocket writes single-threaded; drops when the outbound
// queue is saturated.
func enqueue(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Error: detail, Code: code})
}
