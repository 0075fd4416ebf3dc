package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/devashq/intervoice/internal/audiostore"
	"github.com/devashq/intervoice/internal/config"
	"github.com/devashq/intervoice/internal/fault"
	"github.com/devashq/intervoice/internal/interview"
	"github.com/devashq/intervoice/internal/observability"
	"github.com/devashq/intervoice/internal/pipeline"
	"github.com/devashq/intervoice/internal/session"
	"github.com/devashq/intervoice/internal/transcript"
)

const maxUploadBytes = 32 << 20

// TurnProcessor is the pipeline surface the API depends on.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID string, audio []byte, filename string) (pipeline.Result, error)
	Progress(ctx context.Context, sessionID string) (interview.Progress, error)
	Transcript(ctx context.Context, sessionID string) ([]transcript.Turn, error)
	Delivery() pipeline.DeliveryMode
}

type Server struct {
	cfg        config.Config
	sessions   *session.Manager
	processor  TurnProcessor
	audioClips audiostore.Store
	feed       *pipeline.Feed
	metrics    *observability.Metrics
}

func New(
	cfg config.Config,
	sessions *session.Manager,
	processor TurnProcessor,
	audioClips audiostore.Store,
	feed *pipeline.Feed,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:        cfg,
		sessions:   sessions,
		processor:  processor,
		audioClips: audioClips,
		feed:       feed,
		metrics:    metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	allowed := strings.TrimSpace(s.cfg.AllowedOrigin)
	if allowed == "" {
		allowed = "*"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowed},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: allowed != "*",
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Post("/", s.handleRoot)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/transcribe", s.handleTranscribe)

	r.Post("/v1/interviews", s.handleCreateInterview)
	r.Get("/v1/interviews/{id}", s.handleGetInterview)
	r.Get("/v1/interviews/{id}/transcript", s.handleGetTranscript)
	r.Get("/v1/interviews/{id}/events", s.handleEventsWS)
	r.Get("/v1/audio/{id}", s.handleGetAudio)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "intervoice interview service is running")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"active_interviews": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"audio_delivery": string(s.processor.Delivery()),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type transcribeResponse struct {
	SessionID     string `json:"session_id"`
	Transcription string `json:"transcription"`
	AIResponse    string `json:"ai_response"`
	AudioFileURL  string `json:"audio_file_url,omitempty"`
	Concluded     bool   `json:"concluded"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with an audio field")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_audio", "form field 'audio' is required")
		return
	}
	defer file.Close()

	audioBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_audio", "could not read audio upload")
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))

	result, err := s.processor.ProcessTurn(r.Context(), sessionID, audioBytes, header.Filename)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	if result.AudioURL != "" {
		respondJSON(w, http.StatusOK, transcribeResponse{
			SessionID:     result.SessionID,
			Transcription: result.Transcription,
			AIResponse:    result.ReplyText,
			AudioFileURL:  result.AudioURL,
			Concluded:     result.Concluded,
		})
		return
	}

	w.Header().Set("Content-Type", result.AudioContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="response.mp3"`)
	w.Header().Set("X-Session-Id", result.SessionID)
	w.Header().Set("X-Transcription", sanitizeHeaderValue(result.Transcription))
	w.Header().Set("X-AI-Response", sanitizeHeaderValue(result.ReplyText))
	if result.Concluded {
		w.Header().Set("X-Interview-Concluded", "true")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	s.metrics.ActiveInterviews.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}

	progress, err := s.processor.Progress(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session":  sess,
		"progress": progress,
	})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}

	turns, err := s.processor.Transcript(r.Context(), id)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	if turns == nil {
		turns = []transcript.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	if s.audioClips == nil {
		respondError(w, http.StatusNotFound, "audio_not_found", "audio storage is not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	clip, err := s.audioClips.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audiostore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "audio_not_found", "audio clip not found or expired")
			return
		}
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	ct := clip.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="response.mp3"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Data)
}

func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	if fault.IsInput(err) {
		respondError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if stage, ok := fault.UpstreamStage(err); ok {
		respondError(w, http.StatusBadGateway, "upstream_"+string(stage), err.Error())
		return
	}
	if errors.Is(err, session.ErrNotFound) {
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "processing_error", err.Error())
}

// sanitizeHeaderValue keeps transcript text legal inside an HTTP header.
func sanitizeHeaderValue(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	if len(v) > 1024 {
		v = v[:1024]
	}
	return v
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
