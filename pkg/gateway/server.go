package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/haus-ai/concierge/internal/metrics"
)

const openaiMintURL = "https://api.openai.com/v1/realtime/sessions"

// Server mints ephemeral realtime credentials for concierge clients.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	mux      *http.ServeMux
	upstream *http.Client
}

// New creates a gateway server.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		mux:      http.NewServeMux(),
		upstream: &http.Client{Timeout: 15 * time.Second},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	s.mux.HandleFunc("/v1/realtime/sessions", s.handleMint)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type mintRequest struct {
	Model       string            `json:"model"`
	Voice       string            `json:"voice,omitempty"`
	CustomTools []json.RawMessage `json:"customTools,omitempty"`
}

// handleMint exchanges the server-held API key for a short-lived client
// secret. Tool definitions pass through untouched; the gateway has no
// opinion on the tool surface.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req mintRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.DefaultModel
	}
	if req.Voice == "" {
		req.Voice = s.cfg.DefaultVoice
	}

	switch s.cfg.Provider {
	case "gemini":
		// Gemini live sessions authenticate with the API key directly;
		// hand out a constrained key from config.
		writeJSON(w, http.StatusOK, map[string]any{
			"id":         "gemini-session",
			"model":      req.Model,
			"expires_at": time.Now().Add(10 * time.Minute).Unix(),
			"client_secret": map[string]any{
				"value": s.cfg.APIKey,
			},
		})
	default:
		s.mintOpenAI(w, r, req)
	}
}

func (s *Server) mintOpenAI(w http.ResponseWriter, r *http.Request, req mintRequest) {
	mintURL := s.cfg.MintURL
	if mintURL == "" {
		mintURL = openaiMintURL
	}

	payload, err := json.Marshal(map[string]any{
		"model": req.Model,
		"voice": req.Voice,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode mint request")
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, mintURL, bytes.NewReader(payload))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "build mint request")
		return
	}
	upstreamReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := s.upstream.Do(upstreamReq)
	if err != nil {
		s.logger.Error("provider mint unreachable", "error", err)
		if s.metrics != nil {
			s.metrics.RecordError("mint_unreachable")
		}
		writeError(w, http.StatusBadGateway, "provider unreachable")
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadGateway, "read provider response")
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("provider mint rejected", "status", resp.StatusCode)
		if s.metrics != nil {
			s.metrics.RecordError("mint_rejected")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message},
	})
}
