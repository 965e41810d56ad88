package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"voicebridge/internal/domain"
	"voicebridge/internal/providers/azure"
	"voicebridge/internal/usecase"
)

const maxBodySize = 1 << 20

// TokenSource exposes the current ICE token for client-side WebRTC setup.
type TokenSource interface {
	ClientToken() (azure.IceToken, bool)
}

// Handler holds the dependencies for the control-plane routes.
type Handler struct {
	Controller *usecase.SessionController
	Tokens     TokenSource
	Log        *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var cfg domain.SessionConfig
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&cfg); err != nil {
		h.writeError(w, domain.ErrInvalidConfig)
		return
	}

	summary, err := h.Controller.CreateSession(r.Context(), cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, summary)
}

// GetSession handles GET /api/v1/sessions/{code}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Controller.GetSession(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// EndSession handles DELETE /api/v1/sessions/{code}.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.Controller.EndSession(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "sessionCode": code})
}

// StartTranslation handles POST /api/v1/sessions/{code}/translation/start.
func (h *Handler) StartTranslation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var body struct {
		ConnectionID string `json:"connectionId"`
	}
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body)
	if body.ConnectionID == "" {
		body.ConnectionID = r.Header.Get("Connection-Id")
	}

	if err := h.Controller.StartTranslation(r.Context(), code, body.ConnectionID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "started", "sessionCode": code})
}

// StopTranslation handles POST /api/v1/sessions/{code}/translation/stop.
// Stopping an inactive session succeeds.
func (h *Handler) StopTranslation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if err := h.Controller.StopTranslation(r.Context(), code); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "sessionCode": code})
}

// ConnectListenerAvatar handles POST /api/v1/sessions/{code}/avatar. The
// body is the viewer's SDP offer; the answer comes back as plain text, both
// opaque to this server.
func (h *Handler) ConnectListenerAvatar(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	connectionID := strings.TrimSpace(r.Header.Get("Connection-Id"))

	offer, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, domain.ErrInvalidOffer)
		return
	}

	answer, err := h.Controller.ConnectListenerAvatar(r.Context(), code, connectionID, string(offer))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(answer))
}

// PushAudio handles POST /api/v1/sessions/{code}/audio. Fire-and-forget:
// the response never reports whether the frame reached an active channel.
func (h *Handler) PushAudio(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	frame, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err == nil && len(frame) > 0 {
		h.Controller.PushAudio(code, frame)
	}
	w.WriteHeader(http.StatusAccepted)
}

// IceToken handles GET /api/v1/ice-token.
func (h *Handler) IceToken(w http.ResponseWriter, r *http.Request) {
	token, ok := h.Tokens.ClientToken()
	if !ok {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "ice token not available yet",
			Kind:  "upstream_unavailable",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, token)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Warn("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrTranslationActive):
		status, kind = http.StatusConflict, "already_active"
	case errors.Is(err, domain.ErrInvalidConfig):
		status, kind = http.StatusBadRequest, "invalid_config"
	case errors.Is(err, domain.ErrInvalidOffer):
		status, kind = http.StatusBadRequest, "invalid_offer"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status, kind = http.StatusBadGateway, "upstream_unavailable"
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}
