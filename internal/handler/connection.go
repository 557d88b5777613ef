package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/gateway"
	"github.com/wagate/gateway-server-go/internal/middleware"
)

type ConnectionHandler struct {
	supervisor *gateway.Supervisor
}

func NewConnectionHandler(supervisor *gateway.Supervisor) *ConnectionHandler {
	return &ConnectionHandler{supervisor: supervisor}
}

func (h *ConnectionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.Stats)
	r.Get("/{sessionId}", h.Status)
	r.Delete("/{sessionId}", h.Disconnect)
	r.Post("/{sessionId}/reconnect", h.Reconnect)

	return r
}

// POST /v1/connections
// Starts (or resumes) a session. QR mode by default; pairing-code mode
// when usePairingCode is set.
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		SessionID      string `json:"sessionId"`
		UsePairingCode bool   `json:"usePairingCode"`
		PhoneNumber    string `json:"phoneNumber"`
	}
	if r.Body != nil {
		// An empty body starts a fresh QR session.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	snapshot, err := h.supervisor.CreateConnection(r.Context(), tenant.ID, gateway.ConnectOptions{
		SessionID:      req.SessionID,
		UsePairingCode: req.UsePairingCode,
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID).Msg("failed to create connection")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

// GET /v1/connections/{sessionId}
func (h *ConnectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	snapshot, err := h.supervisor.ConnectionStatus(r.Context(), tenant.ID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// DELETE /v1/connections/{sessionId}
// Logs the session out and purges its credentials.
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if err := h.supervisor.DisconnectSession(r.Context(), tenant.ID, sessionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// POST /v1/connections/{sessionId}/reconnect
func (h *ConnectionHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	if err := h.supervisor.ForceReconnect(r.Context(), tenant.ID, sessionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reconnecting"})
}

// GET /v1/connections
func (h *ConnectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.ConnectionStats())
}
