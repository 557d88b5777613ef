package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/middleware"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/service"
)

type TenantHandler struct {
	tenantService *service.TenantService
}

func NewTenantHandler(tenantService *service.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// Routes for the authenticated tenant surface. Creation is mounted
// separately because it happens before the tenant has a key.
func (h *TenantHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)
	r.Patch("/{id}/settings", h.UpdateSettings)

	return r
}

// POST /v1/tenants
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                 string  `json:"name"`
		WebhookURL           *string `json:"webhookUrl"`
		ReceiveGroupMessages bool    `json:"receiveGroupMessages"`
		AutoReconnect        bool    `json:"autoReconnect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	tenant, apiKey, err := h.tenantService.Create(r.Context(), service.CreateTenantParams{
		Name:                 req.Name,
		WebhookURL:           req.WebhookURL,
		ReceiveGroupMessages: req.ReceiveGroupMessages,
		AutoReconnect:        req.AutoReconnect,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"tenant": tenant,
		"apiKey": apiKey,
	})
}

// GET /v1/tenants/{id}
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	id := chi.URLParam(r, "id")
	if tenant == nil || tenant.ID != id {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
		return
	}

	result, err := h.tenantService.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PATCH /v1/tenants/{id}/settings
func (h *TenantHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	id := chi.URLParam(r, "id")
	if tenant == nil || tenant.ID != id {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
		return
	}

	var req model.UpdateTenantSettingsParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.tenantService.UpdateSettings(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/webhook/test
func (h *TenantHandler) TestWebhook(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if r.Body != nil {
		// Body is optional; an empty one probes the stored URL.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.tenantService.TestWebhook(r.Context(), tenant.ID, req.URL); err != nil {
		log.Warn().Err(err).Str("tenantId", tenant.ID).Msg("webhook test failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}
