package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/middleware"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Send)
	r.Post("/bulk", h.SendBulk)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	return r
}

// POST /v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		SessionID string                   `json:"sessionId"`
		To        string                   `json:"to"`
		Content   protocol.OutgoingContent `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	record, err := h.messageService.Send(r.Context(), tenant.ID, service.SendMessageParams{
		SessionID: req.SessionID,
		To:        req.To,
		Content:   req.Content,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("tenantId", tenant.ID).
			Str("sessionId", req.SessionID).
			Msg("message send failed")
		writeError(w, err)
		return
	}

	if record == nil {
		// Sent, but no contact row to hang the record on.
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// POST /v1/messages/bulk
func (h *MessageHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		SessionID string                 `json:"sessionId"`
		Messages  []service.BulkSendItem `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages is required"})
		return
	}

	results := h.messageService.SendBulk(r.Context(), tenant.ID, req.SessionID, req.Messages)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /v1/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	pagination := ParsePagination(r)
	messages, err := h.messageService.List(r.Context(), model.ListMessagesParams{
		TenantID:  tenant.ID,
		ContactID: r.URL.Query().Get("contactId"),
		Direction: r.URL.Query().Get("direction"),
		Query:     r.URL.Query().Get("q"),
		Limit:     pagination.Limit,
		Offset:    pagination.Offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// GET /v1/messages/{id}
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	record, err := h.messageService.Get(r.Context(), tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
