package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/everafter-app/server/internal/concierge/graph"
	"github.com/everafter-app/server/internal/concierge/model"
	errx "github.com/everafter-app/server/internal/core/error"
	logx "github.com/everafter-app/server/pkg/logger"
)

const maxRequestBodySize = 1 << 20 // 1MB

type chatRequest struct {
	Message        *string `json:"message"`
	ConversationID *string `json:"conversationId"`
}

type chatResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleChat runs one concierge turn. A null conversation id starts a new
// conversation; a null message on a fresh conversation produces the opening
// greeting.
func handleChat(runner graph.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session", "")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}

		conversationID := ""
		if req.ConversationID != nil {
			conversationID = strings.TrimSpace(*req.ConversationID)
		}
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		message := ""
		if req.Message != nil {
			message = strings.TrimSpace(*req.Message)
		}

		reply, err := runner.Invoke(r.Context(), model.ChatInput{
			TenantID:       tenant.ID,
			ConversationID: conversationID,
			Message:        message,
		})
		if err != nil {
			logx.Error().
				Err(err).
				Str("tenant_id", tenant.ID).
				Str("conversation_id", conversationID).
				Msg("concierge turn failed")
			writeAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			Message:        reply,
			ConversationID: conversationID,
		})
	}
}

// handleKernel returns the tenant's current kernel snapshot. Before the first
// onboarding interaction this is an empty fact sheet, not an error.
func handleKernel(kernels model.KernelRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session", "")
			return
		}

		k, err := kernels.KernelByTenant(r.Context(), tenant.ID)
		if errors.Is(err, model.ErrNotFound) {
			k = model.NewWeddingKernel(tenant.ID)
		} else if err != nil {
			logx.Error().Err(err).Str("tenant_id", tenant.ID).Msg("kernel load failed")
			writeAppError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, k)
	}
}

// handleResetConversation clears a conversation's history so onboarding can
// restart. The kernel is untouched. A conversation owned by another tenant is
// a 404, indistinguishable from one that never existed.
func handleResetConversation(conversations model.ConversationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing session", "")
			return
		}

		conversationID := chi.URLParam(r, "conversationID")
		if conversationID == "" {
			writeError(w, http.StatusBadRequest, "missing conversation id", "")
			return
		}

		if err := conversations.ClearHistory(r.Context(), tenant.ID, conversationID); err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				logx.Error().Err(err).Str("conversation_id", conversationID).Msg("conversation reset failed")
			}
			writeAppError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeAppError maps pipeline errors onto the response envelope: AppError
// keeps its status and safe message, anything else is an opaque 500.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		writeError(w, appErr.Status, appErr.Message, "")
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", "")
		return
	}
	writeError(w, http.StatusInternalServerError, errx.SystemErrorMessage, "")
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}
