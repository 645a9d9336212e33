package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomwolfe/storefront/internal/audit"
	"github.com/tomwolfe/storefront/internal/httputil"
	"github.com/tomwolfe/storefront/internal/identity"
	"github.com/tomwolfe/storefront/internal/tools"
)

type toolCallRequest struct {
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

type toolListing struct {
	Tools []tools.Spec `json:"tools"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, toolListing{Tools: s.registry.List()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller := s.resolver.Resolve(r)

	auditEvent := audit.ToolCallCompletion{
		RequestID:    httputil.RequestIDFromContext(r.Context()),
		CallerID:     caller.UserID,
		CallerSource: string(caller.Source),
		Result:       "error",
	}
	defer func() {
		auditEvent.Duration = time.Since(started)
		s.audit.Complete(auditEvent)
	}()

	// The gate only fast-tracks valid-secret calls; anything else reaching
	// here in identity-aware mode still needs a resolved caller.
	decision := gateDecisionFromContext(r.Context())
	if s.cfg.ProviderConfigured() && !decision.SecretPresented && caller.Source == identity.SourceNone {
		auditEvent.ErrorDetail = "no credential for tool call"
		auditEvent.ResponseCode = http.StatusUnauthorized
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req toolCallRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		auditEvent.ErrorDetail = err.Error()
		auditEvent.ResponseCode = http.StatusBadRequest
		httputil.RespondErrorf(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	toolName := strings.TrimSpace(req.Tool)
	auditEvent.ToolName = toolName
	recordToolTargets(&auditEvent, toolName, req.Params)

	s.logger.Info().Str("tool", toolName).Str("caller_source", string(caller.Source)).Msg("received tool call")

	result, err := s.dispatcher.Dispatch(r.Context(), toolName, req.Params)
	if err != nil {
		status := toolErrorStatus(err)
		auditEvent.ErrorDetail = err.Error()
		auditEvent.ResponseCode = status
		httputil.RespondError(w, status, err.Error())
		return
	}

	auditEvent.ResponseCode = http.StatusOK
	if result.IsError {
		auditEvent.Result = "business_failure"
		if len(result.Content) > 0 {
			auditEvent.ErrorDetail = result.Content[0].Text
		}
	} else {
		auditEvent.Result = "success"
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "unreadable webhook payload")
		return
	}
	s.logger.Info().
		Str("request_id", httputil.RequestIDFromContext(r.Context())).
		Int("payload_bytes", len(payload)).
		Msg("webhook received")
	httputil.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type statusCoder interface {
	StatusCode() int
}

func toolErrorStatus(err error) int {
	var withStatus statusCoder
	if err != nil && errors.As(err, &withStatus) {
		status := withStatus.StatusCode()
		if status >= 400 && status <= 599 {
			return status
		}
	}
	return http.StatusInternalServerError
}

// recordToolTargets extracts audit identifiers from raw params without
// logging the payload itself. Malformed params are left to the dispatcher.
func recordToolTargets(event *audit.ToolCallCompletion, toolName string, raw json.RawMessage) {
	if toolName != tools.ToolReserveStockItem || len(raw) == 0 {
		return
	}
	var targets struct {
		ProductID string `json:"product_id"`
		StoreID   string `json:"store_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.Unmarshal(raw, &targets); err != nil {
		return
	}
	event.ProductID = strings.TrimSpace(targets.ProductID)
	event.StoreID = strings.TrimSpace(targets.StoreID)
	event.Quantity = targets.Quantity
}
