// internal/handler/prompt_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"agent-wallet-service/internal/agent"
	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/metrics"
	"agent-wallet-service/pkg/response"

	"go.uber.org/zap"
)

type PromptHandler struct {
	prompts agent.PromptService
	logger  *zap.Logger
}

func NewPromptHandler(prompts agent.PromptService, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		prompts: prompts,
		logger:  logger,
	}
}

type promptError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HandlePrompt serves POST /prompt for the web front end.
func (h *PromptHandler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer func() {
		metrics.AgentRequestDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	}()

	var req agent.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		metrics.AgentRequestsTotal.WithLabelValues("invalid").Inc()
		response.Raw(w, http.StatusBadRequest, promptError{Error: "Invalid message parameter"})
		return
	}

	h.logger.Info("prompt received",
		zap.String("thread_id", req.ThreadID),
		zap.Bool("has_wallet", req.WalletAddress != ""))

	resp, err := h.prompts.SendPrompt(ctx, req)
	if errors.Is(err, domain.ErrInvalidInput) {
		metrics.AgentRequestsTotal.WithLabelValues("invalid").Inc()
		response.Raw(w, http.StatusBadRequest, promptError{Error: "Invalid message parameter"})
		return
	}
	if err != nil {
		metrics.AgentRequestsTotal.WithLabelValues("error").Inc()
		h.logger.Error("prompt failed",
			zap.String("thread_id", req.ThreadID),
			zap.Error(err))
		response.Raw(w, http.StatusInternalServerError, promptError{
			Error:   "Internal Server Error",
			Details: err.Error(),
		})
		return
	}

	metrics.AgentRequestsTotal.WithLabelValues("ok").Inc()
	response.Raw(w, http.StatusOK, resp)
}
