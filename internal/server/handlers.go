package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/validation"
	"deal-assistant/internal/dealchat"
)

const defaultMaxBodyBytes = 64 << 10

var dealChatRequestSchema = validation.JSONSchema{
	Type: validation.Type("object"),
	Properties: map[string]validation.Property{
		"message": {
			Type:        validation.Type("string"),
			Description: "User's chat message for this turn",
			MaxLength:   validation.Int(4000),
		},
		"deal_state": {
			Type:        validation.Type("object", "null"),
			Description: "Draft returned by the previous turn, or null",
		},
	},
	Required:             []string{"message"},
	AdditionalProperties: true,
}

type dealChatRequest struct {
	Message   string          `json:"message"`
	DealState json.RawMessage `json:"deal_state"`
}

type dealChatResponse struct {
	AIMessage string          `json:"ai_message"`
	DealState *dealchat.Draft `json:"deal_state"`
}

func (s *Server) handleDealChat(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return
	}

	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError("body is not valid JSON"))
		return
	}
	result, err := s.validator.ValidateJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return
	}
	if !result.Valid {
		writeError(w, http.StatusBadRequest, errors.NewInputValidationFailedError(result.Error()))
		return
	}

	var req dealChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return
	}

	var draft *dealchat.Draft
	if raw := bytes.TrimSpace(req.DealState); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		draft = &dealchat.Draft{}
		if err := json.Unmarshal(raw, draft); err != nil {
			writeError(w, http.StatusBadRequest, errors.NewInvalidDealStateError(err))
			return
		}
	}

	ctx := r.Context()
	if t := config.GetDuration(s.cfg.TurnTimeout); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	reply, err := s.svc.Reply(ctx, transportHTTP, req.Message, draft)
	if err != nil {
		// dialog-level failures are answered in the conversation
		s.logger.Warn("Turn failed, replying with fallback", map[string]interface{}{
			"requestId": requestIDFrom(r.Context()),
			"errorCode": errors.Code(err),
			"error":     err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, dealChatResponse{
		AIMessage: reply.Message,
		DealState: reply.Draft,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *errors.StandardError) {
	writeJSON(w, status, map[string]interface{}{"error": err})
}
