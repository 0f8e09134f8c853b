package dealchat

import (
	"context"
	"strings"
	"time"

	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/metrics"
	"deal-assistant/internal/models"
)

// FallbackReply replaces the generated text when the generator fails.
const FallbackReply = "I am having trouble answering right now. Try again in a moment."

// ReplyGenerator turns an instruction plus draft context into the text shown
// to the user.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, instruction, draftContext string) (string, error)
}

// Reply is what a transport sends back for one turn.
type Reply struct {
	Message string
	Draft   *Draft
	Intent  Intent
	Deal    *models.Deal
}

// Service combines the engine with reply generation. The draft computed by
// the engine is returned whether or not generation succeeds.
type Service struct {
	engine    *Engine
	generator ReplyGenerator
	logger    logger.Logger
}

func NewService(engine *Engine, generator ReplyGenerator, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{engine: engine, generator: generator, logger: log}
}

// Reply runs one turn. transport labels metrics ("http", "zeebe").
//
// When the engine fails the returned Reply still holds the fallback text and
// the caller's draft, so transports can answer without special-casing; the
// error is returned alongside it.
func (s *Service) Reply(ctx context.Context, transport, message string, draft *Draft) (*Reply, error) {
	start := time.Now()
	defer func() {
		metrics.DealChatTurnDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	}()

	res, err := s.engine.Turn(ctx, message, draft)
	if err != nil {
		metrics.DealChatTurnErrors.WithLabelValues(transport, errors.Code(err)).Inc()
		return &Reply{Message: FallbackReply, Draft: draft}, err
	}
	metrics.DealChatTurns.WithLabelValues(transport, string(res.Intent)).Inc()

	return &Reply{
		Message: s.generate(ctx, res),
		Draft:   res.Draft,
		Intent:  res.Intent,
		Deal:    res.Deal,
	}, nil
}

func (s *Service) generate(ctx context.Context, res *Result) string {
	if s.generator == nil {
		return FallbackReply
	}

	text, err := s.generator.GenerateReply(ctx, res.Instruction, res.Context)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	if err == nil {
		err = errors.NewGenerationFailedError(errEmptyReply)
	}

	metrics.GenerationFailures.WithLabelValues(errors.Code(err)).Inc()
	s.logger.Warn("Reply generation failed, using fallback", map[string]interface{}{
		"intent": string(res.Intent),
		"error":  err.Error(),
	})
	return FallbackReply
}
