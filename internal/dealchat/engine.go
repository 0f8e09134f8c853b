package dealchat

import (
	"context"
	"time"

	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/observability"
	"deal-assistant/internal/models"
)

// Store is everything the engine needs from the record store.
type Store interface {
	OrganizationStore
	DealStore
}

type Options struct {
	Store          Store
	Keywords       *Keywords
	Publisher      DealPublisher
	Logger         logger.Logger
	Observability  *observability.Observability
	MaxCandidates  int
	MinTitleLength int
}

// Result is the outcome of one turn before text generation.
type Result struct {
	Instruction string
	// Context is the draft summary handed to the generator with the
	// instruction.
	Context string
	Draft   *Draft
	Intent  Intent
	// Deal is set only on the turn that committed.
	Deal *models.Deal
}

// Engine classifies a turn and routes it to recap, change handling or the
// current step handler. It keeps no state between turns.
type Engine struct {
	router  *IntentRouter
	machine *DialogStateMachine
	logger  logger.Logger
	obs     *observability.Observability
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.NewConfigurationError("dealchat: store is required")
	}
	kw := opts.Keywords
	if kw == nil {
		var err error
		if kw, err = DefaultKeywords(); err != nil {
			return nil, errors.NewConfigurationError("dealchat: " + err.Error())
		}
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	parsers := NewFieldParsers(kw, opts.MinTitleLength)
	resolver := NewEntityResolver(opts.Store, kw, opts.MaxCandidates)
	commit := NewCommitEngine(opts.Store, opts.Publisher, kw, log)

	return &Engine{
		router:  NewIntentRouter(kw, parsers),
		machine: NewDialogStateMachine(parsers, resolver, commit, kw),
		logger:  log,
		obs:     opts.Observability,
	}, nil
}

// Turn processes one message. The supplied draft is never modified; the
// result carries a new one. On a store failure the error has code
// STORE_UNAVAILABLE (or the store's own code) and no result is returned.
func (e *Engine) Turn(ctx context.Context, message string, draft *Draft) (*Result, error) {
	start := time.Now()
	intent, change := e.router.Classify(message, draft)

	res := &Result{Intent: intent}
	var err error

	switch intent {
	case IntentEmpty:
		res.Instruction = instrEmptyMessage
		res.Draft = draft.Clone()

	case IntentStart:
		res.Instruction = instrStart
		res.Draft = NewDraft()

	case IntentRestart:
		res.Instruction = instrRestart
		res.Draft = NewDraft()

	case IntentRecap:
		res.Instruction = instrRecap(Summarize(draft))
		res.Draft = draft.Clone()

	case IntentChange:
		d := draft.Clone()
		res.Instruction, res.Deal, err = e.applyChange(ctx, d, change)
		res.Draft = d

	default:
		d := draft.Clone()
		res.Instruction, res.Deal, err = e.machine.Handle(ctx, message, d)
		res.Draft = d
	}

	if err != nil {
		e.logger.Error("Deal chat turn failed", map[string]interface{}{
			"intent": string(intent),
			"step":   stepOf(draft),
			"error":  err.Error(),
		})
		if !errors.IsStandardError(err) {
			err = errors.NewStoreUnavailableError("deal chat turn", err)
		}
		return nil, err
	}

	res.Context = contextFor(res.Draft)

	e.obs.RecordTurn(ctx, stepOf(res.Draft), string(intent), time.Since(start))
	if from, to := stepOf(draft), stepOf(res.Draft); from != to {
		e.obs.RecordTransition(ctx, from, to)
	}

	e.logger.Debug("Deal chat turn processed", map[string]interface{}{
		"intent":   string(intent),
		"fromStep": stepOf(draft),
		"toStep":   stepOf(res.Draft),
	})
	return res, nil
}

// applyChange redirects to the edited field and, when the message carried a
// value, runs that field's handler with it right away.
func (e *Engine) applyChange(ctx context.Context, d *Draft, cr *ChangeRequest) (string, *models.Deal, error) {
	if d.Step == StepCompany && cr.Field != StepCompany {
		d.ClearPending()
	}
	d.Step = cr.Field

	if !cr.HasValue() {
		return instrChangeAsk(cr.Field), nil, nil
	}
	return e.machine.Handle(ctx, cr.Value, d)
}

func contextFor(d *Draft) string {
	return "Current deal information:\n" + Summarize(d)
}

func stepOf(d *Draft) string {
	if d == nil {
		return "none"
	}
	return string(d.Step)
}
