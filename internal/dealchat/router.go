package dealchat

import (
	"regexp"
)

// Intent is the classification of one turn.
type Intent string

const (
	IntentEmpty   Intent = "empty"
	IntentStart   Intent = "start"
	IntentRestart Intent = "restart"
	IntentRecap   Intent = "recap"
	IntentChange  Intent = "change"
	IntentAnswer  Intent = "answer"
)

// changeableFields are the slots that can be edited mid-flow, in detection
// order.
var changeableFields = []Step{StepAmount, StepStage, StepCloseDate}

var (
	inlineAmountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	inlineDatePattern   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// ChangeRequest is a detected mid-flow edit of one field.
type ChangeRequest struct {
	Field Step
	Value string
}

// HasValue reports whether a new value was found in the same message.
func (c ChangeRequest) HasValue() bool {
	return c.Value != ""
}

// IntentRouter classifies turns using only the keyword tables.
type IntentRouter struct {
	kw      *Keywords
	parsers *FieldParsers
}

func NewIntentRouter(kw *Keywords, parsers *FieldParsers) *IntentRouter {
	return &IntentRouter{kw: kw, parsers: parsers}
}

// Classify applies restart > recap > change-request > step answer. A nil
// draft is always a fresh start. Change requests are not honored once the
// deal is committed.
func (r *IntentRouter) Classify(message string, draft *Draft) (Intent, *ChangeRequest) {
	u := newUtterance(message)

	switch {
	case u.empty():
		return IntentEmpty, nil
	case draft == nil:
		return IntentStart, nil
	case r.IsRestart(u):
		return IntentRestart, nil
	case r.IsRecap(u):
		return IntentRecap, nil
	}

	if draft.Step != StepDone {
		if cr, ok := r.DetectChange(u, draft); ok {
			return IntentChange, cr
		}
	}
	return IntentAnswer, nil
}

// IsRestart is an exact, case-insensitive phrase match.
func (r *IntentRouter) IsRestart(u utterance) bool {
	return r.kw.restart.equals(u)
}

// IsRecap matches a recap keyword, or a question cue together with any
// field synonym.
func (r *IntentRouter) IsRecap(u utterance) bool {
	if r.kw.recap.contains(u) {
		return true
	}
	if !r.kw.questionCues.contains(u) {
		return false
	}
	for _, field := range r.kw.fields {
		if field.contains(u) {
			return true
		}
	}
	return false
}

// DetectChange looks for an edit of amount, stage or close date. A field
// mention counts when a change trigger is present, or when the field already
// has a value and the conversation is on some other step.
func (r *IntentRouter) DetectChange(u utterance, draft *Draft) (*ChangeRequest, bool) {
	trigger := r.kw.changeTriggers.contains(u)

	for _, field := range changeableFields {
		if !r.kw.fields[field].contains(u) {
			continue
		}
		if !trigger && !(draft.Filled(field) && draft.Step != field) {
			continue
		}
		return &ChangeRequest{Field: field, Value: r.extract(field, u)}, true
	}
	return nil, false
}

func (r *IntentRouter) extract(field Step, u utterance) string {
	switch field {
	case StepAmount:
		// last number wins: "from 4,000 to 5,000" means 5,000
		withoutDates := inlineDatePattern.ReplaceAllString(u.raw, " ")
		matches := inlineAmountPattern.FindAllString(withoutDates, -1)
		if len(matches) > 0 {
			return matches[len(matches)-1]
		}
	case StepStage:
		if st, ok := r.parsers.Stage(u.raw); ok {
			return string(st)
		}
	case StepCloseDate:
		return inlineDatePattern.FindString(u.raw)
	}
	return ""
}
