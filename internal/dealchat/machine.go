package dealchat

import (
	"context"
	"fmt"

	"deal-assistant/internal/models"
)

// DialogStateMachine owns the step sequence. Each handler validates one
// slot, updates the draft and picks the next step.
type DialogStateMachine struct {
	parsers  *FieldParsers
	resolver *EntityResolver
	commit   *CommitEngine
	kw       *Keywords
}

func NewDialogStateMachine(parsers *FieldParsers, resolver *EntityResolver, commit *CommitEngine, kw *Keywords) *DialogStateMachine {
	return &DialogStateMachine{parsers: parsers, resolver: resolver, commit: commit, kw: kw}
}

// Handle runs the handler for d.Step against text.
//
// deal is non-nil only on the turn that commits.
func (m *DialogStateMachine) Handle(ctx context.Context, text string, d *Draft) (instruction string, deal *models.Deal, err error) {
	switch d.Step {
	case StepTitle:
		title, ok := m.parsers.Title(text)
		if !ok {
			return instrTitleTooShort(m.parsers.minTitleLength), nil, nil
		}
		d.Title = &title
		return instrSaved("title", m.moveOn(d, StepTitle)), nil, nil

	case StepCompany:
		ack, resolved, err := m.resolver.Resolve(ctx, text, d)
		if err != nil || !resolved {
			return ack, nil, err
		}
		return ack + " " + m.moveOn(d, StepCompany), nil, nil

	case StepAmount:
		amount, err := m.parsers.Amount(text)
		if err != nil {
			return instrAmountInvalid(err), nil, nil
		}
		d.Amount = &amount
		return instrSaved(fmt.Sprintf("amount of %s", amount.Format()), m.moveOn(d, StepAmount)), nil, nil

	case StepStage:
		stage, ok := m.parsers.Stage(text)
		if !ok {
			return instrStageInvalid(), nil, nil
		}
		d.Stage = &stage
		return instrSaved(fmt.Sprintf("stage %s", stage), m.moveOn(d, StepStage)), nil, nil

	case StepCloseDate:
		date, skipped, err := m.parsers.CloseDate(text)
		if err != nil {
			return instrDateInvalid, nil, nil
		}
		if skipped {
			d.CloseDate = nil
			return instrDateSkipped(m.moveOn(d, StepCloseDate)), nil, nil
		}
		d.CloseDate = &date
		return instrSaved(fmt.Sprintf("close date %s", date), m.moveOn(d, StepCloseDate)), nil, nil

	case StepContacts:
		d.Contacts = m.parsers.ContactIDs(text)
		// drafts come from the client; never commit a partial one
		if missing, ok := d.firstMissing(); ok {
			d.Step = missing
			return instrMissingBeforeCommit + " " + instrAsk(missing), nil, nil
		}
		return m.commit.Commit(ctx, d)

	default:
		return instrClosed(m.kw.RestartHint()), nil, nil
	}
}

// moveOn advances d past from and returns the question for the new step.
func (m *DialogStateMachine) moveOn(d *Draft, from Step) string {
	d.Step = advance(d, from)
	return instrAsk(d.Step)
}

// advance picks the step after a slot was filled: the earliest unset
// required slot, else the step after from, skipping slots that already
// hold a value. Inline and two-turn edits land on the same step.
func advance(d *Draft, from Step) Step {
	if missing, ok := d.firstMissing(); ok {
		return missing
	}
	next := from.next()
	for next != StepContacts && next != StepDone && d.Filled(next) {
		next = next.next()
	}
	if next == StepDone {
		next = StepContacts
	}
	return next
}
