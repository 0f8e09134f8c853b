package dealchat

import (
	"context"
	"strconv"
	"strings"

	"deal-assistant/internal/models"
)

// OrganizationStore is the organization half of the record store.
type OrganizationStore interface {
	FindOrganizationsByName(ctx context.Context, fragment string, limit int) ([]models.Organization, error)
	CreateOrganization(ctx context.Context, name string) (*models.Organization, error)
	// GetOrganization returns (nil, nil) when the id does not exist.
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
}

// EntityResolver runs the company step: fresh search, numeric
// disambiguation, or create confirmation, depending on the draft's pending
// sub-mode.
type EntityResolver struct {
	store         OrganizationStore
	kw            *Keywords
	maxCandidates int
}

func NewEntityResolver(store OrganizationStore, kw *Keywords, maxCandidates int) *EntityResolver {
	if maxCandidates < 2 {
		maxCandidates = 5
	}
	return &EntityResolver{store: store, kw: kw, maxCandidates: maxCandidates}
}

// Resolve handles one company-step turn. resolved is true once the draft
// holds a company; the instruction is then only an acknowledgement and the
// caller adds the next question.
func (r *EntityResolver) Resolve(ctx context.Context, text string, d *Draft) (instruction string, resolved bool, err error) {
	if ids, ok := d.PendingChoice(); ok {
		return r.choose(ctx, text, ids, d)
	}
	if name, ok := d.PendingCreate(); ok {
		return r.confirmCreate(ctx, text, name, d)
	}
	return r.search(ctx, text, d)
}

func (r *EntityResolver) choose(ctx context.Context, text string, ids []int64, d *Draft) (string, bool, error) {
	choice, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || !containsID(ids, choice) {
		return instrChooseCompanyRepeat(ids), false, nil
	}

	org, err := r.store.GetOrganization(ctx, choice)
	if err != nil {
		return "", false, err
	}
	if org == nil {
		d.ClearPending()
		return instrChoiceGone, false, nil
	}

	d.SetCompany(org.ID, org.Name)
	return instrCompanySelected(org.Name), true, nil
}

func (r *EntityResolver) confirmCreate(ctx context.Context, text, name string, d *Draft) (string, bool, error) {
	u := newUtterance(text)
	switch {
	case r.kw.yes.equals(u):
		org, err := r.store.CreateOrganization(ctx, name)
		if err != nil {
			return "", false, err
		}
		d.SetCompany(org.ID, org.Name)
		return instrCompanyCreated(org.Name), true, nil
	case r.kw.no.equals(u):
		d.ClearPending()
		return instrRetypeCompany, false, nil
	default:
		return instrConfirmCreateRepeat(name), false, nil
	}
}

func (r *EntityResolver) search(ctx context.Context, text string, d *Draft) (string, bool, error) {
	name := strings.TrimSpace(text)

	// one extra row tells "exactly max" apart from "more than max"
	orgs, err := r.store.FindOrganizationsByName(ctx, name, r.maxCandidates+1)
	if err != nil {
		return "", false, err
	}

	switch n := len(orgs); {
	case n == 0:
		d.AwaitCreate(name)
		return instrConfirmCreate(name), false, nil
	case n == 1:
		d.SetCompany(orgs[0].ID, orgs[0].Name)
		return instrCompanySelected(orgs[0].Name), true, nil
	case n <= r.maxCandidates:
		ids := make([]int64, n)
		for i, org := range orgs {
			ids[i] = org.ID
		}
		d.AwaitChoice(ids)
		return instrChooseCompany(orgs), false, nil
	default:
		return instrTooManyMatches(name, r.maxCandidates), false, nil
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
