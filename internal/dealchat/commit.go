package dealchat

import (
	"context"
	"fmt"
	"time"

	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/metrics"
	"deal-assistant/internal/events"
	"deal-assistant/internal/models"
)

// DealStore is the part of the record store used at commit time.
type DealStore interface {
	GetOrganization(ctx context.Context, id int64) (*models.Organization, error)
	GetContactsByIDs(ctx context.Context, ids []int64) ([]models.Contact, error)
	// CreateDeal inserts the deal and its contact links in one transaction.
	// Contact ids that do not exist are skipped.
	CreateDeal(ctx context.Context, deal models.NewDeal) (*models.Deal, error)
	LogActivity(ctx context.Context, entry models.ActivityEntry) error
}

// DealPublisher is notified after a deal is committed.
type DealPublisher interface {
	PublishDealCreated(ctx context.Context, deal *models.Deal, org *models.Organization) error
}

// CommitEngine turns a complete draft into a persisted deal.
type CommitEngine struct {
	store     DealStore
	publisher DealPublisher
	kw        *Keywords
	logger    logger.Logger
}

func NewCommitEngine(store DealStore, publisher DealPublisher, kw *Keywords, log logger.Logger) *CommitEngine {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &CommitEngine{store: store, publisher: publisher, kw: kw, logger: log}
}

// Commit persists d. The draft must have title, company, amount and stage.
// When the organization has vanished the draft is closed without a deal.
func (c *CommitEngine) Commit(ctx context.Context, d *Draft) (string, *models.Deal, error) {
	org, err := c.store.GetOrganization(ctx, d.Company.ID)
	if err != nil {
		return "", nil, err
	}
	if org == nil {
		d.Step = StepDone
		metrics.DealCommitsAborted.Inc()
		c.logger.Warn("Organization vanished before commit", map[string]interface{}{
			"organizationId": d.Company.ID,
		})
		return instrCommitOrgGone(d.Company.Name, c.kw.RestartHint()), nil, nil
	}

	contacts, err := c.store.GetContactsByIDs(ctx, d.Contacts)
	if err != nil {
		return "", nil, err
	}
	contactIDs := make([]int64, len(contacts))
	for i, ct := range contacts {
		contactIDs[i] = ct.ID
	}

	nd := models.NewDeal{
		Title:          *d.Title,
		AmountCents:    d.Amount.Cents(),
		OrganizationID: org.ID,
		Stage:          string(*d.Stage),
		ContactIDs:     contactIDs,
	}
	if d.CloseDate != nil {
		t := d.CloseDate.Time()
		nd.CloseDate = &t
	}

	deal, err := c.store.CreateDeal(ctx, nd)
	if err != nil {
		return "", nil, err
	}

	d.Step = StepDone
	d.Contacts = append([]int64{}, deal.ContactIDs...)
	metrics.DealsCommitted.Inc()

	c.logger.Info("Deal committed", map[string]interface{}{
		"dealId":         deal.ID,
		"organizationId": org.ID,
		"contactCount":   len(deal.ContactIDs),
	})

	c.afterCommit(ctx, deal, org)

	return instrCommitted(deal, org.Name, attachedContacts(contacts, deal.ContactIDs)), deal, nil
}

// afterCommit records the audit row and publishes the event. Neither can fail
// the turn once the deal exists.
func (c *CommitEngine) afterCommit(ctx context.Context, deal *models.Deal, org *models.Organization) {
	entry := models.ActivityEntry{
		Action:     "Create",
		EntityType: "Deal",
		EntityID:   deal.ID,
		Details:    fmt.Sprintf("Deal %q created for %s via chat", deal.Title, org.Name),
	}
	if err := c.store.LogActivity(ctx, entry); err != nil {
		c.logger.Warn("Failed to write activity log (non-critical)", map[string]interface{}{
			"dealId": deal.ID,
			"error":  err.Error(),
		})
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishDealCreated(pubCtx, deal, org); err != nil {
		c.logger.Warn("Failed to publish deal event (non-critical)", map[string]interface{}{
			"dealId": deal.ID,
			"error":  err.Error(),
		})
	}
}

func attachedContacts(contacts []models.Contact, attached []int64) []models.Contact {
	out := make([]models.Contact, 0, len(attached))
	for _, ct := range contacts {
		if containsID(attached, ct.ID) {
			out = append(out, ct)
		}
	}
	return out
}
