// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"deal-assistant/internal/common/aws"
	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/metrics"
	"deal-assistant/internal/models"
)

const EventDealCreated = "deal.created"

// DealCreated is the payload published after a chat-created deal commits.
type DealCreated struct {
	EventID          string  `json:"event_id"`
	EventType        string  `json:"event_type"`
	DealID           int64   `json:"deal_id"`
	Title            string  `json:"title"`
	OrganizationID   int64   `json:"organization_id"`
	OrganizationName string  `json:"organization_name"`
	Amount           string  `json:"amount"`
	Stage            string  `json:"stage"`
	CloseDate        *string `json:"close_date"`
	ContactIDs       []int64 `json:"contact_ids"`
	OccurredAt       string  `json:"occurred_at"`
}

func NewDealCreated(deal *models.Deal, org *models.Organization, now time.Time) DealCreated {
	ev := DealCreated{
		EventID:          uuid.New().String(),
		EventType:        EventDealCreated,
		DealID:           deal.ID,
		Title:            deal.Title,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Amount:           models.FormatCents(deal.AmountCents),
		Stage:            deal.Stage,
		ContactIDs:       deal.ContactIDs,
		OccurredAt:       now.UTC().Format(time.RFC3339),
	}
	if ev.ContactIDs == nil {
		ev.ContactIDs = []int64{}
	}
	if deal.CloseDate != nil {
		d := deal.CloseDate.Format("2006-01-02")
		ev.CloseDate = &d
	}
	return ev
}

// SNSPublisher sends deal events to one SNS topic.
type SNSPublisher struct {
	client   *aws.SNSClient
	topicARN string
	logger   logger.Logger
	now      func() time.Time
}

func NewSNSPublisher(client *aws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SNSPublisher{client: client, topicARN: topicARN, logger: log, now: time.Now}
}

func (p *SNSPublisher) PublishDealCreated(ctx context.Context, deal *models.Deal, org *models.Organization) error {
	ev := NewDealCreated(deal, org, p.now())
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.NewEventPublishFailedError(EventDealCreated, err)
	}

	msgID, err := p.client.PublishJSON(ctx, p.topicARN, string(body), map[string]string{
		"event_type": EventDealCreated,
		"stage":      deal.Stage,
	})
	if err != nil {
		metrics.EventPublishFailures.WithLabelValues(EventDealCreated).Inc()
		return errors.NewEventPublishFailedError(EventDealCreated, err)
	}

	p.logger.Info("Deal event published", map[string]interface{}{
		"eventId":   ev.EventID,
		"dealId":    deal.ID,
		"messageId": msgID,
	})
	return nil
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishDealCreated(context.Context, *models.Deal, *models.Organization) error {
	return nil
}
