package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonaws "deal-assistant/internal/common/aws"
	apperrors "deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/models"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func testDeal() (*models.Deal, *models.Organization) {
	closeDate := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	return &models.Deal{
			ID:             500,
			Title:          "Acme renewal",
			AmountCents:    1200050,
			OrganizationID: 1,
			Stage:          "qualified",
			CloseDate:      &closeDate,
			ContactIDs:     []int64{3, 4},
		}, &models.Organization{
			ID:   1,
			Name: "Acme Corp",
		}
}

func TestSNSPublisher_PublishDealCreated(t *testing.T) {
	api := &fakeSNS{}
	pub := NewSNSPublisher(commonaws.NewSNSClientWithAPI(api), "arn:aws:sns:us-east-1:123:deals", logger.NewTestLogger(t))
	pub.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	deal, org := testDeal()
	require.NoError(t, pub.PublishDealCreated(context.Background(), deal, org))

	require.NotNil(t, api.input)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:deals", aws.ToString(api.input.TopicArn))
	assert.Equal(t, EventDealCreated, aws.ToString(api.input.MessageAttributes["event_type"].StringValue))

	var ev DealCreated
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(api.input.Message)), &ev))
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, int64(500), ev.DealID)
	assert.Equal(t, "Acme Corp", ev.OrganizationName)
	assert.Equal(t, "12000.50", ev.Amount)
	require.NotNil(t, ev.CloseDate)
	assert.Equal(t, "2025-06-30", *ev.CloseDate)
	assert.Equal(t, []int64{3, 4}, ev.ContactIDs)
	assert.Equal(t, "2025-01-02T03:04:05Z", ev.OccurredAt)
}

func TestSNSPublisher_Failure(t *testing.T) {
	api := &fakeSNS{err: errors.New("throttled")}
	pub := NewSNSPublisher(commonaws.NewSNSClientWithAPI(api), "arn", logger.NewTestLogger(t))

	deal, org := testDeal()
	err := pub.PublishDealCreated(context.Background(), deal, org)
	require.Error(t, err)
	assert.Equal(t, string(apperrors.ErrCodeEventPublishFailed), apperrors.Code(err))
}

func TestNewDealCreated_NoCloseDateNoContacts(t *testing.T) {
	deal, org := testDeal()
	deal.CloseDate = nil
	deal.ContactIDs = nil

	data, err := json.Marshal(NewDealCreated(deal, org, time.Now()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"close_date":null`)
	assert.Contains(t, string(data), `"contact_ids":[]`)
}

func TestNoopPublisher(t *testing.T) {
	deal, org := testDeal()
	assert.NoError(t, NoopPublisher{}.PublishDealCreated(context.Background(), deal, org))
}
