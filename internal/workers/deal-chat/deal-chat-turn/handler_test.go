package dealchatturn

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deal-assistant/internal/common/config"
	apperrors "deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/dealchat"
	"deal-assistant/internal/models"
)

// ==========================
// Mock Service Implementation
// ==========================

type MockService struct {
	mock.Mock
}

func (m *MockService) Reply(ctx context.Context, transport, message string, draft *dealchat.Draft) (*dealchat.Reply, error) {
	args := m.Called(ctx, transport, message, draft)
	var reply *dealchat.Reply
	if r := args.Get(0); r != nil {
		reply = r.(*dealchat.Reply)
	}
	return reply, args.Error(1)
}

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "deal-intake",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_DealChatTurn",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func createValidConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       10 * time.Second,
	}
}

func newTestHandler(t *testing.T, svc TurnService) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Service:      svc,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{CustomConfig: createValidConfig(), Service: &MockService{}},
		},
		{
			name:    "missing service",
			opts:    HandlerOptions{CustomConfig: createValidConfig()},
			wantErr: "service is required",
		},
		{
			name: "zero timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 5},
				Service:      &MockService{},
			},
			wantErr: "timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, h.GetTaskType())
			assert.True(t, h.IsEnabled())
		})
	}
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantCode  apperrors.ErrorCode
		check     func(t *testing.T, in *Input)
	}{
		{
			name:      "first turn without state",
			variables: map[string]interface{}{"message": "hi"},
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "hi", in.Message)
				assert.Nil(t, in.DealState)
			},
		},
		{
			name:      "explicit null state",
			variables: map[string]interface{}{"message": "hi", "dealState": nil},
			check: func(t *testing.T, in *Input) {
				assert.Nil(t, in.DealState)
			},
		},
		{
			name: "state decoded",
			variables: map[string]interface{}{
				"message": "5000",
				"dealState": map[string]interface{}{
					"step":         "amount",
					"title":        "Acme renewal",
					"company_id":   1,
					"company_name": "Acme Corp",
				},
			},
			check: func(t *testing.T, in *Input) {
				require.NotNil(t, in.DealState)
				assert.Equal(t, dealchat.StepAmount, in.DealState.Step)
				require.NotNil(t, in.DealState.Company)
				assert.Equal(t, int64(1), in.DealState.Company.ID)
			},
		},
		{
			name:      "missing message",
			variables: map[string]interface{}{"dealState": nil},
			wantCode:  apperrors.ErrCodeInputValidationFailed,
		},
		{
			name:      "message wrong type",
			variables: map[string]interface{}{"message": 12},
			wantCode:  apperrors.ErrCodeInputValidationFailed,
		},
		{
			name: "unknown step",
			variables: map[string]interface{}{
				"message":   "x",
				"dealState": map[string]interface{}{"step": "won"},
			},
			wantCode: apperrors.ErrCodeInvalidDealState,
		},
	}

	h := newTestHandler(t, &MockService{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := h.parseInput(createMockJob(12345, tt.variables))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, string(tt.wantCode), apperrors.Code(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	draft := dealchat.NewDraft()
	draft.Step = dealchat.StepDone

	svc := &MockService{}
	svc.On("Reply", mock.Anything, transportJob, "1, 2", (*dealchat.Draft)(nil)).Return(&dealchat.Reply{
		Message: "Deal saved.",
		Draft:   draft,
		Deal:    &models.Deal{ID: 42},
	}, nil)

	h := newTestHandler(t, svc)
	out, err := h.Execute(context.Background(), &Input{Message: "1, 2"})
	require.NoError(t, err)

	assert.Equal(t, "Deal saved.", out.AIMessage)
	assert.Equal(t, "done", out.Step)
	require.NotNil(t, out.DealID)
	assert.Equal(t, int64(42), *out.DealID)

	vars := out.ToVariables()
	assert.Equal(t, int64(42), vars["dealId"])
	assert.Equal(t, "done", vars["step"])
	svc.AssertExpectations(t)
}

func TestHandler_Execute_NoDealYet(t *testing.T) {
	svc := &MockService{}
	svc.On("Reply", mock.Anything, transportJob, "hello", (*dealchat.Draft)(nil)).Return(&dealchat.Reply{
		Message: "What is the deal called?",
		Draft:   dealchat.NewDraft(),
	}, nil)

	out, err := newTestHandler(t, svc).Execute(context.Background(), &Input{Message: "hello"})
	require.NoError(t, err)
	assert.Nil(t, out.DealID)
	assert.Equal(t, "title", out.Step)
	assert.NotContains(t, out.ToVariables(), "dealId")
}

func TestHandler_Handle_FailsBeforeCompleting(t *testing.T) {
	storeErr := apperrors.NewStoreUnavailableError("find organizations", errors.New("connection refused"))

	tests := []struct {
		name        string
		variables   map[string]interface{}
		serviceErr  error
		wantCode    apperrors.ErrorCode
		wantRetries int
	}{
		{
			name:        "malformed variables are not retried",
			variables:   map[string]interface{}{"message": 7},
			wantCode:    apperrors.ErrCodeInputValidationFailed,
			wantRetries: 0,
		},
		{
			name:        "store failure is retried",
			variables:   map[string]interface{}{"message": "acme"},
			serviceErr:  storeErr,
			wantCode:    apperrors.ErrCodeStoreUnavailable,
			wantRetries: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			if tt.serviceErr != nil {
				svc.On("Reply", mock.Anything, transportJob, mock.Anything, mock.Anything).
					Return(&dealchat.Reply{Message: dealchat.FallbackReply}, tt.serviceErr)
			}
			h := newTestHandler(t, svc)

			// the client is never reached on these paths
			err := h.Handle(nil, createMockJob(7, tt.variables))
			require.Error(t, err)
			assert.Equal(t, string(tt.wantCode), apperrors.Code(err))

			bpmn := apperrors.ConvertToBPMNError(apperrors.AsStandardError(err))
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
		})
	}
}

// ==========================
// Configuration Tests
// ==========================

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{Timeout: time.Second}).Validate())
	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	t.Run("custom config wins", func(t *testing.T) {
		custom := createValidConfig()
		assert.Same(t, custom, createConfigFromAppConfig(&config.Config{}, custom))
	})

	t.Run("defaults without app config", func(t *testing.T) {
		assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
	})

	t.Run("reads worker section", func(t *testing.T) {
		app := &config.Config{Workers: map[string]config.WorkerConfig{
			configKey: {Enabled: false, MaxJobsActive: 3, Timeout: 2500},
		}}
		cfg := createConfigFromAppConfig(app, nil)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 3, cfg.MaxJobsActive)
		assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	})
}

func TestGetInputSchema(t *testing.T) {
	schema := GetInputSchema()
	assert.Equal(t, []string{"message"}, schema.Required)
	assert.Contains(t, schema.Properties, "dealState")
}
