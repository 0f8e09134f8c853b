package dealchatturn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"deal-assistant/internal/common/camunda"
	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/metrics"
	"deal-assistant/internal/common/validation"
	"deal-assistant/internal/dealchat"
)

const (
	TaskType     = "deal-chat.turn"
	transportJob = "zeebe"
)

// TurnService runs one dialog turn.
type TurnService interface {
	Reply(ctx context.Context, transport, message string, draft *dealchat.Draft) (*dealchat.Reply, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	service   TurnService
	validator *validation.Validator
	retry     *camunda.RetryConfig
	worker    *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      TurnService
	Logger       logger.Logger
	// Retry governs re-sending the complete command; nil uses
	// camunda.DefaultRetryConfig.
	Retry *camunda.RetryConfig
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("invalid configuration for %s: service is required", configKey)
	}

	validator, err := validation.NewValidator(GetInputSchema())
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:    workerConfig,
		logger:    loggerInstance.With(map[string]interface{}{"worker": TaskType}),
		service:   opts.Service,
		validator: validator,
		retry:     opts.Retry,
	}, nil
}

// Handle runs one turn for the job. A returned error fails the job.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing deal chat turn", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errors.Code(err)).Inc()
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errors.Code(err)).Inc()
		return err
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errors.Code(err)).Inc()
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

// Execute runs the turn without touching the broker.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	reply, err := h.service.Reply(ctx, transportJob, input.Message, input.DealState)
	if err != nil {
		return nil, err
	}

	out := &Output{
		AIMessage: reply.Message,
		DealState: reply.Draft,
	}
	if reply.Draft != nil {
		out.Step = string(reply.Draft.Step)
	}
	if reply.Deal != nil {
		id := reply.Deal.ID
		out.DealID = &id
	}
	return out, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputValidationFailedError("job variables are not a JSON object: " + err.Error())
	}

	result, err := h.validator.ValidateInput(variables)
	if err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInputValidationFailedError(result.Error())
	}

	var raw struct {
		Message   string          `json:"message"`
		DealState json.RawMessage `json:"dealState"`
	}
	if err := job.GetVariablesAs(&raw); err != nil {
		return nil, errors.NewInputValidationFailedError(err.Error())
	}

	input := &Input{Message: raw.Message}
	if len(raw.DealState) > 0 && string(raw.DealState) != "null" {
		input.DealState = &dealchat.Draft{}
		if err := json.Unmarshal(raw.DealState, input.DealState); err != nil {
			return nil, errors.NewInvalidDealStateError(err)
		}
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.ToVariables())
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("build complete command: %w", err))
	}

	err = camunda.ExecuteWithRetry(ctx, h.retry, "complete job", func(ctx context.Context) error {
		_, err := request.Send(ctx)
		return err
	})
	if err != nil {
		return err
	}

	h.logger.Info("Completed deal chat turn", map[string]interface{}{
		"jobKey": job.GetKey(),
		"step":   output.Step,
		"dealId": output.DealID,
	})
	return nil
}

// Register opens the job worker. It is a no-op when the worker is disabled.
func (h *Handler) Register(client zbc.Client) {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return
	}
	h.worker = camunda.NewWorker(client, camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
		Handler:       h,
		Logger:        h.logger,
	})
}

func (h *Handler) Close() {
	if h.worker != nil {
		h.worker.Stop()
		h.worker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}
