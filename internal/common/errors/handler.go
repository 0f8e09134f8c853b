package errors

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler fails Zeebe jobs from arbitrary errors. Retryable codes fail
// the job with a bounded retry count; everything else fails it with zero
// retries so the broker raises an incident.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	retries := bpmnErr.Retries
	if remaining := int(job.GetRetries()) - 1; remaining < retries {
		retries = remaining
	}
	if retries < 0 {
		retries = 0
	}

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.GetKey(),
		"jobType":          job.GetType(),
		"errorCode":        string(stdErr.Code),
		"message":          stdErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.GetProcessInstanceKey(),
	})

	cmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(int32(retries)).
		ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message))

	if withVars, varErr := cmd.VariablesFromMap(bpmnErr.ToErrorVariables()); varErr == nil {
		if _, sendErr := withVars.Send(ctx); sendErr != nil {
			h.logSendFailure(job, sendErr)
		}
		return
	}

	if _, sendErr := cmd.Send(ctx); sendErr != nil {
		h.logSendFailure(job, sendErr)
	}
}

func (h *ErrorHandler) logSendFailure(job entities.Job, err error) {
	h.logger.Error("Failed to send job failure to broker", map[string]interface{}{
		"jobKey": job.GetKey(),
		"error":  err.Error(),
	})
}
