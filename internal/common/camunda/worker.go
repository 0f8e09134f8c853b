package camunda

import (
	"context"
	"time"

	"deal-assistant/internal/common/errors"
	"deal-assistant/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes one activated job. A returned error fails the job
// through errors.ErrorHandler; a nil return means the handler completed it.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	Handler       JobHandler
	Logger        logger.Logger
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(client zbc.Client, opts WorkerOptions) *CamundaWorker {
	errHandler := errors.NewErrorHandler(opts.Logger)

	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(func(jc worker.JobClient, job entities.Job) {
			if err := opts.Handler.Handle(jc, job); err != nil {
				errHandler.HandleJobError(context.Background(), jc, job, err)
			}
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Name(opts.TaskType + "-worker")
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}

	w := &CamundaWorker{
		worker:   builder.Open(),
		logger:   opts.Logger,
		taskType: opts.TaskType,
	}

	w.logger.Info("Worker registered with Camunda", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return w
}

// Stop closes the job worker and waits for in-flight jobs to drain.
func (w *CamundaWorker) Stop() {
	w.logger.Info("Stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
