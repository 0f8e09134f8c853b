package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeInvalidDealState      ErrorCode = "INVALID_DEAL_STATE"

	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeQueryFailed       ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"

	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeBrokerUnavailable ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTimeout     ErrorCode = "BROKER_TIMEOUT"
	ErrCodeBrokerRejected    ErrorCode = "BROKER_REJECTED"

	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error shape shared by the HTTP transport and the job
// worker. Dialog-level problems (bad amount, unknown company) never become a
// StandardError; they are answered inside the conversation.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets one metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Request body is not valid JSON", details, false, nil)
}

func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false, nil)
}

func NewInvalidDealStateError(err error) *StandardError {
	return newError(ErrCodeInvalidDealState, "Deal state could not be decoded", err.Error(), false, err)
}

func NewStoreUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Record store unavailable",
		fmt.Sprintf("operation: %s, error: %s", op, err.Error()), true, err)
}

func NewQueryFailedError(op string, err error) *StandardError {
	return newError(ErrCodeQueryFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", op, err.Error()), true, err)
}

func NewTransactionFailedError(err error) *StandardError {
	return newError(ErrCodeTransactionFailed, "Deal commit transaction failed", err.Error(), true, err)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Reply generation API error", err.Error(), true, err)
}

func NewGenerationTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Reply generation timeout",
		fmt.Sprintf("call exceeded %s", timeout), true, nil)
}

func NewEventPublishFailedError(eventType string, err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, "Event publish failed",
		fmt.Sprintf("type: %s, error: %s", eventType, err.Error()), true, err)
}

func NewBrokerUnavailableError(op string, err error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Workflow broker unavailable",
		fmt.Sprintf("operation: %s, error: %s", op, err.Error()), true, err)
}

func NewBrokerTimeoutError(op string, err error) *StandardError {
	return newError(ErrCodeBrokerTimeout, "Workflow broker timeout",
		fmt.Sprintf("operation: %s, error: %s", op, err.Error()), true, err)
}

func NewBrokerRejectedError(op string, err error) *StandardError {
	return newError(ErrCodeBrokerRejected, "Workflow broker rejected the command",
		fmt.Sprintf("operation: %s, error: %s", op, err.Error()), false, err)
}

func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfiguration, "Invalid configuration", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// AsStandardError unwraps err to a *StandardError, wrapping anything else as
// an internal error.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsStandardError reports whether err wraps a *StandardError.
func IsStandardError(err error) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr)
}

// Code returns the error code of err, or INTERNAL_ERROR.
func Code(err error) string {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return string(ErrCodeInternal)
}

// BPMNError is the job-failure form of a StandardError.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeQueryFailed,
		ErrCodeTransactionFailed,
		ErrCodeBrokerUnavailable:
		return 3
	case ErrCodeGenerationFailed,
		ErrCodeEventPublishFailed:
		return 2
	case ErrCodeGenerationTimeout,
		ErrCodeBrokerTimeout:
		return 1
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "TRANSACTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "GENERATION"):
		return "AI"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "EVENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
