// Package engine implements the pipeline execution engine: stage
// orchestration, retries with backoff, parallel fan-out, the per-run event
// bus, run state, and the run manager with suspend/resume semantics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/assay-dev/assay/pkg/models"
)

// ErrorCode is the closed taxonomy of analyzer failure kinds.
type ErrorCode string

const (
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeAuthentication     ErrorCode = "AUTHENTICATION"
	CodeContentFilter      ErrorCode = "CONTENT_FILTER"
	CodeSchemaValidation   ErrorCode = "SCHEMA_VALIDATION"
	CodeCancelled          ErrorCode = "CANCELLED"
	CodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	CodeUnknown            ErrorCode = "UNKNOWN"
)

// IsValid checks if the error code is part of the taxonomy.
func (c ErrorCode) IsValid() bool {
	switch c {
	case CodeRateLimit, CodeNetworkError, CodeServiceUnavailable, CodeTimeout,
		CodeAuthentication, CodeContentFilter, CodeSchemaValidation,
		CodeCancelled, CodeMaxRetriesExceeded, CodeUnknown:
		return true
	default:
		return false
	}
}

// Recoverable reports whether the code permits automatic retry.
func (c ErrorCode) Recoverable() bool {
	switch c {
	case CodeRateLimit, CodeNetworkError, CodeServiceUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}

// ExecutorError is a classified analyzer failure.
type ExecutorError struct {
	Code        ErrorCode            `json:"code"`
	Message     string               `json:"message"`
	Stage       models.PipelineStage `json:"stage"`
	Recoverable bool                 `json:"recoverable"`
	Timestamp   time.Time            `json:"timestamp"`
	Attempt     int                  `json:"attempt,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *ExecutorError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ExecutorError) Unwrap() error {
	return e.cause
}

// Cause returns the wrapped error, if any.
func (e *ExecutorError) Cause() error {
	return e.cause
}

// classificationRule maps message substrings to an error code. Rules are
// evaluated in order; the first match wins.
type classificationRule struct {
	code     ErrorCode
	patterns []string
}

// classificationTable mirrors the failure signatures of the upstream LLM and
// network clients. All matching is case-insensitive.
var classificationTable = []classificationRule{
	{CodeRateLimit, []string{"429", "rate limit", "quota", "throttl", "too many requests"}},
	{CodeNetworkError, []string{"econnrefused", "enotfound", "etimedout", "fetch failed", "dns", "socket", "connection refused", "connection reset", "no such host", "broken pipe"}},
	{CodeServiceUnavailable, []string{"500", "502", "503", "service unavailable", "bad gateway", "overloaded"}},
	{CodeTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CodeAuthentication, []string{"401", "403", "invalid api key", "unauthorized", "forbidden", "authentication"}},
	{CodeContentFilter, []string{"safety", "blocked", "content filter", "policy"}},
	{CodeSchemaValidation, []string{"parse", "schema", "validation", "unmarshal"}},
	{CodeCancelled, []string{"cancel", "abort"}},
}

// Classify maps a raw analyzer error to a typed ExecutorError. It never
// returns nil for a non-nil error and never panics. If err is already an
// ExecutorError it is returned as-is, with stage and attempt filled in when
// they were unset.
func Classify(err error, stage models.PipelineStage, attempt int) *ExecutorError {
	if err == nil {
		return nil
	}

	var ee *ExecutorError
	if errors.As(err, &ee) {
		if ee.Stage == "" {
			ee.Stage = stage
		}
		if ee.Attempt == 0 {
			ee.Attempt = attempt
		}
		return ee
	}

	code := CodeUnknown
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		code = CodeTimeout
	default:
		msg := strings.ToLower(err.Error())
		for _, rule := range classificationTable {
			for _, p := range rule.patterns {
				if strings.Contains(msg, p) {
					code = rule.code
					break
				}
			}
			if code != CodeUnknown {
				break
			}
		}
	}

	return &ExecutorError{
		Code:        code,
		Message:     err.Error(),
		Stage:       stage,
		Recoverable: code.Recoverable(),
		Timestamp:   time.Now(),
		Attempt:     attempt,
		cause:       err,
	}
}

// NewExecutorError builds an ExecutorError directly, for failures originating
// inside the engine rather than from an analyzer call.
func NewExecutorError(code ErrorCode, stage models.PipelineStage, message string, cause error) *ExecutorError {
	return &ExecutorError{
		Code:        code,
		Message:     message,
		Stage:       stage,
		Recoverable: code.Recoverable(),
		Timestamp:   time.Now(),
		cause:       cause,
	}
}

// wrapMaxRetries converts an exhausted recoverable error into
// MAX_RETRIES_EXCEEDED, preserving the last failure as the cause.
func wrapMaxRetries(last *ExecutorError, stage models.PipelineStage, attempts int) *ExecutorError {
	return &ExecutorError{
		Code:        CodeMaxRetriesExceeded,
		Message:     fmt.Sprintf("gave up after %d attempts: %s", attempts, last.Message),
		Stage:       stage,
		Recoverable: false,
		Timestamp:   time.Now(),
		Attempt:     attempts,
		cause:       last,
	}
}
