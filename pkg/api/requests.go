package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assay-dev/assay/pkg/models"
)

// Error codes returned on 4xx responses.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeNotFound        = "NOT_FOUND"
	CodeNotSuspended    = "NOT_SUSPENDED"
)

// ErrorResponse is the JSON body of every non-stream error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Code: code, Message: message})
}

// StartRequest is the body of POST /pipeline/start.
type StartRequest struct {
	Problem string `json:"problem"`
	Context string `json:"context"`
}

// Validate enforces the input length bounds.
func (r *StartRequest) Validate() error {
	if n := len(r.Problem); n < models.MinProblemLength || n > models.MaxProblemLength {
		return fmt.Errorf("problem must be between %d and %d characters, got %d",
			models.MinProblemLength, models.MaxProblemLength, n)
	}
	if n := len(r.Context); n > models.MaxContextLength {
		return fmt.Errorf("context must be at most %d characters, got %d", models.MaxContextLength, n)
	}
	return nil
}

// AnswerPayload is one answer in a resume request.
type AnswerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// ResumeRequest is the body of POST /pipeline/resume. The accepted fields
// depend on the configured resume mode: snapshot mode needs runId, stepId,
// and answers; stateless mode needs runId, the original problem, and answers.
type ResumeRequest struct {
	RunID   string          `json:"runId"`
	StepID  string          `json:"stepId"`
	Problem string          `json:"problem"`
	Context string          `json:"context"`
	Answers []AnswerPayload `json:"answers"`
}

// ValidateSnapshot checks the snapshot-mode variant.
func (r *ResumeRequest) ValidateSnapshot() error {
	if _, err := uuid.Parse(r.RunID); err != nil {
		return fmt.Errorf("runId must be a valid uuid")
	}
	if len(r.Answers) == 0 {
		return fmt.Errorf("at least one answer is required")
	}
	return r.validateAnswers()
}

// ValidateStateless checks the stateless-restart variant.
func (r *ResumeRequest) ValidateStateless() error {
	if _, err := uuid.Parse(r.RunID); err != nil {
		return fmt.Errorf("runId must be a valid uuid")
	}
	start := StartRequest{Problem: r.Problem, Context: r.Context}
	if err := start.Validate(); err != nil {
		return err
	}
	return r.validateAnswers()
}

func (r *ResumeRequest) validateAnswers() error {
	for i, a := range r.Answers {
		if a.QuestionID == "" {
			return fmt.Errorf("answers[%d]: questionId is required", i)
		}
		if a.Answer == "" {
			return fmt.Errorf("answers[%d]: answer is required", i)
		}
	}
	return nil
}

// bindJSON decodes the request body, mapping decode failures to INVALID_JSON.
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidJSON, "request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}
