package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/models"
)

// StartPipeline handles POST /pipeline/start. A valid request switches the
// response to an SSE stream; validation failures return plain JSON 400s.
func (s *Server) StartPipeline(c *gin.Context) {
	var req StartRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	run, err := s.manager.Start(models.PipelineInput{
		Problem: req.Problem,
		Context: req.Context,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	s.logger.Info("Pipeline started", "run_id", run.ID())
	s.streamRun(c, run)
}

// ResumePipeline handles POST /pipeline/resume. The accepted request shape
// follows the configured resume mode: snapshot mode continues the suspended
// run in place; stateless mode restarts from scratch with the answers
// pre-applied.
func (s *Server) ResumePipeline(c *gin.Context) {
	var req ResumeRequest
	if !bindJSON(c, &req) {
		return
	}

	if s.cfg.ResumeMode == config.ResumeModeSnapshot {
		s.resumeSnapshot(c, &req)
		return
	}
	s.resumeStateless(c, &req)
}

func (s *Server) resumeSnapshot(c *gin.Context, req *ResumeRequest) {
	if err := req.ValidateSnapshot(); err != nil {
		writeError(c, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	run, err := s.manager.Resume(c.Request.Context(), req.RunID, toUserAnswers(req.Answers))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrRunNotFound):
			writeError(c, http.StatusNotFound, CodeNotFound, err.Error())
		case errors.Is(err, engine.ErrRunNotSuspended):
			writeError(c, http.StatusConflict, CodeNotSuspended, err.Error())
		default:
			writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}

	s.logger.Info("Pipeline resumed", "run_id", run.ID(), "mode", config.ResumeModeSnapshot)
	s.streamRun(c, run)
}

func (s *Server) resumeStateless(c *gin.Context, req *ResumeRequest) {
	if err := req.ValidateStateless(); err != nil {
		writeError(c, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	input := models.PipelineInput{
		Problem:           req.Problem,
		Context:           req.Context,
		PreAppliedAnswers: toUserAnswers(req.Answers),
	}
	run, err := s.manager.ResumeStateless(input, req.RunID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	s.logger.Info("Pipeline restarted", "run_id", run.ID(), "mode", config.ResumeModeStateless)
	s.streamRun(c, run)
}

// PipelineStatus handles GET /pipeline/status?runId=...
func (s *Server) PipelineStatus(c *gin.Context) {
	runID := c.Query("runId")
	if runID == "" {
		writeError(c, http.StatusBadRequest, CodeValidationError, "runId query parameter is required")
		return
	}

	view, err := s.manager.Status(c.Request.Context(), runID)
	if err != nil {
		writeError(c, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, view)
}

func toUserAnswers(payloads []AnswerPayload) []models.UserAnswer {
	answers := make([]models.UserAnswer, 0, len(payloads))
	for _, p := range payloads {
		answers = append(answers, models.UserAnswer{
			QuestionID: p.QuestionID,
			Answer:     p.Answer,
			Source:     models.QuestionFromScreening,
		})
	}
	return answers
}
